package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/tierdoc/internal/pkg/errors"
	"github.com/xxxsen/tierdoc/internal/service"
)

type Reindexer interface {
	Reindex(ctx context.Context, root string) (*service.IngestStats, error)
}

// ReindexJob rebuilds both collections from the configured source.
type ReindexJob struct {
	app  Reindexer
	root string
}

func NewReindexJob(app Reindexer, root string) *ReindexJob {
	return &ReindexJob{app: app, root: root}
}

func (j *ReindexJob) Name() string {
	return "reindex"
}

func (j *ReindexJob) Run(ctx context.Context) error {
	if j.app == nil {
		return nil
	}
	stats, err := j.app.Reindex(ctx, j.root)
	if appErr.IsBusy(err) {
		logutil.GetLogger(ctx).Info("reindex skipped: reset or ingest in progress")
		return nil
	}
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("reindex done",
		zap.String("run_id", stats.RunID),
		zap.Int64("blocks", stats.Blocks),
		zap.Int64("chunks", stats.Chunks),
	)
	return nil
}
