package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindsSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("insert summary: %w", fmt.Errorf("pgvector: %w", ErrIndexOperationFailed))
	require.True(t, IsIndexOperationFailed(err))
	require.False(t, IsExternalServiceUnavailable(err))
	require.False(t, IsMalformedDocument(err))

	err = fmt.Errorf("embed: %w", ErrExternalServiceUnavailable)
	require.True(t, IsExternalServiceUnavailable(err))
	require.False(t, IsNotFound(err))
}

func TestBusyAndInvalid(t *testing.T) {
	require.True(t, IsBusy(fmt.Errorf("ingest: %w", ErrBusy)))
	require.True(t, IsInvalid(fmt.Errorf("bad k: %w", ErrInvalid)))
	require.False(t, IsBusy(ErrInvalid))
}
