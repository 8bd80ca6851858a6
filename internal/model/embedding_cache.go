package model

// CachedEmbedding is a provider vector persisted across resets. It is keyed
// by model, task type and the sha256 of the embedded text.
type CachedEmbedding struct {
	Model     string    `json:"model"`
	TaskType  string    `json:"task_type"`
	TextHash  string    `json:"text_hash"`
	Vector    []float32 `json:"vector"`
	CreatedAt int64     `json:"created_at"`
}
