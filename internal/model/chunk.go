package model

// Chunk is the smallest unit of ingested text. Position orders chunks
// inside one document.
type Chunk struct {
	Text     string `json:"text"`
	Position int    `json:"position"`
}

// Block is a contiguous run of a document's chunks that shares one summary.
type Block struct {
	Document  string  `json:"document"`
	Index     int     `json:"index"`
	Chunks    []Chunk `json:"chunks"`
	WordCount int     `json:"word_count"`
}
