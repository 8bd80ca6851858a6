package model

type SummaryHit struct {
	ID    int64   `json:"id"`
	Score float32 `json:"score"`
	Text  string  `json:"text"`
}

type ChunkHit struct {
	ID       int64   `json:"id"`
	ParentID int64   `json:"parent_id"`
	Score    float32 `json:"score"`
	Text     string  `json:"text"`
	Document string  `json:"document"`
	Position int     `json:"position"`
}
