package model

// Document is one parsed source file with its chunks in reading order.
type Document struct {
	Name   string  `json:"name"`
	Chunks []Chunk `json:"chunks"`
}
