package engine

import "fmt"

// VectorInput is a caller-supplied vector. An empty ID is replaced with a
// random one.
type VectorInput struct {
	ID        string    `json:"id,omitempty"`
	Namespace string    `json:"namespace"`
	Vector    []float64 `json:"vector"`
	Content   string    `json:"content"`
}

// Vector is a stored vector as returned by Get.
type Vector struct {
	ID        string    `json:"id"`
	Namespace string    `json:"namespace"`
	Vector    []float64 `json:"vector"`
	Content   string    `json:"content"`
}

// DocumentInput is a caller-supplied document. An empty ID is replaced with
// a random one.
type DocumentInput struct {
	ID        string `json:"id,omitempty"`
	Namespace string `json:"namespace"`
	Content   string `json:"content"`
}

// Document is a stored document as returned by GetDocument. Chunked
// documents report how many of their chunks are stored so a caller can
// detect an interrupted store and retry it.
type Document struct {
	ID             string `json:"id"`
	Namespace      string `json:"namespace"`
	Content        string `json:"content"`
	IsChunked      bool   `json:"isChunked"`
	Chunks         int    `json:"chunks"`
	ExpectedChunks int    `json:"expectedChunks"`
	Complete       bool   `json:"complete"`
}

// Match is one search result.
type Match struct {
	ID        string  `json:"id"`
	Namespace string  `json:"namespace"`
	Content   string  `json:"content"`
	Score     float64 `json:"score"`
}

// ChunkID returns the id of chunk index of a document.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s#chunk-%d", documentID, index)
}
