package storage

// DocumentInput describes a document to create, update or attach to.
type DocumentInput struct {
	// ParentID, when set, attaches to an existing document instead of
	// writing one. All other fields are ignored.
	ParentID string

	ID             string
	NamespaceID    string
	Content        string
	IsChunked      bool
	ExpectedChunks int
}

// ContentInput describes a content row and the vector stored with it.
type ContentInput struct {
	ID         string
	DocumentID string
	Text       string
	IsChunk    bool
	ChunkIndex int
	TokenStart int
	TokenEnd   int

	// Embedding is the encoded vector blob. An empty blob stores a
	// placeholder that never matches a search.
	Embedding []byte
}

// VectorRow is a vector joined with its content, document and namespace.
type VectorRow struct {
	ID         string
	Namespace  string
	Content    string
	DocumentID string
	IsChunk    bool
	Embedding  []byte
}

// Document is a stored document with its bookkeeping counters.
type Document struct {
	ID             string
	NamespaceID    string
	Namespace      string
	Content        string
	IsChunked      bool
	ContentCount   int
	ExpectedChunks int

	// ChunkCount is the number of chunk rows currently stored.
	ChunkCount int
}

// Complete reports whether every expected chunk of a chunked document has
// been stored. Unchunked documents are always complete.
func (d *Document) Complete() bool {
	if !d.IsChunked {
		return true
	}
	return d.ChunkCount >= d.ExpectedChunks
}
