package dispatch

import "github.com/papercomputeco/vecshard/pkg/engine"

// Operation names accepted by Dispatcher.Execute.
const (
	OpPut             = "put"
	OpBulkPut         = "bulkPut"
	OpGet             = "get"
	OpDelete          = "delete"
	OpDeleteAll       = "deleteAll"
	OpStoreDocument   = "storeDocument"
	OpGetDocument     = "getDocument"
	OpSearchDocuments = "searchDocuments"
	OpDeleteDocument  = "deleteDocument"
	OpSearch          = "search"
	OpEmbed           = "embed"
)

// Operations lists every recognized operation name.
var Operations = []string{
	OpPut,
	OpBulkPut,
	OpGet,
	OpDelete,
	OpDeleteAll,
	OpStoreDocument,
	OpGetDocument,
	OpSearchDocuments,
	OpDeleteDocument,
	OpSearch,
	OpEmbed,
}

// InvalidOperationMessage is returned for unrecognized operation names.
const InvalidOperationMessage = "Invalid operation"

const (
	msgBulkStored       = "Vectors stored successfully"
	msgDeleted          = "Vectors deleted successfully"
	msgDeleteFailed     = "Failed to delete vectors"
	msgAllDeleted       = "All vectors deleted successfully"
	msgDocsDeleted      = "Documents deleted successfully"
	msgDocsDeleteFailed = "Failed to delete documents"
)

// BulkPutRequest is the payload of bulkPut.
type BulkPutRequest struct {
	Vectors []engine.VectorInput `json:"vectors"`
}

// IDRequest is the payload of get and getDocument.
type IDRequest struct {
	ID string `json:"id"`
}

// IDsRequest is the payload of delete and deleteDocument.
type IDsRequest struct {
	IDs []string `json:"ids"`
}

// SearchRequest is the payload of search.
type SearchRequest struct {
	Vector []float64 `json:"vector"`
	TopN   int       `json:"topN,omitempty"`
}

// SearchDocumentsRequest is the payload of searchDocuments.
type SearchDocumentsRequest struct {
	Query     string `json:"query"`
	Namespace string `json:"namespace"`
	TopN      int    `json:"topN,omitempty"`
}

// EmbedRequest is the payload of embed.
type EmbedRequest struct {
	Content string `json:"content"`
}

// IDResponse answers put and storeDocument.
type IDResponse struct {
	ID string `json:"id"`
}

// BulkPutResponse answers bulkPut.
type BulkPutResponse struct {
	Message string   `json:"message"`
	IDs     []string `json:"ids"`
}

// MessageResponse answers delete, deleteAll and deleteDocument.
type MessageResponse struct {
	Message string `json:"message"`
}

// EmbedResponse answers embed.
type EmbedResponse struct {
	Embeddings []float64 `json:"embeddings"`
}

// InvalidOperationResponse answers any unrecognized operation.
type InvalidOperationResponse struct {
	Error string `json:"error"`
}
