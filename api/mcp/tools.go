package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/vecshard/pkg/dispatch"
	"github.com/papercomputeco/vecshard/pkg/engine"
	"github.com/papercomputeco/vecshard/pkg/utils"
)

const defaultTopN = 5

var (
	searchDocumentsToolName    = "search_documents"
	searchDocumentsDescription = "Semantic search over the documents stored in a shard. Chunked documents are returned once, scored by their best matching chunk."

	getDocumentToolName    = "get_document"
	getDocumentDescription = "Fetch a stored document by id, including whether all of its chunks were stored."
)

// SearchDocumentsInput represents the input arguments for the search_documents tool.
type SearchDocumentsInput struct {
	Shard     string `json:"shard" jsonschema:"the shard (routing key) to search"`
	Query     string `json:"query" jsonschema:"the search query text"`
	Namespace string `json:"namespace,omitempty" jsonschema:"only return documents in this namespace"`
	TopN      int    `json:"top_n,omitempty" jsonschema:"number of results to return (default: 5)"`
}

// SearchDocumentsOutput represents the output of the search_documents tool.
type SearchDocumentsOutput struct {
	Query   string         `json:"query"`
	Results []engine.Match `json:"results"`
	Count   int            `json:"count"`
}

// GetDocumentInput represents the input arguments for the get_document tool.
type GetDocumentInput struct {
	Shard string `json:"shard" jsonschema:"the shard (routing key) holding the document"`
	ID    string `json:"id" jsonschema:"the document id"`
}

func (s *Server) handleSearchDocuments(ctx context.Context, _ *mcp.CallToolRequest, input SearchDocumentsInput) (*mcp.CallToolResult, SearchDocumentsOutput, error) {
	topN := input.TopN
	if topN <= 0 {
		topN = defaultTopN
	}

	s.config.Logger.Debug("MCP search_documents request",
		zap.String("shard", input.Shard),
		zap.String("query", utils.Truncate(input.Query, 80)),
		zap.Int("topN", topN),
	)

	resp, err := s.call(ctx, input.Shard, dispatch.OpSearchDocuments, dispatch.SearchDocumentsRequest{
		Query:     input.Query,
		Namespace: input.Namespace,
		TopN:      topN,
	})
	if err != nil {
		return errorResult("Failed to search documents", err), SearchDocumentsOutput{}, nil
	}

	matches, _ := resp.([]engine.Match)
	if matches == nil {
		matches = []engine.Match{}
	}

	output := SearchDocumentsOutput{
		Query:   input.Query,
		Results: matches,
		Count:   len(matches),
	}
	return jsonResult(output), output, nil
}

func (s *Server) handleGetDocument(ctx context.Context, _ *mcp.CallToolRequest, input GetDocumentInput) (*mcp.CallToolResult, engine.Document, error) {
	if input.ID == "" {
		return errorResult("Failed to get document", errors.New("id is required")), engine.Document{}, nil
	}

	resp, err := s.call(ctx, input.Shard, dispatch.OpGetDocument, dispatch.IDRequest{ID: input.ID})
	if err != nil {
		return errorResult("Failed to get document", err), engine.Document{}, nil
	}

	doc, ok := resp.(*engine.Document)
	if !ok {
		return errorResult("Failed to get document", fmt.Errorf("unexpected response %T", resp)), engine.Document{}, nil
	}
	return jsonResult(doc), *doc, nil
}

func (s *Server) call(ctx context.Context, shard, operation string, req any) (any, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	resp, err := s.config.Executor.Execute(ctx, shard, operation, payload)
	if err != nil {
		s.config.Logger.Warn("MCP tool call failed",
			zap.String("shard", shard),
			zap.String("operation", operation),
			zap.Error(err),
		)
		return nil, err
	}
	return resp, nil
}

func errorResult(prefix string, err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%s: %v", prefix, err)},
		},
	}
}

// jsonResult serializes structured output into a text block as well, for
// clients that ignore structured content.
func jsonResult(v any) *mcp.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		return errorResult("Failed to serialize results", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}
}
