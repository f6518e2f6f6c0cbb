package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/papercomputeco/vecshard/pkg/embeddings"
	"github.com/papercomputeco/vecshard/pkg/storage"
	"github.com/papercomputeco/vecshard/pkg/vector"
)

type scoredRow struct {
	row   storage.VectorRow
	score float64
}

// Search scores every vector in the shard against query and returns raw
// per-row matches, best first. A topN of zero or less returns every row,
// including rows that score 0.
func (e *Engine) Search(ctx context.Context, query []float64, topN int) ([]Match, error) {
	var rows []storage.VectorRow
	err := e.driver.View(ctx, func(tx storage.Tx) error {
		var err error
		rows, err = tx.GetAllVectors(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("loading vectors: %w", err)
	}

	scored := e.score(query, rows)

	matches := make([]Match, len(scored))
	for i, s := range scored {
		matches[i] = Match{
			ID:        s.row.ID,
			Namespace: s.row.Namespace,
			Content:   s.row.Content,
			Score:     s.score,
		}
	}

	e.logger.Debug("searched vectors", zap.Int("candidates", len(rows)), zap.Int("top_n", topN))
	return truncate(matches, topN), nil
}

// SearchDocuments embeds query, scores the vectors of every namespace named
// namespace and folds chunk hits into their parent document so each document
// appears once with its best chunk's score. Rows scoring exactly 0 are
// dropped.
func (e *Engine) SearchDocuments(ctx context.Context, query, namespace string, topN int) ([]Match, error) {
	queryVec, err := embeddings.EmbedOne(ctx, e.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	var matches []Match
	err = e.driver.View(ctx, func(tx storage.Tx) error {
		rows, err := tx.GetVectorsByNamespace(ctx, namespace)
		if err != nil {
			return err
		}

		matches, err = e.reconcile(ctx, tx, e.score(queryVec, rows))
		if err == nil {
			e.logger.Debug("searched documents",
				zap.String("namespace", namespace),
				zap.Int("candidates", len(rows)),
				zap.Int("documents", len(matches)),
			)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}

	return truncate(matches, topN), nil
}

// score computes the similarity of every row to query and sorts best first.
// Rows that fail to decode score 0.
func (e *Engine) score(query []float64, rows []storage.VectorRow) []scoredRow {
	scored := make([]scoredRow, len(rows))
	for i, row := range rows {
		s, err := vector.ScoreBlob(query, row.Embedding)
		if err != nil {
			e.logger.Warn("scoring vector failed, treating as no match", zap.String("id", row.ID), zap.Error(err))
		}
		scored[i] = scoredRow{row: row, score: s}
	}

	slices.SortStableFunc(scored, func(a, b scoredRow) int {
		return cmp.Compare(b.score, a.score)
	})
	return scored
}

// reconcile maps chunk rows to their parent documents, keeping one entry per
// parent with the highest chunk score, and re-sorts the result.
func (e *Engine) reconcile(ctx context.Context, tx storage.Tx, scored []scoredRow) ([]Match, error) {
	results := make([]Match, 0, len(scored))
	parents := make(map[string]int)

	for _, s := range scored {
		if s.score == 0 {
			continue
		}

		if !s.row.IsChunk {
			results = append(results, Match{
				ID:        s.row.ID,
				Namespace: s.row.Namespace,
				Content:   s.row.Content,
				Score:     s.score,
			})
			continue
		}

		parentID := s.row.DocumentID
		if idx, seen := parents[parentID]; seen {
			if s.score > results[idx].Score {
				results[idx].Score = s.score
			}
			continue
		}

		parent, err := tx.GetDocument(ctx, parentID)
		if err != nil {
			var notFound storage.ErrNotFound
			if errors.As(err, &notFound) {
				e.logger.Warn("chunk without parent document", zap.String("chunk", s.row.ID), zap.String("parent", parentID))
				continue
			}
			return nil, err
		}

		parents[parentID] = len(results)
		results = append(results, Match{
			ID:        parent.ID,
			Namespace: parent.Namespace,
			Content:   parent.Content,
			Score:     s.score,
		})
	}

	slices.SortStableFunc(results, func(a, b Match) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return results, nil
}

func truncate(matches []Match, topN int) []Match {
	if topN > 0 && len(matches) > topN {
		return matches[:topN]
	}
	return matches
}
