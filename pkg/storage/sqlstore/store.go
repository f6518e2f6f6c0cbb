// Package sqlstore implements storage.Driver on database/sql. The SQLite and
// PostgreSQL drivers share this implementation and differ only by Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/vecshard/pkg/storage"
)

// Store implements storage.Driver over an open *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

// New runs pending migrations, imports any legacy rows and returns a ready
// Store. The Store takes ownership of db.
func New(ctx context.Context, db *sql.DB, dialect Dialect, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{
		db:      db,
		dialect: dialect,
		logger:  logger,
	}

	if err := s.migrate(ctx); err != nil {
		return nil, err
	}

	if _, err := s.ImportLegacy(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Update(ctx context.Context, fn func(storage.Tx) error) error {
	return s.update(ctx, func(t *txn) error { return fn(t) })
}

func (s *Store) View(ctx context.Context, fn func(storage.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	return fn(&txn{tx: tx, dialect: s.dialect})
}

func (s *Store) update(ctx context.Context, fn func(*txn) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txn{tx: tx, dialect: s.dialect}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// txn implements storage.Tx on a single *sql.Tx.
type txn struct {
	tx      *sql.Tx
	dialect Dialect
}

func (t *txn) exec(ctx context.Context, query string, args ...any) error {
	_, err := t.tx.ExecContext(ctx, t.dialect.rebind(query), args...)
	return err
}

func (t *txn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.dialect.rebind(query), args...)
}

func (t *txn) EnsureNamespace(ctx context.Context, name, ownerID string) (string, error) {
	if name == "" {
		name = storage.DefaultNamespace
	}

	id := storage.NamespaceID(name, ownerID)
	err := t.exec(ctx,
		`INSERT INTO namespaces (id, name, owner_id, document_count) VALUES (?, ?, ?, 0)
		ON CONFLICT (id) DO NOTHING`,
		id, name, ownerID,
	)
	if err != nil {
		return "", fmt.Errorf("ensuring namespace %q: %w", name, err)
	}

	return id, nil
}

func (t *txn) EnsureDocument(ctx context.Context, in storage.DocumentInput) (string, error) {
	if in.ParentID != "" {
		_, found, err := t.documentNamespace(ctx, in.ParentID)
		if err != nil {
			return "", err
		}
		if !found {
			return "", storage.ErrNotFound{Kind: "document", ID: in.ParentID}
		}
		return in.ParentID, nil
	}

	if in.ID == "" {
		return "", errors.New("document id is required")
	}

	current, found, err := t.documentNamespace(ctx, in.ID)
	if err != nil {
		return "", err
	}

	switch {
	case !found:
		err = t.exec(ctx,
			`INSERT INTO documents (id, namespace_id, content, is_chunked, content_count, expected_chunks)
			VALUES (?, ?, ?, ?, 0, ?)`,
			in.ID, in.NamespaceID, in.Content, boolInt(in.IsChunked), in.ExpectedChunks,
		)
		if err != nil {
			return "", fmt.Errorf("inserting document %s: %w", in.ID, err)
		}
		if err := t.adjustNamespace(ctx, in.NamespaceID, 1); err != nil {
			return "", err
		}

	case current == in.NamespaceID:
		err = t.exec(ctx,
			`UPDATE documents SET content = ?, is_chunked = ?, expected_chunks = ? WHERE id = ?`,
			in.Content, boolInt(in.IsChunked), in.ExpectedChunks, in.ID,
		)
		if err != nil {
			return "", fmt.Errorf("updating document %s: %w", in.ID, err)
		}

	default:
		err = t.exec(ctx,
			`UPDATE documents SET namespace_id = ?, content = ?, is_chunked = ?, expected_chunks = ? WHERE id = ?`,
			in.NamespaceID, in.Content, boolInt(in.IsChunked), in.ExpectedChunks, in.ID,
		)
		if err != nil {
			return "", fmt.Errorf("moving document %s: %w", in.ID, err)
		}
		if err := t.adjustNamespace(ctx, in.NamespaceID, 1); err != nil {
			return "", err
		}
		if err := t.releaseNamespace(ctx, current); err != nil {
			return "", err
		}
	}

	return in.ID, nil
}

func (t *txn) InsertContentAndVector(ctx context.Context, in storage.ContentInput) error {
	if in.ID == "" || in.DocumentID == "" {
		return errors.New("content id and document id are required")
	}

	current, found, err := t.contentDocument(ctx, in.ID)
	if err != nil {
		return err
	}

	switch {
	case !found:
		err = t.exec(ctx,
			`INSERT INTO contents (id, document_id, body, is_chunk, chunk_index, token_start, token_end)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			in.ID, in.DocumentID, in.Text, boolInt(in.IsChunk), in.ChunkIndex, in.TokenStart, in.TokenEnd,
		)
		if err != nil {
			return fmt.Errorf("inserting content %s: %w", in.ID, err)
		}
		if err := t.adjustDocument(ctx, in.DocumentID, 1); err != nil {
			return err
		}

	case current == in.DocumentID:
		err = t.exec(ctx,
			`UPDATE contents SET body = ?, is_chunk = ?, chunk_index = ?, token_start = ?, token_end = ? WHERE id = ?`,
			in.Text, boolInt(in.IsChunk), in.ChunkIndex, in.TokenStart, in.TokenEnd, in.ID,
		)
		if err != nil {
			return fmt.Errorf("updating content %s: %w", in.ID, err)
		}

	default:
		err = t.exec(ctx,
			`UPDATE contents SET document_id = ?, body = ?, is_chunk = ?, chunk_index = ?, token_start = ?, token_end = ?
			WHERE id = ?`,
			in.DocumentID, in.Text, boolInt(in.IsChunk), in.ChunkIndex, in.TokenStart, in.TokenEnd, in.ID,
		)
		if err != nil {
			return fmt.Errorf("moving content %s: %w", in.ID, err)
		}
		if err := t.adjustDocument(ctx, in.DocumentID, 1); err != nil {
			return err
		}
		if err := t.releaseDocument(ctx, current); err != nil {
			return err
		}
	}

	embedding := in.Embedding
	if embedding == nil {
		embedding = []byte{}
	}

	err = t.exec(ctx,
		`INSERT INTO vectors (id, content_id, embedding) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET content_id = excluded.content_id, embedding = excluded.embedding`,
		in.ID, in.ID, embedding,
	)
	if err != nil {
		return fmt.Errorf("upserting vector %s: %w", in.ID, err)
	}

	return nil
}

func (t *txn) DeleteVector(ctx context.Context, id string) error {
	if err := t.removeLegacy(ctx, id); err != nil {
		return err
	}

	contentID := id
	err := t.queryRow(ctx, `SELECT content_id FROM vectors WHERE id = ?`, id).Scan(&contentID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("looking up vector %s: %w", id, err)
	}

	if err := t.exec(ctx, `DELETE FROM vectors WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting vector %s: %w", id, err)
	}

	documentID, found, err := t.contentDocument(ctx, contentID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	if err := t.exec(ctx, `DELETE FROM vectors WHERE content_id = ?`, contentID); err != nil {
		return fmt.Errorf("deleting vectors of content %s: %w", contentID, err)
	}
	if err := t.exec(ctx, `DELETE FROM contents WHERE id = ?`, contentID); err != nil {
		return fmt.Errorf("deleting content %s: %w", contentID, err)
	}

	return t.releaseDocument(ctx, documentID)
}

func (t *txn) DeleteDocument(ctx context.Context, id string) error {
	ids, err := t.GetContentIDs(ctx, id)
	if err != nil {
		return err
	}

	for _, contentID := range ids {
		if err := t.DeleteVector(ctx, contentID); err != nil {
			return err
		}
	}

	// A document without content rows has no counter left to release it.
	namespaceID, found, err := t.documentNamespace(ctx, id)
	if err != nil || !found {
		return err
	}
	if err := t.exec(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	return t.releaseNamespace(ctx, namespaceID)
}

const vectorSelect = `SELECT v.id, COALESCE(n.name, 'default'), COALESCE(c.body, ''), c.document_id, c.is_chunk, v.embedding
	FROM vectors v
	JOIN contents c ON c.id = v.content_id
	LEFT JOIN documents d ON d.id = c.document_id
	LEFT JOIN namespaces n ON n.id = d.namespace_id`

func (t *txn) GetVector(ctx context.Context, id string) (*storage.VectorRow, error) {
	row, err := scanVector(t.queryRow(ctx, vectorSelect+` WHERE v.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound{Kind: "vector", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("getting vector %s: %w", id, err)
	}
	return row, nil
}

func (t *txn) GetAllVectors(ctx context.Context) ([]storage.VectorRow, error) {
	return t.queryVectors(ctx, vectorSelect+` ORDER BY c.document_id, c.chunk_index, v.id`)
}

func (t *txn) GetVectorsByNamespace(ctx context.Context, name string) ([]storage.VectorRow, error) {
	if name == "" {
		name = storage.DefaultNamespace
	}
	return t.queryVectors(ctx, vectorSelect+` WHERE n.name = ? ORDER BY c.document_id, c.chunk_index, v.id`, name)
}

func (t *txn) queryVectors(ctx context.Context, query string, args ...any) ([]storage.VectorRow, error) {
	rows, err := t.tx.QueryContext(ctx, t.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var out []storage.VectorRow
	for rows.Next() {
		row, err := scanVector(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning vector: %w", err)
		}
		out = append(out, *row)
	}

	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVector(s scanner) (*storage.VectorRow, error) {
	var (
		row     storage.VectorRow
		isChunk int
	)
	if err := s.Scan(&row.ID, &row.Namespace, &row.Content, &row.DocumentID, &isChunk, &row.Embedding); err != nil {
		return nil, err
	}
	row.IsChunk = isChunk != 0
	return &row, nil
}

func (t *txn) GetDocument(ctx context.Context, id string) (*storage.Document, error) {
	var (
		doc       storage.Document
		isChunked int
	)
	err := t.queryRow(ctx,
		`SELECT d.id, d.namespace_id, COALESCE(n.name, 'default'), COALESCE(d.content, ''), d.is_chunked,
			d.content_count, d.expected_chunks,
			(SELECT COUNT(*) FROM contents c WHERE c.document_id = d.id AND c.is_chunk = 1)
		FROM documents d
		LEFT JOIN namespaces n ON n.id = d.namespace_id
		WHERE d.id = ?`,
		id,
	).Scan(&doc.ID, &doc.NamespaceID, &doc.Namespace, &doc.Content, &isChunked,
		&doc.ContentCount, &doc.ExpectedChunks, &doc.ChunkCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound{Kind: "document", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("getting document %s: %w", id, err)
	}

	doc.IsChunked = isChunked != 0
	return &doc, nil
}

func (t *txn) GetContentIDs(ctx context.Context, documentID string) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx,
		t.dialect.rebind(`SELECT id FROM contents WHERE document_id = ? ORDER BY is_chunk DESC, chunk_index, id`),
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing contents of document %s: %w", documentID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning content id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (t *txn) DeleteAll(ctx context.Context) error {
	for _, table := range []string{"vectors", "contents", "documents", "namespaces", "legacy_vectors"} {
		if err := t.exec(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return nil
}

func (t *txn) removeLegacy(ctx context.Context, id string) error {
	if err := t.exec(ctx, `DELETE FROM legacy_vectors WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting legacy vector %s: %w", id, err)
	}
	return nil
}

// documentNamespace returns the namespace id of a document.
func (t *txn) documentNamespace(ctx context.Context, id string) (string, bool, error) {
	var namespaceID string
	err := t.queryRow(ctx, `SELECT namespace_id FROM documents WHERE id = ?`, id).Scan(&namespaceID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("looking up document %s: %w", id, err)
	}
	return namespaceID, true, nil
}

// contentDocument returns the document id a content row belongs to.
func (t *txn) contentDocument(ctx context.Context, id string) (string, bool, error) {
	var documentID string
	err := t.queryRow(ctx, `SELECT document_id FROM contents WHERE id = ?`, id).Scan(&documentID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("looking up content %s: %w", id, err)
	}
	return documentID, true, nil
}

func (t *txn) adjustNamespace(ctx context.Context, id string, delta int) error {
	if err := t.exec(ctx, `UPDATE namespaces SET document_count = document_count + ? WHERE id = ?`, delta, id); err != nil {
		return fmt.Errorf("updating namespace %s: %w", id, err)
	}
	return nil
}

func (t *txn) adjustDocument(ctx context.Context, id string, delta int) error {
	if err := t.exec(ctx, `UPDATE documents SET content_count = content_count + ? WHERE id = ?`, delta, id); err != nil {
		return fmt.Errorf("updating document %s: %w", id, err)
	}
	return nil
}

// releaseDocument drops one content reference from a document and deletes
// it, releasing its namespace, once nothing references it.
func (t *txn) releaseDocument(ctx context.Context, id string) error {
	if err := t.adjustDocument(ctx, id, -1); err != nil {
		return err
	}

	var (
		count       int
		namespaceID string
	)
	err := t.queryRow(ctx, `SELECT content_count, namespace_id FROM documents WHERE id = ?`, id).Scan(&count, &namespaceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading document %s: %w", id, err)
	}
	if count > 0 {
		return nil
	}

	if err := t.exec(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	return t.releaseNamespace(ctx, namespaceID)
}

// releaseNamespace drops one document reference from a namespace and deletes
// it once nothing references it.
func (t *txn) releaseNamespace(ctx context.Context, id string) error {
	if err := t.adjustNamespace(ctx, id, -1); err != nil {
		return err
	}

	var count int
	err := t.queryRow(ctx, `SELECT document_count FROM namespaces WHERE id = ?`, id).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading namespace %s: %w", id, err)
	}
	if count > 0 {
		return nil
	}

	if err := t.exec(ctx, `DELETE FROM namespaces WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting namespace %s: %w", id, err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
