package sqlstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/vecshard/pkg/storage"
)

type migration struct {
	version int
	name    string
	stmts   func(d Dialect) []string
}

// migrations are applied in order, each exactly once per database.
var migrations = []migration{
	{
		version: 1,
		name:    "normalized schema",
		stmts: func(d Dialect) []string {
			return []string{
				`CREATE TABLE IF NOT EXISTS namespaces (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					owner_id TEXT NOT NULL DEFAULT '',
					document_count INTEGER NOT NULL DEFAULT 0,
					UNIQUE (name, owner_id)
				)`,
				`CREATE TABLE IF NOT EXISTS documents (
					id TEXT PRIMARY KEY,
					namespace_id TEXT NOT NULL,
					content TEXT,
					is_chunked INTEGER NOT NULL DEFAULT 0,
					content_count INTEGER NOT NULL DEFAULT 0,
					expected_chunks INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE INDEX IF NOT EXISTS idx_documents_namespace ON documents (namespace_id)`,
				`CREATE TABLE IF NOT EXISTS contents (
					id TEXT PRIMARY KEY,
					document_id TEXT NOT NULL,
					body TEXT,
					is_chunk INTEGER NOT NULL DEFAULT 0,
					chunk_index INTEGER NOT NULL DEFAULT 0,
					token_start INTEGER NOT NULL DEFAULT 0,
					token_end INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE INDEX IF NOT EXISTS idx_contents_document ON contents (document_id)`,
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS vectors (
					id TEXT PRIMARY KEY,
					content_id TEXT NOT NULL,
					embedding %s NOT NULL
				)`, d.BlobType),
				`CREATE INDEX IF NOT EXISTS idx_vectors_content ON vectors (content_id)`,
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS legacy_vectors (
					id TEXT PRIMARY KEY,
					namespace TEXT,
					embedding %s,
					content TEXT
				)`, d.BlobType),
			}
		},
	},
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("reading schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("scanning migration version: %w", err)
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating schema_migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}

		if err := s.apply(ctx, m); err != nil {
			return fmt.Errorf("applying migration %d (%s): %w", m.version, m.name, err)
		}

		s.logger.Debug("applied migration",
			zap.String("dialect", s.dialect.Name),
			zap.Int("version", m.version),
			zap.String("name", m.name),
		)
	}

	return nil
}

func (s *Store) apply(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.stmts(s.dialect) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	insert := s.dialect.rebind(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`)
	if _, err := tx.ExecContext(ctx, insert, m.version, m.name); err != nil {
		return err
	}

	return tx.Commit()
}

type legacyRow struct {
	id        string
	namespace string
	embedding []byte
	content   string
}

// ImportLegacy moves every row of the flat legacy_vectors table into the
// normalized tables and empties the legacy table. Imported rows overwrite
// normalized rows that share their id. Each row moves in its own
// transaction. It returns the number of rows moved.
func (s *Store) ImportLegacy(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, COALESCE(namespace, ''), embedding, COALESCE(content, '') FROM legacy_vectors ORDER BY id`)
	if err != nil {
		return 0, fmt.Errorf("reading legacy vectors: %w", err)
	}

	// Collect everything before writing; SQLite runs with a single connection.
	var legacy []legacyRow
	for rows.Next() {
		var r legacyRow
		if err := rows.Scan(&r.id, &r.namespace, &r.embedding, &r.content); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning legacy vector: %w", err)
		}
		legacy = append(legacy, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterating legacy vectors: %w", err)
	}

	for i, r := range legacy {
		err := s.update(ctx, func(tx *txn) error {
			nsID, err := tx.EnsureNamespace(ctx, r.namespace, storage.LegacyOwner)
			if err != nil {
				return err
			}

			docID, err := tx.EnsureDocument(ctx, storage.DocumentInput{
				ID:          r.id,
				NamespaceID: nsID,
				Content:     r.content,
			})
			if err != nil {
				return err
			}

			err = tx.InsertContentAndVector(ctx, storage.ContentInput{
				ID:         r.id,
				DocumentID: docID,
				Text:       r.content,
				Embedding:  r.embedding,
			})
			if err != nil {
				return err
			}

			return tx.removeLegacy(ctx, r.id)
		})
		if err != nil {
			return i, fmt.Errorf("importing legacy vector %s: %w", r.id, err)
		}
	}

	if len(legacy) > 0 {
		s.logger.Info("imported legacy vectors",
			zap.String("dialect", s.dialect.Name),
			zap.Int("count", len(legacy)),
		)
	}

	return len(legacy), nil
}
