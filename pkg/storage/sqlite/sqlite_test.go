package sqlite_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/vecshard/pkg/storage"
	"github.com/papercomputeco/vecshard/pkg/storage/sqlite"
	"github.com/papercomputeco/vecshard/pkg/vector"
)

// putVector runs the full ensure chain for an unchunked vector.
func putVector(ctx context.Context, tx storage.Tx, namespace, owner, id, content string, vec []float64) error {
	nsID, err := tx.EnsureNamespace(ctx, namespace, owner)
	if err != nil {
		return err
	}

	docID, err := tx.EnsureDocument(ctx, storage.DocumentInput{ID: id, NamespaceID: nsID, Content: content})
	if err != nil {
		return err
	}

	return tx.InsertContentAndVector(ctx, storage.ContentInput{
		ID:         id,
		DocumentID: docID,
		Text:       content,
		Embedding:  vector.Encode(vec),
	})
}

var _ = Describe("Driver", func() {
	var (
		driver *sqlite.Driver
		ctx    context.Context
	)

	count := func(table string) int {
		var n int
		Expect(driver.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)).To(Succeed())
		return n
	}

	put := func(namespace, owner, id, content string, vec []float64) {
		Expect(driver.Update(ctx, func(tx storage.Tx) error {
			return putVector(ctx, tx, namespace, owner, id, content, vec)
		})).To(Succeed())
	}

	get := func(id string) (*storage.VectorRow, error) {
		var row *storage.VectorRow
		err := driver.View(ctx, func(tx storage.Tx) error {
			var err error
			row, err = tx.GetVector(ctx, id)
			return err
		})
		return row, err
	}

	deleteVector := func(id string) {
		Expect(driver.Update(ctx, func(tx storage.Tx) error {
			return tx.DeleteVector(ctx, id)
		})).To(Succeed())
	}

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		driver, err = sqlite.NewDriver(ctx, sqlite.MemoryPath, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	Describe("NewDriver", func() {
		It("creates a driver with file database", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "shard.db")

			d, err := sqlite.NewDriver(ctx, dbPath, nil)
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())
		})

		It("applies each migration once across reopen", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "shard.db")

			d, err := sqlite.NewDriver(ctx, dbPath, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Close()).To(Succeed())

			d, err = sqlite.NewDriver(ctx, dbPath, nil)
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			var n int
			Expect(d.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&n)).To(Succeed())
			Expect(n).To(Equal(1))
		})
	})

	Describe("InsertContentAndVector and GetVector", func() {
		It("stores and retrieves a vector with its namespace and content", func() {
			put("docs", "user-1", "v1", "hello", []float64{1, 0, 0.5})

			row, err := get("v1")
			Expect(err).NotTo(HaveOccurred())
			Expect(row.ID).To(Equal("v1"))
			Expect(row.Namespace).To(Equal("docs"))
			Expect(row.Content).To(Equal("hello"))
			Expect(row.DocumentID).To(Equal("v1"))
			Expect(row.IsChunk).To(BeFalse())

			vec, err := vector.Decode(row.Embedding)
			Expect(err).NotTo(HaveOccurred())
			Expect(vec).To(Equal([]float64{1, 0, 0.5}))
		})

		It("returns ErrNotFound for a missing vector", func() {
			_, err := get("missing")

			var notFound storage.ErrNotFound
			Expect(errors.As(err, &notFound)).To(BeTrue())
			Expect(notFound.ID).To(Equal("missing"))
		})

		It("resolves an empty namespace to the default", func() {
			put("", "user-1", "v1", "hello", []float64{1})

			row, err := get("v1")
			Expect(err).NotTo(HaveOccurred())
			Expect(row.Namespace).To(Equal(storage.DefaultNamespace))
		})

		It("replaces the payload when an id is stored twice", func() {
			put("docs", "user-1", "v1", "first", []float64{1, 0})
			put("docs", "user-1", "v1", "second", []float64{0, 1})

			row, err := get("v1")
			Expect(err).NotTo(HaveOccurred())
			Expect(row.Content).To(Equal("second"))
			Expect(vector.Decode(row.Embedding)).To(Equal([]float64{0, 1}))

			Expect(count("vectors")).To(Equal(1))
			Expect(count("contents")).To(Equal(1))
			Expect(count("documents")).To(Equal(1))

			var docs int
			Expect(driver.DB().QueryRowContext(ctx, "SELECT document_count FROM namespaces").Scan(&docs)).To(Succeed())
			Expect(docs).To(Equal(1))
		})

		It("moves a re-stored id to its new namespace and releases the old one", func() {
			put("old", "user-1", "v1", "text", []float64{1})
			put("new", "user-1", "v1", "text", []float64{1})

			row, err := get("v1")
			Expect(err).NotTo(HaveOccurred())
			Expect(row.Namespace).To(Equal("new"))
			Expect(count("namespaces")).To(Equal(1))
		})

		It("stores an empty embedding as a placeholder", func() {
			put("docs", "user-1", "v1", "text", nil)

			row, err := get("v1")
			Expect(err).NotTo(HaveOccurred())
			Expect(row.Embedding).To(BeEmpty())
		})
	})

	Describe("EnsureDocument", func() {
		It("attaches to an existing parent", func() {
			put("docs", "user-1", "parent", "text", nil)

			Expect(driver.Update(ctx, func(tx storage.Tx) error {
				id, err := tx.EnsureDocument(ctx, storage.DocumentInput{ParentID: "parent"})
				Expect(id).To(Equal("parent"))
				return err
			})).To(Succeed())
		})

		It("returns ErrNotFound for a missing parent", func() {
			err := driver.Update(ctx, func(tx storage.Tx) error {
				_, err := tx.EnsureDocument(ctx, storage.DocumentInput{ParentID: "nope"})
				return err
			})
			Expect(err).To(BeAssignableToTypeOf(storage.ErrNotFound{}))
		})
	})

	Describe("DeleteVector", func() {
		It("keeps the namespace while other documents reference it", func() {
			put("docs", "user-1", "v1", "a", []float64{1})
			put("docs", "user-1", "v2", "b", []float64{1})

			deleteVector("v1")
			Expect(count("namespaces")).To(Equal(1))
			Expect(count("documents")).To(Equal(1))

			deleteVector("v2")
			Expect(count("namespaces")).To(Equal(0))
			Expect(count("documents")).To(Equal(0))
			Expect(count("contents")).To(Equal(0))
			Expect(count("vectors")).To(Equal(0))
		})

		It("is a no-op for an unknown id", func() {
			put("docs", "user-1", "v1", "a", []float64{1})
			deleteVector("missing")
			Expect(count("vectors")).To(Equal(1))
		})
	})

	Describe("DeleteDocument", func() {
		It("removes every chunk, the document and its namespace", func() {
			Expect(driver.Update(ctx, func(tx storage.Tx) error {
				nsID, err := tx.EnsureNamespace(ctx, "docs", "user-1")
				if err != nil {
					return err
				}
				docID, err := tx.EnsureDocument(ctx, storage.DocumentInput{
					ID: "doc", NamespaceID: nsID, Content: "long text", IsChunked: true, ExpectedChunks: 3,
				})
				if err != nil {
					return err
				}
				if err := tx.InsertContentAndVector(ctx, storage.ContentInput{ID: "doc", DocumentID: docID, Text: "long text"}); err != nil {
					return err
				}
				for i, id := range []string{"doc#chunk-0", "doc#chunk-1", "doc#chunk-2"} {
					err := tx.InsertContentAndVector(ctx, storage.ContentInput{
						ID: id, DocumentID: docID, Text: "part", IsChunk: true, ChunkIndex: i,
						Embedding: vector.Encode([]float64{float64(i + 1)}),
					})
					if err != nil {
						return err
					}
				}
				return nil
			})).To(Succeed())

			Expect(count("contents")).To(Equal(4))

			Expect(driver.Update(ctx, func(tx storage.Tx) error {
				return tx.DeleteDocument(ctx, "doc")
			})).To(Succeed())

			Expect(count("contents")).To(Equal(0))
			Expect(count("vectors")).To(Equal(0))
			Expect(count("documents")).To(Equal(0))
			Expect(count("namespaces")).To(Equal(0))
		})

		It("removes a document that has no content rows", func() {
			Expect(driver.Update(ctx, func(tx storage.Tx) error {
				nsID, err := tx.EnsureNamespace(ctx, "docs", "user-1")
				if err != nil {
					return err
				}
				_, err = tx.EnsureDocument(ctx, storage.DocumentInput{ID: "empty", NamespaceID: nsID})
				return err
			})).To(Succeed())

			Expect(driver.Update(ctx, func(tx storage.Tx) error {
				return tx.DeleteDocument(ctx, "empty")
			})).To(Succeed())

			Expect(count("documents")).To(Equal(0))
			Expect(count("namespaces")).To(Equal(0))
		})
	})

	Describe("GetDocument", func() {
		It("reports chunk progress", func() {
			Expect(driver.Update(ctx, func(tx storage.Tx) error {
				nsID, err := tx.EnsureNamespace(ctx, "docs", "user-1")
				if err != nil {
					return err
				}
				docID, err := tx.EnsureDocument(ctx, storage.DocumentInput{
					ID: "doc", NamespaceID: nsID, Content: "full", IsChunked: true, ExpectedChunks: 2,
				})
				if err != nil {
					return err
				}
				if err := tx.InsertContentAndVector(ctx, storage.ContentInput{ID: "doc", DocumentID: docID, Text: "full"}); err != nil {
					return err
				}
				return tx.InsertContentAndVector(ctx, storage.ContentInput{
					ID: "doc#chunk-0", DocumentID: docID, Text: "fu", IsChunk: true,
				})
			})).To(Succeed())

			var doc *storage.Document
			Expect(driver.View(ctx, func(tx storage.Tx) error {
				var err error
				doc, err = tx.GetDocument(ctx, "doc")
				return err
			})).To(Succeed())

			Expect(doc.Namespace).To(Equal("docs"))
			Expect(doc.Content).To(Equal("full"))
			Expect(doc.IsChunked).To(BeTrue())
			Expect(doc.ContentCount).To(Equal(2))
			Expect(doc.ChunkCount).To(Equal(1))
			Expect(doc.ExpectedChunks).To(Equal(2))
			Expect(doc.Complete()).To(BeFalse())
		})

		It("returns ErrNotFound for a missing document", func() {
			err := driver.View(ctx, func(tx storage.Tx) error {
				_, err := tx.GetDocument(ctx, "missing")
				return err
			})
			Expect(err).To(MatchError(storage.ErrNotFound{Kind: "document", ID: "missing"}))
		})
	})

	Describe("GetVectorsByNamespace", func() {
		It("matches the namespace name across owners", func() {
			put("shared", "user-1", "a", "a", []float64{1})
			put("shared", "user-2", "b", "b", []float64{1})
			put("other", "user-1", "c", "c", []float64{1})

			var rows []storage.VectorRow
			Expect(driver.View(ctx, func(tx storage.Tx) error {
				var err error
				rows, err = tx.GetVectorsByNamespace(ctx, "shared")
				return err
			})).To(Succeed())

			ids := make([]string, 0, len(rows))
			for _, r := range rows {
				ids = append(ids, r.ID)
			}
			Expect(ids).To(ConsistOf("a", "b"))
			Expect(count("namespaces")).To(Equal(3))
		})
	})

	Describe("GetAllVectors", func() {
		It("returns every vector", func() {
			put("one", "user-1", "a", "a", []float64{1})
			put("two", "user-1", "b", "b", []float64{1})

			var rows []storage.VectorRow
			Expect(driver.View(ctx, func(tx storage.Tx) error {
				var err error
				rows, err = tx.GetAllVectors(ctx)
				return err
			})).To(Succeed())
			Expect(rows).To(HaveLen(2))
		})
	})

	Describe("DeleteAll", func() {
		It("empties every table", func() {
			put("docs", "user-1", "a", "a", []float64{1})
			_, err := driver.DB().ExecContext(ctx, "INSERT INTO legacy_vectors (id, namespace, embedding, content) VALUES ('x', 'n', x'', 'c')")
			Expect(err).NotTo(HaveOccurred())

			Expect(driver.Update(ctx, func(tx storage.Tx) error {
				return tx.DeleteAll(ctx)
			})).To(Succeed())

			for _, table := range []string{"vectors", "contents", "documents", "namespaces", "legacy_vectors"} {
				Expect(count(table)).To(Equal(0), table)
			}
		})
	})

	Describe("Update", func() {
		It("rolls back every write when fn fails", func() {
			boom := errors.New("boom")
			err := driver.Update(ctx, func(tx storage.Tx) error {
				if err := putVector(ctx, tx, "docs", "user-1", "v1", "a", []float64{1}); err != nil {
					return err
				}
				return boom
			})
			Expect(err).To(MatchError(boom))
			Expect(count("vectors")).To(Equal(0))
			Expect(count("namespaces")).To(Equal(0))
		})
	})

	Describe("ImportLegacy", func() {
		insertLegacy := func(id, namespace, content string, vec []float64) {
			_, err := driver.DB().ExecContext(ctx,
				"INSERT INTO legacy_vectors (id, namespace, embedding, content) VALUES (?, ?, ?, ?)",
				id, namespace, vector.Encode(vec), content)
			Expect(err).NotTo(HaveOccurred())
		}

		It("moves legacy rows into the normalized tables", func() {
			insertLegacy("l1", "old", "legacy text", []float64{0.5, 0.5})

			n, err := driver.ImportLegacy(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
			Expect(count("legacy_vectors")).To(Equal(0))

			row, err := get("l1")
			Expect(err).NotTo(HaveOccurred())
			Expect(row.Namespace).To(Equal("old"))
			Expect(row.Content).To(Equal("legacy text"))
		})

		It("lets legacy rows win over normalized rows with the same id", func() {
			put("docs", "user-1", "dup", "normalized", []float64{1})
			insertLegacy("dup", "docs", "legacy", []float64{1})

			_, err := driver.ImportLegacy(ctx)
			Expect(err).NotTo(HaveOccurred())

			row, err := get("dup")
			Expect(err).NotTo(HaveOccurred())
			Expect(row.Content).To(Equal("legacy"))
			Expect(count("vectors")).To(Equal(1))
		})

		It("runs when a database is opened", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "legacy.db")

			d, err := sqlite.NewDriver(ctx, dbPath, nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = d.DB().ExecContext(ctx,
				"INSERT INTO legacy_vectors (id, namespace, embedding, content) VALUES ('l1', 'n', ?, 'c')",
				vector.Encode([]float64{1}))
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Close()).To(Succeed())

			d, err = sqlite.NewDriver(ctx, dbPath, nil)
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			var legacy, vectors int
			Expect(d.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM legacy_vectors").Scan(&legacy)).To(Succeed())
			Expect(d.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM vectors").Scan(&vectors)).To(Succeed())
			Expect(legacy).To(Equal(0))
			Expect(vectors).To(Equal(1))
		})

		It("removes a legacy row when its id is deleted", func() {
			insertLegacy("l1", "old", "legacy text", []float64{1})
			deleteVector("l1")
			Expect(count("legacy_vectors")).To(Equal(0))
		})
	})
})
