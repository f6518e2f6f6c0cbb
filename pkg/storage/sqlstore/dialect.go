package sqlstore

import (
	"strconv"
	"strings"
)

// Dialect captures the few places where SQLite and PostgreSQL disagree.
type Dialect struct {
	Name string

	// BlobType is the column type used for embedding blobs.
	BlobType string

	// NumberedParams switches "?" placeholders to "$1, $2, ...".
	NumberedParams bool
}

var (
	SQLite = Dialect{
		Name:     "sqlite",
		BlobType: "BLOB",
	}

	Postgres = Dialect{
		Name:           "postgres",
		BlobType:       "BYTEA",
		NumberedParams: true,
	}
)

// rebind rewrites "?" placeholders for dialects that use numbered params.
// Queries in this package never contain a literal "?".
func (d Dialect) rebind(query string) string {
	if !d.NumberedParams {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
