// Package sqlstore implements store.Store on database/sql for SQLite
// (modernc.org/sqlite, pure Go) and PostgreSQL (github.com/lib/pq). Queries
// are written with '?' placeholders and rebound for PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/cognicore/attrmatch/pkg/attrmatch/attr"
	"github.com/cognicore/attrmatch/pkg/attrmatch/dictionary"
	"github.com/cognicore/attrmatch/pkg/attrmatch/internalerr"
	"github.com/cognicore/attrmatch/pkg/attrmatch/store"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store implements store.Store.
type Store struct {
	db     *sql.DB
	driver string
}

var _ store.Store = (*Store)(nil)

// Open connects to the database and creates the schema if needed. SQLite
// databases are switched to WAL mode with foreign keys enabled.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("database driver %q: %w", driver, internalerr.ErrInvalidConfig)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	if driver == DriverSQLite {
		// SQLite allows a single writer; parallel chunk flushes queue here
		// instead of failing with SQLITE_BUSY.
		db.SetMaxOpenConns(1)

		// Enable WAL mode for better concurrency
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, err
		}
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
			db.Close()
			return nil, err
		}
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, driver: driver}, nil
}

// OpenSQLite opens a SQLite database file.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	return Open(ctx, DriverSQLite, path)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS domain_attributes (
	id BIGINT PRIMARY KEY,
	code TEXT NOT NULL,
	datatype TEXT NOT NULL,
	should_extract_values BOOLEAN NOT NULL DEFAULT FALSE,
	should_extract_from_name BOOLEAN NOT NULL DEFAULT FALSE,
	regex_patterns TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS dictionary_entries (
	id BIGINT PRIMARY KEY,
	category_id BIGINT NOT NULL DEFAULT 0,
	attribute_id BIGINT NOT NULL,
	entity_id BIGINT NOT NULL DEFAULT 0,
	text_value TEXT NOT NULL,
	base_value TEXT NOT NULL DEFAULT '',
	attribute_code TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS master_products (
	id BIGINT PRIMARY KEY,
	source_id BIGINT NOT NULL,
	name TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_master_products_source ON master_products(source_id);

CREATE TABLE IF NOT EXISTS review_contents (
	id BIGINT PRIMARY KEY,
	source_id BIGINT NOT NULL,
	sequence_id BIGINT NOT NULL,
	master_product_id BIGINT NOT NULL,
	review_score DOUBLE PRECISION,
	content TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_review_contents_run ON review_contents(source_id, sequence_id);

CREATE TABLE IF NOT EXISTS description_contents (
	source_id BIGINT NOT NULL,
	sequence_id BIGINT NOT NULL,
	master_product_id BIGINT NOT NULL,
	content TEXT NOT NULL,
	PRIMARY KEY(source_id, sequence_id, master_product_id)
);

CREATE TABLE IF NOT EXISTS attribute_values (
	sequence_id BIGINT NOT NULL,
	source_id BIGINT NOT NULL,
	master_product_id BIGINT NOT NULL,
	attribute_id BIGINT NOT NULL,
	datatype TEXT NOT NULL,
	value_boolean BOOLEAN,
	value_float DOUBLE PRECISION,
	value_node_id BIGINT,
	value_key TEXT NOT NULL,
	UNIQUE(sequence_id, source_id, master_product_id, attribute_id, value_key)
);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// rebind rewrites '?' placeholders to $1..$n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// UpsertAttribute inserts or replaces a domain attribute by id.
func (s *Store) UpsertAttribute(ctx context.Context, d attr.Definition) error {
	patterns := d.RegexPatterns
	if patterns == nil {
		patterns = []string{}
	}
	encoded, err := json.Marshal(patterns)
	if err != nil {
		return err
	}
	const stmt = `
INSERT INTO domain_attributes (id, code, datatype, should_extract_values, should_extract_from_name, regex_patterns)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	code=excluded.code,
	datatype=excluded.datatype,
	should_extract_values=excluded.should_extract_values,
	should_extract_from_name=excluded.should_extract_from_name,
	regex_patterns=excluded.regex_patterns
`
	_, err = s.db.ExecContext(ctx, s.rebind(stmt),
		d.ID, d.Code, string(d.Datatype), d.ShouldExtractValues, d.ShouldExtractFromName, string(encoded))
	return err
}

// UpsertDictionaryRow inserts or replaces a dictionary row by id.
func (s *Store) UpsertDictionaryRow(ctx context.Context, r dictionary.Row) error {
	const stmt = `
INSERT INTO dictionary_entries (id, category_id, attribute_id, entity_id, text_value, base_value, attribute_code)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	category_id=excluded.category_id,
	attribute_id=excluded.attribute_id,
	entity_id=excluded.entity_id,
	text_value=excluded.text_value,
	base_value=excluded.base_value,
	attribute_code=excluded.attribute_code
`
	_, err := s.db.ExecContext(ctx, s.rebind(stmt),
		r.ID, r.CategoryID, r.AttributeID, r.EntityID, r.TextValue, r.BaseValue, r.AttributeCode)
	return err
}

// UpsertProduct inserts or replaces a product by id.
func (s *Store) UpsertProduct(ctx context.Context, p store.Product) error {
	const stmt = `
INSERT INTO master_products (id, source_id, name)
VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET source_id=excluded.source_id, name=excluded.name
`
	_, err := s.db.ExecContext(ctx, s.rebind(stmt), p.ID, p.SourceID, p.Name)
	return err
}

// UpsertReview inserts or replaces a review by id.
func (s *Store) UpsertReview(ctx context.Context, r store.Review) error {
	const stmt = `
INSERT INTO review_contents (id, source_id, sequence_id, master_product_id, review_score, content)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	source_id=excluded.source_id,
	sequence_id=excluded.sequence_id,
	master_product_id=excluded.master_product_id,
	review_score=excluded.review_score,
	content=excluded.content
`
	_, err := s.db.ExecContext(ctx, s.rebind(stmt),
		r.ID, r.SourceID, r.SequenceID, r.MasterProductID, r.Score, r.Content)
	return err
}

// UpsertDescription sets the description of a product for a sequence.
func (s *Store) UpsertDescription(ctx context.Context, d store.Description) error {
	const stmt = `
INSERT INTO description_contents (source_id, sequence_id, master_product_id, content)
VALUES (?, ?, ?, ?)
ON CONFLICT(source_id, sequence_id, master_product_id) DO UPDATE SET content=excluded.content
`
	_, err := s.db.ExecContext(ctx, s.rebind(stmt), d.SourceID, d.SequenceID, d.MasterProductID, d.Content)
	return err
}
