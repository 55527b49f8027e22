package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/cognicore/attrmatch/pkg/attrmatch/attr"
	"github.com/cognicore/attrmatch/pkg/attrmatch/dictionary"
	"github.com/cognicore/attrmatch/pkg/attrmatch/store"
)

// DictionaryRows returns all dictionary rows ordered by id.
func (s *Store) DictionaryRows(ctx context.Context) ([]dictionary.Row, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, category_id, attribute_id, entity_id, text_value, base_value, attribute_code
FROM dictionary_entries
ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []dictionary.Row
	for rows.Next() {
		var r dictionary.Row
		if err := rows.Scan(&r.ID, &r.CategoryID, &r.AttributeID, &r.EntityID, &r.TextValue, &r.BaseValue, &r.AttributeCode); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Attributes returns the domain attribute table ordered by id.
func (s *Store) Attributes(ctx context.Context) ([]attr.Definition, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, code, datatype, should_extract_values, should_extract_from_name, regex_patterns
FROM domain_attributes
ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []attr.Definition
	for rows.Next() {
		var (
			d        attr.Definition
			datatype string
			patterns string
		)
		if err := rows.Scan(&d.ID, &d.Code, &datatype, &d.ShouldExtractValues, &d.ShouldExtractFromName, &patterns); err != nil {
			return nil, err
		}
		d.Datatype = attr.Datatype(datatype)
		if err := json.Unmarshal([]byte(patterns), &d.RegexPatterns); err != nil {
			return nil, fmt.Errorf("attribute %s regex_patterns: %w", d.Code, err)
		}
		if len(d.RegexPatterns) == 0 {
			d.RegexPatterns = nil
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Products returns the master products of a source ordered by id.
func (s *Store) Products(ctx context.Context, sourceID int64) ([]store.Product, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
SELECT id, source_id, name FROM master_products WHERE source_id = ? ORDER BY id`), sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Product
	for rows.Next() {
		var p store.Product
		if err := rows.Scan(&p.ID, &p.SourceID, &p.Name); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Reviews returns the reviews of a source and sequence ordered by id.
func (s *Store) Reviews(ctx context.Context, sourceID, sequenceID int64) ([]store.Review, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
SELECT id, source_id, sequence_id, master_product_id, review_score, content
FROM review_contents
WHERE source_id = ? AND sequence_id = ?
ORDER BY id`), sourceID, sequenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Review
	for rows.Next() {
		var (
			r     store.Review
			score sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &r.SourceID, &r.SequenceID, &r.MasterProductID, &score, &r.Content); err != nil {
			return nil, err
		}
		if score.Valid {
			v := score.Float64
			r.Score = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DescriptionContents returns product id -> description for a run in one
// query.
func (s *Store) DescriptionContents(ctx context.Context, sourceID, sequenceID int64) (map[int64]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
SELECT master_product_id, content
FROM description_contents
WHERE source_id = ? AND sequence_id = ?`), sourceID, sequenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]string)
	for rows.Next() {
		var (
			id      int64
			content string
		)
		if err := rows.Scan(&id, &content); err != nil {
			return nil, err
		}
		out[id] = content
	}
	return out, rows.Err()
}

// BulkUpsert writes records in one transaction, ignoring rows that already
// exist, so a retried batch never duplicates values.
func (s *Store) BulkUpsert(ctx context.Context, records []attr.Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(`
INSERT INTO attribute_values
	(sequence_id, source_id, master_product_id, attribute_id, datatype, value_boolean, value_float, value_node_id, value_key)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(sequence_id, source_id, master_product_id, attribute_id, value_key) DO NOTHING`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range records {
		key, err := store.ValueKey(r)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx,
			r.SequenceID, r.SourceID, r.MasterProductID, r.AttributeID, string(r.Datatype),
			r.ValueBoolean, r.ValueFloat, r.ValueNodeID, key,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// AttributeValues returns stored records for a source and sequence.
func (s *Store) AttributeValues(ctx context.Context, sourceID, sequenceID int64) ([]attr.Record, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
SELECT sequence_id, source_id, master_product_id, attribute_id, datatype, value_boolean, value_float, value_node_id
FROM attribute_values
WHERE source_id = ? AND sequence_id = ?
ORDER BY master_product_id, attribute_id, value_key`), sourceID, sequenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []attr.Record
	for rows.Next() {
		var (
			r        attr.Record
			datatype string
			b        sql.NullBool
			f        sql.NullFloat64
			n        sql.NullInt64
		)
		if err := rows.Scan(&r.SequenceID, &r.SourceID, &r.MasterProductID, &r.AttributeID, &datatype, &b, &f, &n); err != nil {
			return nil, err
		}
		r.Datatype = attr.Datatype(datatype)
		if b.Valid {
			v := b.Bool
			r.ValueBoolean = &v
		}
		if f.Valid {
			v := f.Float64
			r.ValueFloat = &v
		}
		if n.Valid {
			v := n.Int64
			r.ValueNodeID = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
