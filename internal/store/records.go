package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/offpos/internal/model"
)

// Record is one stored row of a collection.
type Record struct {
	Collection    Collection
	Key           string
	Seq           int64
	SchemaVersion int
	Body          json.RawMessage
	UpdatedAt     time.Time
}

// Decode unmarshals the record body into out.
func (r Record) Decode(out any) error {
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("decode %s/%s: %w", r.Collection, r.Key, err)
	}
	return nil
}

// Put upserts value under key. The record keeps the seq it was first
// inserted with, so replacing a value never changes its FIFO position.
func (s *Store) Put(ctx context.Context, c Collection, key string, value any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store put %s/%s: %w", c, key, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (collection, key, seq, schema_version, body, updated_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM records WHERE collection = ?), ?, ?, ?)
		ON CONFLICT(collection, key) DO UPDATE SET
			body = excluded.body,
			schema_version = excluded.schema_version,
			updated_at = excluded.updated_at
	`,
		string(c), key, string(c),
		model.RecordSchemaVersion,
		string(body),
		s.timestamp(),
	)
	if err != nil {
		return unavailable(fmt.Sprintf("store put %s/%s", c, key), err)
	}
	return nil
}

// Insert creates value under key only if the key is absent.
//
// Uses ON CONFLICT DO NOTHING for idempotency: re-inserting an identical
// body returns inserted=false and no error. An existing record with a
// different body is a Conflict; the stored record is left untouched.
func (s *Store) Insert(ctx context.Context, c Collection, key string, value any) (inserted bool, err error) {
	body, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("store insert %s/%s: %w", c, key, err)
	}
	op := fmt.Sprintf("store insert %s/%s", c, key)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, unavailable(op+": begin tx", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO records (collection, key, seq, schema_version, body, updated_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM records WHERE collection = ?), ?, ?, ?)
		ON CONFLICT(collection, key) DO NOTHING
	`,
		string(c), key, string(c),
		model.RecordSchemaVersion,
		string(body),
		s.timestamp(),
	)
	if err != nil {
		return false, unavailable(op, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, unavailable(op+": rows affected", err)
	}

	if rowsAffected == 0 {
		var existing string
		err = tx.QueryRowContext(ctx, `
			SELECT body FROM records WHERE collection = ? AND key = ?
		`, string(c), key).Scan(&existing)
		if err != nil {
			return false, unavailable(op+": select existing", err)
		}
		if !bytes.Equal([]byte(existing), body) {
			return false, model.NewConflict("store insert", string(c), key)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, unavailable(op+": commit", err)
	}
	return rowsAffected > 0, nil
}

// Get decodes the record stored under key into out.
// Returns a NotFound error if the key does not exist.
func (s *Store) Get(ctx context.Context, c Collection, key string, out any) error {
	rec, err := s.GetRecord(ctx, c, key)
	if err != nil {
		return err
	}
	return rec.Decode(out)
}

// GetRecord returns the raw record stored under key.
func (s *Store) GetRecord(ctx context.Context, c Collection, key string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT collection, key, seq, schema_version, body, updated_at
		FROM records
		WHERE collection = ? AND key = ?
	`, string(c), key)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, model.NewNotFound("store get", string(c), key)
	}
	if err != nil {
		return Record{}, unavailable(fmt.Sprintf("store get %s/%s", c, key), err)
	}
	return rec, nil
}

// GetAll returns every record of a collection in FIFO order:
// ORDER BY seq ASC, key ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if the collection is empty.
func (s *Store) GetAll(ctx context.Context, c Collection) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT collection, key, seq, schema_version, body, updated_at
		FROM records
		WHERE collection = ?
		ORDER BY seq ASC, key COLLATE BINARY ASC
	`, string(c))
	if err != nil {
		return nil, unavailable(fmt.Sprintf("store get all %s", c), err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, unavailable(fmt.Sprintf("store get all %s: scan", c), err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, unavailable(fmt.Sprintf("store get all %s: iterate", c), err)
	}
	return records, nil
}

// Delete removes the record stored under key.
// Returns a NotFound error if the key does not exist.
func (s *Store) Delete(ctx context.Context, c Collection, key string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM records WHERE collection = ? AND key = ?
	`, string(c), key)
	if err != nil {
		return unavailable(fmt.Sprintf("store delete %s/%s", c, key), err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return unavailable(fmt.Sprintf("store delete %s/%s: rows affected", c, key), err)
	}
	if n == 0 {
		return model.NewNotFound("store delete", string(c), key)
	}
	return nil
}

// Count returns the number of records in a collection.
func (s *Store) Count(ctx context.Context, c Collection) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM records WHERE collection = ?
	`, string(c)).Scan(&n)
	if err != nil {
		return 0, unavailable(fmt.Sprintf("store count %s", c), err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec        Record
		collection string
		body       string
		updatedAt  string
	)
	if err := row.Scan(&collection, &rec.Key, &rec.Seq, &rec.SchemaVersion, &body, &updatedAt); err != nil {
		return Record{}, err
	}
	rec.Collection = Collection(collection)
	rec.Body = json.RawMessage(body)

	// updated_at is informational; a malformed value is not fatal.
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		rec.UpdatedAt = t
	}
	return rec, nil
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// unavailable wraps a database failure as StorageUnavailable.
func unavailable(op string, err error) error {
	return model.NewStorageUnavailable(op, err)
}
