package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/widavies/RobluScouter/internal/checkout"
)

// ErrNotFound is returned by Get when no record exists for the ID.
var ErrNotFound = errors.New("record not found")

// Get loads one checkout from a collection.
func (s *Store) Get(ctx context.Context, col Collection, id int) (checkout.Checkout, error) {
	if !col.Valid() {
		return checkout.Checkout{}, fmt.Errorf("get: unknown collection %q", col)
	}

	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM records WHERE collection = ? AND id = ?", string(col), id,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return checkout.Checkout{}, fmt.Errorf("get %s/%d: %w", col, id, ErrNotFound)
	}
	if err != nil {
		return checkout.Checkout{}, fmt.Errorf("get %s/%d: %w", col, id, err)
	}

	var c checkout.Checkout
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return checkout.Checkout{}, fmt.Errorf("decode %s/%d: %w", col, id, err)
	}
	// The row key is authoritative for the ID, matching older clients
	// that derived it from the file name.
	c.ID = id
	return c, nil
}

// Put writes one checkout into a collection, replacing any existing record
// with the same ID. Whole-record replace; last writer wins.
func (s *Store) Put(ctx context.Context, col Collection, c checkout.Checkout) error {
	if !col.Valid() {
		return fmt.Errorf("put: unknown collection %q", col)
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode %s/%d: %w", col, c.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (collection, id, data) VALUES (?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data
	`, string(col), c.ID, string(data))
	if err != nil {
		return fmt.Errorf("put %s/%d: %w", col, c.ID, err)
	}

	return nil
}

// Delete removes one checkout from a collection. Deleting a missing record
// is a no-op.
func (s *Store) Delete(ctx context.Context, col Collection, id int) error {
	if !col.Valid() {
		return fmt.Errorf("delete: unknown collection %q", col)
	}

	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM records WHERE collection = ? AND id = ?", string(col), id,
	); err != nil {
		return fmt.Errorf("delete %s/%d: %w", col, id, err)
	}
	return nil
}

// List returns every checkout in a collection ordered by ID.
// Returns an empty slice, never nil, when the collection is empty.
func (s *Store) List(ctx context.Context, col Collection) ([]checkout.Checkout, error) {
	if !col.Valid() {
		return nil, fmt.Errorf("list: unknown collection %q", col)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, data FROM records WHERE collection = ? ORDER BY id ASC", string(col),
	)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", col, err)
	}
	defer rows.Close()

	out := []checkout.Checkout{}
	for rows.Next() {
		var (
			id   int
			data string
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("list %s: scan: %w", col, err)
		}
		var c checkout.Checkout
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			return nil, fmt.Errorf("list %s: decode %d: %w", col, id, err)
		}
		c.ID = id
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: iterate: %w", col, err)
	}

	return out, nil
}

// Clear removes every record from a collection.
func (s *Store) Clear(ctx context.Context, col Collection) error {
	if !col.Valid() {
		return fmt.Errorf("clear: unknown collection %q", col)
	}
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM records WHERE collection = ?", string(col),
	); err != nil {
		return fmt.Errorf("clear %s: %w", col, err)
	}
	return nil
}

// ClearAllCheckouts wipes all three record collections in one transaction.
// Used for the event-ended reset; the sync cursor is reset separately.
func (s *Store) ClearAllCheckouts(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("clear all: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, col := range []Collection{Checkouts, MyCheckouts, Pending} {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM records WHERE collection = ?", string(col),
		); err != nil {
			return fmt.Errorf("clear all: %s: %w", col, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("clear all: commit: %w", err)
	}
	return nil
}

// WriteClaim persists a claim or status transition through the full
// collection triple: the master mirror, my_checkouts, and pending. One
// transaction so the UI and the next upload cycle never see a partial
// claim.
func (s *Store) WriteClaim(ctx context.Context, c checkout.Checkout) error {
	return s.writeTriple(ctx, c, true)
}

// WriteRelease persists a release: the record leaves my_checkouts and is
// rewritten (status Available) in checkouts and pending so the release
// propagates to the server.
func (s *Store) WriteRelease(ctx context.Context, c checkout.Checkout) error {
	return s.writeTriple(ctx, c, false)
}

func (s *Store) writeTriple(ctx context.Context, c checkout.Checkout, owned bool) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode checkout %d: %w", c.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write triple %d: begin tx: %w", c.ID, err)
	}
	defer tx.Rollback()

	upsert := func(col Collection) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO records (collection, id, data) VALUES (?, ?, ?)
			ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data
		`, string(col), c.ID, string(data))
		return err
	}

	if err := upsert(Checkouts); err != nil {
		return fmt.Errorf("write triple %d: checkouts: %w", c.ID, err)
	}
	if err := upsert(Pending); err != nil {
		return fmt.Errorf("write triple %d: pending: %w", c.ID, err)
	}

	if owned {
		if err := upsert(MyCheckouts); err != nil {
			return fmt.Errorf("write triple %d: my_checkouts: %w", c.ID, err)
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM records WHERE collection = ? AND id = ?", string(MyCheckouts), c.ID,
		); err != nil {
			return fmt.Errorf("write triple %d: delete my_checkouts: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write triple %d: commit: %w", c.ID, err)
	}
	return nil
}

// FinishUpload removes successfully uploaded records from the pending
// queue, and removes completed ones from my_checkouts in the same
// transaction. A checked-out-but-not-complete record stays in
// my_checkouts: its pending entry was only a status update.
//
// A pending row is removed only while its stored bytes still equal the
// uploaded snapshot. If a transition landed between the snapshot and this
// call (a complete during the push), the rewritten row survives and the
// newer data goes out on the next cycle instead of being dropped.
//
// The master mirror is never touched here; uploaded completed checkouts
// remain visible as history. Returns the IDs whose pending entries were
// actually removed.
func (s *Store) FinishUpload(ctx context.Context, uploaded []checkout.Checkout) ([]int, error) {
	if len(uploaded) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("finish upload: begin tx: %w", err)
	}
	defer tx.Rollback()

	finished := make([]int, 0, len(uploaded))
	for _, c := range uploaded {
		data, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("finish upload: encode %d: %w", c.ID, err)
		}
		res, err := tx.ExecContext(ctx,
			"DELETE FROM records WHERE collection = ? AND id = ? AND data = ?",
			string(Pending), c.ID, string(data),
		)
		if err != nil {
			return nil, fmt.Errorf("finish upload: pending %d: %w", c.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("finish upload: pending %d: %w", c.ID, err)
		}
		if n == 0 {
			// Rewritten mid-push; the newer record still needs uploading.
			continue
		}
		finished = append(finished, c.ID)

		if c.Status == checkout.StatusCompleted {
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM records WHERE collection = ? AND id = ?", string(MyCheckouts), c.ID,
			); err != nil {
				return nil, fmt.Errorf("finish upload: my_checkouts %d: %w", c.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("finish upload: commit: %w", err)
	}
	return finished, nil
}
