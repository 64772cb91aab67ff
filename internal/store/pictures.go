package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrPictureNotFound is returned by LoadPicture for an unknown ID.
var ErrPictureNotFound = errors.New("picture not found")

// SavePicture stores image bytes and returns the allocated ID.
// IDs are allocated monotonically from max existing ID + 1.
func (s *Store) SavePicture(ctx context.Context, data []byte) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("save picture: begin tx: %w", err)
	}
	defer tx.Rollback()

	var maxID sql.NullInt64
	if err := tx.QueryRowContext(ctx, "SELECT MAX(id) FROM pictures").Scan(&maxID); err != nil {
		return 0, fmt.Errorf("save picture: max id: %w", err)
	}
	id := int(maxID.Int64) + 1

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO pictures (id, data) VALUES (?, ?)", id, data,
	); err != nil {
		return 0, fmt.Errorf("save picture %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("save picture %d: commit: %w", id, err)
	}
	return id, nil
}

// LoadPicture returns the image bytes for an ID.
func (s *Store) LoadPicture(ctx context.Context, id int) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM pictures WHERE id = ?", id,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("load picture %d: %w", id, ErrPictureNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load picture %d: %w", id, err)
	}
	return data, nil
}

// DeletePicture removes an image. Deleting a missing ID is a no-op.
func (s *Store) DeletePicture(ctx context.Context, id int) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM pictures WHERE id = ?", id,
	); err != nil {
		return fmt.Errorf("delete picture %d: %w", id, err)
	}
	return nil
}
