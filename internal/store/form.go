package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/widavies/RobluScouter/internal/checkout"
)

// LoadForm returns the stored form definition. ok is false if no form has
// been synced yet.
func (s *Store) LoadForm(ctx context.Context) (form checkout.Form, ok bool, err error) {
	err = s.getSingleton(ctx, singletonForm, &form)
	if err == sql.ErrNoRows {
		return checkout.Form{}, false, nil
	}
	if err != nil {
		return checkout.Form{}, false, fmt.Errorf("load form: %w", err)
	}
	return form, true, nil
}

// SaveForm replaces the stored form definition.
func (s *Store) SaveForm(ctx context.Context, form checkout.Form) error {
	if err := s.putSingleton(ctx, singletonForm, form); err != nil {
		return fmt.Errorf("save form: %w", err)
	}
	return nil
}
