package checkout

import (
	"errors"
	"fmt"
)

// ErrReleaseRefused is returned when a release is blocked by user-entered
// data. Callers treat it as an intentional no-op, not a failure.
var ErrReleaseRefused = errors.New("checkout has user-entered data, release refused")

// ErrBadTransition is returned for a transition requested from the wrong
// starting status.
var ErrBadTransition = errors.New("illegal status transition")

// Claim transitions Available → CheckedOut, stamping owner and time.
func (c *Checkout) Claim(owner string, now int64) error {
	if c.Status != StatusAvailable {
		return fmt.Errorf("claim checkout %d from %s: %w", c.ID, c.Status, ErrBadTransition)
	}
	c.Status = StatusCheckedOut
	c.OwnerTag = owner
	c.OwnedSince = now
	return nil
}

// Complete transitions CheckedOut → Completed, stamping owner and time.
func (c *Checkout) Complete(owner string, now int64) error {
	if c.Status != StatusCheckedOut {
		return fmt.Errorf("complete checkout %d from %s: %w", c.ID, c.Status, ErrBadTransition)
	}
	c.Status = StatusCompleted
	c.OwnerTag = owner
	c.OwnedSince = now
	return nil
}

// Release transitions CheckedOut → Available, clearing ownership.
//
// The release guard: if any tab carries a modified, user-editable metric,
// the release is refused with ErrReleaseRefused and the checkout is left
// untouched. Partially entered scouting data is never discarded.
func (c *Checkout) Release() error {
	if c.Status != StatusCheckedOut {
		return fmt.Errorf("release checkout %d from %s: %w", c.ID, c.Status, ErrBadTransition)
	}
	if c.HasUserEdits() {
		return fmt.Errorf("release checkout %d: %w", c.ID, ErrReleaseRefused)
	}
	c.Status = StatusAvailable
	c.OwnerTag = ""
	c.OwnedSince = 0
	return nil
}
