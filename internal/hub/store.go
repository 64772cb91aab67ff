package hub

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store is the hub's persistence layer.
type Store struct {
	db *gorm.DB
}

// OpenStore opens (and migrates) the hub database at path.
func OpenStore(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("hub: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Device{}, &CheckoutRecord{}, &EventState{}); err != nil {
		return nil, fmt.Errorf("hub: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// RegisterDevice creates a device row with a fresh token.
func (s *Store) RegisterDevice(name string) (Device, error) {
	d := Device{
		Name:      name,
		Token:     uuid.NewString(),
		CreatedAt: time.Now(),
	}
	if err := s.db.Create(&d).Error; err != nil {
		return Device{}, fmt.Errorf("hub: register device: %w", err)
	}
	return d, nil
}

// Event returns the team metadata singleton, creating an inactive default
// on first access.
func (s *Store) Event() (EventState, error) {
	var e EventState
	err := s.db.First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		e = EventState{}
		if err := s.db.Create(&e).Error; err != nil {
			return EventState{}, fmt.Errorf("hub: init event: %w", err)
		}
		return e, nil
	}
	if err != nil {
		return EventState{}, fmt.Errorf("hub: load event: %w", err)
	}
	return e, nil
}

// SetEvent replaces the team metadata and bumps its version. Starting a
// new event is the moment every connected device wipes its local state.
func (s *Store) SetEvent(e EventState) (EventState, error) {
	current, err := s.Event()
	if err != nil {
		return EventState{}, err
	}
	e.ID = current.ID
	e.SyncVersion = current.SyncVersion + 1
	if err := s.db.Save(&e).Error; err != nil {
		return EventState{}, fmt.Errorf("hub: save event: %w", err)
	}
	return e, nil
}

// UpsertCheckouts stores a pushed batch, assigning each item the next sync
// version. Re-pushes of the same checkout overwrite: the client retries
// whole batches, so the hub must tolerate duplicates.
func (s *Store) UpsertCheckouts(device string, items []CheckoutRecord) error {
	if len(items) == 0 {
		return nil
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		var maxVersion int64
		if err := tx.Model(&CheckoutRecord{}).
			Select("COALESCE(MAX(sync_version), 0)").Scan(&maxVersion).Error; err != nil {
			return err
		}
		for _, item := range items {
			maxVersion++
			var existing CheckoutRecord
			err := tx.Where("checkout_id = ?", item.CheckoutID).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				existing = CheckoutRecord{CheckoutID: item.CheckoutID}
			case err != nil:
				return err
			}
			existing.Content = item.Content
			existing.SyncVersion = maxVersion
			existing.Device = device
			existing.UpdatedAt = time.Now()
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// CheckoutsSince returns every record newer than the version the client
// last saw for it. A checkout absent from the map is always returned.
func (s *Store) CheckoutsSince(versions map[int]int64) ([]CheckoutRecord, error) {
	var all []CheckoutRecord
	if err := s.db.Order("sync_version asc").Find(&all).Error; err != nil {
		return nil, fmt.Errorf("hub: list checkouts: %w", err)
	}
	out := make([]CheckoutRecord, 0, len(all))
	for _, rec := range all {
		if seen, ok := versions[rec.CheckoutID]; ok && rec.SyncVersion <= seen {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
