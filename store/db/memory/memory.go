// Package memory is an in-process calendar driver for tests and demos.
package memory

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/hrygo/slotsense/store"
)

type DB struct {
	mu     sync.RWMutex
	events map[string]*store.Event
}

// NewDB creates an empty in-memory driver.
func NewDB() store.Driver {
	return &DB{events: make(map[string]*store.Event)}
}

// GetDB returns nil; the memory driver has no SQL handle.
func (d *DB) GetDB() *sql.DB {
	return nil
}

func (d *DB) Close() error {
	return nil
}

func (d *DB) Migrate(context.Context) error {
	return nil
}

func (d *DB) CreateEvent(ctx context.Context, create *store.Event) (*store.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.events[create.ID]; exists {
		return nil, errors.Errorf("event %s already exists", create.ID)
	}
	d.events[create.ID] = clone(create)
	return clone(create), nil
}

func (d *DB) ListEvents(ctx context.Context, find *store.FindEvent) ([]*store.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	list := make([]*store.Event, 0)
	for _, e := range d.events {
		if matches(e, find) {
			list = append(list, clone(e))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].StartTs != list[j].StartTs {
			return list[i].StartTs < list[j].StartTs
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func (d *DB) UpdateEvent(ctx context.Context, update *store.UpdateEvent) (*store.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.events[update.ID]
	if !ok {
		return nil, errors.Wrapf(store.ErrNotFound, "event %s", update.ID)
	}
	e.UpdatedTs = update.UpdatedTs
	if update.Title != nil {
		e.Title = *update.Title
	}
	if update.Description != nil {
		e.Description = *update.Description
	}
	if update.Location != nil {
		e.Location = *update.Location
	}
	if update.Status != nil {
		e.Status = *update.Status
	}
	if update.Attendees != nil {
		e.Attendees = append([]string(nil), (*update.Attendees)...)
	}
	if update.StartTs != nil {
		e.StartTs = *update.StartTs
	}
	if update.EndTs != nil {
		e.EndTs = *update.EndTs
	}
	return clone(e), nil
}

func (d *DB) DeleteEvent(ctx context.Context, del *store.DeleteEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.events[del.ID]; !ok {
		return errors.Wrapf(store.ErrNotFound, "event %s", del.ID)
	}
	delete(d.events, del.ID)
	return nil
}

func matches(e *store.Event, find *store.FindEvent) bool {
	if find == nil {
		return true
	}
	if find.ID != nil && e.ID != *find.ID {
		return false
	}
	if find.StartBefore != nil && e.StartTs >= *find.StartBefore {
		return false
	}
	if find.EndAfter != nil && e.EndTs <= *find.EndAfter {
		return false
	}
	if find.TitleContains != nil && !strings.Contains(strings.ToLower(e.Title), strings.ToLower(*find.TitleContains)) {
		return false
	}
	if len(find.CalendarIDs) > 0 && !contains(find.CalendarIDs, e.CalendarID) {
		return false
	}
	if !find.IncludeCancelled && e.Status == "cancelled" {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func clone(e *store.Event) *store.Event {
	out := *e
	out.Attendees = append([]string(nil), e.Attendees...)
	return &out
}
