package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/slotsense/store"
)

const eventColumns = "id, calendar_id, title, description, location, status, attendees, start_ts, end_ts, created_ts, updated_ts"

func (d *DB) CreateEvent(ctx context.Context, create *store.Event) (*store.Event, error) {
	attendees, err := encodeAttendees(create.Attendees)
	if err != nil {
		return nil, err
	}
	args := []any{create.ID, create.CalendarID, create.Title, create.Description, create.Location, create.Status,
		attendees, create.StartTs, create.EndTs, create.CreatedTs, create.UpdatedTs}
	stmt := "INSERT INTO event (" + eventColumns + ") VALUES (" + placeholders(len(args)) + ")"
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, errors.Wrap(err, "failed to create event")
	}
	return create, nil
}

func (d *DB) ListEvents(ctx context.Context, find *store.FindEvent) ([]*store.Event, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.StartBefore != nil {
		where, args = append(where, "start_ts < ?"), append(args, *find.StartBefore)
	}
	if find.EndAfter != nil {
		where, args = append(where, "end_ts > ?"), append(args, *find.EndAfter)
	}
	if find.TitleContains != nil {
		where, args = append(where, "LOWER(title) LIKE ?"), append(args, "%"+strings.ToLower(*find.TitleContains)+"%")
	}
	if len(find.CalendarIDs) > 0 {
		where = append(where, "calendar_id IN ("+placeholders(len(find.CalendarIDs))+")")
		for _, id := range find.CalendarIDs {
			args = append(args, id)
		}
	}
	if !find.IncludeCancelled {
		where = append(where, "status <> 'cancelled'")
	}

	query := "SELECT " + eventColumns + " FROM event WHERE " + strings.Join(where, " AND ") + " ORDER BY start_ts ASC, id ASC"
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list events")
	}
	defer rows.Close()

	list := make([]*store.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate events")
	}
	return list, nil
}

func (d *DB) UpdateEvent(ctx context.Context, update *store.UpdateEvent) (*store.Event, error) {
	set, args := []string{"updated_ts = ?"}, []any{update.UpdatedTs}

	if update.Title != nil {
		set, args = append(set, "title = ?"), append(args, *update.Title)
	}
	if update.Description != nil {
		set, args = append(set, "description = ?"), append(args, *update.Description)
	}
	if update.Location != nil {
		set, args = append(set, "location = ?"), append(args, *update.Location)
	}
	if update.Status != nil {
		set, args = append(set, "status = ?"), append(args, *update.Status)
	}
	if update.Attendees != nil {
		attendees, err := encodeAttendees(*update.Attendees)
		if err != nil {
			return nil, err
		}
		set, args = append(set, "attendees = ?"), append(args, attendees)
	}
	if update.StartTs != nil {
		set, args = append(set, "start_ts = ?"), append(args, *update.StartTs)
	}
	if update.EndTs != nil {
		set, args = append(set, "end_ts = ?"), append(args, *update.EndTs)
	}

	args = append(args, update.ID)
	stmt := "UPDATE event SET " + strings.Join(set, ", ") + " WHERE id = ? RETURNING " + eventColumns
	e, err := scanEvent(d.db.QueryRowContext(ctx, stmt, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(store.ErrNotFound, "event %s", update.ID)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (d *DB) DeleteEvent(ctx context.Context, delete *store.DeleteEvent) error {
	result, err := d.db.ExecContext(ctx, "DELETE FROM event WHERE id = ?", delete.ID)
	if err != nil {
		return errors.Wrap(err, "failed to delete event")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return errors.Wrapf(store.ErrNotFound, "event %s", delete.ID)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*store.Event, error) {
	e := &store.Event{}
	var attendees string
	if err := row.Scan(&e.ID, &e.CalendarID, &e.Title, &e.Description, &e.Location, &e.Status,
		&attendees, &e.StartTs, &e.EndTs, &e.CreatedTs, &e.UpdatedTs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "failed to scan event")
	}
	if err := json.Unmarshal([]byte(attendees), &e.Attendees); err != nil {
		return nil, errors.Wrap(err, "failed to decode attendees")
	}
	return e, nil
}

func encodeAttendees(attendees []string) (string, error) {
	if attendees == nil {
		attendees = []string{}
	}
	b, err := json.Marshal(attendees)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode attendees")
	}
	return string(b), nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
