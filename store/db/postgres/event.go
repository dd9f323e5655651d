package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/slotsense/store"
)

const eventColumns = "id, calendar_id, title, description, location, status, attendees, start_ts, end_ts, created_ts, updated_ts"

func (d *DB) CreateEvent(ctx context.Context, create *store.Event) (*store.Event, error) {
	attendees, err := json.Marshal(nonNil(create.Attendees))
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode attendees")
	}
	args := []any{create.ID, create.CalendarID, create.Title, create.Description, create.Location, create.Status,
		string(attendees), create.StartTs, create.EndTs, create.CreatedTs, create.UpdatedTs}
	stmt := `INSERT INTO event (` + eventColumns + `) VALUES (` + placeholders(len(args)) + `)`
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return create, nil
}

func (d *DB) ListEvents(ctx context.Context, find *store.FindEvent) ([]*store.Event, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.StartBefore != nil {
		where, args = append(where, "start_ts < "+placeholder(len(args)+1)), append(args, *find.StartBefore)
	}
	if find.EndAfter != nil {
		where, args = append(where, "end_ts > "+placeholder(len(args)+1)), append(args, *find.EndAfter)
	}
	if find.TitleContains != nil {
		where, args = append(where, "title ILIKE "+placeholder(len(args)+1)), append(args, "%"+*find.TitleContains+"%")
	}
	if len(find.CalendarIDs) > 0 {
		holders := make([]string, 0, len(find.CalendarIDs))
		for _, id := range find.CalendarIDs {
			args = append(args, id)
			holders = append(holders, placeholder(len(args)))
		}
		where = append(where, "calendar_id IN ("+strings.Join(holders, ", ")+")")
	}
	if !find.IncludeCancelled {
		where = append(where, "status <> 'cancelled'")
	}

	query := `SELECT ` + eventColumns + ` FROM event WHERE ` + strings.Join(where, " AND ") + ` ORDER BY start_ts ASC, id ASC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
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
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return list, nil
}

func (d *DB) UpdateEvent(ctx context.Context, update *store.UpdateEvent) (*store.Event, error) {
	set, args := []string{"updated_ts = " + placeholder(1)}, []any{update.UpdatedTs}

	if update.Title != nil {
		set, args = append(set, "title = "+placeholder(len(args)+1)), append(args, *update.Title)
	}
	if update.Description != nil {
		set, args = append(set, "description = "+placeholder(len(args)+1)), append(args, *update.Description)
	}
	if update.Location != nil {
		set, args = append(set, "location = "+placeholder(len(args)+1)), append(args, *update.Location)
	}
	if update.Status != nil {
		set, args = append(set, "status = "+placeholder(len(args)+1)), append(args, *update.Status)
	}
	if update.Attendees != nil {
		attendees, err := json.Marshal(nonNil(*update.Attendees))
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode attendees")
		}
		set, args = append(set, "attendees = "+placeholder(len(args)+1)), append(args, string(attendees))
	}
	if update.StartTs != nil {
		set, args = append(set, "start_ts = "+placeholder(len(args)+1)), append(args, *update.StartTs)
	}
	if update.EndTs != nil {
		set, args = append(set, "end_ts = "+placeholder(len(args)+1)), append(args, *update.EndTs)
	}

	args = append(args, update.ID)
	stmt := `UPDATE event SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args)) + ` RETURNING ` + eventColumns
	e, err := scanEvent(d.db.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(store.ErrNotFound, "event %s", update.ID)
		}
		return nil, err
	}
	return e, nil
}

func (d *DB) DeleteEvent(ctx context.Context, delete *store.DeleteEvent) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM event WHERE id = `+placeholder(1), delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
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
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}
	if err := json.Unmarshal([]byte(attendees), &e.Attendees); err != nil {
		return nil, fmt.Errorf("failed to decode attendees: %w", err)
	}
	return e, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func placeholder(n int) string {
	return "$" + fmt.Sprint(n)
}

func placeholders(n int) string {
	list := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		list = append(list, placeholder(i))
	}
	return strings.Join(list, ", ")
}
