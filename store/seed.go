package store

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/hrygo/slotsense/server/service/mail"
	"github.com/hrygo/slotsense/server/service/schedule"
)

// Seed is the content of a seed file.
//
//	calendar:
//	  - title: Weekly Sync
//	    start: 2026-10-15 10:00
//	    duration: 30m
//	mailbox:
//	  - from: alice@example.com
//	    subject: Budget draft
//	    receivedAt: 2026-10-14T09:00:00Z
type Seed struct {
	Calendar []SeedEvent   `yaml:"calendar"`
	Mailbox  []mail.Message `yaml:"mailbox"`
}

// SeedEvent is one calendar entry of a seed file. Either End or Duration
// must be given. Times without a zone are read in the seeding location.
type SeedEvent struct {
	Title       string   `yaml:"title"`
	Start       string   `yaml:"start"`
	End         string   `yaml:"end"`
	Duration    string   `yaml:"duration"`
	Calendar    string   `yaml:"calendar"`
	Location    string   `yaml:"location"`
	Description string   `yaml:"description"`
	Attendees   []string `yaml:"attendees"`
}

var seedLayouts = []string{"2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02T15:04:05", "2006-01-02 15:04:05"}

// LoadSeed decodes a seed file.
func LoadSeed(r io.Reader) (*Seed, error) {
	var seed Seed
	if err := yaml.NewDecoder(r).Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "failed to decode seed file")
	}
	return &seed, nil
}

// Draft converts the entry into an event draft.
func (e SeedEvent) Draft(loc *time.Location) (*schedule.EventDraft, error) {
	start, err := parseSeedTime(e.Start, loc)
	if err != nil {
		return nil, errors.Wrapf(err, "event %q: invalid start", e.Title)
	}
	var end time.Time
	switch {
	case e.End != "":
		if end, err = parseSeedTime(e.End, loc); err != nil {
			return nil, errors.Wrapf(err, "event %q: invalid end", e.Title)
		}
	case e.Duration != "":
		d, err := time.ParseDuration(e.Duration)
		if err != nil {
			return nil, errors.Wrapf(err, "event %q: invalid duration", e.Title)
		}
		end = start.Add(d)
	default:
		return nil, errors.Errorf("event %q: end or duration required", e.Title)
	}
	return &schedule.EventDraft{
		Title:       e.Title,
		Start:       start,
		End:         end,
		CalendarID:  e.Calendar,
		Location:    e.Location,
		Description: e.Description,
		Attendees:   e.Attendees,
	}, nil
}

// SeedCalendar creates every seed event and returns how many were created.
func (s *Store) SeedCalendar(ctx context.Context, seed *Seed, loc *time.Location) (int, error) {
	for i, entry := range seed.Calendar {
		draft, err := entry.Draft(loc)
		if err != nil {
			return i, err
		}
		if _, err := s.CreateEvent(ctx, draft); err != nil {
			return i, errors.Wrapf(err, "failed to seed event %q", entry.Title)
		}
	}
	return len(seed.Calendar), nil
}

func parseSeedTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range seedLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognized time %q", s)
}
