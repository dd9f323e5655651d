package store

import (
	"strings"

	"github.com/google/cel-go/cel"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/hrygo/slotsense/server/service/schedule"
)

// Filter is a compiled CEL event filter.
type Filter struct {
	program cel.Program
	source  string
}

// FilterCache compiles CEL expressions once and keeps the programs in an LRU.
type FilterCache struct {
	env      *cel.Env
	programs *lru.Cache[string, *Filter]
}

// NewFilterCache creates a cache holding up to size compiled programs.
func NewFilterCache(size int) *FilterCache {
	if size <= 0 {
		size = 128
	}
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("title", cel.StringType),
		cel.Variable("description", cel.StringType),
		cel.Variable("location", cel.StringType),
		cel.Variable("calendar_id", cel.StringType),
		cel.Variable("status", cel.StringType),
		cel.Variable("attendees", cel.ListType(cel.StringType)),
		cel.Variable("start", cel.TimestampType),
		cel.Variable("end", cel.TimestampType),
		cel.Variable("duration_minutes", cel.IntType),
	)
	if err != nil {
		// The declarations are static; failing here is a programming error.
		panic(errors.Wrap(err, "failed to create CEL environment"))
	}
	programs, err := lru.New[string, *Filter](size)
	if err != nil {
		panic(err)
	}
	return &FilterCache{env: env, programs: programs}
}

// Get returns the compiled filter for expr, compiling it on first use.
// Invalid expressions yield a *schedule.ValidationError on field "filter".
func (c *FilterCache) Get(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if f, ok := c.programs.Get(expr); ok {
		return f, nil
	}

	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, &schedule.ValidationError{Field: "filter", Reason: issues.Err().Error()}
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, &schedule.ValidationError{Field: "filter", Reason: "expression must evaluate to a bool"}
	}
	program, err := c.env.Program(ast)
	if err != nil {
		return nil, &schedule.ValidationError{Field: "filter", Reason: err.Error()}
	}

	f := &Filter{program: program, source: expr}
	c.programs.Add(expr, f)
	return f, nil
}

// Len returns the number of cached programs.
func (c *FilterCache) Len() int {
	return c.programs.Len()
}

// Match evaluates the filter against e.
func (f *Filter) Match(e *schedule.Event) (bool, error) {
	attendees := e.Attendees
	if attendees == nil {
		attendees = []string{}
	}
	out, _, err := f.program.Eval(map[string]any{
		"id":               e.ID,
		"title":            e.Title,
		"description":      e.Description,
		"location":         e.Location,
		"calendar_id":      e.CalendarID,
		"status":           string(e.Status),
		"attendees":        attendees,
		"start":            e.Start,
		"end":              e.End,
		"duration_minutes": int64(e.End.Sub(e.Start).Minutes()),
	})
	if err != nil {
		return false, errors.Wrapf(err, "failed to evaluate filter %q", f.source)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, errors.Errorf("filter %q did not return a bool", f.source)
	}
	return matched, nil
}
