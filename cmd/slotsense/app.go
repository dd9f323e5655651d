package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/hrygo/slotsense/ai/agents/scheduler"
	"github.com/hrygo/slotsense/ai/conversation"
	"github.com/hrygo/slotsense/ai/core/llm"
	"github.com/hrygo/slotsense/ai/intent"
	"github.com/hrygo/slotsense/ai/metrics"
	"github.com/hrygo/slotsense/ai/timeparse"
	"github.com/hrygo/slotsense/internal/profile"
	"github.com/hrygo/slotsense/server/service/mail"
	"github.com/hrygo/slotsense/server/service/schedule"
	"github.com/hrygo/slotsense/store"
	"github.com/hrygo/slotsense/store/db"
)

// app holds the wired collaborators shared by serve and resolve.
type app struct {
	profile   *profile.Profile
	store     *store.Store
	scheduler *scheduler.Scheduler
	exporter  *metrics.PrometheusExporter
	closers   []func() error
}

func newApp(ctx context.Context, p *profile.Profile) (*app, error) {
	dbDriver, err := db.NewDBDriver(p)
	if err != nil {
		printDatabaseError(err, p)
		return nil, err
	}
	a := &app{profile: p, closers: []func() error{dbDriver.Close}}

	a.store = store.New(dbDriver)
	if err := a.store.Migrate(ctx); err != nil {
		a.Close()
		printDatabaseError(err, p)
		return nil, err
	}

	var mailbox mail.Mailbox
	if p.SeedFile != "" {
		seeded, err := a.seed(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		if seeded != nil {
			mailbox = seeded
		}
	}

	states, err := a.conversationStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.exporter = metrics.NewPrometheusExporter(metrics.DefaultConfig())

	cfg := scheduler.DefaultConfig(p.Location())
	cfg.WorkingHours = p.WorkingHours()
	cfg.Granularity = p.SlotGranularity
	cfg.MaxAlternatives = p.MaxAlternatives
	cfg.MatchWindow = p.MatchWindow
	cfg.CallTimeout = p.CallTimeout
	cfg.ConfidenceThreshold = p.ConfidenceThreshold
	cfg.DryRun = p.DryRun
	if p.EventFilter != "" {
		if err := a.store.CompileFilter(p.EventFilter); err != nil {
			a.Close()
			return nil, errors.Wrap(err, "invalid event filter")
		}
		cfg.EventFilter = p.EventFilter
		slog.Info("event filter enabled", "expression", p.EventFilter)
	}

	opts := []scheduler.Option{scheduler.WithRecorder(a.exporter)}
	if mailbox != nil {
		opts = append(opts, scheduler.WithMailbox(mailbox))
	}
	a.scheduler, err = scheduler.New(cfg, a.store, a.extractor(), states, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// seed fills an empty calendar from the seed file. The returned mailbox is
// nil when the file has no messages.
func (a *app) seed(ctx context.Context) (*mail.MemoryMailbox, error) {
	f, err := os.Open(a.profile.SeedFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open seed file")
	}
	defer f.Close()

	seed, err := store.LoadSeed(f)
	if err != nil {
		return nil, err
	}

	// Restarts must not duplicate seeded events in a persistent calendar.
	existing, err := a.store.ListEvents(ctx, schedule.Interval{Start: time.Unix(0, 0), End: time.Now().AddDate(100, 0, 0)}, nil)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		n, err := a.store.SeedCalendar(ctx, seed, a.profile.Location())
		if err != nil {
			return nil, err
		}
		slog.Info("seeded calendar", "events", n, "file", a.profile.SeedFile)
	} else {
		slog.Info("calendar is not empty, skipping seed events", "existing", len(existing))
	}

	if len(seed.Mailbox) == 0 {
		return nil, nil
	}
	return mail.NewMemoryMailbox(seed.Mailbox...), nil
}

func (a *app) conversationStore(ctx context.Context) (conversation.Store, error) {
	p := a.profile
	if p.ConversationBackend == "redis" {
		rs, err := conversation.NewRedisStore(ctx, p.RedisURL, p.ConversationTTL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rs.Close)
		slog.Info("conversation state stored in redis", "ttl", p.ConversationTTL)
		return rs, nil
	}
	return conversation.NewMemoryStore(p.ConversationCapacity, p.ConversationTTL), nil
}

// extractor builds the intent chain. Without an API key every request is
// served by the keyword parser.
func (a *app) extractor() intent.Extractor {
	p := a.profile
	hours := p.WorkingHours()
	normalizer := timeparse.New(p.Location(), hours.StartHour, hours.EndHour)
	keywords := intent.NewKeywordParser(normalizer)

	if !p.IsAIEnabled() {
		slog.Info("AI features disabled, using keyword intent parsing")
		return intent.NewFallbackChain(nil, keywords)
	}
	svc, err := llm.NewService(&llm.Config{
		Provider: p.LLMProvider,
		Model:    p.LLMModel,
		APIKey:   p.LLMAPIKey,
		BaseURL:  p.LLMBaseURL,
		Timeout:  time.Duration(p.LLMTimeout) * time.Second,
		JSONMode: true,
	})
	if err != nil {
		slog.Warn("Failed to initialize LLM service",
			"provider", p.LLMProvider,
			"error", err,
			"note", "falling back to keyword intent parsing",
		)
		return intent.NewFallbackChain(nil, keywords)
	}
	slog.Info("LLM service initialized", "provider", p.LLMProvider, "model", p.LLMModel)
	model := intent.NewModelExtractor(svc, normalizer, rate.Limit(p.LLMRateLimit), 1)
	return intent.NewFallbackChain(model, keywords)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("failed to close resource", "error", err)
		}
	}
	a.closers = nil
}
