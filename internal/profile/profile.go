package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/slotsense/server/service/schedule"
)

// Profile is configuration to start the resolver.
type Profile struct {
	// LLM configuration (OpenAI-compatible protocol).
	// All providers (zai, deepseek, openai, siliconflow, ollama) use the same config.
	LLMProvider  string  // Provider identifier: zai, deepseek, openai, siliconflow, dashscope, openrouter, ollama
	LLMAPIKey    string  // API key; the model extractor is disabled without one
	LLMBaseURL   string  // Base URL (optional, has default per provider)
	LLMModel     string  // Model name: glm-4.7, deepseek-chat, gpt-4o-mini, etc.
	LLMTimeout   int     // Request timeout in seconds (default: 30)
	LLMRateLimit float64 // Model calls per second (default: 2)

	// Scheduling configuration
	Timezone            string
	WorkDays            string // "Mon-Fri", "Mon,Wed,Fri" or "all"
	WorkStart           int
	WorkEnd             int
	SlotGranularity     time.Duration
	MatchWindow         time.Duration
	CallTimeout         time.Duration
	MaxAlternatives     int
	ConfidenceThreshold float64
	DryRun              bool
	EventFilter         string // CEL expression over events; empty keeps all

	// Conversation state configuration
	ConversationBackend  string // memory or redis
	ConversationTTL      time.Duration
	ConversationCapacity int
	RedisURL             string

	// NATS request/reply adapter; disabled without a URL.
	NATSURL     string
	NATSSubject string

	// Other configurations
	Mode          string
	Addr          string
	Driver        string
	DSN           string
	Data          string
	Version       string
	SeedFile      string
	Port          int
	MaxConcurrent int

	location *time.Location
	workDays []time.Weekday
}

// Provider default configurations for LLM.
// Used when SLOTSENSE_LLM_BASE_URL is not explicitly set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"zai": {
		BaseURL: "https://open.bigmodel.cn/api/paas/v4",
		Model:   "glm-4.7",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-7B-Instruct",
	},
	"dashscope": {
		BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1",
		Model:   "qwen-turbo-latest",
	},
	"openrouter": {
		BaseURL: "https://openrouter.ai/api/v1",
		Model:   "deepseek/deepseek-chat",
	},
	"ollama": {
		BaseURL: "http://localhost:11434/v1",
		Model:   "llama3.1",
	},
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if an LLM API key is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.LLMAPIKey != ""
}

// Location returns the resolved timezone. Valid after Validate.
func (p *Profile) Location() *time.Location {
	if p.location == nil {
		return time.Local
	}
	return p.location
}

// WorkingHours returns the configured working window. Valid after Validate.
func (p *Profile) WorkingHours() schedule.WorkingHours {
	return schedule.WorkingHours{
		Location:  p.Location(),
		Days:      append([]time.Weekday(nil), p.workDays...),
		StartHour: p.WorkStart,
		EndHour:   p.WorkEnd,
	}
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		slog.Warn("Ignoring invalid integer setting", "key", key, "value", value)
	}
	return defaultValue
}

func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		slog.Warn("Ignoring invalid number setting", "key", key, "value", value)
	}
	return defaultValue
}

func getEnvOrDefaultDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		slog.Warn("Ignoring invalid duration setting", "key", key, "value", value)
	}
	return defaultValue
}

// FromEnv fills settings that were not set by flags from SLOTSENSE_* environment
// variables, falling back to defaults.
func (p *Profile) FromEnv() {
	// LLM configuration
	p.LLMProvider = firstString(p.LLMProvider, getEnvOrDefault("SLOTSENSE_LLM_PROVIDER", "openai"))
	p.LLMAPIKey = firstString(p.LLMAPIKey, getEnvOrDefault("SLOTSENSE_LLM_API_KEY", ""))
	p.LLMBaseURL = firstString(p.LLMBaseURL, getEnvOrDefault("SLOTSENSE_LLM_BASE_URL", ""))
	p.LLMModel = firstString(p.LLMModel, getEnvOrDefault("SLOTSENSE_LLM_MODEL", ""))
	if p.LLMTimeout == 0 {
		p.LLMTimeout = getEnvOrDefaultInt("SLOTSENSE_LLM_TIMEOUT_SECONDS", 30)
	}
	if p.LLMRateLimit == 0 {
		p.LLMRateLimit = getEnvOrDefaultFloat("SLOTSENSE_LLM_RATE_LIMIT", 2)
	}

	// Validate and apply provider defaults if not explicitly set
	if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
		slog.Warn("Unknown LLM provider, using default: openai", "provider", p.LLMProvider)
		p.LLMProvider = "openai"
	}
	defaults := llmProviderDefaults[p.LLMProvider]
	p.LLMBaseURL = firstString(p.LLMBaseURL, defaults.BaseURL)
	p.LLMModel = firstString(p.LLMModel, defaults.Model)

	// Scheduling configuration
	p.Timezone = firstString(p.Timezone, getEnvOrDefault("SLOTSENSE_TIMEZONE", "Local"))
	p.WorkDays = firstString(p.WorkDays, getEnvOrDefault("SLOTSENSE_WORK_DAYS", "Mon-Fri"))
	if p.WorkStart == 0 && p.WorkEnd == 0 {
		p.WorkStart = getEnvOrDefaultInt("SLOTSENSE_WORK_START", 9)
		p.WorkEnd = getEnvOrDefaultInt("SLOTSENSE_WORK_END", 17)
	}
	if p.SlotGranularity == 0 {
		p.SlotGranularity = getEnvOrDefaultDuration("SLOTSENSE_SLOT_GRANULARITY", 30*time.Minute)
	}
	if p.MatchWindow == 0 {
		p.MatchWindow = getEnvOrDefaultDuration("SLOTSENSE_MATCH_WINDOW", 30*24*time.Hour)
	}
	if p.CallTimeout == 0 {
		p.CallTimeout = getEnvOrDefaultDuration("SLOTSENSE_CALL_TIMEOUT", 10*time.Second)
	}
	if p.MaxAlternatives == 0 {
		p.MaxAlternatives = getEnvOrDefaultInt("SLOTSENSE_MAX_ALTERNATIVES", 3)
	}
	if p.ConfidenceThreshold == 0 {
		p.ConfidenceThreshold = getEnvOrDefaultFloat("SLOTSENSE_CONFIDENCE_THRESHOLD", 0.6)
	}
	p.DryRun = p.DryRun || getEnvOrDefault("SLOTSENSE_DRY_RUN", "false") == "true"
	p.EventFilter = firstString(p.EventFilter, getEnvOrDefault("SLOTSENSE_EVENT_FILTER", ""))

	// Conversation state configuration
	p.ConversationBackend = firstString(p.ConversationBackend, getEnvOrDefault("SLOTSENSE_CONVERSATION_BACKEND", "memory"))
	if p.ConversationTTL == 0 {
		p.ConversationTTL = getEnvOrDefaultDuration("SLOTSENSE_CONVERSATION_TTL", 30*time.Minute)
	}
	if p.ConversationCapacity == 0 {
		p.ConversationCapacity = getEnvOrDefaultInt("SLOTSENSE_CONVERSATION_CAPACITY", 10000)
	}
	p.RedisURL = firstString(p.RedisURL, getEnvOrDefault("SLOTSENSE_REDIS_URL", ""))

	// NATS configuration
	p.NATSURL = firstString(p.NATSURL, getEnvOrDefault("SLOTSENSE_NATS_URL", ""))
	p.NATSSubject = firstString(p.NATSSubject, getEnvOrDefault("SLOTSENSE_NATS_SUBJECT", "slotsense.resolve"))

	if p.MaxConcurrent == 0 {
		p.MaxConcurrent = getEnvOrDefaultInt("SLOTSENSE_MAX_CONCURRENT", 64)
	}
	p.SeedFile = firstString(p.SeedFile, getEnvOrDefault("SLOTSENSE_SEED_FILE", ""))
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// parseWorkDays reads "Mon-Fri", "Mon,Wed,Fri" or "all". An empty result
// means every day.
func parseWorkDays(spec string) ([]time.Weekday, error) {
	spec = strings.ToLower(strings.TrimSpace(spec))
	if spec == "" || spec == "all" || spec == "*" {
		return nil, nil
	}
	lookup := func(name string) (time.Weekday, error) {
		name = strings.TrimSpace(name)
		if len(name) >= 3 {
			if d, ok := weekdays[name[:3]]; ok {
				return d, nil
			}
		}
		return 0, errors.Errorf("unknown weekday %q", name)
	}

	var days []time.Weekday
	for _, part := range strings.Split(spec, ",") {
		from, to, isRange := strings.Cut(part, "-")
		start, err := lookup(from)
		if err != nil {
			return nil, err
		}
		if !isRange {
			days = append(days, start)
			continue
		}
		end, err := lookup(to)
		if err != nil {
			return nil, err
		}
		for d := start; ; d = (d + 1) % 7 {
			days = append(days, d)
			if d == end {
				break
			}
		}
	}
	return days, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}
	if p.Driver == "" {
		p.Driver = "sqlite"
	}

	loc, err := loadLocation(p.Timezone)
	if err != nil {
		return err
	}
	p.location = loc

	days, err := parseWorkDays(p.WorkDays)
	if err != nil {
		return errors.Wrap(err, "invalid work days")
	}
	p.workDays = days
	if err := p.WorkingHours().Validate(); err != nil {
		return err
	}

	switch {
	case p.SlotGranularity <= 0:
		return errors.New("slot granularity must be positive")
	case p.CallTimeout <= 0:
		return errors.New("call timeout must be positive")
	case p.MatchWindow < 24*time.Hour:
		return errors.New("match window must be at least one day")
	case p.MaxAlternatives < 1:
		return errors.New("max alternatives must be at least 1")
	case p.ConfidenceThreshold <= 0 || p.ConfidenceThreshold > 1:
		return errors.Errorf("confidence threshold must be in (0, 1], got %v", p.ConfidenceThreshold)
	}

	switch p.ConversationBackend {
	case "memory":
	case "redis":
		if p.RedisURL == "" {
			return errors.New("redis conversation backend requires a redis url")
		}
	default:
		return errors.Errorf("unknown conversation backend %q", p.ConversationBackend)
	}

	switch p.Driver {
	case "memory":
		return nil
	case "postgres":
		if p.DSN == "" {
			return errors.New("postgres driver requires a dsn")
		}
		return nil
	case "sqlite":
	default:
		return errors.Errorf("unsupported driver %q", p.Driver)
	}

	if p.DSN != "" {
		return nil
	}
	if p.Data == "" {
		p.Data = "."
	}
	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir
	p.DSN = filepath.Join(dataDir, fmt.Sprintf("slotsense_%s.db", p.Mode))
	return nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid timezone %q", name)
	}
	return loc, nil
}
