package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hrygo/slotsense/internal/profile"
	"github.com/hrygo/slotsense/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "slotsense",
	Short:         `A conversational scheduling resolver. Turn plain-language requests into calendar decisions.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Only load .env for direct binary execution (not when running as systemd service)
		if !isRunningAsSystemdService() {
			_ = godotenv.Load()
		}
		return setupLogging(viper.GetString("log-level"))
	},
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 28090)

	flags := rootCmd.PersistentFlags()
	flags.String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	flags.String("addr", "", "address of server")
	flags.Int("port", 28090, "port of server")
	flags.String("data", "", "data directory")
	flags.String("driver", "sqlite", "calendar driver (sqlite, postgres, memory)")
	flags.String("dsn", "", "database source name(aka. DSN)")
	flags.String("seed", "", "YAML file with calendar events and mailbox messages loaded into an empty calendar")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	flags.String("timezone", "Local", "IANA timezone used for dates without a zone")
	flags.String("work-days", "Mon-Fri", `working days, e.g. "Mon-Fri", "Mon,Wed,Fri" or "all"`)
	flags.Int("work-start", 9, "first working hour")
	flags.Int("work-end", 17, "hour the working day ends")
	flags.Duration("slot-granularity", 0, "step between candidate slot starts (default 30m)")
	flags.Int("max-alternatives", 0, "alternatives proposed on a conflict (default 3)")
	flags.Duration("match-window", 0, "how far ahead events are matched by title (default 720h)")
	flags.Duration("call-timeout", 0, "timeout of one calendar call (default 10s)")
	flags.Float64("confidence-threshold", 0, "confidence below which an intent is flagged (default 0.6)")
	flags.Bool("dry-run", false, "return ready decisions without changing the calendar")
	flags.String("event-filter", "", `CEL expression selecting the events that block time and can be matched, e.g. 'status == "confirmed" && !title.startsWith("[FYI]")'`)

	flags.String("conversation-backend", "", "pending conversation store (memory, redis)")
	flags.Duration("conversation-ttl", 0, "idle time after which a pending conversation expires (default 30m)")
	flags.Int("conversation-capacity", 0, "pending conversations kept in memory (default 10000)")
	flags.String("redis-url", "", "redis url for the redis conversation backend")
	flags.String("nats-url", "", "NATS url; enables the request/reply adapter")
	flags.String("nats-subject", "", "NATS subject served (default slotsense.resolve)")
	flags.Int("max-concurrent", 0, "resolve requests handled at once over HTTP (default 64)")

	flags.String("llm-provider", "", "OpenAI-compatible provider (openai, deepseek, zai, siliconflow, dashscope, openrouter, ollama)")
	flags.String("llm-base-url", "", "override the provider base url")
	flags.String("llm-model", "", "model used for intent extraction")

	flags.VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(f.Name, f); err != nil {
			panic(err)
		}
	})

	viper.SetEnvPrefix("slotsense")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	rootCmd.AddCommand(serveCmd, resolveCmd, versionCmd)
}

// loadProfile builds the runtime profile from flags and environment.
func loadProfile() (*profile.Profile, error) {
	instanceProfile := &profile.Profile{
		Mode:                 viper.GetString("mode"),
		Addr:                 viper.GetString("addr"),
		Port:                 viper.GetInt("port"),
		Data:                 viper.GetString("data"),
		Driver:               viper.GetString("driver"),
		DSN:                  viper.GetString("dsn"),
		SeedFile:             viper.GetString("seed"),
		Timezone:             viper.GetString("timezone"),
		WorkDays:             viper.GetString("work-days"),
		WorkStart:            viper.GetInt("work-start"),
		WorkEnd:              viper.GetInt("work-end"),
		SlotGranularity:      viper.GetDuration("slot-granularity"),
		MaxAlternatives:      viper.GetInt("max-alternatives"),
		MatchWindow:          viper.GetDuration("match-window"),
		CallTimeout:          viper.GetDuration("call-timeout"),
		ConfidenceThreshold:  viper.GetFloat64("confidence-threshold"),
		DryRun:               viper.GetBool("dry-run"),
		EventFilter:          viper.GetString("event-filter"),
		ConversationBackend:  viper.GetString("conversation-backend"),
		ConversationTTL:      viper.GetDuration("conversation-ttl"),
		ConversationCapacity: viper.GetInt("conversation-capacity"),
		RedisURL:             viper.GetString("redis-url"),
		NATSURL:              viper.GetString("nats-url"),
		NATSSubject:          viper.GetString("nats-subject"),
		MaxConcurrent:        viper.GetInt("max-concurrent"),
		LLMProvider:          viper.GetString("llm-provider"),
		LLMBaseURL:           viper.GetString("llm-base-url"),
		LLMModel:             viper.GetString("llm-model"),
		Version:              version.GetCurrentVersion(viper.GetString("mode")),
	}
	instanceProfile.FromEnv()
	if err := instanceProfile.Validate(); err != nil {
		return nil, err
	}
	return instanceProfile, nil
}

func setupLogging(level string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return errors.Errorf("invalid log level %q", level)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
	return nil
}

// isRunningAsSystemdService detects if the process is running under systemd
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
