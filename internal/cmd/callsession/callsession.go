// Package callsession parses call session command flags and launches the
// runtime.
package callsession

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/platform/cmd"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/app"
)

// Config holds call session command configuration. Env tags are read with
// the CALLSESSION_ prefix.
type Config struct {
	HTTPAddr          string        `env:"HTTP_ADDR" envDefault:":8095"`
	GRPCPort          int           `env:"GRPC_PORT" envDefault:"8096"`
	Store             string        `env:"STORE" envDefault:"bbolt"`
	DBPath            string        `env:"DB_PATH" envDefault:"data/callsession.db"`
	RedisAddr         string        `env:"REDIS_ADDR"`
	RedisPassword     string        `env:"REDIS_PASSWORD"`
	RedisDB           int           `env:"REDIS_DB" envDefault:"0"`
	ChannelURL        string        `env:"CHANNEL_URL"`
	OccupancyDelay    time.Duration `env:"OCCUPANCY_DELAY" envDefault:"800ms"`
	MaxTriggerAge     time.Duration `env:"MAX_TRIGGER_AGE" envDefault:"15s"`
	StaleAfter        time.Duration `env:"STALE_AFTER" envDefault:"5m"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"5s"`
	HeartbeatTTL      time.Duration `env:"HEARTBEAT_TTL" envDefault:"15s"`
	ColdStartWindow   time.Duration `env:"COLD_START_WINDOW" envDefault:"10s"`
	JoinTimeout       time.Duration `env:"JOIN_TIMEOUT" envDefault:"5s"`
	OccupancyTimeout  time.Duration `env:"OCCUPANCY_TIMEOUT" envDefault:"3s"`
	LeaveTimeout      time.Duration `env:"LEAVE_TIMEOUT" envDefault:"5s"`
	VolumeCommand     string        `env:"VOLUME_COMMAND"`
	Locale            string        `env:"LOCALE" envDefault:"en"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The webhook, control API, and UI listen address")
	fs.IntVar(&cfg.GRPCPort, "grpc-port", cfg.GRPCPort, "The health gRPC server port")
	fs.StringVar(&cfg.Store, "store", cfg.Store, "Session store backend: bbolt, sqlite, or redis")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The bbolt or SQLite database path")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "The Redis address for the redis store")
	fs.StringVar(&cfg.ChannelURL, "channel-url", cfg.ChannelURL, "The signalling server websocket URL")
	fs.DurationVar(&cfg.OccupancyDelay, "occupancy-delay", cfg.OccupancyDelay, "Delay between join and the occupancy check")
	fs.DurationVar(&cfg.OccupancyTimeout, "occupancy-timeout", cfg.OccupancyTimeout, "Timeout for the single occupancy query")
	fs.DurationVar(&cfg.MaxTriggerAge, "max-trigger-age", cfg.MaxTriggerAge, "Triggers older than this are dropped")
	fs.DurationVar(&cfg.StaleAfter, "stale-after", cfg.StaleAfter, "Persisted records older than this read as absent")
	fs.DurationVar(&cfg.HeartbeatInterval, "heartbeat-interval", cfg.HeartbeatInterval, "Orchestrator heartbeat interval")
	fs.DurationVar(&cfg.HeartbeatTTL, "heartbeat-ttl", cfg.HeartbeatTTL, "Heartbeat age after which an owner counts as gone")
	fs.StringVar(&cfg.VolumeCommand, "volume-command", cfg.VolumeCommand, "Command that raises the output volume to maximum")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "Notification locale")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the call session runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceCallSession, func(ctx context.Context) error {
		return app.Run(ctx, runtimeConfig(cfg))
	})
}

func runtimeConfig(cfg Config) app.RuntimeConfig {
	return app.RuntimeConfig{
		HTTPAddr:          cfg.HTTPAddr,
		GRPCAddr:          fmt.Sprintf(":%d", cfg.GRPCPort),
		Store:             cfg.Store,
		DBPath:            cfg.DBPath,
		RedisAddr:         cfg.RedisAddr,
		RedisPassword:     cfg.RedisPassword,
		RedisDB:           cfg.RedisDB,
		ChannelURL:        cfg.ChannelURL,
		OccupancyDelay:    cfg.OccupancyDelay,
		MaxTriggerAge:     cfg.MaxTriggerAge,
		StaleAfter:        cfg.StaleAfter,
		HeartbeatInterval: cfg.HeartbeatInterval,
		HeartbeatTTL:      cfg.HeartbeatTTL,
		ColdStartWindow:   cfg.ColdStartWindow,
		JoinTimeout:       cfg.JoinTimeout,
		OccupancyTimeout:  cfg.OccupancyTimeout,
		LeaveTimeout:      cfg.LeaveTimeout,
		VolumeCommand:     cfg.VolumeCommand,
		Locale:            cfg.Locale,
	}
}
