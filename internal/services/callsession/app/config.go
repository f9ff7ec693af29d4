package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/domain"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/orchestrator"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/recovery"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/storage"
	boltstore "github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/storage/bbolt"
	redisstore "github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/storage/redis"
	sqlitestore "github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/storage/sqlite"
)

// Store backends.
const (
	StoreBolt   = "bbolt"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

const (
	defaultHTTPAddr = ":8095"
	defaultGRPCAddr = ":8096"
	defaultDBPath   = "data/callsession.db"
	defaultLocale   = "en"
)

// RuntimeConfig controls call session startup and timing.
type RuntimeConfig struct {
	HTTPAddr          string
	GRPCAddr          string
	Store             string
	DBPath            string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	ChannelURL        string
	OccupancyDelay    time.Duration
	MaxTriggerAge     time.Duration
	StaleAfter        time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTTL      time.Duration
	ColdStartWindow   time.Duration
	JoinTimeout       time.Duration
	OccupancyTimeout  time.Duration
	LeaveTimeout      time.Duration
	VolumeCommand     string
	Locale            string
}

func (c RuntimeConfig) normalized() RuntimeConfig {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		c.HTTPAddr = defaultHTTPAddr
	}
	if strings.TrimSpace(c.GRPCAddr) == "" {
		c.GRPCAddr = defaultGRPCAddr
	}
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	if c.Store == "" {
		c.Store = StoreBolt
	}
	if strings.TrimSpace(c.DBPath) == "" {
		c.DBPath = defaultDBPath
	}
	if c.OccupancyDelay <= 0 {
		c.OccupancyDelay = orchestrator.DefaultOccupancyDelay
	}
	if c.MaxTriggerAge <= 0 {
		c.MaxTriggerAge = domain.DefaultMaxTriggerAge
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = storage.DefaultStaleAfter
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = orchestrator.DefaultHeartbeatInterval
	}
	if c.HeartbeatTTL <= 0 {
		c.HeartbeatTTL = recovery.DefaultHeartbeatTTL
	}
	if c.ColdStartWindow <= 0 {
		c.ColdStartWindow = orchestrator.DefaultColdStartWindow
	}
	if strings.TrimSpace(c.Locale) == "" {
		c.Locale = defaultLocale
	}
	return c
}

func (c RuntimeConfig) validate() error {
	if strings.TrimSpace(c.ChannelURL) == "" {
		return fmt.Errorf("channel url is required")
	}
	if c.HeartbeatTTL <= c.HeartbeatInterval {
		return fmt.Errorf("heartbeat ttl %s must exceed heartbeat interval %s", c.HeartbeatTTL, c.HeartbeatInterval)
	}
	switch c.Store {
	case StoreBolt, StoreSQLite:
	case StoreRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("redis address is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	return nil
}

func openStore(ctx context.Context, cfg RuntimeConfig) (storage.Store, error) {
	switch cfg.Store {
	case StoreBolt:
		store, err := boltstore.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open callsession bbolt store: %w", err)
		}
		return store, nil
	case StoreSQLite:
		store, err := sqlitestore.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open callsession sqlite store: %w", err)
		}
		return store, nil
	case StoreRedis:
		store, err := redisstore.Open(ctx, redisstore.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.StaleAfter,
		})
		if err != nil {
			return nil, fmt.Errorf("open callsession redis store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

func closeStore(store storage.Store) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		log.Printf("close callsession store: %v", err)
	}
}
