package server

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Port        int    `env:"PORT,default=8080"`
	DatabaseURL string `env:"DATABASE_URL,default=postgres://localhost:5432/bisca?sslmode=disable"`

	// ReconnectGrace is how long a disconnected player keeps their seat.
	ReconnectGrace time.Duration `env:"RECONNECT_GRACE,default=120s"`

	TurnTimeout time.Duration `env:"TURN_TIMEOUT,default=30s"`
	TurnTick    time.Duration `env:"TURN_TICK,default=5s"`

	BotMaxAttempts int           `env:"BOT_MAX_ATTEMPTS,default=4"`
	BotBackoffBase time.Duration `env:"BOT_BACKOFF_BASE,default=250ms"`

	SnapshotFreshness time.Duration `env:"SNAPSHOT_FRESHNESS,default=30s"`
	SnapshotTTL       time.Duration `env:"SNAPSHOT_TTL,default=5m"`

	// NextGameDelay is the pause between games of a multi-game match.
	NextGameDelay time.Duration `env:"NEXT_GAME_DELAY,default=5s"`

	DefaultWinsNeeded int `env:"WINS_NEEDED,default=4"`

	RateLimitPerSecond int `env:"RATE_LIMIT_PER_SECOND,default=10"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config from environment: %w", err)
	}
	return cfg, nil
}
