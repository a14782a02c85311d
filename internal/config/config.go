// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/michaelongaro/Squeak-sub000/internal/game"
)

// Config is the process configuration, read from the environment after an optional .env file.
type Config struct {
	Port        string
	JWTSecret   string
	TokenTTL    time.Duration
	DatabaseURL string // Empty disables result persistence.
	RedisAddr   string // Empty disables the action historian.
	RedisDB     int
	AllowOrigin []string

	LogLevel  string
	LogFormat string // "text" or "json"

	Game game.Settings
}

// Load reads .env (if present) and the environment.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	d := game.DefaultSettings()
	cfg := &Config{
		Port:        getenv("PORT", "8080"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		LogFormat:   getenv("LOG_FORMAT", "text"),
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowOrigin = append(cfg.AllowOrigin, o)
			}
		}
	}

	var err error
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}

	g := &cfg.Game
	if g.MaxPlayers, err = getInt("ROOM_MAX_PLAYERS", d.MaxPlayers); err != nil {
		return nil, err
	}
	if g.PointsToWin, err = getInt("POINTS_TO_WIN", d.PointsToWin); err != nil {
		return nil, err
	}
	if g.VoteTimeout, err = getDuration("VOTE_TIMEOUT", d.VoteTimeout); err != nil {
		return nil, err
	}
	if g.VoteLockout, err = getDuration("VOTE_LOCKOUT", d.VoteLockout); err != nil {
		return nil, err
	}
	if g.RotationCeiling, err = getInt("ROTATION_CEILING", d.RotationCeiling); err != nil {
		return nil, err
	}
	if g.ReconnectGrace, err = getDuration("RECONNECT_GRACE", d.ReconnectGrace); err != nil {
		return nil, err
	}
	if g.RoundIntermission, err = getDuration("ROUND_INTERMISSION", d.RoundIntermission); err != nil {
		return nil, err
	}
	g.InboxSize = d.InboxSize

	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET is not set; using an insecure development secret.")
		cfg.JWTSecret = "squeak-dev-secret"
	}
	return cfg, nil
}

// ConfigureLogging applies the level and formatter to the standard logrus logger.
func (c *Config) ConfigureLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.Warnf("Unknown LOG_LEVEL %q, using info.", c.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if strings.EqualFold(c.LogFormat, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// getDuration accepts Go duration strings ("45s") or a bare number of seconds.
func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
