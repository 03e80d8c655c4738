package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/draftroom/go/internal/draftroom/engine"
	"github.com/mcdev12/draftroom/go/internal/draftroom/events"
	"github.com/mcdev12/draftroom/go/internal/draftroom/transport"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds every setting of the draft room gateway.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	NATS      NATSConfig      `yaml:"nats"`
	Draft     engine.Rules    `yaml:"draft"`
	AutoPick  AutoPickConfig  `yaml:"autopick"`
	WebSocket WebSocketConfig `yaml:"websocket"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// NATSConfig is empty-URL disabled.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
	Stream        string `yaml:"stream"`
}

type AutoPickConfig struct {
	Strategy     string `yaml:"strategy"`
	RankingsFile string `yaml:"rankings_file"`
}

type WebSocketConfig struct {
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	MaxMessageSize int64         `yaml:"max_message_size"`
	SendBufferSize int           `yaml:"send_buffer_size"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	conn := transport.DefaultConnectionConfig()
	return Config{
		Server: ServerConfig{
			Port:            "8081",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		NATS: NATSConfig{
			SubjectPrefix: "draftroom",
		},
		Draft: engine.DefaultRules(),
		AutoPick: AutoPickConfig{
			Strategy: "placeholder",
		},
		WebSocket: WebSocketConfig{
			WriteTimeout:   conn.WriteTimeout,
			ReadTimeout:    conn.ReadTimeout,
			PingInterval:   conn.PingInterval,
			MaxMessageSize: conn.MaxMessageSize,
			SendBufferSize: conn.SendBufferSize,
		},
	}
}

// Load reads .env files (missing files are only logged), the optional YAML
// file named by DRAFTROOM_CONFIG, then environment variables. Environment
// variables win over the file.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg := Default()
	if path := os.Getenv("DRAFTROOM_CONFIG"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.AllowedOrigins = getEnvAsList("ALLOWED_ORIGINS", c.Server.AllowedOrigins)
	c.Server.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", c.NATS.SubjectPrefix)
	c.NATS.Stream = getEnv("NATS_STREAM", c.NATS.Stream)

	c.Draft.LeagueSize = getEnvAsInt("DRAFT_LEAGUE_SIZE", c.Draft.LeagueSize)
	c.Draft.TotalRounds = getEnvAsInt("DRAFT_TOTAL_ROUNDS", c.Draft.TotalRounds)
	c.Draft.TimePerPickSec = getEnvAsInt("DRAFT_PICK_SECONDS", c.Draft.TimePerPickSec)
	c.Draft.Quorum = getEnvAsInt("DRAFT_QUORUM", c.Draft.Quorum)
	c.Draft.ChatHistory = getEnvAsInt("DRAFT_CHAT_HISTORY", c.Draft.ChatHistory)

	c.AutoPick.Strategy = getEnv("AUTOPICK_STRATEGY", c.AutoPick.Strategy)
	c.AutoPick.RankingsFile = getEnv("AUTOPICK_RANKINGS_FILE", c.AutoPick.RankingsFile)

	c.WebSocket.WriteTimeout = getEnvAsDuration("WS_WRITE_TIMEOUT", c.WebSocket.WriteTimeout)
	c.WebSocket.ReadTimeout = getEnvAsDuration("WS_READ_TIMEOUT", c.WebSocket.ReadTimeout)
	c.WebSocket.PingInterval = getEnvAsDuration("WS_PING_INTERVAL", c.WebSocket.PingInterval)
	c.WebSocket.MaxMessageSize = int64(getEnvAsInt("WS_MAX_MESSAGE_SIZE", int(c.WebSocket.MaxMessageSize)))
	c.WebSocket.SendBufferSize = getEnvAsInt("WS_SEND_BUFFER_SIZE", c.WebSocket.SendBufferSize)
}

// Validate rejects rules the draft engine cannot run with.
func (c Config) Validate() error {
	var problems []string
	if c.Server.Port == "" {
		problems = append(problems, "port is required")
	}
	if c.Draft.LeagueSize < 1 {
		problems = append(problems, "draft league size must be positive")
	}
	if c.Draft.TotalRounds < 1 {
		problems = append(problems, "draft total rounds must be positive")
	}
	if c.Draft.TimePerPickSec < 1 {
		problems = append(problems, "draft pick seconds must be positive")
	}
	if c.Draft.Quorum < 1 {
		problems = append(problems, "draft quorum must be at least 1")
	}
	if c.Draft.ChatHistory < 1 {
		problems = append(problems, "draft chat history must be positive")
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		problems = append(problems, "websocket read timeout must exceed a positive ping interval")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// ConnectionConfig builds the websocket connection settings.
func (c Config) ConnectionConfig() transport.ConnectionConfig {
	conn := transport.DefaultConnectionConfig()
	conn.WriteTimeout = c.WebSocket.WriteTimeout
	conn.ReadTimeout = c.WebSocket.ReadTimeout
	conn.PingInterval = c.WebSocket.PingInterval
	conn.MaxMessageSize = c.WebSocket.MaxMessageSize
	conn.SendBufferSize = c.WebSocket.SendBufferSize
	conn.CheckOrigin = c.checkOrigin
	return conn
}

func (c Config) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range c.Server.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// EventsConfig builds the NATS bus settings.
func (c Config) EventsConfig() events.NATSConfig {
	cfg := events.DefaultNATSConfig()
	cfg.URL = c.NATS.URL
	cfg.SubjectPrefix = c.NATS.SubjectPrefix
	cfg.StreamName = c.NATS.Stream
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("ignoring non-integer environment value")
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Warn().Str("key", key).Str("value", value).Msg("ignoring invalid duration environment value")
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
