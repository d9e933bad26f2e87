// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Executor names accepted by EXECUTOR.
const (
	ExecutorSQLite = "sqlite"
	ExecutorDocker = "docker"
	ExecutorGRPC   = "grpc"
)

// Config holds all server configuration.
type Config struct {
	Host               string
	Port               string
	DBFile             string
	IndexHTML          string
	LogLevel           string
	CORSAllowedOrigins []string
	OpenAI             OpenAIConfig
	Agent              AgentConfig
	Sandbox            SandboxConfig
	ConversationLog    ConversationLogConfig
}

// OpenAIConfig configures the chat completions client.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// AgentConfig tunes the analytical agent.
type AgentConfig struct {
	PromptFile        string
	MaxIterations     int
	MaxResultRows     int
	Timeout           time.Duration
	MemoryMaxMessages int
}

// SandboxConfig selects where model-generated queries run.
type SandboxConfig struct {
	Executor string
	Addr     string
	Image    string
	Timeout  time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Host:               getEnv("HOST", "127.0.0.1"),
		Port:               getEnv("PORT", "8000"),
		DBFile:             getEnv("DB_FILE", ""),
		IndexHTML:          getEnv("INDEX_HTML", "index.html"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		OpenAI: OpenAIConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o"),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
		},
		Agent: AgentConfig{
			PromptFile:        getEnv("PROMPT_FILE", ""),
			MaxIterations:     getEnvInt("AGENT_MAX_ITERATIONS", 15),
			MaxResultRows:     getEnvInt("AGENT_MAX_RESULT_ROWS", 50),
			Timeout:           getEnvDuration("AGENT_TIMEOUT", 5*time.Minute),
			MemoryMaxMessages: getEnvInt("MEMORY_MAX_MESSAGES", 0),
		},
		Sandbox: SandboxConfig{
			Executor: strings.ToLower(getEnv("EXECUTOR", ExecutorSQLite)),
			Addr:     getEnv("SANDBOX_ADDR", ""),
			Image:    getEnv("SANDBOX_IMAGE", "keinos/sqlite3:latest"),
			Timeout:  getEnvDuration("SANDBOX_TIMEOUT", 30*time.Second),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:   getEnvBool("CONVERSATION_LOG_ENABLED", false),
			Dir:       getEnv("CONVERSATION_LOG_DIR", "./data/logs"),
			QueueSize: queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return errors.New("OPENAI_API_KEY cannot be empty")
	}
	if c.DBFile == "" {
		return errors.New("DB_FILE cannot be empty")
	}
	if c.Port == "" {
		return errors.New("PORT cannot be empty")
	}
	if c.OpenAI.Model == "" {
		return errors.New("OPENAI_MODEL cannot be empty")
	}
	if c.Agent.MaxIterations <= 0 {
		return errors.New("AGENT_MAX_ITERATIONS must be > 0")
	}
	if c.Agent.MaxResultRows <= 0 {
		return errors.New("AGENT_MAX_RESULT_ROWS must be > 0")
	}
	if c.Agent.MemoryMaxMessages < 0 {
		return errors.New("MEMORY_MAX_MESSAGES must be >= 0")
	}
	switch c.Sandbox.Executor {
	case ExecutorSQLite:
	case ExecutorDocker:
		if c.Sandbox.Image == "" {
			return errors.New("SANDBOX_IMAGE cannot be empty when EXECUTOR=docker")
		}
	case ExecutorGRPC:
		if c.Sandbox.Addr == "" {
			return errors.New("SANDBOX_ADDR cannot be empty when EXECUTOR=grpc")
		}
	default:
		return fmt.Errorf("unknown EXECUTOR %q", c.Sandbox.Executor)
	}
	if c.ConversationLog.Enabled && c.ConversationLog.Dir == "" {
		return errors.New("CONVERSATION_LOG_DIR cannot be empty")
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// SlogLevel maps LOG_LEVEL to a slog level. Unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	return slogLevel(c.LogLevel)
}

// SlogLevel maps LOG_LEVEL to a slog level. Unknown values mean info.
func (c *SandboxServer) SlogLevel() slog.Level {
	return slogLevel(c.LogLevel)
}

func slogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SandboxServer configures the standalone gRPC sandbox.
type SandboxServer struct {
	ListenAddr    string
	MaxResultRows int
	Timeout       time.Duration
	LogLevel      string
}

// LoadSandboxServer reads sandbox server configuration from the environment.
func LoadSandboxServer() (*SandboxServer, error) {
	cfg := &SandboxServer{
		ListenAddr:    getEnv("SANDBOX_LISTEN_ADDR", "127.0.0.1:50051"),
		MaxResultRows: getEnvInt("AGENT_MAX_RESULT_ROWS", 50),
		Timeout:       getEnvDuration("SANDBOX_TIMEOUT", 30*time.Second),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}
	if cfg.ListenAddr == "" {
		return nil, errors.New("SANDBOX_LISTEN_ADDR cannot be empty")
	}
	if cfg.MaxResultRows <= 0 {
		return nil, errors.New("AGENT_MAX_RESULT_ROWS must be > 0")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
