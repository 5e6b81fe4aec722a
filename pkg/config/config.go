package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	ChatIDModeCreate = "create"
	ChatIDModeGet    = "get"

	DefaultAPIURL = "https://api.mincaai-franciamexico.com"

	DefaultWelcomeMessage = "Bienvenue 👋 ! Je suis l'assistant virtuel de la Chambre de Commerce et d'Industrie Franco-mexicaine. Comment puis-je vous aider? || ¡Bienvenido 👋! Soy el asistente virtual de la Cámara de Comercio e Industria Franco-Mexicana. ¿En qué puedo ayudarle?"
)

// Config represents the application configuration
type Config struct {
	APIURL                string      `json:"api_url" env:"CCI_API_URL"`
	ChatIDMode            string      `json:"chat_id_mode" env:"CCI_CHAT_ID_MODE"` // "create" (POST) or "get" (GET)
	ChatType              string      `json:"chat_type" env:"CCI_CHAT_TYPE"`
	RequestTimeoutSeconds int         `json:"request_timeout_seconds" env:"CCI_REQUEST_TIMEOUT_SECONDS"`
	RevealIntervalMS      int         `json:"reveal_interval_ms" env:"CCI_REVEAL_INTERVAL_MS"`
	AssistantName         string      `json:"assistant_name" env:"CCI_ASSISTANT_NAME"`
	WelcomeMessage        string      `json:"welcome_message" env:"CCI_WELCOME_MESSAGE"`
	StateDir              string      `json:"state_dir" env:"CCI_STATE_DIR"`
	LogLevel              string      `json:"log_level" env:"CCI_LOG_LEVEL"`
	LogFormat             string      `json:"log_format" env:"CCI_LOG_FORMAT"`
	LogFile               string      `json:"log_file" env:"CCI_LOG_FILE"`
	Embed                 EmbedConfig `json:"embed" envPrefix:"CCI_EMBED_"`
}

// EmbedConfig holds the host bridge settings used when the chat runs
// inside an embedding host.
type EmbedConfig struct {
	Enabled        bool     `json:"enabled" env:"ENABLED"`
	Addr           string   `json:"addr" env:"ADDR"`
	AllowedOrigins []string `json:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
}

// Default returns a configuration with default values
func Default() Config {
	return Config{
		APIURL:                DefaultAPIURL,
		ChatIDMode:            ChatIDModeCreate,
		ChatType:              "web",
		RequestTimeoutSeconds: 30,
		RevealIntervalMS:      10,
		AssistantName:         "Assistant CCI France México",
		WelcomeMessage:        DefaultWelcomeMessage,
		StateDir:              defaultStateDir(),
		LogLevel:              "info",
		LogFormat:             "json",
		Embed: EmbedConfig{
			Enabled: false,
			Addr:    "127.0.0.1:7788",
			AllowedOrigins: []string{
				"https://www.franciamexico.com",
				"https://franciamexico.com",
			},
		},
	}
}

// Load loads configuration from the specified path.
// If the file doesn't exist, creates one with default values.
// Environment variables (and a .env file in the working directory) override
// values from the file.
func Load(configPath string) (Config, error) {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return Config{}, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := Default()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
		if err := Save(configPath, cfg); err != nil {
			return Config{}, fmt.Errorf("failed to create default config: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()

	return cfg, nil
}

// ApplyEnv overlays CCI_* environment variables onto cfg. A .env file in
// the working directory is read first when present; it never overrides
// variables already set in the process environment.
func ApplyEnv(cfg *Config) error {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// applyDefaults fills values that older config files may not carry.
func (c *Config) applyDefaults() {
	def := Default()
	if strings.TrimSpace(c.ChatType) == "" {
		c.ChatType = def.ChatType
	}
	if strings.TrimSpace(c.ChatIDMode) == "" {
		c.ChatIDMode = def.ChatIDMode
	}
	if strings.TrimSpace(c.StateDir) == "" {
		c.StateDir = def.StateDir
	}
	if strings.TrimSpace(c.WelcomeMessage) == "" {
		c.WelcomeMessage = def.WelcomeMessage
	}
	if strings.TrimSpace(c.AssistantName) == "" {
		c.AssistantName = def.AssistantName
	}
	if strings.TrimSpace(c.Embed.Addr) == "" {
		c.Embed.Addr = def.Embed.Addr
	}
}

// Save saves the configuration to the specified path
func Save(configPath string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	u, err := url.Parse(strings.TrimSpace(c.APIURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api_url must be an absolute URL, got: %q", c.APIURL)
	}

	switch c.ChatIDMode {
	case ChatIDModeCreate, ChatIDModeGet:
	default:
		return fmt.Errorf("chat_id_mode must be %q or %q, got: %q", ChatIDModeCreate, ChatIDModeGet, c.ChatIDMode)
	}

	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("request_timeout_seconds must be positive, got: %d", c.RequestTimeoutSeconds)
	}

	if c.RevealIntervalMS <= 0 {
		return fmt.Errorf("reveal_interval_ms must be positive, got: %d", c.RevealIntervalMS)
	}

	if c.Embed.Enabled {
		if strings.TrimSpace(c.Embed.Addr) == "" {
			return fmt.Errorf("embed.addr is required when embed is enabled")
		}
		if len(c.Embed.AllowedOrigins) == 0 {
			return fmt.Errorf("embed.allowed_origins must list at least one origin")
		}
	}

	return nil
}

// RequestTimeout returns the per-request HTTP timeout.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// RevealInterval returns the per-character reveal tick.
func (c Config) RevealInterval() time.Duration {
	return time.Duration(c.RevealIntervalMS) * time.Millisecond
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".cci_chat/config.json"
	}
	return filepath.Join(homeDir, ".cci_chat", "config.json")
}

func defaultStateDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(homeDir) == "" {
		return ".cci_chat"
	}
	return filepath.Join(homeDir, ".cci_chat")
}
