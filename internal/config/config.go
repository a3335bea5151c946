package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Cfg struct {
	Database   Database
	Logger     Logger
	LLM        LLM
	Browser    Browser
	Agent      Agent
	Transport  Transport
	DOM        DOM
	Server     Server
	Migrations Migrations
}

type Database struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
}

// Enabled - без хоста история и настройки не сохраняются.
func (d Database) Enabled() bool {
	return d.Host != ""
}

// DSN строка подключения для gorm.
func (d Database) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// URL строка подключения для migrate.
func (d Database) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type Migrations struct {
	Path string
}

type Logger struct {
	Env        string
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
}

type LLM struct {
	Provider          string
	Key               string
	Model             string
	BaseURL           string
	MaxTokens         int
	Temperature       float64
	RequestsPerMinute int
	TokensPerHour     int
}

type Browser struct {
	Display      string
	Headless     bool
	UserDataDir  string
	BrowsersPath string
	StartURL     string
	Listen       string // адрес, на котором хост страницы принимает оркестратор
}

type Agent struct {
	MaxSteps         int
	ContextBudget    int
	SummarizeHistory bool
	Retries          int
	RetryDelay       time.Duration
	DecisionTimeout  time.Duration
	Encoding         string // кодировка tiktoken для оценки токенов
}

type Transport struct {
	Address              string
	ReconnectStep        time.Duration
	MaxReconnectAttempts int
}

type DOM struct {
	HighlightElements  bool
	ViewportExpansion  int
	IncludedAttributes []string
	Debug              bool
}

type Server struct {
	Host string
	Port int
}

func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func Load() (*Cfg, error) {
	_ = godotenv.Load()

	cfg := &Cfg{
		Database: Database{
			Host:     os.Getenv("DB_HOST"),
			Port:     env("DB_PORT", "5432"),
			Name:     os.Getenv("DB_NAME"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASS"),
			SSLMode:  env("DB_SSLMODE", "disable"),
		},
		Logger: Logger{
			Env:        env("ENV", "dev"),
			Level:      env("LOG_LEVEL", "info"),
			File:       os.Getenv("LOG_FILE"),
			MaxSizeMB:  envInt("LOG_MAX_SIZE_MB", 50),
			MaxBackups: envInt("LOG_MAX_BACKUPS", 3),
		},
		LLM: LLM{
			Provider:          env("LLM_PROVIDER", "openai"),
			Key:               firstEnv("LLM_API_KEY", "OPENAI_API_KEY"),
			Model:             os.Getenv("LLM_MODEL"),
			BaseURL:           os.Getenv("LLM_BASE_URL"),
			MaxTokens:         envInt("LLM_MAX_TOKENS", 4000),
			Temperature:       envFloat("LLM_TEMPERATURE", 0),
			RequestsPerMinute: envInt("LLM_RPM", 60),
			TokensPerHour:     envInt("LLM_TPH", 90000),
		},
		Browser: Browser{
			Display:      env("DISPLAY", ":0"),
			Headless:     envBool("PW_HEADLESS"),
			UserDataDir:  env("PW_USER_DATA_DIR", "./userdata"),
			BrowsersPath: env("PLAYWRIGHT_BROWSERS_PATH", ""),
			StartURL:     env("PAGE_START_URL", "about:blank"),
			Listen:       env("PAGE_LISTEN", "127.0.0.1:9222"),
		},
		Agent: Agent{
			MaxSteps:         envInt("AGENT_MAX_STEPS", 50),
			ContextBudget:    envInt("AGENT_CONTEXT_BUDGET", 32000),
			SummarizeHistory: envBool("AGENT_SUMMARIZE_HISTORY"),
			Retries:          envInt("AGENT_RETRIES", 3),
			RetryDelay:       envDuration("AGENT_RETRY_DELAY", 2*time.Second),
			DecisionTimeout:  envDuration("AGENT_DECISION_TIMEOUT", 2*time.Minute),
			Encoding:         env("AGENT_TOKEN_ENCODING", "cl100k_base"),
		},
		Transport: Transport{
			Address:              os.Getenv("CHANNEL_ADDRESS"),
			ReconnectStep:        envDuration("CHANNEL_RECONNECT_STEP", time.Second),
			MaxReconnectAttempts: envInt("CHANNEL_MAX_RECONNECTS", 5),
		},
		DOM: DOM{
			HighlightElements:  envBoolDefault("DOM_HIGHLIGHT", true),
			ViewportExpansion:  envInt("DOM_VIEWPORT_EXPANSION", 0),
			IncludedAttributes: envList("DOM_INCLUDED_ATTRIBUTES"),
			Debug:              envBool("DOM_DEBUG"),
		},
		Server: Server{
			Host: env("HTTP_HOST", "127.0.0.1"),
			Port: envInt("HTTP_PORT", 8080),
		},
		Migrations: Migrations{
			Path: env("MIGRATIONS_PATH", "file://migrations"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Cfg) validate() error {
	if c.DOM.ViewportExpansion < -1 {
		return fmt.Errorf("DOM_VIEWPORT_EXPANSION должен быть >= -1, получено %d", c.DOM.ViewportExpansion)
	}
	if c.Agent.MaxSteps <= 0 {
		return fmt.Errorf("AGENT_MAX_STEPS должен быть положительным")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("некорректный HTTP_PORT: %d", c.Server.Port)
	}
	return nil
}

func env(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func envInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func envFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "true" || v == "1" || v == "yes"
}

func envBoolDefault(key string, defaultValue bool) bool {
	if os.Getenv(key) == "" {
		return defaultValue
	}
	return envBool(key)
}

func envDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

// envList разбирает список через запятую. Пустая переменная даёт nil.
func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
