package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/Alex12012019/DeepSeekAPI/internal/service/ai/openaicompat"
)

// Supported model providers.
const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"
)

// Supported conversation store drivers.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

const (
	defaultOpenAIBaseURL = "https://api.deepseek.com"
	defaultArkBaseURL    = "https://ark.cn-beijing.volces.com/api/v3"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Store  StoreConfig
	Client ClientConfig
	Log    LogConfig
}

// Load 依次应用默认值、CONFIG_FILE 指向的 YAML 文件与环境变量。
func Load() (*Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	temperature := 0.7
	maxTokens := 8192
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		AI: AIConfig{
			Provider:             ProviderOpenAI,
			BaseURL:              defaultOpenAIBaseURL,
			Model:                "deepseek-chat",
			Region:               "cn-beijing",
			Temperature:          &temperature,
			MaxTokens:            &maxTokens,
			FileAnalysisEnabled:  true,
			FileAnalysisMaxChars: 20000,
		},
		Store: StoreConfig{
			Driver:     StoreFile,
			Dir:        "conversations",
			SQLitePath: "conversations.db",
		},
		Client: ClientConfig{
			BaseURL:          "http://localhost:8080",
			AutosaveInterval: 30 * time.Second,
			RequestTimeout:   2 * time.Minute,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case ProviderOpenAI, ProviderArk:
	default:
		return fmt.Errorf("unknown AI provider %q", c.AI.Provider)
	}
	switch c.Store.Driver {
	case StoreFile, StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Client.AutosaveInterval < 0 {
		return errors.New("autosave interval must not be negative")
	}
	if c.AI.HistoryLimit < 0 {
		return errors.New("history limit must not be negative")
	}
	return nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// StoreConfig selects where conversations are persisted.
type StoreConfig struct {
	Driver     string
	Dir        string
	SQLitePath string
}

// ClientConfig configures the terminal client.
type ClientConfig struct {
	BaseURL          string
	AutosaveInterval time.Duration
	RequestTimeout   time.Duration
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level  string
	Pretty bool
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider    string
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int

	SystemPrompt string
	HistoryLimit int

	FileAnalysisEnabled  bool
	FileAnalysisMaxChars int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	if c.Model == "" {
		return false
	}
	if c.Provider == ProviderArk {
		return c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != "")
	}
	return c.APIKey != ""
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("%s credentials or model missing", c.Provider)
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	if c.Provider == ProviderArk {
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     c.BaseURL,
			Region:      c.Region,
			APIKey:      c.APIKey,
			AccessKey:   c.AccessKey,
			SecretKey:   c.SecretKey,
			Model:       c.Model,
			MaxTokens:   maxTokens,
			Temperature: temperature,
			TopP:        topP,
		})
	}

	return openaicompat.NewChatModel(openaicompat.Config{
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		Model:       c.Model,
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	})
}

func (c *Config) applyEnv() error {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		server, err := parseServerAddr(port)
		if err != nil {
			return err
		}
		c.Server = server
	}

	if err := c.applyAIEnv(); err != nil {
		return err
	}

	c.Store.Driver = strings.ToLower(getEnvOrDefault("STORE_DRIVER", c.Store.Driver))
	c.Store.Dir = getEnvOrDefault("CONVERSATIONS_DIR", c.Store.Dir)
	c.Store.SQLitePath = getEnvOrDefault("SQLITE_PATH", c.Store.SQLitePath)

	c.Client.BaseURL = strings.TrimRight(getEnvOrDefault("CHAT_SERVER_URL", c.Client.BaseURL), "/")
	autosave, err := parseDurationEnv("AUTOSAVE_INTERVAL", c.Client.AutosaveInterval)
	if err != nil {
		return err
	}
	c.Client.AutosaveInterval = autosave
	timeout, err := parseDurationEnv("REQUEST_TIMEOUT", c.Client.RequestTimeout)
	if err != nil {
		return err
	}
	c.Client.RequestTimeout = timeout

	c.Log.Level = getEnvOrDefault("LOG_LEVEL", c.Log.Level)
	pretty, err := parseBoolEnv("LOG_PRETTY", c.Log.Pretty)
	if err != nil {
		return err
	}
	c.Log.Pretty = pretty
	return nil
}

func (c *Config) applyAIEnv() error {
	ai := &c.AI
	ai.Provider = strings.ToLower(getEnvOrDefault("AI_PROVIDER", ai.Provider))

	if ai.Provider == ProviderArk {
		// Ark 沿用原有的环境变量命名。
		if ai.BaseURL == defaultOpenAIBaseURL {
			ai.BaseURL = defaultArkBaseURL
		}
		ai.APIKey = getEnvOrDefault("ARK_API_KEY", ai.APIKey)
		ai.AccessKey = getEnvOrDefault("ARK_ACCESS_KEY", ai.AccessKey)
		ai.SecretKey = getEnvOrDefault("ARK_SECRET_KEY", ai.SecretKey)
		ai.BaseURL = getEnvOrDefault("ARK_BASE_URL", ai.BaseURL)
		ai.Region = getEnvOrDefault("ARK_REGION", ai.Region)
		ai.Model = getEnvOrDefault("Model", ai.Model)
	} else {
		ai.APIKey = getEnvOrDefault("DEEPSEEK_API_KEY", getEnvOrDefault("OPENAI_API_KEY", ai.APIKey))
		ai.BaseURL = getEnvOrDefault("OPENAI_BASE_URL", ai.BaseURL)
	}
	ai.Model = getEnvOrDefault("AI_MODEL", ai.Model)
	ai.SystemPrompt = getEnvOrDefault("AI_SYSTEM_PROMPT", ai.SystemPrompt)

	temperature, err := parseOptionalFloatEnv("AI_TEMPERATURE")
	if err != nil {
		return err
	}
	if temperature != nil {
		ai.Temperature = temperature
	}

	topP, err := parseOptionalFloatEnv("AI_TOP_P")
	if err != nil {
		return err
	}
	if topP != nil {
		ai.TopP = topP
	}

	maxTokens, err := parseOptionalIntEnv("AI_MAX_TOKENS")
	if err != nil {
		return err
	}
	if maxTokens != nil {
		ai.MaxTokens = maxTokens
	}

	historyLimit, err := parseOptionalIntEnv("AI_HISTORY_LIMIT")
	if err != nil {
		return err
	}
	if historyLimit != nil {
		ai.HistoryLimit = *historyLimit
	}

	analysisEnabled, err := parseBoolEnv("AI_FILE_ANALYSIS_ENABLED", ai.FileAnalysisEnabled)
	if err != nil {
		return err
	}
	ai.FileAnalysisEnabled = analysisEnabled

	maxChars, err := parseOptionalIntEnv("AI_FILE_ANALYSIS_MAX_CHARS")
	if err != nil {
		return err
	}
	if maxChars != nil {
		ai.FileAnalysisMaxChars = *maxChars
	}
	return nil
}

// parseServerAddr 解析服务器监听地址。
func parseServerAddr(port string) (ServerConfig, error) {
	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	// 纯数字按秒处理。
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
