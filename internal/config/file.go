package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the YAML layout. The app and openai sections keep the
// names of the older config.json so existing files translate key for key.
type fileConfig struct {
	App struct {
		Port             string `yaml:"port"`
		ConversationsDir string `yaml:"conversations_dir"`
		LogLevel         string `yaml:"log_level"`
		LogPretty        *bool  `yaml:"log_pretty"`
	} `yaml:"app"`
	OpenAI struct {
		Provider     string   `yaml:"provider"`
		APIKey       string   `yaml:"api_key"`
		BaseURL      string   `yaml:"base_url"`
		Model        string   `yaml:"model"`
		Temperature  *float64 `yaml:"temperature"`
		TopP         *float64 `yaml:"top_p"`
		MaxTokens    *int     `yaml:"max_tokens"`
		SystemPrompt string   `yaml:"system_prompt"`
		HistoryLimit *int     `yaml:"history_limit"`
	} `yaml:"openai"`
	Store struct {
		Driver     string `yaml:"driver"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"store"`
	Client struct {
		ServerURL        string `yaml:"server_url"`
		AutosaveInterval string `yaml:"autosave_interval"`
		RequestTimeout   string `yaml:"request_timeout"`
	} `yaml:"client"`
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if port := strings.TrimSpace(fc.App.Port); port != "" {
		server, err := parseServerAddr(port)
		if err != nil {
			return err
		}
		c.Server = server
	}
	setString(&c.Store.Dir, fc.App.ConversationsDir)
	setString(&c.Log.Level, fc.App.LogLevel)
	if fc.App.LogPretty != nil {
		c.Log.Pretty = *fc.App.LogPretty
	}

	ai := fc.OpenAI
	setString(&c.AI.Provider, strings.ToLower(ai.Provider))
	setString(&c.AI.APIKey, ai.APIKey)
	setString(&c.AI.BaseURL, ai.BaseURL)
	setString(&c.AI.Model, ai.Model)
	setString(&c.AI.SystemPrompt, ai.SystemPrompt)
	if ai.Temperature != nil {
		c.AI.Temperature = ai.Temperature
	}
	if ai.TopP != nil {
		c.AI.TopP = ai.TopP
	}
	if ai.MaxTokens != nil {
		c.AI.MaxTokens = ai.MaxTokens
	}
	if ai.HistoryLimit != nil {
		c.AI.HistoryLimit = *ai.HistoryLimit
	}

	setString(&c.Store.Driver, strings.ToLower(fc.Store.Driver))
	setString(&c.Store.SQLitePath, fc.Store.SQLitePath)

	setString(&c.Client.BaseURL, strings.TrimRight(fc.Client.ServerURL, "/"))
	if err := setDuration(&c.Client.AutosaveInterval, "client.autosave_interval", fc.Client.AutosaveInterval); err != nil {
		return err
	}
	return setDuration(&c.Client.RequestTimeout, "client.request_timeout", fc.Client.RequestTimeout)
}

func setString(dst *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*dst = value
	}
}

func setDuration(dst *time.Duration, key, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	*dst = val
	return nil
}
