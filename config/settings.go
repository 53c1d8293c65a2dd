// Package config provides application settings loaded with viper.
//
// Settings are created via New() which handles:
// - .env loading and FIREMAKER_ environment overrides
// - Optional firemaker.yaml in the working directory or $HOME/.config/firemaker
// - Default value application
// - Provider-specific configuration lookup

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/richinex/firemaker/model"
)

// EnvPrefix prefixes every environment override, e.g. FIREMAKER_VLM_PROVIDER.
const EnvPrefix = "FIREMAKER"

// Settings holds all application configuration.
type Settings struct {
	VLM       VLMConfig       `mapstructure:"vlm"`
	Game      GameConfig      `mapstructure:"game"`
	Window    WindowConfig    `mapstructure:"window"`
	Humanoid  HumanoidConfig  `mapstructure:"humanoid"`
	Skills    SkillsConfig    `mapstructure:"skills"`
	Inventory InventoryConfig `mapstructure:"inventory"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Debug     DebugConfig     `mapstructure:"debug"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// VLMConfig holds vision provider configuration.
type VLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	Model       string        `mapstructure:"model"`
	MaxTokens   uint32        `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MinInterval time.Duration `mapstructure:"min_interval"`
	MaxRetries  int           `mapstructure:"max_retries"`
	RetryBase   time.Duration `mapstructure:"retry_base"`
	BaseURL     string        `mapstructure:"base_url"`
}

// GameConfig identifies the game client.
type GameConfig struct {
	WindowTitle string `mapstructure:"window_title"`
}

// WindowConfig selects where the window record is persisted.
type WindowConfig struct {
	// Store is "file" or "sqlite".
	Store string `mapstructure:"store"`
	File  string `mapstructure:"file"`
}

// HumanoidConfig bounds pointer movement timing.
type HumanoidConfig struct {
	MoveMin        time.Duration `mapstructure:"move_min"`
	MoveMax        time.Duration `mapstructure:"move_max"`
	HoldMin        time.Duration `mapstructure:"hold_min"`
	HoldMax        time.Duration `mapstructure:"hold_max"`
	StepsPerSecond int           `mapstructure:"steps_per_second"`
}

// Move returns the movement duration range.
func (h HumanoidConfig) Move() model.DurationRange {
	return model.DurationRange{Min: h.MoveMin, Max: h.MoveMax}
}

// Hold returns the button hold range.
func (h HumanoidConfig) Hold() model.DurationRange {
	return model.DurationRange{Min: h.HoldMin, Max: h.HoldMax}
}

// SkillsConfig tunes clicks and locating.
type SkillsConfig struct {
	Jitter         int           `mapstructure:"jitter"`
	BeforeClickMin time.Duration `mapstructure:"before_click_min"`
	BeforeClickMax time.Duration `mapstructure:"before_click_max"`
	AfterClickMin  time.Duration `mapstructure:"after_click_min"`
	AfterClickMax  time.Duration `mapstructure:"after_click_max"`
	BetweenClicks  time.Duration `mapstructure:"between_clicks"`
	// LocateMode is "coordinate" or "slot".
	LocateMode string `mapstructure:"locate_mode"`
}

// BeforeClick returns the reaction delay range.
func (s SkillsConfig) BeforeClick() model.DurationRange {
	return model.DurationRange{Min: s.BeforeClickMin, Max: s.BeforeClickMax}
}

// AfterClick returns the post-click delay range.
func (s SkillsConfig) AfterClick() model.DurationRange {
	return model.DurationRange{Min: s.AfterClickMin, Max: s.AfterClickMax}
}

// InventoryConfig is the slot grid used by slot locate mode.
type InventoryConfig struct {
	OriginX    int `mapstructure:"origin_x"`
	OriginY    int `mapstructure:"origin_y"`
	SlotWidth  int `mapstructure:"slot_width"`
	SlotHeight int `mapstructure:"slot_height"`
	Columns    int `mapstructure:"columns"`
}

// AgentConfig holds controller configuration.
type AgentConfig struct {
	MaxConsecutiveFailures      int           `mapstructure:"max_consecutive_failures"`
	SettleDuration              time.Duration `mapstructure:"settle_duration"`
	RecoveryPause               time.Duration `mapstructure:"recovery_pause"`
	BetweenFires                time.Duration `mapstructure:"between_fires"`
	EmptyInventoryConfirmations int           `mapstructure:"empty_inventory_confirmations"`
	StepAwayX                   float64       `mapstructure:"step_away_x"`
	StepAwayY                   float64       `mapstructure:"step_away_y"`
	ToolItem                    string        `mapstructure:"tool_item"`
	FuelItem                    string        `mapstructure:"fuel_item"`
	ExpectedOutcome             string        `mapstructure:"expected_outcome"`
}

// DebugConfig controls debug screenshots.
type DebugConfig struct {
	SaveScreenshots bool   `mapstructure:"save_screenshots"`
	ScreenshotDir   string `mapstructure:"screenshot_dir"`
}

// JournalConfig controls the SQLite run journal.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	ServiceName string `mapstructure:"service_name"`
	// LogFile enables a JSON log file rotated by size. Empty disables it.
	LogFile    string `mapstructure:"log_file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// providerInfo holds configuration for a specific VLM provider.
type providerInfo struct {
	modelEnv     string
	defaultModel string
	apiKeyEnv    string
	needsKey     bool
}

// Supported providers and their configuration.
var providers = map[string]providerInfo{
	"openai":    {"OPENAI_MODEL", "gpt-4o", "OPENAI_API_KEY", true},
	"anthropic": {"ANTHROPIC_MODEL", "claude-sonnet-4-20250514", "ANTHROPIC_API_KEY", true},
	"gemini":    {"GEMINI_MODEL", "gemini-2.0-flash", "GEMINI_API_KEY", true},
	"local":     {"LOCAL_VLM_MODEL", "llava", "LOCAL_VLM_API_KEY", false},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
	"ollama": "local",
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	// -- VLM --
	v.SetDefault("vlm.provider", "anthropic")
	v.SetDefault("vlm.model", "")
	v.SetDefault("vlm.max_tokens", 1024)
	v.SetDefault("vlm.temperature", 0.0)
	v.SetDefault("vlm.timeout", "60s")
	v.SetDefault("vlm.min_interval", "250ms")
	v.SetDefault("vlm.max_retries", 2)
	v.SetDefault("vlm.retry_base", "500ms")
	v.SetDefault("vlm.base_url", "")

	// -- Game and window --
	v.SetDefault("game.window_title", "RuneLite")
	v.SetDefault("window.store", "file")
	v.SetDefault("window.file", "window_config.json")

	// -- Input --
	v.SetDefault("humanoid.move_min", "300ms")
	v.SetDefault("humanoid.move_max", "800ms")
	v.SetDefault("humanoid.hold_min", "50ms")
	v.SetDefault("humanoid.hold_max", "120ms")
	v.SetDefault("humanoid.steps_per_second", 90)

	// -- Skills --
	v.SetDefault("skills.jitter", 3)
	v.SetDefault("skills.before_click_min", "50ms")
	v.SetDefault("skills.before_click_max", "150ms")
	v.SetDefault("skills.after_click_min", "100ms")
	v.SetDefault("skills.after_click_max", "300ms")
	v.SetDefault("skills.between_clicks", "300ms")
	v.SetDefault("skills.locate_mode", "coordinate")
	v.SetDefault("inventory.origin_x", 563)
	v.SetDefault("inventory.origin_y", 213)
	v.SetDefault("inventory.slot_width", 42)
	v.SetDefault("inventory.slot_height", 36)
	v.SetDefault("inventory.columns", 4)

	// -- Agent --
	v.SetDefault("agent.max_consecutive_failures", 3)
	v.SetDefault("agent.settle_duration", "2s")
	v.SetDefault("agent.recovery_pause", "2s")
	v.SetDefault("agent.between_fires", "500ms")
	v.SetDefault("agent.empty_inventory_confirmations", 2)
	v.SetDefault("agent.step_away_x", 0.45)
	v.SetDefault("agent.step_away_y", 0.55)
	v.SetDefault("agent.tool_item", "tinderbox")
	v.SetDefault("agent.fuel_item", "logs")
	v.SetDefault("agent.expected_outcome", "a fire was created")

	// -- Debug and journal --
	v.SetDefault("debug.save_screenshots", true)
	v.SetDefault("debug.screenshot_dir", "screenshots")
	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", filepath.Join(".firemaker", "firemaker.db"))

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "firemaker")
	v.SetDefault("logger.log_file", filepath.Join("logs", "firemaker.log"))
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", false)
}

// NewViper returns a viper instance with defaults, environment overrides and
// the config file search path. configFile overrides the search when set.
func NewViper(configFile string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("firemaker")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "firemaker"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Override adjusts the loaded configuration before it is decoded.
// Overrides take precedence over the file and the environment.
type Override func(v *viper.Viper)

// WithValue sets key to value.
func WithValue(key string, value any) Override {
	return func(v *viper.Viper) { v.Set(key, value) }
}

// WithProvider selects the vision provider. An empty name changes nothing.
func WithProvider(provider string) Override {
	return func(v *viper.Viper) {
		if provider != "" {
			v.Set("vlm.provider", provider)
		}
	}
}

// New loads .env, the config file and the environment into Settings.
// A missing .env or config file is not an error; an explicit configFile that
// cannot be read is.
func New(configFile string, overrides ...Override) (Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Settings{}, fmt.Errorf("load .env: %w", err)
	}

	v := NewViper(configFile)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("read config file: %w", err)
		}
	}
	for _, o := range overrides {
		o(v)
	}
	return FromViper(v)
}

// FromViper decodes and validates settings from v.
func FromViper(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("error unmarshaling config: %w", err)
	}

	s.VLM.Provider = normalizeProvider(s.VLM.Provider)
	if _, err := getProviderInfo(s.VLM.Provider); err != nil {
		return Settings{}, err
	}
	if s.VLM.Model == "" {
		s.VLM.Model, _ = ModelFor(s.VLM.Provider)
	}

	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return s, nil
}

// Validate checks the settings for sane values.
func (s *Settings) Validate() error {
	var errs []error
	if _, err := getProviderInfo(normalizeProvider(s.VLM.Provider)); err != nil {
		errs = append(errs, err)
	}
	if s.VLM.Timeout <= 0 {
		errs = append(errs, errors.New("vlm.timeout must be positive"))
	}
	if s.VLM.MaxRetries < 0 {
		errs = append(errs, errors.New("vlm.max_retries must not be negative"))
	}
	if s.Game.WindowTitle == "" {
		errs = append(errs, errors.New("game.window_title is required"))
	}
	if s.Window.Store != "file" && s.Window.Store != "sqlite" {
		errs = append(errs, fmt.Errorf("window.store must be file or sqlite, got %q", s.Window.Store))
	}
	if s.Skills.Jitter < 0 {
		errs = append(errs, errors.New("skills.jitter must not be negative"))
	}
	if s.Skills.LocateMode != "coordinate" && s.Skills.LocateMode != "slot" {
		errs = append(errs, fmt.Errorf("skills.locate_mode must be coordinate or slot, got %q", s.Skills.LocateMode))
	}
	for name, r := range map[string]model.DurationRange{
		"humanoid.move":       s.Humanoid.Move(),
		"humanoid.hold":       s.Humanoid.Hold(),
		"skills.before_click": s.Skills.BeforeClick(),
		"skills.after_click":  s.Skills.AfterClick(),
	} {
		if err := r.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if s.Agent.MaxConsecutiveFailures <= 0 {
		errs = append(errs, errors.New("agent.max_consecutive_failures must be positive"))
	}
	if s.Agent.EmptyInventoryConfirmations <= 0 {
		errs = append(errs, errors.New("agent.empty_inventory_confirmations must be positive"))
	}
	if s.Agent.MaxConsecutiveFailures > 0 && s.Agent.EmptyInventoryConfirmations > s.Agent.MaxConsecutiveFailures {
		errs = append(errs, fmt.Errorf("agent.empty_inventory_confirmations (%d) must not exceed agent.max_consecutive_failures (%d)",
			s.Agent.EmptyInventoryConfirmations, s.Agent.MaxConsecutiveFailures))
	}
	return errors.Join(errs...)
}

// APIKey returns the credential for the configured provider.
func (s *Settings) APIKey() (string, error) {
	return APIKeyFor(s.VLM.Provider)
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// getProviderInfo returns configuration for a provider.
func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, fmt.Errorf("unknown provider: %q", provider)
	}
	return info, nil
}

// APIKeyFor returns the API key for a provider from environment variables.
// Providers that need no key return an empty key and no error.
func APIKeyFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	key := os.Getenv(info.apiKeyEnv)
	if key == "" && info.needsKey {
		return "", fmt.Errorf("%s environment variable not set", info.apiKeyEnv)
	}
	return key, nil
}

// ModelFor returns the model for a provider, checking environment first.
func ModelFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	if val := os.Getenv(info.modelEnv); val != "" {
		return val, nil
	}
	return info.defaultModel, nil
}

// SupportedProviders returns the supported provider names, sorted.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}
