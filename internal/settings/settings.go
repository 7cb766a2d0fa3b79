package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const schemaVersion = 1

const (
	ProviderGoogle    = "google"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMistral   = "mistral"
)

const (
	defaultTimeoutSeconds = 90
	defaultMinImageBytes  = 75
	defaultMaxImageBytes  = 20 * 1024 * 1024
	defaultHistoryLimit   = 50
)

var defaultModels = map[string]ProviderSettings{
	ProviderGoogle:    {Enabled: true, VisionModel: "gemini-2.5-flash", ChatModel: "gemini-2.5-flash"},
	ProviderOpenAI:    {Enabled: true, VisionModel: "gpt-4.1", ChatModel: "gpt-4.1-mini"},
	ProviderAnthropic: {Enabled: true, VisionModel: "claude-sonnet-4-5", ChatModel: "claude-haiku-4-5"},
	ProviderMistral:   {Enabled: true, VisionModel: "pixtral-large-latest", ChatModel: "mistral-small-latest"},
}

// ProviderIDs lists the supported providers in preference order.
func ProviderIDs() []string {
	return []string{ProviderGoogle, ProviderOpenAI, ProviderAnthropic, ProviderMistral}
}

func IsProvider(id string) bool {
	_, ok := defaultModels[id]
	return ok
}

type ProviderSettings struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	VisionModel string `yaml:"vision_model" json:"vision_model"`
	ChatModel   string `yaml:"chat_model" json:"chat_model"`
}

type ComparisonSettings struct {
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

type ImageSettings struct {
	MinBytes int `yaml:"min_bytes" json:"min_bytes"`
	MaxBytes int `yaml:"max_bytes" json:"max_bytes"`
}

type ChatSettings struct {
	HistoryLimit int `yaml:"history_limit" json:"history_limit"`
}

type ArchiveSettings struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	KeepPhotos bool `yaml:"keep_photos" json:"keep_photos"`
}

type Settings struct {
	SchemaVersion   int                         `yaml:"schema_version" json:"schema_version"`
	DefaultProvider string                      `yaml:"default_provider" json:"default_provider"`
	Providers       map[string]ProviderSettings `yaml:"providers" json:"providers"`
	Comparison      ComparisonSettings          `yaml:"comparison" json:"comparison"`
	Images          ImageSettings               `yaml:"images" json:"images"`
	Chat            ChatSettings                `yaml:"chat" json:"chat"`
	// Archive is a pointer so an absent section can be told apart from an
	// explicitly disabled one.
	Archive *ArchiveSettings `yaml:"archive,omitempty" json:"archive,omitempty"`
}

// ComparisonTimeout is the per-call model deadline.
func (s *Settings) ComparisonTimeout() time.Duration {
	return time.Duration(s.Comparison.TimeoutSeconds) * time.Second
}

// Provider returns the settings of the default provider.
func (s *Settings) Provider() (string, ProviderSettings) {
	return s.DefaultProvider, s.Providers[s.DefaultProvider]
}

// SetModel points the default provider and its models at the given values.
// Empty model names keep the current ones.
func (s *Settings) SetModel(providerID, visionModel, chatModel string) error {
	providerID = strings.ToLower(strings.TrimSpace(providerID))
	if !IsProvider(providerID) {
		return fmt.Errorf("unknown provider %q", providerID)
	}
	entry := s.Providers[providerID]
	if v := strings.TrimSpace(visionModel); v != "" {
		entry.VisionModel = v
	}
	if c := strings.TrimSpace(chatModel); c != "" {
		entry.ChatModel = c
	}
	entry.Enabled = true
	s.Providers[providerID] = entry
	s.DefaultProvider = providerID
	return nil
}

type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

func (s *Store) Load() (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultSettings(), nil
		}
		return nil, err
	}
	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(s.path), err)
	}
	backfillSettings(&settings)
	return &settings, nil
}

func (s *Store) Save(settings *Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	backfillSettings(settings)
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s *Store) Update(fn func(*Settings) error) (*Settings, error) {
	settings, err := s.Load()
	if err != nil {
		return nil, err
	}
	if err := fn(settings); err != nil {
		return nil, err
	}
	return settings, s.Save(settings)
}

func defaultSettings() *Settings {
	settings := &Settings{}
	backfillSettings(settings)
	return settings
}

func backfillSettings(settings *Settings) {
	if settings.SchemaVersion == 0 {
		settings.SchemaVersion = schemaVersion
	}
	if settings.Providers == nil {
		settings.Providers = map[string]ProviderSettings{}
	}
	for _, id := range ProviderIDs() {
		settings.Providers[id] = backfillProvider(id, settings.Providers[id])
	}
	settings.DefaultProvider = strings.ToLower(strings.TrimSpace(settings.DefaultProvider))
	if !IsProvider(settings.DefaultProvider) {
		settings.DefaultProvider = ProviderGoogle
	}
	if settings.Comparison.TimeoutSeconds <= 0 {
		settings.Comparison.TimeoutSeconds = defaultTimeoutSeconds
	}
	if settings.Images.MinBytes <= 0 {
		settings.Images.MinBytes = defaultMinImageBytes
	}
	if settings.Images.MaxBytes <= 0 || settings.Images.MaxBytes < settings.Images.MinBytes {
		settings.Images.MaxBytes = defaultMaxImageBytes
	}
	if settings.Chat.HistoryLimit <= 0 {
		settings.Chat.HistoryLimit = defaultHistoryLimit
	}
	if settings.Archive == nil {
		settings.Archive = &ArchiveSettings{Enabled: true, KeepPhotos: true}
	}
}

func backfillProvider(id string, entry ProviderSettings) ProviderSettings {
	def := defaultModels[id]
	if entry == (ProviderSettings{}) {
		return def
	}
	if strings.TrimSpace(entry.VisionModel) == "" {
		entry.VisionModel = def.VisionModel
	}
	if strings.TrimSpace(entry.ChatModel) == "" {
		entry.ChatModel = def.ChatModel
	}
	return entry
}
