package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"propertysanta/engine/internal/anthropic"
	"propertysanta/engine/internal/appdirs"
	"propertysanta/engine/internal/archive"
	"propertysanta/engine/internal/comparison"
	"propertysanta/engine/internal/conversation"
	"propertysanta/engine/internal/envutil"
	"propertysanta/engine/internal/errinfo"
	"propertysanta/engine/internal/gemini"
	"propertysanta/engine/internal/imagecheck"
	"propertysanta/engine/internal/intent"
	"propertysanta/engine/internal/llm"
	"propertysanta/engine/internal/logging"
	"propertysanta/engine/internal/mistral"
	"propertysanta/engine/internal/openai"
	"propertysanta/engine/internal/property"
	"propertysanta/engine/internal/secrets"
	"propertysanta/engine/internal/settings"
	"propertysanta/engine/internal/workflow"
)

const (
	EngineVersion = "0.1.0"
	APIVersion    = "1"
)

// FakeModelEnv replaces every provider client with an in-process model that
// returns canned comparisons. Used by UI tests and scenario replays.
const FakeModelEnv = "PROPERTYSANTA_FAKE_MODEL"

const (
	NotifyJobPhaseChanged = "JobPhaseChanged"
	NotifyJobCompleted    = "JobCompleted"
)

type Notifier func(method string, params any)

type LLMClient interface {
	ValidateKey(ctx context.Context, apiKey string) error
	Chat(ctx context.Context, apiKey, model string, messages []llm.Message) (string, error)
}

type Engine struct {
	dataDir    string
	settings   *settings.Store
	secrets    *secrets.Store
	properties property.Source
	providers  map[string]LLMClient
	archive    *archive.Store
	registry   *workflow.Registry
	classifier *intent.Classifier
	notify     Notifier
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithDataDir overrides appdirs.DataDir.
func WithDataDir(dir string) Option {
	return func(e *Engine) { e.dataDir = dir }
}

// WithProperties replaces the properties directory as the property source.
func WithProperties(src property.Source) Option {
	return func(e *Engine) {
		if src != nil {
			e.properties = src
		}
	}
}

// WithProvider installs the client used for providerID.
func WithProvider(providerID string, client LLMClient) Option {
	return func(e *Engine) {
		if client != nil {
			e.providers[providerID] = client
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func New(opts ...Option) (*Engine, error) {
	engine := &Engine{
		providers:  map[string]LLMClient{},
		classifier: intent.NewClassifier(),
		logger:     logging.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(engine)
	}
	if engine.dataDir == "" {
		dataDir, err := appdirs.DataDir()
		if err != nil {
			return nil, err
		}
		engine.dataDir = dataDir
	}
	if err := os.MkdirAll(engine.dataDir, 0o755); err != nil {
		return nil, err
	}
	engine.settings = settings.NewStore(appdirs.SettingsPath(engine.dataDir))
	engine.secrets = secrets.NewStore(appdirs.SecretsPath(engine.dataDir), appdirs.MasterKeyPath(engine.dataDir))
	if engine.properties == nil {
		engine.properties = property.NewDirSource(appdirs.PropertiesDir(engine.dataDir))
	}

	fake := envutil.Bool(FakeModelEnv)
	defaults := map[string]LLMClient{
		settings.ProviderGoogle:    gemini.NewClient(),
		settings.ProviderOpenAI:    openai.NewClient(),
		settings.ProviderAnthropic: anthropic.NewClient(),
		settings.ProviderMistral:   mistral.NewClient(),
	}
	for id, client := range defaults {
		if _, ok := engine.providers[id]; ok {
			continue
		}
		if fake {
			client = newFakeModel()
		}
		engine.providers[id] = client
	}

	cfg, err := engine.settings.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	registryOpts := []workflow.RegistryOption{
		workflow.WithHistoryLimit(cfg.Chat.HistoryLimit),
		workflow.WithRegistryLogger(engine.logger.With("component", "workflow")),
	}
	if cfg.Archive != nil && cfg.Archive.Enabled {
		store, err := archive.Open(appdirs.ArchiveDir(engine.dataDir), archive.WithPhotoData(cfg.Archive.KeepPhotos))
		if err != nil {
			return nil, err
		}
		engine.archive = store
		registryOpts = append(registryOpts, workflow.WithArchiver(store))
	}

	model := llm.GeneratorFunc(engine.generate)
	comparer := comparison.New(
		model,
		comparison.WithTimeout(cfg.ComparisonTimeout()),
		comparison.WithValidator(imagecheck.NewValidator(cfg.Images.MinBytes, cfg.Images.MaxBytes)),
		comparison.WithLogger(engine.logger.With("component", "comparison")),
	)
	replier := conversation.NewResponder(model, cfg.ComparisonTimeout(), engine.logger.With("component", "conversation"))
	machine := workflow.NewMachine(
		comparer,
		replier,
		workflow.WithClassifier(engine.classifier),
		workflow.WithClock(engine.now),
		workflow.WithLogger(engine.logger.With("component", "workflow")),
	)
	engine.registry = workflow.NewRegistry(machine, engine.properties, registryOpts...)
	engine.logger.Debug("engine.init",
		"data_dir", engine.dataDir,
		"archive", engine.archive != nil,
		"fake_model", fake,
	)
	return engine, nil
}

func (e *Engine) SetNotifier(notify Notifier) {
	e.notify = notify
}

// Close releases the archive. Live jobs are not archived.
func (e *Engine) Close() error {
	if e.archive == nil {
		return nil
	}
	return e.archive.Close()
}

func (e *Engine) emit(method string, payload map[string]any) {
	if e.notify == nil {
		return
	}
	e.notify(method, payload)
}

func (e *Engine) EngineGetInfo(ctx context.Context, _ json.RawMessage) (any, *errinfo.ErrorInfo) {
	return map[string]any{
		"engine_version": EngineVersion,
		"api_version":    APIVersion,
		"data_dir":       e.dataDir,
		"archive":        e.archive != nil,
	}, nil
}
