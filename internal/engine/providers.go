package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"propertysanta/engine/internal/errinfo"
	"propertysanta/engine/internal/llm"
	"propertysanta/engine/internal/logging"
	"propertysanta/engine/internal/secrets"
	"propertysanta/engine/internal/settings"
)

var providerNames = map[string]string{
	settings.ProviderGoogle:    "Google",
	settings.ProviderOpenAI:    "OpenAI",
	settings.ProviderAnthropic: "Anthropic",
	settings.ProviderMistral:   "Mistral",
}

func withProviderID(info *errinfo.ErrorInfo, providerID string) *errinfo.ErrorInfo {
	if info == nil {
		return nil
	}
	copied := *info
	copied.ProviderID = providerID
	return &copied
}

func (e *Engine) clientForProvider(providerID string) (LLMClient, *errinfo.ErrorInfo) {
	client, ok := e.providers[providerID]
	if !ok {
		return nil, withProviderID(errinfo.ValidationFailed(errinfo.PhaseSettings, "unsupported provider"), providerID)
	}
	return client, nil
}

func (e *Engine) providerKey(providerID string) (string, string, *errinfo.ErrorInfo) {
	key, source, err := e.secrets.Resolve(providerID)
	if err != nil {
		return "", secrets.SourceNone, withProviderID(errinfo.FileReadFailed(errinfo.PhaseSettings, err.Error()), providerID)
	}
	return strings.TrimSpace(key), source, nil
}

// generate routes a model call to the default provider. The vision model
// serves comparisons and progress checks; the chat model serves
// conversation. Settings are read per call so model changes apply to jobs
// already running.
func (e *Engine) generate(ctx context.Context, messages []llm.Message) (string, error) {
	cfg, err := e.settings.Load()
	if err != nil {
		return "", fmt.Errorf("load settings: %w", err)
	}
	providerID, entry := cfg.Provider()
	if !entry.Enabled {
		return "", fmt.Errorf("%w: %s disabled", llm.ErrNotConfigured, providerID)
	}
	client, ok := e.providers[providerID]
	if !ok {
		return "", fmt.Errorf("%w: %s", llm.ErrNotConfigured, providerID)
	}
	key, _, errInfo := e.providerKey(providerID)
	if errInfo != nil {
		return "", fmt.Errorf("%w: %s", llm.ErrNotConfigured, errInfo.Detail)
	}
	if key == "" {
		return "", fmt.Errorf("%w: no api key for %s", llm.ErrNotConfigured, providerID)
	}
	model := entry.VisionModel
	profile := llm.ProfileFromContext(ctx)
	if profile.Purpose == llm.PurposeChat {
		model = entry.ChatModel
	}
	e.logger.Debug("llm.request", "provider_id", providerID, "model_id", model, "purpose", profile.Purpose, "messages", len(messages))
	text, err := client.Chat(ctx, key, model, messages)
	if err != nil {
		e.logger.Warn("llm.request_failed", "provider_id", providerID, "model_id", model, "purpose", profile.Purpose, "error", err.Error())
		return "", err
	}
	e.logger.Debug("llm.response", "provider_id", providerID, "model_id", model, "text", logging.Truncate(text, 400))
	return text, nil
}

func (e *Engine) ProvidersGetStatus(ctx context.Context, _ json.RawMessage) (any, *errinfo.ErrorInfo) {
	cfg, err := e.settings.Load()
	if err != nil {
		return nil, errinfo.FileReadFailed(errinfo.PhaseSettings, err.Error())
	}
	status := []map[string]any{}
	for _, id := range settings.ProviderIDs() {
		key, source, errInfo := e.providerKey(id)
		if errInfo != nil {
			return nil, errInfo
		}
		entry := cfg.Providers[id]
		status = append(status, map[string]any{
			"provider_id":  id,
			"display_name": providerNames[id],
			"enabled":      entry.Enabled,
			"default":      id == cfg.DefaultProvider,
			"vision_model": entry.VisionModel,
			"chat_model":   entry.ChatModel,
			"configured":   key != "",
			"key_source":   source,
		})
	}
	return map[string]any{"providers": status}, nil
}

func (e *Engine) ProvidersSetApiKey(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ProviderID string `json:"provider_id"`
		APIKey     string `json:"api_key"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseSettings, "invalid params")
	}
	e.logger.Debug("providers.set_api_key", "provider_id", req.ProviderID, "api_key", logging.RedactValue(req.APIKey))
	if !settings.IsProvider(req.ProviderID) {
		return nil, withProviderID(errinfo.ValidationFailed(errinfo.PhaseSettings, "unsupported provider"), req.ProviderID)
	}
	if strings.TrimSpace(req.APIKey) == "" {
		return nil, withProviderID(errinfo.ValidationFailed(errinfo.PhaseSettings, "api_key is required"), req.ProviderID)
	}
	if err := e.secrets.SetKey(req.ProviderID, strings.TrimSpace(req.APIKey)); err != nil {
		return nil, withProviderID(errinfo.FileWriteFailed(errinfo.PhaseSettings, err.Error()), req.ProviderID)
	}
	return map[string]any{}, nil
}

func (e *Engine) ProvidersClearApiKey(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ProviderID string `json:"provider_id"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseSettings, "invalid params")
	}
	if !settings.IsProvider(req.ProviderID) {
		return nil, withProviderID(errinfo.ValidationFailed(errinfo.PhaseSettings, "unsupported provider"), req.ProviderID)
	}
	if err := e.secrets.ClearKey(req.ProviderID); err != nil {
		return nil, withProviderID(errinfo.FileWriteFailed(errinfo.PhaseSettings, err.Error()), req.ProviderID)
	}
	return map[string]any{}, nil
}

func (e *Engine) ProvidersValidate(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ProviderID string `json:"provider_id"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseSettings, "invalid params")
	}
	client, errInfo := e.clientForProvider(req.ProviderID)
	if errInfo != nil {
		return nil, errInfo
	}
	key, _, errInfo := e.providerKey(req.ProviderID)
	if errInfo != nil {
		return nil, errInfo
	}
	if key == "" {
		return nil, withProviderID(errinfo.ProviderNotConfigured(errinfo.PhaseSettings), req.ProviderID)
	}
	e.logger.Debug("providers.validate", "provider_id", req.ProviderID)
	if err := client.ValidateKey(ctx, key); err != nil {
		e.logger.Warn("providers.validate_failed", "provider_id", req.ProviderID, "error", err.Error())
		return nil, mapLLMError(errinfo.PhaseSettings, req.ProviderID, err)
	}
	return map[string]any{"ok": true}, nil
}

func (e *Engine) SettingsGet(ctx context.Context, _ json.RawMessage) (any, *errinfo.ErrorInfo) {
	cfg, err := e.settings.Load()
	if err != nil {
		return nil, errinfo.FileReadFailed(errinfo.PhaseSettings, err.Error())
	}
	return map[string]any{"settings": cfg}, nil
}

func (e *Engine) SettingsSetModel(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		ProviderID  string `json:"provider_id"`
		VisionModel string `json:"vision_model"`
		ChatModel   string `json:"chat_model"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseSettings, "invalid params")
	}
	if !settings.IsProvider(strings.ToLower(strings.TrimSpace(req.ProviderID))) {
		return nil, withProviderID(errinfo.ValidationFailed(errinfo.PhaseSettings, "unsupported provider"), req.ProviderID)
	}
	cfg, err := e.settings.Update(func(s *settings.Settings) error {
		return s.SetModel(req.ProviderID, req.VisionModel, req.ChatModel)
	})
	if err != nil {
		return nil, errinfo.FileWriteFailed(errinfo.PhaseSettings, err.Error())
	}
	providerID, entry := cfg.Provider()
	e.logger.Info("settings.model_changed", "provider_id", providerID, "vision_model", entry.VisionModel, "chat_model", entry.ChatModel)
	return map[string]any{"settings": cfg}, nil
}
