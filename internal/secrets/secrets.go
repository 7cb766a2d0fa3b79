package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"propertysanta/engine/internal/envutil"
)

const schemaVersion = 2

var ErrUnsupportedProvider = errors.New("unsupported provider")

// envKeys are consulted, in order, when no key is stored for a provider.
var envKeys = map[string][]string{
	"google":    {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
	"openai":    {"OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY"},
	"mistral":   {"MISTRAL_API_KEY"},
}

const (
	SourceNone   = "none"
	SourceStored = "stored"
	SourceEnv    = "env"
)

// Store keeps provider API keys encrypted at rest with AES-GCM under a
// locally generated master key.
type Store struct {
	secretsPath string
	keyPath     string
	mu          sync.Mutex
}

type Secrets struct {
	SchemaVersion int               `json:"schema_version"`
	ProviderKeys  map[string]string `json:"provider_keys,omitempty"`

	// Fields written by schema version 1.
	LegacyOpenAIKey    string `json:"openai_api_key,omitempty"`
	LegacyAnthropicKey string `json:"anthropic_api_key,omitempty"`
	LegacyGoogleKey    string `json:"google_api_key,omitempty"`
}

type encryptedPayload struct {
	SchemaVersion int    `json:"schema_version"`
	Nonce         string `json:"nonce"`
	Ciphertext    string `json:"ciphertext"`
}

func NewStore(secretsPath, keyPath string) *Store {
	return &Store{secretsPath: secretsPath, keyPath: keyPath}
}

func checkProvider(providerID string) error {
	if _, ok := envKeys[providerID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedProvider, providerID)
	}
	return nil
}

// Key returns the stored key for a provider, empty when none is stored.
func (s *Store) Key(providerID string) (string, error) {
	if err := checkProvider(providerID); err != nil {
		return "", err
	}
	secrets, err := s.load()
	if err != nil {
		return "", err
	}
	return secrets.ProviderKeys[providerID], nil
}

// Resolve returns the key to use for a provider: the stored one, else the
// first matching environment variable.
func (s *Store) Resolve(providerID string) (string, string, error) {
	key, err := s.Key(providerID)
	if err != nil {
		return "", SourceNone, err
	}
	if key != "" {
		return key, SourceStored, nil
	}
	if value, _ := envutil.First(envKeys[providerID]...); value != "" {
		return value, SourceEnv, nil
	}
	return "", SourceNone, nil
}

func (s *Store) SetKey(providerID, key string) error {
	if err := checkProvider(providerID); err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("api key is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	secrets, err := s.loadLocked()
	if err != nil {
		return err
	}
	secrets.ProviderKeys[providerID] = key
	return s.saveLocked(secrets)
}

func (s *Store) ClearKey(providerID string) error {
	if err := checkProvider(providerID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	secrets, err := s.loadLocked()
	if err != nil {
		return err
	}
	delete(secrets.ProviderKeys, providerID)
	return s.saveLocked(secrets)
}

func (s *Store) load() (*Secrets, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (*Secrets, error) {
	data, err := os.ReadFile(s.secretsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Secrets{SchemaVersion: schemaVersion, ProviderKeys: map[string]string{}}, nil
		}
		return nil, err
	}
	var payload encryptedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	gcm, err := s.cipher()
	if err != nil {
		return nil, err
	}
	nonce, err := base64.StdEncoding.DecodeString(payload.Nonce)
	if err != nil {
		return nil, err
	}
	ciphertext, err := base64.StdEncoding.DecodeString(payload.Ciphertext)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt secrets: %w", err)
	}
	var secrets Secrets
	if err := json.Unmarshal(plain, &secrets); err != nil {
		return nil, err
	}
	upgrade(&secrets)
	return &secrets, nil
}

// upgrade moves version 1 per-provider fields into ProviderKeys.
func upgrade(secrets *Secrets) {
	if secrets.ProviderKeys == nil {
		secrets.ProviderKeys = map[string]string{}
	}
	legacy := map[string]*string{
		"openai":    &secrets.LegacyOpenAIKey,
		"anthropic": &secrets.LegacyAnthropicKey,
		"google":    &secrets.LegacyGoogleKey,
	}
	for id, field := range legacy {
		if *field != "" && secrets.ProviderKeys[id] == "" {
			secrets.ProviderKeys[id] = *field
		}
		*field = ""
	}
	secrets.SchemaVersion = schemaVersion
}

func (s *Store) saveLocked(secrets *Secrets) error {
	gcm, err := s.cipher()
	if err != nil {
		return err
	}
	plain, err := json.Marshal(secrets)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return err
	}
	payload := encryptedPayload{
		SchemaVersion: schemaVersion,
		Nonce:         base64.StdEncoding.EncodeToString(nonce),
		Ciphertext:    base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, plain, nil)),
	}
	if err := os.MkdirAll(filepath.Dir(s.secretsPath), 0o755); err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.secretsPath, encoded, 0o600)
}

func (s *Store) cipher() (cipher.AEAD, error) {
	key, err := s.loadOrCreateKey()
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (s *Store) loadOrCreateKey() ([]byte, error) {
	key, err := os.ReadFile(s.keyPath)
	if err == nil {
		if len(key) != 32 {
			return nil, errors.New("invalid master key length")
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(s.keyPath), 0o755); err != nil {
		return nil, err
	}
	key = make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	if err := os.WriteFile(s.keyPath, key, 0o600); err != nil {
		return nil, err
	}
	return key, nil
}
