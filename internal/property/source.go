package property

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

var ErrNotFound = errors.New("property not found")

// Source hands the engine property records. Implementations must return
// normalized properties.
type Source interface {
	GetProperty(ctx context.Context, id string) (Property, error)
	ListProperties(ctx context.Context) ([]Property, error)
}

// MemorySource is an in-process Source, used by tests and scenario replays.
type MemorySource struct {
	mu         sync.RWMutex
	properties map[string]Property
}

func NewMemorySource(properties ...Property) (*MemorySource, error) {
	s := &MemorySource{properties: make(map[string]Property, len(properties))}
	for _, p := range properties {
		if err := s.Put(p); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *MemorySource) Put(p Property) error {
	normalized, err := Normalize(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.properties[normalized.ID] = normalized
	s.mu.Unlock()
	return nil
}

func (s *MemorySource) GetProperty(_ context.Context, id string) (Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.properties[id]
	if !ok {
		return Property{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, nil
}

func (s *MemorySource) ListProperties(_ context.Context) ([]Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Property, 0, len(s.properties))
	for _, p := range s.properties {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DirSource reads one property per file from a directory. Files are named
// <id>.yaml, <id>.yml or <id>.json.
type DirSource struct {
	dir string
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

var propertyExtensions = []string{".yaml", ".yml", ".json"}

func (s *DirSource) GetProperty(ctx context.Context, id string) (Property, error) {
	if err := ctx.Err(); err != nil {
		return Property{}, err
	}
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return Property{}, fmt.Errorf("%w: invalid id %q", ErrNotFound, id)
	}
	for _, ext := range propertyExtensions {
		path := filepath.Join(s.dir, id+ext)
		p, err := readPropertyFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return Property{}, err
		}
		if p.ID == "" {
			p.ID = id
		}
		if p.ID != id {
			return Property{}, fmt.Errorf("%w: %s declares id %s", ErrInvalidProperty, path, p.ID)
		}
		return Normalize(p)
	}
	return Property{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *DirSource) ListProperties(ctx context.Context) ([]Property, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []Property{}, nil
	}
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	out := []Property{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if !isPropertyExtension(ext) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ext)
		if seen[id] {
			continue
		}
		seen[id] = true
		p, err := s.GetProperty(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func isPropertyExtension(ext string) bool {
	for _, candidate := range propertyExtensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

func readPropertyFile(path string) (Property, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Property{}, err
	}
	var p Property
	if filepath.Ext(path) == ".json" {
		err = json.Unmarshal(data, &p)
	} else {
		err = yaml.Unmarshal(data, &p)
	}
	if err != nil {
		return Property{}, fmt.Errorf("%w: %s: %v", ErrInvalidProperty, filepath.Base(path), err)
	}
	return p, nil
}
