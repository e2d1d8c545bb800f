// Package identity maintains the persistent mapping from hospital
// patient identifiers to trial-wide anonymous IDs.
package identity

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// registryData is the JSON structure for persistence.
type registryData struct {
	Assignments map[string]string `json:"assignments"` // original ID -> anon ID
	Counter     int               `json:"counter"`
	Updated     string            `json:"updated"`
}

// Registry assigns and remembers anonymous patient IDs. The same
// original identifier always maps to the same anonymous ID across
// runs as long as the registry file is shared.
type Registry struct {
	mu          sync.Mutex
	path        string
	assignments map[string]string
	counter     int
	logger      *slog.Logger
}

// Open loads a registry from path, starting fresh when the file does
// not exist. An empty path keeps the registry in memory only.
func Open(path string, logger *slog.Logger) *Registry {
	r := &Registry{
		path:        path,
		assignments: make(map[string]string),
		logger:      logger,
	}
	if path != "" {
		r.load()
	}
	return r
}

func (r *Registry) load() {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return
	}

	var stored registryData
	if err := json.Unmarshal(data, &stored); err != nil {
		if r.logger != nil {
			r.logger.Warn("could not load identity registry", "path", r.path, "error", err)
		}
		return
	}

	if stored.Assignments != nil {
		r.assignments = stored.Assignments
	}
	r.counter = stored.Counter
}

func (r *Registry) save() error {
	if r.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}

	data, err := json.MarshalIndent(registryData{
		Assignments: r.assignments,
		Counter:     r.counter,
		Updated:     time.Now().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}

	return os.WriteFile(r.path, data, 0644)
}

// FormatAnonID renders the nth anonymous identifier, e.g. PAT01.
func FormatAnonID(n int) string {
	return fmt.Sprintf("PAT%02d", n)
}

// Lookup returns the anonymous ID already assigned to originalID.
func (r *Registry) Lookup(originalID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.assignments[strings.TrimSpace(originalID)]
	return id, ok
}

// Assign returns the anonymous ID for originalID, allocating and
// persisting the next free one when the patient is new.
func (r *Registry) Assign(originalID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	originalID = strings.TrimSpace(originalID)
	if originalID == "" {
		return "", fmt.Errorf("empty original patient ID")
	}

	if id, ok := r.assignments[originalID]; ok {
		return id, nil
	}

	r.counter++
	id := FormatAnonID(r.counter)
	r.assignments[originalID] = id

	if err := r.save(); err != nil {
		return "", fmt.Errorf("persist registry: %w", err)
	}
	return id, nil
}

// Count returns the number of patients in the registry.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.assignments)
}
