package strategy

import (
	"errors"
	"fmt"

	"github.com/wonny/jhquant/internal/contracts"
	"github.com/wonny/jhquant/internal/scoring"
)

var (
	// ErrDuplicateStrategy is returned when a name is registered twice
	ErrDuplicateStrategy = errors.New("strategy already registered")
	// ErrInvalidEntry is returned for entries without a name or run function
	ErrInvalidEntry = errors.New("invalid strategy entry")
)

// RunFunc evaluates a history frame with an effective parameter set
type RunFunc func(bars []contracts.Bar, p scoring.Params) Report

// Entry is one registered strategy
type Entry struct {
	Name     string         `json:"name"`
	Title    string         `json:"title"` // 알림 메시지 표시용
	Run      RunFunc        `json:"-"`
	Defaults scoring.Params `json:"defaults"`
}

// Params merges the overrides for this entry over its defaults.
// Overrides keyed by the display title are applied first, then those keyed by name.
func (e Entry) Params(overrides Overrides) (scoring.Params, error) {
	merged := make(map[string]any)
	if e.Title != "" {
		for k, v := range overrides[e.Title] {
			merged[k] = v
		}
	}
	for k, v := range overrides[e.Name] {
		merged[k] = v
	}
	return MergeParams(e.Defaults, merged)
}

// DisplayName returns the title, or the name when no title is set
func (e Entry) DisplayName() string {
	if e.Title != "" {
		return e.Title
	}
	return e.Name
}

// Registry maps strategy names to entries.
// ⭐ SSOT: 전략 조회는 이 레지스트리에서만
//
// Entries are registered once at start-up and never removed or replaced; after that the
// registry is only read, so concurrent lookups need no locking.
type Registry struct {
	entries map[string]Entry
	order   []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds an entry
func (r *Registry) Register(e Entry) error {
	if e.Name == "" || e.Run == nil {
		return fmt.Errorf("%w: name=%q", ErrInvalidEntry, e.Name)
	}
	if _, exists := r.entries[e.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateStrategy, e.Name)
	}
	if err := e.Defaults.Validate(); err != nil {
		return fmt.Errorf("%w: %s defaults: %v", ErrInvalidEntry, e.Name, err)
	}

	r.entries[e.Name] = e
	r.order = append(r.order, e.Name)
	return nil
}

// Lookup finds an entry by exact name, falling back to the display title
func (r *Registry) Lookup(name string) (Entry, bool) {
	if e, ok := r.entries[name]; ok {
		return e, true
	}
	for _, n := range r.order {
		if e := r.entries[n]; e.Title != "" && e.Title == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Names returns registered names in registration order
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Entries returns all entries in registration order
func (r *Registry) Entries() []Entry {
	entries := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		entries = append(entries, r.entries[name])
	}
	return entries
}
