package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Envelope is the persisted form of a task: a kind discriminator, the
// payload schema version, and the kind-specific JSON body.
type Envelope struct {
	Kind    string          `json:"kind"`
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// Factory returns a zero task of one kind, ready to be decoded into.
type Factory func() Task

type registration struct {
	version int
	factory Factory
}

// Registry maps task kinds to factories and converts tasks to and from
// their persisted envelopes.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{kinds: make(map[string]registration)}
}

// Register adds a task kind. Registering the same kind twice is an error.
func (r *Registry) Register(kind string, version int, factory Factory) error {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return errors.New("register task: empty kind")
	}
	if factory == nil {
		return fmt.Errorf("register task %q: nil factory", kind)
	}
	if version <= 0 {
		return fmt.Errorf("register task %q: version must be positive", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.kinds[kind]; exists {
		return fmt.Errorf("register task %q: already registered", kind)
	}
	r.kinds[kind] = registration{version: version, factory: factory}
	return nil
}

// MustRegister is Register that panics, for package-level wiring.
func (r *Registry) MustRegister(kind string, version int, factory Factory) {
	if err := r.Register(kind, version, factory); err != nil {
		panic(err)
	}
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.kinds))
	for kind := range r.kinds {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// New returns a fresh task of kind, for callers that build tasks from parameters.
func (r *Registry) New(kind string) (Task, error) {
	r.mu.RLock()
	reg, ok := r.kinds[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return reg.factory(), nil
}

// Encode serializes t into its envelope. A LegacyTask encodes back to its
// original raw bytes.
func (r *Registry) Encode(t Task) ([]byte, error) {
	if legacy, ok := t.(*LegacyTask); ok {
		return legacy.Raw, nil
	}
	r.mu.RLock()
	reg, ok := r.kinds[t.Kind()]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, t.Kind())
	}
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode task %q: %w", t.Kind(), err)
	}
	out, err := json.Marshal(Envelope{Kind: t.Kind(), Version: reg.version, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode envelope %q: %w", t.Kind(), err)
	}
	return out, nil
}

// Decode rebuilds a task from its envelope. Payloads that cannot be decoded
// (malformed envelope, unknown kind, version drift, bad body) come back as a
// *LegacyTask carrying the raw bytes and the reason; the error is reserved
// for callers that want to log it.
func (r *Registry) Decode(payload []byte) (Task, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return newLegacy(payload, "", fmt.Sprintf("malformed envelope: %v", err))
	}
	r.mu.RLock()
	reg, ok := r.kinds[env.Kind]
	r.mu.RUnlock()
	if !ok {
		return newLegacy(payload, env.Kind, fmt.Sprintf("unknown task kind %q", env.Kind))
	}
	if env.Version != reg.version {
		return newLegacy(payload, env.Kind, fmt.Sprintf("payload version %d, expected %d", env.Version, reg.version))
	}
	t := reg.factory()
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, t); err != nil {
			return newLegacy(payload, env.Kind, fmt.Sprintf("decode body: %v", err))
		}
	}
	return t, nil
}

func newLegacy(raw []byte, kind, reason string) (Task, error) {
	legacy := &LegacyTask{Raw: append([]byte(nil), raw...), OriginalKind: kind, Reason: reason}
	return legacy, &DecodeError{Kind: kind, Reason: reason}
}
