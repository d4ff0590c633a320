// Package registry maps camera family names to frame grabber
// constructors. The table is an explicit value populated at process
// start; nothing registers itself through import side effects.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ayusman/stereorig/internal/capture"
	"github.com/ayusman/stereorig/internal/grabber"
)

// ErrUnknownCamera is returned when a requested camera type has not
// been registered.
var ErrUnknownCamera = errors.New("unknown camera type")

// Constructor builds a connected-ready grabber for one camera family.
type Constructor func(queue *grabber.Queue, cfg grabber.Config) *grabber.Grabber

// Registry is a name to constructor table.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Register adds a camera family under name. Registering the same name
// twice is a programming error and fails loudly.
func (r *Registry) Register(name string, ctor Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ctors[name]; exists {
		return fmt.Errorf("camera type %q already registered", name)
	}
	r.ctors[name] = ctor
	return nil
}

// Create builds a grabber for the named camera family.
func (r *Registry) Create(name string, queue *grabber.Queue, cfg grabber.Config) (*grabber.Grabber, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownCamera, name, r.Available())
	}
	return ctor(queue, cfg), nil
}

// Available lists the registered camera family names, sorted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterBuiltins populates the registry with the camera families
// this build ships. Called once from process wiring.
func RegisterBuiltins(r *Registry) error {
	return r.Register("arducam", func(queue *grabber.Queue, cfg grabber.Config) *grabber.Grabber {
		return grabber.New(capture.NewArducam(), queue, cfg)
	})
}
