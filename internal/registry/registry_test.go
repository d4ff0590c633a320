package registry

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ayusman/stereorig/internal/capture"
	"github.com/ayusman/stereorig/internal/grabber"
)

func mockConstructor(queue *grabber.Queue, cfg grabber.Config) *grabber.Grabber {
	return grabber.New(capture.NewMockDriver(nil, false), queue, cfg)
}

func TestRegistry_CreateRegistered(t *testing.T) {
	r := New()
	if err := r.Register("mock", mockConstructor); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	g, err := r.Create("mock", grabber.NewQueue(1), grabber.Config{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if g == nil {
		t.Fatal("Create() returned nil grabber")
	}
	if got := g.State(); got != grabber.StateCreated {
		t.Errorf("new grabber state = %v, want created", got)
	}
}

func TestRegistry_CreateUnknown(t *testing.T) {
	r := New()

	_, err := r.Create("zed-mini", grabber.NewQueue(1), grabber.Config{})
	if !errors.Is(err, ErrUnknownCamera) {
		t.Errorf("Create() error = %v, want ErrUnknownCamera", err)
	}
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	r := New()
	if err := r.Register("mock", mockConstructor); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register("mock", mockConstructor); err == nil {
		t.Error("duplicate Register() should fail")
	}
}

func TestRegistry_Available(t *testing.T) {
	r := New()
	if got := r.Available(); len(got) != 0 {
		t.Errorf("Available() on empty registry = %v", got)
	}

	r.Register("zebra", mockConstructor)
	r.Register("alpha", mockConstructor)

	if got := r.Available(); !reflect.DeepEqual(got, []string{"alpha", "zebra"}) {
		t.Errorf("Available() = %v, want sorted [alpha zebra]", got)
	}
}

func TestRegisterBuiltins(t *testing.T) {
	r := New()
	if err := RegisterBuiltins(r); err != nil {
		t.Fatalf("RegisterBuiltins() error = %v", err)
	}

	found := false
	for _, name := range r.Available() {
		if name == "arducam" {
			found = true
		}
	}
	if !found {
		t.Errorf("Available() = %v, want arducam included", r.Available())
	}

	// Populating twice is the import-side-effect bug this registry
	// exists to avoid; it must fail loudly instead.
	if err := RegisterBuiltins(r); err == nil {
		t.Error("second RegisterBuiltins() should fail")
	}
}
