package server

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/felixgeelhaar/openrpc-go/discover"
)

// ErrMethodNotFound is returned when removing a method that is not registered.
var ErrMethodNotFound = errors.New("method not found")

// Registry holds methods by name in registration order. A Registry created
// with NewRouter can be included into a Server or another Registry.
type Registry struct {
	mu       sync.RWMutex
	methods  map[string]*Method
	order    []string
	included []inclusion
}

type inclusion struct {
	parent *Registry
	prefix string
	tags   []discover.Tag
}

// NewRouter creates an empty registry.
func NewRouter() *Registry {
	return &Registry{methods: make(map[string]*Method)}
}

// Register adds a handler under name, replacing any method with the same
// name. Registration fails if the handler signature cannot be served.
func (r *Registry) Register(name string, handler any, meta Metadata) error {
	if name == "" {
		return errors.New("method name must not be empty")
	}
	m, err := newMethod(name, handler, meta)
	if err != nil {
		return fmt.Errorf("register %q: %w", name, err)
	}
	r.put(m)
	return nil
}

// Method starts building a method with the given name.
func (r *Registry) Method(name string) *MethodBuilder {
	return &MethodBuilder{registry: r, name: name}
}

// Remove unregisters a method, including the prefixed copies held by
// registries this one was included into.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	if _, ok := r.methods[name]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrMethodNotFound, name)
	}
	delete(r.methods, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
	parents := slices.Clone(r.included)
	r.mu.Unlock()

	for _, inc := range parents {
		// The parent may already have dropped or replaced it.
		_ = inc.parent.Remove(inc.prefix + name)
	}
	return nil
}

// Lookup returns the method registered under name.
func (r *Registry) Lookup(name string) (*Method, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.methods[name]
	return m, ok
}

// Methods returns the registered methods in registration order.
func (r *Registry) Methods() []*Method {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Method, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.methods[name])
	}
	return out
}

// Names returns the registered method names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// IncludeOption configures Include.
type IncludeOption func(*inclusion)

// WithPrefix prepends prefix to every included method name.
func WithPrefix(prefix string) IncludeOption {
	return func(i *inclusion) {
		i.prefix = prefix
	}
}

// WithTags appends tags to every included method.
func WithTags(tags ...discover.Tag) IncludeOption {
	return func(i *inclusion) {
		i.tags = append(i.tags, tags...)
	}
}

// Include copies the methods of sub into r. Methods registered on or
// removed from sub afterwards are mirrored into r.
func (r *Registry) Include(sub *Registry, opts ...IncludeOption) {
	inc := inclusion{parent: r}
	for _, opt := range opts {
		opt(&inc)
	}

	sub.mu.Lock()
	sub.included = append(sub.included, inc)
	methods := make([]*Method, 0, len(sub.order))
	for _, name := range sub.order {
		methods = append(methods, sub.methods[name])
	}
	sub.mu.Unlock()

	for _, m := range methods {
		r.put(m.included(inc.prefix, inc.tags))
	}
}

func (r *Registry) put(m *Method) {
	r.mu.Lock()
	if _, exists := r.methods[m.name]; !exists {
		r.order = append(r.order, m.name)
	}
	r.methods[m.name] = m
	parents := slices.Clone(r.included)
	r.mu.Unlock()

	for _, inc := range parents {
		inc.parent.put(m.included(inc.prefix, inc.tags))
	}
}
