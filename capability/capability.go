package capability

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// ErrConfiguration is matched by every *ConfigurationError.
var ErrConfiguration = errors.New("capability configuration error")

// ConfigurationError reports a missing or circular binding.
type ConfigurationError struct {
	// Key names the offending capability.
	Key string
	// Reason describes the problem.
	Reason string
	// Chain is the resolution path that led to the problem, outermost first.
	Chain []string
}

func (e *ConfigurationError) Error() string {
	if len(e.Chain) > 0 {
		return fmt.Sprintf("capability %q: %s (%s)", e.Key, e.Reason, strings.Join(e.Chain, " -> "))
	}
	return fmt.Sprintf("capability %q: %s", e.Key, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// Dependency is implemented by *Key[T]. It lets factories declare
// heterogeneous dependencies in one slice.
type Dependency interface {
	Name() string
	dependency()
}

// Key identifies a capability of type T. Keys compare by identity: two
// calls to NewKey with the same name are distinct keys.
type Key[T any] struct {
	name string
}

func NewKey[T any](name string) *Key[T] { return &Key[T]{name: name} }

func (k *Key[T]) Name() string { return k.name }

func (k *Key[T]) String() string { return k.name }

func (*Key[T]) dependency() {}

// Factory constructs a T from the capabilities listed in Deps.
type Factory[T any] struct {
	Deps []Dependency
	New  func(s Scope) (T, error)
}

type binding struct {
	key  Dependency
	deps []Dependency
	new  func(Scope) (any, error)

	mu    sync.Mutex
	done  bool
	value any
	err   error
}

// BuilderOption configures NewBuilder.
type BuilderOption func(*Builder)

func WithLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.log = l
		}
	}
}

// Builder collects bindings until sealed.
type Builder struct {
	mu       sync.Mutex
	sealed   bool
	bindings map[Dependency]*binding
	order    []Dependency
	log      *slog.Logger
}

func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		bindings: map[Dependency]*binding{},
		log:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *Builder) define(key Dependency, bd *binding) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		panic(fmt.Sprintf("capability: Define(%q) after Seal", key.Name()))
	}
	if _, exists := b.bindings[key]; !exists {
		b.order = append(b.order, key)
	}
	b.bindings[key] = bd
}

// Define binds key to f, replacing any earlier binding.
func Define[T any](b *Builder, key *Key[T], f Factory[T]) {
	if f.New == nil {
		panic(fmt.Sprintf("capability: Define(%q) with nil constructor", key.Name()))
	}
	deps := append([]Dependency(nil), f.Deps...)
	b.define(key, &binding{
		key:  key,
		deps: deps,
		new: func(s Scope) (any, error) {
			return f.New(s)
		},
	})
}

// DefineValue binds key to a constant, replacing any earlier binding.
func DefineValue[T any](b *Builder, key *Key[T], v T) {
	b.define(key, &binding{key: key, done: true, value: v})
}

// Seal freezes the builder and returns a Resolver. On a configuration
// error the builder stays open so the host can correct it.
func (b *Builder) Seal() (*Resolver, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return nil, errors.New("capability: builder already sealed")
	}

	if err := validate(b.bindings, b.order); err != nil {
		return nil, err
	}

	b.sealed = true
	return &Resolver{bindings: b.bindings, order: b.order, log: b.log}, nil
}

const (
	unvisited = iota
	visiting
	visited
)

// validate walks the graph depth first. The visiting set is the in-progress
// stack; reaching a node on it means a cycle.
func validate(bindings map[Dependency]*binding, order []Dependency) error {
	state := make(map[Dependency]int, len(bindings))
	var stack []Dependency

	var visit func(d Dependency) error
	visit = func(d Dependency) error {
		switch state[d] {
		case visited:
			return nil
		case visiting:
			return cycleError(stack, d)
		}
		bd, ok := bindings[d]
		if !ok {
			return &ConfigurationError{Key: d.Name(), Reason: "no binding", Chain: names(append(stack, d))}
		}
		state[d] = visiting
		stack = append(stack, d)
		for _, dep := range bd.deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[d] = visited
		return nil
	}

	for _, d := range order {
		if err := visit(d); err != nil {
			return err
		}
	}
	return nil
}

func cycleError(stack []Dependency, d Dependency) error {
	start := 0
	for i, s := range stack {
		if s == d {
			start = i
			break
		}
	}
	chain := append(names(stack[start:]), d.Name())
	return &ConfigurationError{Key: d.Name(), Reason: "circular dependency", Chain: chain}
}

func names(ds []Dependency) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Name()
	}
	return out
}
