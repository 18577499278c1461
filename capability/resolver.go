package capability

import (
	"fmt"
	"log/slog"
	"slices"
)

// Resolver hands out the capabilities of a sealed Builder.
type Resolver struct {
	bindings map[Dependency]*binding
	order    []Dependency
	log      *slog.Logger
}

// Scope is what a factory sees while it runs: its declared capabilities,
// already constructed, and any positional arguments from CreateInstance.
type Scope struct {
	deps map[Dependency]any
	args []any
}

// Get returns the declared capability key from s.
func Get[T any](s Scope, key *Key[T]) (T, error) {
	var zero T
	v, ok := s.deps[key]
	if !ok {
		return zero, &ConfigurationError{Key: key.Name(), Reason: "not declared as a dependency"}
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, &ConfigurationError{Key: key.Name(), Reason: fmt.Sprintf("bound value has type %T", v)}
	}
	return t, nil
}

// Arg returns the i-th positional argument passed to CreateInstance.
func Arg[T any](s Scope, i int) (T, error) {
	var zero T
	if i < 0 || i >= len(s.args) {
		return zero, fmt.Errorf("capability: argument %d out of range (have %d)", i, len(s.args))
	}
	if s.args[i] == nil {
		return zero, nil
	}
	t, ok := s.args[i].(T)
	if !ok {
		return zero, fmt.Errorf("capability: argument %d has type %T, want %T", i, s.args[i], zero)
	}
	return t, nil
}

// Resolve returns the singleton bound to key, constructing it and its
// dependencies on first use.
func Resolve[T any](r *Resolver, key *Key[T]) (T, error) {
	var zero T
	v, err := r.resolve(key, nil)
	if err != nil || v == nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, &ConfigurationError{Key: key.Name(), Reason: fmt.Sprintf("bound value has type %T", v)}
	}
	return t, nil
}

// CreateInstance runs f with its declared capabilities and args. The result
// is not memoized; every call constructs a new instance.
func CreateInstance[T any](r *Resolver, f Factory[T], args ...any) (T, error) {
	var zero T
	if f.New == nil {
		return zero, fmt.Errorf("capability: CreateInstance with nil constructor")
	}
	deps, err := r.resolveAll(f.Deps, nil)
	if err != nil {
		return zero, err
	}
	return f.New(Scope{deps: deps, args: args})
}

// Keys lists bound capability names in definition order.
func (r *Resolver) Keys() []string { return names(r.order) }

func (r *Resolver) resolveAll(deps []Dependency, stack []Dependency) (map[Dependency]any, error) {
	out := make(map[Dependency]any, len(deps))
	for _, d := range deps {
		v, err := r.resolve(d, stack)
		if err != nil {
			return nil, err
		}
		out[d] = v
	}
	return out, nil
}

// resolve constructs d once. stack is the chain of keys currently being
// constructed by this call path.
func (r *Resolver) resolve(d Dependency, stack []Dependency) (any, error) {
	if slices.Contains(stack, d) {
		return nil, cycleError(stack, d)
	}
	bd, ok := r.bindings[d]
	if !ok {
		return nil, &ConfigurationError{Key: d.Name(), Reason: "no binding", Chain: names(append(stack, d))}
	}

	bd.mu.Lock()
	defer bd.mu.Unlock()
	if bd.done {
		return bd.value, bd.err
	}

	stack = append(slices.Clip(stack), d)
	deps, err := r.resolveAll(bd.deps, stack)
	if err == nil {
		bd.value, err = bd.new(Scope{deps: deps})
	}
	if err != nil {
		bd.err = fmt.Errorf("construct %s: %w", d.Name(), err)
		r.log.Debug("capability.construct.fail", slog.String("key", d.Name()), slog.String("err", err.Error()))
	} else {
		r.log.Debug("capability.construct.ok", slog.String("key", d.Name()))
	}
	bd.done = true
	return bd.value, bd.err
}
