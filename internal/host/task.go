package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
)

var (
	ErrUnknownTask = errors.New("unrecognized task")
	ErrNoSuper     = errors.New("task has no previous definition to run")
)

// Args are the named arguments a task runs with.
type Args map[string]any

// Action implements a task.
type Action func(ctx context.Context, args Args, rt *Runtime) (any, error)

// RunSuper runs the definition a task replaced. Passing nil args reuses the
// arguments the overriding action received.
type RunSuper func(ctx context.Context, args Args) (any, error)

// OverrideAction implements a task that can defer to the definition it
// replaced.
type OverrideAction func(ctx context.Context, args Args, rt *Runtime, runSuper RunSuper) (any, error)

// ParamType converts a command-line value into a task argument.
type ParamType interface {
	Name() string
	Parse(param, value string) (any, error)
}

type stringType struct{}

func (stringType) Name() string { return "string" }

func (stringType) Parse(_, value string) (any, error) { return value, nil }

type jsonType struct{}

func (jsonType) Name() string { return "json" }

func (jsonType) Parse(param, value string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(value), &v); err != nil {
		return nil, fmt.Errorf("invalid value %q for argument %s of type json: %w", value, param, err)
	}
	return v, nil
}

var (
	String ParamType = stringType{}
	JSON   ParamType = jsonType{}
)

type Param struct {
	Name        string
	Description string
	Default     any
	Type        ParamType
	Positional  bool
}

// Task is a named unit of work. Subtasks are meant to be run by other tasks
// rather than from the command line.
type Task struct {
	Name        string
	Description string
	Subtask     bool
	Params      []Param

	mu      sync.RWMutex
	actions []OverrideAction
}

func (t *Task) AddOptionalParam(name, description string, def any, typ ParamType) *Task {
	t.Params = append(t.Params, Param{Name: name, Description: description, Default: def, Type: typ})
	return t
}

func (t *Task) AddOptionalPositionalParam(name, description string, def any, typ ParamType) *Task {
	t.Params = append(t.Params, Param{Name: name, Description: description, Default: def, Type: typ, Positional: true})
	return t
}

func (t *Task) push(action OverrideAction) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.actions = append(t.actions, action)
}

// withDefaults fills in every param the caller left out.
func (t *Task) withDefaults(args Args) Args {
	out := maps.Clone(args)
	if out == nil {
		out = Args{}
	}
	for _, p := range t.Params {
		if _, ok := out[p.Name]; ok {
			continue
		}
		out[p.Name] = cloneDefault(p.Default)
	}
	return out
}

func cloneDefault(v any) any {
	if m, ok := v.(map[string]any); ok {
		return maps.Clone(m)
	}
	return v
}

func (t *Task) run(ctx context.Context, args Args, rt *Runtime) (any, error) {
	t.mu.RLock()
	actions := append([]OverrideAction{}, t.actions...)
	t.mu.RUnlock()
	return runAt(ctx, actions, len(actions)-1, args, rt)
}

func runAt(ctx context.Context, actions []OverrideAction, i int, args Args, rt *Runtime) (any, error) {
	if i < 0 {
		return nil, ErrNoSuper
	}
	runSuper := func(ctx context.Context, next Args) (any, error) {
		if next == nil {
			next = args
		}
		return runAt(ctx, actions, i-1, next, rt)
	}
	return actions[i](ctx, args, rt, runSuper)
}

// Registry holds every task a runtime can run.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

func NewRegistry() *Registry {
	return &Registry{tasks: map[string]*Task{}}
}

func (r *Registry) Task(name, description string, action Action) *Task {
	return r.define(name, description, false, ignoreSuper(action))
}

func (r *Registry) Subtask(name, description string, action Action) *Task {
	return r.define(name, description, true, ignoreSuper(action))
}

// Override replaces the action of an existing task, keeping its params. The
// new action can reach the old one through runSuper.
func (r *Registry) Override(name string, action OverrideAction) *Task {
	return r.define(name, "", true, action)
}

func (r *Registry) define(name, description string, subtask bool, action OverrideAction) *Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[name]
	if !ok {
		t = &Task{Name: name, Description: description, Subtask: subtask}
		r.tasks[name] = t
	} else if description != "" {
		t.Description = description
	}
	t.push(action)
	return t
}

func (r *Registry) Get(name string) (*Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[name]
	return t, ok
}

// Tasks returns every task sorted by name.
func (r *Registry) Tasks() []*Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func ignoreSuper(action Action) OverrideAction {
	return func(ctx context.Context, args Args, rt *Runtime, _ RunSuper) (any, error) {
		return action(ctx, args, rt)
	}
}
