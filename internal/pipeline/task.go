// Package pipeline holds the task registry, the fixed build sequence and
// the runner that executes named tasks in order.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	perrors "github.com/conneroisu/assetpipe/internal/errors"
	"github.com/conneroisu/assetpipe/internal/source"
)

// Task names.
const (
	TaskClean             = "clean"
	TaskCopy              = "copy"
	TaskRenderMarkup      = "render-markup"
	TaskStyle             = "style"
	TaskBundleScripts     = "bundle-scripts"
	TaskCopyVendorScripts = "copy-vendor-scripts"
	TaskImages            = "images"
	TaskSVGSprite         = "svg-sprite"
)

// BuildSequence is the order in which build runs every task. Each task
// reads only from the source root, so the order matters only for clean
// coming first.
var BuildSequence = []string{
	TaskClean,
	TaskCopy,
	TaskRenderMarkup,
	TaskStyle,
	TaskBundleScripts,
	TaskCopyVendorScripts,
	TaskImages,
	TaskSVGSprite,
}

// RunFunc performs one task run. It either writes all of its outputs or
// returns an error; already written files are not rolled back.
type RunFunc func(ctx context.Context, env *Env) error

// Task is a named idempotent build step.
type Task struct {
	Name        string
	Description string
	// Kind is the resource kind the task consumes, zero for clean.
	Kind source.Kind
	Run  RunFunc
}

// Registry holds tasks by name in registration order.
type Registry struct {
	tasks map[string]*Task
	order []string
	mutex sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tasks: make(map[string]*Task),
	}
}

// Register adds a task. Names must be unique and non-empty.
func (r *Registry) Register(task *Task) error {
	if task == nil || task.Name == "" {
		return perrors.NewValidationError(perrors.ErrCodeInternalError, "task must have a name")
	}
	if task.Run == nil {
		return perrors.NewValidationError(perrors.ErrCodeInternalError,
			fmt.Sprintf("task %q has no run function", task.Name))
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.tasks[task.Name]; exists {
		return perrors.NewValidationError(perrors.ErrCodeInternalError,
			fmt.Sprintf("task %q already registered", task.Name))
	}
	r.tasks[task.Name] = task
	r.order = append(r.order, task.Name)
	return nil
}

// Lookup returns the task registered under name.
func (r *Registry) Lookup(name string) (*Task, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	task, ok := r.tasks[name]
	if !ok {
		return nil, perrors.NewValidationError(perrors.ErrCodeTaskNotFound,
			fmt.Sprintf("unknown task %q", name))
	}
	return task, nil
}

// Tasks returns the registered tasks in registration order.
func (r *Registry) Tasks() []*Task {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]*Task, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tasks[name])
	}
	return out
}

// Names returns the registered task names in registration order.
func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return append([]string(nil), r.order...)
}

// Count returns the number of registered tasks.
func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.order)
}
