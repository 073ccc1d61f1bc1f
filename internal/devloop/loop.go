// Package devloop implements the watch/reload loop: file changes are
// matched to watch groups, debounced per group, rerun through a single
// serial queue and followed by a reload signal.
package devloop

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/assetpipe/internal/logging"
	"github.com/conneroisu/assetpipe/internal/metrics"
	"github.com/conneroisu/assetpipe/internal/watcher"
)

// State is the loop's position in its cycle.
type State int

const (
	StateIdle State = iota
	StateChangeDetected
	StateRerunning
	StateReloading
	StateStopped
)

// String returns the string representation of the State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChangeDetected:
		return "change-detected"
	case StateRerunning:
		return "rerun"
	case StateReloading:
		return "reload"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Runner runs named tasks in order. *pipeline.Runner satisfies it.
type Runner interface {
	Run(ctx context.Context, names ...string) error
}

// Reloader signals connected browsers. Reload asks them to refresh;
// Failure asks them to show an error overlay.
type Reloader interface {
	Reload(ctx context.Context)
	Failure(ctx context.Context, err error)
}

// Result describes the most recent rerun.
type Result struct {
	Group    string        `json:"group"`
	Tasks    []string      `json:"tasks"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	Finished time.Time     `json:"finished"`
}

// Options configures a Loop.
type Options struct {
	SourceDir string
	Groups    []Group
	Runner    Runner
	Reloader  Reloader
	Logger    logging.Logger
	Recorder  metrics.Recorder
	// NoWatch disables the filesystem watcher; changes are fed through
	// Notify only.
	NoWatch bool
}

// Loop is the watch/reload loop.
type Loop struct {
	sourceDir  string
	groups     []Group
	runner     Runner
	reloader   Reloader
	logger     logging.Logger
	recorder   metrics.Recorder
	noWatch    bool
	debouncers map[string]*watcher.Debouncer

	mutex   sync.Mutex
	state   State
	queue   []string
	queued  map[string]bool
	last    *Result
	started bool

	wake    chan struct{}
	watcher *watcher.FileWatcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type noopReloader struct{}

func (noopReloader) Reload(context.Context)         {}
func (noopReloader) Failure(context.Context, error) {}

// New creates a loop. It does not watch anything until Start.
func New(opts Options) (*Loop, error) {
	if opts.Runner == nil {
		return nil, fmt.Errorf("devloop: runner is required")
	}
	if err := validateGroups(opts.Groups); err != nil {
		return nil, fmt.Errorf("devloop: %w", err)
	}
	sourceDir, err := filepath.Abs(opts.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("devloop: resolve source dir: %w", err)
	}

	l := &Loop{
		sourceDir:  sourceDir,
		groups:     opts.Groups,
		runner:     opts.Runner,
		reloader:   opts.Reloader,
		logger:     opts.Logger,
		recorder:   opts.Recorder,
		noWatch:    opts.NoWatch,
		debouncers: make(map[string]*watcher.Debouncer, len(opts.Groups)),
		queued:     make(map[string]bool),
		wake:       make(chan struct{}, 1),
	}
	if l.reloader == nil {
		l.reloader = noopReloader{}
	}
	if l.logger == nil {
		l.logger = logging.Discard()
	}
	l.logger = l.logger.WithComponent("devloop")
	if l.recorder == nil {
		l.recorder = metrics.NoopRecorder{}
	}

	for _, g := range l.groups {
		name := g.Name
		l.debouncers[name] = watcher.NewDebouncer(g.Delay, func(events []watcher.ChangeEvent) {
			l.enqueue(name, events)
		})
	}

	return l, nil
}

// Start begins watching the source tree and processing reruns. It returns
// once the watcher is registered.
func (l *Loop) Start(ctx context.Context) error {
	l.mutex.Lock()
	if l.started {
		l.mutex.Unlock()
		return fmt.Errorf("devloop: already started")
	}
	l.started = true
	l.mutex.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel

	if !l.noWatch {
		fw, err := watcher.NewFileWatcher(l.logger)
		if err != nil {
			cancel()
			return err
		}
		fw.AddFilter(watcher.NoTempFilter)
		fw.AddFilter(watcher.NoHiddenFilter)
		fw.AddHandler(func(event watcher.ChangeEvent) {
			l.Notify(event.Path)
		})
		if err := fw.AddRecursive(l.sourceDir); err != nil {
			_ = fw.Stop()
			cancel()
			return fmt.Errorf("devloop: watch %s: %w", l.sourceDir, err)
		}
		if err := fw.Start(ctx); err != nil {
			_ = fw.Stop()
			cancel()
			return err
		}
		l.watcher = fw
	}

	dirs := 0
	if l.watcher != nil {
		dirs = len(l.watcher.WatchList())
	}

	l.wg.Add(1)
	go l.work(ctx)

	l.logger.Info(ctx, "Watching for changes", "source", l.sourceDir, "groups", len(l.groups), "dirs", dirs)
	return nil
}

// Stop stops watching and waits for an in-flight rerun to finish.
func (l *Loop) Stop() {
	for _, d := range l.debouncers {
		d.Stop()
	}
	if l.watcher != nil {
		_ = l.watcher.Stop()
	}
	if l.cancel != nil {
		l.cancel()
	}
	l.wg.Wait()

	l.mutex.Lock()
	l.state = StateStopped
	l.mutex.Unlock()
}

// Notify reports a change to path. Paths outside the source root or
// matching no group are ignored. It returns the names of the groups the
// change was routed to.
func (l *Loop) Notify(path string) []string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil
	}
	rel, err := filepath.Rel(l.sourceDir, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	rel = filepath.ToSlash(rel)

	var matched []string
	for _, g := range l.groups {
		if !g.Matches(rel) {
			continue
		}
		matched = append(matched, g.Name)
		l.debouncers[g.Name].Add(watcher.ChangeEvent{Type: watcher.EventTypeModified, Path: rel})
	}

	if len(matched) > 0 {
		l.mutex.Lock()
		if l.state == StateIdle {
			l.state = StateChangeDetected
		}
		l.mutex.Unlock()
		l.logger.Debug(context.Background(), "Change detected", "path", rel, "groups", matched)
	}
	return matched
}

// State returns the current state.
func (l *Loop) State() State {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.state
}

// LastResult returns the most recent rerun, or nil before the first one.
func (l *Loop) LastResult() *Result {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.last == nil {
		return nil
	}
	r := *l.last
	return &r
}

// Groups returns the configured watch groups.
func (l *Loop) Groups() []Group {
	return append([]Group(nil), l.groups...)
}

// enqueue adds a debounced trigger to the serial queue. A group already
// waiting in the queue is not queued twice.
func (l *Loop) enqueue(group string, events []watcher.ChangeEvent) {
	l.mutex.Lock()
	if l.state == StateStopped {
		l.mutex.Unlock()
		return
	}
	if !l.queued[group] {
		l.queued[group] = true
		l.queue = append(l.queue, group)
	}
	l.mutex.Unlock()

	l.logger.Debug(context.Background(), "Queued rerun", "group", group, "changes", len(events))

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) next() (Group, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if len(l.queue) == 0 {
		return Group{}, false
	}
	name := l.queue[0]
	l.queue = l.queue[1:]
	delete(l.queued, name)

	for _, g := range l.groups {
		if g.Name == name {
			return g, true
		}
	}
	return Group{}, false
}

func (l *Loop) setState(s State) {
	l.mutex.Lock()
	l.state = s
	l.mutex.Unlock()
}

// work is the single rerun goroutine.
func (l *Loop) work(ctx context.Context) {
	defer l.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}

		for {
			if ctx.Err() != nil {
				return
			}
			g, ok := l.next()
			if !ok {
				break
			}
			l.rerun(ctx, g)
		}

		l.mutex.Lock()
		if len(l.queue) == 0 && l.state != StateStopped {
			l.state = StateIdle
			for _, d := range l.debouncers {
				if d.Pending() > 0 {
					l.state = StateChangeDetected
					break
				}
			}
		}
		l.mutex.Unlock()
	}
}

func (l *Loop) rerun(ctx context.Context, g Group) {
	l.setState(StateRerunning)
	l.recorder.IncRerun(g.Name)

	start := time.Now()
	err := l.runner.Run(ctx, g.Tasks...)
	duration := time.Since(start)
	if ctx.Err() != nil {
		return
	}

	result := &Result{
		Group:    g.Name,
		Tasks:    append([]string(nil), g.Tasks...),
		Duration: duration,
		Finished: time.Now(),
	}

	l.setState(StateReloading)
	if err != nil {
		result.Error = err.Error()
		l.logger.Error(ctx, err, "Rerun failed", "group", g.Name, "duration_ms", duration.Milliseconds())
		l.reloader.Failure(ctx, err)
	} else {
		l.logger.Info(ctx, "Rebuilt", "group", g.Name, "duration_ms", duration.Milliseconds())
		l.reloader.Reload(ctx)
	}
	l.recorder.IncReload()

	l.mutex.Lock()
	l.last = result
	l.mutex.Unlock()
}
