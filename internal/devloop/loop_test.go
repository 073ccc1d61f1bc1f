package devloop

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/assetpipe/internal/config"
	"github.com/conneroisu/assetpipe/internal/pipeline"
)

type fakeRunner struct {
	mutex sync.Mutex
	calls [][]string
	fail  map[string]error
	delay time.Duration
}

func (r *fakeRunner) Run(_ context.Context, names ...string) error {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.calls = append(r.calls, append([]string(nil), names...))
	for _, n := range names {
		if err := r.fail[n]; err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeRunner) Calls() [][]string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([][]string(nil), r.calls...)
}

type fakeReloader struct {
	mutex    sync.Mutex
	reloads  int
	failures []error
}

func (f *fakeReloader) Reload(context.Context) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.reloads++
}

func (f *fakeReloader) Failure(_ context.Context, err error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.failures = append(f.failures, err)
}

func (f *fakeReloader) counts() (int, int) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.reloads, len(f.failures)
}

const testDelay = 30 * time.Millisecond

func testGroups() []Group {
	cfg := config.Default()
	cfg.Watch.Delay = testDelay
	cfg.Watch.BulkDelay = testDelay
	return DefaultGroups(cfg)
}

func startLoop(t *testing.T, runner *fakeRunner, reloader *fakeReloader) (*Loop, string) {
	t.Helper()
	src := t.TempDir()
	loop, err := New(Options{
		SourceDir: src,
		Groups:    testGroups(),
		Runner:    runner,
		Reloader:  reloader,
		NoWatch:   true,
	})
	require.NoError(t, err)
	require.NoError(t, loop.Start(context.Background()))
	t.Cleanup(loop.Stop)
	return loop, src
}

func waitIdle(t *testing.T, loop *Loop) {
	t.Helper()
	require.Eventually(t, func() bool { return loop.State() == StateIdle }, 2*time.Second, 5*time.Millisecond)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "change-detected", StateChangeDetected.String())
	assert.Equal(t, "rerun", StateRerunning.String())
	assert.Equal(t, "reload", StateReloading.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestDefaultGroups(t *testing.T) {
	groups := DefaultGroups(config.Default())
	require.Len(t, groups, 7)

	byName := map[string]Group{}
	for _, g := range groups {
		byName[g.Name] = g
		require.Len(t, g.Tasks, 1, g.Name)
	}

	assert.Equal(t, pipeline.TaskRenderMarkup, byName["markup"].Tasks[0])
	assert.Equal(t, pipeline.TaskStyle, byName["style"].Tasks[0])
	assert.Equal(t, pipeline.TaskBundleScripts, byName["script-dev"].Tasks[0])
	assert.Equal(t, pipeline.TaskCopyVendorScripts, byName["script-vendor"].Tasks[0])
	assert.Equal(t, pipeline.TaskCopy, byName["static"].Tasks[0])
	assert.Equal(t, pipeline.TaskImages, byName["image"].Tasks[0])
	assert.Equal(t, pipeline.TaskSVGSprite, byName["sprite"].Tasks[0])

	assert.Equal(t, 200*time.Millisecond, byName["markup"].Delay)
	assert.Equal(t, 500*time.Millisecond, byName["static"].Delay)
	assert.Equal(t, 500*time.Millisecond, byName["image"].Delay)
	assert.Equal(t, 200*time.Millisecond, byName["sprite"].Delay)
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{SourceDir: t.TempDir(), Groups: testGroups()})
	assert.Error(t, err, "missing runner")

	_, err = New(Options{SourceDir: t.TempDir(), Runner: &fakeRunner{}})
	assert.Error(t, err, "no groups")

	bad := testGroups()
	bad[0].Delay = 0
	_, err = New(Options{SourceDir: t.TempDir(), Groups: bad, Runner: &fakeRunner{}})
	assert.Error(t, err, "zero delay")

	dup := append(testGroups(), testGroups()[0])
	_, err = New(Options{SourceDir: t.TempDir(), Groups: dup, Runner: &fakeRunner{}})
	assert.Error(t, err, "duplicate group")
}

func TestMarkupChangeRerunsOnlyMarkup(t *testing.T) {
	runner := &fakeRunner{}
	reloader := &fakeReloader{}
	loop, src := startLoop(t, runner, reloader)

	groups := loop.Notify(filepath.Join(src, "html", "partials", "nav.html"))
	assert.Equal(t, []string{"markup"}, groups)

	require.Eventually(t, func() bool { return len(runner.Calls()) == 1 }, 2*time.Second, 5*time.Millisecond)
	waitIdle(t, loop)

	assert.Equal(t, [][]string{{pipeline.TaskRenderMarkup}}, runner.Calls())
	reloads, failures := reloader.counts()
	assert.Equal(t, 1, reloads)
	assert.Equal(t, 0, failures)

	last := loop.LastResult()
	require.NotNil(t, last)
	assert.Equal(t, "markup", last.Group)
	assert.Empty(t, last.Error)
}

func TestStyleChangeRerunsOnlyStyle(t *testing.T) {
	runner := &fakeRunner{}
	reloader := &fakeReloader{}
	loop, src := startLoop(t, runner, reloader)

	loop.Notify(filepath.Join(src, "styles", "partials", "buttons.less"))

	require.Eventually(t, func() bool { return len(runner.Calls()) == 1 }, 2*time.Second, 5*time.Millisecond)
	waitIdle(t, loop)

	assert.Equal(t, [][]string{{pipeline.TaskStyle}}, runner.Calls())
	reloads, _ := reloader.counts()
	assert.Equal(t, 1, reloads)
}

func TestRapidChangesTriggerOneRerun(t *testing.T) {
	runner := &fakeRunner{}
	reloader := &fakeReloader{}
	loop, src := startLoop(t, runner, reloader)

	for i := 0; i < 5; i++ {
		loop.Notify(filepath.Join(src, "html", "index.html"))
		time.Sleep(2 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return len(runner.Calls()) == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(3 * testDelay)
	waitIdle(t, loop)

	assert.Len(t, runner.Calls(), 1)
	reloads, _ := reloader.counts()
	assert.Equal(t, 1, reloads)
}

func TestFailureKeepsLoopAlive(t *testing.T) {
	boom := errors.New("ParseError: unexpected token")
	runner := &fakeRunner{fail: map[string]error{pipeline.TaskStyle: boom}}
	reloader := &fakeReloader{}
	loop, src := startLoop(t, runner, reloader)

	loop.Notify(filepath.Join(src, "styles", "styles.less"))
	require.Eventually(t, func() bool {
		_, failures := reloader.counts()
		return failures == 1
	}, 2*time.Second, 5*time.Millisecond)
	waitIdle(t, loop)

	last := loop.LastResult()
	require.NotNil(t, last)
	assert.Contains(t, last.Error, "unexpected token")

	loop.Notify(filepath.Join(src, "html", "index.html"))
	require.Eventually(t, func() bool {
		reloads, _ := reloader.counts()
		return reloads == 1
	}, 2*time.Second, 5*time.Millisecond)
	waitIdle(t, loop)

	assert.Equal(t, [][]string{{pipeline.TaskStyle}, {pipeline.TaskRenderMarkup}}, runner.Calls())
}

func TestUnmatchedAndOutsidePathsAreIgnored(t *testing.T) {
	runner := &fakeRunner{}
	loop, src := startLoop(t, runner, &fakeReloader{})

	assert.Empty(t, loop.Notify(filepath.Join(src, "README.md")))
	assert.Empty(t, loop.Notify(filepath.Join(src, "styles", "notes.txt")))
	assert.Empty(t, loop.Notify(filepath.Join(filepath.Dir(src), "elsewhere", "index.html")))
	assert.Empty(t, loop.Notify(src))

	time.Sleep(3 * testDelay)
	assert.Empty(t, runner.Calls())
	assert.Equal(t, StateIdle, loop.State())
}

func TestPathMatchingSeveralGroups(t *testing.T) {
	groups := testGroups()
	groups = append(groups, Group{
		Name:     "everything-html",
		Patterns: []string{"**/*.html"},
		Tasks:    []string{"custom"},
		Delay:    testDelay,
	})

	runner := &fakeRunner{}
	loop, err := New(Options{SourceDir: t.TempDir(), Groups: groups, Runner: runner, NoWatch: true})
	require.NoError(t, err)
	require.NoError(t, loop.Start(context.Background()))
	defer loop.Stop()

	matched := loop.Notify(filepath.Join(loop.sourceDir, "html", "index.html"))
	assert.ElementsMatch(t, []string{"markup", "everything-html"}, matched)

	require.Eventually(t, func() bool { return len(runner.Calls()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, [][]string{{pipeline.TaskRenderMarkup}, {"custom"}}, runner.Calls())
}

func TestReRunsAreSerial(t *testing.T) {
	runner := &concurrencyRunner{delay: 20 * time.Millisecond}
	loop, err := New(Options{SourceDir: t.TempDir(), Groups: testGroups(), Runner: runner, NoWatch: true})
	require.NoError(t, err)
	require.NoError(t, loop.Start(context.Background()))
	defer loop.Stop()

	for _, rel := range []string{"html/index.html", "styles/a.less", "scripts/dev/main.js", "scripts/vendor/lib.js"} {
		loop.Notify(filepath.Join(loop.sourceDir, filepath.FromSlash(rel)))
	}

	require.Eventually(t, func() bool { return runner.total() == 4 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, runner.maxActive())
}

type concurrencyRunner struct {
	mutex  sync.Mutex
	delay  time.Duration
	active int
	max    int
	runs   int
}

func (r *concurrencyRunner) Run(context.Context, ...string) error {
	r.mutex.Lock()
	r.active++
	if r.active > r.max {
		r.max = r.active
	}
	r.mutex.Unlock()

	time.Sleep(r.delay)

	r.mutex.Lock()
	r.active--
	r.runs++
	r.mutex.Unlock()
	return nil
}

func (r *concurrencyRunner) total() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.runs
}

func (r *concurrencyRunner) maxActive() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.max
}

func TestStartTwiceFails(t *testing.T) {
	loop, _ := startLoop(t, &fakeRunner{}, &fakeReloader{})
	assert.Error(t, loop.Start(context.Background()))
}

func TestStopSetsStoppedState(t *testing.T) {
	loop, err := New(Options{SourceDir: t.TempDir(), Groups: testGroups(), Runner: &fakeRunner{}, NoWatch: true})
	require.NoError(t, err)
	require.NoError(t, loop.Start(context.Background()))

	loop.Stop()
	assert.Equal(t, StateStopped, loop.State())
}
