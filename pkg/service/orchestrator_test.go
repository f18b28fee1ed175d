package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pir2motion/pir2motion/pkg/config"
	"github.com/pir2motion/pir2motion/pkg/errors"
	"github.com/pir2motion/pir2motion/pkg/recorder"
	"github.com/pir2motion/pir2motion/pkg/retention"
	"github.com/pir2motion/pir2motion/pkg/sensor"
	"github.com/pir2motion/pir2motion/pkg/stats"
)

const saveDir = "/videos"

type testSource struct {
	mu sync.Mutex
	l  sensor.Listener
}

func (s *testSource) Subscribe(l sensor.Listener) {
	s.mu.Lock()
	s.l = l
	s.mu.Unlock()
}

func (s *testSource) Unsubscribe() {
	s.mu.Lock()
	s.l = nil
	s.mu.Unlock()
}

func (s *testSource) subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.l != nil
}

func (s *testSource) motion(present bool) {
	s.mu.Lock()
	l := s.l
	s.mu.Unlock()
	if l == nil {
		return
	}
	if present {
		l.MotionStarted()
	} else {
		l.MotionStopped()
	}
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

// Now advances a second per call so consecutive sessions get distinct names
func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type testStore struct {
	mu      sync.Mutex
	files   map[string]retention.File
	failing map[string]bool
}

func newTestStore(files ...retention.File) *testStore {
	s := &testStore{
		files:   make(map[string]retention.File),
		failing: make(map[string]bool),
	}
	for _, f := range files {
		s.files[f.Name] = f
	}
	return s
}

func (s *testStore) List() ([]retention.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := make([]retention.File, 0, len(s.files))
	for _, f := range s.files {
		files = append(files, f)
	}
	return files, nil
}

func (s *testStore) Remove(f retention.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing[f.Name] {
		return errors.ErrDeleteFailed(f.Path, errors.New("device busy"))
	}
	delete(s.files, f.Name)
	return nil
}

func (s *testStore) add(f retention.File) {
	s.mu.Lock()
	s.files[f.Name] = f
	s.mu.Unlock()
}

func (s *testStore) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// testRunner writes the session's file into the store, then blocks normal
// sessions until released through gate
type testRunner struct {
	store *testStore
	gate  chan struct{}
	fail  func(s *recorder.Session) error

	mu         sync.Mutex
	running    int
	maxRunning int
	sessions   []*recorder.Session
	started    chan *recorder.Session
}

func newTestRunner(store *testStore) *testRunner {
	return &testRunner{
		store:   store,
		gate:    make(chan struct{}),
		started: make(chan *recorder.Session, 100),
	}
}

func (r *testRunner) Run(s *recorder.Session) (*recorder.Result, error) {
	r.mu.Lock()
	r.running++
	if r.running > r.maxRunning {
		r.maxRunning = r.running
	}
	r.sessions = append(r.sessions, s)
	fail := r.fail
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running--
		r.mu.Unlock()
	}()

	r.started <- s
	if fail != nil {
		if err := fail(s); err != nil {
			return nil, err
		}
	}

	r.store.add(retention.File{Name: s.Filename, Path: s.FilePath, Created: s.StartedAt})
	if s.Mode == recorder.Normal {
		<-r.gate
	}
	return &recorder.Result{PID: 1234, Duration: time.Second}, nil
}

func (r *testRunner) release(t *testing.T) {
	t.Helper()
	select {
	case r.gate <- struct{}{}:
	case <-time.After(2 * time.Second):
		t.Fatal("no recording to release")
	}
}

func (r *testRunner) next(t *testing.T) *recorder.Session {
	t.Helper()
	select {
	case s := <-r.started:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no recording started")
		return nil
	}
}

func (r *testRunner) none(t *testing.T) {
	t.Helper()
	select {
	case s := <-r.started:
		t.Fatalf("unexpected recording %s (%s)", s.Filename, s.Mode)
	case <-time.After(100 * time.Millisecond):
	}
}

func (r *testRunner) count() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions), r.maxRunning
}

type testEnv struct {
	o      *Orchestrator
	source *testSource
	store  *testStore
	runner *testRunner
}

var testStart = time.Date(2024, 1, 10, 0, 0, 0, 0, time.Local)

func newTestEnv(files ...retention.File) *testEnv {
	conf := &config.ServiceConfig{
		MotionDetection: config.MotionDetectionConfig{SaveFolder: saveDir},
		Retention:       config.RetentionConfig{MaxAge: config.DefaultMaxAge},
	}
	e := &testEnv{
		source: &testSource{},
		store:  newTestStore(files...),
	}
	e.runner = newTestRunner(e.store)
	e.o = NewOrchestrator(conf, e.source, e.runner, e.store, stats.NewMonitor("PM_test"))
	clock := &testClock{t: testStart}
	e.o.now = clock.Now
	return e
}

func (e *testEnv) start(t *testing.T) {
	t.Helper()
	require.NoError(t, e.o.Start(context.Background()))
	s := e.runner.next(t)
	require.Equal(t, recorder.SelfTest, s.Mode)
	t.Cleanup(e.o.Stop)
}

func (e *testEnv) waitIdle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return e.o.Active() == nil
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSelfTest(t *testing.T) {
	existing := retention.File{Name: "v20240109T000000.mkv", Path: saveDir + "/v20240109T000000.mkv", Created: testStart.Add(-2 * time.Hour)}
	ancient := retention.File{Name: "v20231201T000000.mkv", Path: saveDir + "/v20231201T000000.mkv", Created: testStart.Add(-40 * 24 * time.Hour)}
	e := newTestEnv(existing, ancient)
	before := e.store.names()

	e.start(t)

	sessions, _ := e.runner.count()
	require.Equal(t, 1, sessions)
	require.Equal(t, before, e.store.names())
	require.True(t, e.source.subscribed())

	status := e.o.Status()
	require.True(t, status.Ready)
	require.False(t, status.StopRequested)
	require.Nil(t, status.Recording)

	// already started
	require.NoError(t, e.o.Start(context.Background()))
	e.runner.none(t)
}

func TestSelfTestIgnoresStopFlag(t *testing.T) {
	e := newTestEnv()
	e.o.stopRequested.Store(true)
	require.NoError(t, e.o.record(recorder.SelfTest))
	s := e.runner.next(t)
	require.Equal(t, recorder.SelfTest, s.Mode)
	require.Empty(t, e.store.names())
}

func TestSelfTestFailure(t *testing.T) {
	t.Run("process", func(t *testing.T) {
		e := newTestEnv()
		e.runner.fail = func(s *recorder.Session) error {
			return errors.ErrProcessFailed("start", s.Filename, errors.New("no such file or directory"))
		}

		err := e.o.Start(context.Background())
		require.ErrorIs(t, err, errors.ErrSelfTest)
		require.ErrorIs(t, err, errors.ErrRecordingProcess)
		require.False(t, e.source.subscribed())
		require.False(t, e.o.Status().Ready)
		e.o.Stop()
	})

	t.Run("cleanup", func(t *testing.T) {
		e := newTestEnv()
		e.runner.fail = func(s *recorder.Session) error {
			e.store.mu.Lock()
			e.store.failing[s.Filename] = true
			e.store.mu.Unlock()
			return nil
		}

		err := e.o.Start(context.Background())
		require.ErrorIs(t, err, errors.ErrSelfTest)
		require.ErrorIs(t, err, errors.ErrCleanup)
		e.o.Stop()
	})

	t.Run("context", func(t *testing.T) {
		e := newTestEnv()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.Error(t, e.o.Start(ctx))
		e.o.Stop()
	})
}

func TestStopWhileRecording(t *testing.T) {
	e := newTestEnv()
	e.start(t)

	e.source.motion(true)
	s := e.runner.next(t)
	require.Equal(t, recorder.Normal, s.Mode)
	require.Equal(t, s, e.o.Active())

	// motion ends during the recording: it finishes and is cleaned up, no new session
	e.source.motion(false)
	require.True(t, e.o.Status().StopRequested)
	e.runner.release(t)
	e.runner.none(t)
	e.waitIdle(t)

	sessions, maxRunning := e.runner.count()
	require.Equal(t, 2, sessions)
	require.Equal(t, 1, maxRunning)
	require.Contains(t, e.store.names(), s.Filename)
}

func TestBackToBackRecordings(t *testing.T) {
	e := newTestEnv()
	e.start(t)

	e.source.motion(true)
	first := e.runner.next(t)
	e.runner.release(t)

	second := e.runner.next(t)
	require.NotEqual(t, first.Filename, second.Filename)
	e.runner.release(t)

	third := e.runner.next(t)
	e.source.motion(false)
	e.runner.release(t)
	e.runner.none(t)
	e.waitIdle(t)

	require.Equal(t, []string{first.Filename, second.Filename, third.Filename}, e.store.names())
	_, maxRunning := e.runner.count()
	require.Equal(t, 1, maxRunning)
}

func TestCoalescedStarts(t *testing.T) {
	e := newTestEnv()
	e.start(t)

	// rapid starts before the first iteration finishes
	e.source.motion(true)
	e.source.motion(true)
	e.source.motion(true)
	e.runner.next(t)
	e.source.motion(true)
	e.source.motion(true)

	e.source.motion(false)
	e.runner.release(t)
	e.runner.none(t)
	e.waitIdle(t)

	sessions, maxRunning := e.runner.count()
	require.Equal(t, 2, sessions)
	require.Equal(t, 1, maxRunning)
}

func TestRandomSignalsSingleSession(t *testing.T) {
	e := newTestEnv()
	e.start(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-e.runner.started:
			case <-time.After(200 * time.Millisecond):
				return
			}
			select {
			case e.runner.gate <- struct{}{}:
			case <-time.After(200 * time.Millisecond):
				return
			}
		}
	}()

	for i := 0; i < 200; i++ {
		e.source.motion(i%3 != 2)
	}
	e.source.motion(false)
	<-done
	e.waitIdle(t)

	_, maxRunning := e.runner.count()
	require.Equal(t, 1, maxRunning)
}

func TestRetentionAfterRecording(t *testing.T) {
	old := retention.File{Name: "v20240101T000000.mkv", Path: saveDir + "/v20240101T000000.mkv", Created: testStart.Add(-10 * 24 * time.Hour)}
	recent := retention.File{Name: "v20240109T000000.mkv", Path: saveDir + "/v20240109T000000.mkv", Created: testStart.Add(-2 * time.Hour)}
	e := newTestEnv(old, recent)
	e.start(t)

	// the self-test only removes its own file
	require.Equal(t, []string{old.Name, recent.Name}, e.store.names())

	e.source.motion(true)
	s := e.runner.next(t)
	e.source.motion(false)
	e.runner.release(t)
	e.waitIdle(t)

	require.Equal(t, []string{recent.Name, s.Filename}, e.store.names())
}

func TestRecordingFailure(t *testing.T) {
	e := newTestEnv()
	e.start(t)

	e.runner.mu.Lock()
	e.runner.fail = func(s *recorder.Session) error {
		return errors.ErrProcessFailed("wait", s.Filename, errors.New("broken pipe"))
	}
	e.runner.mu.Unlock()

	// the loop ends on failure even though motion continues
	e.source.motion(true)
	e.runner.next(t)
	e.runner.none(t)
	e.waitIdle(t)

	e.runner.mu.Lock()
	e.runner.fail = nil
	e.runner.mu.Unlock()

	// next motion enters the loop again
	e.source.motion(true)
	s := e.runner.next(t)
	require.Equal(t, recorder.Normal, s.Mode)
	e.source.motion(false)
	e.runner.release(t)
	e.waitIdle(t)
}

func TestStop(t *testing.T) {
	e := newTestEnv()
	e.start(t)

	e.source.motion(true)
	s := e.runner.next(t)

	// stop neither kills nor waits for the recording in flight
	e.o.Stop()
	e.o.Stop()
	require.False(t, e.source.subscribed())
	require.Equal(t, s, e.o.Active())

	e.o.MotionStarted()
	e.runner.release(t)
	e.runner.none(t)

	select {
	case <-e.o.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit")
	}
	require.ErrorIs(t, e.o.Start(context.Background()), errors.ErrShutdown)
}

func TestStopBeforeStart(t *testing.T) {
	e := newTestEnv()
	e.o.Stop()
	e.o.Stop()
	require.ErrorIs(t, e.o.Start(context.Background()), errors.ErrShutdown)
	e.runner.none(t)
}

func TestSweep(t *testing.T) {
	old := retention.File{Name: "v20240101T000000.mkv", Path: saveDir + "/v20240101T000000.mkv", Created: testStart.Add(-8 * 24 * time.Hour)}
	recent := retention.File{Name: "v20240109T000000.mkv", Path: saveDir + "/v20240109T000000.mkv", Created: testStart.Add(-time.Hour)}
	e := newTestEnv(old, recent)
	e.start(t)

	e.o.Sweep()
	require.Eventually(t, func() bool {
		names := e.store.names()
		return len(names) == 1 && names[0] == recent.Name
	}, 2*time.Second, 5*time.Millisecond)
	e.runner.none(t)
}
