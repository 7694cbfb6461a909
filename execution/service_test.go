package execution

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/codeide/config"
	"github.com/isdmx/codeide/language"
	"github.com/isdmx/codeide/sandbox"
)

// MockRunner implements Runner for testing
type MockRunner struct {
	mu     sync.Mutex
	jobs   []sandbox.Job
	result sandbox.Result
	panic  any
	block  chan struct{}
	active atomic.Int32
	peak   atomic.Int32
}

func (m *MockRunner) Run(_ context.Context, job sandbox.Job) sandbox.Result {
	n := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}

	m.mu.Lock()
	m.jobs = append(m.jobs, job)
	m.mu.Unlock()

	if m.panic != nil {
		panic(m.panic)
	}
	if m.block != nil {
		<-m.block
	}

	res := m.result
	res.ExecutionID = job.ExecutionID
	return res
}

// SpyFileSystem records every workspace operation
type SpyFileSystem struct {
	mu    sync.Mutex
	calls []string
}

func (s *SpyFileSystem) record(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, op)
}

func (s *SpyFileSystem) MkdirAll(string, os.FileMode) error { s.record("MkdirAll"); return nil }
func (s *SpyFileSystem) Mkdir(string, os.FileMode) error    { s.record("Mkdir"); return nil }
func (s *SpyFileSystem) WriteFile(string, []byte, os.FileMode) error {
	s.record("WriteFile")
	return nil
}
func (s *SpyFileSystem) RemoveAll(string) error { s.record("RemoveAll"); return nil }

// CountingEngine implements sandbox.Engine and counts container creation
type CountingEngine struct {
	creates atomic.Int32
}

func (e *CountingEngine) Create(context.Context, sandbox.ContainerSpec) (sandbox.Handle, error) {
	e.creates.Add(1)
	return sandbox.Handle{ID: "c1"}, nil
}

func (e *CountingEngine) Run(context.Context, sandbox.Handle, string) (sandbox.Exit, error) {
	return sandbox.Exit{}, nil
}

func (e *CountingEngine) Remove(context.Context, sandbox.Handle) error {
	return nil
}

// PanickingEngine implements sandbox.Engine with a Run that panics
type PanickingEngine struct {
	CountingEngine
	removes atomic.Int32
}

func (e *PanickingEngine) Run(context.Context, sandbox.Handle, string) (sandbox.Exit, error) {
	panic("engine blew up")
}

func (e *PanickingEngine) Remove(context.Context, sandbox.Handle) error {
	e.removes.Add(1)
	return nil
}

func fixedID(id string) func() string {
	return func() string { return id }
}

func TestValidate(t *testing.T) {
	svc := New(zaptest.NewLogger(t), language.Default(), &MockRunner{})

	tests := []struct {
		name    string
		req     Request
		field   string
		message string
	}{
		{"MissingCode", Request{Language: "python"}, "code", "Code is required"},
		{"MissingLanguage", Request{Code: "print(1)"}, "language", "Language is required"},
		{"UnsupportedLanguage", Request{Code: "puts 1", Language: "ruby"}, "language", "Invalid language. Supported: cpp, nodejs, python"},
		{"CaseSensitive", Request{Code: "print(1)", Language: "Python"}, "language", "Invalid language. Supported: cpp, nodejs, python"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Validate(tt.req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, tt.message, verr.Error())
		})
	}

	for _, id := range []string{"python", "cpp", "nodejs"} {
		assert.NoError(t, svc.Validate(Request{Code: "x", Language: id}), id)
	}
}

func TestExecuteDelegatesToRunner(t *testing.T) {
	runner := &MockRunner{result: sandbox.Result{Success: true, Stdout: "Hello, World!", ExitCode: 0}}
	svc := New(zaptest.NewLogger(t), language.Default(), runner, WithIDGenerator(fixedID("exec-42")))

	result, err := svc.Execute(context.Background(), Request{
		Code:     "print('Hello, World!')",
		Language: "python",
		Stdin:    "input",
	})
	require.NoError(t, err)
	assert.Equal(t, sandbox.Result{Success: true, Stdout: "Hello, World!", ExitCode: 0, ExecutionID: "exec-42"}, result)

	require.Len(t, runner.jobs, 1)
	assert.Equal(t, sandbox.Job{
		ExecutionID: "exec-42",
		Language:    "python",
		Code:        "print('Hello, World!')",
		Stdin:       "input",
	}, runner.jobs[0])
}

func TestExecuteReturnsEngineFailuresUnchanged(t *testing.T) {
	runner := &MockRunner{result: sandbox.Failure("", sandbox.ErrMsgTimeout)}
	svc := New(zaptest.NewLogger(t), language.Default(), runner, WithIDGenerator(fixedID("exec-7")))

	result, err := svc.Execute(context.Background(), Request{Code: "while True: pass", Language: "python"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, sandbox.InfrastructureExitCode, result.ExitCode)
	assert.Equal(t, sandbox.ErrMsgTimeout, result.Stderr)
	assert.Equal(t, "exec-7", result.ExecutionID)
}

func TestExecuteRejectsBeforeProvisioning(t *testing.T) {
	fs := &SpyFileSystem{}
	engine := &CountingEngine{}
	runner := sandbox.NewRunner(zaptest.NewLogger(t), language.Default(), engine, sandbox.DefaultLimits(),
		sandbox.WithFileSystem(fs), sandbox.WithWorkspaceRoot("/work"))
	svc := New(zaptest.NewLogger(t), language.Default(), runner)

	_, err := svc.Execute(context.Background(), Request{Code: "puts 'hi'", Language: "ruby"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, fs.calls, "no workspace may be created for a rejected request")
	assert.Zero(t, engine.creates.Load())
}

func TestExecuteRecoversPanics(t *testing.T) {
	runner := &MockRunner{panic: errors.New("nil engine")}
	svc := New(zaptest.NewLogger(t), language.Default(), runner)

	result, err := svc.Execute(context.Background(), Request{Code: "x", Language: "cpp"})

	var fault *FaultError
	require.ErrorAs(t, err, &fault)
	assert.EqualError(t, errors.Unwrap(fault), "nil engine")
	assert.Equal(t, sandbox.Result{}, result)
	assert.Contains(t, err.Error(), "execution fault")
}

func TestExecuteEnginePanicBecomesResult(t *testing.T) {
	fs := &SpyFileSystem{}
	engine := &PanickingEngine{}
	runner := sandbox.NewRunner(zaptest.NewLogger(t), language.Default(), engine, sandbox.DefaultLimits(),
		sandbox.WithFileSystem(fs), sandbox.WithWorkspaceRoot("/work"))
	svc := New(zaptest.NewLogger(t), language.Default(), runner, WithIDGenerator(fixedID("exec-p")))

	result, err := svc.Execute(context.Background(), Request{Code: "print(1)", Language: "python"})
	require.NoError(t, err)
	assert.Equal(t, sandbox.Failure("exec-p", "engine panic: engine blew up"), result)
	assert.Equal(t, int32(1), engine.removes.Load())
	assert.Contains(t, fs.calls, "RemoveAll")
}

func TestExecuteMaxConcurrent(t *testing.T) {
	runner := &MockRunner{block: make(chan struct{}), result: sandbox.Result{Success: true}}
	svc := New(zaptest.NewLogger(t), language.Default(), runner, WithMaxConcurrent(2))
	assert.Equal(t, 2, svc.Capacity())

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Execute(context.Background(), Request{Code: "x", Language: "nodejs"})
			assert.NoError(t, err)
		}()
	}

	require.Eventually(t, func() bool { return runner.active.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(runner.block)
	wg.Wait()

	assert.Equal(t, int32(2), runner.peak.Load())
	assert.Len(t, runner.jobs, 6)
}

func TestExecuteCancelledWhileWaitingForSlot(t *testing.T) {
	runner := &MockRunner{block: make(chan struct{})}
	svc := New(zaptest.NewLogger(t), language.Default(), runner, WithMaxConcurrent(1), WithIDGenerator(fixedID("exec-9")))

	first := make(chan struct{})
	go func() {
		defer close(first)
		_, _ = svc.Execute(context.Background(), Request{Code: "x", Language: "python"})
	}()
	require.Eventually(t, func() bool { return runner.active.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result, err := svc.Execute(ctx, Request{Code: "x", Language: "python"})
	require.NoError(t, err)
	assert.Equal(t, sandbox.Failure("exec-9", sandbox.ErrMsgCancelled), result)

	close(runner.block)
	<-first
}

func TestNewFromConfig(t *testing.T) {
	cfg := &config.Config{Sandbox: config.SandboxConfig{MaxConcurrent: 4}}
	runner := sandbox.NewRunner(zaptest.NewLogger(t), language.Default(), &CountingEngine{}, sandbox.DefaultLimits())

	svc := NewFromConfig(zaptest.NewLogger(t), cfg, language.Default(), runner)
	assert.Equal(t, 4, svc.Capacity())

	cfg.Sandbox.MaxConcurrent = 0
	assert.Zero(t, NewFromConfig(zaptest.NewLogger(t), cfg, language.Default(), runner).Capacity())
}

func TestLanguages(t *testing.T) {
	svc := New(zaptest.NewLogger(t), language.Default(), &MockRunner{})
	profiles := svc.Languages()
	require.Len(t, profiles, 3)
	assert.Equal(t, language.CPP, profiles[0].ID)
}
