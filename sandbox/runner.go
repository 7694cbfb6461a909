package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isdmx/codeide/language"
)

// LabelExecutionID is set on every container so leftovers can be traced to an execution.
const LabelExecutionID = "codeide.execution_id"

// removeTimeout bounds best-effort container removal after the caller's context is gone.
const removeTimeout = 10 * time.Second

// Outcome is the terminal state of one execution before cleanup.
type Outcome string

const (
	OutcomeCompleted          Outcome = "completed"
	OutcomeTimedOut           Outcome = "timed_out"
	OutcomeCancelled          Outcome = "cancelled"
	OutcomeProvisioningFailed Outcome = "provisioning_failed"
)

// Limits are the per-container constraints applied to every execution
type Limits struct {
	Timeout     time.Duration
	MemoryBytes int64
	User        string
	Workdir     string
}

// DefaultLimits returns the reference limits: 30s, 128 MiB, nobody, /code.
func DefaultLimits() Limits {
	return Limits{
		Timeout:     30 * time.Second,
		MemoryBytes: 128 * 1024 * 1024,
		User:        "nobody",
		Workdir:     "/code",
	}
}

// Runner drives the life cycle of single executions: workspace, container,
// timeout race, output extraction and cleanup. It holds no per-execution
// state and is safe for concurrent use.
type Runner struct {
	logger   *zap.Logger
	registry *language.Registry
	engine   Engine
	limits   Limits
	fs       FileSystem
	root     string
	newID    func() string
}

// RunnerOption defines a functional option for Runner
type RunnerOption func(*Runner)

// WithFileSystem sets the FileSystem for Runner
func WithFileSystem(fs FileSystem) RunnerOption {
	return func(r *Runner) {
		r.fs = fs
	}
}

// WithWorkspaceRoot sets the host directory under which workspaces are created
func WithWorkspaceRoot(root string) RunnerOption {
	return func(r *Runner) {
		r.root = root
	}
}

// WithIDGenerator sets the function used for execution IDs that are not supplied by the caller
func WithIDGenerator(newID func() string) RunnerOption {
	return func(r *Runner) {
		r.newID = newID
	}
}

// NewRunner creates a Runner with default implementations and optional interfaces
func NewRunner(logger *zap.Logger, registry *language.Registry, engine Engine, limits Limits, opts ...RunnerOption) *Runner {
	r := &Runner{
		logger:   logger,
		registry: registry,
		engine:   engine,
		limits:   limits,
		fs:       RealFileSystem{},
		root:     filepath.Join(os.TempDir(), "codeide"),
		newID:    uuid.NewString,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run executes job and always returns a result; engine failures are reported
// with Success false and ExitCode -1.
func (r *Runner) Run(ctx context.Context, job Job) Result {
	id := job.ExecutionID
	if id == "" {
		id = r.newID()
	}
	log := r.logger.With(zap.String("execution_id", id), zap.String("language", job.Language))

	profile, err := r.registry.Resolve(job.Language)
	if err != nil {
		return Failure(id, err.Error())
	}

	ws := newWorkspace(r.root, id, profile.SourceFile())
	if err := ws.create(r.fs); err != nil {
		log.Error("workspace provisioning failed", zap.Error(err))
		return Failure(id, err.Error())
	}
	defer func() {
		if rmErr := ws.remove(r.fs); rmErr != nil {
			log.Warn("failed to remove workspace", zap.String("path", ws.Dir), zap.Error(rmErr))
		}
	}()

	if err := ws.writeSource(r.fs, job.Code); err != nil {
		log.Error("workspace provisioning failed", zap.Error(err))
		return Failure(id, err.Error())
	}

	spec := ContainerSpec{
		Name:        "codeide-" + id,
		Image:       profile.Image,
		Cmd:         profile.Command(profile.SourceFile()),
		WorkingDir:  r.limits.Workdir,
		User:        r.limits.User,
		HostDir:     ws.Dir,
		MemoryBytes: r.limits.MemoryBytes,
		Stdin:       job.Stdin != "",
		Labels:      map[string]string{LabelExecutionID: id},
	}

	handle, err := r.engine.Create(ctx, spec)
	if err != nil {
		log.Error("container provisioning failed", zap.String("image", spec.Image), zap.Error(err))
		return Failure(id, err.Error())
	}

	// A container that ran to completion removes itself; every other path
	// must remove it here, exactly once.
	autoRemoved := false
	defer func() {
		if !autoRemoved {
			r.removeContainer(log, handle)
		}
	}()

	started := time.Now()
	exit, outcome, err := r.await(ctx, handle, job.Stdin)
	log = log.With(zap.String("outcome", string(outcome)), zap.Duration("duration", time.Since(started)))

	switch outcome {
	case OutcomeCompleted:
		autoRemoved = true
	case OutcomeTimedOut:
		log.Warn("execution timed out", zap.Duration("timeout", r.limits.Timeout))
		return Failure(id, ErrMsgTimeout)
	case OutcomeCancelled:
		log.Warn("execution cancelled", zap.Error(ctx.Err()))
		return Failure(id, ErrMsgCancelled)
	default:
		log.Error("container execution failed", zap.Error(err))
		return Failure(id, err.Error())
	}

	stdout, stderr := Demux(exit.Output)
	log.Info("execution completed",
		zap.Int("exit_code", exit.StatusCode),
		zap.Int("stdout_len", len(stdout)),
		zap.Int("stderr_len", len(stderr)))

	return Result{
		Success:     exit.StatusCode == 0,
		Stdout:      stdout,
		Stderr:      stderr,
		ExitCode:    exit.StatusCode,
		ExecutionID: id,
	}
}

// await races the container against the timeout. The loser's wait is
// cancelled; the container itself is left to the caller's cleanup.
func (r *Runner) await(ctx context.Context, h Handle, stdin string) (Exit, Outcome, error) {
	type finished struct {
		exit Exit
		err  error
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan finished, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- finished{err: fmt.Errorf("engine panic: %v", p)}
			}
		}()
		exit, err := r.engine.Run(runCtx, h, stdin)
		done <- finished{exit: exit, err: err}
	}()

	timer := time.NewTimer(r.limits.Timeout)
	defer timer.Stop()

	select {
	case f := <-done:
		switch {
		case f.err == nil:
			return f.exit, OutcomeCompleted, nil
		case ctx.Err() != nil:
			return Exit{}, OutcomeCancelled, ctx.Err()
		default:
			return Exit{}, OutcomeProvisioningFailed, f.err
		}
	case <-timer.C:
		return Exit{}, OutcomeTimedOut, context.DeadlineExceeded
	case <-ctx.Done():
		return Exit{}, OutcomeCancelled, ctx.Err()
	}
}

func (r *Runner) removeContainer(log *zap.Logger, h Handle) {
	ctx, cancel := context.WithTimeout(context.Background(), removeTimeout)
	defer cancel()

	if err := r.engine.Remove(ctx, h); err != nil && !errors.Is(err, ErrContainerGone) {
		log.Warn("failed to remove container", zap.String("container", h.Name), zap.Error(err))
	}
}
