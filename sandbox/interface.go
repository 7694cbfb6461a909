package sandbox

import (
	"context"
	"errors"
	"os"
)

// InfrastructureExitCode marks a result produced by an engine failure
// (timeout, provisioning error) rather than by the program itself.
const InfrastructureExitCode = -1

// Error texts for engine-level failures
const (
	ErrMsgTimeout   = "Execution timeout"
	ErrMsgCancelled = "Execution cancelled"
)

// ErrContainerGone is returned by Engine.Remove when the container no longer exists.
var ErrContainerGone = errors.New("container already removed")

// File permission constants. The container runs as an unprivileged user, so
// the workspace must be world-readable; it is mounted read-only.
const (
	DirPermission  = 0o755
	FilePermission = 0o644
)

// Job is one submission to run
type Job struct {
	ExecutionID string
	Language    string
	Code        string
	Stdin       string
}

// Result is the outcome of one execution
type Result struct {
	Success     bool   `json:"success" yaml:"success"`
	Stdout      string `json:"output" yaml:"output"`
	Stderr      string `json:"error" yaml:"error"`
	ExitCode    int    `json:"exitCode" yaml:"exitCode"`
	ExecutionID string `json:"executionId" yaml:"executionId"`
}

// Failure builds the result for an engine-level failure.
func Failure(executionID, message string) Result {
	return Result{
		Success:     false,
		Stderr:      message,
		ExitCode:    InfrastructureExitCode,
		ExecutionID: executionID,
	}
}

// ContainerSpec describes the isolated environment for one execution
type ContainerSpec struct {
	Name        string
	Image       string
	Cmd         []string
	WorkingDir  string
	User        string
	HostDir     string // bind-mounted read-only at WorkingDir
	MemoryBytes int64  // swap is capped at the same value
	Stdin       bool
	Labels      map[string]string
}

// Handle references a created container
type Handle struct {
	ID    string
	Name  string
	Stdin bool
}

// Exit is what a container left behind when it terminated
type Exit struct {
	StatusCode int
	Output     []byte // multiplexed stdout/stderr frames
}

// Engine provisions and drives containers.
//
// Containers are created with auto-removal, so a container whose Run
// returned without error is already gone. Remove is for everything else.
type Engine interface {
	Create(ctx context.Context, spec ContainerSpec) (Handle, error)
	Run(ctx context.Context, h Handle, stdin string) (Exit, error)
	Remove(ctx context.Context, h Handle) error
}

// FileSystem defines an interface for file system operations
type FileSystem interface {
	MkdirAll(path string, perm os.FileMode) error
	Mkdir(path string, perm os.FileMode) error
	WriteFile(filename string, data []byte, perm os.FileMode) error
	RemoveAll(path string) error
}

// RealFileSystem implements FileSystem using actual file system operations
type RealFileSystem struct{}

func (RealFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (RealFileSystem) Mkdir(path string, perm os.FileMode) error {
	return os.Mkdir(path, perm)
}

func (RealFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	return os.WriteFile(filename, data, perm)
}

func (RealFileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}
