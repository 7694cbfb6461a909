package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"go.uber.org/zap"
)

// DockerAPI is the subset of the Docker client used by DockerEngine
type DockerAPI interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerAttach(ctx context.Context, container string, options container.AttachOptions) (types.HijackedResponse, error)
	ContainerStart(ctx context.Context, container string, options container.StartOptions) error
	ContainerWait(ctx context.Context, container string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerRemove(ctx context.Context, container string, options container.RemoveOptions) error
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	Close() error
}

// DockerEngine implements Engine using the Docker Engine API. Containers run
// with the network disabled, memory capped without swap headroom, every
// capability dropped and the workspace bind-mounted read-only.
type DockerEngine struct {
	logger      *zap.Logger
	api         DockerAPI
	pullMissing bool
	pullTimeout time.Duration
}

// DefaultPullTimeout bounds one image pull. Pulls happen before the execution
// timeout starts.
const DefaultPullTimeout = 5 * time.Minute

// DockerEngineOption defines a functional option for DockerEngine
type DockerEngineOption func(*DockerEngine)

// WithImagePull makes Create pull an image the daemon does not have and retry once
func WithImagePull(enabled bool) DockerEngineOption {
	return func(d *DockerEngine) {
		d.pullMissing = enabled
	}
}

// WithPullTimeout bounds each image pull; a non-positive timeout keeps DefaultPullTimeout
func WithPullTimeout(timeout time.Duration) DockerEngineOption {
	return func(d *DockerEngine) {
		if timeout > 0 {
			d.pullTimeout = timeout
		}
	}
}

// NewDockerEngine creates a DockerEngine on top of an existing API client
func NewDockerEngine(logger *zap.Logger, api DockerAPI, opts ...DockerEngineOption) *DockerEngine {
	engine := &DockerEngine{
		logger:      logger,
		api:         api,
		pullTimeout: DefaultPullTimeout,
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// NewDockerClient connects to the daemon named by host, or by the DOCKER_* environment when host is empty
func NewDockerClient(host string) (*client.Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return cli, nil
}

// Create provisions a stopped container for spec
func (d *DockerEngine) Create(ctx context.Context, spec ContainerSpec) (Handle, error) {
	cfg, hostCfg := containerConfig(spec)

	resp, err := d.api.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	if err != nil && d.pullMissing && errdefs.IsNotFound(err) {
		d.logger.Info("pulling missing runtime image", zap.String("image", spec.Image))
		if pullErr := d.pull(ctx, spec.Image); pullErr != nil {
			return Handle{}, pullErr
		}
		resp, err = d.api.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	}
	if err != nil {
		return Handle{}, fmt.Errorf("failed to create container: %w", err)
	}

	for _, w := range resp.Warnings {
		d.logger.Warn("container create warning", zap.String("container", spec.Name), zap.String("warning", w))
	}

	return Handle{ID: resp.ID, Name: spec.Name, Stdin: spec.Stdin}, nil
}

// Run attaches to the container, starts it, feeds stdin and blocks until the
// container has exited and been removed. The returned output is the raw
// attach stream, framed per stream.
func (d *DockerEngine) Run(ctx context.Context, h Handle, stdin string) (Exit, error) {
	// Registered before start so the exit of a short-lived container cannot be missed.
	statusCh, errCh := d.api.ContainerWait(ctx, h.ID, container.WaitConditionRemoved)

	attach, err := d.api.ContainerAttach(ctx, h.ID, container.AttachOptions{
		Stream: true,
		Stdin:  h.Stdin,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return Exit{}, fmt.Errorf("failed to attach to container: %w", err)
	}
	defer attach.Close()

	var output bytes.Buffer
	copied := make(chan error, 1)
	go func() {
		_, copyErr := io.Copy(&output, attach.Reader)
		copied <- copyErr
	}()

	if err := d.api.ContainerStart(ctx, h.ID, container.StartOptions{}); err != nil {
		return Exit{}, fmt.Errorf("failed to start container: %w", err)
	}

	if h.Stdin {
		if _, err := io.Copy(attach.Conn, strings.NewReader(stdin)); err != nil {
			return Exit{}, fmt.Errorf("failed to write stdin: %w", err)
		}
		if err := attach.CloseWrite(); err != nil {
			return Exit{}, fmt.Errorf("failed to close stdin: %w", err)
		}
	}

	var status int
	select {
	case res := <-statusCh:
		if res.Error != nil && res.Error.Message != "" {
			return Exit{}, fmt.Errorf("container wait failed: %s", res.Error.Message)
		}
		status = int(res.StatusCode)
	case err := <-errCh:
		return Exit{}, fmt.Errorf("failed waiting for container: %w", err)
	}

	select {
	case copyErr := <-copied:
		if copyErr != nil {
			d.logger.Debug("output stream ended with error", zap.String("container", h.Name), zap.Error(copyErr))
		}
	case <-ctx.Done():
		return Exit{}, ctx.Err()
	}

	return Exit{StatusCode: status, Output: output.Bytes()}, nil
}

// Remove force-removes the container, killing it if it is still running
func (d *DockerEngine) Remove(ctx context.Context, h Handle) error {
	err := d.api.ContainerRemove(ctx, h.ID, container.RemoveOptions{Force: true})
	if errdefs.IsNotFound(err) {
		return ErrContainerGone
	}
	if err != nil {
		return fmt.Errorf("failed to remove container %s: %w", h.Name, err)
	}
	return nil
}

// Close releases the API client
func (d *DockerEngine) Close() error {
	return d.api.Close()
}

func (d *DockerEngine) pull(ctx context.Context, ref string) error {
	ctx, cancel := context.WithTimeout(ctx, d.pullTimeout)
	defer cancel()

	rc, err := d.api.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	defer rc.Close()

	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	return nil
}

func containerConfig(spec ContainerSpec) (*container.Config, *container.HostConfig) {
	cfg := &container.Config{
		Image:           spec.Image,
		Cmd:             spec.Cmd,
		WorkingDir:      spec.WorkingDir,
		User:            spec.User,
		Labels:          spec.Labels,
		AttachStdin:     spec.Stdin,
		OpenStdin:       spec.Stdin,
		StdinOnce:       spec.Stdin,
		AttachStdout:    true,
		AttachStderr:    true,
		Tty:             false,
		NetworkDisabled: true,
	}

	hostCfg := &container.HostConfig{
		Binds:       []string{fmt.Sprintf("%s:%s:ro", spec.HostDir, spec.WorkingDir)},
		NetworkMode: container.NetworkMode("none"),
		AutoRemove:  true,
		SecurityOpt: []string{"no-new-privileges:true"},
		CapDrop:     []string{"ALL"},
		Resources: container.Resources{
			Memory:     spec.MemoryBytes,
			MemorySwap: spec.MemoryBytes,
		},
	}

	return cfg, hostCfg
}
