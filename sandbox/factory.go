package sandbox

import (
	"go.uber.org/zap"

	"github.com/isdmx/codeide/config"
	"github.com/isdmx/codeide/language"
)

// NewDockerEngineFromConfig connects to the Docker daemon configured in cfg
func NewDockerEngineFromConfig(logger *zap.Logger, cfg *config.Config) (*DockerEngine, error) {
	cli, err := NewDockerClient(cfg.Sandbox.DockerHost)
	if err != nil {
		return nil, err
	}

	return NewDockerEngine(logger.Named("docker"), cli,
		WithImagePull(cfg.Sandbox.PullMissingImages),
		WithPullTimeout(cfg.PullTimeout())), nil
}

// LimitsFromConfig returns the container limits configured in cfg
func LimitsFromConfig(cfg *config.Config) Limits {
	return Limits{
		Timeout:     cfg.GetTimeout(),
		MemoryBytes: cfg.MemoryBytes(),
		User:        cfg.Sandbox.User,
		Workdir:     cfg.Sandbox.Workdir,
	}
}

// NewRunnerFromConfig creates a Runner with the limits and workspace root configured in cfg
func NewRunnerFromConfig(logger *zap.Logger, cfg *config.Config, registry *language.Registry, engine Engine) *Runner {
	opts := []RunnerOption{}
	if cfg.Sandbox.WorkspaceRoot != "" {
		opts = append(opts, WithWorkspaceRoot(cfg.Sandbox.WorkspaceRoot))
	}

	return NewRunner(logger.Named("runner"), registry, engine, LimitsFromConfig(cfg), opts...)
}
