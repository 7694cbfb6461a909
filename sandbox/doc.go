// Package sandbox provides secure code execution capabilities.
//
// The sandbox package runs one untrusted submission per ephemeral container.
// A Runner owns the whole life cycle of an execution:
//
//  1. a fresh workspace directory holding main<ext>,
//  2. a container with the language image, the workspace mounted read-only,
//     networking disabled, memory and swap capped, a non-root user and
//     auto-removal,
//  3. a race between container exit and the wall-clock timeout,
//  4. demultiplexing of the framed output stream into stdout and stderr,
//  5. removal of the workspace and of any container that did not remove itself.
//
// Run never returns an error: every engine failure is folded into a Result
// with ExitCode -1. The Engine interface isolates the Docker Engine API so the
// life cycle can be tested against fakes.
//
// Usage:
//
//	engine, err := sandbox.NewDockerEngineFromConfig(logger, cfg)
//	runner := sandbox.NewRunnerFromConfig(logger, cfg, registry, engine)
//	result := runner.Run(ctx, sandbox.Job{
//	    Language: "python",
//	    Code:     "print('Hello, World!')",
//	})
package sandbox
