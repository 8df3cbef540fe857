// Package sandbox implements the Safe Interpreter (spec §4.4): an
// ephemeral Docker container spun up fresh for every code_interpreter
// invocation, torn down immediately after, with traceback-marker
// detection driving a bounded retry loop.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"
	"go.uber.org/fx"

	"github.com/arclane/assistants-executor/internal/config"
	"github.com/arclane/assistants-executor/pkg/logger"
)

// Module provides the sandbox Interpreter as an fx module.
var Module = fx.Module("sandbox",
	fx.Provide(NewInterpreter),
)

// tracebackMarker is how a failed Python execution is recognized on
// stderr, per spec §4.4's "traceback marker" detection rule.
const tracebackMarker = "Traceback (most recent call last)"

// Result is the outcome of one sandbox invocation.
type Result struct {
	Stdout     string
	Stderr     string
	ExitCode   int
	DurationMs int64
	Failed     bool // true if the exit code was non-zero or stderr contained a traceback marker
}

// Interpreter runs untrusted code in a throwaway Docker container.
type Interpreter struct {
	client client.APIClient
	cfg    config.SandboxConfig
	log    *slog.Logger
}

func NewInterpreter(cfg *config.Config, log *slog.Logger) (*Interpreter, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.Sandbox.DockerHost != "" {
		opts = append(opts, client.WithHost(cfg.Sandbox.DockerHost))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &Interpreter{
		client: cli,
		cfg:    cfg.Sandbox,
		log:    log.With(logger.Scope("sandbox")),
	}, nil
}

// Run executes code once in a fresh, uniquely-named container and
// removes it before returning, regardless of outcome.
func (in *Interpreter) Run(ctx context.Context, code string) (*Result, error) {
	start := time.Now()

	if err := in.ensureImage(ctx); err != nil {
		return nil, fmt.Errorf("ensure sandbox image: %w", err)
	}

	containerName := fmt.Sprintf("sandbox-%s", uuid.New().String())

	hostConfig := &container.HostConfig{
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyDisabled},
		Resources: container.Resources{
			Memory:   in.cfg.MemoryLimitMB * 1024 * 1024,
			CPUQuota: in.cfg.CPUQuota,
		},
	}
	if in.cfg.NetworkDisabled {
		hostConfig.NetworkMode = "none"
	}

	resp, err := in.client.ContainerCreate(ctx, &container.Config{
		Image: in.cfg.Image,
		Cmd:   []string{"python3", "-c", code},
		Labels: map[string]string{
			"assistants-executor.sandbox": "true",
		},
	}, hostConfig, nil, nil, containerName)
	if err != nil {
		return nil, fmt.Errorf("create sandbox container: %w", err)
	}
	defer in.destroy(context.Background(), resp.ID)

	execCtx := ctx
	if in.cfg.ExecTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, in.cfg.ExecTimeout)
		defer cancel()
	}

	if err := in.client.ContainerStart(execCtx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("start sandbox container: %w", err)
	}

	waitCh, errCh := in.client.ContainerWait(execCtx, resp.ID, container.WaitConditionNotRunning)

	logsReader, err := in.client.ContainerLogs(execCtx, resp.ID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return nil, fmt.Errorf("attach sandbox logs: %w", err)
	}
	defer logsReader.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdoutBuf, &stderrBuf, logsReader); err != nil && err != io.EOF {
		in.log.Warn("failed reading sandbox logs", logger.Error(err))
	}

	exitCode := 0
	select {
	case err := <-errCh:
		if err != nil && execCtx.Err() != nil {
			return &Result{
				Stdout:     stdoutBuf.String(),
				Stderr:     stderrBuf.String(),
				ExitCode:   -1,
				DurationMs: time.Since(start).Milliseconds(),
				Failed:     true,
			}, fmt.Errorf("sandbox execution timed out: %w", execCtx.Err())
		}
	case status := <-waitCh:
		exitCode = int(status.StatusCode)
	}

	stderr := stderrBuf.String()
	return &Result{
		Stdout:     stdoutBuf.String(),
		Stderr:     stderr,
		ExitCode:   exitCode,
		DurationMs: time.Since(start).Milliseconds(),
		Failed:     exitCode != 0 || strings.Contains(stderr, tracebackMarker),
	}, nil
}

func (in *Interpreter) destroy(ctx context.Context, containerID string) {
	if err := in.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		in.log.Warn("failed to remove sandbox container", logger.Error(err), slog.String("container_id", containerID))
	}
}

func (in *Interpreter) ensureImage(ctx context.Context) error {
	_, _, err := in.client.ImageInspectWithRaw(ctx, in.cfg.Image)
	if err == nil {
		return nil
	}
	reader, err := in.client.ImagePull(ctx, in.cfg.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", in.cfg.Image, err)
	}
	defer reader.Close()
	_, err = io.Copy(io.Discard, reader)
	return err
}
