// File: internal/sandbox/sandbox.go
// Description: Sandbox runs a repository's test command inside an
// isolated container with hard resource caps, falling back to direct
// process execution (explicitly logged) when no container runtime is on
// PATH. The exec.CommandContext/CombinedOutput technique generalizes the
// plain runCommand pattern to run inside `docker run` rather than the host
// shell.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hpcloud/tail"
	"go.uber.org/zap"

	"github.com/codeguard-pro/codeguard/internal/config"
)

// Result is the runTests contract.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	// UsedContainer is false when the docker runtime was unavailable and
	// Sandbox fell back to direct host execution.
	UsedContainer bool
	// LogPath points at the file stdout was mirrored to while the command
	// ran, so a caller that wants live progress (the heal SSE stream) can
	// FollowLog it concurrently instead of waiting on the final Result.
	LogPath string
}

// FollowLog tails path from its start, invoking onLine for every line
// written to it, until ctx is cancelled or the file is removed. Intended
// for a caller to run in its own goroutine against a Result.LogPath while
// RunTests is still executing.
func FollowLog(ctx context.Context, path string, onLine func(string)) error {
	t, err := tail.TailFile(path, tail.Config{Follow: true, ReOpen: false, Location: &tail.SeekInfo{Whence: io.SeekStart}})
	if err != nil {
		return fmt.Errorf("sandbox: failed to tail %s: %w", path, err)
	}
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return nil
			}
			if line.Err != nil {
				return line.Err
			}
			onLine(line.Text)
		}
	}
}

// Sandbox runs test commands under the configured resource caps.
type Sandbox struct {
	cfg        config.SandboxConfig
	logger     *zap.Logger
	dockerPath string // empty if docker is not on PATH
}

// New probes for the docker binary once at construction; ProbeResult is
// cached for the lifetime of the Sandbox rather than re-checked per call.
func New(cfg config.SandboxConfig, logger *zap.Logger) *Sandbox {
	s := &Sandbox{cfg: cfg, logger: logger.Named("sandbox")}
	if path, err := exec.LookPath("docker"); err == nil {
		s.dockerPath = path
	} else {
		s.logger.Warn("docker runtime not found on PATH, sandbox will fall back to direct execution", zap.Error(err))
	}
	return s
}

// RunTests runs command inside repoLocalPath under the sandbox's caps.
// command is the fully composed test invocation for the detected project
// type (e.g. "npm test", "pytest").
func (s *Sandbox) RunTests(ctx context.Context, repoLocalPath, command string) (Result, error) {
	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if !s.cfg.Enabled || s.dockerPath == "" {
		s.logger.Warn("running tests without container isolation",
			zap.Bool("sandbox_enabled", s.cfg.Enabled), zap.Bool("docker_available", s.dockerPath != ""))
		return s.runDirect(ctx, repoLocalPath, command)
	}
	return s.runContained(ctx, repoLocalPath, command)
}

func (s *Sandbox) runDirect(ctx context.Context, repoLocalPath, command string) (Result, error) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Dir = repoLocalPath

	logFile, logPath := s.openLogFile()
	var stdout, stderr bytes.Buffer
	if logFile != nil {
		defer logFile.Close()
		cmd.Stdout = io.MultiWriter(&stdout, logFile)
	} else {
		cmd.Stdout = &stdout
	}
	cmd.Stderr = &stderr
	err := cmd.Run()

	result := Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode(cmd, err), UsedContainer: false, LogPath: logPath}
	if ctx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
	}
	return result, nil
}

// openLogFile creates the temp file RunTests mirrors stdout into for live
// tailing. A failure to create it is logged and degrades gracefully to
// buffer-only output — live progress is a nice-to-have, not load-bearing.
func (s *Sandbox) openLogFile() (*os.File, string) {
	f, err := os.CreateTemp("", "codeguard-sandbox-log-*.txt")
	if err != nil {
		s.logger.Warn("failed to create sandbox log file, live tailing unavailable", zap.Error(err))
		return nil, ""
	}
	return f, f.Name()
}

// runContained shells out to the docker CLI rather than linking a client
// SDK: isolation parameters map directly onto the required properties
// (process isolation via its own PID/network namespace, CPU/memory/pids
// caps, dropped capabilities, read-only source mount with a tmpfs cwd).
func (s *Sandbox) runContained(ctx context.Context, repoLocalPath, command string) (Result, error) {
	containerName := "codeguard-sandbox-" + uuid.New().String()
	image := s.cfg.Image
	if image == "" {
		image = "codeguard/sandbox-runner:latest"
	}

	args := []string{
		"run", "--rm",
		"--name", containerName,
		"--cap-drop=ALL",
		"--security-opt", "no-new-privileges",
		"--pids-limit", strconv.Itoa(nonZero(s.cfg.PidsLimit, 256)),
		"--cpus", formatCPU(s.cfg.CPULimit),
		"--memory", strconv.Itoa(nonZero(s.cfg.MemoryLimitMB, 512)) + "m",
		"-v", repoLocalPath + ":/workspace:ro",
		"--tmpfs", "/tmp:rw,size=256m",
		"--tmpfs", "/workspace-rw:rw,size=256m",
		"-w", "/workspace-rw",
	}
	if !s.cfg.AllowNetworkInstall {
		args = append(args, "--network", "none")
	}
	args = append(args, image, "/bin/sh", "-c", "cp -r /workspace/. /workspace-rw/ && cd /workspace-rw && "+command)

	cmd := exec.CommandContext(ctx, s.dockerPath, args...)
	logFile, logPath := s.openLogFile()
	var stdout, stderr bytes.Buffer
	if logFile != nil {
		defer logFile.Close()
		cmd.Stdout = io.MultiWriter(&stdout, logFile)
	} else {
		cmd.Stdout = &stdout
	}
	cmd.Stderr = &stderr
	err := cmd.Run()

	result := Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode(cmd, err), UsedContainer: true, LogPath: logPath}
	if ctx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		s.forceKill(containerName)
	}
	return result, nil
}

// forceKill is best-effort: the container was started with --rm, so a kill
// also removes it. Errors are logged, not propagated — the caller already
// has a TimedOut result to act on.
func (s *Sandbox) forceKill(containerName string) {
	killCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if out, err := exec.CommandContext(killCtx, s.dockerPath, "kill", containerName).CombinedOutput(); err != nil {
		s.logger.Warn("failed to force-kill timed-out sandbox container",
			zap.String("container", containerName), zap.Error(err), zap.ByteString("output", out))
	}
}

func exitCode(cmd *exec.Cmd, err error) int {
	if err == nil {
		return 0
	}
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	return -1
}

func nonZero(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func formatCPU(v float64) string {
	if v <= 0 {
		v = 1
	}
	return fmt.Sprintf("%.2f", v)
}
