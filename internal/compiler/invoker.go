// Package compiler wraps invocation of the external documentation compiler:
// one subprocess per package, stream capture, and timeout enforcement with a
// graceful-then-forced termination sequence.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"git.home.luguber.info/inful/dochub/internal/config"
)

// captureLimit bounds each captured stream; the tail is kept.
const captureLimit = 256 * 1024

// ErrLaunch marks faults where the compiler process could not start at all
// (binary missing, permission denied). These abort the whole run; every
// other failure is communicated through the Result, never raised.
var ErrLaunch = errors.New("compiler launch failed")

// Request describes a single invocation.
type Request struct {
	// Dir is the working directory (the package's docs source path).
	Dir string
	// ConfigFile is passed to the compiler via --config. Empty omits the flag.
	ConfigFile string
	// ExtraArgs are appended after the configured args.
	ExtraArgs []string
}

// Result captures one finished invocation. A non-zero ExitCode is a normal,
// expected outcome.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	TimedOut bool
}

// CombinedOutput returns stderr and stdout joined for classification.
func (r *Result) CombinedOutput() string {
	switch {
	case r.Stderr == "":
		return r.Stdout
	case r.Stdout == "":
		return r.Stderr
	default:
		return r.Stdout + "\n" + r.Stderr
	}
}

// Invoker runs the configured compiler binary. The zero value is not usable;
// construct with New.
type Invoker struct {
	binary  string
	args    []string
	timeout time.Duration
	grace   time.Duration
}

// New builds an Invoker from compiler configuration.
func New(cfg config.CompilerConfig) *Invoker {
	return &Invoker{
		binary:  cfg.Binary,
		args:    cfg.Args,
		timeout: cfg.Timeout(),
		grace:   cfg.Grace(),
	}
}

// Invoke runs the compiler once. The context carries run-level cancellation;
// the invocation timeout is layered on top. On expiry the child receives
// SIGTERM, then SIGKILL after the grace period. Returns ErrLaunch-wrapped
// errors only for process-start faults.
func (iv *Invoker) Invoke(ctx context.Context, req Request) (*Result, error) {
	if _, err := exec.LookPath(iv.binary); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	if stat, err := os.Stat(req.Dir); err != nil || !stat.IsDir() {
		return nil, fmt.Errorf("%w: docs source directory not found: %s", ErrLaunch, req.Dir)
	}

	runCtx, cancel := context.WithTimeout(ctx, iv.timeout)
	defer cancel()

	args := make([]string, 0, len(iv.args)+len(req.ExtraArgs)+2)
	args = append(args, iv.args...)
	if req.ConfigFile != "" {
		args = append(args, "--config", req.ConfigFile)
	}
	args = append(args, req.ExtraArgs...)

	cmd := exec.CommandContext(runCtx, iv.binary, args...)
	cmd.Dir = req.Dir
	stdout := newTailBuffer(captureLimit)
	stderr := newTailBuffer(captureLimit)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Graceful-then-forced shutdown: cancellation sends SIGTERM, and
	// WaitDelay force-kills after the grace period if the child lingers.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = iv.grace

	slog.Debug("Invoking compiler", "binary", iv.binary, "dir", req.Dir, "timeout", iv.timeout)
	start := time.Now()
	err := cmd.Run()
	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
		TimedOut: errors.Is(runCtx.Err(), context.DeadlineExceeded),
	}

	switch {
	case err == nil:
		res.ExitCode = 0
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else if res.TimedOut || runCtx.Err() != nil {
			// Terminated by us before producing an exit status.
			res.ExitCode = -1
		} else {
			return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
		}
	}

	if res.TimedOut {
		res.ExitCode = -1
		res.Stderr = appendLine(res.Stderr,
			fmt.Sprintf("dochub: compiler timed out after %s (grace %s)", iv.timeout, iv.grace))
	}
	return res, nil
}

func appendLine(s, line string) string {
	if s == "" {
		return line
	}
	return s + "\n" + line
}
