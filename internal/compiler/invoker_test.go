package compiler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/dochub/internal/config"
)

// fakeCompiler writes a shell script standing in for the external compiler
// and returns an Invoker configured to run it.
func fakeCompiler(t *testing.T, script string, timeoutSec, graceSec int) (*Invoker, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "doccompile")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))

	iv := New(config.CompilerConfig{
		Binary:         path,
		TimeoutSeconds: timeoutSec,
		GraceSeconds:   graceSec,
	})
	return iv, dir
}

func TestInvokeSuccess(t *testing.T) {
	iv, dir := fakeCompiler(t, `echo "built $PWD"; echo "warning: slow" >&2; exit 0`, 30, 5)

	res, err := iv.Invoke(context.Background(), Request{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.TimedOut)
	assert.Contains(t, res.Stdout, "built")
	assert.Contains(t, res.Stderr, "warning: slow")
	assert.Greater(t, res.Duration, time.Duration(0))
}

func TestInvokeNonZeroExitIsNotAnError(t *testing.T) {
	iv, dir := fakeCompiler(t, `echo "ModuleNotFoundError: No module named 'x'" >&2; exit 2`, 30, 5)

	res, err := iv.Invoke(context.Background(), Request{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, 2, res.ExitCode)
	assert.Contains(t, res.Stderr, "ModuleNotFoundError")
}

func TestInvokePassesConfigFlag(t *testing.T) {
	iv, dir := fakeCompiler(t, `echo "args: $@"`, 30, 5)

	res, err := iv.Invoke(context.Background(), Request{Dir: dir, ConfigFile: "docs.yaml"})
	require.NoError(t, err)
	assert.Contains(t, res.Stdout, "--config docs.yaml")
}

func TestInvokeTimeoutTerminatesWithinGrace(t *testing.T) {
	// Script traps SIGTERM and keeps going, forcing the SIGKILL path.
	iv, dir := fakeCompiler(t, `trap "" TERM; sleep 30`, 1, 1)

	start := time.Now()
	res, err := iv.Invoke(context.Background(), Request{Dir: dir})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.Equal(t, -1, res.ExitCode)
	assert.Contains(t, res.Stderr, "timed out")
	// Must finish around timeout + grace, never run to the sleep's end.
	assert.Less(t, elapsed, 6*time.Second)
}

func TestInvokeMissingBinaryIsLaunchFault(t *testing.T) {
	iv := New(config.CompilerConfig{
		Binary:         filepath.Join(t.TempDir(), "does-not-exist"),
		TimeoutSeconds: 30,
		GraceSeconds:   5,
	})

	res, err := iv.Invoke(context.Background(), Request{Dir: t.TempDir()})
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLaunch))
}

func TestInvokeMissingWorkDirIsLaunchFault(t *testing.T) {
	iv, _ := fakeCompiler(t, `exit 0`, 30, 5)

	_, err := iv.Invoke(context.Background(), Request{Dir: filepath.Join(t.TempDir(), "gone")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLaunch))
}

func TestInvokeRunCancellation(t *testing.T) {
	iv, dir := fakeCompiler(t, `sleep 30`, 60, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	res, err := iv.Invoke(ctx, Request{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, -1, res.ExitCode)
	assert.False(t, res.TimedOut)
}

func TestCombinedOutput(t *testing.T) {
	r := &Result{Stdout: "out", Stderr: "err"}
	assert.Equal(t, "out\nerr", r.CombinedOutput())
	assert.Equal(t, "out", (&Result{Stdout: "out"}).CombinedOutput())
	assert.Equal(t, "err", (&Result{Stderr: "err"}).CombinedOutput())
}

func TestTailBufferKeepsTail(t *testing.T) {
	b := newTailBuffer(16)
	_, err := b.Write([]byte(strings.Repeat("a", 10)))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 10), b.String())

	_, err = b.Write([]byte(strings.Repeat("b", 20)))
	require.NoError(t, err)
	got := b.String()
	assert.Contains(t, got, "truncated")
	assert.True(t, strings.HasSuffix(got, strings.Repeat("b", 16)))
}
