package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/dochub/internal/config"
	dherrors "git.home.luguber.info/inful/dochub/internal/errors"
	"git.home.luguber.info/inful/dochub/internal/history"
	"git.home.luguber.info/inful/dochub/internal/report"
)

// fakeCompilerScript builds a tiny artifact tree, or fails with an import
// error when invoked inside a package whose path contains "broken".
const fakeCompilerScript = `#!/bin/sh
case "$PWD" in
  *broken*)
    echo "ModuleNotFoundError: No module named 'broken'" >&2
    exit 1
    ;;
esac
mkdir -p _build
echo "<p>ok</p>" > _build/index.html
exit 0
`

// testWorkspace lays out a packages tree, a fake compiler, and a config
// wired to temp paths.
func testWorkspace(t *testing.T, packages map[string]string) *config.Config {
	t.Helper()
	root := t.TempDir()

	pkgsDir := filepath.Join(root, "packages")
	for name, manifestYAML := range packages {
		dir := filepath.Join(pkgsDir, name)
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "docpkg.yaml"), []byte(manifestYAML), 0o644))
	}

	bin := filepath.Join(root, "doccompile")
	require.NoError(t, os.WriteFile(bin, []byte(fakeCompilerScript), 0o755))

	cfg := &config.Config{PackagesDir: pkgsDir}
	cfg.Compiler.Binary = bin
	cfg.Compiler.TimeoutSeconds = 30
	cfg.Build.MaxParallel = 2
	cfg.Build.ReportPath = filepath.Join(root, "build-report.json")
	cfg.Build.HistoryDB = filepath.Join(root, "history.db")
	cfg.Hub.Dir = filepath.Join(root, "hub")
	cfg.ApplyDefaults()
	return cfg
}

func TestExecuteBuildFullPipeline(t *testing.T) {
	cfg := testWorkspace(t, map[string]string{
		"core":  "name: core\n",
		"tools": "name: tools\ndependencies: [core]\n",
	})

	result, err := ExecuteBuild(context.Background(), cfg, BuildOptions{}, nil)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.AllSucceeded())
	assert.Equal(t, report.HubSucceeded, result.HubStatus)

	// Report persisted and loadable.
	persisted, err := report.LoadReport(cfg.Build.ReportPath)
	require.NoError(t, err)
	assert.Equal(t, result.RunID, persisted.RunID)

	// Hub holds both artifact trees and the index.
	for _, rel := range []string{"packages/core/index.html", "packages/tools/index.html", "index.html", "index.md"} {
		_, err := os.Stat(filepath.Join(cfg.Hub.Dir, rel))
		assert.NoError(t, err, rel)
	}

	// History recorded the run.
	store, err := history.Open(cfg.Build.HistoryDB)
	require.NoError(t, err)
	defer store.Close()
	entries, err := store.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, result.RunID, entries[0].RunID)
	assert.Equal(t, 2, entries[0].Succeeded)
}

func TestExecuteBuildPartialFailure(t *testing.T) {
	cfg := testWorkspace(t, map[string]string{
		"broken":  "name: broken\n",
		"child":   "name: child\ndependencies: [broken]\n",
		"healthy": "name: healthy\n",
	})

	result, err := ExecuteBuild(context.Background(), cfg, BuildOptions{}, nil)
	require.Error(t, err)
	assert.True(t, dherrors.IsCategory(err, dherrors.CategoryBuild))

	adapter := dherrors.NewCLIErrorAdapter(false, nil)
	assert.Equal(t, dherrors.ExitPackagesFailed, adapter.ExitCodeFor(err))

	require.NotNil(t, result)
	assert.Equal(t, 1, result.Counts[report.OutcomeSucceeded])
	assert.Equal(t, 1, result.Counts[report.OutcomeFailedRecoverable])
	assert.Equal(t, 1, result.Counts[report.OutcomeSkipped])
	assert.False(t, result.Aborted)

	// Hub still assembles from the surviving package.
	assert.Equal(t, report.HubSucceeded, result.HubStatus)
	_, statErr := os.Stat(filepath.Join(cfg.Hub.Dir, "packages", "healthy", "index.html"))
	assert.NoError(t, statErr)
	_, statErr = os.Stat(filepath.Join(cfg.Hub.Dir, "packages", "broken"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExecuteBuildDryRunInvokesNothing(t *testing.T) {
	cfg := testWorkspace(t, map[string]string{
		"core":  "name: core\n",
		"tools": "name: tools\ndependencies: [core]\n",
	})
	// A dry run must never need the compiler.
	cfg.Compiler.Binary = "/nonexistent/doccompile"

	result, err := ExecuteBuild(context.Background(), cfg, BuildOptions{DryRun: true}, nil)
	require.NoError(t, err)
	assert.Nil(t, result)

	_, statErr := os.Stat(cfg.Build.ReportPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExecuteBuildOnlyRestrictsTargets(t *testing.T) {
	cfg := testWorkspace(t, map[string]string{
		"core":   "name: core\n",
		"extra":  "name: extra\n",
		"agents": "name: agents\ndependencies: [core]\n",
	})

	result, err := ExecuteBuild(context.Background(), cfg, BuildOptions{Only: []string{"agents"}}, nil)
	require.NoError(t, err)
	require.Len(t, result.Tasks, 2)
	names := []string{result.Tasks[0].Package, result.Tasks[1].Package}
	assert.ElementsMatch(t, []string{"core", "agents"}, names)
}

func TestExecuteBuildMissingBinaryAborts(t *testing.T) {
	cfg := testWorkspace(t, map[string]string{"core": "name: core\n"})
	cfg.Compiler.Binary = "/nonexistent/doccompile"

	result, err := ExecuteBuild(context.Background(), cfg, BuildOptions{}, nil)
	require.Error(t, err)
	assert.True(t, dherrors.IsCategory(err, dherrors.CategoryCompiler))

	adapter := dherrors.NewCLIErrorAdapter(false, nil)
	assert.Equal(t, dherrors.ExitAborted, adapter.ExitCodeFor(err))
	assert.True(t, result.Aborted)
}

func TestExecuteBuildNoManifests(t *testing.T) {
	cfg := testWorkspace(t, nil)
	require.NoError(t, os.MkdirAll(cfg.PackagesDir, 0o755))

	_, err := ExecuteBuild(context.Background(), cfg, BuildOptions{}, nil)
	require.Error(t, err)
	assert.True(t, dherrors.IsCategory(err, dherrors.CategoryManifest))
}

func TestApplyOverrides(t *testing.T) {
	cfg := &config.Config{}
	cfg.ApplyDefaults()

	b := &BuildCmd{
		PackagesDir: "elsewhere",
		MaxParallel: 9,
		Timeout:     42,
		NoHub:       true,
		Output:      "site",
		Report:      "out/report.json",
	}
	b.applyOverrides(cfg)

	assert.Equal(t, "elsewhere", cfg.PackagesDir)
	assert.Equal(t, 9, cfg.Build.MaxParallel)
	assert.Equal(t, 42, cfg.Compiler.TimeoutSeconds)
	assert.True(t, cfg.Hub.Disabled)
	assert.Equal(t, "site", cfg.Hub.Dir)
	assert.Equal(t, "out/report.json", cfg.Build.ReportPath)
}

func TestBuildErrorMapping(t *testing.T) {
	mk := func(outcomes []report.Outcome, hub report.HubStatus, aborted bool) *report.BuildReport {
		agg := report.NewAggregator(nil, "")
		for i, o := range outcomes {
			agg.Record(report.Task{Package: string(rune('a' + i)), Outcome: o})
		}
		return agg.Finalize(hub, aborted)
	}

	assert.NoError(t, buildError(mk([]report.Outcome{report.OutcomeSucceeded}, report.HubSucceeded, false)))

	err := buildError(mk([]report.Outcome{report.OutcomeSucceeded, report.OutcomeFailedRecoverable}, report.HubSkipped, false))
	assert.True(t, dherrors.IsCategory(err, dherrors.CategoryBuild))

	err = buildError(mk([]report.Outcome{report.OutcomeFailedFatal}, report.HubSkipped, true))
	assert.True(t, dherrors.IsCategory(err, dherrors.CategoryCompiler))

	err = buildError(mk([]report.Outcome{report.OutcomeSucceeded}, report.HubFailed, false))
	assert.True(t, dherrors.IsCategory(err, dherrors.CategoryHub))
}
