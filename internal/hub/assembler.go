// Package hub assembles the cross-linked documentation hub: it collects each
// succeeded package's build artifact tree under a central directory, writes a
// cross-referencing index, and runs one more compiler pass over the hub.
// A hub failure is reported but never invalidates per-package results.
package hub

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/dochub/internal/compiler"
	"git.home.luguber.info/inful/dochub/internal/config"
	dherrors "git.home.luguber.info/inful/dochub/internal/errors"
	"git.home.luguber.info/inful/dochub/internal/manifest"
	"git.home.luguber.info/inful/dochub/internal/metrics"
	"git.home.luguber.info/inful/dochub/internal/report"
)

// Invoker abstracts the compiler invocation (same contract as the
// orchestrator's) so tests can stub the hub pass.
type Invoker interface {
	Invoke(ctx context.Context, req compiler.Request) (*compiler.Result, error)
}

// Assembler builds the hub from succeeded packages.
type Assembler struct {
	cfg        config.HubConfig
	invoker    Invoker
	configFile string
	recorder   metrics.Recorder
}

// New creates an Assembler. configFile is the compiler configuration file
// name, materialized into the hub directory before the hub pass.
func New(cfg config.HubConfig, inv Invoker, configFile string) *Assembler {
	return &Assembler{cfg: cfg, invoker: inv, configFile: configFile, recorder: metrics.NoopRecorder{}}
}

// SetRecorder injects a metrics recorder. Returns the assembler for chaining.
func (a *Assembler) SetRecorder(r metrics.Recorder) *Assembler {
	if r != nil {
		a.recorder = r
	}
	return a
}

// hubManifest is the hub-level compiler configuration declaring
// cross-references to every collected package.
type hubManifest struct {
	Title    string `yaml:"title"`
	Packages []struct {
		Name string `yaml:"name"`
		Path string `yaml:"path"`
	} `yaml:"packages"`
}

// Assemble collects artifact trees and runs the hub compiler pass. The
// collection directory is staged fresh each run so stale artifacts from a
// previous build never leak into the hub. Two packages mapping to the same
// collection subpath within one run is a fatal configuration error, not a
// silent overwrite.
func (a *Assembler) Assemble(ctx context.Context, packages []manifest.Descriptor) (report.HubStatus, error) {
	start := time.Now()
	status, err := a.assemble(ctx, packages)
	a.recorder.ObserveHubDuration(time.Since(start), status == report.HubSucceeded)
	return status, err
}

func (a *Assembler) assemble(ctx context.Context, packages []manifest.Descriptor) (report.HubStatus, error) {
	collectDir := filepath.Join(a.cfg.Dir, "packages")
	if err := os.RemoveAll(collectDir); err != nil {
		return report.HubFailed, dherrors.WorkspaceError("clear hub collection directory", err)
	}
	if err := os.MkdirAll(collectDir, 0o750); err != nil {
		return report.HubFailed, dherrors.WorkspaceError("create hub directory", err)
	}

	// Collision check is intra-run: names are unique, so only case-folding
	// filesystems can map two packages onto one subpath.
	claimed := make(map[string]string, len(packages))
	for _, desc := range packages {
		key := strings.ToLower(desc.Name)
		if first, dup := claimed[key]; dup {
			return report.HubFailed, dherrors.HubCollision(desc.Name, filepath.Join(collectDir, first))
		}
		claimed[key] = desc.Name

		dest := filepath.Join(collectDir, desc.Name)
		if err := copyTree(desc.DocsOutputPath, dest); err != nil {
			return report.HubFailed, dherrors.WorkspaceError("collect package artifacts", err).
				WithContext("package", desc.Name)
		}
		slog.Debug("Collected package artifacts", "package", desc.Name, "dest", dest)
	}

	if err := a.writeIndex(packages); err != nil {
		return report.HubFailed, err
	}
	if err := a.writeCompilerConfig(packages); err != nil {
		return report.HubFailed, err
	}

	res, err := a.invoker.Invoke(ctx, compiler.Request{
		Dir:        a.cfg.Dir,
		ConfigFile: a.configFile,
	})
	if err != nil {
		return report.HubFailed, dherrors.Wrap(err, dherrors.CategoryHub, dherrors.SeverityError, "hub compiler pass could not start")
	}
	if res.ExitCode != 0 {
		slog.Warn("Hub compiler pass failed", "exit_code", res.ExitCode)
		return report.HubFailed, dherrors.New(dherrors.CategoryHub, dherrors.SeverityError, "hub compiler pass failed").
			WithContext("exit_code", res.ExitCode)
	}

	slog.Info("Hub assembled", "packages", len(packages), "dir", a.cfg.Dir)
	return report.HubSucceeded, nil
}

// writeCompilerConfig materializes the hub-level compiler configuration.
func (a *Assembler) writeCompilerConfig(packages []manifest.Descriptor) error {
	var hm hubManifest
	hm.Title = a.cfg.Title
	for _, desc := range packages {
		hm.Packages = append(hm.Packages, struct {
			Name string `yaml:"name"`
			Path string `yaml:"path"`
		}{Name: desc.Name, Path: filepath.Join("packages", desc.Name)})
	}
	data, err := yaml.Marshal(&hm)
	if err != nil {
		return fmt.Errorf("marshal hub config: %w", err)
	}
	path := filepath.Join(a.cfg.Dir, a.configFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return dherrors.WorkspaceError("write hub config", err)
	}
	return nil
}

// copyTree copies src recursively to dest, preserving structure. Symlinks
// are skipped: artifact trees are expected to be plain files, and a link
// escaping the tree must not end up in the hub.
func copyTree(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("artifact tree missing: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("artifact path is not a directory: %s", src)
	}
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o750)
		}
		if !d.Type().IsRegular() {
			slog.Debug("Skipping non-regular file in artifact tree", "path", path)
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
}
