// Package manifest reads per-package declaration files (docpkg.yaml) and
// produces the immutable package descriptors the planner consumes.
package manifest

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	dherrors "git.home.luguber.info/inful/dochub/internal/errors"
)

// FileName is the per-package manifest file name.
const FileName = "docpkg.yaml"

// Descriptor describes one discovered package. Created once per run and
// immutable thereafter.
type Descriptor struct {
	// Name uniquely identifies the package within the repository.
	Name string
	// Title is the human display title; defaults to Name.
	Title string
	// RootPath is the package directory containing the manifest.
	RootPath string
	// Dependencies are declared dependency names. Names not present in the
	// repository are external and ignored for ordering.
	Dependencies []string
	// DocsSourcePath is the directory the compiler runs in.
	DocsSourcePath string
	// DocsOutputPath is where the compiler leaves its artifact tree.
	DocsOutputPath string
}

// rawManifest mirrors the on-disk docpkg.yaml structure.
type rawManifest struct {
	Name         string   `yaml:"name"`
	Title        string   `yaml:"title,omitempty"`
	Dependencies []string `yaml:"dependencies,omitempty"`
	Docs         struct {
		Source string `yaml:"source,omitempty"`
		Output string `yaml:"output,omitempty"`
	} `yaml:"docs,omitempty"`
}

// Discover scans one level below packagesDir, plus any explicit extra
// directories, for manifests. The scan is a pure read: no files are created
// or modified. Descriptors come back sorted by name for deterministic plans.
func Discover(packagesDir string, extraDirs []string) ([]Descriptor, error) {
	candidates, err := candidateDirs(packagesDir, extraDirs)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]string, len(candidates)) // name -> manifest path
	descriptors := make([]Descriptor, 0, len(candidates))
	for _, dir := range candidates {
		path := filepath.Join(dir, FileName)
		desc, err := Read(path)
		if err != nil {
			return nil, err
		}
		if first, dup := seen[desc.Name]; dup {
			return nil, dherrors.DuplicatePackage(desc.Name, first, path)
		}
		seen[desc.Name] = path
		descriptors = append(descriptors, *desc)
	}

	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].Name < descriptors[j].Name })
	slog.Debug("Package discovery completed", "packages", len(descriptors), "dir", packagesDir)
	return descriptors, nil
}

// Read parses a single manifest file into a Descriptor, applying defaults
// for optional fields. Missing identity (name) is a fatal manifest error.
func Read(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dherrors.ManifestInvalid(path, fmt.Sprintf("read failed: %v", err))
	}

	var raw rawManifest
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, dherrors.ManifestInvalid(path, fmt.Sprintf("parse failed: %v", err))
	}
	if raw.Name == "" {
		return nil, dherrors.ManifestInvalid(path, "missing required field: name")
	}

	root := filepath.Dir(path)
	source := raw.Docs.Source
	if source == "" {
		source = "docs"
	}
	output := raw.Docs.Output
	if output == "" {
		output = "_build"
	}

	desc := &Descriptor{
		Name:           raw.Name,
		Title:          raw.Title,
		RootPath:       root,
		Dependencies:   dedupe(raw.Dependencies),
		DocsSourcePath: filepath.Join(root, source),
		DocsOutputPath: filepath.Join(root, source, output),
	}
	if desc.Title == "" {
		desc.Title = desc.Name
	}
	return desc, nil
}

// candidateDirs lists directories that may hold a manifest: every immediate
// subdirectory of packagesDir that contains one, plus each extra directory
// (extras must contain one; naming a bare directory is a configuration error).
func candidateDirs(packagesDir string, extraDirs []string) ([]string, error) {
	entries, err := os.ReadDir(packagesDir)
	if err != nil {
		return nil, dherrors.Wrap(err, dherrors.CategoryManifest, dherrors.SeverityFatal, "packages directory unreadable").
			WithContext("path", packagesDir)
	}

	var dirs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(packagesDir, e.Name())
		if _, err := os.Stat(filepath.Join(dir, FileName)); err != nil {
			slog.Debug("Skipping directory without manifest", "dir", dir)
			continue
		}
		dirs = append(dirs, dir)
	}
	for _, dir := range extraDirs {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err != nil {
			return nil, dherrors.ManifestInvalid(filepath.Join(dir, FileName), "extra package directory has no manifest")
		}
		dirs = append(dirs, dir)
	}
	return dirs, nil
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
