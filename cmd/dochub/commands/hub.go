package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/dochub/internal/compiler"
	"git.home.luguber.info/inful/dochub/internal/config"
	"git.home.luguber.info/inful/dochub/internal/hub"
	"git.home.luguber.info/inful/dochub/internal/manifest"
	"git.home.luguber.info/inful/dochub/internal/report"
)

// HubCmd re-assembles the hub from an existing build report, without
// rebuilding any package. Useful after fixing a hub-only failure.
type HubCmd struct {
	Report string `name:"report" help:"Build report to read succeeded packages from (defaults to build.report_path)"`
}

func (h *HubCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	reportPath := h.Report
	if reportPath == "" {
		reportPath = cfg.Build.ReportPath
	}

	r, err := report.LoadReport(reportPath)
	if err != nil {
		return err
	}
	succeeded := r.Succeeded()
	if len(succeeded) == 0 {
		return fmt.Errorf("report %s has no succeeded packages to assemble", reportPath)
	}

	descriptors, err := manifest.Discover(cfg.PackagesDir, cfg.ExtraPackages)
	if err != nil {
		return err
	}
	byName := make(map[string]manifest.Descriptor, len(descriptors))
	for _, d := range descriptors {
		byName[d.Name] = d
	}

	var hubDescs []manifest.Descriptor
	for _, task := range succeeded {
		desc, ok := byName[task.Package]
		if !ok {
			return fmt.Errorf("package %s from report no longer exists in %s", task.Package, cfg.PackagesDir)
		}
		hubDescs = append(hubDescs, desc)
	}

	assembler := hub.New(cfg.Hub, compiler.New(cfg.Compiler), cfg.Compiler.ConfigFile)
	status, err := assembler.Assemble(context.Background(), hubDescs)
	if err != nil {
		return err
	}
	fmt.Printf("Hub assembly: %s (%d packages)\n", status, len(hubDescs))
	return nil
}
