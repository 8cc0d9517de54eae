package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"git.home.luguber.info/inful/dochub/internal/config"
	"git.home.luguber.info/inful/dochub/internal/manifest"
	"git.home.luguber.info/inful/dochub/internal/orchestrator"
)

const timeRounding = time.Millisecond

// PlanCmd prints the wave plan without executing anything. The plan shown
// here is byte-for-byte the wave assignment a real run would use.
type PlanCmd struct {
	PackagesDir string   `name:"packages-dir" help:"Override the packages directory from config"`
	Only        []string `name:"only" help:"Restrict the plan to these packages plus dependencies"`
	Format      string   `name:"format" enum:"table,json" default:"table" help:"Output format (table, json)"`
}

func (p *PlanCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	if p.PackagesDir != "" {
		cfg.PackagesDir = p.PackagesDir
	}

	descriptors, err := manifest.Discover(cfg.PackagesDir, cfg.ExtraPackages)
	if err != nil {
		return err
	}
	plan, err := orchestrator.NewPlan(descriptors, p.Only)
	if err != nil {
		return err
	}

	if p.Format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"waves": plan.Waves})
	}
	printPlan(plan)
	fmt.Printf("%d package(s) in %d wave(s)\n", plan.TaskCount(), len(plan.Waves))
	return nil
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
