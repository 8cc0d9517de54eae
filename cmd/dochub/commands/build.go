package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/dochub/internal/classify"
	"git.home.luguber.info/inful/dochub/internal/compiler"
	"git.home.luguber.info/inful/dochub/internal/config"
	dherrors "git.home.luguber.info/inful/dochub/internal/errors"
	"git.home.luguber.info/inful/dochub/internal/events"
	"git.home.luguber.info/inful/dochub/internal/gitinfo"
	"git.home.luguber.info/inful/dochub/internal/history"
	"git.home.luguber.info/inful/dochub/internal/hub"
	"git.home.luguber.info/inful/dochub/internal/manifest"
	"git.home.luguber.info/inful/dochub/internal/metrics"
	"git.home.luguber.info/inful/dochub/internal/orchestrator"
	"git.home.luguber.info/inful/dochub/internal/report"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	PackagesDir string   `name:"packages-dir" help:"Override the packages directory from config"`
	Only        []string `name:"only" help:"Restrict the build to these packages (dependencies are still resolved and built)"`
	NoHub       bool     `name:"no-hub" help:"Skip hub assembly"`
	MaxParallel int      `name:"max-parallel" help:"Override maximum concurrent compiler invocations"`
	Timeout     int      `name:"timeout" help:"Override per-package compiler timeout in seconds"`
	DryRun      bool     `name:"dry-run" help:"Print the wave plan without invoking the compiler"`
	Output      string   `name:"output" help:"Override the hub output directory"`
	Report      string   `name:"report" help:"Override the build report path"`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	b.applyOverrides(cfg)

	opts := BuildOptions{Only: b.Only, DryRun: b.DryRun}
	_, err = ExecuteBuild(context.Background(), cfg, opts, nil)
	return err
}

// applyOverrides layers CLI flags over the loaded configuration.
func (b *BuildCmd) applyOverrides(cfg *config.Config) {
	if b.PackagesDir != "" {
		cfg.PackagesDir = b.PackagesDir
	}
	if b.MaxParallel > 0 {
		cfg.Build.MaxParallel = b.MaxParallel
	}
	if b.Timeout > 0 {
		cfg.Compiler.TimeoutSeconds = b.Timeout
	}
	if b.Output != "" {
		cfg.Hub.Dir = b.Output
	}
	if b.Report != "" {
		cfg.Build.ReportPath = b.Report
	}
	if b.NoHub {
		cfg.Hub.Disabled = true
	}
}

// BuildOptions carries per-invocation knobs into the shared build pipeline.
type BuildOptions struct {
	Only   []string
	DryRun bool
}

// ExecuteBuild runs the full orchestration pipeline: discover, plan, build
// waves, assemble hub, persist report. registry may be nil; when set (watch
// mode) metrics accumulate across runs. The returned error encodes the exit
// contract via its category.
func ExecuteBuild(ctx context.Context, cfg *config.Config, opts BuildOptions, registry *prom.Registry) (*report.BuildReport, error) {
	descriptors, err := manifest.Discover(cfg.PackagesDir, cfg.ExtraPackages)
	if err != nil {
		return nil, err
	}
	if len(descriptors) == 0 {
		return nil, dherrors.New(dherrors.CategoryManifest, dherrors.SeverityFatal, "no package manifests found").
			WithContext("dir", cfg.PackagesDir)
	}

	plan, err := orchestrator.NewPlan(descriptors, opts.Only)
	if err != nil {
		return nil, err
	}

	if opts.DryRun {
		printPlan(plan)
		return nil, nil
	}

	classifier, err := classify.New(cfg.Classifier.Patterns)
	if err != nil {
		return nil, dherrors.Wrap(err, dherrors.CategoryValidation, dherrors.SeverityFatal, "invalid classifier configuration")
	}

	recorder := metrics.Recorder(metrics.NoopRecorder{})
	if cfg.Metrics.Enabled {
		if registry == nil {
			registry = prom.NewRegistry()
		}
		recorder = metrics.NewPrometheusRecorder(registry)
	}

	publisher := events.Publisher(events.NoopPublisher{})
	if cfg.Events.Enabled {
		np, err := events.NewNATSPublisher(cfg.Events)
		if err != nil {
			// Best effort: a missing broker never fails a build.
			slog.Warn("Event publishing disabled, broker unreachable", "error", err)
		} else {
			publisher = np
			defer np.Close()
		}
	}

	revision := gitinfo.HeadRevision(cfg.PackagesDir)
	agg := report.NewAggregator(plan.Waves, revision).SetRecorder(recorder)
	invoker := compiler.New(cfg.Compiler)
	orch := orchestrator.New(invoker, classifier, cfg).
		SetRecorder(recorder).
		SetPublisher(publisher)

	slog.Info("Starting documentation build",
		"packages", plan.TaskCount(), "waves", len(plan.Waves), "run_id", agg.RunID())
	aborted := orch.Run(ctx, plan, agg)

	hubStatus := report.HubSkipped
	succeeded := agg.SucceededNames()
	if !cfg.Hub.Disabled && len(succeeded) > 0 {
		var hubDescs []manifest.Descriptor
		for _, name := range succeeded {
			hubDescs = append(hubDescs, plan.Descriptors[name])
		}
		assembler := hub.New(cfg.Hub, invoker, cfg.Compiler.ConfigFile).SetRecorder(recorder)
		var hubErr error
		hubStatus, hubErr = assembler.Assemble(ctx, hubDescs)
		if hubErr != nil {
			slog.Warn("Hub assembly failed", "error", hubErr)
		}
	}

	result := agg.Finalize(hubStatus, aborted)
	publisher.RunFinished(result.RunID, result)

	if err := result.Persist(cfg.Build.ReportPath); err != nil {
		slog.Warn("Failed to persist build report", "path", cfg.Build.ReportPath, "error", err)
	}
	appendHistory(ctx, cfg, result)
	printReport(result)

	return result, buildError(result)
}

// buildError maps the finished run onto the exit-code contract.
func buildError(r *report.BuildReport) error {
	switch {
	case r.Aborted:
		return dherrors.BuildAborted()
	case !r.AllSucceeded():
		failed := len(r.FailedDirectly())
		skipped := len(r.SkippedForDependency())
		return dherrors.New(dherrors.CategoryBuild, dherrors.SeverityError,
			fmt.Sprintf("%d package(s) failed, %d skipped", failed, skipped))
	case r.HubStatus == report.HubFailed:
		return dherrors.New(dherrors.CategoryHub, dherrors.SeverityError, "packages built but hub assembly failed")
	default:
		return nil
	}
}

func appendHistory(ctx context.Context, cfg *config.Config, r *report.BuildReport) {
	if cfg.Build.HistoryDB == "" {
		return
	}
	store, err := history.Open(cfg.Build.HistoryDB)
	if err != nil {
		slog.Warn("Failed to open history database", "path", cfg.Build.HistoryDB, "error", err)
		return
	}
	defer store.Close()
	if err := store.Append(ctx, r); err != nil {
		slog.Warn("Failed to record run in history", "error", err)
	}
}

// printReport renders the outcome table on stdout, separating built packages
// from direct failures and dependency skips.
func printReport(r *report.BuildReport) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Package", "Wave", "Outcome", "Category", "Warns", "Duration", "Detail"})
	for _, task := range r.Tasks {
		detail := task.SkipReason
		if detail == "" && task.ExitCode != 0 {
			detail = fmt.Sprintf("exit %d", task.ExitCode)
		}
		t.AppendRow(table.Row{
			task.Package, task.Wave, string(task.Outcome), task.Category,
			task.Warnings, task.Duration.Round(timeRounding), detail,
		})
	}
	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d ok / %d failed / %d skipped",
		r.Counts[report.OutcomeSucceeded],
		len(r.FailedDirectly()),
		r.Counts[report.OutcomeSkipped]),
		"", "", r.Duration.Round(timeRounding), "hub: " + string(r.HubStatus)})
	t.Render()
}

func printPlan(plan *orchestrator.Plan) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Wave", "Packages"})
	for i, wave := range plan.Waves {
		t.AppendRow(table.Row{i, joinNames(wave)})
	}
	t.Render()
}
