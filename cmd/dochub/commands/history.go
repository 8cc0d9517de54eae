package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"git.home.luguber.info/inful/dochub/internal/config"
	"git.home.luguber.info/inful/dochub/internal/history"
)

// HistoryCmd lists recent orchestration runs from the history database.
type HistoryCmd struct {
	Limit int    `name:"limit" default:"20" help:"Number of runs to show"`
	RunID string `name:"run-id" help:"Print the full stored report for one run as JSON"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	if cfg.Build.HistoryDB == "" {
		return fmt.Errorf("history is not configured (set build.history_db)")
	}

	store, err := history.Open(cfg.Build.HistoryDB)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if h.RunID != "" {
		r, err := store.Report(ctx, h.RunID)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	entries, err := store.Recent(ctx, h.Limit)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Run", "Started", "Duration", "OK", "Failed", "Skipped", "Hub", "Revision"})
	for _, e := range entries {
		rev := e.Revision
		if len(rev) > 12 {
			rev = rev[:12]
		}
		runID := e.RunID
		if len(runID) > 8 {
			runID = runID[:8]
		}
		t.AppendRow(table.Row{
			runID, e.Start.Format(time.RFC3339), e.Duration.Round(timeRounding),
			e.Succeeded, e.Failed, e.Skipped, string(e.HubStatus), rev,
		})
	}
	t.Render()
	return nil
}
