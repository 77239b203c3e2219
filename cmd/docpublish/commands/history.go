package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int  `short:"n" help:"Number of transactions to show" default:"20"`
	JSON  bool `name:"json" help:"Print entries as JSON"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.History.Path == "" {
		return fmt.Errorf("publish history is disabled (history.path is empty)")
	}
	ledger, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer func() { _ = ledger.Close() }()
	return RunHistory(context.Background(), g, ledger, h.Limit, h.JSON)
}

// RunHistory prints the newest limit entries of ledger.
func RunHistory(ctx context.Context, g *Global, ledger *history.Ledger, limit int, asJSON bool) error {
	entries, err := ledger.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if asJSON {
		b, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		g.Printf("%s\n", b)
		return nil
	}
	if len(entries) == 0 {
		g.Printf("No publish transactions recorded\n")
		return nil
	}

	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "STARTED\tSTATUS\tCOMMIT\tITEMS\tDETAIL")
	for _, e := range entries {
		detail := e.ErrorCode
		if e.Status == history.StatusPublished {
			names := make([]string, 0, len(e.Published))
			for _, p := range e.Published {
				names = append(names, p.Path)
			}
			detail = strings.Join(names, ", ")
		}
		commit := e.Commit
		if len(commit) > 8 {
			commit = commit[:8]
		}
		if commit == "" {
			commit = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			e.StartedAt.Local().Format(time.DateTime), e.Status, commit, len(e.Items), detail)
	}
	_ = tw.Flush()
	g.Printf("%s", b.String())
	return nil
}
