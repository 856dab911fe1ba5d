package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	repoindex "github.com/kailas-cloud/docindex/internal/repository/index"
	"github.com/kailas-cloud/docindex/internal/usecase/vectorstore"
)

// statsOutput mirrors the GET /index/stats body.
type statsOutput struct {
	Path      string `json:"path"`
	Exists    bool   `json:"exists"`
	Entries   int    `json:"entries"`
	Model     string `json:"model,omitempty"`
	Dimension int    `json:"dimension"`
}

func newStatsCmd(st *cliState) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the persisted index binding and entry count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd.Context(), st, asJSON, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print stats as JSON")
	return cmd
}

// runStats reads the index without building the embedder chain, so it needs no credentials.
func runStats(ctx context.Context, st *cliState, asJSON bool, out io.Writer) error {
	store, err := repoindex.NewStore(st.cfg.Index.Path, st.logger)
	if err != nil {
		return fmt.Errorf("create index store: %w", err)
	}
	stats, err := vectorstore.NewManager(store, nil, vectorstore.Config{}, st.logger).Stats(ctx)
	if err != nil {
		return fmt.Errorf("read index stats: %w", err)
	}

	o := statsOutput{
		Path:      stats.Path,
		Exists:    stats.Exists,
		Entries:   stats.Entries,
		Model:     stats.Model,
		Dimension: stats.Dimension,
	}
	if asJSON {
		if err := json.NewEncoder(out).Encode(o); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		return nil
	}

	if !o.Exists {
		fmt.Fprintf(out, "index %s: exists false\n", o.Path)
		return nil
	}
	fmt.Fprintf(out, "index %s: %d entries, model %s, dimension %d\n", o.Path, o.Entries, o.Model, o.Dimension)
	return nil
}
