package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docindex/internal/domain"
	ingestuc "github.com/kailas-cloud/docindex/internal/usecase/ingest"
)

type ingestOutput struct {
	Filename    string `json:"filename"`
	Format      string `json:"format"`
	Chunks      int    `json:"chunks"`
	ChunksAdded int    `json:"chunks_added"`
}

func newIngestCmd(st *cliState) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Parse, chunk, embed and index local documents",
		Long: "Each file is processed and merged into the index on its own. Processing stops\n" +
			"at the first failing file; files before it stay indexed.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), st, args, asJSON, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON lines")
	return cmd
}

func runIngest(ctx context.Context, st *cliState, paths []string, asJSON bool, out io.Writer) error {
	a, err := newApp(ctx, st.cfg, st.logger)
	if err != nil {
		return err
	}
	defer a.close()

	enc := json.NewEncoder(out)
	for _, path := range paths {
		res, err := a.ingest.Ingest(ctx, ingestuc.NewFileUpload(path))
		if err != nil {
			fields := []zap.Field{zap.String("file", path), zap.Error(err)}
			if stage, ok := domain.StageOf(err); ok {
				fields = append(fields, zap.String("stage", string(stage)))
			}
			st.logger.Error("Ingest failed", fields...)
			return fmt.Errorf("ingest %s: %w", path, err)
		}

		if asJSON {
			if err := enc.Encode(ingestOutput{
				Filename:    res.Filename,
				Format:      string(res.Format),
				Chunks:      res.Chunks,
				ChunksAdded: res.ChunksAdded,
			}); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			continue
		}
		fmt.Fprintf(out, "%s: %s, %d chunks, %d added\n", res.Filename, res.Format, res.Chunks, res.ChunksAdded)
	}
	return nil
}
