package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/couchcryptid/globe-observer-qa/internal/adapter/file"
	"github.com/couchcryptid/globe-observer-qa/internal/domain"
	"github.com/couchcryptid/globe-observer-qa/internal/pipeline"
	"github.com/spf13/cobra"
)

func newFetchCommand(a *app) *cobra.Command {
	var save string
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download a window and report how many observations it holds",
		Long: "Download the window's observations and print the count per protocol.\n" +
			"With CACHE_DB_PATH set the parsed observations are cached for later runs.\n" +
			"With --save the raw payload is written to a file that --input can replay.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			w := a.cfg.Window()
			source, cache, done, err := a.buildSource(ctx)
			defer done.run()
			if err != nil {
				return err
			}

			var (
				obs  []domain.Observation
				from string
			)
			if save != "" {
				data, err := source.Fetch(ctx, w)
				if err != nil {
					return fmt.Errorf("fetch from %s: %w", source.Name(), err)
				}
				if err := file.Save(a.fs, save, data); err != nil {
					return err
				}
				a.logger.Info("payload saved", "path", save, "bytes", len(data))
				if obs, _, err = domain.ParseFeatureCollection(data); err != nil {
					return err
				}
				from = source.Name()
			} else {
				p := pipeline.New(source, nil, pipeline.Options{Cache: cache}, a.logger, a.metrics)
				if obs, from, err = p.Load(ctx, w); err != nil {
					return err
				}
			}
			return writeCounts(a, w, from, domain.BuildDataset(obs))
		},
	}
	cmd.Flags().StringVar(&save, "save", "", "write the raw payload to this file")
	return cmd
}

func writeCounts(a *app, w domain.Window, from string, ds domain.Dataset) error {
	fmt.Fprintf(a.out, "%d observations for %s (from %s)\n", len(ds.All), w, from)
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROTOCOL\tAPP\tGLOBE")
	for _, p := range domain.AllProtocols {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", p.Label(), len(ds.AppByProtocol[p]), len(ds.GLOBEByProtocol[p]))
	}
	return tw.Flush()
}
