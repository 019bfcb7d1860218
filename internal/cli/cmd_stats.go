package cli

import (
	"github.com/spf13/cobra"
)

func newStatsCommand(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the statistics and quality report without drawing figures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := parseFormat(format)
			if err != nil {
				return err
			}
			p, done, err := a.newPipeline(cmd.Context(), stages{report: a.out, format: f})
			defer done.run()
			if err != nil {
				return err
			}
			_, err = p.Run(cmd.Context(), a.cfg.Window())
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "report format (text or json)")
	return cmd
}
