package cli

import (
	"github.com/spf13/cobra"
)

func newRunCommand(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch a window, check quality, draw the figures and print the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := parseFormat(format)
			if err != nil {
				return err
			}
			p, done, err := a.newPipeline(cmd.Context(), stages{
				render:  true,
				publish: true,
				report:  a.out,
				format:  f,
			})
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
