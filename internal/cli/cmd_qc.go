package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/couchcryptid/globe-observer-qa/internal/domain"
	"github.com/couchcryptid/globe-observer-qa/internal/report"
	"github.com/spf13/cobra"
)

type qcOptions struct {
	list   bool
	allOf  []string
	anyOf  []string
	noneOf []string
}

func newQCCommand(a *app) *cobra.Command {
	var opts qcOptions
	cmd := &cobra.Command{
		Use:   "qc",
		Short: "Quality-check the app observations and print the flag table",
		Long: "Quality-check the app observations of the window and print the flag by protocol table.\n" +
			"Flagged observations are published to Kafka when KAFKA_BROKERS is set.\n" +
			"With --list, observations matching the --all/--any/--none filters are printed too;\n" +
			"without filters every flagged observation is listed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateFlagCodes(opts); err != nil {
				return err
			}
			p, done, err := a.newPipeline(cmd.Context(), stages{publish: true})
			defer done.run()
			if err != nil {
				return err
			}
			res, err := p.Run(cmd.Context(), a.cfg.Window())
			if err != nil {
				return err
			}
			if err := report.WriteQuality(a.out, res.Report.CrossTab, res.Report.FlaggedObservations); err != nil {
				return err
			}
			if !opts.list {
				return nil
			}
			anyOf := opts.anyOf
			if len(opts.allOf) == 0 && len(anyOf) == 0 && len(opts.noneOf) == 0 {
				anyOf = domain.AllFlags
			}
			return writeFlagged(a, domain.FilterByFlags(res.Flagged, opts.allOf, anyOf, opts.noneOf))
		},
	}
	f := cmd.Flags()
	f.BoolVar(&opts.list, "list", false, "list the matching observations")
	f.StringSliceVar(&opts.allOf, "all", nil, "list observations carrying every one of these flags")
	f.StringSliceVar(&opts.anyOf, "any", nil, "list observations carrying at least one of these flags")
	f.StringSliceVar(&opts.noneOf, "none", nil, "list observations carrying none of these flags")
	return cmd
}

func validateFlagCodes(opts qcOptions) error {
	known := make(map[string]bool, len(domain.AllFlags))
	for _, code := range domain.AllFlags {
		known[code] = true
	}
	for _, set := range [][]string{opts.allOf, opts.anyOf, opts.noneOf} {
		for _, code := range set {
			if !known[code] {
				return fmt.Errorf("unknown flag code %q (want one of %s)", code, strings.Join(domain.AllFlags, ", "))
			}
		}
	}
	return nil
}

func writeFlagged(a *app, flagged []domain.Flagged) error {
	fmt.Fprintln(a.out)
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPROTOCOL\tMEASURED AT\tLAT\tLON\tFLAGS")
	for _, f := range flagged {
		o := f.Observation
		lat, lon := "-", "-"
		if o.HasPosition {
			lat, lon = fmt.Sprintf("%.4f", o.Geo.Lat), fmt.Sprintf("%.4f", o.Geo.Lon)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			o.ID, o.Protocol.Label(), o.MeasuredAt.Format("2006-01-02T15:04:05Z"), lat, lon, strings.Join(f.Flags, ","))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(a.out, "%d observations listed\n", len(flagged))
	return err
}
