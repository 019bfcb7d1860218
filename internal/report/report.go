// Package report formats the paper statistics, the quality-control tables and
// the photo completeness totals for the console.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/globe-observer-qa/internal/domain"
)

// Report is everything printed at the end of a run.
type Report struct {
	Window      domain.Window
	GeneratedAt time.Time
	Stats       domain.Stats
	CrossTab    domain.CrossTab
	Photos      domain.PhotoStats
	// FlaggedObservations counts observations with at least one flag.
	FlaggedObservations int
}

// Build assembles a report from a QC result.
func Build(w domain.Window, ds domain.Dataset, flagged []domain.Flagged) Report {
	return Report{
		Window:              w,
		GeneratedAt:         domain.Now(),
		Stats:               domain.ComputeStats(ds, domain.DefaultChallenges),
		CrossTab:            domain.CrossTabulate(flagged),
		Photos:              domain.PhotoCompleteness(ds.AppCloudLand),
		FlaggedObservations: domain.CountFlaggedObservations(flagged),
	}
}

// errWriter keeps the first write error so sections can print unchecked.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func (e *errWriter) line(label string, value any) {
	e.printf("%-60s: %v\n", label, value)
}

var photoLabels = map[domain.Protocol]string{
	domain.SkyConditions:         "---+ Number of GO cloud photos",
	domain.MosquitoHabitatMapper: "---+ Number of GO MHM photos",
	domain.LandCovers:            "---+ Number of GO land cover photos",
	domain.TreeHeights:           "---+ Number of GO tree photos",
}

var classifiedLabels = []struct {
	Protocol domain.Protocol
	Label    string
}{
	{domain.SkyConditions, "---+ Number of GO cloud obs with cloud type classified"},
	{domain.MosquitoHabitatMapper, "---+ Number of GO MHM obs with genus classified"},
	{domain.LandCovers, "---+ Number of GO LC obs with LC type classified"},
}

func perProtocol(counts map[domain.Protocol]int) string {
	parts := make([]string, 0, len(domain.AllProtocols))
	for _, p := range domain.AllProtocols {
		parts = append(parts, fmt.Sprintf("%s %d", p.Label(), counts[p]))
	}
	return strings.Join(parts, ", ")
}

func ratio(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// Write prints the full text report.
func Write(w io.Writer, r Report) error {
	ew := &errWriter{w: w}
	ew.printf("GLOBE Observer report, %s (generated %s)\n\n", r.Window, r.GeneratedAt.Format(time.RFC3339))
	writeStats(ew, r.Stats)
	ew.printf("\n")
	if ew.err != nil {
		return ew.err
	}
	if err := WriteQuality(w, r.CrossTab, r.FlaggedObservations); err != nil {
		return err
	}
	ew.printf("\n")
	writePhotos(ew, r.Photos)
	return ew.err
}

// WriteStats prints the statistics block.
func WriteStats(w io.Writer, s domain.Stats) error {
	ew := &errWriter{w: w}
	writeStats(ew, s)
	return ew.err
}

func writeStats(ew *errWriter, s domain.Stats) {
	ew.line("---+ Number of GLOBE Observer obs per protocol", perProtocol(s.AppPerProtocol))
	ew.line("---+ Number of GLOBE obs per protocol", perProtocol(s.GLOBEPerProtocol))
	ew.line("---+ Number of GLOBE Observer observations", s.AppCount)
	ew.line("---+ Number of GLOBE observations", s.GLOBECount)
	ew.line("---+ Ratio of (GLOBE+GO)/GLOBE observations", ratio(s.RatioAllToGLOBE))
	ew.line("---+ Number of GLOBE Observer photos", s.AppPhotos)
	ew.line("---+ Number of GLOBE photos", s.GLOBEPhotos)
	for _, p := range domain.AllProtocols {
		ew.line(photoLabels[p], s.AppPhotosPerProtocol[p])
	}
	for _, c := range classifiedLabels {
		ew.line(c.Label, s.AppClassified[c.Protocol])
	}
	ew.line("---+ Number of unique users who have contributed GO data", s.UniqueUsers)
	for _, c := range s.Challenges {
		ew.line("---+ Number of new users attracted by "+c.Challenge.Name, c.Attracted())
	}
}

// WriteQuality prints the flag × protocol table followed by the flagged
// percentages. Percentages are relative to ct.Total.
func WriteQuality(w io.Writer, ct domain.CrossTab, flaggedObservations int) error {
	ew := &errWriter{w: w}
	ew.printf("Quality flag counts by GLOBE Observer protocol:\n")
	if len(ct.Flags) == 0 {
		ew.printf("  (no flags raised)\n")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		header := []string{"FLAG", "DESCRIPTION"}
		for _, p := range ct.Protocols {
			header = append(header, p.Label())
		}
		header = append(header, "TOTAL", "%")
		ew.w = tw
		ew.printf("%s\n", strings.Join(header, "\t"))
		for _, code := range ct.Flags {
			cells := []string{code, domain.FlagDescription(code)}
			for _, p := range ct.Protocols {
				cells = append(cells, fmt.Sprint(ct.Count(code, p)))
			}
			cells = append(cells, fmt.Sprint(ct.FlagTotal(code)), fmt.Sprintf("%.2f", ct.FlagPercent(code)))
			ew.printf("%s\n", strings.Join(cells, "\t"))
		}
		if ew.err == nil {
			ew.err = tw.Flush()
		}
		ew.w = w
	}
	ew.printf("\n")
	ew.line("----+ Number of GO flag incidences", ct.Incidences())
	ew.line("----+ Number of GO obs flagged", flaggedObservations)
	ew.line("----+ Percent of GO observations flagged", fmt.Sprintf("%.2f", percent(flaggedObservations, ct.Total)))
	ew.line("----+ Percent of GO observations with LW flag", fmt.Sprintf("%.2f", ct.FlagPercent(domain.FlagWater)))
	return ew.err
}

func writePhotos(ew *errWriter, ps domain.PhotoStats) {
	total := ps.Observations()
	ew.printf("Photos submitted with GO cloud and land cover observations (%d observations):\n", total)
	for n, c := range ps.ByCount {
		name := fmt.Sprintf("%d photos", n)
		if n == 1 {
			name = "1 photo"
		}
		ew.printf("  %-9s %6d  (%.2f%%)\n", name, c, percent(c, total))
	}
	omitted := ps.OmittedTotal()
	ew.printf("Direction omitted when 5 photos are submitted (%d observations):\n", omitted)
	for _, dir := range domain.StandardDirections {
		c := ps.Omitted[dir]
		ew.printf("  %-9s %6d  (%.2f%%)\n", dir, c, percent(c, omitted))
	}
}

type jsonChallenge struct {
	Name      string `json:"name"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Before    int    `json:"users_before"`
	Through   int    `json:"users_through"`
	Attracted int    `json:"users_attracted"`
}

type jsonDailyUsers struct {
	Day   string `json:"day"`
	Total int    `json:"total"`
	New   int    `json:"new"`
}

type jsonReport struct {
	Start                string                             `json:"start"`
	End                  string                             `json:"end"`
	Protocols            []domain.Protocol                  `json:"protocols"`
	GeneratedAt          time.Time                          `json:"generated_at"`
	AppCount             int                                `json:"app_count"`
	GLOBECount           int                                `json:"globe_count"`
	AppPerProtocol       map[domain.Protocol]int            `json:"app_per_protocol"`
	GLOBEPerProtocol     map[domain.Protocol]int            `json:"globe_per_protocol"`
	RatioAllToGLOBE      *float64                           `json:"ratio_all_to_globe"`
	AppPhotos            int                                `json:"app_photos"`
	GLOBEPhotos          int                                `json:"globe_photos"`
	AppPhotosPerProtocol map[domain.Protocol]int            `json:"app_photos_per_protocol"`
	AppClassified        map[domain.Protocol]int            `json:"app_classified"`
	UniqueUsers          int                                `json:"unique_users"`
	UsersByDay           []jsonDailyUsers                   `json:"users_by_day"`
	Challenges           []jsonChallenge                    `json:"challenges"`
	Flags                map[string]map[domain.Protocol]int `json:"flags"`
	FlagIncidences       int                                `json:"flag_incidences"`
	FlaggedObservations  int                                `json:"flagged_observations"`
	CheckedObservations  int                                `json:"checked_observations"`
	PhotosByCount        [7]int                             `json:"photos_by_count"`
	PhotoOmitted         map[string]int                     `json:"photo_direction_omitted"`
}

// WriteJSON prints the report as one indented JSON document. A ratio that
// cannot be computed is null.
func WriteJSON(w io.Writer, r Report) error {
	s := r.Stats
	out := jsonReport{
		Start:                r.Window.Start.Format(domain.DateLayout),
		End:                  r.Window.End.Format(domain.DateLayout),
		Protocols:            r.Window.Protocols,
		GeneratedAt:          r.GeneratedAt,
		AppCount:             s.AppCount,
		GLOBECount:           s.GLOBECount,
		AppPerProtocol:       s.AppPerProtocol,
		GLOBEPerProtocol:     s.GLOBEPerProtocol,
		AppPhotos:            s.AppPhotos,
		GLOBEPhotos:          s.GLOBEPhotos,
		AppPhotosPerProtocol: s.AppPhotosPerProtocol,
		AppClassified:        s.AppClassified,
		UniqueUsers:          s.UniqueUsers,
		UsersByDay:           []jsonDailyUsers{},
		Challenges:           []jsonChallenge{},
		Flags:                r.CrossTab.Counts,
		FlagIncidences:       r.CrossTab.Incidences(),
		FlaggedObservations:  r.FlaggedObservations,
		CheckedObservations:  r.CrossTab.Total,
		PhotosByCount:        r.Photos.ByCount,
		PhotoOmitted:         r.Photos.Omitted,
	}
	if !math.IsNaN(s.RatioAllToGLOBE) && !math.IsInf(s.RatioAllToGLOBE, 0) {
		v := s.RatioAllToGLOBE
		out.RatioAllToGLOBE = &v
	}
	for _, d := range s.UsersByDay {
		out.UsersByDay = append(out.UsersByDay, jsonDailyUsers{Day: d.Day.Format(domain.DateLayout), Total: d.Total, New: d.New})
	}
	for _, c := range s.Challenges {
		out.Challenges = append(out.Challenges, jsonChallenge{
			Name:      c.Challenge.Name,
			Start:     c.Challenge.Start.Format(domain.DateLayout),
			End:       c.Challenge.End.Format(domain.DateLayout),
			Before:    c.Before,
			Through:   c.Through,
			Attracted: c.Attracted(),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
