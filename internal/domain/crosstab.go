package domain

import "sort"

// CrossTab counts flag incidences per protocol.
type CrossTab struct {
	Flags          []string   // codes that occur, sorted
	Protocols      []Protocol // AllProtocols order
	Counts         map[string]map[Protocol]int
	ProtocolTotals map[Protocol]int // observations per protocol, flagged or not
	Total          int
}

// CrossTabulate builds the flag × protocol table for a QC result.
func CrossTabulate(flagged []Flagged) CrossTab {
	ct := CrossTab{
		Protocols:      append([]Protocol(nil), AllProtocols...),
		Counts:         make(map[string]map[Protocol]int),
		ProtocolTotals: make(map[Protocol]int, len(AllProtocols)),
		Total:          len(flagged),
	}
	for _, f := range flagged {
		p := f.Observation.Protocol
		ct.ProtocolTotals[p]++
		for _, code := range f.Flags {
			row, ok := ct.Counts[code]
			if !ok {
				row = make(map[Protocol]int, len(AllProtocols))
				ct.Counts[code] = row
			}
			row[p]++
		}
	}
	for code := range ct.Counts {
		ct.Flags = append(ct.Flags, code)
	}
	sort.Strings(ct.Flags)
	return ct
}

// Count returns the incidences of code among observations of protocol p.
func (ct CrossTab) Count(code string, p Protocol) int {
	return ct.Counts[code][p]
}

// Row returns the counts of protocol p in Flags order.
func (ct CrossTab) Row(p Protocol) []int {
	row := make([]int, len(ct.Flags))
	for i, code := range ct.Flags {
		row[i] = ct.Count(code, p)
	}
	return row
}

// PercentOfProtocol returns, in Flags order, the share of protocol p's
// observations carrying each flag. All zero when p has no observations.
func (ct CrossTab) PercentOfProtocol(p Protocol) []float64 {
	out := make([]float64, len(ct.Flags))
	total := ct.ProtocolTotals[p]
	if total == 0 {
		return out
	}
	for i, code := range ct.Flags {
		out[i] = float64(ct.Count(code, p)) / float64(total) * 100
	}
	return out
}

// PercentOfTotal returns, in Flags order, the share of all observations
// carrying each flag.
func (ct CrossTab) PercentOfTotal() []float64 {
	out := make([]float64, len(ct.Flags))
	if ct.Total == 0 {
		return out
	}
	for i, code := range ct.Flags {
		out[i] = float64(ct.FlagTotal(code)) / float64(ct.Total) * 100
	}
	return out
}

// FlagTotal sums the incidences of code over all protocols.
func (ct CrossTab) FlagTotal(code string) int {
	n := 0
	for _, c := range ct.Counts[code] {
		n += c
	}
	return n
}

// Incidences returns the total number of flags raised. An observation with
// two flags counts twice.
func (ct CrossTab) Incidences() int {
	n := 0
	for code := range ct.Counts {
		n += ct.FlagTotal(code)
	}
	return n
}

// FlagPercent returns the share of all observations carrying code.
func (ct CrossTab) FlagPercent(code string) float64 {
	if ct.Total == 0 {
		return 0
	}
	return float64(ct.FlagTotal(code)) / float64(ct.Total) * 100
}
