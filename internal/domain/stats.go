package domain

import (
	"math"
	"sort"
	"time"
)

// Challenge is a GLOBE Clouds campaign window. Both dates are inclusive UTC days.
type Challenge struct {
	Name  string
	Start time.Time
	End   time.Time
}

// DefaultChallenges are the campaigns reported in the paper statistics.
var DefaultChallenges = []Challenge{
	{Name: "2018 Spring Clouds Challenge", Start: date(2018, 3, 15), End: date(2018, 4, 15)},
	{Name: "2019 Fall Clouds Challenge", Start: date(2019, 10, 15), End: date(2019, 11, 15)},
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return date(t.Year(), t.Month(), t.Day())
}

// DailyUsers is the user growth on one day with observations.
type DailyUsers struct {
	Day   time.Time
	Total int // unique users through the end of Day
	New   int // users whose first observation falls on Day
}

// ChallengeUptake compares the user base before and after a challenge.
type ChallengeUptake struct {
	Challenge Challenge
	Before    int // unique users with an observation before Start
	Through   int // unique users with an observation on or before End
}

// Attracted returns the number of users gained during the challenge.
func (c ChallengeUptake) Attracted() int { return c.Through - c.Before }

// Stats are the headline numbers printed for the paper.
type Stats struct {
	AllCount   int
	AppCount   int
	GLOBECount int

	AppPerProtocol   map[Protocol]int
	GLOBEPerProtocol map[Protocol]int

	// RatioAllToGLOBE is NaN when there are no GLOBE observations.
	RatioAllToGLOBE float64

	AppPhotos            int
	GLOBEPhotos          int
	AppPhotosPerProtocol map[Protocol]int
	AppClassified        map[Protocol]int

	UniqueUsers int
	UsersByDay  []DailyUsers
	Challenges  []ChallengeUptake
}

// ComputeStats derives the paper statistics from a dataset. User statistics
// cover app observations only; observations without a user id are ignored there.
func ComputeStats(ds Dataset, challenges []Challenge) Stats {
	s := Stats{
		AllCount:             len(ds.All),
		AppCount:             len(ds.App),
		GLOBECount:           len(ds.GLOBE),
		AppPerProtocol:       make(map[Protocol]int, len(AllProtocols)),
		GLOBEPerProtocol:     make(map[Protocol]int, len(AllProtocols)),
		AppPhotosPerProtocol: make(map[Protocol]int, len(AllProtocols)),
		AppClassified:        make(map[Protocol]int, len(AllProtocols)),
		RatioAllToGLOBE:      math.NaN(),
	}
	if s.GLOBECount > 0 {
		s.RatioAllToGLOBE = float64(s.AllCount) / float64(s.GLOBECount)
	}

	for _, p := range AllProtocols {
		s.AppPerProtocol[p] = len(ds.AppByProtocol[p])
		s.GLOBEPerProtocol[p] = len(ds.GLOBEByProtocol[p])
		for _, o := range ds.AppByProtocol[p] {
			s.AppPhotosPerProtocol[p] += o.PhotoCount()
			if o.IsClassified() {
				s.AppClassified[p]++
			}
		}
	}
	s.AppPhotos = countPhotos(ds.App)
	s.GLOBEPhotos = countPhotos(ds.GLOBE)

	s.UsersByDay = usersByDay(ds.App)
	if n := len(s.UsersByDay); n > 0 {
		s.UniqueUsers = s.UsersByDay[n-1].Total
	}
	for _, c := range challenges {
		s.Challenges = append(s.Challenges, challengeUptake(ds.App, c))
	}
	return s
}

func countPhotos(obs []Observation) int {
	n := 0
	for _, o := range obs {
		n += o.PhotoCount()
	}
	return n
}

// usersByDay returns one entry per UTC day with app observations, sorted.
func usersByDay(obs []Observation) []DailyUsers {
	firstSeen := make(map[int64]time.Time)
	days := make(map[time.Time]struct{})
	for _, o := range obs {
		if !o.HasUserID {
			continue
		}
		d := Day(o.MeasuredAt)
		days[d] = struct{}{}
		if first, ok := firstSeen[o.UserID]; !ok || d.Before(first) {
			firstSeen[o.UserID] = d
		}
	}

	newByDay := make(map[time.Time]int, len(days))
	for _, d := range firstSeen {
		newByDay[d]++
	}

	sorted := make([]time.Time, 0, len(days))
	for d := range days {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	out := make([]DailyUsers, 0, len(sorted))
	total := 0
	for _, d := range sorted {
		total += newByDay[d]
		out = append(out, DailyUsers{Day: d, Total: total, New: newByDay[d]})
	}
	return out
}

func challengeUptake(obs []Observation, c Challenge) ChallengeUptake {
	start := Day(c.Start)
	endExclusive := Day(c.End).AddDate(0, 0, 1)
	before := make(map[int64]struct{})
	through := make(map[int64]struct{})
	for _, o := range obs {
		if !o.HasUserID {
			continue
		}
		if o.MeasuredAt.Before(start) {
			before[o.UserID] = struct{}{}
		}
		if o.MeasuredAt.Before(endExclusive) {
			through[o.UserID] = struct{}{}
		}
	}
	return ChallengeUptake{Challenge: c, Before: len(before), Through: len(through)}
}
