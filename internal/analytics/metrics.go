package analytics

import (
	"sync"

	"secsync/pkg/models"
)

// DefaultHistorySize is how many snapshots a History keeps.
const DefaultHistorySize = 10

// Metric is a dashboard figure with its recent history.
type Metric struct {
	Value   int   `json:"value"`
	Trend   int   `json:"trend"`
	History []int `json:"history"`
}

// History is a bounded ring of severity snapshots, oldest first.
type History struct {
	mu     sync.Mutex
	size   int
	points []SeverityCounts
}

// NewHistory creates a History. A non-positive size selects DefaultHistorySize.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{size: size}
}

// Record appends a snapshot, dropping the oldest when full.
func (h *History) Record(c SeverityCounts) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.points = append(h.points, c)
	if len(h.points) > h.size {
		h.points = append([]SeverityCounts(nil), h.points[len(h.points)-h.size:]...)
	}
}

// Points returns a copy of the snapshots.
func (h *History) Points() []SeverityCounts {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]SeverityCounts(nil), h.points...)
}

// SecurityMetrics summarizes vulnerabilities per severity, in total and as a
// risk score. history holds earlier snapshots; the current counts are appended
// unless they already end the history.
func SecurityMetrics(vulns models.Vulnerabilities, history []SeverityCounts) map[string]Metric {
	current := CountVulnerabilities(vulns)
	series := append([]SeverityCounts(nil), history...)
	if len(series) == 0 || series[len(series)-1] != current {
		series = append(series, current)
	}

	pluck := func(f func(SeverityCounts) int) []int {
		out := make([]int, len(series))
		for i, s := range series {
			out[i] = f(s)
		}
		return out
	}
	metric := func(value int, f func(SeverityCounts) int) Metric {
		hist := pluck(f)
		return Metric{Value: value, Trend: percentTrend(hist), History: hist}
	}

	return map[string]Metric{
		"critical":  metric(current.Critical, func(s SeverityCounts) int { return s.Critical }),
		"high":      metric(current.High, func(s SeverityCounts) int { return s.High }),
		"medium":    metric(current.Medium, func(s SeverityCounts) int { return s.Medium }),
		"low":       metric(current.Low, func(s SeverityCounts) int { return s.Low }),
		"total":     metric(len(vulns), SeverityCounts.Total),
		"riskScore": metric(RiskScore(current), RiskScore),
	}
}

// percentTrend is the rounded percent change between the last two values,
// or 0 when there is no previous value or it is zero.
func percentTrend(history []int) int {
	if len(history) < 2 {
		return 0
	}
	cur, prev := history[len(history)-1], history[len(history)-2]
	if prev == 0 {
		return 0
	}
	return int(round(float64(cur-prev) / float64(prev) * 100))
}
