package analytics

import (
	"math"

	"secsync/pkg/models"
)

// Severity weights used by RiskScore.
const (
	weightCritical = 10
	weightHigh     = 5
	weightMedium   = 2
	weightLow      = 1
)

// SeverityCounts tallies records per severity.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Total returns the sum of all severities.
func (c SeverityCounts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low
}

// Add increments the counter for s.
func (c *SeverityCounts) Add(s models.Severity) {
	switch s {
	case models.SeverityCritical:
		c.Critical++
	case models.SeverityHigh:
		c.High++
	case models.SeverityMedium:
		c.Medium++
	case models.SeverityLow:
		c.Low++
	}
}

// Highest returns the most severe non-zero level, or low.
func (c SeverityCounts) Highest() models.Severity {
	switch {
	case c.Critical > 0:
		return models.SeverityCritical
	case c.High > 0:
		return models.SeverityHigh
	case c.Medium > 0:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// CountVulnerabilities tallies vulnerabilities by severity.
func CountVulnerabilities(vulns models.Vulnerabilities) SeverityCounts {
	var c SeverityCounts
	for _, v := range vulns {
		c.Add(v.Severity)
	}
	return c
}

// RiskScore weights severity counts as critical*10 + high*5 + medium*2 + low.
func RiskScore(c SeverityCounts) int {
	return c.Critical*weightCritical + c.High*weightHigh + c.Medium*weightMedium + c.Low*weightLow
}

// RiskLevel buckets a risk score.
func RiskLevel(score int) string {
	switch {
	case score > 50:
		return "critical"
	case score > 20:
		return "high"
	case score > 10:
		return "medium"
	default:
		return "low"
	}
}

// round rounds half up, matching how the dashboard rounds averages.
func round(x float64) float64 {
	return math.Floor(x + 0.5)
}
