package analytics

import (
	"fmt"
	"sort"
	"time"

	"secsync/pkg/models"
)

// Trend window bounds, in days.
const (
	DefaultTrendDays = 30
	MaxTrendDays     = 365
)

// ValidateTrendDays rejects windows longer than MaxTrendDays. Non-positive
// values are accepted and select DefaultTrendDays.
func ValidateTrendDays(days int) error {
	if days > MaxTrendDays {
		return fmt.Errorf("days must be at most %d, got %d", MaxTrendDays, days)
	}
	return nil
}

// Trend directions.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// TrendPoint is one period of the vulnerability series. Period is the
// sortable key; exactly one of Date, Week or Month carries it on the wire.
type TrendPoint struct {
	Period string `json:"-"`
	Date   string `json:"date,omitempty"`
	Week   string `json:"week,omitempty"`
	Month  string `json:"month,omitempty"`
	Count  int    `json:"count"`
	SeverityCounts
}

// TrendReport is the result of AnalyzeTrends.
type TrendReport struct {
	Daily            []TrendPoint `json:"dailyTrends"`
	Weekly           []TrendPoint `json:"weeklyTrends"`
	Monthly          []TrendPoint `json:"monthlyTrends"`
	OverallTrend     string       `json:"overallTrend"`
	PercentageChange float64      `json:"percentageChange"`
}

// AnalyzeTrends builds the daily series of vulnerabilities known on each of
// the last days days (ending on now's date) and aggregates it by week and month.
func AnalyzeTrends(vulns models.Vulnerabilities, days int, now time.Time) TrendReport {
	daily := DailySeries(vulns, days, now)
	weekly := AggregateWeekly(daily)
	monthly := AggregateMonthly(daily)

	var first, last int
	if len(weekly) > 0 {
		first = weekly[0].Count
		last = weekly[len(weekly)-1].Count
	}
	pct, direction := ClassifyTrend(first, last)

	return TrendReport{
		Daily:            daily,
		Weekly:           weekly,
		Monthly:          monthly,
		OverallTrend:     direction,
		PercentageChange: pct,
	}
}

// DailySeries returns one point per UTC day, oldest first. Each point counts
// the vulnerabilities discovered on or before that day. The window is capped
// at MaxTrendDays.
func DailySeries(vulns models.Vulnerabilities, days int, now time.Time) []TrendPoint {
	if days <= 0 {
		days = DefaultTrendDays
	}
	if days > MaxTrendDays {
		days = MaxTrendDays
	}
	u := now.UTC()
	today := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)

	out := make([]TrendPoint, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		end := day.AddDate(0, 0, 1)
		key := day.Format("2006-01-02")
		p := TrendPoint{Period: key, Date: key}
		for _, v := range vulns {
			if v.DiscoveryDate.Before(end) {
				p.Count++
				p.Add(v.Severity)
			}
		}
		out = append(out, p)
	}
	return out
}

// AggregateWeekly groups daily points by the Sunday starting their week and
// averages each field, rounding half up.
func AggregateWeekly(daily []TrendPoint) []TrendPoint {
	return aggregate(daily, func(day time.Time) string {
		return day.AddDate(0, 0, -int(day.Weekday())).Format("2006-01-02")
	}, func(p *TrendPoint) { p.Week = p.Period })
}

// AggregateMonthly groups daily points by calendar month (YYYY-MM).
func AggregateMonthly(daily []TrendPoint) []TrendPoint {
	return aggregate(daily, func(day time.Time) string {
		return day.Format("2006-01")
	}, func(p *TrendPoint) { p.Month = p.Period })
}

// ClassifyTrend compares the first and last period counts. A change beyond
// ±5% is a trend; a zero first period is reported as 0% stable.
func ClassifyTrend(first, last int) (float64, string) {
	if first == 0 {
		return 0, TrendStable
	}
	pct := float64(last-first) / float64(first) * 100
	switch {
	case pct > 5:
		return pct, TrendIncreasing
	case pct < -5:
		return pct, TrendDecreasing
	default:
		return pct, TrendStable
	}
}

type bucket struct {
	count, critical, high, medium, low int
	days                               int
}

func aggregate(daily []TrendPoint, keyOf func(time.Time) string, label func(*TrendPoint)) []TrendPoint {
	buckets := map[string]*bucket{}
	for _, p := range daily {
		day, err := time.Parse("2006-01-02", p.Period)
		if err != nil {
			continue
		}
		key := keyOf(day)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		b.count += p.Count
		b.critical += p.Critical
		b.high += p.High
		b.medium += p.Medium
		b.low += p.Low
		b.days++
	}

	out := make([]TrendPoint, 0, len(buckets))
	for key, b := range buckets {
		avg := func(sum int) int { return int(round(float64(sum) / float64(b.days))) }
		p := TrendPoint{
			Period: key,
			Count:  avg(b.count),
			SeverityCounts: SeverityCounts{
				Critical: avg(b.critical),
				High:     avg(b.high),
				Medium:   avg(b.medium),
				Low:      avg(b.low),
			},
		}
		label(&p)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}
