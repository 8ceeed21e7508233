package analytics

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secsync/pkg/models"
)

func TestRiskScore(t *testing.T) {
	assert.Equal(t, 0, RiskScore(SeverityCounts{}))
	assert.Equal(t, 10+10+5+2+1, RiskScore(SeverityCounts{Critical: 2, High: 1, Medium: 1, Low: 1}))
	assert.Equal(t, "low", RiskLevel(10))
	assert.Equal(t, "medium", RiskLevel(11))
	assert.Equal(t, "high", RiskLevel(21))
	assert.Equal(t, "critical", RiskLevel(51))
}

func TestCorrelateSingleAsset(t *testing.T) {
	assets := models.Assets{{ID: "a1", Type: "server"}}
	vulns := models.Vulnerabilities{{ID: "v1", Severity: models.SeverityCritical, AffectedAssets: []string{"a1"}}}

	got := Correlate(assets, vulns)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, TypeCounts{Type: "server", Total: 1, SeverityCounts: SeverityCounts{Critical: 1}}, got.Rows[0])
	assert.Equal(t, TypeSummary{Type: "server", Count: 1, Severity: "critical"}, got.MostVulnerable)
	assert.Equal(t, TypeSummary{Type: "server", Count: 1}, got.LeastVulnerable)
	assert.Equal(t, []TypeRisk{{Type: "server", RiskScore: 10, RiskLevel: "low"}}, got.RiskByType)
}

func TestCorrelateCountsOncePerTypeAndIgnoresDanglingIDs(t *testing.T) {
	assets := models.Assets{
		{ID: "s1", Type: "server"},
		{ID: "s2", Type: "server"},
		{ID: "e1", Type: "endpoint"},
		{ID: "c1", Type: ""},
	}
	vulns := models.Vulnerabilities{
		{ID: "v1", Severity: models.SeverityHigh, AffectedAssets: []string{"s1", "s2", "e1"}},
		{ID: "v2", Severity: models.SeverityLow, AffectedAssets: []string{"e1", "ghost"}},
		{ID: "v3", Severity: models.SeverityMedium, AffectedAssets: nil},
	}

	got := Correlate(assets, vulns)
	require.Len(t, got.Rows, 3)
	assert.Equal(t, []string{"server", "endpoint", "unknown"},
		[]string{got.Rows[0].Type, got.Rows[1].Type, got.Rows[2].Type})

	assert.Equal(t, 1, got.Rows[0].Total, "one vulnerability on two servers counts once")
	assert.Equal(t, 1, got.Rows[0].High)
	assert.Equal(t, 2, got.Rows[1].Total)
	assert.Equal(t, 0, got.Rows[2].Total)

	assert.Equal(t, TypeSummary{Type: "endpoint", Count: 2, Severity: "high"}, got.MostVulnerable, "tie on high is broken by total")
	assert.Equal(t, "server", got.LeastVulnerable.Type)
	assert.Equal(t, 1, got.LeastVulnerable.Count)
}

func TestCorrelateMostVulnerableOrdering(t *testing.T) {
	assets := models.Assets{{ID: "a", Type: "app"}, {ID: "n", Type: "network"}}
	vulns := models.Vulnerabilities{
		{Severity: models.SeverityHigh, AffectedAssets: []string{"a"}},
		{Severity: models.SeverityHigh, AffectedAssets: []string{"a"}},
		{Severity: models.SeverityCritical, AffectedAssets: []string{"n"}},
	}
	got := Correlate(assets, vulns)
	assert.Equal(t, TypeSummary{Type: "network", Count: 1, Severity: "critical"}, got.MostVulnerable)
	assert.Equal(t, TypeSummary{Type: "network", Count: 1}, got.LeastVulnerable)
}

func TestCorrelateEmptyInputs(t *testing.T) {
	got := Correlate(nil, nil)
	assert.Empty(t, got.Rows)
	assert.Equal(t, TypeSummary{Type: "unknown", Severity: "low"}, got.MostVulnerable)
	assert.Equal(t, TypeSummary{Type: "unknown"}, got.LeastVulnerable)

	got = Correlate(models.Assets{{ID: "x", Type: "cloud"}, {ID: "y", Type: "iot"}}, nil)
	assert.Equal(t, TypeSummary{Type: "cloud"}, got.LeastVulnerable, "all zero falls back to the first type")
	assert.Equal(t, "low", got.MostVulnerable.Severity)
}

func TestClassifyTrend(t *testing.T) {
	pct, dir := ClassifyTrend(100, 80)
	assert.Equal(t, -20.0, pct)
	assert.Equal(t, TrendDecreasing, dir)

	pct, dir = ClassifyTrend(100, 103)
	assert.Equal(t, 3.0, pct)
	assert.Equal(t, TrendStable, dir)

	pct, dir = ClassifyTrend(100, 106)
	assert.Equal(t, 6.0, pct)
	assert.Equal(t, TrendIncreasing, dir)

	pct, dir = ClassifyTrend(0, 50)
	assert.Equal(t, 0.0, pct)
	assert.Equal(t, TrendStable, dir)
}

func TestAggregateWeeklyUsesPrecedingSunday(t *testing.T) {
	// 2026-03-01 is a Sunday.
	daily := []TrendPoint{
		{Period: "2026-02-28", Count: 4},
		{Period: "2026-03-01", Count: 1},
		{Period: "2026-03-02", Count: 2},
		{Period: "2026-03-03", Count: 2},
	}
	weekly := AggregateWeekly(daily)
	require.Len(t, weekly, 2)
	assert.Equal(t, "2026-02-22", weekly[0].Period)
	assert.Equal(t, 4, weekly[0].Count)
	assert.Equal(t, "2026-03-01", weekly[1].Period)
	assert.Equal(t, 2, weekly[1].Count, "mean 5/3 rounds to 2")

	monthly := AggregateMonthly(daily)
	require.Len(t, monthly, 2)
	assert.Equal(t, "2026-02", monthly[0].Period)
	assert.Equal(t, "2026-03", monthly[1].Period)
}

func TestAnalyzeTrendsCountsKnownVulnerabilities(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	vulns := models.Vulnerabilities{
		{ID: "v1", Severity: models.SeverityCritical, DiscoveryDate: now.AddDate(0, 0, -20)},
		{ID: "v2", Severity: models.SeverityLow, DiscoveryDate: now.AddDate(0, 0, -3)},
		{ID: "v3", Severity: models.SeverityHigh, DiscoveryDate: now.Add(-time.Hour)},
	}

	report := AnalyzeTrends(vulns, 14, now)
	require.Len(t, report.Daily, 14)
	assert.Equal(t, "2026-03-01", report.Daily[0].Period)
	assert.Equal(t, "2026-03-14", report.Daily[13].Period)
	assert.Equal(t, 1, report.Daily[0].Count)
	assert.Equal(t, 3, report.Daily[13].Count)
	assert.Equal(t, 1, report.Daily[13].High)

	require.NotEmpty(t, report.Weekly)
	assert.Equal(t, TrendIncreasing, report.OverallTrend)
	assert.Greater(t, report.PercentageChange, 5.0)
	require.Len(t, report.Monthly, 1)
}

func TestAnalyzeTrendsDefaultsWindow(t *testing.T) {
	report := AnalyzeTrends(nil, 0, time.Now())
	assert.Len(t, report.Daily, DefaultTrendDays)
	assert.Equal(t, TrendStable, report.OverallTrend)
	assert.Equal(t, 0.0, report.PercentageChange)
}

func TestSecurityMetricsWithHistory(t *testing.T) {
	vulns := models.Vulnerabilities{
		{Severity: models.SeverityCritical},
		{Severity: models.SeverityCritical},
		{Severity: models.SeverityHigh},
	}
	history := []SeverityCounts{{Critical: 1, High: 1}, {Critical: 1, High: 2}}

	m := SecurityMetrics(vulns, history)
	assert.Equal(t, Metric{Value: 2, Trend: 100, History: []int{1, 1, 2}}, m["critical"])
	assert.Equal(t, Metric{Value: 1, Trend: -50, History: []int{1, 2, 1}}, m["high"])
	assert.Equal(t, 0, m["medium"].Trend, "zero previous value gives zero trend")
	assert.Equal(t, 3, m["total"].Value)
	assert.Equal(t, 25, m["riskScore"].Value)
	assert.Equal(t, []int{15, 20, 25}, m["riskScore"].History)
	assert.Equal(t, 25, m["riskScore"].Trend)
}

func TestSecurityMetricsDoesNotDuplicateCurrentSnapshot(t *testing.T) {
	vulns := models.Vulnerabilities{{Severity: models.SeverityLow}}
	m := SecurityMetrics(vulns, []SeverityCounts{{Low: 1}})
	assert.Equal(t, []int{1}, m["low"].History)
	assert.Equal(t, 0, m["low"].Trend)
}

func TestHistoryIsBounded(t *testing.T) {
	h := NewHistory(3)
	for i := 1; i <= 5; i++ {
		h.Record(SeverityCounts{Low: i})
	}
	points := h.Points()
	require.Len(t, points, 3)
	assert.Equal(t, 3, points[0].Low)
	assert.Equal(t, 5, points[2].Low)
}

func TestTrendWindowIsBounded(t *testing.T) {
	assert.NoError(t, ValidateTrendDays(0))
	assert.NoError(t, ValidateTrendDays(MaxTrendDays))
	assert.Error(t, ValidateTrendDays(MaxTrendDays+1))

	report := AnalyzeTrends(nil, 1<<40, time.Now())
	assert.Len(t, report.Daily, MaxTrendDays)
}

func TestTrendPointsUsePerSeriesKeys(t *testing.T) {
	now := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	report := AnalyzeTrends(nil, 3, now)

	var daily, weekly, monthly map[string]interface{}
	raw, err := json.Marshal(report.Daily[0])
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &daily))
	raw, err = json.Marshal(report.Weekly[0])
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &weekly))
	raw, err = json.Marshal(report.Monthly[0])
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &monthly))

	assert.Equal(t, "2026-03-12", daily["date"])
	assert.NotContains(t, daily, "period")
	assert.Equal(t, "2026-03-08", weekly["week"])
	assert.NotContains(t, weekly, "date")
	assert.Equal(t, "2026-03", monthly["month"])
	assert.NotContains(t, monthly, "week")
}
