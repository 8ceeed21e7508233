package analytics

import (
	"sort"

	"secsync/pkg/models"
)

// TypeCounts is the vulnerability tally for one asset type.
type TypeCounts struct {
	Type string `json:"type"`
	SeverityCounts
	Total int `json:"total"`
}

// TypeSummary names an asset type with its vulnerability count.
type TypeSummary struct {
	Type     string `json:"type"`
	Count    int    `json:"count"`
	Severity string `json:"severity,omitempty"`
}

// TypeRisk is the weighted risk of one asset type.
type TypeRisk struct {
	Type      string `json:"type"`
	RiskScore int    `json:"riskScore"`
	RiskLevel string `json:"riskLevel"`
}

// Correlation relates vulnerabilities to asset types.
type Correlation struct {
	Rows            []TypeCounts `json:"correlationData"`
	MostVulnerable  TypeSummary  `json:"mostVulnerableAssetType"`
	LeastVulnerable TypeSummary  `json:"leastVulnerableAssetType"`
	RiskByType      []TypeRisk   `json:"riskByAssetType"`
}

// Correlate tallies vulnerabilities per asset type. Rows follow the order in
// which types first appear among assets. A vulnerability counts once for each
// distinct type among the assets it affects; unknown asset ids are ignored.
func Correlate(assets models.Assets, vulns models.Vulnerabilities) Correlation {
	rows := []TypeCounts{}
	index := map[string]int{}
	typeOf := map[string]string{}

	for _, a := range assets {
		t := a.Type
		if t == "" {
			t = "unknown"
		}
		if _, seen := typeOf[a.ID]; !seen {
			typeOf[a.ID] = t
		}
		if _, ok := index[t]; !ok {
			index[t] = len(rows)
			rows = append(rows, TypeCounts{Type: t})
		}
	}

	for _, v := range vulns {
		counted := map[string]bool{}
		for _, id := range v.AffectedAssets {
			t, ok := typeOf[id]
			if !ok || counted[t] {
				continue
			}
			counted[t] = true
			row := &rows[index[t]]
			row.Total++
			row.Add(v.Severity)
		}
	}

	return Correlation{
		Rows:            rows,
		MostVulnerable:  mostVulnerable(rows),
		LeastVulnerable: leastVulnerable(rows),
		RiskByType:      riskByType(rows),
	}
}

func mostVulnerable(rows []TypeCounts) TypeSummary {
	if len(rows) == 0 {
		return TypeSummary{Type: "unknown", Severity: string(models.SeverityLow)}
	}
	sorted := append([]TypeCounts(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Critical != b.Critical {
			return a.Critical > b.Critical
		}
		if a.High != b.High {
			return a.High > b.High
		}
		if a.Medium != b.Medium {
			return a.Medium > b.Medium
		}
		return a.Total > b.Total
	})
	top := sorted[0]
	return TypeSummary{Type: top.Type, Count: top.Total, Severity: string(top.Highest())}
}

func leastVulnerable(rows []TypeCounts) TypeSummary {
	if len(rows) == 0 {
		return TypeSummary{Type: "unknown"}
	}
	var best *TypeCounts
	for i := range rows {
		if rows[i].Total == 0 {
			continue
		}
		if best == nil || rows[i].Total < best.Total {
			best = &rows[i]
		}
	}
	if best == nil {
		return TypeSummary{Type: rows[0].Type}
	}
	return TypeSummary{Type: best.Type, Count: best.Total}
}

func riskByType(rows []TypeCounts) []TypeRisk {
	out := make([]TypeRisk, 0, len(rows))
	for _, r := range rows {
		score := RiskScore(r.SeverityCounts)
		out = append(out, TypeRisk{Type: r.Type, RiskScore: score, RiskLevel: RiskLevel(score)})
	}
	return out
}
