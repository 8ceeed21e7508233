package pipeline

import (
	"errors"
	"fmt"

	"secsync/internal/analytics"
	"secsync/pkg/models"
)

// ErrNoSeverity is returned when filtering a collection that carries no severity.
var ErrNoSeverity = errors.New("collection has no severity")

// GetByID looks up a record in the latest published collection.
func (p *SyncPipeline) GetByID(kind models.Kind, id string) (models.Entity, bool) {
	list := p.hub.Collection(kind)
	if list == nil {
		return nil, false
	}
	return list.Find(id)
}

// GetBySeverity filters incidents, threats or vulnerabilities.
func (p *SyncPipeline) GetBySeverity(kind models.Kind, severity models.Severity) (models.EntityList, error) {
	switch kind {
	case models.KindIncidents:
		return p.hub.Incidents.Value().BySeverity(severity), nil
	case models.KindThreats:
		return p.hub.Threats.Value().BySeverity(severity), nil
	case models.KindVulnerabilities:
		return p.hub.Vulnerabilities.Value().BySeverity(severity), nil
	default:
		return nil, fmt.Errorf("%s: %w", kind, ErrNoSeverity)
	}
}

// GetAssetsByStatus returns the assets currently in status.
func (p *SyncPipeline) GetAssetsByStatus(status models.AssetStatus) models.Assets {
	return p.hub.Assets.Value().ByStatus(status)
}

// GetThreatsByType matches threat types case-insensitively.
func (p *SyncPipeline) GetThreatsByType(threatType string) models.Threats {
	return p.hub.Threats.Value().ByType(threatType)
}

// GetVulnerabilitiesForAsset returns the vulnerabilities listing assetID
// among their affected assets.
func (p *SyncPipeline) GetVulnerabilitiesForAsset(assetID string) models.Vulnerabilities {
	return p.hub.Vulnerabilities.Value().Affecting(assetID)
}

// GetAssetsForVulnerability resolves the affected asset ids of a
// vulnerability. Ids with no matching asset are skipped.
func (p *SyncPipeline) GetAssetsForVulnerability(vulnID string) models.Assets {
	e, ok := p.hub.Vulnerabilities.Value().Find(vulnID)
	if !ok {
		return models.Assets{}
	}
	return p.hub.Assets.Value().WithIDs(e.(models.Vulnerability).AffectedAssets)
}

// CalculateSecurityMetrics scores the current vulnerabilities against the
// recorded history.
func (p *SyncPipeline) CalculateSecurityMetrics() map[string]analytics.Metric {
	return analytics.SecurityMetrics(p.hub.Vulnerabilities.Value(), p.history.Points())
}

// AnalyzeAssetVulnerabilityCorrelation groups vulnerabilities by the type
// of asset they affect.
func (p *SyncPipeline) AnalyzeAssetVulnerabilityCorrelation() analytics.Correlation {
	return analytics.Correlate(p.hub.Assets.Value(), p.hub.Vulnerabilities.Value())
}

// AnalyzeVulnerabilityTrends reports trends over the last days days;
// non-positive values select analytics.DefaultTrendDays.
func (p *SyncPipeline) AnalyzeVulnerabilityTrends(days int) analytics.TrendReport {
	if days <= 0 {
		days = analytics.DefaultTrendDays
	}
	return analytics.AnalyzeTrends(p.hub.Vulnerabilities.Value(), days, p.now())
}
