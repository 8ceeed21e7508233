package records

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"secsync/internal/logger"
	"secsync/internal/metrics"
	"secsync/pkg/models"
)

// MalformedRecordError describes a record that could not be built.
// It is logged and replaced by a placeholder; it never reaches callers.
type MalformedRecordError struct {
	Kind   models.Kind
	Index  int
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed %s record at index %d: %s", e.Kind, e.Index, e.Reason)
}

// Normalizer converts untrusted payloads into model collections.
type Normalizer struct {
	now func() time.Time
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock sets the time used for missing or unparsable timestamps.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{now: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var defaultNormalizer = New()

// Normalize converts raw with the default normalizer.
func Normalize(kind models.Kind, raw interface{}) models.EntityList {
	return defaultNormalizer.Normalize(kind, raw)
}

// Normalize converts raw into the collection type for kind.
// The result always has one element per input element.
func (n *Normalizer) Normalize(kind models.Kind, raw interface{}) models.EntityList {
	switch kind {
	case models.KindIncidents:
		return n.Incidents(raw)
	case models.KindAssets:
		return n.Assets(raw)
	case models.KindThreats:
		return n.Threats(raw)
	case models.KindVulnerabilities:
		return n.Vulnerabilities(raw)
	default:
		logger.Warnf("Normalize called with unknown kind %q", kind)
		return nil
	}
}

// Incidents normalizes an incident payload.
func (n *Normalizer) Incidents(raw interface{}) models.Incidents {
	now := n.now()
	return buildEach(models.KindIncidents, raw, func(m map[string]interface{}) models.Incident {
		return models.Incident{
			ID:        NormalizeID(m["id"], models.KindIncidents.Prefix()),
			Title:     NormalizeString(pick(m, "title", "name"), "Unknown Incident"),
			Severity:  NormalizeSeverity(m["severity"]),
			Status:    NormalizeStatus(m["status"]),
			Source:    NormalizeString(m["source"], "Unknown"),
			Timestamp: NormalizeDate(pick(m, "timestamp", "date"), now),
			Details:   NormalizeString(pick(m, "details", "description"), ""),
		}
	}, func() models.Incident {
		return models.Incident{
			ID:        placeholderID(models.KindIncidents),
			Title:     "Error Processing Incident",
			Severity:  models.SeverityMedium,
			Status:    models.StatusOpen,
			Source:    "System",
			Timestamp: now,
			Details:   "An error occurred while processing this incident data.",
		}
	})
}

// Assets normalizes an asset payload.
func (n *Normalizer) Assets(raw interface{}) models.Assets {
	now := n.now()
	return buildEach(models.KindAssets, raw, func(m map[string]interface{}) models.Asset {
		asset := models.Asset{
			ID:              NormalizeID(m["id"], models.KindAssets.Prefix()),
			Name:            NormalizeString(pick(m, "name", "hostname"), "Unknown Asset"),
			Type:            NormalizeString(m["type"], "unknown"),
			Status:          NormalizeAssetStatus(m["status"]),
			Vulnerabilities: vulnerabilityCount(m["vulnerabilities"]),
		}
		if scan := pick(m, "lastScan", "last_scan"); scan != nil {
			ts := NormalizeDate(scan, now)
			asset.LastScan = &ts
		}
		return asset
	}, func() models.Asset {
		return models.Asset{
			ID:     placeholderID(models.KindAssets),
			Name:   "Error Processing Asset",
			Type:   "unknown",
			Status: models.AssetAtRisk,
		}
	})
}

// Threats normalizes a threat payload.
func (n *Normalizer) Threats(raw interface{}) models.Threats {
	now := n.now()
	return buildEach(models.KindThreats, raw, func(m map[string]interface{}) models.Threat {
		return models.Threat{
			ID:        NormalizeID(m["id"], models.KindThreats.Prefix()),
			Title:     NormalizeString(pick(m, "title", "name"), "Unknown Threat"),
			Type:      NormalizeString(m["type"], "unknown"),
			Severity:  NormalizeSeverity(m["severity"]),
			Source:    NormalizeString(m["source"], "Unknown"),
			Timestamp: NormalizeDate(pick(m, "timestamp", "date"), now),
			IOCs:      NormalizeStringArray(pick(m, "iocs", "indicators")),
		}
	}, func() models.Threat {
		return models.Threat{
			ID:        placeholderID(models.KindThreats),
			Title:     "Error Processing Threat",
			Type:      "unknown",
			Severity:  models.SeverityMedium,
			Source:    "System",
			Timestamp: now,
			IOCs:      []string{},
		}
	})
}

// Vulnerabilities normalizes a vulnerability payload.
func (n *Normalizer) Vulnerabilities(raw interface{}) models.Vulnerabilities {
	now := n.now()
	return buildEach(models.KindVulnerabilities, raw, func(m map[string]interface{}) models.Vulnerability {
		return models.Vulnerability{
			ID:             NormalizeID(m["id"], models.KindVulnerabilities.Prefix()),
			Title:          NormalizeString(pick(m, "title", "name"), "Unknown Vulnerability"),
			CVE:            NormalizeString(pick(m, "cve", "cveId"), ""),
			CVSS:           NormalizeNumber(pick(m, "cvss", "cvssScore"), 0),
			Severity:       NormalizeSeverity(m["severity"]),
			AffectedAssets: NormalizeStringArray(pick(m, "affectedAssets", "affected_assets")),
			Status:         NormalizeStatus(m["status"]),
			DiscoveryDate:  NormalizeDate(pick(m, "discoveryDate", "date"), now),
		}
	}, func() models.Vulnerability {
		return models.Vulnerability{
			ID:             placeholderID(models.KindVulnerabilities),
			Title:          "Error Processing Vulnerability",
			Severity:       models.SeverityMedium,
			AffectedAssets: []string{},
			Status:         models.StatusOpen,
			DiscoveryDate:  now,
		}
	})
}

func buildEach[T any](kind models.Kind, raw interface{}, build func(map[string]interface{}) T, placeholder func() T) []T {
	items, ok := raw.([]interface{})
	if !ok {
		if raw == nil {
			logger.Warnf("No %s data received, using empty list", kind)
		} else {
			logger.Warnf("Expected a list of %s, got %T; using empty list", kind, raw)
		}
		return []T{}
	}

	out := make([]T, 0, len(items))
	for i, item := range items {
		rec, err := safeBuild(kind, i, item, build)
		if err != nil {
			logger.Warnf("%v; substituting placeholder", err)
			metrics.PlaceholderRecords.WithLabelValues(string(kind)).Inc()
			out = append(out, placeholder())
			continue
		}
		out = append(out, rec)
	}
	return out
}

func safeBuild[T any](kind models.Kind, index int, item interface{}, build func(map[string]interface{}) T) (rec T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &MalformedRecordError{Kind: kind, Index: index, Reason: fmt.Sprint(r)}
		}
	}()
	m, ok := item.(map[string]interface{})
	if !ok {
		return rec, &MalformedRecordError{Kind: kind, Index: index, Reason: fmt.Sprintf("expected object, got %T", item)}
	}
	return build(m), nil
}

// pick returns the first present, non-blank value among keys.
func pick(m map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v
	}
	return nil
}

func vulnerabilityCount(raw interface{}) int {
	if list, ok := raw.([]interface{}); ok {
		return len(list)
	}
	n := NormalizeNumber(raw, 0)
	if n < 0 {
		return 0
	}
	return int(n)
}

func placeholderID(kind models.Kind) string {
	return kind.Prefix() + "-ERROR-" + uuid.NewString()
}
