package models

import (
	"strings"
	"time"
)

// Severity is the normalized severity scale.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Severities lists the scale from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// Status is the workflow status of incidents and vulnerabilities.
type Status string

const (
	StatusOpen          Status = "open"
	StatusInvestigating Status = "investigating"
	StatusInProgress    Status = "in-progress"
	StatusResolved      Status = "resolved"
)

// AssetStatus is the exposure status of an asset.
type AssetStatus string

const (
	AssetSecure     AssetStatus = "secure"
	AssetVulnerable AssetStatus = "vulnerable"
	AssetAtRisk     AssetStatus = "at-risk"
)

// Entity is implemented by every normalized record.
type Entity interface {
	EntityID() string
}

// EntityList is implemented by every normalized collection.
type EntityList interface {
	Kind() Kind
	Len() int
	Find(id string) (Entity, bool)
}

// Incident is a normalized security incident.
type Incident struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Severity  Severity  `json:"severity"`
	Status    Status    `json:"status"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details,omitempty"`
}

// Asset is a normalized monitored asset.
type Asset struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Type            string      `json:"type"`
	Status          AssetStatus `json:"status"`
	LastScan        *time.Time  `json:"lastScan,omitempty"`
	Vulnerabilities int         `json:"vulnerabilities"`
}

// Threat is a normalized threat-intelligence record.
type Threat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	Severity  Severity  `json:"severity"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	IOCs      []string  `json:"iocs"`
}

// Vulnerability is a normalized vulnerability record.
type Vulnerability struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	CVE            string    `json:"cve,omitempty"`
	CVSS           float64   `json:"cvss"`
	Severity       Severity  `json:"severity"`
	AffectedAssets []string  `json:"affectedAssets"`
	Status         Status    `json:"status"`
	DiscoveryDate  time.Time `json:"discoveryDate"`
}

func (i Incident) EntityID() string      { return i.ID }
func (a Asset) EntityID() string         { return a.ID }
func (t Threat) EntityID() string        { return t.ID }
func (v Vulnerability) EntityID() string { return v.ID }

// Incidents is the incident collection.
type Incidents []Incident

// Assets is the asset collection.
type Assets []Asset

// Threats is the threat collection.
type Threats []Threat

// Vulnerabilities is the vulnerability collection.
type Vulnerabilities []Vulnerability

func (Incidents) Kind() Kind       { return KindIncidents }
func (Assets) Kind() Kind          { return KindAssets }
func (Threats) Kind() Kind         { return KindThreats }
func (Vulnerabilities) Kind() Kind { return KindVulnerabilities }

func (l Incidents) Len() int       { return len(l) }
func (l Assets) Len() int          { return len(l) }
func (l Threats) Len() int         { return len(l) }
func (l Vulnerabilities) Len() int { return len(l) }

// Find returns the incident with the given id.
func (l Incidents) Find(id string) (Entity, bool) {
	for _, v := range l {
		if v.ID == id {
			return v, true
		}
	}
	return nil, false
}

// Find returns the asset with the given id.
func (l Assets) Find(id string) (Entity, bool) {
	for _, v := range l {
		if v.ID == id {
			return v, true
		}
	}
	return nil, false
}

// Find returns the threat with the given id.
func (l Threats) Find(id string) (Entity, bool) {
	for _, v := range l {
		if v.ID == id {
			return v, true
		}
	}
	return nil, false
}

// Find returns the vulnerability with the given id.
func (l Vulnerabilities) Find(id string) (Entity, bool) {
	for _, v := range l {
		if v.ID == id {
			return v, true
		}
	}
	return nil, false
}

// BySeverity filters incidents by severity.
func (l Incidents) BySeverity(s Severity) Incidents {
	out := Incidents{}
	for _, v := range l {
		if v.Severity == s {
			out = append(out, v)
		}
	}
	return out
}

// BySeverity filters threats by severity.
func (l Threats) BySeverity(s Severity) Threats {
	out := Threats{}
	for _, v := range l {
		if v.Severity == s {
			out = append(out, v)
		}
	}
	return out
}

// ByType filters threats by type, ignoring case.
func (l Threats) ByType(kind string) Threats {
	out := Threats{}
	for _, v := range l {
		if strings.EqualFold(v.Type, kind) {
			out = append(out, v)
		}
	}
	return out
}

// BySeverity filters vulnerabilities by severity.
func (l Vulnerabilities) BySeverity(s Severity) Vulnerabilities {
	out := Vulnerabilities{}
	for _, v := range l {
		if v.Severity == s {
			out = append(out, v)
		}
	}
	return out
}

// ByStatus filters assets by status.
func (l Assets) ByStatus(s AssetStatus) Assets {
	out := Assets{}
	for _, v := range l {
		if v.Status == s {
			out = append(out, v)
		}
	}
	return out
}

// Affecting returns vulnerabilities whose affected assets include assetID.
func (l Vulnerabilities) Affecting(assetID string) Vulnerabilities {
	out := Vulnerabilities{}
	for _, v := range l {
		for _, id := range v.AffectedAssets {
			if id == assetID {
				out = append(out, v)
				break
			}
		}
	}
	return out
}

// WithIDs returns assets whose id appears in ids; missing ids are skipped.
func (l Assets) WithIDs(ids []string) Assets {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := Assets{}
	for _, a := range l {
		if _, ok := want[a.ID]; ok {
			out = append(out, a)
		}
	}
	return out
}

// IsPlaceholderID reports whether id marks a record that failed normalization.
func IsPlaceholderID(id string) bool {
	return strings.Contains(id, "-ERROR-")
}
