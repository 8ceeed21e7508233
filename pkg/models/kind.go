package models

import "fmt"

// Kind identifies one of the synchronized security collections.
type Kind string

const (
	KindIncidents       Kind = "incidents"
	KindAssets          Kind = "assets"
	KindThreats         Kind = "threats"
	KindVulnerabilities Kind = "vulnerabilities"
)

// AllKinds lists every collection in refresh order.
var AllKinds = []Kind{KindIncidents, KindAssets, KindThreats, KindVulnerabilities}

// Prefix returns the identifier prefix records of this kind carry.
func (k Kind) Prefix() string {
	switch k {
	case KindIncidents:
		return "INC"
	case KindAssets:
		return "AST"
	case KindThreats:
		return "THR"
	case KindVulnerabilities:
		return "VUL"
	default:
		return "UNK"
	}
}

// Label is the capitalized collection name used in user-facing messages.
func (k Kind) Label() string {
	switch k {
	case KindIncidents:
		return "Incidents"
	case KindAssets:
		return "Assets"
	case KindThreats:
		return "Threats"
	case KindVulnerabilities:
		return "Vulnerabilities"
	default:
		return string(k)
	}
}

// Endpoint returns the remote path serving this collection.
func (k Kind) Endpoint() string {
	return "/api/security/" + string(k)
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindIncidents, KindAssets, KindThreats, KindVulnerabilities:
		return true
	}
	return false
}

// ParseKind converts a user supplied name into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown kind %q", s)
	}
	return k, nil
}
