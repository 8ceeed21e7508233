package fetch

import (
	"time"

	"secsync/pkg/models"
)

// SyntheticDefaults returns the fixed development dataset for kind, with
// timestamps relative to now. Some vulnerabilities reference assets that are
// not part of the asset set.
func SyntheticDefaults(kind models.Kind, now time.Time) models.EntityList {
	switch kind {
	case models.KindIncidents:
		return syntheticIncidents(now)
	case models.KindAssets:
		return syntheticAssets(now)
	case models.KindThreats:
		return syntheticThreats(now)
	case models.KindVulnerabilities:
		return syntheticVulnerabilities(now)
	default:
		return nil
	}
}

func syntheticIncidents(now time.Time) models.Incidents {
	return models.Incidents{
		{
			ID:        "INC-1024",
			Title:     "Unauthorized access attempt on production server",
			Severity:  models.SeverityCritical,
			Status:    models.StatusInvestigating,
			Source:    "SIEM",
			Timestamp: now.Add(-84 * time.Minute),
			Details:   "Multiple failed login attempts detected from suspicious IP addresses",
		},
		{
			ID:        "INC-1023",
			Title:     "Malware alert on workstation",
			Severity:  models.SeverityHigh,
			Status:    models.StatusInProgress,
			Source:    "EDR",
			Timestamp: now.Add(-135 * time.Minute),
			Details:   "Trojan detected on workstation DEV-042, quarantined but further investigation needed",
		},
		{
			ID:        "INC-1022",
			Title:     "Suspicious activity on administrator account",
			Severity:  models.SeverityMedium,
			Status:    models.StatusOpen,
			Source:    "IAM",
			Timestamp: now.Add(-222 * time.Minute),
			Details:   "Unusual login pattern detected for admin account from new location",
		},
		{
			ID:        "INC-1021",
			Title:     "Phishing attempt detected",
			Severity:  models.SeverityHigh,
			Status:    models.StatusInProgress,
			Source:    "Email Gateway",
			Timestamp: now.Add(-250 * time.Minute),
			Details:   "Sophisticated phishing campaign targeting finance department",
		},
		{
			ID:        "INC-1020",
			Title:     "Network traffic anomaly detected",
			Severity:  models.SeverityMedium,
			Status:    models.StatusInvestigating,
			Source:    "NDR",
			Timestamp: now.Add(-335 * time.Minute),
			Details:   "Unusual outbound traffic pattern detected to unknown IP ranges",
		},
	}
}

func syntheticAssets(now time.Time) models.Assets {
	scan := func(d time.Duration) *time.Time {
		t := now.Add(-d)
		return &t
	}
	return models.Assets{
		{ID: "AST-001", Name: "Production Web Server", Type: "server", Status: models.AssetVulnerable, LastScan: scan(24 * time.Hour), Vulnerabilities: 3},
		{ID: "AST-042", Name: "Customer Portal", Type: "application", Status: models.AssetAtRisk, LastScan: scan(72 * time.Hour), Vulnerabilities: 7},
		{ID: "AST-103", Name: "AWS S3 Storage", Type: "cloud", Status: models.AssetSecure, LastScan: scan(12 * time.Hour), Vulnerabilities: 0},
		{ID: "AST-287", Name: "Finance Department Workstation", Type: "endpoint", Status: models.AssetVulnerable, LastScan: scan(48 * time.Hour), Vulnerabilities: 2},
		{ID: "AST-056", Name: "Primary Firewall", Type: "network", Status: models.AssetSecure, LastScan: scan(6 * time.Hour), Vulnerabilities: 0},
	}
}

func syntheticThreats(now time.Time) models.Threats {
	day := 24 * time.Hour
	return models.Threats{
		{ID: "THR-001", Title: "Phishing campaign targeting the financial sector", Type: "phishing", Severity: models.SeverityHigh, Source: "OSINT",
			Timestamp: now.Add(-2 * day), IOCs: []string{"domain.malicious.com", "192.168.1.100", "malware.exe"}},
		{ID: "THR-002", Title: "New ransomware variant detected", Type: "ransomware", Severity: models.SeverityCritical, Source: "Darkweb",
			Timestamp: now.Add(-3 * day), IOCs: []string{"ransom.exe", "2a7f1e3b5d8c9a6f4e2d1b3a5c7f9e8d"}},
		{ID: "THR-003", Title: "DDoS attack against cloud infrastructure", Type: "ddos", Severity: models.SeverityMedium, Source: "Partner",
			Timestamp: now.Add(-4 * day), IOCs: []string{"botnet.command.net", "10.20.30.40"}},
		{ID: "THR-004", Title: "Malware targeting industrial control systems", Type: "malware", Severity: models.SeverityHigh, Source: "Internal analysis",
			Timestamp: now.Add(-5 * day), IOCs: []string{"scada.exploit.dll", "3c5a7b9d1e8f2a4c6b3d5e7a9c1b3f5d"}},
		{ID: "THR-005", Title: "APT activity detected in the energy sector", Type: "apt", Severity: models.SeverityCritical, Source: "Intelligence",
			Timestamp: now.Add(-6 * day), IOCs: []string{"apt.backdoor.exe", "c2.server.net", "5e7a9c1b3f5d3c5a7b9d1e8f2a4c6b3d"}},
	}
}

func syntheticVulnerabilities(now time.Time) models.Vulnerabilities {
	day := 24 * time.Hour
	return models.Vulnerabilities{
		{ID: "VUL-001", Title: "Remote code execution in Microsoft Exchange", CVE: "CVE-2023-23397", CVSS: 9.8, Severity: models.SeverityCritical,
			AffectedAssets: []string{"AST-001", "AST-002"}, Status: models.StatusOpen, DiscoveryDate: now.Add(-7 * day)},
		{ID: "VUL-002", Title: "Privilege escalation in the Linux kernel", CVE: "CVE-2023-0386", CVSS: 8.4, Severity: models.SeverityHigh,
			AffectedAssets: []string{"AST-003", "AST-004", "AST-005"}, Status: models.StatusInProgress, DiscoveryDate: now.Add(-10 * day)},
		{ID: "VUL-003", Title: "Apache Log4j remote code execution", CVE: "CVE-2021-44228", CVSS: 10.0, Severity: models.SeverityCritical,
			AffectedAssets: []string{"AST-042", "AST-043"}, Status: models.StatusInProgress, DiscoveryDate: now.Add(-14 * day)},
		{ID: "VUL-004", Title: "OpenSSL buffer overflow", CVE: "CVE-2022-3786", CVSS: 7.5, Severity: models.SeverityHigh,
			AffectedAssets: []string{"AST-001", "AST-042", "AST-044"}, Status: models.StatusOpen, DiscoveryDate: now.Add(-21 * day)},
		{ID: "VUL-005", Title: "VMware vCenter Server command injection", CVE: "CVE-2023-20887", CVSS: 9.1, Severity: models.SeverityCritical,
			AffectedAssets: []string{"AST-103", "AST-104"}, Status: models.StatusOpen, DiscoveryDate: now.Add(-5 * day)},
	}
}
