package records

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"

	"secsync/pkg/models"
)

var (
	digitsOnly      = regexp.MustCompile(`^\d+$`)
	foreignPrefixed = regexp.MustCompile(`^[A-Z]+-(\d+)$`)
	leadingNumber   = regexp.MustCompile(`^\s*[-+]?(\d+(\.\d*)?|\.\d+)`)

	randIntn = rand.IntN
)

// NormalizeID coerces a raw identifier into one carrying prefix.
// Missing ids (nil, blank, false, zero) get a random numeric suffix; numeric
// and foreign-prefixed ids are re-prefixed; any other shape is passed
// through trimmed.
func NormalizeID(raw interface{}, prefix string) string {
	s := ""
	if !falsyID(raw) {
		s = NormalizeString(raw, "")
	}
	if s == "" {
		return fmt.Sprintf("%s-%d", prefix, randIntn(10000))
	}
	if strings.HasPrefix(s, prefix+"-") {
		return s
	}
	if digitsOnly.MatchString(s) {
		return prefix + "-" + s
	}
	if m := foreignPrefixed.FindStringSubmatch(s); m != nil {
		return prefix + "-" + m[1]
	}
	return s
}

func falsyID(raw interface{}) bool {
	switch v := raw.(type) {
	case bool:
		return !v
	case float64:
		return v == 0 || math.IsNaN(v)
	case float32:
		return v == 0 || math.IsNaN(float64(v))
	case int:
		return v == 0
	case int64:
		return v == 0
	case json.Number:
		f, err := v.Float64()
		return err == nil && f == 0
	}
	return false
}

// NormalizeString trims strings and stringifies scalars.
// nil and blank strings yield def.
func NormalizeString(raw interface{}, def string) string {
	switch v := raw.(type) {
	case nil:
		return def
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return def
		}
		return s
	case json.Number:
		return v.String()
	case float64:
		return formatNumber(v)
	case float32:
		return formatNumber(float64(v))
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case fmt.Stringer:
		return NormalizeString(v.String(), def)
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(v)
		if err != nil {
			return def
		}
		return string(b)
	default:
		return NormalizeString(fmt.Sprint(v), def)
	}
}

// NormalizeNumber returns raw as a finite number, or def.
func NormalizeNumber(raw interface{}, def float64) float64 {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return def
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return def
		}
		f = parsed
	default:
		return def
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

// NormalizeDate parses timestamps and epoch milliseconds, falling back to now.
func NormalizeDate(raw interface{}, now time.Time) time.Time {
	switch v := raw.(type) {
	case time.Time:
		if !v.IsZero() {
			return v
		}
	case *time.Time:
		if v != nil && !v.IsZero() {
			return *v
		}
	case string:
		if t, ok := parseTime(v); ok {
			return t
		}
	case float64, float32, int, int64, json.Number:
		ms := NormalizeNumber(v, math.NaN())
		if !math.IsNaN(ms) {
			return time.UnixMilli(int64(ms)).UTC()
		}
	}
	return now
}

// NormalizeStringArray coerces raw into a list of non-empty strings.
func NormalizeStringArray(raw interface{}) []string {
	out := []string{}
	switch v := raw.(type) {
	case nil:
		return out
	case []interface{}:
		for _, item := range v {
			if s := NormalizeString(item, ""); s != "" {
				out = append(out, s)
			}
		}
	case []string:
		for _, item := range v {
			if s := NormalizeString(item, ""); s != "" {
				out = append(out, s)
			}
		}
	default:
		if s := NormalizeString(v, ""); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// NormalizeSeverity maps keywords and CVSS-like scores onto the severity scale.
func NormalizeSeverity(raw interface{}) models.Severity {
	switch raw.(type) {
	case float64, float32, int, int64, json.Number:
		return severityFromScore(NormalizeNumber(raw, 0))
	}

	s := strings.ToLower(NormalizeString(raw, ""))
	if s == "" {
		return models.SeverityMedium
	}
	switch {
	case strings.Contains(s, "crit"):
		return models.SeverityCritical
	case strings.Contains(s, "high"), strings.Contains(s, "important"):
		return models.SeverityHigh
	case strings.Contains(s, "med"), strings.Contains(s, "moderate"):
		return models.SeverityMedium
	case strings.Contains(s, "low"), strings.Contains(s, "minor"):
		return models.SeverityLow
	}
	if m := leadingNumber.FindString(s); m != "" {
		if score, err := strconv.ParseFloat(strings.TrimSpace(m), 64); err == nil {
			return severityFromScore(score)
		}
	}
	return models.SeverityMedium
}

func severityFromScore(score float64) models.Severity {
	switch {
	case score >= 9:
		return models.SeverityCritical
	case score >= 7:
		return models.SeverityHigh
	case score >= 4:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// NormalizeStatus maps workflow keywords onto the status scale.
func NormalizeStatus(raw interface{}) models.Status {
	s := strings.ToLower(NormalizeString(raw, ""))
	switch {
	case s == "":
		return models.StatusOpen
	case strings.Contains(s, "open"), strings.Contains(s, "new"):
		return models.StatusOpen
	case strings.Contains(s, "invest"), strings.Contains(s, "triage"):
		return models.StatusInvestigating
	case strings.Contains(s, "progress"), strings.Contains(s, "active"), strings.Contains(s, "working"):
		return models.StatusInProgress
	case strings.Contains(s, "resolv"), strings.Contains(s, "close"),
		strings.Contains(s, "done"), strings.Contains(s, "fixed"):
		return models.StatusResolved
	default:
		return models.StatusOpen
	}
}

// NormalizeAssetStatus maps exposure keywords onto the asset status scale.
// "vuln" and "risk" are checked before "at-risk", so "at-risk" maps to vulnerable.
func NormalizeAssetStatus(raw interface{}) models.AssetStatus {
	s := strings.ToLower(NormalizeString(raw, ""))
	switch {
	case s == "":
		return models.AssetAtRisk
	case strings.Contains(s, "secure"), strings.Contains(s, "safe"), strings.Contains(s, "protected"):
		return models.AssetSecure
	case strings.Contains(s, "vuln"), strings.Contains(s, "risk"):
		return models.AssetVulnerable
	case strings.Contains(s, "at-risk"), strings.Contains(s, "exposed"):
		return models.AssetAtRisk
	default:
		return models.AssetAtRisk
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.RFC1123Z, time.RFC1123} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}

	for _, layout := range []string{
		"2006-01-02T15:04:05.000",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"Jan 2, 2006",
	} {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
