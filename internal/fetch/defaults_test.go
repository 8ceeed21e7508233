package fetch

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secsync/pkg/models"
)

func TestSyntheticDefaultsArePrefixedAndRelativeToNow(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	for _, kind := range models.AllKinds {
		list := SyntheticDefaults(kind, now)
		require.NotNil(t, list, kind)
		assert.Equal(t, kind, list.Kind())
		assert.Equal(t, 5, list.Len())
	}

	incidents := SyntheticDefaults(models.KindIncidents, now).(models.Incidents)
	for _, inc := range incidents {
		assert.True(t, strings.HasPrefix(inc.ID, "INC-"), inc.ID)
		assert.True(t, inc.Timestamp.Before(now))
	}
	assert.Nil(t, SyntheticDefaults(models.Kind("x"), now))
}

func TestSyntheticVulnerabilitiesIncludeDanglingAssetReferences(t *testing.T) {
	now := time.Now()
	assets := SyntheticDefaults(models.KindAssets, now).(models.Assets)
	vulns := SyntheticDefaults(models.KindVulnerabilities, now).(models.Vulnerabilities)

	dangling := 0
	for _, v := range vulns {
		for _, id := range v.AffectedAssets {
			if _, ok := assets.Find(id); !ok {
				dangling++
			}
		}
	}
	assert.Positive(t, dangling)
}
