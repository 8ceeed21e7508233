package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secsync/pkg/models"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestStoreValidityWindow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	s := NewStore(0, WithClock(clock.Now))
	require.Equal(t, DefaultTTL, s.TTL())

	value, valid := s.Get(models.KindAssets)
	assert.Nil(t, value)
	assert.False(t, valid)

	list := models.Assets{{ID: "AST-1", Name: "db"}}
	s.Set(models.KindAssets, list, clock.Now())

	clock.Advance(299 * time.Second)
	value, valid = s.Get(models.KindAssets)
	assert.True(t, valid)
	assert.Equal(t, list, value)

	clock.Advance(2 * time.Second)
	value, valid = s.Get(models.KindAssets)
	assert.False(t, valid, "entry older than the ttl must be stale")
	assert.Equal(t, list, value, "stale value is still returned for fallback")
}

func TestStoreKindsAreIndependent(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewStore(time.Minute, WithClock(func() time.Time { return now }))
	s.Set(models.KindIncidents, models.Incidents{{ID: "INC-1"}}, now)

	_, valid := s.Get(models.KindThreats)
	assert.False(t, valid)
	_, err := s.Lookup(models.KindThreats)
	assert.ErrorIs(t, err, ErrCacheMiss)

	entry, err := s.Lookup(models.KindIncidents)
	require.NoError(t, err)
	assert.Equal(t, now, entry.FetchedAt)
	assert.Equal(t, 1, entry.Value.Len())
}

func TestStoreClear(t *testing.T) {
	now := time.Now()
	s := NewStore(time.Minute)
	s.Set(models.KindIncidents, models.Incidents{}, now)
	s.Set(models.KindAssets, models.Assets{}, now)

	s.Clear(models.KindIncidents)
	_, err := s.Lookup(models.KindIncidents)
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = s.Lookup(models.KindAssets)
	assert.NoError(t, err)

	s.Clear()
	_, err = s.Lookup(models.KindAssets)
	assert.ErrorIs(t, err, ErrCacheMiss)
}
