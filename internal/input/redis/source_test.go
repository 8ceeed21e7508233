package redis

import (
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"secsync/pkg/models"
)

func TestSourceKeys(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	defer client.Close()

	s := newSource(client, "")
	assert.Equal(t, "secsync:security:incidents", s.key(models.KindIncidents))

	s = newSource(client, " feeds ")
	assert.Equal(t, "feeds:vulnerabilities", s.key(models.KindVulnerabilities))
}

func TestNewTriggerRequiresKey(t *testing.T) {
	_, err := NewTrigger(TriggerConfig{})
	assert.Error(t, err)

	_, err = NewTrigger(TriggerConfig{Key: "   "})
	assert.Error(t, err)

	tr, err := NewTrigger(TriggerConfig{Key: " secsync:refresh ", BlockTimeout: -time.Second})
	if assert.NoError(t, err) {
		assert.Equal(t, "secsync:refresh", tr.key)
		assert.Equal(t, 5*time.Second, tr.blockTimeout)
		assert.Equal(t, "127.0.0.1:6379", tr.client.Options().Addr)
		tr.Close()
	}
}
