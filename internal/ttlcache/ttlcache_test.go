package ttlcache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/oit-uog/solr-federator/internal/ttlcache"
)

func TestGetSetRoundTrip(t *testing.T) {
	c := ttlcache.New[string](time.Minute)
	c.Set("a", "hello")

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "hello", v)
}

func TestGetMissReturnsZeroValue(t *testing.T) {
	c := ttlcache.New[string](time.Minute)
	v, ok := c.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, "", v)
}

func TestSetOverwritesExisting(t *testing.T) {
	c := ttlcache.New[int](time.Minute)
	c.Set("k", 1)
	c.Set("k", 2)

	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())
}

func TestDeleteRemovesEntry(t *testing.T) {
	c := ttlcache.New[int](time.Minute)
	c.Set("k", 1)
	c.Delete("k")

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestExpiryEvictsEntry(t *testing.T) {
	c := ttlcache.New[int](10 * time.Millisecond)
	c.Set("k", 1)
	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestTouchOnReadExtendsLifetime(t *testing.T) {
	c := ttlcache.New[int](40 * time.Millisecond)
	c.Set("k", 1)

	time.Sleep(25 * time.Millisecond)
	_, ok := c.Get("k")
	assert.True(t, ok, "entry should still be alive at 25ms of a 40ms ttl")

	time.Sleep(25 * time.Millisecond)
	_, ok = c.Get("k")
	assert.True(t, ok, "Get at 25ms should have reset the expiry, so it should still be alive at 50ms")
}

func TestLenReflectsOnlyLiveEntries(t *testing.T) {
	c := ttlcache.New[int](10 * time.Millisecond)
	c.Set("a", 1)
	c.Set("b", 2)
	assert.Equal(t, 2, c.Len())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, c.Len())
}
