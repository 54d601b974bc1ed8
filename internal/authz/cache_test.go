package authz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCache_SetGet(t *testing.T) {
	c := NewTokenCache(time.Minute)
	defer c.Close()

	claims := &Claims{ActorID: "reviewer-1", Role: RoleUser}
	c.Set("tok-a", claims)

	got, ok := c.Get("tok-a")
	require.True(t, ok)
	assert.Same(t, claims, got)

	_, ok = c.Get("tok-b")
	assert.False(t, ok)
}

func TestTokenCache_Expiry(t *testing.T) {
	c := NewTokenCache(10 * time.Millisecond)
	defer c.Close()

	c.Set("tok-a", &Claims{ActorID: "reviewer-1"})
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("tok-a")
	assert.False(t, ok)
}

func TestVerifyTokenCached(t *testing.T) {
	mgr, err := NewManager("", "", time.Hour)
	require.NoError(t, err)
	cache := NewTokenCache(time.Minute)
	defer cache.Close()

	token, _, err := mgr.IssueToken("reviewer-1", RoleAI)
	require.NoError(t, err)

	claims1, err := VerifyTokenCached(mgr, cache, token)
	require.NoError(t, err)
	assert.Equal(t, "reviewer-1", claims1.ActorID)

	cached, ok := cache.Get(token)
	require.True(t, ok)
	assert.Equal(t, claims1, cached)

	claims2, err := VerifyTokenCached(mgr, cache, token)
	require.NoError(t, err)
	assert.Equal(t, claims1, claims2)
}
