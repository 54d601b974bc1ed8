package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyCredential(t *testing.T) {
	hash, err := HashCredential("correct-horse-battery-staple")
	require.NoError(t, err)

	assert.True(t, VerifyCredential("correct-horse-battery-staple", hash))
	assert.False(t, VerifyCredential("wrong-password", hash))
}
