package authz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyToken(t *testing.T) {
	mgr, err := NewManager("", "", time.Hour)
	require.NoError(t, err)

	token, exp, err := mgr.IssueToken("reviewer-1", RoleUser)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 2*time.Second)

	claims, err := mgr.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "reviewer-1", claims.ActorID)
	assert.Equal(t, RoleUser, claims.Role)
}

func TestVerifyToken_RejectsExpired(t *testing.T) {
	mgr, err := NewManager("", "", -time.Hour)
	require.NoError(t, err)

	token, _, err := mgr.IssueToken("reviewer-1", RoleAI)
	require.NoError(t, err)

	_, err = mgr.VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifyToken_RejectsForeignKey(t *testing.T) {
	mgr1, err := NewManager("", "", time.Hour)
	require.NoError(t, err)
	mgr2, err := NewManager("", "", time.Hour)
	require.NoError(t, err)

	token, _, err := mgr1.IssueToken("reviewer-1", RoleUser)
	require.NoError(t, err)

	_, err = mgr2.VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifyToken_RejectsEmptyActorID(t *testing.T) {
	mgr, err := NewManager("", "", time.Hour)
	require.NoError(t, err)

	token, _, err := mgr.IssueToken("", RoleUser)
	require.NoError(t, err)

	_, err = mgr.VerifyToken(token)
	assert.Error(t, err)
}
