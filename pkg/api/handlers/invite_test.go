package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivebridge/hivebridge/pkg/models"
)

func newInviteHandler(env *testEnv) *InviteHandler {
	return NewInviteHandler(env.store, env.referrals, env.quotas, env.email, nil)
}

func TestSendInvite(t *testing.T) {
	env := newTestEnv(t)
	h := newInviteHandler(env)
	user := env.createUser(t, "alice@example.com", models.TierStandard)

	c, rec := env.newRequest(http.MethodPost, "/api/v1/invites", `{"email":"friend@example.com"}`, user)
	require.NoError(t, h.SendInvite(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	decodeBody(t, rec, &resp)
	assert.NotEmpty(t, resp["invite_id"])

	// One send consumed from the quota
	usage, err := env.quotas.Usage(c.Request().Context(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, usage.Used)
}

func TestSendInvite_QuotaExhausted(t *testing.T) {
	env := newTestEnv(t) // StandardDaily is 3 in the test env
	h := newInviteHandler(env)
	user := env.createUser(t, "alice@example.com", models.TierStandard)

	for i := 0; i < 3; i++ {
		c, rec := env.newRequest(http.MethodPost, "/api/v1/invites", `{"email":"friend@example.com"}`, user)
		require.NoError(t, h.SendInvite(c))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	c, rec := env.newRequest(http.MethodPost, "/api/v1/invites", `{"email":"friend@example.com"}`, user)
	require.NoError(t, h.SendInvite(c))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var resp models.ErrorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "quota_exceeded", resp.Error)
}

func TestSendInvite_InvalidEmail(t *testing.T) {
	env := newTestEnv(t)
	h := newInviteHandler(env)
	user := env.createUser(t, "alice@example.com", models.TierStandard)

	c, rec := env.newRequest(http.MethodPost, "/api/v1/invites", `{"email":"not-an-email"}`, user)
	require.NoError(t, h.SendInvite(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetQuota(t *testing.T) {
	env := newTestEnv(t)
	h := newInviteHandler(env)
	user := env.createUser(t, "alice@example.com", models.TierStandard)

	c, rec := env.newRequest(http.MethodGet, "/api/v1/invites/quota", "", user)
	require.NoError(t, h.GetQuota(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var usage map[string]interface{}
	decodeBody(t, rec, &usage)
	assert.EqualValues(t, 0, usage["used"])
	assert.EqualValues(t, 3, usage["limit"])
	assert.EqualValues(t, 3, usage["remaining"])
}

func TestGetPremiumStatus(t *testing.T) {
	env := newTestEnv(t)
	h := NewPremiumHandler(env.premium)
	user := env.createUser(t, "alice@example.com", models.TierStandard)

	c, rec := env.newRequest(http.MethodGet, "/api/v1/premium/status", "", user)
	require.NoError(t, h.GetStatus(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var status map[string]interface{}
	decodeBody(t, rec, &status)
	assert.EqualValues(t, false, status["premium_granted"])
	assert.EqualValues(t, 10, status["referrals_needed"])
}
