package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/okarlsson/waitgate/internal/models"
	"github.com/okarlsson/waitgate/internal/ratelimit"
)

func mountSubscribe(t *testing.T, env *handlerEnv, opts ...ratelimit.Option) {
	t.Helper()

	handler, err := NewSubscribeHandler(env.newAdmission(t, opts...))
	require.NoError(t, err)
	env.router.POST("/api/subscribe", handler.Subscribe)
}

func TestSubscribeCreatesEntry(t *testing.T) {
	env := newHandlerEnv(t)
	owner, _ := env.seedUser(t)
	project := env.seedProject(t, owner.ID)
	mountSubscribe(t, env)

	w := env.do(t, http.MethodPost, "/api/subscribe", "", map[string]string{
		"api_key": project.APIKey,
		"email":   "ada@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	body := decodeData[subscribeResponse](t, w)
	require.False(t, body.AlreadyMember)
	require.NotNil(t, body.Position)
	require.Equal(t, 1, *body.Position)
	require.Nil(t, body.Tier)
	require.NotEmpty(t, body.ReferralCode)
}

func TestSubscribeRepeatJoinIsOK(t *testing.T) {
	env := newHandlerEnv(t)
	owner, _ := env.seedUser(t)
	project := env.seedProject(t, owner.ID)
	mountSubscribe(t, env)

	payload := map[string]string{"api_key": project.APIKey, "email": "ada@example.com"}

	first := env.do(t, http.MethodPost, "/api/subscribe", "", payload)
	require.Equal(t, http.StatusCreated, first.Code)
	firstBody := decodeData[subscribeResponse](t, first)

	second := env.do(t, http.MethodPost, "/api/subscribe", "", payload)
	require.Equal(t, http.StatusOK, second.Code)
	secondBody := decodeData[subscribeResponse](t, second)
	require.True(t, secondBody.AlreadyMember)
	require.Equal(t, firstBody.ReferralCode, secondBody.ReferralCode)
}

func TestSubscribeTierResponse(t *testing.T) {
	env := newHandlerEnv(t)
	owner, _ := env.seedUser(t)
	project := env.seedProject(t, owner.ID, func(p *models.Project) { p.ShowPosition = false })
	mountSubscribe(t, env)

	w := env.do(t, http.MethodPost, "/api/subscribe", "", map[string]string{
		"api_key": project.APIKey,
		"email":   "ada@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	body := decodeData[subscribeResponse](t, w)
	require.Nil(t, body.Position)
	require.NotNil(t, body.Tier)
	require.Equal(t, "Top 10%", *body.Tier)
}

func TestSubscribeValidationErrors(t *testing.T) {
	env := newHandlerEnv(t)
	owner, _ := env.seedUser(t)
	project := env.seedProject(t, owner.ID)
	mountSubscribe(t, env)

	cases := []map[string]string{
		{"email": "ada@example.com"},
		{"api_key": project.APIKey},
		{"api_key": project.APIKey, "email": "not-an-address"},
	}
	for _, payload := range cases {
		w := env.do(t, http.MethodPost, "/api/subscribe", "", payload)
		require.Equal(t, http.StatusBadRequest, w.Code, "payload %v", payload)
		require.Equal(t, "INVALID_INPUT", errorCode(t, w))
	}
}

func TestSubscribeUnknownKey(t *testing.T) {
	env := newHandlerEnv(t)
	mountSubscribe(t, env)

	w := env.do(t, http.MethodPost, "/api/subscribe", "", map[string]string{
		"api_key": "wg_live_deadbeef",
		"email":   "ada@example.com",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "UNAUTHORIZED", errorCode(t, w))
}

func TestSubscribeFrozenProject(t *testing.T) {
	env := newHandlerEnv(t)
	owner, _ := env.seedUser(t)
	project := env.seedProject(t, owner.ID, func(p *models.Project) { p.IsFrozen = true })
	mountSubscribe(t, env)

	w := env.do(t, http.MethodPost, "/api/subscribe", "", map[string]string{
		"api_key": project.APIKey,
		"email":   "ada@example.com",
	})
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "WAITLIST_CLOSED", errorCode(t, w))
}

func TestSubscribeRateLimited(t *testing.T) {
	env := newHandlerEnv(t)
	owner, _ := env.seedUser(t)
	project := env.seedProject(t, owner.ID)
	mountSubscribe(t, env, ratelimit.WithLimit(2))

	for _, email := range []string{"a@example.com", "b@example.com"} {
		w := env.do(t, http.MethodPost, "/api/subscribe", "", map[string]string{
			"api_key": project.APIKey,
			"email":   email,
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := env.do(t, http.MethodPost, "/api/subscribe", "", map[string]string{
		"api_key": project.APIKey,
		"email":   "c@example.com",
	})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "RATE_LIMIT_EXCEEDED", errorCode(t, w))
}

func TestSubscribeReferralFlow(t *testing.T) {
	env := newHandlerEnv(t)
	owner, _ := env.seedUser(t)
	project := env.seedProject(t, owner.ID)
	mountSubscribe(t, env)

	first := env.do(t, http.MethodPost, "/api/subscribe", "", map[string]string{
		"api_key": project.APIKey,
		"email":   "ref@example.com",
	})
	referrer := decodeData[subscribeResponse](t, first)

	w := env.do(t, http.MethodPost, "/api/subscribe", "", map[string]string{
		"api_key": project.APIKey,
		"email":   "friend@example.com",
		"ref":     referrer.ReferralCode,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var entry models.WaitlistEntry
	require.NoError(t, env.db.Take(&entry, "project_id = ? AND email = ?", project.ID, "ref@example.com").Error)
	require.Equal(t, 1, entry.PriorityScore)
}
