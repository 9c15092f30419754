package automation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsapp-group-automation/internal/models"
)

var testNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func rule(id string, priority int, mutate ...func(*models.AutomationRule)) models.AutomationRule {
	r := models.AutomationRule{
		ID:             id,
		CompanyID:      "C",
		Name:           id,
		GroupRemoteJID: "120@g.us",
		ActionType:     "auto_reply",
		Priority:       priority,
		IsActive:       true,
	}
	for _, m := range mutate {
		m(&r)
	}
	return r
}

func ids(rules []models.AutomationRule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.ID
	}
	return out
}

func TestSelectCandidates_PriorityOrder(t *testing.T) {
	store := newMemStore(rule("low", 1), rule("high", 10), rule("tie-a", 5), rule("tie-b", 5))
	e := NewEngine(store, nil)

	got, err := e.SelectCandidates(context.Background(), "C", "120@g.us", "Bolão", testNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"high", "tie-a", "tie-b", "low"}, ids(got))
}

func TestSelectCandidates_TimeWindow(t *testing.T) {
	at := func(d time.Duration) *time.Time {
		v := testNow.Add(d)
		return &v
	}
	store := newMemStore(
		rule("starts-now", 1, func(r *models.AutomationRule) { r.StartsAt = at(0) }),
		rule("starts-later", 1, func(r *models.AutomationRule) { r.StartsAt = at(time.Second) }),
		rule("expires-now", 1, func(r *models.AutomationRule) { r.ExpiresAt = at(0) }),
		rule("expires-later", 1, func(r *models.AutomationRule) { r.ExpiresAt = at(time.Second) }),
		rule("inactive", 1, func(r *models.AutomationRule) { r.IsActive = false }),
	)
	e := NewEngine(store, nil)

	got, err := e.SelectCandidates(context.Background(), "C", "120@g.us", "", testNow)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"starts-now", "expires-later"}, ids(got))
}

func TestSelectCandidates_ExactJIDIsExclusive(t *testing.T) {
	store := newMemStore(rule("jid", 1, func(r *models.AutomationRule) {
		r.GroupRemoteJID = "120@g.us"
		r.GroupNameMatch = "bolão"
	}))
	e := NewEngine(store, nil)

	got, err := e.SelectCandidates(context.Background(), "C", "999@g.us", "Bolão da firma", testNow)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = e.SelectCandidates(context.Background(), "C", "120@g.us", "another name", testNow)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSelectCandidates_GroupNameMatch(t *testing.T) {
	byName := func(pattern string) func(*models.AutomationRule) {
		return func(r *models.AutomationRule) {
			r.GroupRemoteJID = ""
			r.GroupNameMatch = pattern
		}
	}
	store := newMemStore(
		rule("regex", 3, byName(`^bol[aã]o`)),
		rule("broken-regex", 2, byName(`[vip`)),
		rule("untargeted", 1, byName("")),
	)
	e := NewEngine(store, nil)

	got, err := e.SelectCandidates(context.Background(), "C", "1@g.us", "BOLAO semanal", testNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"regex"}, ids(got))

	got, err = e.SelectCandidates(context.Background(), "C", "1@g.us", "Grupo [VIP] 2026", testNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"broken-regex"}, ids(got), "invalid pattern falls back to a case-insensitive substring")
}

func TestSelectCandidates_OtherCompany(t *testing.T) {
	e := NewEngine(newMemStore(rule("r", 1)), nil)

	got, err := e.SelectCandidates(context.Background(), "c2", "120@g.us", "", testNow)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSelectCandidates_StoreError(t *testing.T) {
	store := newMemStore()
	store.rulesErr = errStoreDown
	e := NewEngine(store, nil)

	_, err := e.SelectCandidates(context.Background(), "C", "120@g.us", "", testNow)
	assert.ErrorIs(t, err, errStoreDown)
}
