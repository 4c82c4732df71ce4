package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{Secret: testSecret, TTL: time.Hour})
	require.NoError(t, err)
	return m
}

func TestNewManager_RejectsShortSecret(t *testing.T) {
	_, err := NewManager(Config{Secret: "short"})
	assert.Error(t, err)
}

func TestIssueAndParse(t *testing.T) {
	m := newTestManager(t)

	token, err := m.Issue(Identity{UserID: 1, Username: "alice"})
	require.NoError(t, err)

	id, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: 1, Username: "alice"}, id)
}

func TestIssue_RequiresUserID(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Issue(Identity{Username: "nobody"})
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestParse_Rejects(t *testing.T) {
	m := newTestManager(t)
	other, err := NewManager(Config{Secret: "ffffffffffffffffffffffffffffffff"})
	require.NoError(t, err)
	foreign, err := other.Issue(Identity{UserID: 1, Username: "mallory"})
	require.NoError(t, err)

	_, err = m.Parse(foreign)
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = m.Parse("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestParse_Expired(t *testing.T) {
	m := newTestManager(t)
	issued := time.Now().Add(-2 * time.Hour)
	m.now = func() time.Time { return issued }
	token, err := m.Issue(Identity{UserID: 1})
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Parse(token)
	assert.ErrorIs(t, err, ErrExpiredSession)
}

func TestCookieRoundTrip(t *testing.T) {
	m := newTestManager(t)

	rec := httptest.NewRecorder()
	require.NoError(t, m.SetCookie(rec, Identity{UserID: 5, Username: "eve"}))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "todo_session", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	id, err := m.FromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, int64(5), id.UserID)

	_, err = m.FromRequest(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, ErrNoSession)

	rec = httptest.NewRecorder()
	m.ClearCookie(rec)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, -1, cleared[0].MaxAge)
}

func TestFromContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	_, ok = FromContext(WithIdentity(context.Background(), Identity{}))
	assert.False(t, ok, "zero user id is not an identity")

	id, ok := FromContext(WithIdentity(context.Background(), Identity{UserID: 3, Username: "c"}))
	assert.True(t, ok)
	assert.Equal(t, "c", id.Username)
}
