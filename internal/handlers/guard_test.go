package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskhive/apiserver/internal/auth"
	"github.com/taskhive/apiserver/internal/handlers"
)

func newGuardedPage(t *testing.T) (http.Handler, *auth.Issuer) {
	t.Helper()

	issuer := auth.NewIssuer(testSecret, auth.DefaultTokenTTL)
	gate := handlers.NewGatekeeper(auth.NewVerifier(testSecret), "/login")

	page := gate.RequirePage(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	return page, issuer
}

func TestRequirePageRedirectsWithoutToken(t *testing.T) {
	page, _ := newGuardedPage(t)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	recorder := httptest.NewRecorder()
	page.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusFound, recorder.Code)
	assert.Equal(t, "/login", recorder.Header().Get("Location"))
}

func TestRequirePageAcceptsCookie(t *testing.T) {
	page, issuer := newGuardedPage(t)

	token, err := issuer.Issue(7)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	recorder := httptest.NewRecorder()
	page.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestRequireAPIAcceptsCookie(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.seedUser(t, "Ada", "ada@example.com", "hunter22")

	// Same token, delivered by cookie instead of header.
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	recorder := httptest.NewRecorder()
	env.router.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), user.Email)
}

func TestRequireAPIRejectsGarbageToken(t *testing.T) {
	env := newTestEnv(t)

	recorder, body := env.do(t, http.MethodGet, "/api/tasks/", "not-a-token", nil)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, "Unauthorized", body.Error)
}

func TestRequireAPIRejectsForeignSignature(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "Ada", "ada@example.com", "hunter22")

	foreign := auth.NewIssuer([]byte("some-other-secret"), auth.DefaultTokenTTL)
	token, err := foreign.Issue(1)
	require.NoError(t, err)

	recorder, _ := env.do(t, http.MethodGet, "/api/tasks/", token, nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}
