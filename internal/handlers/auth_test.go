package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/safetrade/marketplace/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct {
	tokens map[string]*auth.Token
}

func (s stubVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	if tok, ok := s.tokens[idToken]; ok {
		return tok, nil
	}
	return nil, errors.New("invalid token")
}

func TestSignupSigninAndProfile(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodPost, "/api/auth/signup", map[string]string{
		"name": "Rider One", "email": "Rider@Example.com", "password": "supersecret",
	}, "")
	requireStatus(t, rec, http.StatusCreated)
	token := decodeJSON[map[string]interface{}](t, rec)["token"].(string)
	require.NotEmpty(t, token)

	rec = app.do(http.MethodGet, "/api/profile", nil, token)
	requireStatus(t, rec, http.StatusOK)
	profile := decodeJSON[map[string]interface{}](t, rec)
	assert.Equal(t, "rider@example.com", profile["email"])
	assert.NotContains(t, profile, "password")

	rec = app.do(http.MethodPost, "/api/auth/signup", map[string]string{
		"name": "Rider Two", "email": "rider@example.com", "password": "anothersecret",
	}, "")
	requireStatus(t, rec, http.StatusConflict)

	rec = app.do(http.MethodPost, "/api/auth/signin", map[string]string{
		"email": "rider@example.com", "password": "wrong-password",
	}, "")
	requireStatus(t, rec, http.StatusUnauthorized)

	rec = app.do(http.MethodPost, "/api/auth/signin", map[string]string{
		"email": "nobody@example.com", "password": "whatever1",
	}, "")
	requireStatus(t, rec, http.StatusUnauthorized)

	rec = app.do(http.MethodPost, "/api/auth/signin", map[string]string{
		"email": "rider@example.com", "password": "supersecret",
	}, "")
	requireStatus(t, rec, http.StatusOK)
}

func TestSignupValidation(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodPost, "/api/auth/signup", map[string]string{
		"name": "Rider", "email": "not-an-email", "password": "short",
	}, "")
	requireStatus(t, rec, http.StatusBadRequest)
	msg := errorMessage(t, rec)
	assert.Contains(t, msg, "email must be a valid email address")
	assert.Contains(t, msg, "password must be at least 8")
}

func TestProtectedRoutesRequireBearerToken(t *testing.T) {
	app := newTestApp(t)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JwtCustomClaims{
		UserID:           1,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	forged, err := NewAuthHandler(app.users, nil, "other-secret", time.Hour).generateJWT(&models.User{ID: 1})
	require.NoError(t, err)

	cases := map[string]string{
		"missing":      "",
		"wrong scheme": "Basic dXNlcjpwYXNz",
		"garbage":      "Bearer not-a-jwt",
		"expired":      "Bearer " + expired,
		"forged":       "Bearer " + forged,
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
			if header != "" {
				req.Header.Set(echo.HeaderAuthorization, header)
			}
			rec := httptest.NewRecorder()
			app.e.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestUpdateProfileResetsPhoneVerification(t *testing.T) {
	app := newTestApp(t)
	u, token := app.newUser("alice", "")
	u.Phone = "+15035550100"
	u.PhoneVerified = true
	require.NoError(t, app.users.UpdateUser(context.Background(), u))

	rec := app.do(http.MethodPut, "/api/profile", map[string]string{"phone": "+15035550199"}, token)
	requireStatus(t, rec, http.StatusOK)

	stored, err := app.users.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "+15035550199", stored.Phone)
	assert.False(t, stored.PhoneVerified)

	rec = app.do(http.MethodPut, "/api/profile", map[string]string{"phone": "555-0100"}, token)
	requireStatus(t, rec, http.StatusBadRequest)
}

func TestPublicProfileAndDelete(t *testing.T) {
	app := newTestApp(t)
	seller, token := app.newUser("seller", "")
	app.seedListing(seller.ID)
	app.seedListing(seller.ID)

	rec := app.do(http.MethodGet, "/api/users/1", nil, "")
	requireStatus(t, rec, http.StatusOK)
	body := decodeJSON[map[string]interface{}](t, rec)
	assert.EqualValues(t, 2, body["active_listings"])
	assert.NotContains(t, body, "email")

	requireStatus(t, app.do(http.MethodGet, "/api/users/99", nil, ""), http.StatusNotFound)
	requireStatus(t, app.do(http.MethodGet, "/api/users/abc", nil, ""), http.StatusBadRequest)

	requireStatus(t, app.do(http.MethodDelete, "/api/profile", nil, token), http.StatusNoContent)
	requireStatus(t, app.do(http.MethodGet, "/api/profile", nil, token), http.StatusNotFound)
}

func TestFirebaseLoginCreatesThenLinks(t *testing.T) {
	app := newTestApp(t)
	verifier := stubVerifier{tokens: map[string]*auth.Token{
		"new-user": {UID: "fb-1", Claims: map[string]interface{}{"email": "new@example.com", "email_verified": true, "name": "New Rider"}},
		"existing": {UID: "fb-2", Claims: map[string]interface{}{"email": "alice@example.com", "email_verified": true}},
		"no-email": {UID: "fb-3", Claims: map[string]interface{}{}},
	}}
	h := NewAuthHandler(app.users, verifier, testSecret, time.Hour)
	app.e.POST("/test/firebase-login", h.FirebaseLogin)

	rec := app.do(http.MethodPost, "/test/firebase-login", map[string]string{"idToken": "new-user"}, "")
	requireStatus(t, rec, http.StatusOK)
	created, err := app.users.GetUserByFirebaseUID(context.Background(), "fb-1")
	require.NoError(t, err)
	assert.Equal(t, "New Rider", created.Name)

	alice, _ := app.newUser("alice", "")
	rec = app.do(http.MethodPost, "/test/firebase-login", map[string]string{"idToken": "existing"}, "")
	requireStatus(t, rec, http.StatusOK)
	linked, err := app.users.GetUserByFirebaseUID(context.Background(), "fb-2")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, linked.ID)

	requireStatus(t, app.do(http.MethodPost, "/test/firebase-login", map[string]string{"idToken": "bogus"}, ""), http.StatusUnauthorized)
	requireStatus(t, app.do(http.MethodPost, "/test/firebase-login", map[string]string{"idToken": "no-email"}, ""), http.StatusBadRequest)
}

func TestFirebaseLoginRequiresVerifiedEmail(t *testing.T) {
	app := newTestApp(t)
	victim, _ := app.newUser("victim", "")
	verifier := stubVerifier{tokens: map[string]*auth.Token{
		"unverified":     {UID: "attacker-uid", Claims: map[string]interface{}{"email": victim.Email, "email_verified": false}},
		"new-unverified": {UID: "fb-9", Claims: map[string]interface{}{"email": "fresh@example.com"}},
	}}
	h := NewAuthHandler(app.users, verifier, testSecret, time.Hour)
	app.e.POST("/test/firebase-login", h.FirebaseLogin)

	rec := app.do(http.MethodPost, "/test/firebase-login", map[string]string{"idToken": "unverified"}, "")
	requireStatus(t, rec, http.StatusForbidden)
	assert.NotContains(t, rec.Body.String(), "token")

	stored, err := app.users.GetUserByID(context.Background(), victim.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.FirebaseUID)
	_, err = app.users.GetUserByFirebaseUID(context.Background(), "attacker-uid")
	assert.Error(t, err)

	requireStatus(t, app.do(http.MethodPost, "/test/firebase-login", map[string]string{"idToken": "new-unverified"}, ""), http.StatusForbidden)
	_, err = app.users.GetUserByEmail(context.Background(), "fresh@example.com")
	assert.Error(t, err)
}

func TestFirebaseLoginDisabledWithoutClient(t *testing.T) {
	app := newTestApp(t)
	rec := app.do(http.MethodPost, "/api/auth/firebase-login", map[string]string{"idToken": "x"}, "")
	requireStatus(t, rec, http.StatusServiceUnavailable)
}
