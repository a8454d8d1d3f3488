package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OtmaneTouhami/budget-wise/internal/modules/apiclient"
	"github.com/OtmaneTouhami/budget-wise/internal/modules/pkg/clock"
	"github.com/OtmaneTouhami/budget-wise/internal/modules/pkg/validatorx"
	"github.com/OtmaneTouhami/budget-wise/internal/modules/session"
	"github.com/OtmaneTouhami/budget-wise/pkg/logger"
)

var testProfile = session.Profile{ID: "u-1", Username: "jdoe", Email: "jdoe@example.com", FirstName: "John", LastName: "Doe"}

// backend records every call and answers from a per-path table
type backend struct {
	mu      sync.Mutex
	calls   []string
	auth    map[string]string
	bodies  map[string]json.RawMessage
	replies map[string]func(w http.ResponseWriter)
}

func newBackend() *backend {
	return &backend{
		auth:    map[string]string{},
		bodies:  map[string]json.RawMessage{},
		replies: map[string]func(w http.ResponseWriter){},
	}
}

func (b *backend) reply(path string, status int, body any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replies[path] = func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if body != nil {
			_ = json.NewEncoder(w).Encode(body)
		}
	}
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	var body json.RawMessage
	_ = json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	b.calls = append(b.calls, key)
	b.auth[key] = r.Header.Get("Authorization")
	b.bodies[key] = body
	fn := b.replies[key]
	b.mu.Unlock()

	if fn == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	fn(w)
}

func (b *backend) callList() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *backend) authOf(key string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.auth[key]
}

func (b *backend) bodyOf(key string) json.RawMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bodies[key]
}

type fixture struct {
	backend *backend
	store   *session.Store
	service *Service
}

func newFixture(t *testing.T, clk clock.Clock) *fixture {
	t.Helper()

	b := newBackend()
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	store := session.NewStore(nil, session.WithLogger(logger.Discard()))
	client, err := apiclient.NewClient(srv.URL+"/api/v1", store,
		apiclient.WithHTTPClient(srv.Client()),
		apiclient.WithLogger(logger.Discard()),
		apiclient.WithRefreshTimeout(2*time.Second),
	)
	require.NoError(t, err)

	return &fixture{backend: b, store: store, service: NewService(client, store, clk)}
}

func pair(access, refresh string) map[string]string {
	return map[string]string{"access_token": access, "refresh_token": refresh}
}

func TestService_LoginStoresPairAndProfile(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.reply("POST /api/v1/auth/login", http.StatusOK, pair("a1", "r1"))
	f.backend.reply("GET /api/v1/profile", http.StatusOK, testProfile)

	profile, err := f.service.Login(context.Background(), "jdoe", "s3cretpass")
	require.NoError(t, err)
	assert.Equal(t, testProfile, *profile)

	state := f.store.Snapshot()
	assert.True(t, state.IsAuth)
	assert.Equal(t, "a1", state.AccessToken)
	assert.Equal(t, "r1", state.RefreshToken)
	require.NotNil(t, state.User)
	assert.Equal(t, "jdoe", state.User.Username)

	assert.JSONEq(t, `{"loginIdentifier":"jdoe","password":"s3cretpass"}`, string(f.backend.bodyOf("POST /api/v1/auth/login")))
	assert.Equal(t, "Bearer a1", f.backend.authOf("GET /api/v1/profile"))
}

func TestService_LoginValidatesBeforeAnyCall(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.service.Login(context.Background(), "", "short")

	var valErr validatorx.ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := valErr.Fields()
	assert.Contains(t, fields, "loginIdentifier")
	assert.Contains(t, fields, "password")
	assert.Empty(t, f.backend.callList())
}

func TestService_LoginBadCredentialsSkipsRefresh(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.reply("POST /api/v1/auth/login", http.StatusUnauthorized, map[string]any{
		"status": 401, "error": "Unauthorized", "message": "Invalid credentials",
	})

	_, err := f.service.Login(context.Background(), "jdoe", "wrongpass1")
	require.Error(t, err)
	require.ErrorIs(t, err, apiclient.ErrAuthExpired)
	assert.Equal(t, "Invalid credentials", apiclient.ErrorMessage(err))

	assert.Equal(t, []string{"POST /api/v1/auth/login"}, f.backend.callList())
	assert.False(t, f.store.IsAuthenticated())
}

func TestService_LoginMissingTokens(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.reply("POST /api/v1/auth/login", http.StatusOK, map[string]string{"access_token": "a1"})

	_, err := f.service.Login(context.Background(), "jdoe", "s3cretpass")
	require.ErrorIs(t, err, ErrMissingTokens)
	assert.False(t, f.store.IsAuthenticated())
}

func TestService_RegisterLeavesSessionAlone(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.reply("POST /api/v1/auth/register", http.StatusOK, map[string]any{})

	err := f.service.Register(context.Background(), RegisterRequest{
		Username:  "jdoe",
		Email:     "jdoe@example.com",
		Password:  "s3cretpass",
		FirstName: "John",
		LastName:  "Doe",
		CountryID: 1,
	})
	require.NoError(t, err)
	assert.False(t, f.store.IsAuthenticated())

	var sent map[string]any
	require.NoError(t, json.Unmarshal(f.backend.bodyOf("POST /api/v1/auth/register"), &sent))
	assert.Equal(t, "jdoe@example.com", sent["email"])
	assert.EqualValues(t, 1, sent["countryId"])
}

func TestService_RegisterConflict(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.reply("POST /api/v1/auth/register", http.StatusConflict, map[string]any{
		"status": 409, "error": "Conflict", "message": "Username already taken",
	})

	err := f.service.Register(context.Background(), RegisterRequest{
		Username: "jdoe", Email: "jdoe@example.com", Password: "s3cretpass",
		FirstName: "John", LastName: "Doe", CountryID: 1,
	})
	require.Error(t, err)
	assert.Equal(t, "Username already taken", apiclient.ErrorMessage(err))
}

func TestService_VerifyStartsSession(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.reply("POST /api/v1/auth/verify", http.StatusOK, pair("a1", "r1"))
	f.backend.reply("GET /api/v1/profile", http.StatusOK, testProfile)

	profile, err := f.service.Verify(context.Background(), "jdoe", "123456")
	require.NoError(t, err)
	assert.Equal(t, "u-1", profile.ID)
	assert.True(t, f.store.IsAuthenticated())
	assert.JSONEq(t, `{"identifier":"jdoe","token":"123456"}`, string(f.backend.bodyOf("POST /api/v1/auth/verify")))
}

func TestService_ResendVerification(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.reply("POST /api/v1/auth/resend-verification", http.StatusOK, nil)

	require.NoError(t, f.service.ResendVerification(context.Background(), "jdoe@example.com"))

	err := f.service.ResendVerification(context.Background(), "")
	var valErr validatorx.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Len(t, f.backend.callList(), 1)
}

func TestService_LogoutSendsRefreshToken(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.reply("POST /api/v1/auth/logout", http.StatusNoContent, nil)
	require.NoError(t, f.store.Login(context.Background(), session.Credentials{AccessToken: "a1", RefreshToken: "r1"}, &testProfile))

	require.NoError(t, f.service.Logout(context.Background()))

	assert.Equal(t, "Bearer r1", f.backend.authOf("POST /api/v1/auth/logout"))
	assert.Equal(t, session.State{}, f.store.Snapshot())
}

func TestService_LogoutClearsWhenServerFails(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.reply("POST /api/v1/auth/logout", http.StatusInternalServerError, nil)
	require.NoError(t, f.store.Login(context.Background(), session.Credentials{AccessToken: "a1", RefreshToken: "r1"}, nil))

	require.NoError(t, f.service.Logout(context.Background()))
	assert.False(t, f.store.IsAuthenticated())
	assert.Len(t, f.backend.callList(), 1)
}

func TestService_LogoutWithoutSessionMakesNoCall(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.service.Logout(context.Background()))
	assert.Empty(t, f.backend.callList())
}

func TestService_ProfileUnauthorizedLogsOut(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.reply("GET /api/v1/profile", http.StatusUnauthorized, map[string]any{"status": 401, "message": "Token expired"})
	f.backend.reply("POST /api/v1/auth/refresh", http.StatusUnauthorized, map[string]any{"status": 401, "message": "Invalid refresh token"})
	require.NoError(t, f.store.Login(context.Background(), session.Credentials{AccessToken: "a1", RefreshToken: "r1"}, nil))

	_, err := f.service.Profile(context.Background())
	require.ErrorIs(t, err, apiclient.ErrRefreshFailed)
	assert.False(t, f.store.IsAuthenticated())
	assert.Equal(t, []string{"GET /api/v1/profile", "POST /api/v1/auth/refresh"}, f.backend.callList())
}

func TestService_ProfileRequiresSession(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.service.Profile(context.Background())
	require.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = f.service.EnsureProfile(context.Background())
	require.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Empty(t, f.backend.callList())
}

func TestService_EnsureProfileUsesStoredProfile(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.store.Login(context.Background(), session.Credentials{AccessToken: "a1", RefreshToken: "r1"}, &testProfile))

	profile, err := f.service.EnsureProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "jdoe", profile.Username)
	assert.Empty(t, f.backend.callList())
}

func TestService_UpdateProfile(t *testing.T) {
	f := newFixture(t, nil)
	updated := testProfile
	updated.FirstName = "Johnny"
	f.backend.reply("PUT /api/v1/profile", http.StatusOK, updated)
	require.NoError(t, f.store.Login(context.Background(), session.Credentials{AccessToken: "a1", RefreshToken: "r1"}, &testProfile))

	profile, err := f.service.UpdateProfile(context.Background(), UpdateProfileRequest{FirstName: "Johnny"})
	require.NoError(t, err)
	assert.Equal(t, "Johnny", profile.FirstName)
	assert.Equal(t, "Johnny", f.store.Profile().FirstName)
	assert.JSONEq(t, `{"firstName":"Johnny"}`, string(f.backend.bodyOf("PUT /api/v1/profile")))

	_, err = f.service.UpdateProfile(context.Background(), UpdateProfileRequest{Email: "not-an-email"})
	var valErr validatorx.ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestService_ChangePasswordEndsSession(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.reply("POST /api/v1/profile/change-password", http.StatusNoContent, nil)
	require.NoError(t, f.store.Login(context.Background(), session.Credentials{AccessToken: "a1", RefreshToken: "r1"}, &testProfile))

	err := f.service.ChangePassword(context.Background(), ChangePasswordRequest{
		CurrentPassword:      "oldpass123",
		NewPassword:          "newpass123",
		ConfirmationPassword: "newpass123",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer a1", f.backend.authOf("POST /api/v1/profile/change-password"))
	assert.False(t, f.store.IsAuthenticated())
}

func TestService_ChangePasswordKeepsSessionOnRejection(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.reply("POST /api/v1/profile/change-password", http.StatusBadRequest, map[string]any{
		"status": 400, "message": "Current password is incorrect",
	})
	require.NoError(t, f.store.Login(context.Background(), session.Credentials{AccessToken: "a1", RefreshToken: "r1"}, &testProfile))

	err := f.service.ChangePassword(context.Background(), ChangePasswordRequest{
		CurrentPassword:      "wrongpass1",
		NewPassword:          "newpass123",
		ConfirmationPassword: "newpass123",
	})
	require.Error(t, err)
	assert.Equal(t, "Current password is incorrect", apiclient.ErrorMessage(err))
	assert.True(t, f.store.IsAuthenticated())

	err = f.service.ChangePassword(context.Background(), ChangePasswordRequest{
		CurrentPassword:      "wrongpass1",
		NewPassword:          "newpass123",
		ConfirmationPassword: "different1",
	})
	var valErr validatorx.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Len(t, f.backend.callList(), 1)
}

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestService_Status(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		exp     time.Time
		expired bool
	}{
		{name: "valid for an hour", exp: now.Add(time.Hour), expired: false},
		{name: "inside the buffer", exp: now.Add(30 * time.Second), expired: true},
		{name: "already past", exp: now.Add(-time.Minute), expired: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, clock.Fixed(now))
			token := signed(t, tt.exp)
			require.NoError(t, f.store.Login(context.Background(), session.Credentials{AccessToken: token, RefreshToken: "r1"}, &testProfile))

			st := f.service.Status()
			assert.True(t, st.Authenticated)
			assert.Equal(t, tt.expired, st.Expired)
			assert.True(t, st.AccessTokenExpiry.Equal(tt.exp.Truncate(time.Second)))
			require.NotNil(t, st.Profile)
		})
	}

	t.Run("logged out", func(t *testing.T) {
		f := newFixture(t, clock.Fixed(now))
		st := f.service.Status()
		assert.False(t, st.Authenticated)
		assert.Nil(t, st.Profile)
		assert.False(t, st.Expired)
	})
}
