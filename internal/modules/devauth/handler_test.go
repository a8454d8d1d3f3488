package devauth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OtmaneTouhami/budget-wise/internal/modules/pkg/httpx"
	"github.com/OtmaneTouhami/budget-wise/pkg/logger"
)

type handlerFixture struct {
	*serviceFixture
	e   *echo.Echo
	reg *prometheus.Registry
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	f := newServiceFixture(t)
	reg := prometheus.NewRegistry()
	e := NewServer(NewAuthHandler(f.service, f.jwt), logger.Discard(), reg)
	return &handlerFixture{serviceFixture: f, e: e, reg: reg}
}

func (f *handlerFixture) do(t *testing.T, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, APIPrefix+path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) httpx.APIError {
	t.Helper()
	var apiErr httpx.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr
}

const registerBody = `{"username":"jdoe","email":"jdoe@example.com","password":"s3cretpass","firstName":"John","lastName":"Doe","countryId":1}`

func TestHandler_FullFlow(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/auth/register", registerBody, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	code := f.notifier.code("jdoe@example.com")
	rec = f.do(t, http.MethodPost, "/auth/verify", `{"identifier":"jdoe","token":"`+code+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/auth/login", `{"loginIdentifier":"jdoe","password":"s3cretpass"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var pair TokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	rec = f.do(t, http.MethodGet, "/profile", "", pair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var profile ProfileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, "jdoe", profile.Username)
	assert.Equal(t, "Morocco", profile.Country)

	rec = f.do(t, http.MethodPut, "/profile", `{"lastName":"Dough"}`, pair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, "Dough", profile.LastName)

	rec = f.do(t, http.MethodPost, "/auth/refresh", "", pair.RefreshToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rotated TokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rotated))
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	rec = f.do(t, http.MethodPost, "/auth/logout", "", rotated.RefreshToken)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth/refresh", "", rotated.RefreshToken)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	apiErr := decodeAPIError(t, rec)
	assert.Equal(t, "Invalid refresh token", apiErr.Message)
	assert.Equal(t, "/api/v1/auth/refresh", apiErr.Path)
	assert.Equal(t, "Unauthorized", apiErr.Reason)
}

func TestHandler_ValidationErrorBody(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/auth/register", `{"username":"jd","email":"nope","password":"short"}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	apiErr := decodeAPIError(t, rec)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Validation failed", apiErr.Message)
	for _, field := range []string{"username", "email", "password", "firstName", "lastName", "countryId"} {
		assert.Contains(t, apiErr.ValidationErrors, field)
	}
}

func TestHandler_MalformedBody(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/auth/login", `{"loginIdentifier":`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body format", decodeAPIError(t, rec).Message)
}

func TestHandler_DomainErrorStatuses(t *testing.T) {
	f := newHandlerFixture(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/auth/register", registerBody, "").Code)

	tests := []struct {
		name    string
		path    string
		body    string
		status  int
		message string
	}{
		{"duplicate username", "/auth/register", registerBody, http.StatusConflict, "Username already taken"},
		{"unverified login", "/auth/login", `{"loginIdentifier":"jdoe","password":"s3cretpass"}`, http.StatusForbidden, "Account is not verified"},
		{"bad credentials", "/auth/login", `{"loginIdentifier":"jdoe","password":"wrongpass"}`, http.StatusUnauthorized, "Invalid credentials"},
		{"bad code", "/auth/verify", `{"identifier":"jdoe","token":"000000x"}`, http.StatusBadRequest, "Invalid verification token"},
		{"unknown user", "/auth/resend-verification", `{"identifier":"ghost"}`, http.StatusNotFound, "User not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, tt.path, tt.body, "")
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.message, decodeAPIError(t, rec).Message)
		})
	}
}

func TestHandler_ProfileRequiresAccessToken(t *testing.T) {
	f := newHandlerFixture(t)
	pair := f.registerActive(t)

	rec := f.do(t, http.MethodGet, "/profile", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer token is missing or malformed", decodeAPIError(t, rec).Message)

	rec = f.do(t, http.MethodGet, "/profile", "", pair.RefreshToken)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid or expired access token", decodeAPIError(t, rec).Message)

	f.clock.Advance(20 * time.Minute)
	rec = f.do(t, http.MethodGet, "/profile", "", pair.AccessToken)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_ChangePassword(t *testing.T) {
	f := newHandlerFixture(t)
	pair := f.registerActive(t)

	rec := f.do(t, http.MethodPost, "/profile/change-password",
		`{"currentPassword":"wrongpass","newPassword":"newpass123","confirmationPassword":"newpass123"}`, pair.AccessToken)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/profile/change-password",
		`{"currentPassword":"s3cretpass","newPassword":"newpass123","confirmationPassword":"newpass123"}`, pair.AccessToken)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
}

func TestHandler_LogoutWithoutTokenIsNoContent(t *testing.T) {
	f := newHandlerFixture(t)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/auth/logout", "", "").Code)
}

func TestHandler_OptionsProbe(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodOptions, "/", "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandler_Metrics(t *testing.T) {
	f := newHandlerFixture(t)
	f.do(t, http.MethodPost, "/auth/login", `{"loginIdentifier":"ghost","password":"s3cretpass"}`, "")
	f.do(t, http.MethodPost, "/auth/logout", "", "")

	expected := `
# HELP budgetwise_http_requests_total HTTP requests served by route, method and status code
# TYPE budgetwise_http_requests_total counter
budgetwise_http_requests_total{code="204",method="POST",route="/api/v1/auth/logout"} 1
budgetwise_http_requests_total{code="401",method="POST",route="/api/v1/auth/login"} 1
`
	require.NoError(t, testutil.GatherAndCompare(f.reg, strings.NewReader(expected), "budgetwise_http_requests_total"))
}
