package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/OtmaneTouhami/budget-wise/internal/modules/apiclient"
	"github.com/OtmaneTouhami/budget-wise/internal/modules/pkg/clock"
	ctxlogger "github.com/OtmaneTouhami/budget-wise/internal/modules/pkg/logger/context"
	"github.com/OtmaneTouhami/budget-wise/internal/modules/pkg/validatorx"
	"github.com/OtmaneTouhami/budget-wise/internal/modules/session"
)

const (
	registerPath           = "/auth/register"
	verifyPath             = "/auth/verify"
	resendVerificationPath = "/auth/resend-verification"
	loginPath              = "/auth/login"
	logoutPath             = "/auth/logout"
	profilePath            = "/profile"
	changePasswordPath     = "/profile/change-password"
)

// API is the request surface of apiclient.Client the flows need
type API interface {
	Do(ctx context.Context, req apiclient.Request) (*apiclient.Response, error)
}

// SessionStore is the part of session.Store the flows mutate
type SessionStore interface {
	Snapshot() session.State
	Credentials() session.Credentials
	Login(ctx context.Context, creds session.Credentials, profile *session.Profile) error
	SetProfile(ctx context.Context, profile session.Profile) error
	Logout(ctx context.Context) error
}

var (
	_ API          = (*apiclient.Client)(nil)
	_ SessionStore = (*session.Store)(nil)
)

// Service runs the authentication flows of the API against the local session
type Service struct {
	api       API
	store     SessionStore
	validator *validatorx.Validator
	clock     clock.Clock
}

// NewService creates a new instance of the auth Service
func NewService(api API, store SessionStore, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		api:       api,
		store:     store,
		validator: validatorx.NewValidator(),
		clock:     clk,
	}
}

// Register creates an account. The account stays inactive until verified,
// so the session is left untouched.
func (s *Service) Register(ctx context.Context, req RegisterRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	if _, err := s.post(ctx, registerPath, req); err != nil {
		return fmt.Errorf("failed to register: %w", err)
	}
	ctxlogger.GetLogger(ctx).LogAttrs(ctx, slog.LevelInfo, "USER_REGISTERED", slog.String("username", req.Username))
	return nil
}

// Verify activates an account with the emailed code and starts a session
func (s *Service) Verify(ctx context.Context, identifier, token string) (*session.Profile, error) {
	req := VerifyRequest{Identifier: identifier, Token: token}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	resp, err := s.post(ctx, verifyPath, req)
	if err != nil {
		return nil, fmt.Errorf("failed to verify account: %w", err)
	}
	return s.startSession(ctx, resp)
}

// ResendVerification asks the server to issue a new verification code
func (s *Service) ResendVerification(ctx context.Context, identifier string) error {
	req := ResendVerificationRequest{Identifier: identifier}
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	if _, err := s.post(ctx, resendVerificationPath, req); err != nil {
		return fmt.Errorf("failed to resend verification: %w", err)
	}
	return nil
}

// Login exchanges credentials for a token pair, stores it and fetches the profile
func (s *Service) Login(ctx context.Context, identifier, password string) (*session.Profile, error) {
	req := LoginRequest{LoginIdentifier: identifier, Password: password}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	resp, err := s.post(ctx, loginPath, req)
	if err != nil {
		return nil, fmt.Errorf("failed to login: %w", err)
	}
	return s.startSession(ctx, resp)
}

// Logout revokes the refresh token on the server and clears the local
// session. The local session is cleared even when the server call fails.
func (s *Service) Logout(ctx context.Context) error {
	log := ctxlogger.GetLogger(ctx)

	if refreshToken := s.store.Credentials().RefreshToken; refreshToken != "" {
		_, err := s.api.Do(ctx, apiclient.Request{
			Method:      http.MethodPost,
			Path:        logoutPath,
			Header:      http.Header{"Authorization": []string{"Bearer " + refreshToken}},
			SkipRefresh: true,
		})
		if err != nil {
			log.LogAttrs(ctx, slog.LevelWarn, "REMOTE_LOGOUT_FAILED", slog.String("error", err.Error()))
		}
	}

	if err := s.store.Logout(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	log.LogAttrs(ctx, slog.LevelInfo, "USER_LOGGED_OUT")
	return nil
}

// Profile fetches the profile of the logged in user and stores it. An
// unauthorized result ends the session.
func (s *Service) Profile(ctx context.Context) (*session.Profile, error) {
	if !s.store.Snapshot().IsAuth {
		return nil, ErrNotAuthenticated
	}

	resp, err := s.api.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: profilePath})
	if err != nil {
		s.logoutIfUnauthorized(ctx, err)
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	return s.storeProfile(ctx, resp)
}

// EnsureProfile returns the stored profile, fetching it when missing
func (s *Service) EnsureProfile(ctx context.Context) (*session.Profile, error) {
	state := s.store.Snapshot()
	if !state.IsAuth {
		return nil, ErrNotAuthenticated
	}
	if state.User != nil {
		return state.User, nil
	}
	return s.Profile(ctx)
}

// UpdateProfile sends the changed fields and stores the profile the server returns
func (s *Service) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*session.Profile, error) {
	if !s.store.Snapshot().IsAuth {
		return nil, ErrNotAuthenticated
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	resp, err := s.api.Do(ctx, apiclient.Request{Method: http.MethodPut, Path: profilePath, Body: req})
	if err != nil {
		s.logoutIfUnauthorized(ctx, err)
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return s.storeProfile(ctx, resp)
}

// ChangePassword changes the password of the current user. The server
// revokes every refresh token of the account, so the local session ends too.
func (s *Service) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	if !s.store.Snapshot().IsAuth {
		return ErrNotAuthenticated
	}

	_, err := s.api.Do(ctx, apiclient.Request{Method: http.MethodPost, Path: changePasswordPath, Body: req})
	if err != nil {
		s.logoutIfUnauthorized(ctx, err)
		return fmt.Errorf("failed to change password: %w", err)
	}

	if err := s.store.Logout(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	ctxlogger.GetLogger(ctx).LogAttrs(ctx, slog.LevelInfo, "PASSWORD_CHANGED")
	return nil
}

// Status reports the local session state
func (s *Service) Status() Status {
	state := s.store.Snapshot()
	st := Status{Authenticated: state.IsAuth, Profile: state.User}
	if !state.IsAuth {
		return st
	}
	if exp, ok := session.TokenExpiry(state.AccessToken); ok {
		st.AccessTokenExpiry = exp
	}
	st.Expired = session.IsTokenExpired(state.AccessToken, session.DefaultExpiryBuffer, s.clock.Now())
	return st
}

func (s *Service) post(ctx context.Context, path string, body any) (*apiclient.Response, error) {
	return s.api.Do(ctx, apiclient.Request{
		Method:      http.MethodPost,
		Path:        path,
		Body:        body,
		SkipRefresh: true,
	})
}

// startSession stores the pair of a login or verify response, then loads
// the profile with it
func (s *Service) startSession(ctx context.Context, resp *apiclient.Response) (*session.Profile, error) {
	var pair TokenPair
	if err := resp.Decode(&pair); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(pair); err != nil {
		return nil, ErrMissingTokens
	}

	if err := s.store.Login(ctx, pair.credentials(), nil); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	ctxlogger.GetLogger(ctx).LogAttrs(ctx, slog.LevelInfo, "USER_LOGGED_IN")

	return s.Profile(ctx)
}

func (s *Service) storeProfile(ctx context.Context, resp *apiclient.Response) (*session.Profile, error) {
	var profile session.Profile
	if err := resp.Decode(&profile); err != nil {
		return nil, err
	}
	if err := s.store.SetProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to store profile: %w", err)
	}
	return &profile, nil
}

func (s *Service) logoutIfUnauthorized(ctx context.Context, err error) {
	if !apiclient.IsUnauthorized(err) && !errors.Is(err, apiclient.ErrRefreshFailed) {
		return
	}
	if logoutErr := s.store.Logout(ctx); logoutErr != nil {
		ctxlogger.GetLogger(ctx).LogAttrs(ctx, slog.LevelError, "SESSION_LOGOUT_FAILED",
			slog.String("error", logoutErr.Error()))
	}
}
