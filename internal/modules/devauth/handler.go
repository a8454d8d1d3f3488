package devauth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/OtmaneTouhami/budget-wise/internal/modules/pkg/httpx"
)

const userIDKey = "devauth.user_id"

// AuthHandler holds dependencies for the auth and profile HTTP handlers
type AuthHandler struct {
	service *Service
	jwt     *JWTManager
}

func NewAuthHandler(service *Service, jwt *JWTManager) *AuthHandler {
	return &AuthHandler{service: service, jwt: jwt}
}

// RegisterRoutes sets up /auth and /profile under the API group
func (h *AuthHandler) RegisterRoutes(apiRouteGroup *echo.Group) {
	authGroup := apiRouteGroup.Group("/auth")
	authGroup.POST("/register", h.registerHandler)
	authGroup.POST("/verify", h.verifyHandler)
	authGroup.POST("/resend-verification", h.resendVerificationHandler)
	authGroup.POST("/login", h.loginHandler)
	authGroup.POST("/refresh", h.refreshHandler)
	authGroup.POST("/logout", h.logoutHandler)

	profileGroup := apiRouteGroup.Group("/profile", h.RequireAccessToken)
	profileGroup.GET("", h.getProfileHandler)
	profileGroup.PUT("", h.updateProfileHandler)
	profileGroup.POST("/change-password", h.changePasswordHandler)
}

type RegisterRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=50"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	FirstName   string `json:"firstName" validate:"required"`
	LastName    string `json:"lastName" validate:"required"`
	PhoneNumber string `json:"phoneNumber"`
	CountryID   int64  `json:"countryId" validate:"required"`
}

type LoginRequest struct {
	LoginIdentifier string `json:"loginIdentifier" validate:"required"`
	Password        string `json:"password" validate:"required,min=8"`
}

type VerificationRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Token      string `json:"token" validate:"required"`
}

type ResendVerificationRequest struct {
	Identifier string `json:"identifier" validate:"required"`
}

type UpdateProfileRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email" validate:"omitempty,email"`
	PhoneNumber string `json:"phoneNumber"`
	DateFormat  string `json:"dateFormat" validate:"omitempty,oneof=DD/MM/YYYY MM/DD/YYYY YYYY-MM-DD"`
}

type ChangePasswordRequest struct {
	CurrentPassword      string `json:"currentPassword" validate:"required"`
	NewPassword          string `json:"newPassword" validate:"required,min=8"`
	ConfirmationPassword string `json:"confirmationPassword" validate:"required"`
}

// ProfileResponse is the body of GET and PUT /profile
type ProfileResponse struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	PhoneNumber string    `json:"phoneNumber,omitempty"`
	DateFormat  string    `json:"dateFormat,omitempty"`
	Country     string    `json:"country,omitempty"`
}

func (h *AuthHandler) registerHandler(c echo.Context) error {
	var req RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	_, err := h.service.Register(c.Request().Context(), RegisterParams{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		CountryID:   req.CountryID,
	})
	if err != nil {
		return err
	}
	// The account is inactive, so no tokens yet
	return httpx.SendSuccess(c, http.StatusOK, TokenPair{})
}

func (h *AuthHandler) verifyHandler(c echo.Context) error {
	var req VerificationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	pair, err := h.service.Verify(c.Request().Context(), req.Identifier, req.Token)
	if err != nil {
		return err
	}
	return httpx.SendSuccess(c, http.StatusOK, pair)
}

func (h *AuthHandler) resendVerificationHandler(c echo.Context) error {
	var req ResendVerificationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.service.ResendVerification(c.Request().Context(), req.Identifier); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

func (h *AuthHandler) loginHandler(c echo.Context) error {
	var req LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	pair, err := h.service.Login(c.Request().Context(), req.LoginIdentifier, req.Password)
	if err != nil {
		return err
	}
	return httpx.SendSuccess(c, http.StatusOK, pair)
}

func (h *AuthHandler) refreshHandler(c echo.Context) error {
	token, ok := bearerToken(c)
	if !ok {
		return ErrMissingBearerToken
	}
	pair, err := h.service.Refresh(c.Request().Context(), token)
	if err != nil {
		return err
	}
	return httpx.SendSuccess(c, http.StatusOK, pair)
}

// logoutHandler always answers 204; an absent or unknown token has nothing to revoke
func (h *AuthHandler) logoutHandler(c echo.Context) error {
	if token, ok := bearerToken(c); ok {
		if err := h.service.Logout(c.Request().Context(), token); err != nil {
			return err
		}
	}
	return httpx.SendNoContent(c)
}

func (h *AuthHandler) getProfileHandler(c echo.Context) error {
	user, err := h.service.Profile(c.Request().Context(), currentUserID(c))
	if err != nil {
		return err
	}
	return httpx.SendSuccess(c, http.StatusOK, toProfileResponse(user))
}

func (h *AuthHandler) updateProfileHandler(c echo.Context) error {
	var req UpdateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.service.UpdateProfile(c.Request().Context(), currentUserID(c), UpdateProfileParams(req))
	if err != nil {
		return err
	}
	return httpx.SendSuccess(c, http.StatusOK, toProfileResponse(user))
}

func (h *AuthHandler) changePasswordHandler(c echo.Context) error {
	var req ChangePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	err := h.service.ChangePassword(c.Request().Context(), currentUserID(c),
		req.CurrentPassword, req.NewPassword, req.ConfirmationPassword)
	if err != nil {
		return err
	}
	return httpx.SendNoContent(c)
}

// RequireAccessToken rejects requests without a valid access token and
// stores the token subject for the handlers
func (h *AuthHandler) RequireAccessToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := bearerToken(c)
		if !ok {
			return ErrMissingBearerToken
		}
		userID, err := h.jwt.Parse(token)
		if err != nil {
			return err
		}
		c.Set(userIDKey, userID)
		return next(c)
	}
}

func currentUserID(c echo.Context) uuid.UUID {
	id, _ := c.Get(userIDKey).(uuid.UUID)
	return id
}

func bearerToken(c echo.Context) (string, bool) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body format")
		}
		return err
	}
	return c.Validate(req)
}

func toProfileResponse(u *User) ProfileResponse {
	return ProfileResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		PhoneNumber: u.PhoneNumber,
		DateFormat:  u.DateFormat,
		Country:     Countries[u.CountryID],
	}
}
