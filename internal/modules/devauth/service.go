package devauth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/OtmaneTouhami/budget-wise/internal/modules/pkg/clock"
	ctxlogger "github.com/OtmaneTouhami/budget-wise/internal/modules/pkg/logger/context"
)

// RegisterParams holds the data of a new account
type RegisterParams struct {
	Username    string
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber string
	CountryID   int64
}

// UpdateProfileParams holds profile changes. Empty fields are left as is.
type UpdateProfileParams struct {
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	DateFormat  string
}

// Service implements the account and session use cases of the dev API
type Service struct {
	users           UserRepository
	tokens          *TokenService
	passwords       *PasswordManager
	notifier        Notifier
	clock           clock.Clock
	verificationTTL time.Duration

	// writes serializes account mutations so uniqueness checks hold
	writes sync.Mutex
}

func NewService(
	users UserRepository,
	tokens *TokenService,
	passwords *PasswordManager,
	notifier Notifier,
	clk clock.Clock,
	verificationTTL time.Duration,
) *Service {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		users:           users,
		tokens:          tokens,
		passwords:       passwords,
		notifier:        notifier,
		clock:           clk,
		verificationTTL: verificationTTL,
	}
}

// Register creates an inactive account and sends its verification code
func (s *Service) Register(ctx context.Context, p RegisterParams) (*User, error) {
	if _, ok := Countries[p.CountryID]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCountry, p.CountryID)
	}

	s.writes.Lock()
	defer s.writes.Unlock()

	if err := s.ensureFree(ctx, p.Username, ErrUsernameTaken); err != nil {
		return nil, err
	}
	if err := s.ensureFree(ctx, p.Email, ErrEmailAlreadyInUse); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(p.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	code, err := generateVerificationCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification code: %w", err)
	}

	now := s.clock.Now().UTC()
	user := &User{
		ID:                 uuid.New(),
		Username:           p.Username,
		Email:              strings.ToLower(p.Email),
		PasswordHash:       hash,
		FirstName:          p.FirstName,
		LastName:           p.LastName,
		PhoneNumber:        p.PhoneNumber,
		DateFormat:         "DD/MM/YYYY",
		CountryID:          p.CountryID,
		VerificationCode:   code,
		VerificationExpiry: now.Add(s.verificationTTL),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	s.sendVerification(ctx, user)
	return user, nil
}

// Verify activates the account and logs it in
func (s *Service) Verify(ctx context.Context, identifier, code string) (*TokenPair, error) {
	s.writes.Lock()
	user, err := s.users.FindByIdentifier(ctx, identifier)
	if err != nil {
		s.writes.Unlock()
		return nil, err
	}

	switch {
	case user.Active:
		err = ErrAlreadyVerified
	case user.VerificationCode == "" || code != user.VerificationCode:
		err = ErrInvalidVerification
	case s.clock.Now().After(user.VerificationExpiry):
		err = ErrVerificationExpired
	}
	if err != nil {
		s.writes.Unlock()
		return nil, err
	}

	user.Active = true
	user.VerificationCode = ""
	user.VerificationExpiry = time.Time{}
	user.UpdatedAt = s.clock.Now().UTC()
	err = s.users.Save(ctx, user)
	s.writes.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to activate user: %w", err)
	}

	ctxlogger.GetLogger(ctx).LogAttrs(ctx, slog.LevelInfo, "ACCOUNT_VERIFIED", slog.String("user_id", user.ID.String()))
	return s.tokens.NewPairForUser(ctx, user.ID)
}

// ResendVerification issues a fresh code for an inactive account
func (s *Service) ResendVerification(ctx context.Context, identifier string) error {
	s.writes.Lock()
	defer s.writes.Unlock()

	user, err := s.users.FindByIdentifier(ctx, identifier)
	if err != nil {
		return err
	}
	if user.Active {
		return ErrAlreadyVerified
	}

	code, err := generateVerificationCode()
	if err != nil {
		return fmt.Errorf("failed to generate verification code: %w", err)
	}
	user.VerificationCode = code
	user.VerificationExpiry = s.clock.Now().UTC().Add(s.verificationTTL)
	if err := s.users.Save(ctx, user); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	s.sendVerification(ctx, user)
	return nil
}

// Login checks the password of an active account and issues a token pair
func (s *Service) Login(ctx context.Context, identifier, password string) (*TokenPair, error) {
	user, err := s.users.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	match, err := s.passwords.Verify(password, user.PasswordHash)
	if err != nil || !match {
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, ErrAccountNotVerified
	}

	s.writes.Lock()
	now := s.clock.Now().UTC()
	user.LastLoginAt = &now
	err = s.users.Save(ctx, user)
	s.writes.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	return s.tokens.NewPairForUser(ctx, user.ID)
}

// Refresh rotates a refresh token into a new pair
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	return s.tokens.Rotate(ctx, refreshToken)
}

// Logout revokes one refresh token
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.Revoke(ctx, refreshToken)
}

func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (*User, error) {
	return s.users.FindByID(ctx, userID)
}

func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, p UpdateProfileParams) (*User, error) {
	s.writes.Lock()
	defer s.writes.Unlock()

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if p.Email != "" && !strings.EqualFold(p.Email, user.Email) {
		if err := s.ensureFree(ctx, p.Email, ErrEmailTakenByOtherUser); err != nil {
			return nil, err
		}
		user.Email = strings.ToLower(p.Email)
	}
	if p.FirstName != "" {
		user.FirstName = p.FirstName
	}
	if p.LastName != "" {
		user.LastName = p.LastName
	}
	if p.PhoneNumber != "" {
		user.PhoneNumber = p.PhoneNumber
	}
	if p.DateFormat != "" {
		user.DateFormat = p.DateFormat
	}
	user.UpdatedAt = s.clock.Now().UTC()

	if err := s.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}
	return user, nil
}

// ChangePassword replaces the password and signs out every session of the user
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, current, next, confirmation string) error {
	if next != confirmation {
		return ErrPasswordsDoNotMatch
	}

	s.writes.Lock()
	defer s.writes.Unlock()

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	match, err := s.passwords.Verify(current, user.PasswordHash)
	if err != nil || !match {
		return ErrCurrentPasswordWrong
	}

	hash, err := s.passwords.Hash(next)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.clock.Now().UTC()
	if err := s.users.Save(ctx, user); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return nil
}

// ensureFree returns taken when identifier already belongs to an account
func (s *Service) ensureFree(ctx context.Context, identifier string, taken error) error {
	_, err := s.users.FindByIdentifier(ctx, identifier)
	switch {
	case err == nil:
		return taken
	case errors.Is(err, ErrUserNotFound):
		return nil
	default:
		return fmt.Errorf("failed to look up %q: %w", identifier, err)
	}
}

// sendVerification never fails the calling flow; the user can ask for a resend
func (s *Service) sendVerification(ctx context.Context, user *User) {
	if err := s.notifier.SendVerification(ctx, user.Email, user.VerificationCode); err != nil {
		ctxlogger.GetLogger(ctx).LogAttrs(ctx, slog.LevelError, "VERIFICATION_SEND_FAILED",
			slog.String("email", user.Email),
			slog.String("error", err.Error()))
	}
}

func generateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
