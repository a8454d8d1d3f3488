package devauth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/OtmaneTouhami/budget-wise/internal/modules/pkg/clock"
)

// TokenService issues token pairs and rotates refresh tokens. A refresh
// token is single use: rotating it revokes it.
type TokenService struct {
	tokenRepo       TokenRepository
	jwt             *JWTManager
	refreshTokenTTL time.Duration
	clock           clock.Clock
}

func NewTokenService(repo TokenRepository, jwt *JWTManager, refreshTTL time.Duration, clk clock.Clock) *TokenService {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &TokenService{
		tokenRepo:       repo,
		jwt:             jwt,
		refreshTokenTTL: refreshTTL,
		clock:           clk,
	}
}

func (s *TokenService) NewPairForUser(ctx context.Context, userID uuid.UUID) (*TokenPair, error) {
	accessToken, err := s.jwt.Generate(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, refreshTokenHash, err := generateOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	rt := &RefreshToken{
		TokenHash: refreshTokenHash,
		UserID:    userID,
		ExpiresAt: s.clock.Now().Add(s.refreshTokenTTL),
	}
	if err := s.tokenRepo.Save(ctx, rt); err != nil {
		return nil, fmt.Errorf("failed to save refresh token: %w", err)
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Rotate trades a refresh token for a new pair
func (s *TokenService) Rotate(ctx context.Context, refreshToken string) (*TokenPair, error) {
	rt, err := s.tokenRepo.Revoke(ctx, hashToken(refreshToken))
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	if !s.clock.Now().Before(rt.ExpiresAt) {
		return nil, ErrRefreshTokenExpired
	}
	return s.NewPairForUser(ctx, rt.UserID)
}

// Revoke invalidates one refresh token. Unknown tokens are ignored.
func (s *TokenService) Revoke(ctx context.Context, refreshToken string) error {
	_, err := s.tokenRepo.Revoke(ctx, hashToken(refreshToken))
	if err != nil && !errors.Is(err, ErrInvalidRefreshToken) {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

func (s *TokenService) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	return s.tokenRepo.RevokeAllForUser(ctx, userID)
}

func generateOpaqueToken() (token, hash string, err error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(randomBytes)
	return token, hashToken(token), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
