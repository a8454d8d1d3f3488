package devauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/OtmaneTouhami/budget-wise/internal/modules/pkg/clock"
)

// JWTManager signs and checks HS256 access tokens carrying sub, iat and exp
type JWTManager struct {
	secretKey      []byte
	accessTokenTTL time.Duration
	clock          clock.Clock
}

func NewJWTManager(secret string, accessTTL time.Duration, clk clock.Clock) (*JWTManager, error) {
	if len(secret) < 16 {
		return nil, errors.New("jwt secret must be at least 16 bytes")
	}
	if accessTTL <= 0 {
		return nil, errors.New("access token ttl must be positive")
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &JWTManager{
		secretKey:      []byte(secret),
		accessTokenTTL: accessTTL,
		clock:          clk,
	}, nil
}

func (m *JWTManager) Generate(userID uuid.UUID) (string, error) {
	now := m.clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTokenTTL)),
		// jti keeps two tokens issued within the same second distinct
		ID: uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
}

// Parse verifies the signature and expiry of token and returns its subject
func (m *JWTManager) Parse(token string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return m.secretKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidAccessToken, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", ErrInvalidAccessToken)
	}
	return userID, nil
}
