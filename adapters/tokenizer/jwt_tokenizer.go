package tokenizer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/keepsake/core"
	"github.com/layer-3/keepsake/ports"
)

const AudienceProgress = "keepsake:progress"

// JWTTokenizer implements the Tokenizer interface using ES256 JWTs
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey *ecdsa.PrivateKey) ports.Tokenizer {
	return &JWTTokenizer{signKey: signKey}
}

// ProgressToToken signs the progress into a JWT
func (j *JWTTokenizer) ProgressToToken(progress *core.Progress) (string, error) {
	if progress.UnlockedUpTo < 0 {
		return "", fmt.Errorf("negative frontier %d: %w", progress.UnlockedUpTo, core.ErrInvalidToken)
	}

	claims := ProgressClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        progress.SessionID,
			ExpiresAt: jwt.NewNumericDate(progress.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(progress.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceProgress},
		},
		UnlockedUpTo: int(progress.UnlockedUpTo),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign progress token: %w", err)
	}

	return signedToken, nil
}

// TokenToProgress verifies a progress token and returns the progress it carries
func (j *JWTTokenizer) TokenToProgress(tokenStr string) (*core.Progress, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &ProgressClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithAudience(AudienceProgress),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.ErrTokenExpired
		}
		return nil, fmt.Errorf("failed to parse progress token: %w", core.ErrInvalidToken)
	}

	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*ProgressClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims type: %w", core.ErrInvalidToken)
	}

	if claims.ID == "" || claims.UnlockedUpTo < 0 || claims.IssuedAt == nil {
		return nil, fmt.Errorf("incomplete progress claims: %w", core.ErrInvalidToken)
	}

	return &core.Progress{
		SessionID:    claims.ID,
		UnlockedUpTo: core.Frontier(claims.UnlockedUpTo),
		IssuedAt:     claims.IssuedAt.Time,
		ExpiresAt:    claims.ExpiresAt.Time,
	}, nil
}
