package tokenizer

import "github.com/golang-jwt/jwt/v5"

// ProgressClaims combines standard claims with the unlock frontier.
// The JWT ID doubles as the session id.
type ProgressClaims struct {
	jwt.RegisteredClaims
	UnlockedUpTo int `json:"upto"`
}
