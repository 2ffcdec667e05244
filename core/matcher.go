package core

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Matcher decides whether a user answer satisfies an AnswerSpec. It never
// returns, logs or otherwise exposes accepted answers or digest material.
type Matcher struct {
	secrets *Secrets
}

// NewMatcher creates a matcher bound to the given secrets. A nil secrets
// value is allowed: hashed verification then always fails closed.
func NewMatcher(secrets *Secrets) *Matcher {
	return &Matcher{secrets: secrets}
}

// Verify dispatches on the spec's strategy
func (m *Matcher) Verify(answer string, spec AnswerSpec) bool {
	switch spec.kind {
	case AnswerPlain:
		return VerifyPlain(answer, spec.accepted)
	case AnswerHashed:
		return m.VerifyHashed(answer, spec.digestRef)
	default:
		return false
	}
}

// VerifyPlain reports whether answer equals any accepted answer after both
// sides are normalized. An empty accepted list never matches.
func VerifyPlain(answer string, accepted []string) bool {
	if len(accepted) == 0 {
		return false
	}
	want := Normalize(answer)
	for _, candidate := range accepted {
		if Normalize(candidate) == want {
			return true
		}
	}
	return false
}

// VerifyHashed compares the salted digest of the normalized answer with the
// digest stored under digestRef. Missing salt or digest fails closed and
// is indistinguishable from a wrong answer.
func (m *Matcher) VerifyHashed(answer string, digestRef string) bool {
	salt, ok := m.secrets.Salt()
	if !ok {
		return false
	}
	expected, ok := m.secrets.Digest(digestRef)
	if !ok {
		return false
	}

	got := HashAnswer(Normalize(answer), salt)
	expected = strings.ToLower(strings.TrimSpace(expected))

	if subtle.ConstantTimeEq(int32(len(got)), int32(len(expected))) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

// HashAnswer returns the lowercase hex SHA-256 of normalized+salt. Callers
// are expected to pass an already normalized answer.
func HashAnswer(normalized, salt string) string {
	sum := sha256.Sum256([]byte(normalized + salt))
	return hex.EncodeToString(sum[:])
}

// DigestFor normalizes a raw answer and hashes it with salt, producing the
// value to provision for a hashed question.
func DigestFor(raw, salt string) string {
	return HashAnswer(Normalize(raw), salt)
}
