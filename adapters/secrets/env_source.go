package secrets

import (
	"context"
	"os"
	"strings"

	"github.com/layer-3/keepsake/core"
	"github.com/layer-3/keepsake/ports"
)

// DefaultSaltVar is the environment variable holding the answer salt
const DefaultSaltVar = "ANSWER_SALT"

// EnvSource reads the salt and digests from environment variables. Each
// digest reference names the variable holding that question's digest.
type EnvSource struct {
	saltVar string
	lookup  func(string) (string, bool)
}

// NewEnvSource creates a source backed by the process environment
func NewEnvSource(saltVar string) ports.SecretSource {
	return NewEnvSourceWithLookup(saltVar, os.LookupEnv)
}

// NewEnvSourceWithLookup creates a source backed by an arbitrary lookup
func NewEnvSourceWithLookup(saltVar string, lookup func(string) (string, bool)) ports.SecretSource {
	if saltVar == "" {
		saltVar = DefaultSaltVar
	}
	return &EnvSource{saltVar: saltVar, lookup: lookup}
}

// LoadSecrets resolves the salt and every requested digest reference.
// Unset variables are skipped; the matcher fails closed on them.
func (s *EnvSource) LoadSecrets(ctx context.Context, digestRefs []string) (*core.Secrets, error) {
	salt, _ := s.lookup(s.saltVar)

	digests := make(map[string]string, len(digestRefs))
	for _, ref := range digestRefs {
		if v, ok := s.lookup(ref); ok {
			digests[ref] = strings.TrimSpace(v)
		}
	}

	return core.NewSecrets(salt, digests), nil
}
