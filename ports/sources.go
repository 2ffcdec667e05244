package ports

import (
	"context"

	"github.com/layer-3/keepsake/core"
)

// QuestionSource loads the site copy and question bank once at startup
type QuestionSource interface {
	LoadBank(ctx context.Context) (core.Site, *core.Bank, error)
}

// SecretSource loads the salt and the digests for the given references.
// Missing material is not an error: verification fails closed instead.
type SecretSource interface {
	LoadSecrets(ctx context.Context, digestRefs []string) (*core.Secrets, error)
}
