package ports

import "github.com/layer-3/keepsake/core"

// Tokenizer converts between progress and signed tokens
type Tokenizer interface {
	ProgressToToken(progress *core.Progress) (string, error)
	TokenToProgress(token string) (*core.Progress, error)
}
