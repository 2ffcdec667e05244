package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/keepsake/config"
	"github.com/layer-3/keepsake/core"
	"github.com/layer-3/keepsake/ports"
	"github.com/sirupsen/logrus"
)

// UnlockService handles the progressive unlock use cases
type UnlockService struct {
	site    core.Site
	bank    *core.Bank
	matcher *core.Matcher
	policy  core.UnlockPolicy

	tokenizer ports.Tokenizer
	store     ports.Store
	eventPub  ports.EventPublisher

	progressTTL time.Duration
	now         func() time.Time
}

// Option customizes an UnlockService
type Option func(*UnlockService)

// WithPolicy sets the unlock ordering policy
func WithPolicy(policy core.UnlockPolicy) Option {
	return func(s *UnlockService) { s.policy = policy }
}

// WithProgressTTL sets how long issued progress tokens stay valid
func WithProgressTTL(ttl time.Duration) Option {
	return func(s *UnlockService) { s.progressTTL = ttl }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *UnlockService) { s.now = now }
}

// VerifyOutcome is the result of a verification attempt
type VerifyOutcome struct {
	Result   core.VerificationResult
	Progress *core.Progress // frontier after applying the result
	Token    string         // progress token to hand back to the caller
	Hint     string         // set only when the answer was wrong
}

// NewUnlockService creates a new unlock service
func NewUnlockService(
	site core.Site,
	bank *core.Bank,
	matcher *core.Matcher,
	tokenizer ports.Tokenizer,
	store ports.Store,
	eventPub ports.EventPublisher,
	opts ...Option,
) *UnlockService {
	s := &UnlockService{
		site:        site,
		bank:        bank,
		matcher:     matcher,
		tokenizer:   tokenizer,
		store:       store,
		eventPub:    eventPub,
		progressTTL: config.DefaultProgressTTL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the caller-safe site configuration
func (s *UnlockService) Config() core.SiteConfig {
	return core.SiteConfig{
		Title:     s.site.Title,
		Blessing:  s.site.Blessing,
		Questions: s.bank.Public(),
	}
}

// StartProgress opens a new unlock session at frontier 0
func (s *UnlockService) StartProgress(ctx context.Context) (string, *core.Progress, error) {
	progress := s.newProgress(uuid.New().String(), 0)

	token, err := s.tokenizer.ProgressToToken(progress)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create progress token: %w", err)
	}

	config.WithContext(ctx).WithField("session_id", progress.SessionID).Info("progress session started")

	return token, progress, nil
}

// Progress validates a progress token and returns the progress it carries
func (s *UnlockService) Progress(ctx context.Context, token string) (*core.Progress, error) {
	progress, err := s.tokenizer.TokenToProgress(token)
	if err != nil {
		return nil, err
	}

	if s.now().After(progress.ExpiresAt) {
		return nil, core.ErrTokenExpired
	}

	revoked, err := s.store.IsSessionRevoked(ctx, progress.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to check session revocation: %w", err)
	}

	if revoked {
		return nil, core.ErrTokenInvalidated
	}

	return progress, nil
}

// State reports the frontier, the next question and whether all are solved
func (s *UnlockService) State(progress *core.Progress) core.ProgressState {
	state := core.ProgressState{UnlockedUpTo: int(progress.UnlockedUpTo)}
	if q, ok := s.bank.Current(progress.UnlockedUpTo); ok {
		state.CurrentQuestionID = q.ID
	} else {
		state.Complete = true
	}
	return state
}

// Verify checks an answer for question qid. An empty token starts a new
// session. Wrong answers are not errors: they produce an incorrect result
// with the question's hint and leave the progress untouched.
func (s *UnlockService) Verify(ctx context.Context, token string, qid int, answer string) (*VerifyOutcome, error) {
	log := config.WithContext(ctx).WithField("question_id", qid)

	question, ok := s.bank.Lookup(qid)
	if !ok {
		log.Warn("verification for unknown question")
		return nil, core.ErrUnknownQuestion
	}

	var progress *core.Progress
	if token == "" {
		var err error
		token, progress, err = s.StartProgress(ctx)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		progress, err = s.Progress(ctx, token)
		if err != nil {
			return nil, err
		}
	}
	log = log.WithField("session_id", progress.SessionID)

	if err := s.policy.Admit(progress.UnlockedUpTo, qid); err != nil {
		log.WithField("unlocked_up_to", int(progress.UnlockedUpTo)).Info("verification rejected by unlock policy")
		return nil, err
	}

	if !s.matcher.Verify(answer, question.Answer) {
		log.WithField("strategy", question.Answer.Kind().String()).Info("incorrect answer")
		return &VerifyOutcome{
			Result:   core.Incorrect(),
			Progress: progress,
			Token:    token,
			Hint:     question.Hint,
		}, nil
	}

	next := s.newProgress(progress.SessionID, progress.UnlockedUpTo.Advance(qid))
	newToken, err := s.tokenizer.ProgressToToken(next)
	if err != nil {
		return nil, fmt.Errorf("failed to create progress token: %w", err)
	}

	complete := s.bank.Complete(next.UnlockedUpTo)
	log = log.WithFields(logrus.Fields{
		"unlocked_up_to": int(next.UnlockedUpTo),
		"complete":       complete,
	})

	// Answering an already unlocked question again leaves the frontier as is
	if progress.UnlockedUpTo.Unlocked(qid) {
		log.Info("unlocked question answered again")
	} else {
		log.Info("question unlocked")

		event := core.UnlockEvent{
			SessionID:    next.SessionID,
			QuestionID:   qid,
			UnlockedUpTo: int(next.UnlockedUpTo),
			Complete:     complete,
			OccurredAt:   next.IssuedAt,
		}
		if err := s.eventPub.PublishUnlocked(ctx, event); err != nil {
			// The caller already earned the unlock; a lost event must not undo it
			log.WithError(err).Warn("failed to publish unlock event")
		}
	}

	return &VerifyOutcome{
		Result:   core.Unlocked(qid),
		Progress: next,
		Token:    newToken,
	}, nil
}

// Reset revokes the session behind token so its progress cannot be resumed
func (s *UnlockService) Reset(ctx context.Context, token string) error {
	progress, err := s.Progress(ctx, token)
	if err != nil {
		if errors.Is(err, core.ErrTokenInvalidated) {
			return nil
		}
		return err
	}

	remaining := progress.ExpiresAt.Sub(s.now())
	if err := s.store.RevokeSession(ctx, progress.SessionID, remaining); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	config.WithContext(ctx).WithField("session_id", progress.SessionID).Info("progress session reset")

	return nil
}

func (s *UnlockService) newProgress(sessionID string, frontier core.Frontier) *core.Progress {
	now := s.now()
	return &core.Progress{
		SessionID:    sessionID,
		UnlockedUpTo: frontier,
		IssuedAt:     now,
		ExpiresAt:    now.Add(s.progressTTL),
	}
}
