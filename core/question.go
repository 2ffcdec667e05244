package core

import (
	"fmt"
	"sort"
)

// Question is one step of the unlock sequence
type Question struct {
	ID       int
	Prompt   string
	Hint     string
	MediaRef string
	Answer   AnswerSpec
}

// PublicQuestion is the only view of a question that may leave the process.
// It deliberately has no answer or digest fields.
type PublicQuestion struct {
	ID       int    `json:"id"`
	Question string `json:"question"`
	Hint     string `json:"hint"`
	Photo    string `json:"photo"`
}

// Public strips the answer material from q
func (q Question) Public() PublicQuestion {
	return PublicQuestion{
		ID:       q.ID,
		Question: q.Prompt,
		Hint:     q.Hint,
		Photo:    q.MediaRef,
	}
}

// Site holds the greeting copy shown before the first question
type Site struct {
	Title    string
	Blessing string
}

// SiteConfig is the payload callers fetch before answering
type SiteConfig struct {
	Title     string           `json:"title"`
	Blessing  string           `json:"blessing"`
	Questions []PublicQuestion `json:"questions"`
}

// Bank is an immutable, id-ordered set of questions
type Bank struct {
	questions []Question
	index     map[int]int
}

// NewBank validates and indexes questions. Ids must be unique and form the
// contiguous range 1..N so that every frontier 0..N names a real state.
func NewBank(questions []Question) (*Bank, error) {
	sorted := make([]Question, len(questions))
	copy(sorted, questions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	index := make(map[int]int, len(sorted))
	for i, q := range sorted {
		if _, dup := index[q.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate question id %d", ErrInvalidBank, q.ID)
		}
		if q.ID != i+1 {
			return nil, fmt.Errorf("%w: question ids must run 1..%d without gaps, found %d", ErrInvalidBank, len(sorted), q.ID)
		}
		if !q.Answer.usable() {
			return nil, fmt.Errorf("%w: question %d has no usable %s answer", ErrInvalidBank, q.ID, q.Answer.Kind())
		}
		index[q.ID] = i
	}

	return &Bank{questions: sorted, index: index}, nil
}

// Len returns the number of questions
func (b *Bank) Len() int {
	return len(b.questions)
}

// Lookup returns the question with the given id
func (b *Bank) Lookup(id int) (Question, bool) {
	i, ok := b.index[id]
	if !ok {
		return Question{}, false
	}
	return b.questions[i], true
}

// Public returns the caller-safe view of every question, in id order
func (b *Bank) Public() []PublicQuestion {
	out := make([]PublicQuestion, 0, len(b.questions))
	for _, q := range b.questions {
		out = append(out, q.Public())
	}
	return out
}

// Current returns the question a caller at frontier f should answer next.
// The second result is false once everything is unlocked.
func (b *Bank) Current(f Frontier) (Question, bool) {
	return b.Lookup(f.Next())
}

// Complete reports whether frontier f has unlocked every question
func (b *Bank) Complete(f Frontier) bool {
	_, ok := b.Current(f)
	return !ok
}

// DigestRefs lists the digest references used by hashed questions
func (b *Bank) DigestRefs() []string {
	var refs []string
	for _, q := range b.questions {
		if q.Answer.Kind() == AnswerHashed {
			refs = append(refs, q.Answer.DigestRef())
		}
	}
	return refs
}
