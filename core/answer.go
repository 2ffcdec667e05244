package core

// AnswerKind tags which verification strategy a question uses
type AnswerKind int

const (
	AnswerNone AnswerKind = iota
	AnswerPlain
	AnswerHashed
)

func (k AnswerKind) String() string {
	switch k {
	case AnswerPlain:
		return "plain"
	case AnswerHashed:
		return "hashed"
	default:
		return "none"
	}
}

// AnswerSpec is either a list of accepted plaintext answers or a reference
// to a salted digest provisioned out of band. The zero value matches nothing.
type AnswerSpec struct {
	kind      AnswerKind
	accepted  []string
	digestRef string
}

// PlainAnswers builds a spec that accepts any of the given answers
func PlainAnswers(accepted ...string) AnswerSpec {
	cp := make([]string, len(accepted))
	copy(cp, accepted)
	return AnswerSpec{kind: AnswerPlain, accepted: cp}
}

// HashedAnswer builds a spec that checks against the digest stored under ref
func HashedAnswer(digestRef string) AnswerSpec {
	return AnswerSpec{kind: AnswerHashed, digestRef: digestRef}
}

// Kind returns the strategy tag
func (a AnswerSpec) Kind() AnswerKind {
	return a.kind
}

// DigestRef returns the digest reference for hashed specs, "" otherwise
func (a AnswerSpec) DigestRef() string {
	return a.digestRef
}

// AcceptedCount returns the number of plaintext answers
func (a AnswerSpec) AcceptedCount() int {
	return len(a.accepted)
}

// usable reports whether the spec can ever match, used when validating a bank
func (a AnswerSpec) usable() bool {
	switch a.kind {
	case AnswerPlain:
		if len(a.accepted) == 0 {
			return false
		}
		for _, ans := range a.accepted {
			if Normalize(ans) == "" {
				return false
			}
		}
		return true
	case AnswerHashed:
		return a.digestRef != ""
	default:
		return false
	}
}
