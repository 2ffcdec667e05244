package core

import (
	"fmt"
	"time"
)

// Frontier is the highest question id with a confirmed correct answer.
// Every question with id <= Frontier is unlocked; 0 means nothing is.
type Frontier int

// Advance applies a successful verification of qid. The frontier never
// moves backwards, even when an earlier question is answered again.
func (f Frontier) Advance(qid int) Frontier {
	if Frontier(qid) > f {
		return Frontier(qid)
	}
	return f
}

// Next returns the id of the question that follows the frontier
func (f Frontier) Next() int {
	return int(f) + 1
}

// Unlocked reports whether question id is visible at this frontier
func (f Frontier) Unlocked(id int) bool {
	return id > 0 && id <= int(f)
}

// UnlockPolicy decides whether a question may be attempted at a frontier
type UnlockPolicy struct {
	// EnforceOrder rejects attempts on questions beyond frontier+1
	EnforceOrder bool
}

// Admit returns ErrOutOfOrder when the policy forbids attempting qid
func (p UnlockPolicy) Admit(f Frontier, qid int) error {
	if p.EnforceOrder && qid > f.Next() {
		return fmt.Errorf("%w: question %d, next is %d", ErrOutOfOrder, qid, f.Next())
	}
	return nil
}

// VerificationResult is the outcome handed back to the caller.
// UnlockedUpTo is set only when Correct is true and equals the verified id.
type VerificationResult struct {
	Correct      bool `json:"correct"`
	UnlockedUpTo *int `json:"unlockedUpTo,omitempty"`
}

// Incorrect is the fail-closed result
func Incorrect() VerificationResult {
	return VerificationResult{}
}

// Unlocked is the result for a correct answer to qid
func Unlocked(qid int) VerificationResult {
	return VerificationResult{Correct: true, UnlockedUpTo: &qid}
}

// Progress represents a caller's frontier as carried by a progress token
type Progress struct {
	SessionID    string    // Unique identifier of the unlock session
	UnlockedUpTo Frontier  // Current frontier
	IssuedAt     time.Time // When this token was issued
	ExpiresAt    time.Time // When this token stops being accepted
}

// ProgressState summarizes where a caller stands in the sequence
type ProgressState struct {
	UnlockedUpTo      int  `json:"unlockedUpTo"`
	CurrentQuestionID int  `json:"currentQuestionId,omitempty"`
	Complete          bool `json:"complete"`
}

// UnlockEvent is published after a frontier advances
type UnlockEvent struct {
	SessionID    string    `json:"session_id"`
	QuestionID   int       `json:"question_id"`
	UnlockedUpTo int       `json:"unlocked_up_to"`
	Complete     bool      `json:"complete"`
	OccurredAt   time.Time `json:"occurred_at"`
}
