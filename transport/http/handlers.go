package http

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/keepsake/config"
	"github.com/layer-3/keepsake/core"
	"github.com/layer-3/keepsake/service"
)

// UnlockHandlers contains HTTP handlers for the unlock endpoints
type UnlockHandlers struct {
	unlockService *service.UnlockService
}

// NewUnlockHandlers creates new unlock handlers
func NewUnlockHandlers(unlockService *service.UnlockService) *UnlockHandlers {
	return &UnlockHandlers{
		unlockService: unlockService,
	}
}

type verifyRequest struct {
	QuestionID json.Number `json:"questionId"`
	Answer     interface{} `json:"answer"`
}

type verifyResponse struct {
	core.VerificationResult
	Frontier      int    `json:"frontier"`
	ProgressToken string `json:"progressToken"`
	Hint          string `json:"hint,omitempty"`
}

type progressResponse struct {
	core.ProgressState
	ProgressToken string `json:"progressToken,omitempty"`
}

// Config returns the site copy and the public question list
func (h *UnlockHandlers) Config(c *gin.Context) {
	c.JSON(http.StatusOK, h.unlockService.Config())
}

// StartProgress opens a new unlock session
func (h *UnlockHandlers) StartProgress(c *gin.Context) {
	token, progress, err := h.unlockService.StartProgress(c.Request.Context())
	if err != nil {
		config.WithContext(c.Request.Context()).WithError(err).Error("failed to start progress")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start progress"})
		return
	}

	c.JSON(http.StatusCreated, progressResponse{
		ProgressState: h.unlockService.State(progress),
		ProgressToken: token,
	})
}

// Progress reports the caller's frontier and current question
func (h *UnlockHandlers) Progress(c *gin.Context) {
	progress, ok := c.MustGet(ctxProgress).(*core.Progress)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Progress not found in context"})
		return
	}

	c.JSON(http.StatusOK, progressResponse{ProgressState: h.unlockService.State(progress)})
}

// Reset revokes the caller's session
func (h *UnlockHandlers) Reset(c *gin.Context) {
	token := c.GetString(ctxProgressToken)

	if err := h.unlockService.Reset(c.Request.Context(), token); err != nil {
		status, msg := progressError(err)
		if status >= http.StatusInternalServerError {
			config.WithContext(c.Request.Context()).WithError(err).Error("failed to reset progress")
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Progress reset"})
}

// Verify checks an answer. Malformed answers are treated as wrong answers;
// a missing or unknown question id is rejected before reaching the matcher.
func (h *UnlockHandlers) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, core.Incorrect())
		return
	}

	qid, ok := questionID(req.QuestionID)
	if !ok {
		c.JSON(http.StatusBadRequest, core.Incorrect())
		return
	}

	answer, _ := req.Answer.(string)
	token, _ := bearerToken(c)

	outcome, err := h.unlockService.Verify(c.Request.Context(), token, qid, answer)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrUnknownQuestion):
			c.JSON(http.StatusBadRequest, core.Incorrect())
		case errors.Is(err, core.ErrOutOfOrder):
			c.JSON(http.StatusConflict, gin.H{"correct": false, "error": "Question is locked"})
		default:
			status, msg := progressError(err)
			if status >= http.StatusInternalServerError {
				config.WithContext(c.Request.Context()).WithError(err).Error("verification failed")
			}
			c.JSON(status, gin.H{"correct": false, "error": msg})
		}
		return
	}

	c.JSON(http.StatusOK, verifyResponse{
		VerificationResult: outcome.Result,
		Frontier:           int(outcome.Progress.UnlockedUpTo),
		ProgressToken:      outcome.Token,
		Hint:               outcome.Hint,
	})
}

// questionID accepts any JSON number or numeric string with an integral
// value, so 3, 3.0, "3" and "3e0" all name question 3
func questionID(n json.Number) (int, bool) {
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
