package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/keepsake/adapters/events"
	"github.com/layer-3/keepsake/adapters/store"
	"github.com/layer-3/keepsake/adapters/tokenizer"
	"github.com/layer-3/keepsake/core"
	"github.com/layer-3/keepsake/service"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSalt = "pepper-for-tests"

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, policy core.UnlockPolicy, opts Options) *gin.Engine {
	t.Helper()

	bank, err := core.NewBank([]core.Question{
		{ID: 1, Prompt: "Where was our first coffee?", Hint: "green logo", MediaRef: "photo1.jpg", Answer: core.PlainAnswers("Starbucks", " starbucks ")},
		{ID: 2, Prompt: "When did we meet?", Hint: "autumn", MediaRef: "photo2.jpg", Answer: core.PlainAnswers("2025-10-21")},
		{ID: 3, Prompt: "What was my gift?", Hint: "it ticks", MediaRef: "photo3.jpg", Answer: core.HashedAnswer("Q3_HASH")},
	})
	require.NoError(t, err)

	key, err := tokenizer.GenerateSigningKey()
	require.NoError(t, err)

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	svc := service.NewUnlockService(
		core.Site{Title: "Happy Birthday", Blessing: "Enjoy"},
		bank,
		core.NewMatcher(core.NewSecrets(testSalt, map[string]string{"Q3_HASH": core.DigestFor("手錶", testSalt)})),
		tokenizer.NewJWTTokenizer(key),
		store.NewMemoryStore(),
		events.NewWatermillPublisher(pubSub),
		service.WithPolicy(policy),
	)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return SetupRouter(svc, logger, opts)
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var out map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestConfigEndpoint(t *testing.T) {
	router := newTestRouter(t, core.UnlockPolicy{}, Options{})

	w, body := doJSON(t, router, http.MethodGet, "/api/config", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "Happy Birthday", body["title"])
	questions, ok := body["questions"].([]interface{})
	require.True(t, ok)
	require.Len(t, questions, 3)
	assert.Equal(t, map[string]interface{}{
		"id": float64(1), "question": "Where was our first coffee?", "hint": "green logo", "photo": "photo1.jpg",
	}, questions[0])

	raw := w.Body.String()
	for _, leak := range []string{"Starbucks", "starbucks", "2025-10-21", "Q3_HASH", testSalt} {
		assert.NotContains(t, raw, leak)
	}
}

func TestVerifyEndpoint(t *testing.T) {
	router := newTestRouter(t, core.UnlockPolicy{}, Options{})

	t.Run("correct answer", func(t *testing.T) {
		w, body := doJSON(t, router, http.MethodPost, "/api/verify", "", map[string]interface{}{"questionId": 1, "answer": "STARBUCKS"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, body["correct"])
		assert.Equal(t, float64(1), body["unlockedUpTo"])
		assert.Equal(t, float64(1), body["frontier"])
		assert.NotEmpty(t, body["progressToken"])
		assert.NotContains(t, body, "hint")
	})

	t.Run("wrong answer returns hint", func(t *testing.T) {
		w, body := doJSON(t, router, http.MethodPost, "/api/verify", "", map[string]interface{}{"questionId": 1, "answer": "Costa"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, false, body["correct"])
		assert.NotContains(t, body, "unlockedUpTo")
		assert.Equal(t, "green logo", body["hint"])
	})

	t.Run("numeric string question id", func(t *testing.T) {
		w, body := doJSON(t, router, http.MethodPost, "/api/verify", "", `{"questionId":"2","answer":"2025 - 10 - 21"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, body["correct"])
	})

	t.Run("integral float question ids", func(t *testing.T) {
		for _, body := range []string{
			`{"questionId":1.0,"answer":"starbucks"}`,
			`{"questionId":"1e0","answer":"starbucks"}`,
			`{"questionId":"1.0","answer":"starbucks"}`,
		} {
			w, resp := doJSON(t, router, http.MethodPost, "/api/verify", "", body)
			require.Equal(t, http.StatusOK, w.Code, body)
			assert.Equal(t, true, resp["correct"], body)
			assert.Equal(t, float64(1), resp["unlockedUpTo"], body)
		}
	})

	t.Run("fractional question id", func(t *testing.T) {
		w, body := doJSON(t, router, http.MethodPost, "/api/verify", "", `{"questionId":1.5,"answer":"starbucks"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, map[string]interface{}{"correct": false}, body)
	})

	t.Run("hashed answer", func(t *testing.T) {
		w, body := doJSON(t, router, http.MethodPost, "/api/verify", "", map[string]interface{}{"questionId": 3, "answer": "手錶　"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, body["correct"])
	})

	t.Run("non-string answer fails closed", func(t *testing.T) {
		w, body := doJSON(t, router, http.MethodPost, "/api/verify", "", `{"questionId":1,"answer":["Starbucks"]}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, false, body["correct"])
	})

	t.Run("missing question id", func(t *testing.T) {
		w, body := doJSON(t, router, http.MethodPost, "/api/verify", "", `{"answer":"Starbucks"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, map[string]interface{}{"correct": false}, body)
	})

	t.Run("malformed body", func(t *testing.T) {
		w, body := doJSON(t, router, http.MethodPost, "/api/verify", "", `{"questionId":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, map[string]interface{}{"correct": false}, body)
	})

	t.Run("unknown question", func(t *testing.T) {
		w, body := doJSON(t, router, http.MethodPost, "/api/verify", "", map[string]interface{}{"questionId": 99, "answer": "x"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, map[string]interface{}{"correct": false}, body)
	})

	t.Run("invalid progress token", func(t *testing.T) {
		w, body := doJSON(t, router, http.MethodPost, "/api/verify", "forged", map[string]interface{}{"questionId": 1, "answer": "Starbucks"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, false, body["correct"])
	})
}

func TestVerifySkipAhead(t *testing.T) {
	router := newTestRouter(t, core.UnlockPolicy{}, Options{})

	_, first := doJSON(t, router, http.MethodPost, "/api/verify", "", map[string]interface{}{"questionId": 1, "answer": "starbucks"})
	token := first["progressToken"].(string)

	w, body := doJSON(t, router, http.MethodPost, "/api/verify", token, map[string]interface{}{"questionId": 3, "answer": "手錶"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), body["unlockedUpTo"])
	assert.Equal(t, float64(3), body["frontier"])

	w, body = doJSON(t, router, http.MethodGet, "/api/progress", body["progressToken"].(string), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["complete"])
}

func TestVerifyEnforcedOrder(t *testing.T) {
	router := newTestRouter(t, core.UnlockPolicy{EnforceOrder: true}, Options{})

	_, first := doJSON(t, router, http.MethodPost, "/api/verify", "", map[string]interface{}{"questionId": 1, "answer": "starbucks"})
	token := first["progressToken"].(string)

	w, body := doJSON(t, router, http.MethodPost, "/api/verify", token, map[string]interface{}{"questionId": 3, "answer": "手錶"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, false, body["correct"])
}

func TestProgressLifecycle(t *testing.T) {
	router := newTestRouter(t, core.UnlockPolicy{}, Options{})

	w, body := doJSON(t, router, http.MethodPost, "/api/progress", "", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	token, ok := body["progressToken"].(string)
	require.True(t, ok)
	assert.Equal(t, float64(0), body["unlockedUpTo"])
	assert.Equal(t, float64(1), body["currentQuestionId"])
	assert.Equal(t, false, body["complete"])

	w, _ = doJSON(t, router, http.MethodGet, "/api/progress", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body = doJSON(t, router, http.MethodGet, "/api/progress", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["currentQuestionId"])
	assert.NotContains(t, body, "progressToken")

	w, _ = doJSON(t, router, http.MethodPost, "/api/progress/reset", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, body = doJSON(t, router, http.MethodGet, "/api/progress", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Progress has been reset", body["error"])
}

func TestStaticAndFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>index</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log('app')"), 0o644))

	router := newTestRouter(t, core.UnlockPolicy{}, Options{StaticDir: dir})

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := get("/app.js")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "console.log")

	w = get("/some/client/route")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "index")

	w = get("/../../etc/passwd")
	assert.NotContains(t, w.Body.String(), "root:")

	w = get("/api/unknown")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORS(t *testing.T) {
	router := newTestRouter(t, core.UnlockPolicy{}, Options{AllowOrigins: []string{"https://card.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/verify", nil)
	req.Header.Set("Origin", "https://card.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "https://card.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDHeader(t *testing.T) {
	router := newTestRouter(t, core.UnlockPolicy{}, Options{})

	w, _ := doJSON(t, router, http.MethodGet, "/api/config", "", nil)
	assert.NotEmpty(t, w.Header().Get(headerRequestID))

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	req.Header.Set(headerRequestID, "fixed-id")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "fixed-id", w.Header().Get(headerRequestID))
}

func TestQuestionID(t *testing.T) {
	tests := []struct {
		in   json.Number
		want int
		ok   bool
	}{
		{"3", 3, true},
		{"3.0", 3, true},
		{"3e0", 3, true},
		{"-1", -1, true},
		{"3.5", 0, false},
		{"1e300", 0, false},
		{"", 0, false},
		{"abc", 0, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			got, ok := questionID(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequestLoggerWritesAccessLine(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.InfoLevel)

	router := gin.New()
	router.Use(RequestLogger(logger))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, target := range []string{"/ok", "/boom"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}

	entries := hook.AllEntries()
	require.Len(t, entries, 2)

	assert.Equal(t, logrus.InfoLevel, entries[0].Level)
	assert.Equal(t, "request served", entries[0].Message)
	assert.Equal(t, http.MethodGet, entries[0].Data["method"])
	assert.Equal(t, "/ok", entries[0].Data["path"])
	assert.Equal(t, http.StatusNoContent, entries[0].Data["status"])
	assert.NotEmpty(t, entries[0].Data["latency"])
	assert.NotEmpty(t, entries[0].Data["request_id"])

	assert.Equal(t, logrus.ErrorLevel, entries[1].Level)
	assert.Equal(t, "/boom", entries[1].Data["path"])
}
