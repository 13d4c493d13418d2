package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"insightai/internal/chunker"
	"insightai/internal/embedding/hashing"
	"insightai/internal/generation/extractive"
	"insightai/internal/loader"
	"insightai/internal/pipeline"
	"insightai/internal/session"
	"insightai/internal/vectorstore/memory"
)

type testBackend struct {
	srv *Server
	mgr *session.Manager
}

func newTestBackend(t *testing.T, idle time.Duration) *testBackend {
	t.Helper()
	log := zap.NewNop()
	store := memory.NewStore()
	emb := hashing.NewEmbedder(128)
	mgr := session.NewManager(store, log, session.Config{
		IdleTimeout: idle,
		CallTimeout: time.Second,
		Dimension:   emb.Dimension(),
	})
	ingester := pipeline.NewIngester(loader.New(0), chunker.New(1000, 200), emb, store, log)
	answerer := pipeline.NewAnswerer(emb, store, extractive.NewGenerator(0), 3, log)
	srv := New(Config{Port: "0"}, log, mgr, ingester, answerer)
	return &testBackend{srv: srv, mgr: mgr}
}

func (b *testBackend) do(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	res, err := b.srv.App().Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	res.Body.Close()
	var parsed map[string]any
	require.NoError(t, json.Unmarshal(body, &parsed), "non-JSON body: %s", body)
	return res, parsed
}

func uploadTextRequest(t *testing.T, text string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("text", text))
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func chatRequestJSON(t *testing.T, prompt, sessionID string) *http.Request {
	t.Helper()
	body, err := json.Marshal(map[string]string{"prompt": prompt, "session_id": sessionID})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	return req
}

func TestRootEndpoint(t *testing.T) {
	b := newTestBackend(t, time.Minute)
	res, body := b.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "InsightAI backend is running", body["message"])
}

func TestUploadChatDeleteFlow(t *testing.T) {
	b := newTestBackend(t, time.Minute)

	res, body := b.do(t, uploadTextRequest(t, "The sky is blue. Grass is green."))
	require.Equal(t, http.StatusOK, res.StatusCode, "upload failed: %v", body)
	sessionID, _ := body["session_id"].(string)
	require.NotEmpty(t, sessionID)
	assert.Equal(t, float64(1), body["chunks"])
	assert.Equal(t, float64(60), body["expires_in"])

	res, body = b.do(t, chatRequestJSON(t, "What color is the sky?", sessionID))
	require.Equal(t, http.StatusOK, res.StatusCode)
	answer, _ := body["response"].(string)
	assert.Contains(t, strings.ToLower(answer), "blue")

	req := httptest.NewRequest(http.MethodDelete, "/delete-session?session_id="+sessionID, nil)
	res, body = b.do(t, req)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "Session deleted", body["message"])

	// Deleting again still succeeds; chatting afterwards reports expiry.
	res, _ = b.do(t, req)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, body = b.do(t, chatRequestJSON(t, "anything", sessionID))
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "Session expired. Please upload again.", body["error"])
}

func TestUploadRejectsAmbiguousSource(t *testing.T) {
	b := newTestBackend(t, time.Minute)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("text", "some text"))
	require.NoError(t, w.WriteField("url", "http://example.com"))
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	res, body := b.do(t, req)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Contains(t, body["error"], "exactly one of")
	assert.Equal(t, 0, b.mgr.Len())
}

func TestUploadRejectsEmptyForm(t *testing.T) {
	b := newTestBackend(t, time.Minute)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	res, _ := b.do(t, req)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, 0, b.mgr.Len())
}

func TestUploadFailedIngestRegistersNothing(t *testing.T) {
	b := newTestBackend(t, time.Minute)

	res, _ := b.do(t, uploadTextRequest(t, "   \n   "))
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, 0, b.mgr.Len())
}

func TestChatValidation(t *testing.T) {
	b := newTestBackend(t, time.Minute)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	res, _ := b.do(t, req)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, _ = b.do(t, chatRequestJSON(t, "", "some-id"))
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, _ = b.do(t, chatRequestJSON(t, "a question", ""))
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, body := b.do(t, chatRequestJSON(t, "a question", "unknown-session"))
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "Session expired. Please upload again.", body["error"])
}

func TestDeleteSessionRequiresID(t *testing.T) {
	b := newTestBackend(t, time.Minute)
	res, _ := b.do(t, httptest.NewRequest(http.MethodDelete, "/delete-session", nil))
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestSessionExpiryEndToEnd(t *testing.T) {
	b := newTestBackend(t, 50*time.Millisecond)

	res, body := b.do(t, uploadTextRequest(t, "The sky is blue."))
	require.Equal(t, http.StatusOK, res.StatusCode)
	sessionID := body["session_id"].(string)

	// Chatting keeps the session alive across sweeps.
	time.Sleep(30 * time.Millisecond)
	res, _ = b.do(t, chatRequestJSON(t, "What color is the sky?", sessionID))
	require.Equal(t, http.StatusOK, res.StatusCode)

	time.Sleep(30 * time.Millisecond)
	b.mgr.Sweep(context.Background())
	res, _ = b.do(t, chatRequestJSON(t, "Still there?", sessionID))
	require.Equal(t, http.StatusOK, res.StatusCode, "session evicted despite activity")

	// Let it idle past the timeout and sweep.
	time.Sleep(80 * time.Millisecond)
	b.mgr.Sweep(context.Background())

	res, body = b.do(t, chatRequestJSON(t, "Still there?", sessionID))
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "Session expired. Please upload again.", body["error"])
}
