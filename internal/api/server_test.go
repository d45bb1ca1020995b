package api

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/charlm/internal/corpus"
	"github.com/samcharles93/charlm/internal/model"
)

const testText = "hello world"

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()
	vocab, err := corpus.BuildVocabulary(testText)
	if err != nil {
		t.Fatalf("BuildVocabulary: %v", err)
	}
	m, err := model.New(model.Config{
		VocabSize: vocab.Size(),
		BlockSize: 8,
		EmbedDim:  8,
		NumHeads:  2,
		NumLayers: 1,
		Seed:      1,
	})
	if err != nil {
		t.Fatalf("model.New: %v", err)
	}
	gen, err := NewGenerator(m, vocab, 7)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return gen
}

func newTestEcho(t *testing.T, cfg Config) *echo.Echo {
	t.Helper()
	server := NewServer(newTestGenerator(t), cfg, nil)
	server.clock = func() time.Time { return time.Unix(1700000000, 0) }
	e := echo.New()
	server.Register(e)
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ResponseError {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return env.Error
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t, DefaultConfig())
	rec := doJSON(t, e, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestModelInfo(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t, DefaultConfig())
	rec := doJSON(t, e, http.MethodGet, "/v1/model", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var info ModelInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.VocabSize != 8 || info.Vocabulary != " dehlorw" {
		t.Fatalf("unexpected vocabulary %d %q", info.VocabSize, info.Vocabulary)
	}
	if info.Config.EmbedDim != 8 || info.Params <= 0 {
		t.Fatalf("unexpected model info %+v", info)
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t, DefaultConfig())
	rec := doJSON(t, e, http.MethodPost, "/v1/generate", `{"prompt":"hel","max_new_tokens":12}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var resp GenerateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(resp.ID, "gen_") || resp.Object != "generation" || resp.Created != 1700000000 {
		t.Fatalf("unexpected envelope %+v", resp)
	}
	if resp.Usage.PromptTokens != 3 || resp.Usage.CompletionTokens != 12 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}
	if got := []rune(resp.Completion); len(got) != 12 {
		t.Fatalf("completion has %d characters", len(got))
	}
	if resp.Text != "hel"+resp.Completion {
		t.Fatalf("text %q is not prompt+completion", resp.Text)
	}
	for _, r := range resp.Completion {
		if !strings.ContainsRune(testText, r) {
			t.Fatalf("completion contains %q outside the vocabulary", r)
		}
	}
}

func TestGenerateSeedIsReproducible(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t, DefaultConfig())
	body := `{"prompt":"wor","max_new_tokens":20,"seed":42}`
	var texts [2]string
	for i := range texts {
		rec := doJSON(t, e, http.MethodPost, "/v1/generate", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
		}
		var resp GenerateResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		texts[i] = resp.Completion
	}
	if texts[0] != texts[1] {
		t.Fatalf("seeded generations differ: %q vs %q", texts[0], texts[1])
	}
}

func TestGenerateEmptyPromptAndDefaults(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t, Config{MaxNewTokens: 50, DefaultNewTokens: 5})
	rec := doJSON(t, e, http.MethodPost, "/v1/generate", `{"prompt":""}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var resp GenerateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Usage.PromptTokens != 0 || resp.Usage.CompletionTokens != 5 || len([]rune(resp.Text)) != 5 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestGenerateInvalidRequests(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t, Config{MaxNewTokens: 10})
	cases := []struct {
		name  string
		body  string
		param string
	}{
		{"unknown character", `{"prompt":"xyz"}`, "prompt"},
		{"too many tokens", `{"prompt":"h","max_new_tokens":11}`, "max_new_tokens"},
		{"negative tokens", `{"prompt":"h","max_new_tokens":-1}`, "max_new_tokens"},
		{"malformed", `{"prompt":`, ""},
		{"empty body", ``, ""},
		{"unknown field", `{"prompt":"h","temperature":2}`, ""},
	}
	for _, tc := range cases {
		rec := doJSON(t, e, http.MethodPost, "/v1/generate", tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status got %d body=%s", tc.name, rec.Code, rec.Body.String())
		}
		apiErr := decodeError(t, rec)
		if apiErr.Type != "invalid_request_error" || apiErr.Param != tc.param {
			t.Fatalf("%s: unexpected error %+v", tc.name, apiErr)
		}
	}
}

func TestGenerateRateLimited(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t, Config{RatePerSecond: 0.001, Burst: 2})
	body := `{"prompt":"h","max_new_tokens":1}`
	for i := range 2 {
		if rec := doJSON(t, e, http.MethodPost, "/v1/generate", body); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, rec.Code)
		}
	}
	rec := doJSON(t, e, http.MethodPost, "/v1/generate", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if decodeError(t, rec).Type != "rate_limit_error" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	// Other routes are not limited.
	if rec := doJSON(t, e, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz limited: %d", rec.Code)
	}
}

func TestGenerateStream(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t, DefaultConfig())
	rec := doJSON(t, e, http.MethodPost, "/v1/generate?stream=true", `{"prompt":"he","max_new_tokens":6,"seed":3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}

	var (
		deltas []string
		final  *GenerateChunk
		done   bool
	)
	sc := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for sc.Scan() {
		line, ok := strings.CutPrefix(sc.Text(), "data: ")
		if !ok {
			continue
		}
		if line == "[DONE]" {
			done = true
			continue
		}
		var chunk GenerateChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			t.Fatalf("decode chunk %q: %v", line, err)
		}
		if chunk.FinishReason != nil {
			final = &chunk
			continue
		}
		deltas = append(deltas, chunk.Delta)
	}
	if !done || final == nil {
		t.Fatalf("stream not terminated:\n%s", rec.Body.String())
	}
	if len(deltas) != 6 || final.Usage == nil || final.Usage.CompletionTokens != 6 {
		t.Fatalf("deltas %q final %+v", deltas, final)
	}

	// The same seed without streaming yields the same characters.
	plain := doJSON(t, e, http.MethodPost, "/v1/generate", `{"prompt":"he","max_new_tokens":6,"seed":3}`)
	var resp GenerateResponse
	if err := json.Unmarshal(plain.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := strings.Join(deltas, ""); got != resp.Completion {
		t.Fatalf("streamed %q, non-streamed %q", got, resp.Completion)
	}
}

func TestNewGeneratorRejectsMismatchedVocabulary(t *testing.T) {
	t.Parallel()
	gen := newTestGenerator(t)
	other, err := corpus.BuildVocabulary("ab")
	if err != nil {
		t.Fatalf("BuildVocabulary: %v", err)
	}
	if _, err := NewGenerator(gen.Model(), other, 1); err == nil {
		t.Fatal("expected vocabulary size mismatch error")
	}
}
