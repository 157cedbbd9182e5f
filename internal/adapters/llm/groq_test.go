package llm_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/adapters/llm"
	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/domain"
)

type stubProvider struct {
	hits    atomic.Int32
	lastReq atomic.Pointer[capturedRequest]
	respond func(n int32, w http.ResponseWriter)
}

type capturedRequest struct {
	method string
	auth   string
	ctype  string
	body   []byte
}

func newStubProvider(t *testing.T, respond func(n int32, w http.ResponseWriter)) (*stubProvider, *httptest.Server) {
	t.Helper()
	sp := &stubProvider{respond: respond}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		sp.lastReq.Store(&capturedRequest{
			method: r.Method,
			auth:   r.Header.Get("Authorization"),
			ctype:  r.Header.Get("Content-Type"),
			body:   body,
		})
		n := sp.hits.Add(1)
		sp.respond(n, w)
	}))
	t.Cleanup(srv.Close)
	return sp, srv
}

func reply(status int, body string) func(int32, http.ResponseWriter) {
	return func(_ int32, w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func newClient(t *testing.T, url string, rec *sleepRecorder, opts ...llm.GroqOption) *llm.GroqClient {
	t.Helper()
	base := []llm.GroqOption{
		llm.WithURL(url),
		llm.WithSleeper(rec.sleep),
		llm.WithBackoff(llm.NewBackoff(100*time.Millisecond, 250*time.Millisecond).WithRand(func() float64 { return 0 })),
	}
	c, err := llm.NewGroqClient("test-key", append(base, opts...)...)
	require.NoError(t, err)
	return c
}

var history = []domain.ChatMessage{
	{Role: domain.RoleUser, Content: "Hola"},
	{Role: domain.RoleAssistant, Content: "Hola, que tal?"},
	{Role: domain.RoleUser, Content: "Hello"},
}

func TestComplete_SendsModelAndOrderedHistory(t *testing.T) {
	sp, srv := newStubProvider(t, reply(200, `{"choices":[{"message":{"role":"assistant","content":"Hi there"}}]}`))
	c := newClient(t, srv.URL, &sleepRecorder{}, llm.WithModel("test-model"))

	got, err := c.Complete(context.Background(), history)
	require.NoError(t, err)
	assert.Equal(t, "Hi there", got.Content)
	assert.EqualValues(t, 1, sp.hits.Load())

	req := sp.lastReq.Load()
	require.NotNil(t, req)
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "Bearer test-key", req.auth)
	assert.Equal(t, "application/json", req.ctype)

	var payload struct {
		Model    string               `json:"model"`
		Messages []domain.ChatMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(req.body, &payload))
	assert.Equal(t, "test-model", payload.Model)
	assert.Equal(t, history, payload.Messages)
}

func TestComplete_NoChoicesIsEmptyContent(t *testing.T) {
	_, srv := newStubProvider(t, reply(200, `{"choices":[]}`))
	c := newClient(t, srv.URL, &sleepRecorder{})

	got, err := c.Complete(context.Background(), history)
	require.NoError(t, err)
	assert.Equal(t, "", got.Content)
}

func TestComplete_NonJSONSuccessIsTerminal(t *testing.T) {
	sp, srv := newStubProvider(t, reply(200, `<html>oops</html>`))
	c := newClient(t, srv.URL, &sleepRecorder{})

	_, err := c.Complete(context.Background(), history)
	require.Error(t, err)
	assert.EqualValues(t, 1, sp.hits.Load())
}

func TestComplete_TerminalStatusIsNotRetried(t *testing.T) {
	sp, srv := newStubProvider(t, reply(400, `{"error":{"message":"model not found","type":"invalid_request_error"}}`))
	rec := &sleepRecorder{}
	c := newClient(t, srv.URL, rec)

	_, err := c.Complete(context.Background(), history)

	var perr *domain.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 400, perr.Status)
	assert.Equal(t, "model not found", perr.Message)
	assert.False(t, perr.Transient)

	var exhausted *domain.RetriesExhaustedError
	assert.NotErrorAs(t, err, &exhausted)
	assert.EqualValues(t, 1, sp.hits.Load())
	assert.Empty(t, rec.delays)
}

func TestComplete_TransientEveryTimeExhaustsBudget(t *testing.T) {
	for _, retries := range []int{0, 1, 3} {
		sp, srv := newStubProvider(t, reply(503, `{"error":{"message":"over capacity"}}`))
		rec := &sleepRecorder{}
		c := newClient(t, srv.URL, rec, llm.WithMaxRetries(retries))

		_, err := c.Complete(context.Background(), history)

		var exhausted *domain.RetriesExhaustedError
		require.ErrorAs(t, err, &exhausted, "retries=%d", retries)
		assert.Equal(t, retries+1, exhausted.Attempts)
		assert.EqualValues(t, retries+1, sp.hits.Load())
		assert.Len(t, rec.delays, retries)

		var perr *domain.ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, 503, perr.Status)
		assert.Equal(t, "over capacity", perr.Message)
	}
}

func TestComplete_RecoversAfterTransientFailures(t *testing.T) {
	sp, srv := newStubProvider(t, func(n int32, w http.ResponseWriter) {
		switch n {
		case 1:
			reply(429, `{"error":{"message":"slow down"}}`)(n, w)
		case 2:
			reply(502, ``)(n, w)
		default:
			reply(200, `{"choices":[{"message":{"content":"finally"}}]}`)(n, w)
		}
	})
	rec := &sleepRecorder{}
	c := newClient(t, srv.URL, rec)

	got, err := c.Complete(context.Background(), history)
	require.NoError(t, err)
	assert.Equal(t, "finally", got.Content)
	assert.EqualValues(t, 3, sp.hits.Load())
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, rec.delays)
}

func TestComplete_BackoffIsCapped(t *testing.T) {
	_, srv := newStubProvider(t, reply(500, ``))
	rec := &sleepRecorder{}
	c := newClient(t, srv.URL, rec, llm.WithMaxRetries(4))

	_, err := c.Complete(context.Background(), history)
	require.Error(t, err)
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		250 * time.Millisecond,
		250 * time.Millisecond,
	}, rec.delays)
}

func TestComplete_ErrorBodyParsing(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"envelope", `{"error":{"message":"invalid api key"}}`, "invalid api key"},
		{"json without message", `{"detail":"nope"}`, `{"detail":"nope"}`},
		{"not json", `Unauthorized`, ""},
		{"empty", ``, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, srv := newStubProvider(t, reply(401, tc.body))
			c := newClient(t, srv.URL, &sleepRecorder{})

			_, err := c.Complete(context.Background(), history)

			var perr *domain.ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, 401, perr.Status)
			assert.Equal(t, tc.want, perr.Message)
		})
	}
}

func TestComplete_TransportFailureIsRetried(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close() // nothing listens any more

	rec := &sleepRecorder{}
	c := newClient(t, url, rec, llm.WithMaxRetries(2))

	_, err := c.Complete(context.Background(), history)

	var exhausted *domain.RetriesExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Len(t, rec.delays, 2)

	var perr *domain.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 0, perr.Status)
	assert.True(t, perr.Transient)
}

// hangingProvider accepts requests and never answers them.
func hangingProvider(t *testing.T) (*atomic.Int32, string) {
	t.Helper()
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})
	return &hits, srv.URL
}

func TestComplete_AttemptTimeoutIsRetried(t *testing.T) {
	cases := map[string]llm.GroqOption{
		"client timeout":  llm.WithTimeout(50 * time.Millisecond),
		"own http client": llm.WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}),
	}
	for name, opt := range cases {
		t.Run(name, func(t *testing.T) {
			hits, url := hangingProvider(t)
			rec := &sleepRecorder{}
			c := newClient(t, url, rec, opt, llm.WithMaxRetries(2))

			_, err := c.Complete(context.Background(), history)

			var exhausted *domain.RetriesExhaustedError
			require.ErrorAs(t, err, &exhausted)
			assert.Equal(t, 3, exhausted.Attempts)
			assert.EqualValues(t, 3, hits.Load())
			assert.Len(t, rec.delays, 2)

			var perr *domain.ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, 0, perr.Status)
			assert.True(t, perr.Transient)
			assert.NotErrorIs(t, err, context.Canceled)
		})
	}
}

func TestComplete_CancelDuringBackoffStops(t *testing.T) {
	sp, srv := newStubProvider(t, reply(503, ``))
	ctx, cancel := context.WithCancel(context.Background())

	c, err := llm.NewGroqClient("test-key",
		llm.WithURL(srv.URL),
		llm.WithSleeper(func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		}),
	)
	require.NoError(t, err)

	_, err = c.Complete(ctx, history)
	require.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 1, sp.hits.Load())
}

func TestNewGroqClient_MissingKeyIsConfigError(t *testing.T) {
	_, err := llm.NewGroqClient("")

	var cerr *domain.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "GROQ_API_KEY", cerr.Setting)
}

func TestComplete_ZeroClientIsConfigError(t *testing.T) {
	var c llm.GroqClient

	_, err := c.Complete(context.Background(), history)

	var cerr *domain.ConfigError
	require.ErrorAs(t, err, &cerr)
}
