package server

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/robotstxt"
	"golang.org/x/net/html"

	"github.com/ppiankov/factstudy/internal/excerpt"
	"github.com/ppiankov/factstudy/internal/model"
	"github.com/ppiankov/factstudy/internal/render"
	"github.com/ppiankov/factstudy/internal/study"
)

const testClaims = 3

// fakeRenderer implements ClaimRenderer
type fakeRenderer struct {
	mu        sync.Mutex
	errs      map[int]error
	lastGroup model.ExperimentGroup
	calls     int
}

func (f *fakeRenderer) RenderClaim(_ context.Context, idx int, group model.ExperimentGroup) (*model.ClaimView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.lastGroup = group

	if err := f.errs[idx]; err != nil {
		return nil, err
	}

	return &model.ClaimView{
		ClaimIndex:    idx,
		Group:         group,
		Claim:         fmt.Sprintf("claim number %d", idx),
		Verdict:       "Supported",
		Justification: "<span class='citation-container'>justified</span>",
		Sources:       "<div class='evidence-card'>card</div>",
	}, nil
}

type testEnv struct {
	handler  *Handler
	study    *study.Study
	renderer *fakeRenderer
	cfg      *model.Config
}

func newTestEnv(t *testing.T, mutate func(*model.Config)) *testEnv {
	t.Helper()

	cfg := model.DefaultConfig()
	cfg.Study.SurveyBaseURL = "https://surveys.example.org"
	cfg.Study.CookieSecret = "test-secret"
	if mutate != nil {
		mutate(cfg)
	}

	st, err := study.New(cfg.Study, testClaims)
	require.NoError(t, err)

	codec, err := study.NewSessionCodec(cfg.Study.CookieSecret, cfg.Study.CookieMaxAge)
	require.NoError(t, err)

	renderer := &fakeRenderer{errs: map[int]error{}}

	h, err := NewHandler(cfg, st, codec, renderer, nil)
	require.NoError(t, err)

	return &testEnv{handler: h, study: st, renderer: renderer, cfg: cfg}
}

func (e *testEnv) do(t *testing.T, method, target string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	return rec
}

func (e *testEnv) sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, c := range rec.Result().Cookies() {
		if c.Name == e.cfg.Study.CookieName {
			return c
		}
	}

	t.Fatalf("response has no %s cookie", e.cfg.Study.CookieName)
	return nil
}

// iframeSrc returns the src attribute of the first iframe in body
func iframeSrc(t *testing.T, body string) string {
	t.Helper()

	doc, err := html.Parse(strings.NewReader(body))
	require.NoError(t, err)

	var src string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if src != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "iframe" {
			for _, a := range n.Attr {
				if a.Key == "src" {
					src = a.Val
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return src
}

func TestHandler_FirstVisitShowsPreSurvey(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/?pid=p-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Pre-Survey")
	assert.Contains(t, rec.Body.String(), "Participant ID: p-1")
	assert.Equal(t, "https://surveys.example.org/pre/?pid=p-1&claim=pre", iframeSrc(t, rec.Body.String()))

	cookie := env.sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.Zero(t, env.renderer.calls)
}

func TestHandler_GeneratesParticipantID(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	src := iframeSrc(t, rec.Body.String())
	assert.Regexp(t, `pid=[0-9a-f-]{36}&claim=pre$`, src)
}

func TestHandler_NavigatesThroughClaims(t *testing.T) {
	env := newTestEnv(t, nil)
	order := env.study.ClaimOrder("p-1")

	cookie := env.sessionCookie(t, env.do(t, http.MethodGet, "/?pid=p-1", nil))

	for i, claimIdx := range order {
		rec := env.do(t, http.MethodPost, "/next", cookie)
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))
		cookie = env.sessionCookie(t, rec)

		rec = env.do(t, http.MethodGet, "/", cookie)
		require.Equal(t, http.StatusOK, rec.Code, "page %d", i+1)

		body := rec.Body.String()
		assert.Contains(t, body, fmt.Sprintf("claim number %d", claimIdx))
		assert.Contains(t, body, "citation-container")
		assert.Equal(t, fmt.Sprintf("https://surveys.example.org/claim/?pid=p-1&claim=%d", claimIdx), iframeSrc(t, body))
		assert.Contains(t, body, fmt.Sprintf("Page %d of %d", i+2, testClaims+2))
	}

	// Post-survey, and next stays there
	for range 2 {
		rec := env.do(t, http.MethodPost, "/next", cookie)
		cookie = env.sessionCookie(t, rec)
	}

	rec := env.do(t, http.MethodGet, "/", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Post-Survey")
	assert.NotContains(t, rec.Body.String(), `action="/next"`)
	assert.Equal(t, "https://surveys.example.org/post/?pid=p-1&claim=post", iframeSrc(t, rec.Body.String()))
}

func TestHandler_PrevClampedAtStart(t *testing.T) {
	env := newTestEnv(t, nil)

	cookie := env.sessionCookie(t, env.do(t, http.MethodGet, "/?pid=p-1", nil))
	cookie = env.sessionCookie(t, env.do(t, http.MethodPost, "/prev", cookie))

	rec := env.do(t, http.MethodGet, "/", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Pre-Survey")
	assert.NotContains(t, rec.Body.String(), `action="/prev"`)
}

func TestHandler_NavigateWithoutSession(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/next", nil)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestHandler_TamperedCookieStartsOver(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/", &http.Cookie{Name: env.cfg.Study.CookieName, Value: "forged.value"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Pre-Survey")
}

func TestHandler_QueryPIDReplacesSession(t *testing.T) {
	env := newTestEnv(t, nil)

	cookie := env.sessionCookie(t, env.do(t, http.MethodGet, "/?pid=p-1", nil))
	cookie = env.sessionCookie(t, env.do(t, http.MethodPost, "/next", cookie))

	rec := env.do(t, http.MethodGet, "/?pid=p-2", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Participant ID: p-2")
	assert.Contains(t, rec.Body.String(), "Pre-Survey")
}

func TestHandler_GroupOverride(t *testing.T) {
	env := newTestEnv(t, func(c *model.Config) { c.Study.AllowGroupOverride = true })

	cookie := env.sessionCookie(t, env.do(t, http.MethodGet, "/?pid=p-1&group=1", nil))
	cookie = env.sessionCookie(t, env.do(t, http.MethodPost, "/next", cookie))

	rec := env.do(t, http.MethodGet, "/", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.GroupPlain, env.renderer.lastGroup)

	rec = env.do(t, http.MethodGet, "/?group=9", cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_GroupOverrideIgnoredWhenDisabled(t *testing.T) {
	env := newTestEnv(t, nil)

	cookie := env.sessionCookie(t, env.do(t, http.MethodGet, "/?pid=p-1&group=1", nil))
	cookie = env.sessionCookie(t, env.do(t, http.MethodPost, "/next", cookie))

	env.do(t, http.MethodGet, "/", cookie)
	assert.Equal(t, model.GroupCitations, env.renderer.lastGroup)
}

func TestHandler_RenderErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unsupported group", fmt.Errorf("claim 0: %w", render.ErrUnsupportedGroup), http.StatusNotImplemented},
		{"fragment missing", fmt.Errorf("source [1]: %w", excerpt.ErrFragmentNotFound), http.StatusUnprocessableEntity},
		{"missing file", fmt.Errorf("read results: %w", fs.ErrNotExist), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, func(c *model.Config) { c.Server.EnablePreview = true })
			env.renderer.errs[0] = tt.err

			rec := env.do(t, http.MethodGet, "/claims/0", nil)

			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), fmt.Sprintf("%d - ", tt.want))
			assert.NotContains(t, rec.Body.String(), tt.err.Error(), "internal error text must not leak")
		})
	}
}

func TestHandler_Preview(t *testing.T) {
	env := newTestEnv(t, func(c *model.Config) { c.Server.EnablePreview = true })

	rec := env.do(t, http.MethodGet, "/claims/2?group=1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "claim number 2")
	assert.NotContains(t, rec.Body.String(), `action="/next"`)
	assert.Equal(t, model.GroupPlain, env.renderer.lastGroup)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/claims/abc", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/claims/1?group=x", nil).Code)
}

func TestHandler_PreviewDisabled(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/claims/0", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, env.renderer.calls)
}

func TestHandler_SecurityHeaders(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/", nil)

	assert.Equal(t, "noindex, nofollow", rec.Header().Get("X-Robots-Tag"))
	assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
	assert.Equal(t, "private, no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestHandler_RobotsTxt(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/robots.txt", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data, err := robotstxt.FromString(rec.Body.String())
	require.NoError(t, err)

	assert.False(t, data.TestAgent("/", "Googlebot"))
	assert.False(t, data.TestAgent("/claims/1", "Bingbot"))
}

func TestHandler_Healthz(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestHandler_Metrics(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodGet, "/", nil)

	rec := env.do(t, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "factstudy_http_hits_total")
}

func TestHandler_RateLimiting(t *testing.T) {
	env := newTestEnv(t, func(c *model.Config) {
		c.Server.RequestsPerMinute = 0.001
		c.Server.Burst = 2
	})

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.7:4000"
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	require.Equal(t, 1, env.handler.limiter.Len())

	metrics := env.do(t, http.MethodGet, "/metrics", nil)
	assert.Contains(t, metrics.Body.String(), "factstudy_http_rate_limited_clients 1\n")
}

func TestHandler_RateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	env := newTestEnv(t, func(c *model.Config) {
		c.Server.RequestsPerMinute = 0.001
		c.Server.Burst = 1
	})

	codes := make([]int, 0, 3)
	for i := range 3 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.8:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestHandler_RateLimitBehindTrustedProxy(t *testing.T) {
	env := newTestEnv(t, func(c *model.Config) {
		c.Server.RequestsPerMinute = 0.001
		c.Server.Burst = 1
		c.Server.TrustProxyHeaders = true
	})

	serve := func(xff string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.2:4000"
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, serve("1.1.1.1, 203.0.113.9"))
	assert.Equal(t, http.StatusTooManyRequests, serve("2.2.2.2, 203.0.113.9"), "a forged leftmost hop does not change the key")
	assert.Equal(t, http.StatusOK, serve("203.0.113.10"))
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, nil)

	assert.Equal(t, http.StatusMethodNotAllowed, env.do(t, http.MethodGet, "/next", nil).Code)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		trustProxy bool
		want       string
	}{
		{"forwarded for untrusted", map[string]string{"X-Forwarded-For": "198.51.100.1"}, "10.0.0.2:1234", false, "10.0.0.2"},
		{"real ip untrusted", map[string]string{"X-Real-IP": "198.51.100.2"}, "10.0.0.2:1234", false, "10.0.0.2"},
		{"forwarded for rightmost hop", map[string]string{"X-Forwarded-For": "198.51.100.1, 203.0.113.5"}, "10.0.0.2:1234", true, "203.0.113.5"},
		{"forwarded for trailing comma", map[string]string{"X-Forwarded-For": "198.51.100.1,", "X-Real-IP": "203.0.113.6"}, "10.0.0.2:1234", true, "203.0.113.6"},
		{"real ip trusted", map[string]string{"X-Real-IP": "198.51.100.2"}, "10.0.0.2:1234", true, "198.51.100.2"},
		{"remote addr", nil, "192.0.2.10:5678", true, "192.0.2.10"},
		{"remote addr without port", nil, "192.0.2.11", false, "192.0.2.11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			assert.Equal(t, tt.want, getClientIP(req, tt.trustProxy))
		})
	}
}

func TestNewRobotsPolicy(t *testing.T) {
	open, err := NewRobotsPolicy(nil)
	require.NoError(t, err)
	assert.True(t, open.Indexable("/claims/1"))

	partial, err := NewRobotsPolicy([]string{"/claims/"})
	require.NoError(t, err)
	assert.True(t, partial.Indexable("/"))
	assert.False(t, partial.Indexable("/claims/4"))

	_, err = NewRobotsPolicy([]string{"claims"})
	assert.Error(t, err)
}

func TestServer_StartStops(t *testing.T) {
	cfg := model.DefaultConfig().Server
	cfg.Addr = "127.0.0.1:0"
	cfg.ShutdownTimeout = time.Second

	env := newTestEnv(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewServer(cfg, env.handler, env.handler.logger).Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
