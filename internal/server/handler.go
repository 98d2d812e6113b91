// Package server serves the study pages to participants over HTTP.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ppiankov/factstudy/internal/model"
	"github.com/ppiankov/factstudy/internal/pipeline"
	"github.com/ppiankov/factstudy/internal/render"
	"github.com/ppiankov/factstudy/internal/study"
	"github.com/ppiankov/factstudy/internal/worker"
)

// Route labels.
const (
	routePage    = "page"
	routeNext    = "next"
	routePrev    = "prev"
	routePreview = "preview"
	routeRobots  = "robots"
)

// Log field constants.
const (
	logFieldPID   = "pid"
	logFieldClaim = "claim"
	logFieldGroup = "group"
)

// HTTP header constants.
const headerContentType = "Content-Type"

// ClaimRenderer renders the view of a single claim
type ClaimRenderer interface {
	RenderClaim(ctx context.Context, idx int, group model.ExperimentGroup) (*model.ClaimView, error)
}

// Handler serves the participant flow and the operational endpoints
type Handler struct {
	cfg     *model.Config
	study   *study.Study
	codec   *study.SessionCodec
	views   ClaimRenderer
	pages   *render.Pages
	limiter *worker.Limiter
	robots  *RobotsPolicy
	logger  *zerolog.Logger
	mux     *http.ServeMux
}

// NewHandler creates the study handler
func NewHandler(cfg *model.Config, st *study.Study, codec *study.SessionCodec, views ClaimRenderer, logger *zerolog.Logger) (*Handler, error) {
	pages, err := render.NewPages(cfg.Theme, cfg.Excerpt.HighlightClass)
	if err != nil {
		return nil, err
	}

	robots, err := NewRobotsPolicy(cfg.Server.RobotsDisallow)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	h := &Handler{
		cfg:     cfg,
		study:   st,
		codec:   codec,
		views:   views,
		pages:   pages,
		limiter: worker.NewLimiterPerMinute(cfg.Server.RequestsPerMinute, cfg.Server.Burst, cfg.Server.MaxLimiters),
		robots:  robots,
		logger:  logger,
		mux:     http.NewServeMux(),
	}

	h.mux.HandleFunc("GET /{$}", h.instrument(routePage, h.servePage))
	h.mux.HandleFunc("POST /next", h.instrument(routeNext, h.serveNext))
	h.mux.HandleFunc("POST /prev", h.instrument(routePrev, h.servePrev))
	h.mux.HandleFunc("GET /claims/{idx}", h.instrument(routePreview, h.servePreview))
	h.mux.HandleFunc("GET /robots.txt", h.serveRobots)
	h.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, "OK")
	})
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return h, nil
}

// ServeHTTP dispatches to the study routes
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// instrument wraps a page route with security headers, rate limiting and latency tracking
func (h *Handler) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		defer func() {
			LatencyHistogram.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}()

		// Set security headers
		if !h.robots.Indexable(r.URL.Path) {
			w.Header().Set("X-Robots-Tag", "noindex, nofollow")
		}
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "private, no-store")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set(headerContentType, "text/html; charset=utf-8")

		allowed := h.limiter.Allow(h.limitKey(r))
		TrackedClients.Set(float64(h.limiter.Len()))

		if !allowed {
			h.renderError(w, http.StatusTooManyRequests, "Too Many Requests", "Please wait before trying again.")
			HitsTotal.WithLabelValues(route, StatusLimited).Inc()
			DeniedTotal.WithLabelValues(ReasonRateLimited).Inc()

			return
		}

		next(w, r)
	}
}

// servePage renders the participant's current page
func (h *Handler) servePage(w http.ResponseWriter, r *http.Request) {
	current := h.readSession(r)
	pid := study.ResolveParticipant(r.URL.Query().Get("pid"), current)

	sess := h.study.Begin(pid, current)
	if !h.study.Resumes(pid, current) {
		SessionsStarted.Inc()
		h.logger.Info().Str(logFieldPID, pid).Str(logFieldGroup, sess.Group.String()).Msg("Participant session started")
	}

	sess, err := h.study.OverrideGroup(sess, r.URL.Query().Get("group"))
	if err != nil {
		h.renderError(w, http.StatusBadRequest, "Bad Request", "Unknown experiment group.")
		HitsTotal.WithLabelValues(routePage, StatusBadRequest).Inc()
		DeniedTotal.WithLabelValues(ReasonBadGroup).Inc()

		return
	}

	if err := h.writeSession(w, sess); err != nil {
		h.logger.Error().Err(err).Str(logFieldPID, pid).Msg("Failed to encode session cookie")
		h.renderError(w, http.StatusInternalServerError, "Error", "Failed to save your progress.")
		HitsTotal.WithLabelValues(routePage, StatusError).Inc()
		ErrorsTotal.WithLabelValues(ErrorTypeCookie).Inc()

		return
	}

	page := h.study.Current(sess)
	nav := render.Nav{
		ParticipantID: pid,
		Page:          sess.Page,
		Pages:         h.study.PageCount(),
		CanPrev:       sess.Page > 0,
		CanNext:       sess.Page < h.study.PageCount()-1,
	}
	surveyURL := h.study.SurveyURL(page, pid)

	var buf bytes.Buffer

	switch page.Kind {
	case study.PagePre, study.PagePost:
		title := "Pre-Survey"
		if page.Kind == study.PagePost {
			title = "Post-Survey"
		}
		err = h.pages.RenderSurvey(&buf, &render.SurveyPageData{Nav: nav, Title: title, SurveyURL: surveyURL})
	default:
		view, rerr := h.views.RenderClaim(r.Context(), page.ClaimIndex, sess.Group)
		if rerr != nil {
			h.handleRenderError(w, routePage, page.ClaimIndex, sess.Group, rerr)
			return
		}
		err = h.pages.RenderClaim(&buf, &render.ClaimPageData{Nav: nav, View: view, SurveyURL: surveyURL})
	}

	h.writePage(w, routePage, &buf, err)
}

// serveNext advances the participant one page and redirects to the page view
func (h *Handler) serveNext(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, routeNext, h.study.Next)
}

// servePrev moves the participant back one page and redirects to the page view
func (h *Handler) servePrev(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, routePrev, h.study.Prev)
}

func (h *Handler) navigate(w http.ResponseWriter, r *http.Request, route string, step func(study.Session) study.Session) {
	current := h.readSession(r)
	if current != nil {
		sess := step(h.study.Begin(current.ParticipantID, current))
		if err := h.writeSession(w, sess); err != nil {
			h.logger.Error().Err(err).Str(logFieldPID, sess.ParticipantID).Msg("Failed to encode session cookie")
			ErrorsTotal.WithLabelValues(ErrorTypeCookie).Inc()
		}
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
	HitsTotal.WithLabelValues(route, StatusRedirect).Inc()
}

// servePreview renders a claim outside the participant flow
func (h *Handler) servePreview(w http.ResponseWriter, r *http.Request) {
	if !h.cfg.Server.EnablePreview {
		h.renderError(w, http.StatusNotFound, "Not Found", "This page does not exist.")
		HitsTotal.WithLabelValues(routePreview, StatusNotFound).Inc()

		return
	}

	idx, err := strconv.Atoi(r.PathValue("idx"))
	if err != nil || idx < 0 {
		h.renderError(w, http.StatusBadRequest, "Bad Request", "Claim index must be a non-negative integer.")
		HitsTotal.WithLabelValues(routePreview, StatusBadRequest).Inc()

		return
	}

	group := model.ExperimentGroup(h.cfg.Study.Group)
	if raw := r.URL.Query().Get("group"); raw != "" {
		g, err := strconv.Atoi(raw)
		if err != nil || !model.ValidGroup(g) {
			h.renderError(w, http.StatusBadRequest, "Bad Request", "Unknown experiment group.")
			HitsTotal.WithLabelValues(routePreview, StatusBadRequest).Inc()
			DeniedTotal.WithLabelValues(ReasonBadGroup).Inc()

			return
		}
		group = model.ExperimentGroup(g)
	}

	view, err := h.views.RenderClaim(r.Context(), idx, group)
	if err != nil {
		h.handleRenderError(w, routePreview, idx, group, err)
		return
	}

	var buf bytes.Buffer
	err = h.pages.RenderClaim(&buf, &render.ClaimPageData{View: view, Preview: true})
	h.writePage(w, routePreview, &buf, err)
}

func (h *Handler) serveRobots(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set(headerContentType, "text/plain; charset=utf-8")
	_, _ = fmt.Fprint(w, h.robots.Body())
	HitsTotal.WithLabelValues(routeRobots, StatusOK).Inc()
}

// handleRenderError maps a pipeline failure to an HTTP status
func (h *Handler) handleRenderError(w http.ResponseWriter, route string, idx int, group model.ExperimentGroup, err error) {
	kind := pipeline.ErrorKind(err)
	event := h.logger.Warn()

	var code int
	var title, message string

	switch kind {
	case model.IssueUnsupported:
		code, title, message = http.StatusNotImplemented, "Not Implemented", "This experiment group is not available yet."
	case model.IssueLookupMiss, model.IssueShape:
		code, title, message = http.StatusUnprocessableEntity, "Unprocessable Claim", "The results for this claim could not be displayed."
	default:
		code, title, message = http.StatusInternalServerError, "Error", "Failed to load claim data."
		event = h.logger.Error()
	}

	event.Err(err).Int(logFieldClaim, idx).Str(logFieldGroup, group.String()).Str("kind", string(kind)).Msg("Failed to render claim")

	h.renderError(w, code, title, message)
	HitsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	ErrorsTotal.WithLabelValues(ErrorTypeRender).Inc()
}

// writePage sends a fully rendered page, or an error page if rendering failed
func (h *Handler) writePage(w http.ResponseWriter, route string, buf *bytes.Buffer, err error) {
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to render page")
		h.renderError(w, http.StatusInternalServerError, "Error", "Failed to render the page.")
		HitsTotal.WithLabelValues(route, StatusError).Inc()
		ErrorsTotal.WithLabelValues(ErrorTypeRender).Inc()

		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
	HitsTotal.WithLabelValues(route, StatusOK).Inc()
}

func (h *Handler) renderError(w http.ResponseWriter, code int, title, message string) {
	w.WriteHeader(code)

	if err := h.pages.RenderError(w, &render.ErrorData{
		Code:    code,
		Title:   title,
		Message: message,
	}); err != nil {
		h.logger.Error().Err(err).Msg("Failed to render error page")
	}
}

// readSession returns the decoded cookie session, or nil if absent or invalid
func (h *Handler) readSession(r *http.Request) *study.Session {
	cookie, err := r.Cookie(h.cfg.Study.CookieName)
	if err != nil {
		return nil
	}

	sess, err := h.codec.Decode(cookie.Value)
	if err != nil {
		reason := ReasonInvalidSession
		if errors.Is(err, study.ErrSessionExpired) {
			reason = ReasonExpired
		}
		DeniedTotal.WithLabelValues(reason).Inc()
		h.logger.Debug().Err(err).Msg("Discarding session cookie")

		return nil
	}

	return sess
}

func (h *Handler) writeSession(w http.ResponseWriter, sess study.Session) error {
	value, err := h.codec.Encode(sess)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.Study.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(h.cfg.Study.CookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.Study.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	return nil
}

// limitKey rate limits known participants individually and everyone else by address
func (h *Handler) limitKey(r *http.Request) string {
	if sess := h.peekSession(r); sess != "" {
		return "pid:" + sess
	}

	return "ip:" + getClientIP(r, h.cfg.Server.TrustProxyHeaders)
}

// peekSession returns the participant ID of a valid cookie without recording metrics
func (h *Handler) peekSession(r *http.Request) string {
	cookie, err := r.Cookie(h.cfg.Study.CookieName)
	if err != nil {
		return ""
	}

	sess, err := h.codec.Decode(cookie.Value)
	if err != nil {
		return ""
	}

	return sess.ParticipantID
}

// getClientIP returns the request's client address. Forwarding headers are
// only read behind a trusted proxy; the rightmost X-Forwarded-For hop is the
// one that proxy appended.
func getClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			if hop := strings.TrimSpace(parts[len(parts)-1]); hop != "" {
				return hop
			}
		}

		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}

	// Fall back to RemoteAddr without the port
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}

	return r.RemoteAddr
}
