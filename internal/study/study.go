// Package study routes participants through the pre-survey, the claim pages and the post-survey.
package study

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/ppiankov/factstudy/internal/model"
)

// ErrNoClaims is returned when a study is created without claims
var ErrNoClaims = errors.New("study has no claims")

// PageKind identifies the type of a study page
type PageKind string

const (
	PagePre   PageKind = "pre"
	PageClaim PageKind = "claim"
	PagePost  PageKind = "post"
)

// Page is one step of a participant's sequence
type Page struct {
	Kind       PageKind
	ClaimIndex int // Set for PageClaim only
}

// Study holds the routing rules shared by all participants
type Study struct {
	cfg    model.StudyConfig
	claims int
}

// New creates a study over claimCount claims
func New(cfg model.StudyConfig, claimCount int) (*Study, error) {
	if claimCount <= 0 {
		return nil, ErrNoClaims
	}

	return &Study{cfg: cfg, claims: claimCount}, nil
}

// ResolveParticipant picks the participant ID in priority order:
// the pid query parameter, then the cookie session, then a fresh UUID.
func ResolveParticipant(queryPID string, current *Session) string {
	if pid := strings.TrimSpace(queryPID); pid != "" {
		return pid
	}

	if current != nil && current.ParticipantID != "" {
		return current.ParticipantID
	}

	return uuid.NewString()
}

// Begin returns the session for pid. An existing session for the same
// participant is kept; anything else starts on the pre-survey page.
func (s *Study) Begin(pid string, current *Session) Session {
	if s.Resumes(pid, current) {
		sess := *current
		sess.Page = s.clamp(sess.Page)
		if !model.ValidGroup(int(sess.Group)) {
			sess.Group = s.AssignGroup(pid)
		}
		return sess
	}

	return Session{
		ParticipantID: pid,
		Group:         s.AssignGroup(pid),
		Claims:        s.claims,
	}
}

// Resumes reports whether current is a session Begin keeps for pid.
// Sessions started for a different claim count restart.
func (s *Study) Resumes(pid string, current *Session) bool {
	return current != nil && current.ParticipantID == pid && current.Claims == s.claims
}

// ClaimOrder returns a random permutation of the claim indices.
// The permutation is seeded by the participant ID, so it is rebuilt on every
// request instead of being stored in the cookie, and a participant who loses
// the cookie but keeps the pid link sees the same order.
func (s *Study) ClaimOrder(pid string) []int {
	seed := hashPID(pid)
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))

	order := make([]int, s.claims)
	for i := range order {
		order[i] = i
	}
	rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	return order
}

// AssignGroup returns the configured group, or spreads participants over
// assign_groups by a hash of their ID
func (s *Study) AssignGroup(pid string) model.ExperimentGroup {
	if len(s.cfg.AssignGroups) == 0 {
		return model.ExperimentGroup(s.cfg.Group)
	}

	return model.ExperimentGroup(s.cfg.AssignGroups[hashPID(pid)%uint64(len(s.cfg.AssignGroups))])
}

// OverrideGroup applies a group query parameter when overrides are allowed.
// It returns the session unchanged when the value is absent or not allowed.
func (s *Study) OverrideGroup(sess Session, raw string) (Session, error) {
	if raw == "" || !s.cfg.AllowGroupOverride {
		return sess, nil
	}

	g, err := strconv.Atoi(raw)
	if err != nil || !model.ValidGroup(g) {
		return sess, fmt.Errorf("invalid group %q", raw)
	}

	sess.Group = model.ExperimentGroup(g)
	return sess, nil
}

// PageCount returns the number of pages in a sequence: pre, every claim, post
func (s *Study) PageCount() int {
	return s.claims + 2
}

// Current returns the page the session is on
func (s *Study) Current(sess Session) Page {
	page := s.clamp(sess.Page)

	switch {
	case page == 0:
		return Page{Kind: PagePre}
	case page > s.claims:
		return Page{Kind: PagePost}
	default:
		return Page{Kind: PageClaim, ClaimIndex: s.ClaimOrder(sess.ParticipantID)[page-1]}
	}
}

// Next advances one page, stopping at the post-survey
func (s *Study) Next(sess Session) Session {
	sess.Page = s.clamp(sess.Page + 1)
	return sess
}

// Prev goes back one page, stopping at the pre-survey
func (s *Study) Prev(sess Session) Session {
	sess.Page = s.clamp(sess.Page - 1)
	return sess
}

// SurveyURL returns the survey iframe address for a page
func (s *Study) SurveyURL(page Page, pid string) string {
	claim := string(page.Kind)
	if page.Kind == PageClaim {
		claim = strconv.Itoa(page.ClaimIndex)
	}

	return fmt.Sprintf("%s/%s/?pid=%s&claim=%s", strings.TrimRight(s.cfg.SurveyBaseURL, "/"), page.Kind, url.QueryEscape(pid), claim)
}

func (s *Study) clamp(page int) int {
	return max(0, min(page, s.PageCount()-1))
}

func hashPID(pid string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(pid))
	return h.Sum64()
}
