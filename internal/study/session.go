package study

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/factstudy/internal/model"
)

const sigSize = 16 // Truncated HMAC-SHA256

// Session errors.
var (
	ErrInvalidSession = errors.New("invalid session")
	ErrSessionExpired = errors.New("session expired")
)

// Session is the participant state carried in the study cookie
type Session struct {
	ParticipantID string                `json:"pid"`
	Group         model.ExperimentGroup `json:"group"`
	Claims        int                   `json:"n"`    // Claim count the session was started for
	Page          int                   `json:"page"` // 0 is the pre-survey, Claims+1 the post-survey
	ExpiresAt     int64                 `json:"exp"`
}

// SessionCodec signs and verifies session cookies.
// The encoded form is base64url(payload) "." base64url(signature).
type SessionCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionCodec creates a codec. An empty secret gets a random one, which
// invalidates every cookie issued before a restart.
func NewSessionCodec(secret string, ttl time.Duration) (*SessionCodec, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate cookie secret: %w", err)
		}
	}

	return &SessionCodec{secret: key, ttl: ttl, now: time.Now}, nil
}

// Encode signs the session and stamps its expiry
func (c *SessionCodec) Encode(s Session) (string, error) {
	s.ExpiresAt = c.now().Add(c.ttl).Unix()

	payload, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}

	sig := c.sign(payload)

	return base64.RawURLEncoding.EncodeToString(payload) + "." + base64.RawURLEncoding.EncodeToString(sig[:sigSize]), nil
}

// Decode verifies and decodes a session cookie value
func (c *SessionCodec) Decode(value string) (*Session, error) {
	encPayload, encSig, ok := bytes.Cut([]byte(value), []byte("."))
	if !ok {
		return nil, ErrInvalidSession
	}

	payload, err := base64.RawURLEncoding.DecodeString(string(encPayload))
	if err != nil {
		return nil, ErrInvalidSession
	}

	providedSig, err := base64.RawURLEncoding.DecodeString(string(encSig))
	if err != nil || len(providedSig) != sigSize {
		return nil, ErrInvalidSession
	}

	expectedSig := c.sign(payload)
	if !hmac.Equal(providedSig, expectedSig[:sigSize]) {
		return nil, ErrInvalidSession
	}

	var s Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, ErrInvalidSession
	}

	if c.now().After(time.Unix(s.ExpiresAt, 0)) {
		return nil, ErrSessionExpired
	}

	return &s, nil
}

// sign computes HMAC-SHA256 of the payload.
func (c *SessionCodec) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(payload)

	return mac.Sum(nil)
}
