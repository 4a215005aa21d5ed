package session

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

// CSRFTokenKey is the session value key carrying the anti-forgery token.
const CSRFTokenKey = "csrf_token"

// FlashMessage is a one-time notification stored in the session.
type FlashMessage struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Record is the persisted form of a session.
type Record struct {
	ID        string
	UserID    *int64
	Payload   []byte
	ExpiresAt time.Time
}

// Store persists session records. Get returns (nil, nil) for a missing or
// expired session.
type Store interface {
	Get(ctx context.Context, id string) (*Record, error)
	Save(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, id string) error
}

// Manager orchestrates cookie based sessions over a Store. Cookie values are
// HMAC-signed with the configured secret so a tampered or forged cookie is
// treated as anonymous instead of hitting the store.
type Manager struct {
	store      Store
	cookieName string
	secret     []byte
	ttl        time.Duration
	secure     bool
}

// Session holds per-request session data.
type Session struct {
	ID        string
	values    map[string]string
	userID    *int64
	flashes   []FlashMessage
	isNew     bool
	dirty     bool
	destroyed bool
}

type sessionPayload struct {
	Values  map[string]string `json:"values"`
	Flashes []FlashMessage    `json:"flashes"`
}

func NewManager(store Store, cookieName, secret string, ttl time.Duration, secure bool) *Manager {
	if cookieName == "" {
		cookieName = "access_session"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{
		store:      store,
		cookieName: cookieName,
		secret:     []byte(secret),
		ttl:        ttl,
		secure:     secure,
	}
}

// Load loads the session referenced by the request cookie, or creates a
// fresh anonymous one. An unsigned or tampered cookie yields a fresh session.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return m.newSession(), nil
		}
		return nil, err
	}

	id, ok := m.verifyCookieValue(cookie.Value)
	if !ok {
		return m.newSession(), nil
	}

	rec, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		sess := m.newSession()
		return sess, nil
	}

	var stored sessionPayload
	if err := json.Unmarshal(rec.Payload, &stored); err != nil {
		return nil, err
	}

	sess := m.newSession()
	sess.ID = rec.ID
	sess.values = stored.Values
	if sess.values == nil {
		sess.values = make(map[string]string)
	}
	sess.userID = rec.UserID
	sess.flashes = stored.Flashes
	sess.isNew = false
	return sess, nil
}

// Commit persists the session and writes cookie headers as needed. A clean,
// pre-existing session is left untouched.
func (m *Manager) Commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return nil
	}

	if sess.destroyed {
		if sess.ID != "" {
			if err := m.store.Delete(ctx, sess.ID); err != nil {
				return err
			}
		}
		http.SetCookie(w, &http.Cookie{
			Name:     m.cookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   m.secure,
			SameSite: http.SameSiteStrictMode,
		})
		return nil
	}

	if !sess.dirty && !sess.isNew {
		return nil
	}

	if sess.ID == "" {
		sess.ID = generateSessionID()
	}

	payload, err := json.Marshal(sessionPayload{
		Values:  sess.values,
		Flashes: sess.flashes,
	})
	if err != nil {
		return err
	}

	rec := &Record{
		ID:        sess.ID,
		UserID:    sess.userID,
		Payload:   payload,
		ExpiresAt: time.Now().Add(m.ttl),
	}
	if err := m.store.Save(ctx, rec); err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    m.signCookieValue(sess.ID),
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

// Establish opens a fresh authenticated session for the principal and writes
// its cookie. Called at login so the ban guard sees the account on every
// subsequent request.
func (m *Manager) Establish(ctx context.Context, w http.ResponseWriter, userID int64) error {
	sess := m.newSession()
	sess.SetUserID(userID)
	sess.RotateCSRFToken()
	return m.Commit(ctx, w, sess)
}

// Clear destroys the session referenced by the request, if any.
func (m *Manager) Clear(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	sess, err := m.Load(ctx, r)
	if err != nil {
		return err
	}
	if sess.isNew {
		return nil
	}
	sess.Destroy()
	return m.Commit(ctx, w, sess)
}

func (m *Manager) newSession() *Session {
	return &Session{
		values: make(map[string]string),
		isNew:  true,
	}
}

// signCookieValue appends an HMAC of the session id. Session ids are
// base64url, so "." never appears in the id itself.
func (m *Manager) signCookieValue(id string) string {
	return id + "." + m.mac(id)
}

func (m *Manager) verifyCookieValue(value string) (string, bool) {
	i := strings.LastIndex(value, ".")
	if i < 0 {
		return "", false
	}
	id, sig := value[:i], value[i+1:]
	if !hmac.Equal([]byte(sig), []byte(m.mac(id))) {
		return "", false
	}
	return id, true
}

func (m *Manager) mac(id string) string {
	h := hmac.New(sha256.New, m.secret)
	h.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func (s *Session) UserID() (int64, bool) {
	if s.userID == nil {
		return 0, false
	}
	return *s.userID, true
}

func (s *Session) SetUserID(id int64) {
	s.userID = &id
	s.dirty = true
}

func (s *Session) Get(key string) string {
	return s.values[key]
}

func (s *Session) Set(key, value string) {
	s.values[key] = value
	s.dirty = true
}

func (s *Session) AddFlash(kind, message string) {
	s.flashes = append(s.flashes, FlashMessage{Kind: kind, Message: message})
	s.dirty = true
}

// Flashes drains and returns the pending flash messages.
func (s *Session) Flashes() []FlashMessage {
	out := s.flashes
	if len(out) > 0 {
		s.flashes = nil
		s.dirty = true
	}
	return out
}

// Destroy marks the session for deletion on commit.
func (s *Session) Destroy() {
	s.destroyed = true
}

func (s *Session) IsDestroyed() bool {
	return s.destroyed
}

// CSRFToken returns the session's anti-forgery token, minting one if absent.
func (s *Session) CSRFToken() string {
	if token := s.values[CSRFTokenKey]; token != "" {
		return token
	}
	token := generateToken()
	s.Set(CSRFTokenKey, token)
	return token
}

// RotateCSRFToken discards the current anti-forgery token and mints a new one.
func (s *Session) RotateCSRFToken() string {
	token := generateToken()
	s.Set(CSRFTokenKey, token)
	return token
}

func generateSessionID() string {
	return generateToken()
}

func generateToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
