package api

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
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/arencloud/sitehost/internal/metadata"
	"github.com/arencloud/sitehost/internal/models"
)

const sessionCookie = "ssess"

// sessionStore maps signed session ids to usernames. In-process only; a
// restart logs everyone out.
type sessionStore struct {
	mu     sync.Mutex
	byID   map[string]string
	secret []byte
}

func newSessionStore(secret string) *sessionStore {
	key := []byte(secret)
	if len(key) == 0 {
		// No configured secret: generate one so cookies are still signed.
		// Sessions then only survive as long as this process.
		key = make([]byte, 32)
		rand.Read(key)
	}
	return &sessionStore{byID: map[string]string{}, secret: key}
}

func (s *sessionStore) sign(value string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func (s *sessionStore) create(username string) string {
	b := make([]byte, 16)
	rand.Read(b)
	sid := base64.RawURLEncoding.EncodeToString(b)
	s.mu.Lock()
	s.byID[sid] = username
	s.mu.Unlock()
	return sid
}

func (s *sessionStore) drop(sid string) {
	s.mu.Lock()
	delete(s.byID, sid)
	s.mu.Unlock()
}

// resolve returns the username for a cookie value of the form "sid.signature".
func (s *sessionStore) resolve(cookieValue string) (string, bool) {
	sid, sig, ok := strings.Cut(cookieValue, ".")
	if !ok || sid == "" {
		return "", false
	}
	if !hmac.Equal([]byte(s.sign(sid)), []byte(sig)) {
		return "", false
	}
	s.mu.Lock()
	username, ok := s.byID[sid]
	s.mu.Unlock()
	return username, ok
}

func (s *apiServer) setSessionCookie(w http.ResponseWriter, sid string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sid + "." + s.sessions.sign(sid),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(24 * time.Hour),
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", Expires: time.Unix(0, 0), MaxAge: -1})
}

// currentUser returns the authenticated username for the request, or "".
func (s *apiServer) currentUser(r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	username, ok := s.sessions.resolve(c.Value)
	if !ok {
		return ""
	}
	return username
}

type ctxKey int

const userKey ctxKey = 1

// requireAuth gates a subtree on a valid session and stashes the username in
// the request context. Handlers read it with requestUser, never from any
// ambient session state.
func (s *apiServer) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username := s.currentUser(r)
		if username == "" {
			respondError(w, http.StatusUnauthorized, "Unauthorized. Please login first.")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, username)))
	})
}

func requestUser(r *http.Request) string {
	if v, ok := r.Context().Value(userKey).(string); ok {
		return v
	}
	return ""
}

func (s *apiServer) register(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.Username == "" || in.Password == "" {
		respondError(w, http.StatusBadRequest, "Username and password required")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid password")
		return
	}
	user := models.User{Email: in.Email, PasswordHash: string(hash), CreatedAt: time.Now().UTC()}
	if err := s.users.Create(r.Context(), in.Username, user); err != nil {
		if errors.Is(err, metadata.ErrUserExists) {
			respondError(w, http.StatusConflict, "User already exists")
			return
		}
		s.logger.Error("register failed", "user", in.Username, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"message": "User created successfully"})
}

func (s *apiServer) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, ok, err := s.users.Get(r.Context(), in.Username)
	if err != nil {
		s.logger.Error("login: loading users failed", "error", err)
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}
	// Missing user and wrong password respond identically.
	if !ok || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	sid := s.sessions.create(in.Username)
	s.setSessionCookie(w, sid)
	respondJSON(w, http.StatusOK, map[string]string{"message": "Login successful"})
}

func (s *apiServer) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if sid, _, ok := strings.Cut(c.Value, "."); ok {
			s.sessions.drop(sid)
		}
	}
	clearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *apiServer) checkAuth(w http.ResponseWriter, r *http.Request) {
	username := s.currentUser(r)
	if username == "" {
		respondJSON(w, http.StatusUnauthorized, map[string]any{"authenticated": false})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"authenticated": true, "user": username})
}
