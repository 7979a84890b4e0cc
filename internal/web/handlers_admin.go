package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	. "maragu.dev/gomponents"

	"chatfunnel/internal/html"
)

const adminCookie = "chatfunnel_admin"

// AdminAuth is the single configured administrator.
type AdminAuth struct {
	Email    string
	Password string
	Secret   string
	// TTL bounds a login; zero means 12 hours.
	TTL time.Duration
}

func (a AdminAuth) ttl() time.Duration {
	if a.TTL <= 0 {
		return 12 * time.Hour
	}
	return a.TTL
}

func (a AdminAuth) check(email, password string) bool {
	if a.Email == "" || a.Password == "" {
		return false
	}
	okEmail := subtle.ConstantTimeCompare([]byte(strings.ToLower(strings.TrimSpace(email))), []byte(strings.ToLower(a.Email)))
	okPassword := subtle.ConstantTimeCompare([]byte(password), []byte(a.Password))
	return okEmail&okPassword == 1
}

type tokenClaims struct {
	Sub string `json:"sub"`
	Exp int64  `json:"exp"` // unix seconds
}

func signToken(secret, subject string, exp time.Time) (string, error) {
	b, err := json.Marshal(tokenClaims{Sub: subject, Exp: exp.Unix()})
	if err != nil {
		return "", err
	}
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write(b)
	payload := base64.RawURLEncoding.EncodeToString(b)
	signature := base64.RawURLEncoding.EncodeToString(h.Sum(nil))
	return payload + "." + signature, nil
}

func verifyToken(secret, token string, now time.Time) (string, error) {
	payload, signature, ok := strings.Cut(token, ".")
	if !ok {
		return "", errors.New("invalid token format")
	}
	payloadB, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", errors.New("invalid token payload")
	}
	sigB, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil {
		return "", errors.New("invalid token signature")
	}
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write(payloadB)
	if !hmac.Equal(h.Sum(nil), sigB) {
		return "", errors.New("bad signature")
	}
	var claims tokenClaims
	if err := json.Unmarshal(payloadB, &claims); err != nil {
		return "", errors.New("bad claims")
	}
	if claims.Exp < now.Unix() {
		return "", errors.New("token expired")
	}
	if claims.Sub == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Sub, nil
}

// adminSubject returns the logged-in administrator from the session cookie
// or a bearer token.
func (s *Server) adminSubject(r *http.Request) (string, bool) {
	token := ""
	if c, err := r.Cookie(adminCookie); err == nil {
		token = c.Value
	}
	const prefix = "bearer "
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(auth), prefix) {
		token = strings.TrimSpace(auth[len(prefix):])
	}
	if token == "" || s.Admin.Secret == "" {
		return "", false
	}
	sub, err := verifyToken(s.Admin.Secret, token, s.clock().Now())
	if err != nil {
		s.logger().Debug("admin token rejected", "error", err)
		return "", false
	}
	return sub, true
}

func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.adminSubject(r); !ok {
			writeError(w, http.StatusUnauthorized, errors.New("login required"))
			return
		}
		next(w, r)
	}
}

// GET /admin shows the dashboard or the login form.
func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) (Node, error) {
	w.Header().Set("Cache-Control", "no-store")
	if _, ok := s.adminSubject(r); !ok {
		return html.AdminLoginPage("", ""), nil
	}
	hospital, err := s.Leads.HospitalLeads(r.Context())
	if err != nil {
		return nil, fmt.Errorf("list hospital leads: %w", err)
	}
	consultations, err := s.Leads.Consultations(r.Context())
	if err != nil {
		return nil, fmt.Errorf("list consultations: %w", err)
	}
	return html.AdminDashboard(r.URL.Query().Get("tab"), hospital, consultations), nil
}

// POST /admin/login
func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) (Node, error) {
	email := r.FormValue("email")
	if !s.Admin.check(email, r.FormValue("password")) {
		s.logger().Warn("admin login failed", "email", email)
		return html.AdminLoginPage(email, "이메일 또는 비밀번호가 올바르지 않습니다."),
			withStatus(http.StatusUnauthorized, errors.New("invalid credentials"))
	}
	exp := s.clock().Now().Add(s.Admin.ttl())
	token, err := signToken(s.Admin.Secret, s.Admin.Email, exp)
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     adminCookie,
		Value:    token,
		Path:     "/admin",
		Expires:  exp,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
	s.logger().Info("admin logged in", "email", s.Admin.Email)
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
	return nil, nil
}

// POST /admin/logout
func (s *Server) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     adminCookie,
		Value:    "",
		Path:     "/admin",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// GET /admin/export.json
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	hospital, err := s.Leads.HospitalLeads(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	consultations, err := s.Leads.Consultations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"hospital_leads": hospital,
		"consultations":  consultations,
	})
}
