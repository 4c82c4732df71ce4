package session

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrNoSession      = errors.New("no session")
	ErrInvalidSession = errors.New("invalid session")
	ErrExpiredSession = errors.New("session has expired")
)

type Config struct {
	Secret     string
	CookieName string
	TTL        time.Duration
	Issuer     string
	Secure     bool
}

// Claims carried by a session token.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Manager issues and verifies HS256-signed session tokens stored in a cookie.
// The login flow calls Issue or SetCookie; the gate calls FromRequest.
type Manager struct {
	cfg Config
	now func() time.Time
}

func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < 16 {
		return nil, errors.New("session secret must be at least 16 bytes")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "todo_session"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "todo-web"
	}
	return &Manager{cfg: cfg, now: time.Now}, nil
}

func (m *Manager) CookieName() string { return m.cfg.CookieName }

func (m *Manager) Issue(id Identity) (string, error) {
	if id.UserID <= 0 {
		return "", ErrInvalidSession
	}
	now := m.now()
	claims := Claims{
		UserID:   id.UserID,
		Username: id.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.cfg.Issuer,
			Subject:   strconv.FormatInt(id.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.TTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.cfg.Secret))
}

func (m *Manager) Parse(token string) (Identity, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSession
		}
		return []byte(m.cfg.Secret), nil
	},
		jwt.WithIssuer(m.cfg.Issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrExpiredSession
		}
		return Identity{}, ErrInvalidSession
	}
	if !parsed.Valid || claims.UserID <= 0 {
		return Identity{}, ErrInvalidSession
	}
	return Identity{UserID: claims.UserID, Username: claims.Username}, nil
}

// FromRequest reads and verifies the session cookie.
func (m *Manager) FromRequest(r *http.Request) (Identity, error) {
	c, err := r.Cookie(m.cfg.CookieName)
	if err != nil || c.Value == "" {
		return Identity{}, ErrNoSession
	}
	return m.Parse(c.Value)
}

// SetCookie issues a token for id and attaches it to the response.
func (m *Manager) SetCookie(w http.ResponseWriter, id Identity) error {
	token, err := m.Issue(id)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ClearCookie expires the session cookie.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
