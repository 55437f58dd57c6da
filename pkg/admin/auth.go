package admin

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Claims holds the JWT claims for an operator session.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// authService checks the operator password and issues bearer tokens.
type authService struct {
	passwordHash []byte
	jwtKey       []byte
	expiry       time.Duration
}

// newAuthService creates an auth service. If jwtSecret is empty, a random
// 32-byte key is generated, so tokens do not survive a restart.
func newAuthService(passwordHash, jwtSecret string, expirySeconds int) *authService {
	var key []byte
	if jwtSecret != "" {
		key = []byte(jwtSecret)
	} else {
		key = make([]byte, 32)
		rand.Read(key)
	}
	expiry := 24 * time.Hour
	if expirySeconds > 0 {
		expiry = time.Duration(expirySeconds) * time.Second
	}
	var hash []byte
	if passwordHash != "" {
		hash = []byte(passwordHash)
	}
	return &authService{
		passwordHash: hash,
		jwtKey:       key,
		expiry:       expiry,
	}
}

// enabled reports whether an operator password is configured.
func (a *authService) enabled() bool {
	return len(a.passwordHash) > 0
}

// login checks password and returns a signed token.
func (a *authService) login(password string) (string, error) {
	if !a.enabled() {
		return "", fmt.Errorf("no admin password configured")
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return "", fmt.Errorf("invalid credentials")
	}
	now := time.Now()
	claims := Claims{
		Role: "operator",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "operator",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
			Issuer:    "sensorbridge",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtKey)
}

// validateToken parses and validates a JWT token string.
func (a *authService) validateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.jwtKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// require guards next with a bearer token check when a password is
// configured. Without one the API is open, which suits a bridge on a
// private LAN.
func (a *authService) require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.enabled() {
			next.ServeHTTP(w, r)
			return
		}
		parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeError(w, http.StatusUnauthorized, "authorization required")
			return
		}
		if _, err := a.validateToken(parts[1]); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Admin) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !a.auth.enabled() {
		writeError(w, http.StatusNotFound, "admin password not configured")
		return
	}
	token, err := a.auth.login(req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// HashPassword returns a bcrypt hash suitable for admin_password_hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// GenerateJWTSecret generates a random hex-encoded secret suitable for jwt_secret config.
func GenerateJWTSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
