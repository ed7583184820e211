// Пакет devidp — локальный провайдер идентификации для разработки и тестов.
// Генерирует RSA ключевую пару при старте, отдаёт JWKS по GET /jwks
// и подписывает JWT по POST /token. Не предназначен для production:
// токен выдаётся любому, кто его запросил.
package devidp

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/datashare/internal/api/errors"
)

const (
	// KeyID — kid единственного ключа.
	KeyID = "datashare-dev-1"
	// DefaultTTL — срок жизни токена, если ttl_seconds не указан.
	DefaultTTL = time.Hour
	// issuer — значение iss в выданных токенах.
	issuer = "datashare-dev-idp"
)

// jwksKey представляет один ключ в JWKS (RFC 7517).
type jwksKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwksResponse struct {
	Keys []jwksKey `json:"keys"`
}

// tokenRequest — тело запроса POST /token.
type tokenRequest struct {
	Sub        string `json:"sub"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// TokenResponse — ответ POST /token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Issuer — RSA ключ и кэшированный JWKS.
type Issuer struct {
	key    *rsa.PrivateKey
	jwks   []byte
	logger *slog.Logger
	now    func() time.Time
}

// New генерирует ключевую пару размера keySize бит.
func New(keySize int, logger *slog.Logger) (*Issuer, error) {
	if keySize < 2048 {
		return nil, fmt.Errorf("размер RSA ключа %d меньше 2048", keySize)
	}
	key, err := rsa.GenerateKey(rand.Reader, keySize)
	if err != nil {
		return nil, fmt.Errorf("генерация RSA ключа: %w", err)
	}

	jwks, err := json.Marshal(jwksResponse{Keys: []jwksKey{{
		Kty: "RSA",
		Kid: KeyID,
		Use: "sig",
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
	}}})
	if err != nil {
		return nil, fmt.Errorf("сериализация JWKS: %w", err)
	}

	return &Issuer{
		key:    key,
		jwks:   jwks,
		logger: logger.With(slog.String("component", "dev_idp")),
		now:    time.Now,
	}, nil
}

// JWKS возвращает JSON набора публичных ключей.
func (i *Issuer) JWKS() []byte {
	return i.jwks
}

// Issue подписывает RS256 токен для sub со сроком ttl.
func (i *Issuer) Issue(sub string, ttl time.Duration) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Subject:   sub,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	token.Header["kid"] = KeyID

	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("подпись JWT: %w", err)
	}
	return signed, expiresAt, nil
}

// Handler возвращает маршруты /jwks, /token, /health.
func (i *Issuer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/jwks", i.handleJWKS)
	r.Post("/token", i.handleToken)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return r
}

// handleJWKS обрабатывает GET /jwks.
func (i *Issuer) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(i.jwks)
}

// handleToken обрабатывает POST /token: {"sub": "...", "ttl_seconds": 3600}.
func (i *Issuer) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Невалидный JSON: "+err.Error())
		return
	}
	if req.Sub == "" {
		apierrors.ValidationError(w, "Поле 'sub' обязательно")
		return
	}

	ttl := DefaultTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	token, expiresAt, err := i.Issue(req.Sub, ttl)
	if err != nil {
		i.logger.Error("Ошибка подписи JWT", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Ошибка генерации токена")
		return
	}

	i.logger.Info("Токен выдан",
		slog.String("sub", req.Sub),
		slog.Duration("ttl", ttl),
	)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(TokenResponse{Token: token, ExpiresAt: expiresAt})
}
