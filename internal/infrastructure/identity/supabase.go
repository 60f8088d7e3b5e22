package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"sitegen/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// SupabaseVerifier checks tokens locally with the project's JWT secret and
// falls back to the provider's /auth/v1/user endpoint.
type SupabaseVerifier struct {
	url       string
	anonKey   string
	jwtSecret []byte
	adminRole string
	cacheTTL  time.Duration

	client *http.Client
	cache  TokenCache
	log    logrus.FieldLogger
}

type supabaseUser struct {
	ID          string                 `json:"id"`
	Email       string                 `json:"email"`
	Role        string                 `json:"role"`
	AppMetadata map[string]interface{} `json:"app_metadata"`
}

// NewSupabaseVerifier returns nil when neither a JWT secret nor a URL with
// an anon key is configured. cache may be nil.
func NewSupabaseVerifier(cfg *config.IdentityConfig, cache TokenCache, log logrus.FieldLogger) *SupabaseVerifier {
	hasREST := cfg.URL != "" && cfg.AnonKey != ""
	if cfg.JWTSecret == "" && !hasREST {
		return nil
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	v := &SupabaseVerifier{
		url:       cfg.URL,
		anonKey:   cfg.AnonKey,
		adminRole: cfg.AdminRole,
		cacheTTL:  cfg.TokenCacheTTL,
		client:    &http.Client{Timeout: 10 * time.Second},
		cache:     cache,
		log:       log,
	}
	if cfg.JWTSecret != "" {
		v.jwtSecret = []byte(cfg.JWTSecret)
	}
	return v
}

func (v *SupabaseVerifier) Verify(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	if v.jwtSecret != nil {
		p, err := v.verifyLocal(token)
		if err == nil {
			return p, nil
		}
		if v.url == "" || v.anonKey == "" {
			return nil, ErrInvalidToken
		}
		v.log.WithError(err).Debug("local token verification failed, asking provider")
	}

	if v.cache != nil {
		if p, ok := v.cache.Get(ctx, token); ok {
			return p, nil
		}
	}

	p, err := v.verifyRemote(ctx, token)
	if err != nil {
		return nil, err
	}

	if v.cache != nil {
		v.cache.Set(ctx, token, p, v.ttlFor(token))
	}
	return p, nil
}

func (v *SupabaseVerifier) verifyLocal(token string) (*Principal, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwt parse: %w", err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		return nil, errors.New("token has no subject")
	}

	user := supabaseUser{ID: sub}
	user.Email, _ = claims["email"].(string)
	user.Role, _ = claims["role"].(string)
	user.AppMetadata, _ = claims["app_metadata"].(map[string]interface{})
	return v.principal(user), nil
}

func (v *SupabaseVerifier) verifyRemote(ctx context.Context, token string) (*Principal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url+"/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", v.anonKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidToken
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, body)
	}

	var user supabaseUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("%w: decode user: %v", ErrUnavailable, err)
	}
	if user.ID == "" {
		return nil, ErrInvalidToken
	}
	return v.principal(user), nil
}

func (v *SupabaseVerifier) principal(u supabaseUser) *Principal {
	appRole, _ := u.AppMetadata["role"].(string)
	return &Principal{
		ID:      u.ID,
		Email:   u.Email,
		Role:    u.Role,
		IsAdmin: u.Role == ServiceRole || (v.adminRole != "" && appRole == v.adminRole),
	}
}

// ttlFor caps the cache lifetime at the token's own expiry.
func (v *SupabaseVerifier) ttlFor(token string) time.Duration {
	ttl := v.cacheTTL
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ttl
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return ttl
	}
	if remaining := time.Until(exp.Time); remaining < ttl {
		return remaining
	}
	return ttl
}
