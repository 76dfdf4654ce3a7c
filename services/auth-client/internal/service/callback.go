package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quangdang46/talent-passport/services/auth-client/internal/domain"
)

const idTokenParam = "id_token"

// ExtractionStrategy recovers a raw identity token from one delivery path.
// It returns "" with a nil error when its path holds no token.
type ExtractionStrategy struct {
	Name    string
	Extract func(ctx context.Context, callback *url.URL) (string, error)
}

// TokenCapture holds a token grabbed as soon as the callback arrived
type TokenCapture struct {
	mu    sync.Mutex
	token string
}

func (c *TokenCapture) Set(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = raw
}

func (c *TokenCapture) Get() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *TokenCapture) Clear() {
	c.Set("")
}

// CapturedTokenStrategy reads the in-process capture
func CapturedTokenStrategy(capture *TokenCapture) ExtractionStrategy {
	return ExtractionStrategy{
		Name: "captured",
		Extract: func(context.Context, *url.URL) (string, error) {
			return capture.Get(), nil
		},
	}
}

// StoredTokenStrategy reads a token the capture handler put in short-lived storage
func StoredTokenStrategy(store domain.KeyValueStore) ExtractionStrategy {
	return ExtractionStrategy{
		Name: "stored",
		Extract: func(ctx context.Context, _ *url.URL) (string, error) {
			raw, err := store.Get(ctx, keyCapturedToken)
			if errors.Is(err, domain.ErrKeyNotFound) {
				return "", nil
			}
			if err != nil {
				return "", err
			}
			return string(raw), nil
		},
	}
}

// FragmentStrategy reads #id_token=...
func FragmentStrategy() ExtractionStrategy {
	return ExtractionStrategy{
		Name: "fragment",
		Extract: func(_ context.Context, callback *url.URL) (string, error) {
			if callback == nil {
				return "", nil
			}
			return fragmentValues(callback).Get(idTokenParam), nil
		},
	}
}

// QueryStrategy reads ?id_token=...
func QueryStrategy() ExtractionStrategy {
	return ExtractionStrategy{
		Name: "query",
		Extract: func(_ context.Context, callback *url.URL) (string, error) {
			if callback == nil {
				return "", nil
			}
			return callback.Query().Get(idTokenParam), nil
		},
	}
}

func fragmentValues(u *url.URL) url.Values {
	values, err := url.ParseQuery(u.EscapedFragment())
	if err != nil {
		return url.Values{}
	}
	return values
}

// TokenExtractor tries strategies in order
type TokenExtractor struct {
	strategies []ExtractionStrategy
}

func NewTokenExtractor(strategies ...ExtractionStrategy) *TokenExtractor {
	return &TokenExtractor{strategies: strategies}
}

// Extract returns the first token found and the strategy that found it.
// A provider error parameter yields ProviderDeniedError; nothing at all yields ErrTokenNotFound.
func (e *TokenExtractor) Extract(ctx context.Context, callback *url.URL) (string, string, error) {
	for _, strategy := range e.strategies {
		raw, err := strategy.Extract(ctx, callback)
		if err != nil {
			return "", strategy.Name, fmt.Errorf("%s extraction failed: %w", strategy.Name, err)
		}
		if raw = strings.TrimSpace(raw); raw != "" {
			return raw, strategy.Name, nil
		}
	}

	if callback != nil {
		for _, values := range []url.Values{fragmentValues(callback), callback.Query()} {
			if code := values.Get("error"); code != "" {
				return "", "", &domain.ProviderDeniedError{
					Code:        code,
					Description: values.Get("error_description"),
				}
			}
		}
	}

	return "", "", domain.ErrTokenNotFound
}

// ParseIdentityToken reads structural claims without verifying the signature.
// audience is enforced when non-empty.
func ParseIdentityToken(raw, audience string, now time.Time) (*domain.IdentityToken, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	iss, _ := claims.GetIssuer()
	if iss == "" {
		return nil, fmt.Errorf("%w: missing iss", domain.ErrInvalidToken)
	}
	sub, _ := claims.GetSubject()
	if sub == "" {
		return nil, fmt.Errorf("%w: missing sub", domain.ErrInvalidToken)
	}
	nonce := stringClaim(claims, "nonce")
	if nonce == "" {
		return nil, fmt.Errorf("%w: missing nonce", domain.ErrInvalidToken)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: missing exp", domain.ErrInvalidToken)
	}
	if !now.Before(exp.Time) {
		return nil, fmt.Errorf("%w: token expired at %s", domain.ErrInvalidToken, exp.Time.UTC().Format(time.RFC3339))
	}

	auds, _ := claims.GetAudience()
	aud, err := pickAudience(auds, audience)
	if err != nil {
		return nil, err
	}

	return &domain.IdentityToken{
		Raw: raw,
		Claims: domain.IdentityClaims{
			Issuer:    iss,
			Subject:   sub,
			Audience:  aud,
			Nonce:     nonce,
			ExpiresAt: exp.Time,
			Email:     stringClaim(claims, "email"),
			Name:      stringClaim(claims, "name"),
			Picture:   stringClaim(claims, "picture"),
		},
	}, nil
}

func pickAudience(auds []string, expected string) (string, error) {
	if len(auds) == 0 {
		return "", fmt.Errorf("%w: missing aud", domain.ErrInvalidToken)
	}
	if expected == "" {
		return auds[0], nil
	}
	for _, aud := range auds {
		if aud == expected {
			return aud, nil
		}
	}
	return "", fmt.Errorf("%w: audience does not include %s", domain.ErrInvalidToken, expected)
}

func stringClaim(claims jwt.MapClaims, name string) string {
	if v, ok := claims[name].(string); ok {
		return v
	}
	return ""
}

// rawTokenNonce reads the nonce claim of a token already accepted at login
func rawTokenNonce(raw string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return ""
	}
	return stringClaim(claims, "nonce")
}
