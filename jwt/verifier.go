package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod names the accepted token algorithm.
type SigningMethod string

const (
	// MethodEd25519 accepts EdDSA tokens signed with an ed25519 key.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 accepts HMAC-SHA256 tokens signed with a shared secret.
	MethodHS256 SigningMethod = "hs256"
)

// Claim names usable as the login identifier.
const (
	ClaimPreferredUsername = "preferred_username"
	ClaimEmail             = "email"
	ClaimSubject           = "sub"
)

// ErrMissingLogin is returned when the configured login claim is empty.
var ErrMissingLogin = errors.New("identity token carries no login")

// Config controls identity token verification.
type Config struct {
	SigningMethod SigningMethod
	Secret        []byte
	PublicKey     []byte
	VerifyKeys    map[string][]byte

	Issuer       string
	Audience     string
	Leeway       time.Duration
	MaxFutureIAT time.Duration

	// LoginClaim selects which claim holds the login; defaults to preferred_username.
	LoginClaim string
}

// IdentityClaims is the claim set read from identity tokens.
type IdentityClaims struct {
	PreferredUsername string `json:"preferred_username,omitempty"`
	Email             string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks identity tokens against a fixed key set.
type Verifier struct {
	config Config
}

// NewVerifier validates cfg and returns a verifier.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("identity token issuer and audience required")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	switch cfg.LoginClaim {
	case "":
		cfg.LoginClaim = ClaimPreferredUsername
	case ClaimPreferredUsername, ClaimEmail, ClaimSubject:
	default:
		return nil, fmt.Errorf("unsupported login claim %q", cfg.LoginClaim)
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.Secret) < 32 {
			return nil, errors.New("hs256 requires a secret of at least 32 bytes")
		}
	case MethodEd25519:
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Verifier{config: cfg}, nil
}

// Verify checks signature, issuer, audience, and expiry of token and returns
// the login named by the configured claim.
func (v *Verifier) Verify(token string) (string, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.method().Alg()}),
		jwt.WithIssuer(v.config.Issuer),
		jwt.WithAudience(v.config.Audience),
		jwt.WithExpirationRequired(),
	}
	if v.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(v.config.Leeway))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &IdentityClaims{}, v.keyFunc)
	if err != nil {
		return "", err
	}

	claims, ok := parsed.Claims.(*IdentityClaims)
	if !ok || !parsed.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}
	if claims.IssuedAt != nil && claims.IssuedAt.After(time.Now().Add(v.config.MaxFutureIAT)) {
		return "", errors.New("token iat too far in the future")
	}

	var login string
	switch v.config.LoginClaim {
	case ClaimEmail:
		login = claims.Email
	case ClaimSubject:
		login = claims.Subject
	default:
		login = claims.PreferredUsername
	}
	if login = strings.TrimSpace(login); login == "" {
		return "", ErrMissingLogin
	}

	return login, nil
}

func (v *Verifier) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != v.method().Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}
	if v.config.SigningMethod == MethodHS256 {
		return v.config.Secret, nil
	}

	if len(v.config.VerifyKeys) > 0 {
		kid, _ := t.Header["kid"].(string)
		key, ok := v.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return parseEdPublicKey(key)
	}

	return parseEdPublicKey(v.config.PublicKey)
}

func (v *Verifier) method() jwt.SigningMethod {
	if v.config.SigningMethod == MethodHS256 {
		return jwt.SigningMethodHS256
	}
	return jwt.SigningMethodEdDSA
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
