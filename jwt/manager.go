package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod defines a public type used by goToken APIs.
//
// SigningMethod instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SigningMethod string

const (
	// MethodEd25519 is an exported constant or variable used by the token engine.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 is an exported constant or variable used by the token engine.
	MethodHS256 SigningMethod = "hs256"
)

// TokenKind defines a public type used by goToken APIs.
//
// TokenKind instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenKind string

const (
	// KindAccess is an exported constant or variable used by the token engine.
	KindAccess TokenKind = "access"
	// KindRefresh is an exported constant or variable used by the token engine.
	KindRefresh TokenKind = "refresh"
)

// MinKeyBytes is an exported constant or variable used by the token engine.
const MinKeyBytes = 32

// Config defines a public type used by goToken APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	SigningMethod SigningMethod
	SigningKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	RotationGrace time.Duration
	RequireIAT    bool
	MaxFutureIAT  time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte

	// RootSecret, when set with DerivedKeyIDs, replaces SigningKey/VerifyKeys
	// with an HKDF-derived hs256 keyring. See keyring.go.
	RootSecret    []byte
	DerivedKeyIDs []string
}

// Manager defines a public type used by goToken APIs.
//
// Manager instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Manager struct {
	config Config
}

// TokenClaims defines a public type used by goToken APIs.
//
// TokenClaims instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenClaims struct {
	Role              string    `json:"rol,omitempty"`
	SessionID         string    `json:"sid"`
	DeviceFingerprint string    `json:"dfp,omitempty"`
	Kind              TokenKind `json:"knd"`
	FamilyVersion     uint32    `json:"fam,omitempty"`
	jwt.RegisteredClaims
}

// SubjectID returns the opaque subject identifier carried in the sub claim.
func (c *TokenClaims) SubjectID() string {
	return c.Subject
}

// TokenID returns the per-instance unique identifier carried in the jti claim.
// It is the revocation key for this token.
func (c *TokenClaims) TokenID() string {
	return c.ID
}

// NewManager describes the newmanager operation and its observable behavior.
//
// NewManager may return an error when input validation, dependency calls, or security checks fail.
// NewManager does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.RotationGrace == 0 {
		cfg.RotationGrace = 30 * time.Second
	}
	if cfg.RotationGrace < 0 || cfg.RotationGrace > 5*time.Minute {
		return nil, errors.New("invalid rotation grace configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	if len(cfg.RootSecret) > 0 {
		derived, err := applyDerivedKeyring(&cfg)
		if err != nil {
			return nil, err
		}
		cfg = derived
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if err := validateSymmetricKey(cfg.SigningKey); err != nil {
			return nil, err
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if err := validateSymmetricKey(key); err != nil {
				return nil, fmt.Errorf("verify key for kid %q: %w", kid, err)
			}
		}
	case MethodEd25519:
		if len(cfg.SigningKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.SigningKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
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
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	return &Manager{config: cfg}, nil
}

// Mint builds and signs a fresh token. The claims construction lives here so
// every issuance path (initial issue and rotation) produces identical claim
// shapes. Refresh tokens never carry a role; access tokens never carry a
// family version.
func (j *Manager) Mint(
	subjectID string,
	role string,
	sessionID string,
	deviceFingerprint string,
	kind TokenKind,
	familyVersion uint32,
	tokenID string,
	now time.Time,
	ttl time.Duration,
) (string, *TokenClaims, error) {
	if subjectID == "" {
		return "", nil, errors.New("empty subject id")
	}
	if sessionID == "" {
		return "", nil, errors.New("empty session id")
	}
	if tokenID == "" {
		return "", nil, errors.New("empty token id")
	}
	if ttl <= 0 {
		return "", nil, errors.New("non-positive ttl")
	}

	switch kind {
	case KindAccess:
		familyVersion = 0
	case KindRefresh:
		if role != "" {
			return "", nil, errors.New("refresh tokens must not carry a role")
		}
		if familyVersion == 0 {
			familyVersion = 1
		}
	default:
		return "", nil, fmt.Errorf("unknown token kind %q", kind)
	}

	claims := &TokenClaims{
		Role:              role,
		SessionID:         sessionID,
		DeviceFingerprint: deviceFingerprint,
		Kind:              kind,
		FamilyVersion:     familyVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := j.Encode(claims)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Encode describes the encode operation and its observable behavior.
//
// Encode may return an error when input validation, dependency calls, or security checks fail.
// Encode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (j *Manager) Encode(claims *TokenClaims) (string, error) {
	if claims == nil {
		return "", errors.New("nil claims")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil || claims.NotBefore == nil {
		return "", errors.New("claims missing time window")
	}
	if claims.NotBefore.Time.After(claims.IssuedAt.Time) || claims.IssuedAt.Time.After(claims.ExpiresAt.Time) {
		return "", errors.New("claims time window out of order")
	}
	if claims.ID == "" {
		return "", errors.New("claims missing token id")
	}

	// Issuer and audience come from configuration, never from the caller.
	claims.Issuer = j.config.Issuer
	if j.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.config.Audience}
	}

	token := jwt.NewWithClaims(j.getMethod(), claims)
	if j.config.KeyID != "" {
		token.Header["kid"] = j.config.KeyID
	}

	signKey, err := j.getSignKey()
	if err != nil {
		return "", err
	}

	return token.SignedString(signKey)
}

// Decode describes the decode operation and its observable behavior.
//
// Decode may return an error when input validation, dependency calls, or security checks fail.
// Decode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (j *Manager) Decode(tokenStr string) (*TokenClaims, error) {
	return j.parse(tokenStr, j.config.Leeway, true)
}

// DecodeWithGrace parses like Decode but widens the temporal leeway by the
// configured rotation grace, so an about-to-expire token can still be rotated
// when the caller's clock runs slightly ahead.
func (j *Manager) DecodeWithGrace(tokenStr string) (*TokenClaims, error) {
	return j.parse(tokenStr, j.config.Leeway+j.config.RotationGrace, true)
}

// DecodeExpired verifies the signature only and skips every claim check.
// Revocation of an already-expired token goes through here; nothing returned
// by DecodeExpired may be treated as a verified credential.
func (j *Manager) DecodeExpired(tokenStr string) (*TokenClaims, error) {
	return j.parse(tokenStr, 0, false)
}

func (j *Manager) parse(tokenStr string, leeway time.Duration, validateClaims bool) (*TokenClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{j.getMethod().Alg()}),
	}
	if validateClaims {
		options = append(options, jwt.WithExpirationRequired())
		if leeway > 0 {
			options = append(options, jwt.WithLeeway(leeway))
		}
		if j.config.RequireIAT {
			options = append(options, jwt.WithIssuedAt())
		}
		if j.config.Issuer != "" {
			options = append(options, jwt.WithIssuer(j.config.Issuer))
		}
		if j.config.Audience != "" {
			options = append(options, jwt.WithAudience(j.config.Audience))
		}
	} else {
		options = append(options, jwt.WithoutClaimsValidation())
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &TokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != j.getMethod().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}

		if len(j.config.VerifyKeys) > 0 {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			key, ok := j.config.VerifyKeys[kid]
			if !ok {
				return nil, errors.New("unknown kid")
			}
			return j.keyBytesToVerifyKey(key)
		}

		if j.config.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			if kid != j.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}

		return j.getVerifyKey()
	})
	if err != nil {
		return nil, classifyParseError(err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || (validateClaims && !token.Valid) {
		return nil, ErrTokenMalformed
	}
	if validateClaims && claims.IssuedAt != nil && j.config.MaxFutureIAT > 0 {
		maxAllowed := time.Now().Add(j.config.MaxFutureIAT)
		if claims.IssuedAt.Time.After(maxAllowed) {
			return nil, fmt.Errorf("%w: iat too far in the future", ErrTokenNotYetValid)
		}
	}

	return claims, nil
}

// classifyParseError maps the joined golang-jwt parser errors onto the codec
// taxonomy. Priority follows the verification order: structural problems, then
// signature integrity, then the time window, then issuer/audience.
func classifyParseError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrTokenSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return ErrTokenNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrIssuerMismatch
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrAudienceMismatch
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenSignature, err)
	}
}

func (j *Manager) getMethod() jwt.SigningMethod {
	switch j.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (j *Manager) getSignKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return j.config.SigningKey, nil
	default:
		return parseEdPrivateKey(j.config.SigningKey)
	}
}

func (j *Manager) getVerifyKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return j.config.SigningKey, nil
	default:
		return parseEdPublicKey(j.config.PublicKey)
	}
}

func (j *Manager) keyBytesToVerifyKey(key []byte) (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return key, nil
	default:
		return parseEdPublicKey(key)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
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
