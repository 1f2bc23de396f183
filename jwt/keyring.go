package jwt

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// placeholderKeys are symmetric key values that ship in examples and tutorials.
// Any of these as a signing key is treated as no key at all.
var placeholderKeys = []string{
	"secret",
	"secretkey",
	"secret-key",
	"changeme",
	"change-me",
	"password",
	"default",
	"test",
	"testsecret",
	"test-secret",
	"dev-secret",
	"development",
	"supersecret",
	"supersecretkey",
	"your-secret-key",
	"your-256-bit-secret",
	"your-256-bit-secret-your-256-bit-secret",
}

func validateSymmetricKey(key []byte) error {
	if len(key) == 0 {
		return errors.New("hs256 requires signing key")
	}
	if entropy := symmetricKeyEntropy(key); entropy < MinKeyBytes {
		return fmt.Errorf("%w: %d bytes of key material, need %d", ErrWeakKey, entropy, MinKeyBytes)
	}
	if uniformBytes(key) {
		return fmt.Errorf("%w: uniform key material", ErrWeakKey)
	}
	normalized := strings.ToLower(strings.TrimSpace(string(key)))
	for _, placeholder := range placeholderKeys {
		if normalized == placeholder {
			return fmt.Errorf("%w: placeholder value", ErrWeakKey)
		}
	}
	return nil
}

// symmetricKeyEntropy reports the effective key material length. A key pasted
// as base64 text carries only its decoded entropy, so the decoded length wins
// whenever the whole value parses as base64. A random binary key tripping this
// path needs every byte inside the base64 alphabet, which has negligible odds.
func symmetricKeyEntropy(key []byte) int {
	text := strings.TrimSpace(string(key))
	if decoded, err := base64.StdEncoding.DecodeString(text); err == nil && len(decoded) > 0 {
		return len(decoded)
	}
	if decoded, err := base64.RawStdEncoding.DecodeString(text); err == nil && len(decoded) > 0 {
		return len(decoded)
	}
	if decoded, err := base64.RawURLEncoding.DecodeString(text); err == nil && len(decoded) > 0 {
		return len(decoded)
	}
	return len(key)
}

func uniformBytes(key []byte) bool {
	return len(key) > 0 && bytes.Count(key, key[:1]) == len(key)
}

// DeriveVerifyKeys expands a root secret into one 32-byte hs256 key per kid
// using HKDF-SHA256, keyed on the kid so every ring entry is independent.
//
// DeriveVerifyKeys may return an error when input validation, dependency calls, or security checks fail.
// DeriveVerifyKeys does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func DeriveVerifyKeys(rootSecret []byte, kids []string) (map[string][]byte, error) {
	if len(rootSecret) < MinKeyBytes {
		return nil, fmt.Errorf("%w: root secret shorter than %d bytes", ErrWeakKey, MinKeyBytes)
	}
	if len(kids) == 0 {
		return nil, errors.New("derived keyring requires at least one kid")
	}

	out := make(map[string][]byte, len(kids))
	for _, kid := range kids {
		kid = strings.TrimSpace(kid)
		if kid == "" {
			return nil, errors.New("derived keyring contains empty kid")
		}
		if _, dup := out[kid]; dup {
			return nil, fmt.Errorf("derived keyring contains duplicate kid %q", kid)
		}

		reader := hkdf.New(sha256.New, rootSecret, nil, []byte("goToken/keyring/"+kid))
		key := make([]byte, MinKeyBytes)
		if _, err := io.ReadFull(reader, key); err != nil {
			return nil, err
		}
		out[kid] = key
	}
	return out, nil
}

func applyDerivedKeyring(cfg *Config) (Config, error) {
	out := *cfg
	if out.SigningMethod != MethodHS256 {
		return Config{}, errors.New("derived keyring requires hs256")
	}
	if len(out.SigningKey) > 0 || len(out.VerifyKeys) > 0 {
		return Config{}, errors.New("derived keyring conflicts with explicit key material")
	}
	if out.KeyID == "" {
		return Config{}, errors.New("derived keyring requires KeyID")
	}

	kids := out.DerivedKeyIDs
	if len(kids) == 0 {
		kids = []string{out.KeyID}
	}
	ring, err := DeriveVerifyKeys(out.RootSecret, kids)
	if err != nil {
		return Config{}, err
	}
	signKey, ok := ring[strings.TrimSpace(out.KeyID)]
	if !ok {
		return Config{}, errors.New("KeyID is not present in derived keyring")
	}

	out.VerifyKeys = ring
	out.SigningKey = signKey
	return out, nil
}
