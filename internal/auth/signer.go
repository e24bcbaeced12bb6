// Package auth signs the short-lived tokens that authenticate requests
// to the model server.
package auth

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apierrors "github.com/diogo/streamchat/internal/errors"
)

const (
	DefaultTTL    = time.Hour
	DefaultIssuer = "streamchat"
)

// Claims are the claims carried by a request token
type Claims struct {
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// Token is a signed JWT and its expiry
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Expired reports whether the token is expired at now, or will be within skew.
func (t Token) Expired(now time.Time, skew time.Duration) bool {
	return t.Value == "" || !now.Add(skew).Before(t.ExpiresAt)
}

// Signer signs tokens with a private key loaded from disk
type Signer struct {
	key     crypto.PrivateKey
	method  jwt.SigningMethod
	issuer  string
	subject string
	keyID   string
	ttl     time.Duration
	now     func() time.Time
}

// SignerOption configures a Signer
type SignerOption func(*Signer)

// WithIssuer sets the iss claim
func WithIssuer(iss string) SignerOption {
	return func(s *Signer) {
		if iss != "" {
			s.issuer = iss
		}
	}
}

// WithSubject sets the sub claim
func WithSubject(sub string) SignerOption {
	return func(s *Signer) {
		s.subject = sub
	}
}

// WithKeyID sets the kid header
func WithKeyID(kid string) SignerOption {
	return func(s *Signer) {
		s.keyID = kid
	}
}

// WithTTL sets the token lifetime
func WithTTL(ttl time.Duration) SignerOption {
	return func(s *Signer) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces the time source
func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) {
		s.now = now
	}
}

// LoadSigner reads a PEM private key from path
func LoadSigner(path string, opts ...SignerOption) (*Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", apierrors.ErrNoKey, path)
		}
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}
	return NewSigner(data, opts...)
}

// NewSigner parses PEM key data and picks the signing method from the key type:
// EdDSA for Ed25519, RS256 for RSA and ES256/384/512 for EC keys.
func NewSigner(pemData []byte, opts ...SignerOption) (*Signer, error) {
	key, err := parsePrivateKey(pemData)
	if err != nil {
		return nil, err
	}
	method, err := methodFor(key)
	if err != nil {
		return nil, err
	}

	s := &Signer{
		key:    key,
		method: method,
		issuer: DefaultIssuer,
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Algorithm returns the JWT alg the signer uses
func (s *Signer) Algorithm() string {
	return s.method.Alg()
}

// Public returns the public half of the signing key
func (s *Signer) Public() crypto.PublicKey {
	if k, ok := s.key.(interface{ Public() crypto.PublicKey }); ok {
		return k.Public()
	}
	return nil
}

// Sign issues a token bound to sessionID
func (s *Signer) Sign(sessionID string) (Token, error) {
	now := s.now().Truncate(time.Second)
	exp := now.Add(s.ttl)

	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   s.subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}

	tok := jwt.NewWithClaims(s.method, claims)
	if s.keyID != "" {
		tok.Header["kid"] = s.keyID
	}

	signed, err := tok.SignedString(s.key)
	if err != nil {
		return Token{}, apierrors.NewAuthError(fmt.Sprintf("failed to sign token: %v", err))
	}
	return Token{Value: signed, ExpiresAt: exp}, nil
}

func parsePrivateKey(pemData []byte) (crypto.PrivateKey, error) {
	if block, _ := pem.Decode(pemData); block == nil {
		return nil, apierrors.NewAuthError("signing key is not PEM encoded")
	}
	if key, err := jwt.ParseEdPrivateKeyFromPEM(pemData); err == nil {
		return key, nil
	}
	if key, err := jwt.ParseRSAPrivateKeyFromPEM(pemData); err == nil {
		return key, nil
	}
	if key, err := jwt.ParseECPrivateKeyFromPEM(pemData); err == nil {
		return key, nil
	}
	return nil, apierrors.NewAuthError("unsupported signing key: expected Ed25519, RSA or EC private key")
}

func methodFor(key crypto.PrivateKey) (jwt.SigningMethod, error) {
	switch k := key.(type) {
	case ed25519.PrivateKey:
		return jwt.SigningMethodEdDSA, nil
	case *rsa.PrivateKey:
		return jwt.SigningMethodRS256, nil
	case *ecdsa.PrivateKey:
		switch k.Curve.Params().BitSize {
		case 256:
			return jwt.SigningMethodES256, nil
		case 384:
			return jwt.SigningMethodES384, nil
		case 521:
			return jwt.SigningMethodES512, nil
		}
		return nil, apierrors.NewAuthError(fmt.Sprintf("unsupported EC curve %s", k.Curve.Params().Name))
	}
	return nil, apierrors.NewAuthError(fmt.Sprintf("unsupported key type %T", key))
}

// GenerateKey creates a new Ed25519 key pair and returns the PKCS#8 private
// key and PKIX public key, both PEM encoded.
func GenerateKey() (privatePEM, publicPEM []byte, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate key: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode public key: %w", err)
	}

	privatePEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	publicPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privatePEM, publicPEM, nil
}

// PublicKeyPEM encodes the public half of the signer's key
func (s *Signer) PublicKeyPEM() ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(s.Public())
	if err != nil {
		return nil, fmt.Errorf("failed to encode public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}
