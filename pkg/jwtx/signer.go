package jwtx

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("jwtx: invalid token")
	ErrIssuer       = errors.New("jwtx: issuer mismatch")
)

// Signer signs and verifies session tokens with a single Ed25519 keypair.
type Signer struct {
	issuer string
	key    ed25519.PrivateKey
	pub    ed25519.PublicKey
}

// NewSigner generates a fresh Ed25519 keypair. Tokens signed with an
// ephemeral key become invalid on restart, which is acceptable for session
// tokens with a bounded TTL.
func NewSigner(issuer string) (*Signer, error) {
	pub, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("jwtx: generate key: %w", err)
	}
	return &Signer{issuer: issuer, key: key, pub: pub}, nil
}

// NewSignerFromPEM loads a PKCS8 Ed25519 private key so tokens survive
// restarts when a key file is configured.
func NewSignerFromPEM(issuer string, pemKey []byte) (*Signer, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil || block.Type != "PRIVATE KEY" {
		return nil, errors.New("jwtx: expected PKCS8 PRIVATE KEY PEM")
	}

	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
	}

	key, ok := priv.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("jwtx: not an Ed25519 private key")
	}

	return &Signer{
		issuer: issuer,
		key:    key,
		pub:    key.Public().(ed25519.PublicKey),
	}, nil
}

// Issuer returns the issuer this signer stamps into and checks on tokens.
func (s *Signer) Issuer() string { return s.issuer }

// Sign turns claims into a signed compact JWT.
func (s *Signer) Sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(s.key)
}

// Verify validates signature, expiry and issuer and returns the parsed claims.
func (s *Signer) Verify(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}))

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.pub, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, ErrIssuer
	}

	return claims, nil
}
