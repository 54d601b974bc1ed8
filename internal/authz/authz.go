// Package authz issues and verifies the reviewer-identity JWTs that back
// KeyReviewAudit.actor_id/actor_role on every lane-transition write. It
// replaces the teacher's agent/org RBAC surface (CanAccessAgent, grant
// caching, tag-overlap access) with a single-purpose identity layer: there
// is no multi-tenant data to gate here, only "who pressed accept/confirm."
package authz

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is a reviewer identity's authority level. Every action the review
// engine accepts records one of these as KeyReviewAudit.actor_role.
type Role string

const (
	RoleUser Role = "user" // human reviewer, drives user_accept lanes
	RoleAI   Role = "ai"   // automated confirmer, drives ai_confirm lanes
	RoleAdmin Role = "admin"
)

// Claims extends jwt.RegisteredClaims with the reviewer identity fields
// threaded into every review write.
type Claims struct {
	jwt.RegisteredClaims
	ActorID string `json:"actor_id"`
	Role    Role   `json:"role"`
}

// Manager issues and verifies reviewer JWTs using Ed25519 (EdDSA).
type Manager struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	expiration time.Duration
}

const issuer = "curation-core"

// NewManager loads an Ed25519 key pair from PEM files, or generates an
// ephemeral pair when no paths are given — matching the teacher's
// development fallback, since this program has no deployment story that
// requires persistent signing keys across restarts.
func NewManager(privateKeyPath, publicKeyPath string, expiration time.Duration) (*Manager, error) {
	if privateKeyPath == "" || publicKeyPath == "" {
		slog.Warn("authz: no JWT key files configured, generating ephemeral key pair (not for production)")
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("authz: generate key pair: %w", err)
		}
		return &Manager{privateKey: priv, publicKey: pub, expiration: expiration}, nil
	}

	privPEM, err := os.ReadFile(privateKeyPath) //nolint:gosec // paths come from validated config, not user input
	if err != nil {
		return nil, fmt.Errorf("authz: read private key: %w", err)
	}
	block, _ := pem.Decode(privPEM)
	if block == nil {
		return nil, fmt.Errorf("authz: decode private key PEM")
	}
	privKey, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("authz: parse private key: %w", err)
	}
	edPriv, ok := privKey.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("authz: private key is not Ed25519")
	}

	pubPEM, err := os.ReadFile(publicKeyPath) //nolint:gosec // paths come from validated config, not user input
	if err != nil {
		return nil, fmt.Errorf("authz: read public key: %w", err)
	}
	pubBlock, _ := pem.Decode(pubPEM)
	if pubBlock == nil {
		return nil, fmt.Errorf("authz: decode public key PEM")
	}
	pubKey, err := x509.ParsePKIXPublicKey(pubBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("authz: parse public key: %w", err)
	}
	edPub, ok := pubKey.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("authz: public key is not Ed25519")
	}

	derivedPub := edPriv.Public().(ed25519.PublicKey)
	if !bytes.Equal(derivedPub, edPub) {
		return nil, fmt.Errorf("authz: public key does not match private key")
	}

	return &Manager{privateKey: edPriv, publicKey: edPub, expiration: expiration}, nil
}

// IssueToken signs a reviewer-identity token for actorID under role.
func (m *Manager) IssueToken(actorID string, role Role) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(m.expiration)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{issuer},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
		ActorID: actorID,
		Role:    role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(m.privateKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("authz: sign token: %w", err)
	}
	return signed, exp, nil
}

// VerifyToken parses and validates a reviewer token, returning the identity
// it carries. Every internal/review.*Request's ActorID/ActorRole fields are
// meant to be populated from a verified Claims, not taken from unauthenticated
// caller input.
func (m *Manager) VerifyToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodEd25519); !ok {
				return nil, fmt.Errorf("authz: unexpected signing method: %v", token.Header["alg"])
			}
			return m.publicKey, nil
		},
		jwt.WithAudience(issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("authz: verify token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("authz: invalid token claims")
	}
	if claims.Issuer != issuer {
		return nil, fmt.Errorf("authz: invalid issuer: %s", claims.Issuer)
	}
	if claims.ActorID == "" {
		return nil, fmt.Errorf("authz: token carries no actor_id")
	}
	return claims, nil
}
