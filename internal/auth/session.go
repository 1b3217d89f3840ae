// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Ticket binds an anonymous player to the lobby they joined. It is the only credential the
// websocket accepts. Seat numbers are not carried: they shift when an earlier joiner leaves.
type Ticket struct {
	UserID  uuid.UUID
	LobbyID uuid.UUID
}

// Issuer signs and verifies seat tickets with an ed25519 key pair.
type Issuer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	// ttl of a ticket; 0 means tickets carry no exp claim.
	ttl time.Duration
}

// NewIssuer generates a fresh ed25519 key pair at runtime.
func NewIssuer(ttl time.Duration) (*Issuer, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Issuer{privateKey: priv, publicKey: pub, ttl: ttl}, nil
}

// NewIssuerFromPath reads raw ed25519 private/public keys from file.
func NewIssuerFromPath(privatePath, publicPath string, ttl time.Duration) (*Issuer, error) {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return nil, errors.New("key files are not raw ed25519 keys")
	}
	return &Issuer{
		privateKey: ed25519.PrivateKey(privateKeyData),
		publicKey:  ed25519.PublicKey(publicKeyData),
		ttl:        ttl,
	}, nil
}

// CreateJWT signs t with "sub" = user id and the lobby id as a private claim.
func (i *Issuer) CreateJWT(t Ticket) (string, error) {
	claims := jwt.MapClaims{
		"sub":   t.UserID.String(),
		"lobby": t.LobbyID.String(),
		"iat":   time.Now().Unix(),
	}
	if i.ttl > 0 {
		claims["exp"] = time.Now().Add(i.ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(i.privateKey)
}

// AuthenticateJWT verifies a ticket string and returns its claims.
func (i *Issuer) AuthenticateJWT(tokenString string) (Ticket, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.publicKey, nil
	})
	if err != nil {
		return Ticket{}, fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return Ticket{}, errors.New("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return Ticket{}, errors.New("invalid jwt claims")
	}

	var out Ticket
	sub, _ := claims["sub"].(string)
	if out.UserID, err = uuid.Parse(sub); err != nil {
		return Ticket{}, fmt.Errorf("invalid sub in jwt: %w", err)
	}
	lobby, _ := claims["lobby"].(string)
	if out.LobbyID, err = uuid.Parse(lobby); err != nil {
		return Ticket{}, fmt.Errorf("invalid lobby in jwt: %w", err)
	}
	return out, nil
}
