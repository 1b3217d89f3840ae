package auth

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketRoundTrip(t *testing.T) {
	iss, err := NewIssuer(time.Hour)
	require.NoError(t, err)

	want := Ticket{UserID: uuid.New(), LobbyID: uuid.New()}
	token, err := iss.CreateJWT(want)
	require.NoError(t, err)

	got, err := iss.AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTicketFromOtherIssuerRejected(t *testing.T) {
	a, err := NewIssuer(0)
	require.NoError(t, err)
	b, err := NewIssuer(0)
	require.NoError(t, err)

	token, err := a.CreateJWT(Ticket{UserID: uuid.New(), LobbyID: uuid.New()})
	require.NoError(t, err)

	_, err = b.AuthenticateJWT(token)
	assert.Error(t, err)
}

func TestExpiredTicketRejected(t *testing.T) {
	iss, err := NewIssuer(time.Hour)
	require.NoError(t, err)

	claims := jwt.MapClaims{
		"sub":   uuid.New().String(),
		"lobby": uuid.New().String(),
		"exp":   time.Now().Add(-time.Minute).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(iss.privateKey)
	require.NoError(t, err)

	_, err = iss.AuthenticateJWT(token)
	assert.Error(t, err)
}

func TestTicketMissingLobbyRejected(t *testing.T) {
	iss, err := NewIssuer(0)
	require.NoError(t, err)

	claims := jwt.MapClaims{"sub": uuid.New().String()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(iss.privateKey)
	require.NoError(t, err)

	_, err = iss.AuthenticateJWT(token)
	assert.Error(t, err)
}

func TestNewIssuerFromPath(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	dir := t.TempDir()
	privPath := filepath.Join(dir, "key")
	pubPath := filepath.Join(dir, "key.pub")
	require.NoError(t, os.WriteFile(privPath, priv, 0o600))
	require.NoError(t, os.WriteFile(pubPath, pub, 0o644))

	iss, err := NewIssuerFromPath(privPath, pubPath, 0)
	require.NoError(t, err)
	token, err := iss.CreateJWT(Ticket{UserID: uuid.New(), LobbyID: uuid.New()})
	require.NoError(t, err)
	_, err = iss.AuthenticateJWT(token)
	assert.NoError(t, err)

	require.NoError(t, os.WriteFile(pubPath, []byte("short"), 0o644))
	_, err = NewIssuerFromPath(privPath, pubPath, 0)
	assert.Error(t, err)
}
