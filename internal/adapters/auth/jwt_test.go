package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newKeyPair(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	return key, string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func sign(t *testing.T, key *rsa.PrivateKey, claims accessClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return raw
}

func TestJWTVerifierAcceptsValidToken(t *testing.T) {
	t.Parallel()

	key, pub := newKeyPair(t)
	verifier, err := NewJWTVerifier(pub, "mesh-auth")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	token := sign(t, key, accessClaims{
		UserID: "user-p1",
		Email:  "p1@example.com",
		Role:   "Partner",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "mesh-auth",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	claims, err := verifier.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.SubjectID != "user-p1" || claims.Role != "partner" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestJWTVerifierRejectsBadTokens(t *testing.T) {
	t.Parallel()

	key, pub := newKeyPair(t)
	other, _ := newKeyPair(t)
	verifier, err := NewJWTVerifier(pub, "mesh-auth")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	valid := jwt.RegisteredClaims{Issuer: "mesh-auth", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	cases := map[string]string{
		"expired": sign(t, key, accessClaims{UserID: "u", RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "mesh-auth", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		}}),
		"wrong key":    sign(t, other, accessClaims{UserID: "u", RegisteredClaims: valid}),
		"wrong issuer": sign(t, key, accessClaims{UserID: "u", RegisteredClaims: jwt.RegisteredClaims{Issuer: "elsewhere", ExpiresAt: valid.ExpiresAt}}),
		"no subject":   sign(t, key, accessClaims{RegisteredClaims: valid}),
		"not a jwt":    "abc.def",
	}
	for name, token := range cases {
		if _, err := verifier.Verify(context.Background(), token); err == nil {
			t.Fatalf("%s: expected verification to fail", name)
		}
	}
}

func TestDevVerifier(t *testing.T) {
	t.Parallel()

	claims, err := DevVerifier{}.Verify(context.Background(), "Admin:admin-1")
	if err != nil || claims.Role != "admin" || claims.SubjectID != "admin-1" {
		t.Fatalf("unexpected dev claims: %+v %v", claims, err)
	}
	if _, err := (DevVerifier{}).Verify(context.Background(), "admin-1"); err == nil {
		t.Fatalf("expected malformed dev token to fail")
	}
}
