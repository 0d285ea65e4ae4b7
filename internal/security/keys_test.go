package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadPEM_InlinePEM(t *testing.T) {
	pemBytes, err := LoadPEM(testPrivateKeyPEM)
	if err != nil {
		t.Fatalf("LoadPEM: %v", err)
	}
	if !strings.Contains(string(pemBytes), "-----BEGIN") {
		t.Error("LoadPEM did not return PEM content")
	}
}

func TestLoadPEM_InlinePEMWithLiteralNewlines(t *testing.T) {
	flat := strings.ReplaceAll(testPublicKeyPEM, "\n", `\n`)
	pemBytes, err := LoadPEM(flat)
	if err != nil {
		t.Fatalf("LoadPEM: %v", err)
	}
	if string(pemBytes) != testPublicKeyPEM {
		t.Error("LoadPEM should convert literal \\n to newlines")
	}
	if _, err := ParsePublicKey(flat); err != nil {
		t.Errorf("ParsePublicKey on flattened PEM: %v", err)
	}
}

func TestLoadPEM_FilePath(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "test.pem")
	if err := os.WriteFile(tmpFile, []byte(testPrivateKeyPEM), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	pemBytes, err := LoadPEM(tmpFile)
	if err != nil {
		t.Fatalf("LoadPEM: %v", err)
	}
	if !strings.Contains(string(pemBytes), "-----BEGIN") {
		t.Error("LoadPEM did not read file content")
	}
}

func TestLoadPEM_Empty(t *testing.T) {
	for _, in := range []string{"", "   "} {
		if _, err := LoadPEM(in); err != ErrInvalidKey {
			t.Errorf("LoadPEM(%q): want ErrInvalidKey, got %v", in, err)
		}
	}
}

func TestLoadPEM_InvalidFile(t *testing.T) {
	if _, err := LoadPEM("/nonexistent/file.pem"); err == nil {
		t.Error("LoadPEM should return error for nonexistent file")
	}
}

func TestParsePrivateKey_InvalidKeyType(t *testing.T) {
	invalidPEM := "-----BEGIN CERTIFICATE-----\nMIIB\n-----END CERTIFICATE-----"
	if _, err := ParsePrivateKey(invalidPEM); err == nil {
		t.Error("ParsePrivateKey should return error for non-key PEM")
	}
}

func TestLoadKeyPair_RSA(t *testing.T) {
	signer, pub, err := LoadKeyPair(testPrivateKeyPEM, testPublicKeyPEM)
	if err != nil {
		t.Fatalf("LoadKeyPair: %v", err)
	}
	if KeyAlg(signer.Public()) != "RS256" || KeyAlg(pub) != "RS256" {
		t.Errorf("KeyAlg: got %q / %q, want RS256", KeyAlg(signer.Public()), KeyAlg(pub))
	}
}

func TestLoadKeyPair_ECDSA(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	privDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	privPEM := string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privDER}))
	pubPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))

	signer, pub, err := LoadKeyPair(privPEM, pubPEM)
	if err != nil {
		t.Fatalf("LoadKeyPair: %v", err)
	}
	p, err := NewTokenProvider(signer, pub, "iss", "aud", 0)
	if err != nil {
		t.Fatalf("NewTokenProvider: %v", err)
	}
	if p.Alg() != "ES256" {
		t.Errorf("Alg = %q, want ES256", p.Alg())
	}
}

func TestKeyAlg_Unknown(t *testing.T) {
	if got := KeyAlg("not a key"); got != "" {
		t.Errorf("KeyAlg(string) = %q, want empty", got)
	}
}

func TestLoadKeyPair_Mismatch(t *testing.T) {
	other, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&other.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	pubPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))

	if _, _, err := LoadKeyPair(testPrivateKeyPEM, pubPEM); !errors.Is(err, ErrKeyMismatch) {
		t.Errorf("LoadKeyPair err = %v, want ErrKeyMismatch", err)
	}
}

func TestParsePrivateKey_UnsupportedCurve(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey: %v", err)
	}
	privPEM := string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}))
	if _, err := ParsePrivateKey(privPEM); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("ParsePrivateKey(P-384) err = %v, want ErrInvalidKey", err)
	}
}

func TestParsePublicKey_Garbage(t *testing.T) {
	garbage := "-----BEGIN PUBLIC KEY-----\nAAAA\n-----END PUBLIC KEY-----"
	if _, err := ParsePublicKey(garbage); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("ParsePublicKey err = %v, want ErrInvalidKey", err)
	}
}
