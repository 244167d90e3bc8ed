package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pixel-analytics/pixel/internal/core/domain"
)

func sampleClaims(random int64) domain.IdentityClaims {
	return domain.IdentityClaims{
		Email:  "u@e.com",
		Name:   "Una",
		Image:  "https://img.example/u.png",
		UserID: "user_1",
		Data: domain.Map(map[string]domain.Value{
			"plan":  domain.String("pro"),
			"seats": domain.Number(3),
		}),
		Random: random,
	}
}

func TestNewCodec_MissingSecret(t *testing.T) {
	if _, err := NewCodec(""); !errors.Is(err, domain.ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	codec, err := NewCodec("s3cr3t")
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	in := sampleClaims(42)
	tok := codec.Mint(in)
	if tok == "" {
		t.Fatalf("expected token")
	}

	out, err := codec.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !out.Equal(in) {
		t.Fatalf("claims changed in round trip: %+v vs %+v", out, in)
	}
}

func TestCodec_HeaderAndExpiry(t *testing.T) {
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	codec, _ := NewCodec("s3cr3t", WithClock(func() time.Time { return issued }))

	tok := codec.Mint(sampleClaims(1))

	claims := jwt.MapClaims{}
	parsed, _, err := jwt.NewParser().ParseUnverified(tok, claims)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Header["alg"] != "HS256" {
		t.Fatalf("unexpected alg header: %v", parsed.Header["alg"])
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		t.Fatalf("missing exp: %v", err)
	}
	if want := issued.Add(8760 * time.Hour); !exp.Time.Equal(want) {
		t.Fatalf("expected exp %v, got %v", want, exp.Time)
	}
}

func TestCodec_Expired(t *testing.T) {
	now := time.Now()
	codec, _ := NewCodec("s3cr3t", WithTTL(time.Minute), WithClock(func() time.Time { return now }))
	tok := codec.Mint(sampleClaims(1))

	now = now.Add(2 * time.Minute)
	if _, err := codec.Verify(tok); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestCodec_WrongSecret(t *testing.T) {
	a, _ := NewCodec("secret-one")
	b, _ := NewCodec("secret-two")

	if _, err := b.Verify(a.Mint(sampleClaims(7))); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestCodec_AnyByteMutationFails(t *testing.T) {
	codec, _ := NewCodec("s3cr3t")
	tok := codec.Mint(sampleClaims(99))

	for i := 0; i < len(tok); i++ {
		b := []byte(tok)
		switch b[i] {
		case 'A':
			b[i] = 'B'
		case '.':
			b[i] = 'x'
		default:
			b[i] = 'A'
		}
		if _, err := codec.Verify(string(b)); err == nil {
			t.Fatalf("mutation at byte %d accepted", i)
		}
	}
}

func TestCodec_RejectsOtherAlgorithms(t *testing.T) {
	codec, _ := NewCodec("s3cr3t")

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"email": "u@e.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := codec.Verify(none); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for alg=none, got %v", err)
	}

	hs512, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"email": "u@e.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("s3cr3t"))
	if _, err := codec.Verify(hs512); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for HS512, got %v", err)
	}
}

func TestCodec_ZeroValueVerify(t *testing.T) {
	var codec Codec
	if _, err := codec.Verify("a.b.c"); !errors.Is(err, domain.ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
	if tok := codec.Mint(sampleClaims(1)); tok != "" {
		t.Fatalf("expected empty token from zero codec")
	}
}

func TestCodec_Malformed(t *testing.T) {
	codec, _ := NewCodec("s3cr3t")
	for _, tok := range []string{"", "abc", "a.b", strings.Repeat(".", 2)} {
		if _, err := codec.Verify(tok); !errors.Is(err, domain.ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken for %q, got %v", tok, err)
		}
	}
}
