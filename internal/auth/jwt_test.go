package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func newTestManager(clock *fakeClock) *Manager {
	return NewManager("test-secret", DefaultTTL, WithClock(clock.Now))
}

func TestIssueAndVerify(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)}
	m := newTestManager(clock)

	tok, err := m.Issue("user-123", "student")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	claims, err := m.Verify(tok)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}

	if claims.UserID != "user-123" {
		t.Fatalf("got userId %q, want user-123", claims.UserID)
	}
	if claims.Role != "student" {
		t.Fatalf("got role %q, want student", claims.Role)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != 7*24*time.Hour {
		t.Fatalf("got validity window %s, want 168h", got)
	}
}

func TestIssueIsDeterministicForSameClock(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)}
	m := newTestManager(clock)

	a, err := m.Issue("u1", "admin")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	b, err := m.Issue("u1", "admin")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	if a != b {
		t.Fatalf("expected identical tokens for identical input and clock")
	}
}

func TestVerifyExpiryWindow(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: issuedAt}
	m := newTestManager(clock)

	tok, err := m.Issue("u1", "student")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	tests := []struct {
		name    string
		at      time.Time
		wantErr error
	}{
		{name: "six_days_later", at: issuedAt.Add(6 * 24 * time.Hour), wantErr: nil},
		{name: "eight_days_later", at: issuedAt.Add(8 * 24 * time.Hour), wantErr: ErrExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock.t = tt.at

			_, err := m.Verify(tok)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got err %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerifyTamperedSignature(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := newTestManager(clock)

	tok, err := m.Issue("u1", "student")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	sigStart := strings.LastIndex(tok, ".") + 1
	replacement := byte('A')
	if tok[sigStart] == 'A' {
		replacement = 'B'
	}
	tampered := tok[:sigStart] + string(replacement) + tok[sigStart+1:]

	_, err = m.Verify(tampered)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("got err %v, want ErrInvalidSignature", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	clock := &fakeClock{t: time.Now()}

	tok, err := NewManager("right-secret", DefaultTTL, WithClock(clock.Now)).Issue("u2", "admin")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	_, err = NewManager("wrong-secret", DefaultTTL, WithClock(clock.Now)).Verify(tok)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("got err %v, want ErrInvalidSignature", err)
	}
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := newTestManager(clock)

	claims := Claims{
		UserID: "u1",
		Role:   "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
		},
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign HS512: %v", err)
	}

	if _, err := m.Verify(hs512); err == nil {
		t.Fatalf("expected HS512 token to be rejected")
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	if _, err := m.Verify(none); err == nil {
		t.Fatalf("expected unsigned token to be rejected")
	}
}

func TestVerifyMalformed(t *testing.T) {
	m := newTestManager(&fakeClock{t: time.Now()})

	for _, raw := range []string{"", "not.a.jwt", "abc"} {
		if _, err := m.Verify(raw); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Verify(%q): got %v, want ErrMalformed", raw, err)
		}
	}
}

func TestVerifyRequiresExpiry(t *testing.T) {
	m := newTestManager(&fakeClock{t: time.Now()})

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "u1", Role: "student"}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := m.Verify(tok); err == nil {
		t.Fatalf("expected token without exp to be rejected")
	}
}
