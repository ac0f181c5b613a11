package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSessionManager_IssueVerify(t *testing.T) {
	m := NewSessionManager("test-secret", time.Hour)

	token, err := m.Issue("user-1", "runner@example.com", "Runner")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if claims.Subject != "user-1" || claims.Email != "runner@example.com" || claims.Name != "Runner" {
		t.Errorf("claims = %+v", claims)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != time.Hour {
		t.Errorf("lifetime = %v, want 1h", got)
	}
}

func TestSessionManager_Rejects(t *testing.T) {
	issuedAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewSessionManager("test-secret", time.Hour)
	m.now = func() time.Time { return issuedAt }
	valid, _ := m.Issue("user-1", "", "")

	noneToken, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	other := NewSessionManager("other-secret", time.Hour)
	other.now = m.now
	foreign, _ := other.Issue("user-1", "", "")

	tests := []struct {
		name  string
		token string
		at    time.Time
	}{
		{"expired", valid, issuedAt.Add(2 * time.Hour)},
		{"wrong secret", foreign, issuedAt},
		{"unsigned", noneToken, issuedAt},
		{"garbage", "not-a-token", issuedAt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m.now = func() time.Time { return tt.at }
			if _, err := m.Verify(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}
