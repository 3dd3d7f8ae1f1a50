package media

import (
	"testing"
	"time"

	"chat-backend/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

func testProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := NewProvider(config.LiveKitConfig{
		APIKey:    "lk-key",
		APISecret: "lk-secret",
		URL:       "wss://media.example.com",
		TokenTTL:  time.Hour,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	return p.WithClock(func() time.Time { return time.Unix(1700000000, 0).UTC() })
}

func TestProvider_JoinTokenClaims(t *testing.T) {
	p := testProvider(t)

	raw, err := p.JoinToken("alice", "conv-1-1700000000000")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	var claims roomClaims
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(tok *jwt.Token) (any, error) {
		return []byte("lk-secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(func() time.Time {
		return time.Unix(1700000000, 0).UTC()
	}))
	if err != nil || !parsed.Valid {
		t.Fatalf("token did not verify: %v", err)
	}

	if claims.Issuer != "lk-key" || claims.Subject != "alice" {
		t.Fatalf("unexpected identity claims: %+v", claims.RegisteredClaims)
	}
	if claims.Video.Room != "conv-1-1700000000000" || !claims.Video.RoomJoin {
		t.Fatalf("unexpected grant: %+v", claims.Video)
	}
	if !claims.Video.CanPublish || !claims.Video.CanSubscribe {
		t.Fatalf("join tokens must carry full media rights: %+v", claims.Video)
	}
	if got := claims.ExpiresAt.Time.Sub(claims.NotBefore.Time); got != time.Hour {
		t.Fatalf("expected 1h ttl, got %s", got)
	}
}

func TestProvider_JoinTokenValidation(t *testing.T) {
	p := testProvider(t)
	if _, err := p.JoinToken("", "room"); err == nil {
		t.Fatalf("expected error for empty identity")
	}
	if _, err := p.JoinToken("alice", ""); err == nil {
		t.Fatalf("expected error for empty room")
	}
}

func TestProvider_RequiresCredentials(t *testing.T) {
	if _, err := NewProvider(config.LiveKitConfig{APIKey: "k"}); err == nil {
		t.Fatalf("expected error without secret")
	}
}
