package media

import (
	"errors"
	"time"

	"chat-backend/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

// Provider mints LiveKit-compatible room join tokens. The media server never
// talks to this backend; it just verifies the shared-secret signature and
// the video grant embedded in the token.
type Provider struct {
	apiKey string
	secret []byte
	url    string
	ttl    time.Duration
	clock  func() time.Time
}

func NewProvider(cfg config.LiveKitConfig) (*Provider, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("livekit api key and secret are required")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &Provider{
		apiKey: cfg.APIKey,
		secret: []byte(cfg.APISecret),
		url:    cfg.URL,
		ttl:    ttl,
		clock:  time.Now,
	}, nil
}

// WithClock overrides the time source for deterministic tests.
func (p *Provider) WithClock(clock func() time.Time) *Provider {
	p.clock = clock
	return p
}

// URL is the media server endpoint clients connect to with the token.
func (p *Provider) URL() string { return p.url }

// videoGrant mirrors the LiveKit access-token grant shape.
type videoGrant struct {
	Room         string `json:"room"`
	RoomJoin     bool   `json:"roomJoin"`
	CanPublish   bool   `json:"canPublish"`
	CanSubscribe bool   `json:"canSubscribe"`
}

type roomClaims struct {
	jwt.RegisteredClaims
	Video videoGrant `json:"video"`
}

// JoinToken signs a join credential for (identity, room) with full
// publish/subscribe rights.
func (p *Provider) JoinToken(identity, roomName string) (string, error) {
	if identity == "" || roomName == "" {
		return "", errors.New("identity and room are required")
	}
	now := p.clock()
	claims := roomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.apiKey,
			Subject:   identity,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
		Video: videoGrant{
			Room:         roomName,
			RoomJoin:     true,
			CanPublish:   true,
			CanSubscribe: true,
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(p.secret)
}
