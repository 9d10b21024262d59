package livekit

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"meetprobe/internal/core/ports"
)

var (
	ErrMissingCredentials = errors.New("livekit api key and secret are required")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
)

// VideoGrant is the "video" claim LiveKit servers read room permissions from.
type VideoGrant struct {
	RoomJoin       bool   `json:"roomJoin,omitempty"`
	Room           string `json:"room,omitempty"`
	CanPublish     *bool  `json:"canPublish,omitempty"`
	CanSubscribe   *bool  `json:"canSubscribe,omitempty"`
	CanPublishData *bool  `json:"canPublishData,omitempty"`
}

type AccessClaims struct {
	Name  string      `json:"name,omitempty"`
	Video *VideoGrant `json:"video,omitempty"`
	jwt.RegisteredClaims
}

// TokenMinter signs room access tokens with the API secret, the way the
// LiveKit server expects them: issuer is the API key, subject the identity.
type TokenMinter struct {
	apiKey    string
	apiSecret []byte
	ttl       time.Duration
	now       func() time.Time
}

var _ ports.TokenMinter = (*TokenMinter)(nil)

func NewTokenMinter(apiKey, apiSecret string, ttl time.Duration) (*TokenMinter, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, ErrMissingCredentials
	}
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &TokenMinter{
		apiKey:    apiKey,
		apiSecret: []byte(apiSecret),
		ttl:       ttl,
		now:       time.Now,
	}, nil
}

func (m *TokenMinter) Mint(roomName, identity, name string) (string, error) {
	allow := true
	now := m.now()
	claims := &AccessClaims{
		Name: name,
		Video: &VideoGrant{
			RoomJoin:       true,
			Room:           roomName,
			CanPublish:     &allow,
			CanSubscribe:   &allow,
			CanPublishData: &allow,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.apiKey,
			Subject:   identity,
			ID:        identity,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.apiSecret)
}

// Validate parses a token signed with the minter's secret.
func (m *TokenMinter) Validate(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.apiSecret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithIssuer(m.apiKey))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*AccessClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}
