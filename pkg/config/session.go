package config

import (
	"net/url"
	"strconv"
	"strings"
)

// Fallbacks used when neither config nor query parameters supply a value.
const (
	DefaultLiveKitURL      = "ws://localhost:7880"
	DefaultToken           = "test"
	DefaultRoomName        = "TestRoom"
	DefaultParticipantName = "Test User"
)

// SessionParams are the connection parameters of one join.
type SessionParams struct {
	LiveKitURL      string `json:"liveKitUrl"`
	Token           string `json:"token"`
	RoomName        string `json:"roomName"`
	ParticipantName string `json:"participantName"`
	SDKVersion      string `json:"sdkVersion,omitempty"`
	Simulcast       bool   `json:"simulcast"`
	AutoJoin        bool   `json:"autoJoin"`
}

// SessionParams returns the session parameters configured for startup.
func (c *Config) SessionParams() SessionParams {
	return SessionParams{
		LiveKitURL:      c.LiveKit.URL,
		Token:           c.Session.Token,
		RoomName:        c.Session.RoomName,
		ParticipantName: c.Session.ParticipantName,
		SDKVersion:      c.Session.SDKVersion,
		Simulcast:       c.Session.Simulcast,
		AutoJoin:        c.Session.AutoJoin,
	}
}

// SessionFromQuery overlays query parameters on defaults. Parameter names match
// the meet page: liveKitUrl, token, roomName, participantName, sdkVersion,
// simulcast and autoJoin.
func SessionFromQuery(q url.Values, defaults SessionParams) SessionParams {
	p := defaults
	if v := strings.TrimSpace(q.Get("liveKitUrl")); v != "" {
		p.LiveKitURL = v
	}
	if v := strings.TrimSpace(q.Get("token")); v != "" {
		p.Token = v
	}
	if v := strings.TrimSpace(q.Get("roomName")); v != "" {
		p.RoomName = v
	}
	if v := strings.TrimSpace(q.Get("participantName")); v != "" {
		p.ParticipantName = v
	}
	if v := strings.TrimSpace(q.Get("sdkVersion")); v != "" {
		p.SDKVersion = v
	}
	if v, err := strconv.ParseBool(q.Get("simulcast")); err == nil {
		p.Simulcast = v
	}
	if v, err := strconv.ParseBool(q.Get("autoJoin")); err == nil {
		p.AutoJoin = v
	}

	if p.LiveKitURL == "" {
		p.LiveKitURL = DefaultLiveKitURL
	}
	if p.RoomName == "" {
		p.RoomName = DefaultRoomName
	}
	if p.ParticipantName == "" {
		p.ParticipantName = DefaultParticipantName
	}
	return p
}
