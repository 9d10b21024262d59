package config

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid, got error: %v", err)
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{
			name: "empty server address",
			mutate: func(c *Config) {
				c.Server.Address = ""
			},
		},
		{
			name: "api key without secret",
			mutate: func(c *Config) {
				c.LiveKit.APIKey = "devkey"
			},
		},
		{
			name: "empty room name",
			mutate: func(c *Config) {
				c.Session.RoomName = ""
			},
		},
		{
			name: "negative resubscribe attempts",
			mutate: func(c *Config) {
				c.Resubscribe.MaxAttempts = -1
			},
		},
		{
			name: "backoff initial greater than max",
			mutate: func(c *Config) {
				c.Resubscribe.InitialDelay = time.Minute
				c.Resubscribe.MaxDelay = time.Second
			},
		},
		{
			name: "multiplier below one",
			mutate: func(c *Config) {
				c.Resubscribe.Multiplier = 0.5
			},
		},
		{
			name: "zero fps",
			mutate: func(c *Config) {
				c.Media.FPS = 0
			},
		},
		{
			name: "publish enabled without address",
			mutate: func(c *Config) {
				c.Publish.Enabled = true
				c.Publish.Address = ""
			},
		},
		{
			name: "tracing sample rate out of range",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.SampleRate = 2
			},
		},
		{
			name: "rate limiting enabled with zero rps",
			mutate: func(c *Config) {
				c.RateLimiting.Enabled = true
				c.RateLimiting.HTTP.RequestsPerSecond = 0
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for case %q, got nil", tc.name)
			}
		})
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultRoomName, cfg.Session.RoomName)
	assert.Equal(t, 5*time.Second, cfg.Resubscribe.Interval)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
livekit:
  url: wss://meet.example.com
session:
  room_name: Standup
  auto_join: true
resubscribe:
  interval: 2s
  max_attempts: 3
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "wss://meet.example.com", cfg.LiveKit.URL)
	assert.Equal(t, "Standup", cfg.Session.RoomName)
	assert.True(t, cfg.Session.AutoJoin)
	assert.Equal(t, 2*time.Second, cfg.Resubscribe.Interval)
	assert.Equal(t, 3, cfg.Resubscribe.MaxAttempts)
	assert.Equal(t, DefaultParticipantName, cfg.Session.ParticipantName)
}

func TestLoad_InvalidYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MEETPROBE_ROOM_NAME", "EnvRoom")
	t.Setenv("MEETPROBE_AUTO_JOIN", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "EnvRoom", cfg.Session.RoomName)
	assert.True(t, cfg.Session.AutoJoin)
}

func TestSessionFromQuery(t *testing.T) {
	defaults := DefaultConfig().SessionParams()

	t.Run("absent parameters use defaults", func(t *testing.T) {
		p := SessionFromQuery(url.Values{}, defaults)
		assert.Equal(t, DefaultLiveKitURL, p.LiveKitURL)
		assert.Equal(t, DefaultToken, p.Token)
		assert.Equal(t, DefaultRoomName, p.RoomName)
		assert.Equal(t, DefaultParticipantName, p.ParticipantName)
		assert.True(t, p.Simulcast)
		assert.False(t, p.AutoJoin)
	})

	t.Run("parameters override defaults", func(t *testing.T) {
		q := url.Values{}
		q.Set("liveKitUrl", "wss://lk.example.com")
		q.Set("token", "abc")
		q.Set("roomName", "Room-1")
		q.Set("participantName", "Alice")
		q.Set("sdkVersion", "2.5.7")
		q.Set("simulcast", "false")
		q.Set("autoJoin", "true")

		p := SessionFromQuery(q, defaults)
		assert.Equal(t, "wss://lk.example.com", p.LiveKitURL)
		assert.Equal(t, "abc", p.Token)
		assert.Equal(t, "Room-1", p.RoomName)
		assert.Equal(t, "Alice", p.ParticipantName)
		assert.Equal(t, "2.5.7", p.SDKVersion)
		assert.False(t, p.Simulcast)
		assert.True(t, p.AutoJoin)
	})

	t.Run("empty defaults fall back to fixed values", func(t *testing.T) {
		p := SessionFromQuery(url.Values{}, SessionParams{})
		assert.Equal(t, DefaultLiveKitURL, p.LiveKitURL)
		assert.Equal(t, DefaultRoomName, p.RoomName)
		assert.Equal(t, DefaultParticipantName, p.ParticipantName)
	})
}
