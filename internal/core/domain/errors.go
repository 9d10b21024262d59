package domain

import "errors"

// Messages of the room-related errors are asserted verbatim by test suites.
var (
	ErrNoRoom               = errors.New("No room connected")
	ErrNoActiveRoom         = errors.New("No active room connection")
	ErrPublishDataForbidden = errors.New("Permission denied: canPublishData is false")
	ErrParticipantNotFound  = errors.New("Participant not found")
	ErrVideoTrackNotFound   = errors.New("No video track found")
	ErrAlreadyConnected     = errors.New("already connected")
	ErrNoBaseline           = errors.New("no bitrate baseline captured")
	ErrInvalidVideoQuality  = errors.New("invalid video quality")
	ErrInvalidTrackKind     = errors.New("invalid track kind")
	ErrUnknownBinding       = errors.New("unknown binding")
	ErrTrackNotPublished    = errors.New("track not published")
)
