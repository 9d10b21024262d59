package domain

// ClientState is the meeting client lifecycle state.
type ClientState string

const (
	ClientIdle           ClientState = "idle"
	ClientConnecting     ClientState = "connecting"
	ClientMediaAcquiring ClientState = "media-acquiring"
	ClientConnected      ClientState = "connected"
	ClientDisconnected   ClientState = "disconnected"
)

// ConnectionState is what the transport reports about the room.
type ConnectionState string

const (
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionReconnecting ConnectionState = "reconnecting"
)

// Severity colours the status banner.
type Severity string

const (
	SeverityInfo       Severity = "info"
	SeverityConnecting Severity = "connecting"
	SeverityConnected  Severity = "connected"
	SeverityWarning    Severity = "warning"
	SeverityError      Severity = "error"
)

// JoinParams are the resolved parameters of one join.
type JoinParams struct {
	URL             string
	Token           string
	RoomName        string
	Identity        string
	ParticipantName string
	Simulcast       bool
	SDKVersion      string
}
