// Package errclass maps arbitrary error values onto a coarse category by
// keyword matching. The category is used to flag permission problems in
// subscription, data and screen-share flows.
package errclass

import (
	"fmt"
	"strings"
)

// Category is the coarse class of an error.
type Category string

const (
	Permission Category = "permission"
	Timeout    Category = "timeout"
	Network    Category = "network"
	Media      Category = "media"
	Unknown    Category = "unknown"
)

var (
	permissionKeywords = []string{"permission", "denied", "forbidden", "unauthorized", "not allowed"}
	timeoutKeywords    = []string{"timeout", "timed out", "time out"}
	networkKeywords    = []string{"network", "connection", "unreachable", "offline"}
	mediaKeywords      = []string{"media", "device", "camera", "microphone", "audio", "video"}
)

// rules are evaluated in order; first match wins.
var rules = []struct {
	category Category
	keywords []string
}{
	{Permission, permissionKeywords},
	{Timeout, timeoutKeywords},
	{Network, networkKeywords},
	{Media, mediaKeywords},
}

// Classify returns the category of v. A message containing both "network" and
// "permission denied" is a permission error.
func Classify(v any) Category {
	msg := normalize(v)
	if msg == "" {
		return Unknown
	}
	for _, r := range rules {
		if containsAny(msg, r.keywords) {
			return r.category
		}
	}
	return Unknown
}

func IsPermission(v any) bool { return containsAny(normalize(v), permissionKeywords) }
func IsTimeout(v any) bool    { return containsAny(normalize(v), timeoutKeywords) }
func IsNetwork(v any) bool    { return containsAny(normalize(v), networkKeywords) }
func IsMedia(v any) bool      { return containsAny(normalize(v), mediaKeywords) }

// Message extracts a display string from v without changing its case.
func Message(v any) string {
	switch e := v.(type) {
	case nil:
		return ""
	case error:
		return e.Error()
	case fmt.Stringer:
		return e.String()
	case string:
		return e
	default:
		return fmt.Sprint(v)
	}
}

func normalize(v any) string {
	return strings.ToLower(Message(v))
}

func containsAny(s string, keywords []string) bool {
	if s == "" {
		return false
	}
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
