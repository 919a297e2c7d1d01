package instance

import (
	"os"
	"strings"
)

// GetID identifies this process in lock ownership and worker logs.
// SMES_INSTANCE_ID wins, then the hostname, then a fixed fallback.
func GetID() string {
	if id := strings.TrimSpace(os.Getenv("SMES_INSTANCE_ID")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "smes-0"
}
