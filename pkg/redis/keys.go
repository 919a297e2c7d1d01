package redis

import "strings"

const keyNamespace = "smes"

// Key joins parts under the smes namespace, dropping blank parts.
func Key(parts ...string) string {
	var sb strings.Builder
	sb.WriteString(keyNamespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		sb.WriteByte(':')
		sb.WriteString(part)
	}
	return sb.String()
}

func (c *Client) IdempotencyKey(scope, id string) string {
	return Key("idempotency", scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return Key("rate_limit", scope)
}

// AccessSessionKey holds the refresh session for one access token id.
func (c *Client) AccessSessionKey(accessID string) string {
	return Key("session", "access", accessID)
}

// LockKey guards a singleton background job per environment.
func (c *Client) LockKey(name, env string) string {
	return Key("lock", name, env)
}

// MpesaTokenKey caches the Daraja OAuth token for a shortcode.
func (c *Client) MpesaTokenKey(shortCode string) string {
	return Key("mpesa", "token", shortCode)
}
