package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue replaces sensitive values such as keystore passphrases in
// log output.
const RedactedValue = "[REDACTED]"

// Keys the daemon is allowed to emit verbatim: the standard envelope fields
// plus the deployment identifiers logged at startup.
var redactionAllowlist = map[string]struct{}{
	"service":   {},
	"env":       {},
	"message":   {},
	"severity":  {},
	"timestamp": {},
	"error":     {},
	"network":   {},
	"address":   {},
	"keystore":  {},
	"deployer":  {},
	"store":     {},
	"trade":     {},
	"bid":       {},
	"auction":   {},
	"swap":      {},
	"staking":   {},
}

// IsAllowlisted reports whether a key may be logged without redaction.
func IsAllowlisted(key string) bool {
	_, ok := redactionAllowlist[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// RedactionAllowlist returns the allowlisted keys in sorted order.
func RedactionAllowlist() []string {
	keys := make([]string, 0, len(redactionAllowlist))
	for key := range redactionAllowlist {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskField builds a slog.Attr for a possibly sensitive value. Anything not
// allowlisted is replaced with the redaction placeholder; empty values pass
// through so absent secrets stay visible as absent.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}
