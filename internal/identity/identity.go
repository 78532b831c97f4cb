// Package identity resolves the current agent identifier.
//
// Resolution order: TM_AGENT_ID, then a stable derivation from the local
// user and host (<user>_<short-hash(host)>). The derivation is pure so two
// processes on the same account and machine agree on the identifier.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"os/user"
	"strings"
)

// EnvAgentID is the environment variable that overrides agent resolution.
const EnvAgentID = "TM_AGENT_ID"

const shortHashLen = 8

// Resolve returns the current agent identifier.
func Resolve() string {
	if id := strings.TrimSpace(os.Getenv(EnvAgentID)); id != "" {
		return sanitize(id)
	}

	username := "agent"
	if u, err := user.Current(); err == nil && u.Username != "" {
		username = u.Username
	} else if v := os.Getenv("USER"); v != "" {
		username = v
	}

	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}

	return sanitize(username) + "_" + shortHash(host)
}

// shortHash returns the first 8 hex chars of sha256(s).
func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:shortHashLen]
}

// sanitize strips whitespace and path separators so identifiers are safe to
// embed in filenames (private note paths include the agent id).
func sanitize(id string) string {
	id = strings.TrimSpace(id)
	replacer := strings.NewReplacer("/", "-", "\\", "-", " ", "_", ":", "-")
	return replacer.Replace(id)
}
