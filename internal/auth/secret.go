// Package auth gates the dashboard behind a single shared password and keeps
// per-browser sessions in memory.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
)

// CheckSecret reports whether submitted equals configured. Both are hashed first
// so the comparison time depends on neither their lengths nor a shared prefix.
// An empty configured secret never matches.
func CheckSecret(submitted, configured string) bool {
	if configured == "" {
		return false
	}
	a := sha256.Sum256([]byte(submitted))
	b := sha256.Sum256([]byte(configured))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
