// Package idhash derives deterministic identifiers from content and parameters.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"

	"modquant-lab/internal/domain"
)

// ComputeLedgerID computes a deterministic ledger_id using SHA256.
// Formula: SHA256(kind|content)
// The same bytes ingested as a different kind get a different ID.
// Returns hex-encoded hash (64 characters).
func ComputeLedgerID(kind domain.LedgerKind, content []byte) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{'|'})
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}
