package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(ledger_id|segmentation_id|loss_threshold|stop_policy_id)
// segmentationID and stopPolicyID are the parameterised policy IDs
// (e.g. OSCILLATION_run3, WIN_RATE_50), so every parameter is covered.
// Returns hex-encoded hash (64 characters).
func ComputeRunID(
	ledgerID string,
	segmentationID string,
	lossThreshold int,
	stopPolicyID string,
) string {
	data := fmt.Sprintf("%s|%s|%d|%s",
		ledgerID,
		segmentationID,
		lossThreshold,
		stopPolicyID,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
