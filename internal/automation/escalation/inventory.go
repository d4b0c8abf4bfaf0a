package escalation

// InventoryCheckpoints are the exact days-until-expiry that raise an alert.
var InventoryCheckpoints = []int{30, 7, 1}

// InventoryCheckpoint reports whether daysUntil is exactly one of the checkpoints.
func InventoryCheckpoint(daysUntil int) (int, bool) {
	for _, cp := range InventoryCheckpoints {
		if daysUntil == cp {
			return cp, true
		}
	}
	return 0, false
}

// InventoryCheckpointUrgent is true for the last checkpoint before expiry.
func InventoryCheckpointUrgent(checkpoint int) bool {
	return checkpoint == 1
}
