package redisx

import "time"

const (
	// Slot lock per unit: lock:{unit key} -> owner token
	KeySlotLock = "rentdesk:lock:%s"

	// Idempotent command result: idem:{command}:{key} -> JSON payload
	KeyIdempotency = "rentdesk:idem:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLSlotLock    = 30 * time.Second
)
