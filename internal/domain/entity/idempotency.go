package entity

import "time"

// IdempotencyRecord pins the first response produced for an idempotency key.
// Both payloads are canonical JSON and never change after creation.
type IdempotencyRecord struct {
	Key             string
	RequestPayload  []byte
	ResponsePayload []byte
	CreatedAt       time.Time
}
