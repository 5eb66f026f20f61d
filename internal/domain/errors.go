package domain

import "errors"

// Sentinel errors surfaced across package boundaries. Everything else is
// wrapped context via fmt.Errorf("...: %w", err).
var (
	// ErrBroadcasterNotFound is returned when a registry or repository
	// lookup misses. Grading propagates it rather than fabricating a
	// zero score.
	ErrBroadcasterNotFound = errors.New("broadcaster not found")

	// ErrRepositoryUnavailable indicates an I/O failure talking to the
	// backing store. Callers decide whether to retry; nothing in the
	// core retries internally.
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)

// UpsertResult describes what an idempotent deal-record upsert did.
type UpsertResult string

// Upsert outcomes.
const (
	UpsertCreated   UpsertResult = "created"
	UpsertUpdated   UpsertResult = "updated"
	UpsertUnchanged UpsertResult = "unchanged"
)

// UpsertOutcome pairs a canonical record with what happened to it.
type UpsertOutcome struct {
	Record DealRecord   `json:"record"`
	Result UpsertResult `json:"result"`
}
