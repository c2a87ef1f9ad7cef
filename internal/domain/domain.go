// Package domain holds the shared error taxonomy and change-event types that
// cross package boundaries. Transition legality itself lives with each case
// type; only the vocabulary is shared.
package domain

import "errors"

var (
	// ErrValidation covers malformed or missing required input. Never retried,
	// surfaced verbatim to the caller.
	ErrValidation = errors.New("validation failed")
	// ErrConflict is returned when an invariant would be violated by a
	// concurrent or duplicate action. The client should refresh and retry.
	ErrConflict = errors.New("conflicting state")
	// ErrNotFound is returned for references to nonexistent entities, or
	// entities outside the requester's community scope.
	ErrNotFound = errors.New("entity not found")
	// ErrInvalidState is returned for a legal entity in a state that does not
	// permit the requested transition.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrRelayFailure marks a downstream enforcement or logging failure. It is
	// logged and retried, never propagated to the originating action.
	ErrRelayFailure = errors.New("relay delivery failed")

	ErrScopeDenied = errors.New("community not in requester scope")
)

type EntityType string

const (
	EntityBan    EntityType = "ban"
	EntityAppeal EntityType = "appeal"
	EntityTicket EntityType = "ticket"
	EntityShift  EntityType = "shift"
)

type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// ChangeEvent is the minimal notification pushed to dashboard sessions after a
// committed state change. Clients re-fetch; no payload beyond identity is sent.
type ChangeEvent struct {
	CommunityID string     `json:"community_id"`
	EntityType  EntityType `json:"entity_type"`
	EntityID    int64      `json:"entity_id"`
	ChangeKind  ChangeKind `json:"change_kind"`
}

// QueryFilter is embedded by per-domain query option structs.
type QueryFilter struct {
	Offset uint64 `json:"offset" schema:"offset"`
	Limit  uint64 `json:"limit" schema:"limit"`
	Desc   bool   `json:"desc" schema:"desc"`
}
