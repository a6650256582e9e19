// Package audit records account and token events to the audit_logs table and
// optionally fans them out to MQTT.
//
// Writes are asynchronous and best-effort: Dispatcher.Record never blocks a
// request, and an entry is dropped with a warning when the queue is full.
package audit

import "time"

// Actions recorded by the account service.
const (
	ActionAccountRegistered  = "account.registered"
	ActionAccountVerified    = "account.verified"
	ActionAccountCreated     = "account.created"
	ActionAccountUpdated     = "account.updated"
	ActionAccountDeleted     = "account.deleted"
	ActionLoginSucceeded     = "login.succeeded"
	ActionLoginFailed        = "login.failed"
	ActionTokenRefreshed     = "token.refreshed"
	ActionTokenRevoked       = "token.revoked"
	ActionTokenReuseDetected = "token.reuse_detected"
	ActionResetRequested     = "password.reset_requested"
	ActionPasswordReset      = "password.reset"
)

// Entity types.
const (
	EntityAccount      = "account"
	EntityRefreshToken = "refresh_token"
)

// Entry is a single audit trail record.
type Entry struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId,omitempty"`
	ActorID    string         `json:"actorId,omitempty"`
	SourceIP   string         `json:"sourceIp,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}
