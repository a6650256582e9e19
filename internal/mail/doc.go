// Package mail delivers account notifications.
//
// Sender is the collaborator the account service depends on. SMTPSender
// talks to a relay through go-mail with STARTTLS when offered; Outbox keeps
// messages in memory and logs their envelope, for development and tests.
//
// Delivery is fire-and-forget from the caller's perspective: every failure
// wraps ErrDelivery and callers log it rather than undo their work.
package mail
