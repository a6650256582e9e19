// Package mqtt publishes accountd audit events to an MQTT broker.
//
// Every audit entry is published as JSON to <prefix>/events/<action>, so
// other services can react to registrations, lockouts or refresh token
// reuse without polling the audit API. A retained status message on
// <prefix>/status, backed by a Last Will, reports whether accountd is online.
//
// Publishing is best-effort. The client reconnects automatically and
// Publish fails fast with ErrNotConnected while the broker is away.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	dispatcher := audit.NewDispatcher(repo, client, logger)
package mqtt
