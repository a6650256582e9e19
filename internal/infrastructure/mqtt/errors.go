package mqtt

import "errors"

var (
	// ErrConnectionFailed wraps the failure of the initial broker connect.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrNotConnected is returned while the broker is unreachable. The paho
	// client keeps reconnecting in the background.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrPublishFailed wraps broker-side and timeout failures of a publish.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrInvalidTopic and ErrInvalidQoS reject malformed publishes before
	// anything reaches the broker.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
	ErrInvalidQoS   = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")
)
