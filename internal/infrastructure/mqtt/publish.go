package mqtt

import "fmt"

// maxPayloadSize caps a single message at 1MB. Audit events are far smaller.
const maxPayloadSize = 1 << 20

// PublishEvent sends an audit event payload to the event topic for action.
// Events use the configured QoS and are never retained. It satisfies
// audit.Publisher.
func (c *Client) PublishEvent(action string, payload []byte) error {
	return c.Publish(c.topics.Event(action), payload, byte(c.cfg.QoS), false)
}

// Publish sends payload to topic and waits for the broker acknowledgement
// required by qos.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := checkMessage(topic, payload, qos); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: no acknowledgement within %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

func checkMessage(topic string, payload []byte, qos byte) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case len(payload) > maxPayloadSize:
		return fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	return nil
}
