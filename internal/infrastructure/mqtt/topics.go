package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when the configuration leaves topic_prefix empty.
const DefaultTopicPrefix = "accounts"

// Topics builds the MQTT topics accountd publishes to.
//
//	topics := mqtt.Topics{Prefix: "accounts"}
//	topics.Event("login.failed")
//	// Returns: "accounts/events/login.failed"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	p := strings.Trim(t.Prefix, "/")
	if p == "" {
		return DefaultTopicPrefix
	}
	return p
}

// Event returns the topic for an audit event. MQTT wildcard and separator
// characters in action are replaced so one action maps to one topic level.
//
// Example: accounts/events/token.reuse_detected
func (t Topics) Event(action string) string {
	return fmt.Sprintf("%s/events/%s", t.prefix(), sanitiseLevel(action))
}

// Status returns the retained service status topic used for the LWT.
//
// Example: accounts/status
func (t Topics) Status() string {
	return t.prefix() + "/status"
}

// AllEvents returns a pattern matching every audit event.
//
// Pattern: accounts/events/#
func (t Topics) AllEvents() string {
	return t.prefix() + "/events/#"
}

var levelReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_")

func sanitiseLevel(s string) string {
	if s == "" {
		return "unknown"
	}
	return levelReplacer.Replace(s)
}
