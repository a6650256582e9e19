package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementAuthEvents holds one point per authentication outcome.
const MeasurementAuthEvents = "auth_events"

// RecordAuthEvent counts one occurrence of action with the given outcome,
// e.g. ("login", "failure") or ("refresh", "reuse_detected").
//
// The write is non-blocking; points are batched and sent asynchronously.
// Tags stay low-cardinality: never pass account ids or emails here.
func (c *Client) RecordAuthEvent(action, outcome string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		MeasurementAuthEvents,
		map[string]string{
			"action":  action,
			"outcome": outcome,
		},
		map[string]any{
			"count": int64(1),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
