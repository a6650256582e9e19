// Package influxdb writes accountd authentication metrics to InfluxDB.
//
// Every login, refresh, registration and reset outcome becomes a point in
// the auth_events measurement tagged with action and outcome, so brute
// force attempts or token reuse show up on a dashboard.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.RecordAuthEvent("login", "failure")
//
// # Error Handling
//
// Writes are non-blocking and batched (batch_size, flush_interval). Write
// failures are delivered to the SetOnError callback. Connection and health
// check errors are returned directly.
package influxdb
