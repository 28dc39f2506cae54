// Package log records a machine-readable trace of what the gate client saw
// and did: store snapshots, liveness transitions, commands and sign-ins.
//
// It is separate from operational logging (slog). Operational logs are for
// people reading a console; the event trace is for replaying a session later
// with the gate-log tool.
//
//	events, _ := log.NewFileLogger("/var/lib/gate/events.glog")
//	defer events.Close()
//
//	trace := log.NewMultiLogger(events, log.NewSlogAdapter(logger))
//	trace.Log(log.Event{
//	    Timestamp: time.Now(),
//	    Source:    log.SourceMonitor,
//	    Category:  log.CategoryLiveness,
//	    Liveness:  &log.LivenessEvent{Online: true, Status: "Closed"},
//	})
//
// # File Format
//
// Files hold a sequence of CBOR-encoded events (integer keys) and use the
// .glog extension.
package log
