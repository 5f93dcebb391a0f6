package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	TelemetryReceived   atomic.Int64
	TelemetryRejected   atomic.Int64
	PipelineDrops       atomic.Int64
	AlertsCreated       atomic.Int64
	AlertsSuppressed    atomic.Int64
	AlertPersistFailed  atomic.Int64
	ZoneRefreshFailures atomic.Int64
	SubscribersDropped  atomic.Int64
	MirrorWriteFailures atomic.Int64
)

func HandleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "realtime_telemetry_received_total %d\n", TelemetryReceived.Load())
	fmt.Fprintf(w, "realtime_telemetry_rejected_total %d\n", TelemetryRejected.Load())
	fmt.Fprintf(w, "realtime_pipeline_drops_total %d\n", PipelineDrops.Load())
	fmt.Fprintf(w, "realtime_alerts_created_total %d\n", AlertsCreated.Load())
	fmt.Fprintf(w, "realtime_alerts_suppressed_total %d\n", AlertsSuppressed.Load())
	fmt.Fprintf(w, "realtime_alert_persist_failures_total %d\n", AlertPersistFailed.Load())
	fmt.Fprintf(w, "realtime_zone_refresh_failures_total %d\n", ZoneRefreshFailures.Load())
	fmt.Fprintf(w, "realtime_subscribers_dropped_total %d\n", SubscribersDropped.Load())
	fmt.Fprintf(w, "realtime_mirror_write_failures_total %d\n", MirrorWriteFailures.Load())
}
