/*
Package metrics exposes Prometheus metrics for the sync engine.

Metrics cover the pending queue (depth, dead operations), mutation paths
(online vs offline, by kind), reconciliation passes (count, duration, replay
outcomes), and connectivity (current state, transition counts). All metrics
are registered at init and served via Handler():

	http.Handle("/metrics", metrics.Handler())

Timer Helper:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReconciliationDuration)
*/
package metrics
