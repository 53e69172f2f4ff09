/*
Package observability provides lifecycle hooks for monitoring acquisitions.

Metrics exports Prometheus counters, gauges and histograms for runs, events,
suppressions and hook failures. AuditHooks writes the same transitions to a
structured logger. Both plug into the engine through lattice.WithLifecycleHooks:

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	engine := lattice.New(hw,
		lattice.WithLifecycleHooks(metrics.Hooks()),
		lattice.WithLifecycleHooks(observability.AuditHooks(logger)),
	)
*/
package observability
