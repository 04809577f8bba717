/*
Package metrics provides Prometheus metrics collection and exposition for the
management service.

Metrics are registered at package init against the default Prometheus
registry and exposed over HTTP via Handler() for scraping. A Collector runs
a periodic tick that reads the current topology from the store and
refreshes the node, target, and buddy-group count gauges; counters and
histograms are updated inline by the wire, RPC, and store packages as
requests and transactions happen. mgmtd_capacity_class and the quota
metrics are registered and exposed, but no package sets them.

# Categories

	Topology:  mgmtd_nodes_total, mgmtd_targets_total, mgmtd_buddy_groups_total
	Capacity:  mgmtd_capacity_class
	Wire/RPC:  mgmtd_beemsg_requests_total, mgmtd_rpc_requests_total, auth failures
	Store:     mgmtd_store_queue_depth, mgmtd_store_tx_duration_seconds, errors
	Quota:     mgmtd_quota_cycle_duration_seconds, mgmtd_quota_exceeded_ids

# Health

HealthHandler, ReadyHandler, and LivenessHandler back /health, /ready, and
/live. Readiness additionally requires the store, beemsg listener, and RPC
listener to have registered themselves as healthy; liveness only requires
the process to be answering at all.
*/
package metrics
