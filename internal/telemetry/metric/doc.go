// Package metric provides Prometheus metrics for ns-server.
//
// Metrics cover the node-identity subsystem: address change outcomes,
// probe failures, rename protocol activity, and the communication
// layer state. They are exposed at /metrics on the admin server in
// Prometheus format.
package metric
