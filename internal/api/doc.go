// Package api serves the operational HTTP surface: health checks,
// Prometheus metrics and the reminder queue depth. The chat surface itself
// is an external collaborator and has no routes here.
package api
