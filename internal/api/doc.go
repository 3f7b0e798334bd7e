// Package api provides the Peacock Provision REST API: provision lifecycle
// endpoints backed by the orchestrator workflows, and the generic instance
// endpoints child subprocesses report their status through.
package api
