/*
Package observability turns engine lifecycle events into Prometheus metrics
and structured log lines. Both are plain domain.LifecycleHooks and can be
combined with domain.ComposeHooks.
*/
package observability
