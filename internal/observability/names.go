// Package observability provides OpenTelemetry metrics and tracing for the directory hub.
package observability

import (
	"github.com/directorio/hub/internal/datatypes"
)

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameEventsDiscarded       = "hub_events_discarded_total"
	MetricNameFanOutDuration        = "hub_message_publisher_fan_out_duration_seconds"
	MetricNameEventChannelDepth     = "hub_event_channel_depth"
	MetricNameRiverQueueDepth       = "hub_river_queue_depth"
	MetricNameDependencyCalls       = "hub_dependency_calls_total"
	MetricNameDependencyDuration    = "hub_dependency_call_duration_seconds"
	MetricNameIndexOutcomes         = "hub_index_outcomes_total"
	MetricNameIndexDuration         = "hub_index_duration_seconds"
	MetricNameProjectionWrites      = "hub_vector_projection_writes_total"
	MetricNameSearches              = "hub_searches_total"
	MetricNameSearchDuration        = "hub_search_duration_seconds"
	MetricNameSearchResults         = "hub_search_results"
	MetricNameAcceleratedFailures   = "hub_accelerated_search_failures_total"
	MetricNameCacheLookups          = "hub_cache_lookups_total"
	MetricNameRequestBodyTooLarge   = "hub_request_body_too_large_total"
	MetricNameHTTPRequests          = "hub_http_requests_total"
	MetricNameHTTPRequestDuration   = "hub_http_request_duration_seconds"
	MetricNameLifecycleMessagesRecv = "hub_lifecycle_messages_received_total"
	MetricNameJobFailures           = "hub_job_failures_total"
)

// Attribute keys.
const (
	AttrEventType   = "event_type"
	AttrReason      = "reason"
	AttrStatus      = "status"
	AttrComponent   = "component"
	AttrOperation   = "operation"
	AttrSuccess     = "success"
	AttrOutcome     = "outcome"
	AttrSource      = "source"
	AttrCache       = "cache"
	AttrResult      = "result"
	AttrMethod      = "method"
	AttrRoute       = "route"
	AttrStatusClass = "status_class"
	AttrJobKind     = "job_kind"
	AttrPanicked    = "panicked"
)

// Cache names used as the "cache" attribute.
const (
	CacheQueryEmbedding = "query_embedding"
)

// AllowedEventTypes returns event type strings allowed for metric attributes (bounded cardinality).
func AllowedEventTypes() []string {
	return datatypes.GetAllEventTypes()
}

// AllowedJobKinds for hub_job_failures_total.
var AllowedJobKinds = map[string]bool{
	"index_business": true,
}

// AllowedComponents for hub_dependency_calls_total.
var AllowedComponents = map[string]bool{
	"openai":            true,
	"google":            true,
	"vector_projection": true,
	"embedding_store":   true,
	"business_store":    true,
}

// AllowedOperations for hub_dependency_calls_total.
var AllowedOperations = map[string]bool{
	"create_embedding": true,
	"chat_completion":  true,
	"probe":            true,
	"upsert":           true,
	"delete":           true,
	"nearest":          true,
	"list_candidates":  true,
}

// AllowedIndexOutcomes for hub_index_outcomes_total.
var AllowedIndexOutcomes = map[string]bool{
	"indexed":   true,
	"unchanged": true,
	"skipped":   true,
	"removed":   true,
	"failed":    true,
	"queued":    true,
}

// AllowedSearchSources for hub_searches_total.
var AllowedSearchSources = map[string]bool{
	"accelerated": true,
	"fallback":    true,
}

// AllowedAcceleratedFailureReasons for hub_accelerated_search_failures_total.
var AllowedAcceleratedFailureReasons = map[string]bool{
	"probe_failed": true,
	"query_failed": true,
	"write_failed": true,
}

// AllowedCacheNames for hub_cache_lookups_total.
var AllowedCacheNames = map[string]bool{
	CacheQueryEmbedding: true,
}

// NormalizeEventType returns eventType if allowed, otherwise "unknown".
func NormalizeEventType(eventType string) string {
	if datatypes.IsValidEventType(eventType) {
		return eventType
	}

	return "unknown"
}

// NormalizeReason returns reason if in allowed, otherwise "other".
func NormalizeReason(reason string, allowed map[string]bool) string {
	if allowed[reason] {
		return reason
	}

	return "other"
}

// NormalizeCacheName returns name if it is a known cache, otherwise "other".
func NormalizeCacheName(name string) string {
	return NormalizeReason(name, AllowedCacheNames)
}
