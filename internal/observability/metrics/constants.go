package metrics

import "time"

// Operation names passed to Recorder.
const (
	// OpManifestFetch is one manifest candidate attempt.
	OpManifestFetch = "manifest_fetch"
	// OpTextFetch is one auxiliary text request that reached the network.
	OpTextFetch = "text_fetch"
	// OpTextCache is a text cache lookup.
	OpTextCache = "text_cache"
	// OpCatalogRefresh is one complete fetch and enrich cycle.
	OpCatalogRefresh = "catalog_refresh"
	// OpDailySelection is a daily selector outcome.
	OpDailySelection = "daily_selection"
	// OpMQTTPublish is one MQTT announcement.
	OpMQTTPublish = "mqtt_publish"
	// OpNotify is one push notification through the notification services.
	OpNotify = "notify"
)

// Status values passed to Recorder.RecordOperation.
const (
	StatusSuccess        = "success"
	StatusError          = "error"
	StatusTransportError = "transport_error"
	StatusHTTPError      = "http_error"
	StatusDecodeError    = "decode_error"
	StatusExhausted      = "exhausted"
	StatusSuperseded     = "superseded"
	StatusHit            = "hit"
	StatusMiss           = "miss"

	// Daily selector reasons
	StatusKept         = "kept"
	StatusPicked       = "picked"
	StatusForced       = "forced"
	StatusEmptyCatalog = "empty_catalog"
)

// Histogram bucket settings.
const (
	refreshBucketStart  = 0.05
	refreshBucketFactor = 2
	refreshBucketCount  = 10

	publishBucketStart  = 0.001
	publishBucketFactor = 2
	publishBucketCount  = 10

	messageSizeBucketStart  = 64
	messageSizeBucketFactor = 2
	messageSizeBucketCount  = 10
)

// DefaultScrapeTimeout bounds a /metrics scrape.
const DefaultScrapeTimeout = 10 * time.Second
