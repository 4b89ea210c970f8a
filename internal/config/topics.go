package config

const (
	// TopicIngestDocument is the NSQ topic for captured pages awaiting chunking.
	TopicIngestDocument = "ingest.document"

	// TopicIngestEmbed is the NSQ topic for single chunks awaiting embedding and storage.
	TopicIngestEmbed = "ingest.embed"
)
