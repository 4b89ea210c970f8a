package worker

import "strings"

type Image struct {
	Src    string `json:"src"`
	Alt    string `json:"alt"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type VideoTranscription struct {
	Src           string  `json:"src"`
	Type          string  `json:"type"`
	Duration      float64 `json:"duration"`
	Transcription string  `json:"transcription"`
}

// IngestDocumentPayload is a captured page waiting to be chunked.
type IngestDocumentPayload struct {
	DocumentID          string               `json:"document_id"`
	URL                 string               `json:"url"`
	Title               string               `json:"title"`
	TextContent         string               `json:"text_content"`
	Images              []Image              `json:"images,omitempty"`
	VideoTranscriptions []VideoTranscription `json:"video_transcriptions,omitempty"`
	Timestamp           string               `json:"timestamp"`

	CorrelationID string `json:"correlation_id"`
}

// CombinedText joins the title, body, image alt text and transcriptions into
// the single text that gets chunked.
func (p IngestDocumentPayload) CombinedText() string {
	parts := []string{p.Title, p.TextContent}
	for _, img := range p.Images {
		if img.Alt != "" {
			parts = append(parts, "Image alt text: "+img.Alt)
		}
	}
	for _, v := range p.VideoTranscriptions {
		if v.Transcription != "" {
			parts = append(parts, "Video transcription: "+v.Transcription)
		}
	}
	return strings.Join(parts, " ")
}

// IngestEmbedPayload is a single chunk waiting to be embedded and stored.
type IngestEmbedPayload struct {
	DocumentID  string `json:"document_id"`
	SourceURL   string `json:"source_url"`
	Title       string `json:"title"`
	Timestamp   string `json:"timestamp"`
	Text        string `json:"text"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`

	CorrelationID string `json:"correlation_id"`
}
