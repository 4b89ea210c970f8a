package job

import (
	"encoding/json"
	"time"
)

// Job is a queue message whose processing failed. It is kept until an
// operator retries it.
type Job struct {
	ID          string          `json:"id"`
	Topic       string          `json:"topic"`
	DocumentURL string          `json:"document_url"`
	Payload     json.RawMessage `json:"payload"`
	Error       string          `json:"error"`
	Retries     int             `json:"retries"`
	CreatedAt   time.Time       `json:"created_at"`
}
