package webhooks

import "time"

// Payload is the JSON body posted to webhook endpoints.
type Payload struct {
	Event      Trigger   `json:"event"`
	Timestamp  time.Time `json:"timestamp"`
	ResourceID string    `json:"resource_id"`
	Data       any       `json:"data,omitempty"`
}
