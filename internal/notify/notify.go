// Package notify describes the message sent after a month has been uploaded
// and checkpointed, for consumers that refresh derived data.
package notify

import "time"

// TypeMonthUploaded is the only event type.
const TypeMonthUploaded = "month_uploaded"

// Event is the JSON body of a notification.
type Event struct {
	Type       string    `json:"type"`
	Dataset    string    `json:"dataset"`
	ResourceID string    `json:"resource_id"`
	Period     string    `json:"period"`
	File       string    `json:"file"`
	Records    int       `json:"records"`
	Timestamp  time.Time `json:"timestamp"`
}
