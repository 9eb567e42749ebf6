package datastore

import "fmt"

// RemoteStoreError is a failed CKAN action.
type RemoteStoreError struct {
	Action     string
	StatusCode int
	Body       string
	RequestID  string
	Err        error
}

func (e *RemoteStoreError) Error() string {
	msg := fmt.Sprintf("datastore: %s failed with HTTP %d", e.Action, e.StatusCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *RemoteStoreError) Unwrap() error { return e.Err }
