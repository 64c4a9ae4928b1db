package drive

import "fmt"

// apiFile is the subset of Drive file metadata this client requests.
type apiFile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
}

// listResponse is the envelope of files.list.
type listResponse struct {
	Files         []apiFile `json:"files"`
	NextPageToken string    `json:"nextPageToken"`
}

// fileMeta is the metadata body sent on create/update.
type fileMeta struct {
	Name     string   `json:"name,omitempty"`
	MimeType string   `json:"mimeType,omitempty"`
	Parents  []string `json:"parents,omitempty"`
}

// errorEnvelope is the Drive API error body.
type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// APIError is a non-2xx response from the Drive API.
type APIError struct {
	Status  int    // HTTP status
	Reason  string // first API reason, e.g. "notFound", "rateLimitExceeded"
	Message string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("drive api: status %d (%s): %s", e.Status, e.Reason, e.Message)
	}
	return fmt.Sprintf("drive api: status %d: %s", e.Status, e.Message)
}
