// Package chat exposes the conversation controller over HTTP.
package chat

// SubmitRequest is the body of POST /api/chat/messages.
type SubmitRequest struct {
	Text string `json:"text"`
}

// RatingRequest is the body of POST /api/chat/messages/{id}/rating.
type RatingRequest struct {
	Rating int `json:"rating"`
}

// SelectModelRequest is the body of PUT /api/chat/model.
type SelectModelRequest struct {
	Model string `json:"model"`
}

// ModelsResponse lists the selectable models and the active one.
type ModelsResponse struct {
	Models []string `json:"models"`
	Active string   `json:"active"`
}

// StatusInfo is one advisory connection status.
type StatusInfo struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// StatusResponse reports the advisory model and database statuses.
type StatusResponse struct {
	Model    StatusInfo `json:"model"`
	Database StatusInfo `json:"database"`
}
