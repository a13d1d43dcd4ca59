// internal/models/request.go
package models

// ResolveRequest is the inbound request from the question-structuring layer.
type ResolveRequest struct {
	FrameworkElements map[string]string `json:"frameworkElements"`
	FullQuestion      string            `json:"fullQuestion"`
	FrameworkType     string            `json:"frameworkType"`
}
