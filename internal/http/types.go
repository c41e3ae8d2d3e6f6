package http

// QueryRequest is the request body for POST /api/v1/query.
type QueryRequest struct {
	Query string `json:"query"`
	// K is the number of documents to retrieve; 0 means the orchestrator
	// default.
	K int `json:"k,omitempty"`
}

// QueryResponse is the response body for POST /api/v1/query.
type QueryResponse struct {
	QueryID string          `json:"query_id"`
	Answer  string          `json:"answer"`
	Sources []string        `json:"sources"`
	Images  []ImageResponse `json:"images"`
}

// ImageResponse describes one retrieved image. ImageBase64 is the PNG
// payload when the image side store has it.
type ImageResponse struct {
	ID          string `json:"id"`
	Caption     string `json:"caption"`
	SourceURL   string `json:"source_url"`
	ImageURL    string `json:"image_url"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

// ErrorResponse is returned for failed queries. Message never carries
// internal error detail.
type ErrorResponse struct {
	Message string `json:"message"`
	QueryID string `json:"query_id,omitempty"`
}

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version,omitempty"`
	Collection string `json:"collection"`
	// Documents is -1 when the store cannot be counted.
	Documents int    `json:"documents"`
	Images    int    `json:"images"`
	State     string `json:"state"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
