package server

// FieldUpdateRequest edits one field of the analyze form.
type FieldUpdateRequest struct {
	Field string `json:"field" example:"price"`
	Value string `json:"value" example:"25000"`
}

// HealthResponse reports the dashboard's own liveness.
type HealthResponse struct {
	Status     string `json:"status" example:"ok"`
	Sessions   int    `json:"sessions" example:"3"`
	APIBaseURL string `json:"api_base_url" example:"http://localhost:8000"`
}

// ErrorResponse is a uniform error payload returned by the JSON endpoints.
type ErrorResponse struct {
	Error string `json:"error" example:"no analysis to export"`
}
