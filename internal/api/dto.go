package api

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error" validate:"required"`
}

// ErrorDetail carries the status code and a human-readable message.
type ErrorDetail struct {
	HTTPStatus int    `json:"http_status" example:"400" validate:"required"`
	Message    string `json:"message" example:"unknown output format: pdf" validate:"required"`
}

// ProjectList is the response of GET /projects.
type ProjectList []string

// DocumentList is the response of GET /projects/{project}.
type DocumentList []string

// DocumentIndex maps project names to their documents (GET /documents).
type DocumentIndex map[string][]string

// MutationResponse acknowledges a successful create, update or delete.
type MutationResponse struct {
	Status  string `json:"status" example:"ok" validate:"required"`
	Project string `json:"project,omitempty" example:"proj1"`
	File    string `json:"file,omitempty" example:"test.rs3"`
}

func ok(project, file string) MutationResponse {
	return MutationResponse{Status: "ok", Project: project, File: file}
}
