// Package models defines the domain types for rstWeb.
package models

import "time"

// Document is a stored rs3 file, identified by (User, Project, Name).
type Document struct {
	Name      string    `json:"name"`
	Project   string    `json:"project"`
	User      string    `json:"user"`
	Content   []byte    `json:"-"`
	Checksum  string    `json:"checksum"`
	Segments  int       `json:"segments"`
	Relations int       `json:"relations"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentRef names a document across all projects of a user.
type DocumentRef struct {
	Name    string `json:"name"`
	Project string `json:"project"`
}

// OutputFormat selects how a stored document is returned.
type OutputFormat string

// Output formats.
const (
	OutputRS3       OutputFormat = "rs3"
	OutputPNG       OutputFormat = "png"
	OutputPNGBase64 OutputFormat = "png-base64"
	OutputEditor    OutputFormat = "editor"
)

// InputFormat names the serialization of an uploaded document.
type InputFormat string

// InputRS3 is the only accepted input format.
const InputRS3 InputFormat = "rs3"

// Renders reports whether the format is produced by the renderer.
func (f OutputFormat) Renders() bool {
	return f == OutputPNG || f == OutputPNGBase64
}
