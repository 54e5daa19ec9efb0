package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/arne-cl/rstWeb/internal/apperr"
	"github.com/arne-cl/rstWeb/internal/checksum"
	"github.com/arne-cl/rstWeb/internal/lifecycle"
	"github.com/arne-cl/rstWeb/internal/models"
)

// maxUpload bounds document uploads, raw or multipart.
const maxUpload = 32 << 20

// uploadField is the multipart form field carrying a document.
const uploadField = "input_file"

const indexText = `rstWeb API

GET    /api/projects
DELETE /api/projects
GET    /api/projects/{project}
POST   /api/projects/{project}
DELETE /api/projects/{project}
GET    /api/documents
GET    /api/documents/{project}
GET    /api/documents/{project}/{file}?output=rs3|png|png-base64|editor
POST   /api/documents/{project}/{file}
PUT    /api/documents/{project}/{file}
DELETE /api/documents/{project}/{file}
POST   /api/convert?input_format=rs3&output_format=png|png-base64
`

// Handler holds API route handlers.
type Handler struct {
	m *lifecycle.Manager
}

// NewHandler creates a new Handler.
func NewHandler(m *lifecycle.Manager) *Handler {
	return &Handler{m: m}
}

// urlParam returns a decoded route parameter. chi matches on r.URL.RawPath
// when it is set (escapes such as %2F that Path cannot round-trip) and on the
// already decoded r.URL.Path otherwise, so only the former needs unescaping.
func urlParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v
	}
	decoded, err := url.PathUnescape(v)
	if err != nil {
		return v
	}
	return decoded
}

// readUpload returns the uploaded document, taken from the multipart field
// input_file when the request is a form, from the raw body otherwise.
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(mediaType, "multipart/") {
		if err := r.ParseMultipartForm(maxUpload); err != nil {
			return nil, fmt.Errorf("%w: invalid multipart body: %w", apperr.ErrInvalidDocument, err)
		}
		f, _, ferr := r.FormFile(uploadField)
		if ferr != nil {
			return nil, fmt.Errorf("%w: multipart field %q is required", apperr.ErrInvalidDocument, uploadField)
		}
		defer f.Close()
		data, err = io.ReadAll(f)
	} else {
		data, err = io.ReadAll(r.Body)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: upload exceeds %d bytes", apperr.ErrInvalidDocument, tooLarge.Limit)
		}
		return nil, fmt.Errorf("%w: failed to read body: %w", apperr.ErrInvalidDocument, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", apperr.ErrInvalidDocument)
	}
	return data, nil
}

// writeContent serializes a GetDocument or Convert result.
func writeContent(w http.ResponseWriter, r *http.Request, c *lifecycle.Content) {
	if c.RedirectURL != "" {
		http.Redirect(w, r, c.RedirectURL, http.StatusSeeOther)
		return
	}
	h := w.Header()
	h.Set("Content-Type", c.ContentType)
	if c.Filename != "" {
		h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": c.Filename}))
	}
	if c.Checksum != "" {
		etag := checksum.ETag(c.Checksum)
		h.Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(c.Data)
}

// Index handles GET /api.
func (h *Handler) Index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, indexText)
}

// ListProjects handles GET /api/projects.
//
//	@Summary		List all projects
//	@Tags			projects
//	@Produce		json
//	@Success		200	{object}	ProjectList
//	@Router			/projects [get]
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.m.ListProjects(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ProjectList(projects))
}

// DeleteAllProjects handles DELETE /api/projects.
//
//	@Summary		Delete every project
//	@Tags			projects
//	@Produce		json
//	@Success		200	{object}	MutationResponse
//	@Failure		500	{object}	ErrorResponse	"projects remain"
//	@Router			/projects [delete]
func (h *Handler) DeleteAllProjects(w http.ResponseWriter, r *http.Request) {
	if err := h.m.DeleteAllProjects(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok("", ""))
}

// ListDocuments handles GET /api/projects/{project} and GET /api/documents/{project}.
//
//	@Summary		List the documents of a project
//	@Tags			projects
//	@Produce		json
//	@Param			project	path		string	true	"Project name"
//	@Success		200		{object}	DocumentList
//	@Router			/projects/{project} [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.m.ListDocuments(r.Context(), urlParam(r, "project"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentList(docs))
}

// CreateProject handles POST /api/projects/{project}.
//
//	@Summary		Create a project (idempotent)
//	@Tags			projects
//	@Produce		json
//	@Param			project	path		string	true	"Project name"
//	@Success		200		{object}	MutationResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/projects/{project} [post]
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	project := urlParam(r, "project")
	if err := h.m.CreateProject(r.Context(), project); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(project, ""))
}

// DeleteProject handles DELETE /api/projects/{project}.
//
//	@Summary		Delete a project and its documents (idempotent)
//	@Tags			projects
//	@Produce		json
//	@Param			project	path		string	true	"Project name"
//	@Success		200		{object}	MutationResponse
//	@Failure		400		{object}	ErrorResponse	"reserved name"
//	@Failure		500		{object}	ErrorResponse
//	@Router			/projects/{project} [delete]
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	project := urlParam(r, "project")
	if err := h.m.DeleteProject(r.Context(), project); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(project, ""))
}

// ListAllDocuments handles GET /api/documents.
//
//	@Summary		List all documents grouped by project
//	@Tags			documents
//	@Produce		json
//	@Success		200	{object}	DocumentIndex
//	@Router			/documents [get]
func (h *Handler) ListAllDocuments(w http.ResponseWriter, r *http.Request) {
	all, err := h.m.ListAllDocuments(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentIndex(all))
}

// GetDocument handles GET /api/documents/{project}/{file}.
//
//	@Summary		Get a document as rs3, png, base64 png, or an editor redirect
//	@Tags			documents
//	@Param			project	path		string	true	"Project name"
//	@Param			file	path		string	true	"Document name"
//	@Param			output	query		string	false	"Output format"	Enums(rs3, png, png-base64, editor)
//	@Success		200		{file}		binary
//	@Success		303		"Redirect to the structure editor"
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/documents/{project}/{file} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	output := r.URL.Query().Get("output")
	if output == "" {
		output = string(models.OutputRS3)
	}
	content, err := h.m.GetDocument(r.Context(), lifecycle.GetDocumentRequest{
		Project: urlParam(r, "project"),
		File:    urlParam(r, "file"),
		Output:  models.OutputFormat(output),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeContent(w, r, content)
}

// AddDocument handles POST /api/documents/{project}/{file}.
//
//	@Summary		Add a new document
//	@Tags			documents
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			project		path		string	true	"Project name"
//	@Param			file		path		string	true	"Document name"
//	@Param			input_file	formData	file	true	"rs3 document"
//	@Success		200			{object}	MutationResponse
//	@Failure		400			{object}	ErrorResponse	"document exists"
//	@Failure		500			{object}	ErrorResponse	"import failed"
//	@Router			/documents/{project}/{file} [post]
func (h *Handler) AddDocument(w http.ResponseWriter, r *http.Request) {
	h.putDocument(w, r, h.m.AddDocument)
}

// UpdateDocument handles PUT /api/documents/{project}/{file}.
//
//	@Summary		Add or replace a document
//	@Tags			documents
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			project		path		string	true	"Project name"
//	@Param			file		path		string	true	"Document name"
//	@Param			input_file	formData	file	true	"rs3 document"
//	@Success		200			{object}	MutationResponse
//	@Failure		500			{object}	ErrorResponse	"import failed"
//	@Router			/documents/{project}/{file} [put]
func (h *Handler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	h.putDocument(w, r, h.m.UpdateDocument)
}

func (h *Handler) putDocument(w http.ResponseWriter, r *http.Request, op func(context.Context, lifecycle.PutDocumentRequest) error) {
	data, err := readUpload(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req := lifecycle.PutDocumentRequest{
		Project: urlParam(r, "project"),
		File:    urlParam(r, "file"),
		Content: data,
	}
	if err := op(r.Context(), req); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(req.Project, req.File))
}

// DeleteDocument handles DELETE /api/documents/{project}/{file}.
//
//	@Summary		Delete a document
//	@Tags			documents
//	@Produce		json
//	@Param			project	path		string	true	"Project name"
//	@Param			file	path		string	true	"Document name"
//	@Success		200		{object}	MutationResponse
//	@Failure		400		{object}	ErrorResponse	"reserved name"
//	@Failure		500		{object}	ErrorResponse	"document still present"
//	@Router			/documents/{project}/{file} [delete]
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	project, file := urlParam(r, "project"), urlParam(r, "file")
	if err := h.m.DeleteDocument(r.Context(), project, file); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(project, file))
}

// Convert handles POST /api/convert.
//
//	@Summary		Render an uploaded document without storing it
//	@Tags			convert
//	@Accept			multipart/form-data
//	@Param			input_format	query		string	true	"Input format"	Enums(rs3)
//	@Param			output_format	query		string	true	"Output format"	Enums(png, png-base64)
//	@Param			input_file		formData	file	true	"rs3 document"
//	@Success		200				{file}		binary
//	@Failure		400				{object}	ErrorResponse	"unsupported format"
//	@Failure		500				{object}	ErrorResponse	"pipeline failure"
//	@Router			/convert [post]
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := lifecycle.ConvertRequest{
		InputFormat:  models.InputFormat(q.Get("input_format")),
		OutputFormat: models.OutputFormat(q.Get("output_format")),
	}
	// Reject formats before reading a possibly large upload.
	if err := req.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	data, err := readUpload(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req.Content = data

	content, err := h.m.Convert(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeContent(w, r, content)
}
