package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/arne-cl/rstWeb/internal/apperr"
	"github.com/arne-cl/rstWeb/internal/models"
)

// GetDocumentRequest selects a stored document and its output format.
type GetDocumentRequest struct {
	Project string
	File    string
	Output  models.OutputFormat
}

// Validate checks the identifiers; the output format is checked after the
// existence check so that missing files are reported first.
func (r GetDocumentRequest) Validate() error {
	return validateNames(r.Project, r.File)
}

// PutDocumentRequest carries the content for AddDocument and UpdateDocument.
type PutDocumentRequest struct {
	Project string
	File    string
	Content []byte
}

// Validate checks the identifiers.
func (r PutDocumentRequest) Validate() error {
	return validateNames(r.Project, r.File)
}

// ConvertRequest is a stateless conversion of uploaded content into an image.
type ConvertRequest struct {
	InputFormat  models.InputFormat
	OutputFormat models.OutputFormat
	Content      []byte
}

// Validate rejects unsupported formats before anything is staged.
func (r ConvertRequest) Validate() error {
	if r.InputFormat != models.InputRS3 {
		return fmt.Errorf("%w: unsupported input format %q (supported: %s)",
			apperr.ErrUnsupportedFormat, r.InputFormat, models.InputRS3)
	}
	if !r.OutputFormat.Renders() {
		return fmt.Errorf("%w: unsupported output format %q (supported: %s, %s)",
			apperr.ErrUnsupportedFormat, r.OutputFormat, models.OutputPNG, models.OutputPNGBase64)
	}
	return nil
}

// Content is the result of GetDocument or Convert.
type Content struct {
	Format      models.OutputFormat
	Data        []byte
	ContentType string
	// Filename is set for downloadable formats.
	Filename string
	// Checksum of the stored rs3 content, set for rs3 output.
	Checksum string
	// RedirectURL is set for editor output instead of Data.
	RedirectURL string
}

var plainName = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return errors.New("must be a plain name without path separators")
	}
	return nil
})

func validateProject(project string) error {
	err := validation.Validate(project, validation.Required, plainName)
	if err != nil {
		return fmt.Errorf("%w: project %w", apperr.ErrInvalidName, err)
	}
	return nil
}

func validateNames(project, file string) error {
	if err := validateProject(project); err != nil {
		return err
	}
	if err := validation.Validate(file, validation.Required, plainName); err != nil {
		return fmt.Errorf("%w: file %w", apperr.ErrInvalidName, err)
	}
	return nil
}
