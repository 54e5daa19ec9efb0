package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/jtacoma/uritemplates"

	"github.com/arne-cl/rstWeb/internal/lifecycle"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Staging  StagingConfig     `yaml:"staging"`
	Renderer RendererConfig    `yaml:"renderer"`
	Editor   EditorConfig      `yaml:"editor"`
	Inbox    InboxConfig       `yaml:"inbox"`
	CORS     CORSConfig        `yaml:"cors"`
	Convert  ConvertConfig     `yaml:"convert"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.App),
		validation.Field(&c.SQLite),
		validation.Field(&c.Renderer),
		validation.Field(&c.Editor),
		validation.Field(&c.Convert),
	)
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
	// User is the implicit identity that owns every document.
	User string `yaml:"user"`
}

// Validate validates the application configuration.
func (c ApplicationConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.HTTP),
		validation.Field(&c.User, validation.Required),
	)
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c HTTPConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c SQLiteConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Path, validation.Required),
	)
}

// StagingConfig holds the import staging directory. An empty path means a
// fresh temporary directory that is removed on shutdown.
type StagingConfig struct {
	Path string `yaml:"path"`
}

// RendererConfig points at the rs3 rendering service.
type RendererConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the renderer configuration.
func (c RendererConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.URL, validation.Required, is.URL, validation.By(httpScheme)),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Millisecond)),
	)
}

func httpScheme(value interface{}) error {
	s, _ := value.(string)
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return errors.New("must be an http or https URL")
	}
	return nil
}

// EditorConfig holds the redirect target of the editor output format.
type EditorConfig struct {
	// URLTemplate is an RFC 6570 template expanded with current_doc and current_project.
	URLTemplate string `yaml:"url_template"`
}

// Validate validates the editor configuration.
func (c EditorConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.URLTemplate, validation.Required, validation.By(func(value interface{}) error {
			_, err := uritemplates.Parse(value.(string))
			return err
		})),
	)
}

// InboxConfig holds the watched import directory. An empty path disables it.
type InboxConfig struct {
	Path string `yaml:"path"`
}

// Enabled reports whether the inbox watcher should run.
func (c *InboxConfig) Enabled() bool {
	return c.Path != ""
}

// CORSConfig holds the Access-Control-Allow-Origin value. Empty disables CORS headers.
type CORSConfig struct {
	AllowedOrigin string `yaml:"allowed_origin"`
}

// ConvertConfig holds the convert workflow settings.
type ConvertConfig struct {
	// TempProject is the reserved prefix of per-call scratch projects.
	TempProject string `yaml:"temp_project"`
}

// Validate validates the convert configuration.
func (c ConvertConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.TempProject, validation.Required, validation.By(func(value interface{}) error {
			if strings.ContainsAny(value.(string), `/\`) {
				return errors.New("must not contain path separators")
			}
			return nil
		})),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
			User: lifecycle.DefaultUser,
		},
		SQLite: SQLiteConfig{
			Path: "./rstweb.db",
		},
		Renderer: RendererConfig{
			URL:     "http://localhost:9000/render",
			Timeout: 30 * time.Second,
		},
		Editor: EditorConfig{
			URLTemplate: lifecycle.DefaultEditorTemplate,
		},
		CORS: CORSConfig{
			AllowedOrigin: "*",
		},
		Convert: ConvertConfig{
			TempProject: lifecycle.DefaultTempProject,
		},
	}
}
