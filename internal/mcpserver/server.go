// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes rstWeb tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"

	"github.com/arne-cl/rstWeb/internal/lifecycle"
	"github.com/arne-cl/rstWeb/internal/models"
)

const formatURI = "rstweb://rs3-format"

// Server wraps the MCP server with rstWeb tools.
type Server struct {
	mcp *server.MCPServer
	m   *lifecycle.Manager
}

type projectArgs struct {
	Project string `mapstructure:"project"`
}

type documentArgs struct {
	Project string `mapstructure:"project"`
	File    string `mapstructure:"file"`
}

type putArgs struct {
	Project string `mapstructure:"project"`
	File    string `mapstructure:"file"`
	Content string `mapstructure:"content"`
}

type convertArgs struct {
	Content      string `mapstructure:"content"`
	InputFormat  string `mapstructure:"input_format"`
	OutputFormat string `mapstructure:"output_format"`
}

// New creates a new MCP server with all rstWeb tools registered.
func New(m *lifecycle.Manager, version string) *Server {
	s := &Server{m: m}

	s.mcp = server.NewMCPServer(
		"rstWeb",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List all projects."),
	), s.listProjects)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List the documents of a project, or of every project grouped by project name."),
		mcp.WithString("project", mcp.Description("Project name (empty for all projects)")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read the rs3 source of a stored document."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString("file", mcp.Required(), mcp.Description("Document name, e.g. essay.rs3")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("render_document",
		mcp.WithDescription("Render a stored document as a PNG image of its rhetorical structure tree."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString("file", mcp.Required(), mcp.Description("Document name")),
	), s.renderDocument)

	s.mcp.AddTool(mcp.NewTool("add_document",
		mcp.WithDescription("Add a new rs3 document. Fails if the document exists; use update_document to replace. "+
			"Content MUST follow the rs3 format, see get_rs3_contract or the "+formatURI+" resource."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name, created if absent")),
		mcp.WithString("file", mcp.Required(), mcp.Description("Document name")),
		mcp.WithString("content", mcp.Required(), mcp.Description("rs3 XML content")),
	), s.addDocument)

	s.mcp.AddTool(mcp.NewTool("update_document",
		mcp.WithDescription("Add or replace an rs3 document."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name, created if absent")),
		mcp.WithString("file", mcp.Required(), mcp.Description("Document name")),
		mcp.WithString("content", mcp.Required(), mcp.Description("rs3 XML content")),
	), s.updateDocument)

	s.mcp.AddTool(mcp.NewTool("delete_document",
		mcp.WithDescription("Delete a document. Deleting a missing document does nothing."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString("file", mcp.Required(), mcp.Description("Document name")),
	), s.deleteDocument)

	s.mcp.AddTool(mcp.NewTool("create_project",
		mcp.WithDescription("Create an empty project. Creating an existing project does nothing."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
	), s.createProject)

	s.mcp.AddTool(mcp.NewTool("delete_project",
		mcp.WithDescription("Delete a project and all of its documents."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
	), s.deleteProject)

	s.mcp.AddTool(mcp.NewTool("convert_document",
		mcp.WithDescription("Render rs3 content as a PNG image without storing it."),
		mcp.WithString("content", mcp.Required(), mcp.Description("rs3 XML content")),
		mcp.WithString("input_format", mcp.Description("Input format (only rs3)")),
		mcp.WithString("output_format", mcp.Description("png or png-base64 (both return an image)")),
	), s.convertDocument)

	s.mcp.AddTool(mcp.NewTool("get_rs3_contract",
		mcp.WithDescription("Returns the rs3 document format contract. "+
			"Call this before adding or converting documents."),
	), s.getContract)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "rs3 Format Contract",
			mcp.WithResourceDescription("XML format of rhetorical structure tree documents."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// decodeArgs decodes the tool arguments into out, rejecting unknown keys.
func decodeArgs(req mcp.CallToolRequest, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		ErrorUnused: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(req.GetArguments()); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listProjects(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.m.ListProjects(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(projects), nil
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args projectArgs
	if err := decodeArgs(req, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if args.Project == "" {
		all, err := s.m.ListAllDocuments(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(all), nil
	}
	docs, err := s.m.ListDocuments(ctx, args.Project)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(docs), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args documentArgs
	if err := decodeArgs(req, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := s.m.GetDocument(ctx, lifecycle.GetDocumentRequest{
		Project: args.Project, File: args.File, Output: models.OutputRS3,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(content.Data)), nil
}

func (s *Server) renderDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args documentArgs
	if err := decodeArgs(req, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := s.m.GetDocument(ctx, lifecycle.GetDocumentRequest{
		Project: args.Project, File: args.File, Output: models.OutputPNGBase64,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultImage(fmt.Sprintf("%s/%s", args.Project, args.File), string(content.Data), lifecycle.ContentTypePNG), nil
}

func (s *Server) addDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.putDocument(ctx, req, "added", s.m.AddDocument)
}

func (s *Server) updateDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.putDocument(ctx, req, "updated", s.m.UpdateDocument)
}

func (s *Server) putDocument(ctx context.Context, req mcp.CallToolRequest, verb string,
	op func(context.Context, lifecycle.PutDocumentRequest) error) (*mcp.CallToolResult, error) {
	var args putArgs
	if err := decodeArgs(req, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if args.Content == "" {
		return mcp.NewToolResultError("content is required"), nil
	}
	err := op(ctx, lifecycle.PutDocumentRequest{
		Project: args.Project, File: args.File, Content: []byte(args.Content),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s/%s", verb, args.Project, args.File)), nil
}

func (s *Server) deleteDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args documentArgs
	if err := decodeArgs(req, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.m.DeleteDocument(ctx, args.Project, args.File); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s/%s", args.Project, args.File)), nil
}

func (s *Server) createProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args projectArgs
	if err := decodeArgs(req, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.m.CreateProject(ctx, args.Project); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("created: " + args.Project), nil
}

func (s *Server) deleteProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args projectArgs
	if err := decodeArgs(req, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if args.Project == "" {
		return mcp.NewToolResultError("project is required"), nil
	}
	if err := s.m.DeleteProject(ctx, args.Project); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("deleted: " + args.Project), nil
}

func (s *Server) convertDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := convertArgs{InputFormat: string(models.InputRS3), OutputFormat: string(models.OutputPNG)}
	if err := decodeArgs(req, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	// Validate the requested formats, then always render base64 for the image result.
	creq := lifecycle.ConvertRequest{
		InputFormat:  models.InputFormat(args.InputFormat),
		OutputFormat: models.OutputFormat(args.OutputFormat),
		Content:      []byte(args.Content),
	}
	if err := creq.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	creq.OutputFormat = models.OutputPNGBase64

	content, err := s.m.Convert(ctx, creq)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultImage("rendered rs3 tree", string(content.Data), lifecycle.ContentTypePNG), nil
}

func (s *Server) getContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RS3FormatContract), nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     RS3FormatContract,
		},
	}, nil
}
