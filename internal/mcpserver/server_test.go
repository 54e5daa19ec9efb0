package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/arne-cl/rstWeb/internal/lifecycle"
	"github.com/arne-cl/rstWeb/internal/testutil"
)

func testServer(t *testing.T) (*Server, *lifecycle.Manager, *testutil.FakeRenderer) {
	t.Helper()
	renderer := &testutil.FakeRenderer{Image: testutil.PNG(t, 9)}
	m, err := lifecycle.New(testutil.TestDB(t), renderer, testutil.TestStaging(t))
	if err != nil {
		t.Fatal(err)
	}
	return New(m, "test"), m, renderer
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" helper, so dispatch to the handlers.
	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"list_projects":    srv.listProjects,
		"list_documents":   srv.listDocuments,
		"read_document":    srv.readDocument,
		"render_document":  srv.renderDocument,
		"add_document":     srv.addDocument,
		"update_document":  srv.updateDocument,
		"delete_document":  srv.deleteDocument,
		"create_project":   srv.createProject,
		"delete_project":   srv.deleteProject,
		"convert_document": srv.convertDocument,
		"get_rs3_contract": srv.getContract,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func resultImage(t *testing.T, r *mcp.CallToolResult) []byte {
	t.Helper()
	for _, c := range r.Content {
		if ic, ok := c.(mcp.ImageContent); ok {
			if ic.MIMEType != "image/png" {
				t.Errorf("MIME type = %q", ic.MIMEType)
			}
			data, err := base64.StdEncoding.DecodeString(ic.Data)
			if err != nil {
				t.Fatalf("decode image: %v", err)
			}
			return data
		}
	}
	t.Fatalf("no image content in result: %+v", r.Content)
	return nil
}

func TestAddAndReadDocument(t *testing.T) {
	srv, _, _ := testServer(t)

	r := callTool(t, srv, "add_document", map[string]interface{}{
		"project": "p",
		"file":    "a.rs3",
		"content": testutil.SampleRS3,
	})
	if text := resultText(r); text != "added: p/a.rs3" {
		t.Errorf("add result = %q", text)
	}

	r = callTool(t, srv, "read_document", map[string]interface{}{"project": "p", "file": "a.rs3"})
	if text := resultText(r); text != testutil.SampleRS3 {
		t.Errorf("read result = %q", text)
	}

	r = callTool(t, srv, "add_document", map[string]interface{}{
		"project": "p", "file": "a.rs3", "content": testutil.SampleRS3,
	})
	if !r.IsError {
		t.Error("expected error adding an existing document")
	}

	r = callTool(t, srv, "update_document", map[string]interface{}{
		"project": "p", "file": "a.rs3", "content": testutil.SampleRS3,
	})
	if r.IsError {
		t.Errorf("update failed: %s", resultText(r))
	}
}

func TestListTools(t *testing.T) {
	srv, m, _ := testServer(t)
	ctx := context.Background()
	_ = m.AddDocument(ctx, lifecycle.PutDocumentRequest{Project: "p1", File: "a.rs3", Content: []byte(testutil.SampleRS3)})
	_ = m.CreateProject(ctx, "p2")

	var projects []string
	_ = json.Unmarshal([]byte(resultText(callTool(t, srv, "list_projects", nil))), &projects)
	if strings.Join(projects, ",") != "p1,p2" {
		t.Errorf("projects = %v", projects)
	}

	var docs []string
	_ = json.Unmarshal([]byte(resultText(callTool(t, srv, "list_documents", map[string]interface{}{"project": "p1"}))), &docs)
	if len(docs) != 1 || docs[0] != "a.rs3" {
		t.Errorf("documents = %v", docs)
	}

	var all map[string][]string
	_ = json.Unmarshal([]byte(resultText(callTool(t, srv, "list_documents", map[string]interface{}{}))), &all)
	if len(all["p1"]) != 1 {
		t.Errorf("all documents = %v", all)
	}
}

func TestReadDocumentMissing(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "read_document", map[string]interface{}{"project": "p", "file": "nope.rs3"})
	if !r.IsError {
		t.Error("expected error for missing document")
	}
}

func TestUnknownArgumentRejected(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "read_document", map[string]interface{}{"project": "p", "path": "a.rs3"})
	if !r.IsError {
		t.Error("expected error for unknown argument")
	}
}

func TestDeleteTools(t *testing.T) {
	srv, m, _ := testServer(t)
	ctx := context.Background()
	_ = m.AddDocument(ctx, lifecycle.PutDocumentRequest{Project: "p", File: "a.rs3", Content: []byte(testutil.SampleRS3)})

	if r := callTool(t, srv, "delete_document", map[string]interface{}{"project": "p", "file": "a.rs3"}); r.IsError {
		t.Fatalf("delete_document: %s", resultText(r))
	}
	docs, _ := m.ListDocuments(ctx, "p")
	if len(docs) != 0 {
		t.Errorf("documents after delete = %v", docs)
	}

	if r := callTool(t, srv, "delete_project", map[string]interface{}{"project": "p"}); r.IsError {
		t.Fatalf("delete_project: %s", resultText(r))
	}
	projects, _ := m.ListProjects(ctx)
	if len(projects) != 0 {
		t.Errorf("projects after delete = %v", projects)
	}
}

func TestRenderAndConvert(t *testing.T) {
	srv, m, renderer := testServer(t)
	ctx := context.Background()
	_ = m.AddDocument(ctx, lifecycle.PutDocumentRequest{Project: "p", File: "a.rs3", Content: []byte(testutil.SampleRS3)})

	r := callTool(t, srv, "render_document", map[string]interface{}{"project": "p", "file": "a.rs3"})
	if r.IsError {
		t.Fatalf("render_document: %s", resultText(r))
	}
	if !bytes.Equal(resultImage(t, r), renderer.Image) {
		t.Error("rendered image differs")
	}

	r = callTool(t, srv, "convert_document", map[string]interface{}{"content": testutil.SampleRS3})
	if r.IsError {
		t.Fatalf("convert_document: %s", resultText(r))
	}
	if !bytes.Equal(resultImage(t, r), renderer.Image) {
		t.Error("converted image differs")
	}
	projects, _ := m.ListProjects(ctx)
	if len(projects) != 1 || projects[0] != "p" {
		t.Errorf("projects after convert = %v, want only p", projects)
	}
}

func TestConvertUnsupportedFormat(t *testing.T) {
	srv, _, renderer := testServer(t)
	r := callTool(t, srv, "convert_document", map[string]interface{}{
		"content":       testutil.SampleRS3,
		"output_format": "editor",
	})
	if !r.IsError {
		t.Error("expected error for unsupported output format")
	}
	if renderer.CallCount() != 0 {
		t.Errorf("render calls = %d", renderer.CallCount())
	}
}

func TestContract(t *testing.T) {
	srv, _, _ := testServer(t)
	if text := resultText(callTool(t, srv, "get_rs3_contract", nil)); !strings.Contains(text, "<rst>") {
		t.Errorf("contract = %q", text)
	}

	contents, err := srv.readFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != formatURI {
		t.Errorf("resource = %+v", contents[0])
	}
}
