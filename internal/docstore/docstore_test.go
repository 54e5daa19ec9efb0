package docstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arne-cl/rstWeb/internal/apperr"
)

const sampleRS3 = `<rst><header><relations><rel name="elaboration" type="rst"/></relations></header>
<body><segment id="1" parent="2" relname="elaboration">a</segment><segment id="2">b</segment></body></rst>`

func testDB(t *testing.T) (*DB, *clock.Mock) {
	t.Helper()
	f, err := os.CreateTemp("", "rstweb-test-*.db")
	require.NoError(t, err)
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	mock := clock.NewMock()
	mock.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	db, err := Open(f.Name(), WithClock(mock))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func stageFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestSchemaCreation(t *testing.T) {
	db, _ := testDB(t)
	var count int
	require.NoError(t, db.conn.QueryRow(`SELECT count(*) FROM projects`).Scan(&count))
	require.NoError(t, db.conn.QueryRow(`SELECT count(*) FROM docs`).Scan(&count))
}

func TestReopenKeepsData(t *testing.T) {
	f, err := os.CreateTemp("", "rstweb-reopen-*.db")
	require.NoError(t, err)
	f.Close()
	defer os.Remove(f.Name())

	db, err := Open(f.Name())
	require.NoError(t, err)
	require.NoError(t, db.CreateProject(context.Background(), "kept"))
	require.NoError(t, db.Close())

	db, err = Open(f.Name())
	require.NoError(t, err)
	defer db.Close()
	projects, err := db.ListProjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, projects)
}

func TestCreateProjectIdempotent(t *testing.T) {
	db, _ := testDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreateProject(ctx, "p"))
	require.NoError(t, db.CreateProject(ctx, "p"))

	projects, err := db.ListProjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p"}, projects)
}

func TestCreateProjectEmptyName(t *testing.T) {
	db, _ := testDB(t)
	err := db.CreateProject(context.Background(), "")
	assert.ErrorIs(t, err, apperr.ErrInvalidName)
}

func TestListProjectsEmptyIsNotNil(t *testing.T) {
	db, _ := testDB(t)
	projects, err := db.ListProjects(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, projects)
	assert.Empty(t, projects)
}

func TestImportAndRead(t *testing.T) {
	db, mock := testDB(t)
	ctx := context.Background()

	require.NoError(t, db.ImportDocument(ctx, stageFile(t, "a.rs3", sampleRS3), "p", "local"))

	projects, err := db.ListProjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p"}, projects, "import creates the project")

	doc, err := db.Read(ctx, "local", "p", "a.rs3")
	require.NoError(t, err)
	assert.Equal(t, sampleRS3, string(doc.Content))
	assert.Equal(t, 2, doc.Segments)
	assert.Equal(t, 1, doc.Relations)
	assert.Len(t, doc.Checksum, 64)
	assert.True(t, doc.UpdatedAt.Equal(mock.Now()), "updated_at = %v", doc.UpdatedAt)
}

func TestImportOverwrites(t *testing.T) {
	db, mock := testDB(t)
	ctx := context.Background()

	require.NoError(t, db.ImportDocument(ctx, stageFile(t, "a.rs3", sampleRS3), "p", "local"))
	first, err := db.Read(ctx, "local", "p", "a.rs3")
	require.NoError(t, err)

	mock.Add(time.Hour)
	updated := `<rst><body><segment id="1">only</segment></body></rst>`
	require.NoError(t, db.ImportDocument(ctx, stageFile(t, "a.rs3", updated), "p", "local"))

	second, err := db.Read(ctx, "local", "p", "a.rs3")
	require.NoError(t, err)
	assert.Equal(t, updated, string(second.Content))
	assert.NotEqual(t, first.Checksum, second.Checksum)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))

	names, err := db.Query(ctx, "local", "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.rs3"}, names)
}

func TestImportRejectsInvalid(t *testing.T) {
	db, _ := testDB(t)
	ctx := context.Background()
	err := db.ImportDocument(ctx, stageFile(t, "bad.rs3", "not xml"), "p", "local")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInvalidDocument)

	projects, _ := db.ListProjects(ctx)
	assert.Empty(t, projects, "rejected import must not create the project")
}

func TestImportMissingFile(t *testing.T) {
	db, _ := testDB(t)
	err := db.ImportDocument(context.Background(), filepath.Join(t.TempDir(), "nope.rs3"), "p", "local")
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestDeleteProjectCascades(t *testing.T) {
	db, _ := testDB(t)
	ctx := context.Background()
	require.NoError(t, db.ImportDocument(ctx, stageFile(t, "a.rs3", sampleRS3), "p", "local"))
	require.NoError(t, db.DeleteProject(ctx, "p"))

	_, err := db.Read(ctx, "local", "p", "a.rs3")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	refs, err := db.QueryAll(ctx, "local")
	require.NoError(t, err)
	assert.Empty(t, refs)

	// Deleting again is a no-op.
	require.NoError(t, db.DeleteProject(ctx, "p"))
}

func TestDeleteDocument(t *testing.T) {
	db, _ := testDB(t)
	ctx := context.Background()
	require.NoError(t, db.ImportDocument(ctx, stageFile(t, "a.rs3", sampleRS3), "p", "local"))
	require.NoError(t, db.DeleteDocument(ctx, "local", "p", "a.rs3"))

	names, err := db.Query(ctx, "local", "p")
	require.NoError(t, err)
	assert.Empty(t, names)

	projects, _ := db.ListProjects(ctx)
	assert.Equal(t, []string{"p"}, projects, "project outlives its last document")
}

func TestQueryIsolatesUsers(t *testing.T) {
	db, _ := testDB(t)
	ctx := context.Background()
	require.NoError(t, db.ImportDocument(ctx, stageFile(t, "a.rs3", sampleRS3), "p", "local"))
	require.NoError(t, db.ImportDocument(ctx, stageFile(t, "b.rs3", sampleRS3), "p", "other"))

	names, err := db.Query(ctx, "local", "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.rs3"}, names)
}

func TestQueryAll(t *testing.T) {
	db, _ := testDB(t)
	ctx := context.Background()
	require.NoError(t, db.ImportDocument(ctx, stageFile(t, "b.rs3", sampleRS3), "p2", "local"))
	require.NoError(t, db.ImportDocument(ctx, stageFile(t, "a.rs3", sampleRS3), "p1", "local"))
	require.NoError(t, db.ImportDocument(ctx, stageFile(t, "c.rs3", sampleRS3), "p1", "local"))

	refs, err := db.QueryAll(ctx, "local")
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, "p1", refs[0].Project)
	assert.Equal(t, "a.rs3", refs[0].Name)
	assert.Equal(t, "p2", refs[2].Project)
}
