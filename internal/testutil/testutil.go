// Package testutil provides shared test helpers for stores, staging areas and renderers.
package testutil

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/arne-cl/rstWeb/internal/docstore"
	"github.com/arne-cl/rstWeb/internal/models"
	"github.com/arne-cl/rstWeb/internal/staging"
)

// SampleRS3 is a small valid rs3 document.
const SampleRS3 = `<rst>
	<header>
		<relations>
			<rel name="elaboration" type="rst"/>
		</relations>
	</header>
	<body>
		<segment id="1" parent="2" relname="elaboration">Trees are useful</segment>
		<segment id="2" parent="3" relname="span">when annotated.</segment>
		<group id="3" type="span"/>
	</body>
</rst>
`

// TestDB creates a temporary SQLite document store that is automatically cleaned up.
func TestDB(t *testing.T, opts ...docstore.Option) *docstore.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "rstweb-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := docstore.Open(dbFile.Name(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStaging creates a staging area inside a temporary directory.
func TestStaging(t *testing.T) *staging.Area {
	t.Helper()
	area, err := staging.NewArea(filepath.Join(t.TempDir(), "staging"))
	if err != nil {
		t.Fatal(err)
	}
	return area
}

// PNG returns a tiny valid PNG image whose pixel encodes seed.
func PNG(t *testing.T, seed uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	img.SetGray(0, 0, color.Gray{Y: seed})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// FakeRenderer returns Image for every call, or Err when set.
type FakeRenderer struct {
	mu    sync.Mutex
	Image []byte
	Err   error
	Calls []models.DocumentRef
}

// Render records the call and returns the configured result.
func (f *FakeRenderer) Render(_ context.Context, doc *models.Document) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, models.DocumentRef{Name: doc.Name, Project: doc.Project})
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Image, nil
}

// CallCount returns the number of Render calls so far.
func (f *FakeRenderer) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}
