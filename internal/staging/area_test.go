package staging

import (
	"os"
	"path/filepath"
	"testing"
)

func tempArea(t *testing.T) *Area {
	t.Helper()
	a, err := NewArea(filepath.Join(t.TempDir(), "staging"))
	if err != nil {
		t.Fatalf("NewArea: %v", err)
	}
	return a
}

func TestStageAndRelease(t *testing.T) {
	a := tempArea(t)
	content := []byte("<rst/>")
	f, err := a.Stage("doc.rs3", content)
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if filepath.Base(f.Path()) != "doc.rs3" {
		t.Errorf("path = %q, want base doc.rs3", f.Path())
	}
	got, err := os.ReadFile(f.Path())
	if err != nil {
		t.Fatalf("read staged: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content = %q", got)
	}

	if err := f.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(f.Path()); !os.IsNotExist(err) {
		t.Errorf("staged file still present after release: %v", err)
	}
	// Second release is a no-op.
	if err := f.Release(); err != nil {
		t.Errorf("second Release: %v", err)
	}
}

func TestStageSameNameTwice(t *testing.T) {
	a := tempArea(t)
	f1, err := a.Stage("same.rs3", []byte("one"))
	if err != nil {
		t.Fatal(err)
	}
	defer f1.Release()
	f2, err := a.Stage("same.rs3", []byte("two"))
	if err != nil {
		t.Fatal(err)
	}
	defer f2.Release()

	if f1.Path() == f2.Path() {
		t.Fatal("concurrent stages of the same name must not share a path")
	}
	got, _ := os.ReadFile(f1.Path())
	if string(got) != "one" {
		t.Errorf("first staged content overwritten: %q", got)
	}
}

func TestStageLeavesNoTempFiles(t *testing.T) {
	a := tempArea(t)
	f, err := a.Stage("x.rs3", []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Release()
	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(f.Path()), ".rstweb-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestStageRejectsTraversal(t *testing.T) {
	a := tempArea(t)
	for _, name := range []string{"", "../escape.rs3", "a/b.rs3", "/etc/passwd", ".."} {
		if _, err := a.Stage(name, []byte("x")); err == nil {
			t.Errorf("expected error for name %q", name)
		}
	}
	entries, _ := os.ReadDir(a.Root())
	if len(entries) != 0 {
		t.Errorf("rejected stages left %d entries behind", len(entries))
	}
}

func TestNewArea_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "rstweb-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	if _, err := NewArea(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestClose(t *testing.T) {
	a := tempArea(t)
	_, _ = a.Stage("y.rs3", []byte("y"))
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(a.Root()); !os.IsNotExist(err) {
		t.Error("staging root should be gone after Close")
	}
}
