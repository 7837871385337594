package dynlib

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// Serves NEEDED entries from a fixed graph keyed by path.
type fakeReader struct {
	graph map[string][]string
}

func (r fakeReader) Needed(path string) ([]string, error) {
	needed, ok := r.graph[path]
	if !ok {
		return nil, ErrMetadataRead
	}
	return needed, nil
}

// Creates library files in a temp directory and returns a resolver whose
// reader serves the given graph. Graph keys are the library base names;
// the entry-point key "app" is kept as-is.
func newFakeResolver(t *testing.T, graph map[string][]string, excluded []string) (*Resolver, string) {
	t.Helper()
	libdir := t.TempDir()

	resolved := make(map[string][]string, len(graph))
	for name, needed := range graph {
		if name == "app" {
			resolved[name] = needed
			continue
		}
		path := filepath.Join(libdir, name)
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		resolved[path] = needed
	}

	r := NewResolver([]string{libdir}, excluded)
	r.reader = fakeReader{graph: resolved}
	return r, libdir
}

func TestResolveTransitiveClosure(t *testing.T) {
	r, libdir := newFakeResolver(t, map[string][]string{
		"app":        {"liba.so", "libb.so"},
		"liba.so":    {"libdeep.so"},
		"libb.so":    {"libdeep.so"},
		"libdeep.so": {},
	}, nil)

	closure := Closure{}
	if err := r.Resolve("app", closure); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	want := Closure{
		"liba.so":    filepath.Join(libdir, "liba.so"),
		"libb.so":    filepath.Join(libdir, "libb.so"),
		"libdeep.so": filepath.Join(libdir, "libdeep.so"),
	}
	if diff := cmp.Diff(want, closure); diff != "" {
		t.Fatalf("closure mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveTerminatesOnCycle(t *testing.T) {
	r, _ := newFakeResolver(t, map[string][]string{
		"app":     {"liba.so"},
		"liba.so": {"libb.so"},
		"libb.so": {"liba.so"},
	}, nil)

	closure := Closure{}
	if err := r.Resolve("app", closure); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if len(closure) != 2 {
		t.Fatalf("len(closure) = %d, want 2 (each cycle member exactly once)", len(closure))
	}
	for _, name := range []string{"liba.so", "libb.so"} {
		if _, ok := closure[name]; !ok {
			t.Fatalf("closure missing %q", name)
		}
	}
}

func TestResolveSkipsExcluded(t *testing.T) {
	r, _ := newFakeResolver(t, map[string][]string{
		"app":     {"libc.so.6", "liba.so"},
		"liba.so": {"libc.so.6"},
	}, []string{"libc.so.6"})

	closure := Closure{}
	if err := r.Resolve("app", closure); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if _, ok := closure["libc.so.6"]; ok {
		t.Fatal("excluded library entered the closure")
	}
	if len(closure) != 1 {
		t.Fatalf("len(closure) = %d, want 1", len(closure))
	}
}

func TestResolveAccumulatesAcrossEntryPoints(t *testing.T) {
	libdir := t.TempDir()
	for _, name := range []string{"liba.so", "libb.so"} {
		if err := os.WriteFile(filepath.Join(libdir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	r := NewResolver([]string{libdir}, nil)
	r.reader = fakeReader{graph: map[string][]string{
		"app1":                           {"liba.so"},
		"app2":                           {"liba.so", "libb.so"},
		filepath.Join(libdir, "liba.so"): {},
		filepath.Join(libdir, "libb.so"): {},
	}}

	closure := Closure{}
	if err := r.Resolve("app1", closure); err != nil {
		t.Fatalf("Resolve(app1) failed: %v", err)
	}
	if err := r.Resolve("app2", closure); err != nil {
		t.Fatalf("Resolve(app2) failed: %v", err)
	}

	if len(closure) != 2 {
		t.Fatalf("len(closure) = %d, want 2", len(closure))
	}
}

func TestResolveMissingLibraryAborts(t *testing.T) {
	r, _ := newFakeResolver(t, map[string][]string{
		"app": {"libmissing.so"},
	}, nil)

	err := r.Resolve("app", Closure{})
	if !errors.Is(err, ErrLibraryNotFound) {
		t.Fatalf("err = %v, want ErrLibraryNotFound", err)
	}
}

func TestNeededNonELF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-an-elf")
	if err := os.WriteFile(path, []byte("plain text"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := elfReader{}.Needed(path)
	if !errors.Is(err, ErrMetadataRead) {
		t.Fatalf("err = %v, want ErrMetadataRead", err)
	}
}
