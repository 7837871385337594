package extract

import (
	"slices"
	"strings"
	"testing"
)

func TestParseExcludes(t *testing.T) {
	input := strings.NewReader(`
# glibc
libc.so.6

  libm.so.6
# trailing comment line
`)

	excluded, err := parseExcludes(input)
	if err != nil {
		t.Fatalf("parseExcludes failed: %v", err)
	}

	want := []string{"libc.so.6", "libm.so.6"}
	if !slices.Equal(excluded, want) {
		t.Fatalf("excluded = %v, want %v", excluded, want)
	}
}

func TestDefaultExcludeList(t *testing.T) {
	excluded, err := loadExcludes("")
	if err != nil {
		t.Fatalf("loadExcludes failed: %v", err)
	}

	for _, name := range []string{"libc.so.6", "linux-vdso.so.1", "libpthread.so.0"} {
		if !slices.Contains(excluded, name) {
			t.Fatalf("default exclude list missing %q", name)
		}
	}
}

func TestLoadExcludesMissingFile(t *testing.T) {
	if _, err := loadExcludes("/nonexistent/excludelist"); err == nil {
		t.Fatal("loadExcludes succeeded on a missing file")
	}
}
