package extract

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	_ "embed"
)

// Default exclusion list shipped with the extractor.
//
//go:embed share/excludelist
var defaultExcludeList []byte

// Loads the shared-library exclusion list.
//
// When path is empty the embedded default list is used; otherwise the file
// at path is read in the same format.
func loadExcludes(path string) ([]string, error) {
	if path == "" {
		return parseExcludes(bytes.NewReader(defaultExcludeList))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidExcludeList, "%v", err)
	}
	defer f.Close()

	return parseExcludes(f)
}

// Parses an exclusion list: one library name per line, blank lines and
// "#" comments ignored.
func parseExcludes(r io.Reader) ([]string, error) {
	var excluded []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		excluded = append(excluded, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(ErrInvalidExcludeList, "%v", err)
	}

	return excluded, nil
}
