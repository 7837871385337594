package image

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/distribution/reference"
	"github.com/klauspost/compress/gzip"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

const testToken = "pull-token"

// Builds a gzip-compressed single-file layer in memory.
func layerBlob(t *testing.T, name, content string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	hdr := &tar.Header{
		Name:     name,
		Typeflag: tar.TypeReg,
		Mode:     0644,
		Size:     int64(len(content)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}

	return buf.Bytes()
}

// Serves a token endpoint, a manifest, and blob downloads for one image.
func newTestRegistry(t *testing.T, manifest ocispec.Manifest, blobs map[digest.Digest][]byte) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/v2/auth", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": testToken})
	})

	mux.HandleFunc("/v2/pypa/test/manifests/latest", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(manifest)
	})

	mux.HandleFunc("/v2/pypa/test/blobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		dgst := digest.Digest(filepath.Base(r.URL.Path))
		blob, ok := blobs[dgst]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(blob)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()

	c := &Client{
		registry:   "registry.test",
		repository: "pypa/test",
		base:       srv.URL,
		http:       srv.Client(),
	}
	if err := c.authenticate(context.Background()); err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if c.token != testToken {
		t.Fatalf("token = %q, want %q", c.token, testToken)
	}
	return c
}

func layerDescriptor(blob []byte) ocispec.Descriptor {
	return ocispec.Descriptor{
		MediaType: "application/vnd.docker.image.rootfs.diff.tar.gzip",
		Digest:    digest.FromBytes(blob),
		Size:      int64(len(blob)),
	}
}

func TestPull(t *testing.T) {
	base := layerBlob(t, "etc/os-release", "ID=manylinux")
	upper := layerBlob(t, "opt/readme.txt", "hello")

	manifest := ocispec.Manifest{
		Layers: []ocispec.Descriptor{layerDescriptor(base), layerDescriptor(upper)},
	}
	blobs := map[digest.Digest][]byte{
		manifest.Layers[0].Digest: base,
		manifest.Layers[1].Digest: upper,
	}

	srv := newTestRegistry(t, manifest, blobs)
	c := testClient(t, srv)

	destination := filepath.Join(t.TempDir(), "image")
	if err := c.Pull(context.Background(), destination, "latest"); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}

	for path, want := range map[string]string{
		"etc/os-release": "ID=manylinux",
		"opt/readme.txt": "hello",
	} {
		content, err := os.ReadFile(filepath.Join(destination, path))
		if err != nil {
			t.Fatalf("missing %s: %v", path, err)
		}
		if string(content) != want {
			t.Fatalf("%s = %q, want %q", path, content, want)
		}
	}
}

func TestPullBadDigest(t *testing.T) {
	blob := layerBlob(t, "etc/os-release", "ID=manylinux")

	// Descriptor advertises a digest the blob does not hash to.
	tampered := layerDescriptor([]byte("different content"))
	manifest := ocispec.Manifest{Layers: []ocispec.Descriptor{tampered}}
	blobs := map[digest.Digest][]byte{tampered.Digest: blob}

	srv := newTestRegistry(t, manifest, blobs)
	c := testClient(t, srv)

	err := c.Pull(context.Background(), filepath.Join(t.TempDir(), "image"), "latest")
	if !errors.Is(err, ErrBadDigest) {
		t.Fatalf("err = %v, want ErrBadDigest", err)
	}
}

func TestPullMissingManifest(t *testing.T) {
	srv := newTestRegistry(t, ocispec.Manifest{}, nil)
	c := testClient(t, srv)

	err := c.Pull(context.Background(), filepath.Join(t.TempDir(), "image"), "missing")
	if !errors.Is(err, ErrDownload) {
		t.Fatalf("err = %v, want ErrDownload", err)
	}
}

func TestParseReference(t *testing.T) {
	tests := []struct {
		name       string
		image      string
		wantDomain string
		wantPath   string
		wantTag    string
	}{
		{
			name:       "bare name resolves under pypa",
			image:      "manylinux2014_x86_64",
			wantDomain: "quay.io",
			wantPath:   "pypa/manylinux2014_x86_64",
		},
		{
			name:       "bare name with tag",
			image:      "manylinux2014_x86_64:2024.08.12-1",
			wantDomain: "quay.io",
			wantPath:   "pypa/manylinux2014_x86_64",
			wantTag:    "2024.08.12-1",
		},
		{
			name:       "full reference",
			image:      "example.com/mirror/manylinux_2_28_aarch64",
			wantDomain: "example.com",
			wantPath:   "mirror/manylinux_2_28_aarch64",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			named, err := parseReference(tt.image)
			if err != nil {
				t.Fatalf("parseReference(%q) failed: %v", tt.image, err)
			}
			if got := reference.Domain(named); got != tt.wantDomain {
				t.Fatalf("domain = %q, want %q", got, tt.wantDomain)
			}
			if got := reference.Path(named); got != tt.wantPath {
				t.Fatalf("path = %q, want %q", got, tt.wantPath)
			}

			tag := ""
			if tagged, ok := named.(reference.Tagged); ok {
				tag = tagged.Tag()
			}
			if tag != tt.wantTag {
				t.Fatalf("tag = %q, want %q", tag, tt.wantTag)
			}
		})
	}
}

func TestParseReferenceInvalid(t *testing.T) {
	if _, err := parseReference("UPPER/Case:bad:ref"); err == nil {
		t.Fatal("parseReference succeeded on an invalid reference")
	}
}

func TestFetchLayerUnauthorized(t *testing.T) {
	blob := layerBlob(t, "etc/os-release", "ID=manylinux")
	manifest := ocispec.Manifest{Layers: []ocispec.Descriptor{layerDescriptor(blob)}}

	srv := newTestRegistry(t, manifest, map[digest.Digest][]byte{manifest.Layers[0].Digest: blob})
	c := testClient(t, srv)
	c.token = "wrong"

	_, err := c.fetchLayer(context.Background(), t.TempDir(), 0, manifest.Layers[0])
	if !errors.Is(err, ErrDownload) {
		t.Fatalf("err = %v, want ErrDownload", err)
	}
}
