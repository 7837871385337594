package image

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/distribution/reference"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const (

	// Registry and namespace where the manylinux images are published.
	defaultRegistry  = "quay.io"
	defaultNamespace = "pypa"

	// Tag pulled when neither the reference nor the caller names one.
	defaultTag = "latest"
)

// Manifest media types accepted from the registry.
var acceptedManifestTypes = strings.Join([]string{
	"application/vnd.docker.distribution.manifest.v2+json",
	ocispec.MediaTypeImageManifest,
}, ", ")

// Pulls image layers from a registry repository.
type Client struct {
	registry   string       // Registry host (e.g. "quay.io").
	repository string       // Repository path (e.g. "pypa/manylinux2014_x86_64").
	tag        string       // Tag from the parsed reference, empty when untagged.
	base       string       // Base URL of the registry API.
	token      string       // Pull-scoped bearer token.
	http       *http.Client // HTTP client for all registry requests.
}

// Creates a client for the given image and obtains a pull-scoped token
// from the registry's token endpoint.
//
// Bare names (no "/") resolve under quay.io/pypa; anything else is parsed
// as a full reference, optionally carrying a tag.
func NewClient(ctx context.Context, image string) (*Client, error) {
	named, err := parseReference(image)
	if err != nil {
		return nil, err
	}

	c := &Client{
		registry:   reference.Domain(named),
		repository: reference.Path(named),
		base:       "https://" + reference.Domain(named),
		http:       &http.Client{},
	}
	if tagged, ok := named.(reference.Tagged); ok {
		c.tag = tagged.Tag()
	}

	if err := c.authenticate(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

// Parses an image name into a normalized reference, defaulting bare names
// into the manylinux publishing namespace.
func parseReference(image string) (reference.Named, error) {
	if !strings.Contains(image, "/") {
		image = defaultRegistry + "/" + defaultNamespace + "/" + image
	}

	named, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		return nil, errors.Wrapf(ErrDownload, "invalid image reference %q: %v", image, err)
	}
	return named, nil
}

// Obtains a bearer token with pull scope for the repository.
func (c *Client) authenticate(ctx context.Context) error {
	url := fmt.Sprintf("%s/v2/auth?service=%s&scope=repository:%s:pull", c.base, c.registry, c.repository)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrapf(ErrDownload, "%v", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(ErrDownload, "%v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(ErrDownload, "authentication: %s", resp.Status)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return errors.Wrapf(ErrDownload, "decoding token: %v", err)
	}

	c.token = payload.Token
	return nil
}

// Fetches the image manifest for a tag.
func (c *Client) manifest(ctx context.Context, tag string) (ocispec.Manifest, error) {
	url := fmt.Sprintf("%s/v2/%s/manifests/%s", c.base, c.repository, tag)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ocispec.Manifest{}, errors.Wrapf(ErrDownload, "%v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", acceptedManifestTypes)

	resp, err := c.http.Do(req)
	if err != nil {
		return ocispec.Manifest{}, errors.Wrapf(ErrDownload, "%v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ocispec.Manifest{}, errors.Wrapf(ErrDownload, "manifest %s: %s", tag, resp.Status)
	}

	var manifest ocispec.Manifest
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		return ocispec.Manifest{}, errors.Wrapf(ErrDownload, "decoding manifest: %v", err)
	}

	return manifest, nil
}

// Downloads the image and unpacks its layers into destination.
//
// Layer downloads and layer application run as a two-stage pipeline:
// while a verified layer is applied to the destination, the next blob is
// already streaming. Layers are applied strictly in manifest order. An
// empty tag falls back to the reference's tag, then to "latest".
func (c *Client) Pull(ctx context.Context, destination, tag string) error {
	if tag == "" {
		tag = c.tag
	}
	if tag == "" {
		tag = defaultTag
	}

	manifest, err := c.manifest(ctx, tag)
	if err != nil {
		return err
	}

	slog.Info("pulling image",
		"repository", c.repository,
		"tag", tag,
		"layers", len(manifest.Layers),
	)

	workdir, err := os.MkdirTemp("", "rcpr-layers-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(workdir)

	fetched := make(chan string, len(manifest.Layers))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(fetched)
		for i, layer := range manifest.Layers {
			path, err := c.fetchLayer(ctx, workdir, i, layer)
			if err != nil {
				return err
			}
			select {
			case fetched <- path:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	g.Go(func() error {
		for path := range fetched {
			if err := applyLayer(path, destination); err != nil {
				return err
			}
			os.Remove(path)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("image pulled", "destination", destination)
	return nil
}

// Streams one layer blob to a file in workdir, verifying its digest.
func (c *Client) fetchLayer(ctx context.Context, workdir string, index int, desc ocispec.Descriptor) (string, error) {
	url := fmt.Sprintf("%s/v2/%s/blobs/%s", c.base, c.repository, desc.Digest)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrapf(ErrDownload, "%v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrapf(ErrDownload, "%v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Wrapf(ErrDownload, "layer %s: %s", desc.Digest, resp.Status)
	}

	slog.Debug("fetching layer", "index", index, "digest", desc.Digest)

	path := filepath.Join(workdir, fmt.Sprintf("layer-%d.tar.gz", index))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	digester := desc.Digest.Algorithm().Digester()
	if _, err := io.Copy(io.MultiWriter(f, digester.Hash()), resp.Body); err != nil {
		f.Close()
		return "", errors.Wrapf(ErrDownload, "layer %s: %v", desc.Digest, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	if actual := digester.Digest(); actual != desc.Digest {
		return "", errors.Wrapf(ErrBadDigest, "layer %d: expected %s, got %s", index, desc.Digest, actual)
	}

	return path, nil
}
