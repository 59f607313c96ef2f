package crates

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
)

// ErrNotFound reports that the dependency store has no entry for a name.
var ErrNotFound = errors.New("crate not found")

// Store is the read-only external resource holding crate bodies. Both
// fetches are independent and keyed by crate name.
type Store interface {
	Source(ctx context.Context, name string) (string, error)
	Manifest(ctx context.Context, name string) (string, error)
}

// HTTPStore fetches crates from a static host using the conventional
// /crate/<name>.rs and /crate/<name>.toml path scheme.
type HTTPStore struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPStore builds a store over a pooled HTTP client.
func NewHTTPStore(baseURL string) *HTTPStore {
	return &HTTPStore{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  cleanhttp.DefaultPooledClient(),
	}
}

func (s *HTTPStore) Source(ctx context.Context, name string) (string, error) {
	return s.fetch(ctx, name, ".rs")
}

func (s *HTTPStore) Manifest(ctx context.Context, name string) (string, error) {
	return s.fetch(ctx, name, ".toml")
}

func (s *HTTPStore) fetch(ctx context.Context, name, ext string) (string, error) {
	target := s.BaseURL + "/crate/" + url.PathEscape(name) + ext
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	client := s.Client
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%s%s: %w", name, ext, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status %s", target, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// DirStore serves crates from a local directory laid out as <dir>/<name>.rs
// and <dir>/<name>.toml.
type DirStore struct {
	Dir string
}

func (s DirStore) Source(ctx context.Context, name string) (string, error) {
	return s.read(name + ".rs")
}

func (s DirStore) Manifest(ctx context.Context, name string) (string, error) {
	return s.read(name + ".toml")
}

func (s DirStore) read(file string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, file))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", file, ErrNotFound)
		}
		return "", err
	}
	return string(data), nil
}
