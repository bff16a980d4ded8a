package files_sdk

import (
	"fmt"
	"os"
	"strings"

	"github.com/sitekit/files_sdk_go/internal/devseed"
	"github.com/sitekit/files_sdk_go/pkg/files"
	filesmock "github.com/sitekit/files_sdk_go/pkg/files/mock"
)

// Environment variables read by NewFromEnv.
const (
	EnvMode     = "FILES_RUNTIME_MODE"
	EnvAPIURL   = "FILES_API_URL"
	EnvMockSeed = "FILES_MOCK_SEED"
)

// Runtime modes. ModeAuto picks ModeHTTP when an API URL is set and ModeMock
// otherwise.
const (
	ModeAuto = "auto"
	ModeHTTP = "http"
	ModeMock = "mock"
)

// NewFromEnv initialises a files.Client from the environment. It returns the
// resolved mode ("http" or "mock"). An unset mode behaves like "auto".
func NewFromEnv(opts ...files.Option) (*files.Client, string, error) {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv(EnvMode)))
	apiURL := strings.TrimSpace(os.Getenv(EnvAPIURL))
	seed := strings.TrimSpace(os.Getenv(EnvMockSeed))
	return New(mode, apiURL, seed, opts...)
}

// New resolves mode the same way NewFromEnv does, with explicit values
// instead of environment variables.
func New(mode, apiURL, seedPath string, opts ...files.Option) (*files.Client, string, error) {
	switch mode {
	case "", ModeAuto:
		if apiURL != "" {
			return newHTTPClient(apiURL, opts)
		}
		return newMockClient(seedPath, opts)
	case ModeHTTP:
		if apiURL == "" {
			return nil, "", fmt.Errorf("files_sdk: HTTP mode requires %s", EnvAPIURL)
		}
		return newHTTPClient(apiURL, opts)
	case ModeMock:
		return newMockClient(seedPath, opts)
	default:
		return nil, "", fmt.Errorf("files_sdk: unsupported %s value %q", EnvMode, mode)
	}
}

func newHTTPClient(apiURL string, opts []files.Option) (*files.Client, string, error) {
	c, err := files.New(apiURL, opts...)
	if err != nil {
		return nil, "", fmt.Errorf("files_sdk: init HTTP client: %w", err)
	}
	return c, ModeHTTP, nil
}

func newMockClient(seedPath string, opts []files.Option) (*files.Client, string, error) {
	store, err := NewSeededMock(seedPath)
	if err != nil {
		return nil, "", err
	}
	return files.NewWithBackend(store, opts...), ModeMock, nil
}

// NewSeededMock returns an in-memory store, seeded from seedPath when it is
// not empty.
func NewSeededMock(seedPath string) (*filesmock.Mock, error) {
	store := filesmock.New()
	if seedPath == "" {
		return store, nil
	}
	entries, err := devseed.LoadFileSeed(seedPath)
	if err != nil {
		return nil, fmt.Errorf("files_sdk: load seed: %w", err)
	}
	if err := store.Seed(entries); err != nil {
		return nil, fmt.Errorf("files_sdk: apply seed: %w", err)
	}
	return store, nil
}
