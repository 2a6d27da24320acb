package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/oshokin/artifact-keeper/internal/domain/release"
	"github.com/oshokin/artifact-keeper/internal/fetcher"
	"github.com/oshokin/artifact-keeper/internal/logger"
)

// maxDocumentSize caps the metadata body read into memory.
const maxDocumentSize = 1 << 20

var (
	errBadHTTPStatus  = errors.New("unexpected http status")
	errMissingField   = errors.New("required field missing")
	errDocumentTooBig = errors.New("metadata document too large")
)

// Document is the wire format of the metadata endpoint.
// Pointers distinguish absent keys from empty strings.
type Document struct {
	Title       *string `json:"title"`
	Content     *string `json:"content"`
	VersionName *string `json:"versionName"`
	DownloadURL *string `json:"downloadUrl"`
	MD5Hash     *string `json:"md5Hash"`
}

// NewDocument builds a fully populated wire document from info.
func NewDocument(info release.UpdateInfo) Document {
	return Document{
		Title:       &info.Title,
		Content:     &info.Content,
		VersionName: &info.VersionName,
		DownloadURL: &info.DownloadURL,
		MD5Hash:     &info.DigestHex,
	}
}

// UpdateInfo converts the document, failing if any required key is absent.
func (d *Document) UpdateInfo() (release.UpdateInfo, error) {
	required := []struct {
		name  string
		value *string
	}{
		{"title", d.Title},
		{"content", d.Content},
		{"versionName", d.VersionName},
		{"downloadUrl", d.DownloadURL},
		{"md5Hash", d.MD5Hash},
	}

	for _, field := range required {
		if field.value == nil {
			return release.EmptyUpdateInfo, fmt.Errorf("%s: %w", field.name, errMissingField)
		}
	}

	return release.UpdateInfo{
		Title:       *d.Title,
		Content:     *d.Content,
		VersionName: *d.VersionName,
		DownloadURL: *d.DownloadURL,
		DigestHex:   *d.MD5Hash,
	}, nil
}

// Client queries a fixed metadata endpoint.
type Client struct {
	// httpClient is the shared process-wide client.
	httpClient fetcher.HTTPClient
	// endpoint is the metadata URL.
	endpoint string
}

// NewClient creates a metadata client for endpoint.
func NewClient(httpClient fetcher.HTTPClient, endpoint string) *Client {
	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
	}
}

// FetchLatest returns the advertised update or release.EmptyUpdateInfo.
func (c *Client) FetchLatest(ctx context.Context) release.UpdateInfo {
	info, err := c.fetch(ctx)
	if err != nil {
		logger.WarnKV(ctx, "No usable update metadata", "endpoint", c.endpoint, "error", err)

		return release.EmptyUpdateInfo
	}

	logger.DebugKV(ctx, "Fetched update metadata", "version", info.VersionName)

	return info
}

// fetch performs the request and parses the document.
func (c *Client) fetch(ctx context.Context) (release.UpdateInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, http.NoBody)
	if err != nil {
		return release.EmptyUpdateInfo, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(req)
	if err != nil {
		return release.EmptyUpdateInfo, fmt.Errorf("get metadata: %w", err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return release.EmptyUpdateInfo, fmt.Errorf("%s: %w", response.Status, errBadHTTPStatus)
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, maxDocumentSize+1))
	if err != nil {
		return release.EmptyUpdateInfo, fmt.Errorf("read metadata: %w", err)
	}

	if len(body) > maxDocumentSize {
		return release.EmptyUpdateInfo, errDocumentTooBig
	}

	var document Document
	if err = json.Unmarshal(body, &document); err != nil {
		return release.EmptyUpdateInfo, fmt.Errorf("decode metadata: %w", err)
	}

	return document.UpdateInfo()
}
