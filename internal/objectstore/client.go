package objectstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"aeromedia/internal/config"
)

const userAgent = "Aeromedia-Go/0.1.0"

// Signer issues download URLs for stored objects. Delivery depends on this
// narrow surface rather than the full client.
type Signer interface {
	SignURL(ctx context.Context, bucket, objectPath string) (string, error)
	PublicURL(bucket, objectPath string) string
}

// StatusError carries the HTTP status returned by the storage API so callers
// can distinguish fatal client errors from transient server ones.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("storage returned %d", e.StatusCode)
	}
	return fmt.Sprintf("storage returned %d: %s", e.StatusCode, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}

// StatusCode extracts the HTTP status from err, or 0 when err is not a
// storage status error.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// Client calls the object storage REST API.
type Client struct {
	baseURL    string
	serviceKey string
	signedTTL  time.Duration
	httpClient *http.Client
	urlCache   *gocache.Cache
}

var _ Signer = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a storage client from configuration.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.Storage.BaseURL)
	if baseURL == "" {
		return nil, errors.New("storage base url required")
	}
	serviceKey := strings.TrimSpace(cfg.Storage.ServiceKey)
	if serviceKey == "" {
		return nil, errors.New("storage service key required")
	}

	ttl := time.Duration(cfg.Storage.SignedURLTTL) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	// Cached URLs expire well before the signature does so a served link
	// never arrives already dead.
	cacheTTL := ttl / 2

	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		signedTTL:  ttl,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		urlCache:   gocache.New(cacheTTL, 10*time.Minute),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// SignURL returns a time-limited download URL for the object. Freshly signed
// URLs are cached for half their lifetime.
func (c *Client) SignURL(ctx context.Context, bucket, objectPath string) (string, error) {
	bucket = strings.TrimSpace(bucket)
	objectPath = strings.Trim(strings.TrimSpace(objectPath), "/")
	if bucket == "" || objectPath == "" {
		return "", errors.New("bucket and object path required")
	}

	cacheKey := bucket + "/" + objectPath
	if cached, found := c.urlCache.Get(cacheKey); found {
		return cached.(string), nil
	}

	payload, err := json.Marshal(map[string]int64{
		"expiresIn": int64(c.signedTTL.Seconds()),
	})
	if err != nil {
		return "", fmt.Errorf("encode sign request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/object/sign/%s/%s", c.baseURL, url.PathEscape(bucket), escapePath(objectPath))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build sign request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sign object url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp)
	}

	var result struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode sign response: %w", err)
	}
	if result.SignedURL == "" {
		return "", errors.New("storage returned empty signed url")
	}

	signed := c.baseURL + "/" + strings.TrimLeft(result.SignedURL, "/")
	c.urlCache.SetDefault(cacheKey, signed)
	return signed, nil
}

// PublicURL builds the unauthenticated URL for an object in a public bucket.
func (c *Client) PublicURL(bucket, objectPath string) string {
	objectPath = strings.Trim(strings.TrimSpace(objectPath), "/")
	return fmt.Sprintf("%s/object/public/%s/%s", c.baseURL, url.PathEscape(bucket), escapePath(objectPath))
}

// Remove deletes an object. Missing objects are not an error.
func (c *Client) Remove(ctx context.Context, bucket, objectPath string) error {
	endpoint := fmt.Sprintf("%s/object/%s/%s", c.baseURL, url.PathEscape(bucket), escapePath(objectPath))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if resp.StatusCode >= 300 {
		return statusError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// CreateResumableUpload opens a resumable upload session for the object and
// returns the session URL subsequent chunk requests target.
func (c *Client) CreateResumableUpload(ctx context.Context, bucket, objectPath string, totalSize int64, contentType string) (string, error) {
	bucket = strings.TrimSpace(bucket)
	objectPath = strings.Trim(strings.TrimSpace(objectPath), "/")
	if bucket == "" || objectPath == "" {
		return "", errors.New("bucket and object path required")
	}
	if totalSize <= 0 {
		return "", errors.New("upload size must be positive")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/resumable", nil)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Tus-Resumable", "1.0.0")
	req.Header.Set("Upload-Length", strconv.FormatInt(totalSize, 10))
	req.Header.Set("Upload-Metadata", uploadMetadata(bucket, objectPath, contentType))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create resumable upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", statusError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	location := resp.Header.Get("Location")
	if location == "" {
		return "", errors.New("storage returned no upload location")
	}
	if strings.HasPrefix(location, "/") {
		location = c.baseURL + location
	}
	return location, nil
}

// UploadOffset asks the storage API how many bytes of the session have been
// committed. Resumed uploads continue from this offset.
func (c *Client) UploadOffset(ctx context.Context, uploadURL string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, uploadURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build offset request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Tus-Resumable", "1.0.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("query upload offset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return 0, statusError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	offset, err := strconv.ParseInt(resp.Header.Get("Upload-Offset"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse upload offset: %w", err)
	}
	return offset, nil
}

// AppendChunk writes one chunk at the given offset and returns the new
// committed offset.
func (c *Client) AppendChunk(ctx context.Context, uploadURL string, offset int64, chunk []byte) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, uploadURL, bytes.NewReader(chunk))
	if err != nil {
		return 0, fmt.Errorf("build chunk request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Tus-Resumable", "1.0.0")
	req.Header.Set("Upload-Offset", strconv.FormatInt(offset, 10))
	req.Header.Set("Content-Type", "application/offset+octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("upload chunk: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return 0, statusError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	next, err := strconv.ParseInt(resp.Header.Get("Upload-Offset"), 10, 64)
	if err != nil {
		// Some backends omit the header on the final chunk.
		return offset + int64(len(chunk)), nil
	}
	return next, nil
}

// AbortUpload tears down an in-flight upload session.
func (c *Client) AbortUpload(ctx context.Context, uploadURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, uploadURL, nil)
	if err != nil {
		return fmt.Errorf("build abort request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Tus-Resumable", "1.0.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("abort upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return statusError(resp)
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &StatusError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

func escapePath(objectPath string) string {
	parts := strings.Split(objectPath, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func uploadMetadata(bucket, objectPath, contentType string) string {
	pairs := []string{
		metadataPair("bucketName", bucket),
		metadataPair("objectName", objectPath),
	}
	if contentType != "" {
		pairs = append(pairs, metadataPair("contentType", contentType))
	}
	return strings.Join(pairs, ",")
}

func metadataPair(key, value string) string {
	return key + " " + base64.StdEncoding.EncodeToString([]byte(value))
}
