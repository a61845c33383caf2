package uploader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"aeromedia/internal/logging"
	"aeromedia/internal/metrics"
	"aeromedia/internal/objectstore"
)

// ChunkSize is the number of bytes sent per chunk request.
const ChunkSize = 6 * 1024 * 1024

// maxAttempts bounds how many times a single chunk is tried by default.
const maxAttempts = 5

// retryDelays holds the wait before each attempt. The first attempt is
// immediate.
var retryDelays = [maxAttempts]time.Duration{
	0,
	3 * time.Second,
	5 * time.Second,
	10 * time.Second,
	20 * time.Second,
}

// ErrStorageLimit reports that the destination rejected the file for
// exceeding its storage quota.
var ErrStorageLimit = errors.New("file exceeds storage limit")

// ErrSuperseded reports that a newer upload for the same destination
// replaced this one.
var ErrSuperseded = errors.New("upload superseded by a newer request")

// ErrAborted reports that the coordinator shut the upload down.
var ErrAborted = errors.New("upload aborted")

// Storage is the slice of the object storage API the coordinator drives.
type Storage interface {
	CreateResumableUpload(ctx context.Context, bucket, objectPath string, totalSize int64, contentType string) (string, error)
	UploadOffset(ctx context.Context, uploadURL string) (int64, error)
	AppendChunk(ctx context.Context, uploadURL string, offset int64, chunk []byte) (int64, error)
	AbortUpload(ctx context.Context, uploadURL string) error
}

// Progress reports upload advancement after each committed chunk.
type Progress struct {
	Bucket     string
	ObjectPath string
	BytesSent  int64
	TotalBytes int64
}

// Options tunes a single upload.
type Options struct {
	// ContentType overrides sniffing the type from the file header.
	ContentType string
	// OnProgress, when set, is called after every committed chunk.
	OnProgress func(Progress)
}

// Result describes a completed upload.
type Result struct {
	Bucket      string
	ObjectPath  string
	Size        int64
	ContentType string
	Resumed     bool
}

type resumeState struct {
	uploadURL   string
	fingerprint string
}

type activeUpload struct {
	cancel     context.CancelFunc
	done       chan struct{}
	superseded bool
}

// Coordinator owns the registry of in-flight uploads. Create one per
// process; uploads started through different coordinators do not see each
// other.
type Coordinator struct {
	storage Storage
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	active map[string]*activeUpload
	resume map[string]resumeState

	chunkSize int64
	attempts  int
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMetrics attaches a metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithChunkSize overrides the chunk size. Tests use small chunks to exercise
// multi-chunk uploads without large fixtures.
func WithChunkSize(size int64) Option {
	return func(c *Coordinator) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithMaxAttempts caps how many times a chunk is tried. The cap is clamped
// to the retry delay schedule, so values above five have no effect.
func WithMaxAttempts(attempts int) Option {
	return func(c *Coordinator) {
		if attempts > 0 {
			c.attempts = min(attempts, maxAttempts)
		}
	}
}

// WithSleep overrides the retry delay function for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Coordinator) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// New creates an upload coordinator.
func New(storage Storage, logger *slog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Coordinator{
		storage:   storage,
		logger:    logger.With(logging.String(logging.FieldComponent, "uploader")),
		active:    make(map[string]*activeUpload),
		resume:    make(map[string]resumeState),
		chunkSize: ChunkSize,
		attempts:  maxAttempts,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload sends the file at filePath to bucket/objectPath. A second Upload
// for the same destination cancels the first and takes its place. When an
// earlier attempt for the same unchanged file was interrupted, the upload
// resumes from the committed offset instead of starting over.
func (c *Coordinator) Upload(ctx context.Context, bucket, objectPath, filePath string, opts Options) (*Result, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat source file: %w", err)
	}
	if info.Size() == 0 {
		return nil, errors.New("source file is empty")
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType, err = sniffContentType(file)
		if err != nil {
			return nil, err
		}
	}

	key := bucket + "/" + objectPath
	uploadCtx, handle, err := c.register(ctx, key)
	if err != nil {
		return nil, err
	}
	defer c.unregister(key, handle)

	fingerprint := fingerprintFile(filePath, info.Size(), info.ModTime())
	result, err := c.run(uploadCtx, file, info.Size(), bucket, objectPath, key, fingerprint, contentType, opts)
	if err != nil && errors.Is(uploadCtx.Err(), context.Canceled) && ctx.Err() == nil {
		c.mu.Lock()
		superseded := handle.superseded
		c.mu.Unlock()
		if superseded {
			return nil, ErrSuperseded
		}
		return nil, ErrAborted
	}
	return result, err
}

func (c *Coordinator) run(ctx context.Context, file *os.File, size int64, bucket, objectPath, key, fingerprint, contentType string, opts Options) (*Result, error) {
	uploadURL, offset, resumed := c.resumeOffset(ctx, key, fingerprint)
	if uploadURL == "" {
		created, err := c.createSession(ctx, bucket, objectPath, size, contentType)
		if err != nil {
			return nil, err
		}
		uploadURL = created
		offset = 0
		c.storeResume(key, resumeState{uploadURL: uploadURL, fingerprint: fingerprint})
	}

	c.logger.Info("upload started",
		logging.String("object", key),
		logging.Int64("size", size),
		logging.Int64("offset", offset),
		logging.Bool("resumed", resumed))

	buf := make([]byte, c.chunkSize)
	for offset < size {
		n, err := readChunkAt(file, buf, offset, size)
		if err != nil {
			return nil, fmt.Errorf("read source chunk: %w", err)
		}

		next, err := c.sendChunk(ctx, uploadURL, offset, buf[:n])
		if err != nil {
			// The session survives for a later resume unless the
			// failure was fatal on the storage side.
			if !errors.Is(err, context.Canceled) && isFatal(err) {
				c.clearResume(key)
				c.abortSession(uploadURL)
			}
			return nil, err
		}
		offset = next

		if opts.OnProgress != nil {
			opts.OnProgress(Progress{
				Bucket:     bucket,
				ObjectPath: objectPath,
				BytesSent:  offset,
				TotalBytes: size,
			})
		}
	}

	c.clearResume(key)
	c.metrics.UploadCompleted()
	c.logger.Info("upload completed", logging.String("object", key), logging.Int64("size", size))

	return &Result{
		Bucket:      bucket,
		ObjectPath:  objectPath,
		Size:        size,
		ContentType: contentType,
		Resumed:     resumed,
	}, nil
}

// sendChunk tries one chunk up to the configured attempt cap. Client errors
// are fatal, with 409 treated as a retryable offset conflict.
func (c *Coordinator) sendChunk(ctx context.Context, uploadURL string, offset int64, chunk []byte) (int64, error) {
	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if delay := retryDelays[attempt]; delay > 0 {
			c.metrics.UploadRetried()
			c.logger.Warn("retrying chunk",
				logging.Int64("offset", offset),
				logging.Int("attempt", attempt+1),
				logging.Duration("delay", delay),
				logging.Error(lastErr))
			if err := c.sleep(ctx, delay); err != nil {
				return 0, err
			}
		}

		next, err := c.storage.AppendChunk(ctx, uploadURL, offset, chunk)
		if err == nil {
			return next, nil
		}
		lastErr = err

		if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, ctx.Err()
		}
		if fatal, mapped := classify(err); fatal {
			return 0, mapped
		}

		// A 409 means our offset view is stale. Re-query before the
		// next attempt so the retry lands on the committed offset.
		if code := storageStatus(err); code == http.StatusConflict {
			if committed, offsetErr := c.storage.UploadOffset(ctx, uploadURL); offsetErr == nil {
				offset = committed
			}
		}
	}
	return 0, fmt.Errorf("chunk at offset %d failed after %d attempts: %w", offset, c.attempts, lastErr)
}

func (c *Coordinator) createSession(ctx context.Context, bucket, objectPath string, size int64, contentType string) (string, error) {
	uploadURL, err := c.storage.CreateResumableUpload(ctx, bucket, objectPath, size, contentType)
	if err != nil {
		if fatal, mapped := classify(err); fatal {
			return "", mapped
		}
		return "", fmt.Errorf("create upload session: %w", err)
	}
	return uploadURL, nil
}

// resumeOffset checks for a prior interrupted session for the same unchanged
// file and returns its committed offset. Fingerprint mismatches and dead
// sessions fall back to a fresh upload.
func (c *Coordinator) resumeOffset(ctx context.Context, key, fingerprint string) (string, int64, bool) {
	c.mu.Lock()
	state, ok := c.resume[key]
	c.mu.Unlock()
	if !ok || state.fingerprint != fingerprint {
		return "", 0, false
	}

	offset, err := c.storage.UploadOffset(ctx, state.uploadURL)
	if err != nil {
		c.logger.Debug("stale upload session", logging.String("object", key), logging.Error(err))
		c.clearResume(key)
		return "", 0, false
	}
	return state.uploadURL, offset, offset > 0
}

// register claims the destination key, cancelling and waiting out any
// in-flight upload for the same key.
func (c *Coordinator) register(ctx context.Context, key string) (context.Context, *activeUpload, error) {
	for {
		c.mu.Lock()
		existing, ok := c.active[key]
		if !ok {
			uploadCtx, cancel := context.WithCancel(ctx)
			handle := &activeUpload{cancel: cancel, done: make(chan struct{})}
			c.active[key] = handle
			c.mu.Unlock()
			return uploadCtx, handle, nil
		}
		existing.superseded = true
		c.mu.Unlock()

		existing.cancel()
		select {
		case <-existing.done:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
}

func (c *Coordinator) unregister(key string, handle *activeUpload) {
	c.mu.Lock()
	if c.active[key] == handle {
		delete(c.active, key)
	}
	c.mu.Unlock()
	handle.cancel()
	close(handle.done)
}

// Detach drops any resume state for the destination without touching an
// in-flight upload. The next Upload for the key starts from scratch.
func (c *Coordinator) Detach(bucket, objectPath string) {
	c.clearResume(bucket + "/" + objectPath)
}

// AbortAll cancels every in-flight upload and waits for them to unwind.
func (c *Coordinator) AbortAll() {
	c.mu.Lock()
	handles := make([]*activeUpload, 0, len(c.active))
	for _, handle := range c.active {
		handles = append(handles, handle)
	}
	c.mu.Unlock()

	for _, handle := range handles {
		handle.cancel()
	}
	for _, handle := range handles {
		<-handle.done
	}
}

func (c *Coordinator) storeResume(key string, state resumeState) {
	c.mu.Lock()
	c.resume[key] = state
	c.mu.Unlock()
}

func (c *Coordinator) clearResume(key string) {
	c.mu.Lock()
	delete(c.resume, key)
	c.mu.Unlock()
}

func (c *Coordinator) abortSession(uploadURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.storage.AbortUpload(ctx, uploadURL); err != nil {
		c.logger.Debug("abort upload session", logging.Error(err))
	}
}

// classify maps a storage error to (fatal, wrapped). Client errors do not
// retry, except 409 which signals an offset conflict worth another attempt.
func classify(err error) (bool, error) {
	code := storageStatus(err)
	if code == http.StatusRequestEntityTooLarge {
		return true, fmt.Errorf("%w: %v", ErrStorageLimit, err)
	}
	if code >= 400 && code < 500 && code != http.StatusConflict {
		return true, err
	}
	return false, err
}

func storageStatus(err error) int {
	return objectstore.StatusCode(err)
}

func isFatal(err error) bool {
	fatal, _ := classify(err)
	return fatal
}

func readChunkAt(file *os.File, buf []byte, offset, size int64) (int, error) {
	want := int64(len(buf))
	if remaining := size - offset; remaining < want {
		want = remaining
	}
	n, err := file.ReadAt(buf[:want], offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	if int64(n) != want {
		return 0, fmt.Errorf("short read at offset %d: got %d want %d", offset, n, want)
	}
	return n, nil
}

func sniffContentType(file *os.File) (string, error) {
	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		return "", fmt.Errorf("detect content type: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind source file: %w", err)
	}
	return mtype.String(), nil
}

func fingerprintFile(path string, size int64, mtime time.Time) string {
	sum := sha256.Sum256([]byte(path + "|" + strconv.FormatInt(size, 10) + "|" + strconv.FormatInt(mtime.UnixNano(), 10)))
	return hex.EncodeToString(sum[:])
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
