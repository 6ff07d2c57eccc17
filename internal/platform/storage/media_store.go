package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/googleapis/gax-go/v2"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/tsuyoshi-3110/dslab571/internal/domain"
	"github.com/tsuyoshi-3110/dslab571/internal/platform/config"
)

var (
	// ErrReferenceNotFound reports that the object a locator points at does not exist.
	ErrReferenceNotFound = errors.New("storage: referenced object not found")
	// ErrForeignLocator reports a locator that does not address an object in storage.
	ErrForeignLocator = errors.New("storage: locator does not reference a stored object")
)

const (
	defaultCacheControl = "public, max-age=31536000"
	uploadChunkSize     = 4 << 20
)

// UploadRequest describes one media upload.
type UploadRequest struct {
	ItemID      string
	ContentType string
	FileName    string
	Size        int64
	Body        io.Reader
}

// StoredObject is the result of an upload.
type StoredObject struct {
	Bucket  string
	Object  string
	Locator string
}

// objectBackend is the slice of Cloud Storage the media store needs.
type objectBackend interface {
	Write(ctx context.Context, bucket, object, contentType string, body io.Reader, progress func(int64)) error
	Delete(ctx context.Context, bucket, object string) error
	BucketExists(ctx context.Context, bucket string) error
}

// MediaStore uploads and deletes catalog media in a single bucket.
type MediaStore struct {
	backend       objectBackend
	bucket        string
	prefix        string
	siteKey       string
	publicBaseURL string
	token         func() string
	images        ImageCompression
	logger        *zap.Logger
}

// MediaStoreOption customises a MediaStore.
type MediaStoreOption func(*MediaStore)

// WithLogger sets the logger used for upload diagnostics.
func WithLogger(logger *zap.Logger) MediaStoreOption {
	return func(s *MediaStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithVersionToken overrides the cache-busting token generator.
func WithVersionToken(fn func() string) MediaStoreOption {
	return func(s *MediaStore) {
		if fn != nil {
			s.token = fn
		}
	}
}

func withBackend(backend objectBackend) MediaStoreOption {
	return func(s *MediaStore) {
		s.backend = backend
	}
}

// NewMediaStore binds a store to cfg's bucket. client may be nil only when a backend
// is injected.
func NewMediaStore(client *gcs.Client, cfg config.StorageConfig, siteKey string, opts ...MediaStoreOption) (*MediaStore, error) {
	bucket := strings.TrimSpace(cfg.MediaBucket)
	if bucket == "" {
		return nil, errors.New("storage: media bucket is required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	if base == "" {
		base = "https://storage.googleapis.com/" + bucket
	}
	store := &MediaStore{
		bucket:        bucket,
		prefix:        cfg.MediaPrefix,
		siteKey:       strings.TrimSpace(siteKey),
		publicBaseURL: base,
		token:         func() string { return ulid.Make().String() },
		images: ImageCompression{
			MaxDimension: cfg.ImageMaxDimension,
			MaxBytes:     cfg.ImageMaxBytes,
			Quality:      cfg.ImageQuality,
		},
		logger: zap.NewNop(),
	}
	if client != nil {
		store.backend = &gcsBackend{client: client}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	if store.backend == nil {
		return nil, errors.New("storage: client is required")
	}
	return store, nil
}

// Upload streams req.Body to "{prefix}/{siteKey}/{itemID}.{ext}" and returns a public
// locator carrying a fresh ?v= token so cached copies of earlier uploads are bypassed.
// When image compression is configured, decodable images are stored as JPEG under a
// ".jpg" name. progress, when set, receives non-decreasing percentages from 0 to 100.
func (s *MediaStore) Upload(ctx context.Context, req UploadRequest, progress func(int)) (StoredObject, error) {
	if req.Body == nil {
		return StoredObject{}, errors.New("storage: upload body is required")
	}
	contentType := domain.NormalizeContentType(req.ContentType)
	kind, ok := domain.MediaKindForContentType(contentType)
	if !ok {
		return StoredObject{}, fmt.Errorf("storage: unsupported content type %q", req.ContentType)
	}
	body, size := req.Body, req.Size
	if kind == domain.MediaImage && s.images.enabled() {
		var err error
		body, size, contentType, err = s.compressImage(req.Body, contentType)
		if err != nil {
			return StoredObject{}, err
		}
	}
	ext, ok := domain.ExtensionForContentType(contentType)
	if !ok {
		return StoredObject{}, fmt.Errorf("storage: unsupported content type %q", req.ContentType)
	}
	object, err := MediaObjectPath(s.prefix, s.siteKey, req.ItemID, ext)
	if err != nil {
		return StoredObject{}, err
	}

	reporter := newProgressReporter(size, progress)
	reporter.report(0)
	start := time.Now()
	if err := s.backend.Write(ctx, s.bucket, object, contentType, body, reporter.bytes); err != nil {
		return StoredObject{}, fmt.Errorf("storage: upload %s: %w", object, err)
	}
	reporter.report(100)

	s.logger.Debug("media uploaded",
		zap.String("object", object),
		zap.Int64("size", size),
		zap.Duration("elapsed", time.Since(start)),
	)
	return StoredObject{
		Bucket:  s.bucket,
		Object:  object,
		Locator: s.locator(object),
	}, nil
}

// compressImage re-encodes an image as JPEG. Formats that cannot be decoded are
// stored as uploaded.
func (s *MediaStore) compressImage(body io.Reader, contentType string) (io.Reader, int64, string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, 0, "", fmt.Errorf("storage: read image: %w", err)
	}
	encoded, err := s.images.compress(data)
	if err != nil {
		s.logger.Warn("image stored without compression", zap.String("contentType", contentType), zap.Error(err))
		return bytes.NewReader(data), int64(len(data)), contentType, nil
	}
	s.logger.Debug("image compressed", zap.Int("from", len(data)), zap.Int("to", len(encoded)))
	return bytes.NewReader(encoded), int64(len(encoded)), "image/jpeg", nil
}

// Delete removes the object behind locator. A missing object yields ErrReferenceNotFound;
// a locator outside storage yields ErrForeignLocator.
func (s *MediaStore) Delete(ctx context.Context, locator string) error {
	bucket, object, ok := ObjectFromLocator(locator, s.publicBaseURL, s.bucket)
	if !ok {
		return ErrForeignLocator
	}
	if err := s.backend.Delete(ctx, bucket, object); err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return ErrReferenceNotFound
		}
		return fmt.Errorf("storage: delete %s: %w", object, err)
	}
	return nil
}

// Ping checks that the media bucket is reachable.
func (s *MediaStore) Ping(ctx context.Context) error {
	return s.backend.BucketExists(ctx, s.bucket)
}

func (s *MediaStore) locator(object string) string {
	segments := strings.Split(object, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return s.publicBaseURL + "/" + strings.Join(segments, "/") + "?v=" + s.token()
}

type progressReporter struct {
	total int64
	last  int
	fn    func(int)
}

func newProgressReporter(total int64, fn func(int)) *progressReporter {
	return &progressReporter{total: total, last: -1, fn: fn}
}

func (p *progressReporter) bytes(written int64) {
	if p.total <= 0 {
		return
	}
	pct := int(math.Round(float64(written) * 100 / float64(p.total)))
	if pct > 100 {
		pct = 100
	}
	p.report(pct)
}

func (p *progressReporter) report(pct int) {
	if p.fn == nil || pct <= p.last {
		return
	}
	p.last = pct
	p.fn(pct)
}

type gcsBackend struct {
	client *gcs.Client
}

var uploadBackoff = gax.Backoff{
	Initial:    250 * time.Millisecond,
	Max:        8 * time.Second,
	Multiplier: 2,
}

func (b *gcsBackend) Write(ctx context.Context, bucket, object, contentType string, body io.Reader, progress func(int64)) error {
	// Overwriting the same object with the same bytes is safe to retry.
	handle := b.client.Bucket(bucket).Object(object).Retryer(
		gcs.WithBackoff(uploadBackoff),
		gcs.WithPolicy(gcs.RetryAlways),
	)
	return writeObject(ctx, func(ctx context.Context) io.WriteCloser {
		w := handle.NewWriter(ctx)
		w.ContentType = contentType
		w.CacheControl = defaultCacheControl
		w.ChunkSize = uploadChunkSize
		w.ProgressFunc = progress
		return w
	}, body)
}

// writeObject copies body into the writer returned by open. Closing a Cloud Storage
// writer commits what it holds, so a failed copy cancels the writer's context and
// leaves the existing object untouched.
func writeObject(ctx context.Context, open func(context.Context) io.WriteCloser, body io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := open(ctx)
	if _, err := io.Copy(w, body); err != nil {
		cancel()
		return err
	}
	return w.Close()
}

func (b *gcsBackend) Delete(ctx context.Context, bucket, object string) error {
	return b.client.Bucket(bucket).Object(object).Retryer(gcs.WithBackoff(uploadBackoff)).Delete(ctx)
}

func (b *gcsBackend) BucketExists(ctx context.Context, bucket string) error {
	_, err := b.client.Bucket(bucket).Attrs(ctx)
	return err
}
