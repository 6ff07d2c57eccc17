package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile            = ".env"
	defaultPort               = "8080"
	defaultReadTimeout        = 15 * time.Second
	defaultWriteTimeout       = 60 * time.Second
	defaultIdleTimeout        = 120 * time.Second
	defaultMaxUploadBytes     = 64 << 20
	defaultSiteKey            = "dslab571"
	defaultFallbackSlide      = "/images/noimage.png"
	defaultMediaPrefix        = "products/public"
	defaultImageMaxDimension  = 1200
	defaultImageMaxBytes      = (7 << 20) / 10
	defaultImageQuality       = 80
	defaultCategoryCollection = "siteSections"
	defaultItemCollection     = "siteProducts"
	defaultTranslateTimeout   = 20 * time.Second
	defaultTranslateWorkers   = 15
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Firebase    FirebaseConfig
	Firestore   FirestoreConfig
	Storage     StorageConfig
	Site        SiteConfig
	Translation TranslationConfig
	Events      EventsConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxUploadBytes int64
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID          string
	EmulatorHost       string
	ItemCollection     string
	CategoryCollection string
}

// StorageConfig locates uploaded catalog media. ImageMaxDimension of zero stores
// images as uploaded instead of re-encoding them as JPEG.
type StorageConfig struct {
	MediaBucket       string
	MediaPrefix       string
	PublicBaseURL     string
	ImageMaxDimension int
	ImageMaxBytes     int64
	ImageQuality      int
}

// SiteConfig scopes catalog data to a single storefront.
type SiteConfig struct {
	Key           string
	FallbackSlide string
}

// TranslationConfig points at the external translation endpoint.
type TranslationConfig struct {
	Endpoint    string
	AuthToken   string
	Timeout     time.Duration
	Concurrency int
}

// EventsConfig controls item change notifications. An empty topic disables publishing.
type EventsConfig struct {
	ProjectID string
	Topic     string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects explicit values that take precedence over the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets the resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// Load assembles configuration from defaults, the .env file, the process environment,
// explicit overrides and secret references, in increasing precedence.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnv, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if value, ok := options.envMap[key]; ok {
			return value, true
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		value, ok := dotEnv[key]
		return value, ok
	}

	cfg := Config{
		Server: ServerConfig{
			Port:           stringWithDefault(lookup, "CATALOG_SERVER_PORT", stringWithDefault(lookup, "PORT", defaultPort)),
			ReadTimeout:    durationWithDefault(lookup, "CATALOG_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:   durationWithDefault(lookup, "CATALOG_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:    durationWithDefault(lookup, "CATALOG_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			MaxUploadBytes: int64(intWithDefault(lookup, "CATALOG_SERVER_MAX_UPLOAD_BYTES", defaultMaxUploadBytes)),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "CATALOG_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "CATALOG_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:          stringWithDefault(lookup, "CATALOG_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost:       stringWithDefault(lookup, "CATALOG_FIRESTORE_EMULATOR_HOST", ""),
			ItemCollection:     stringWithDefault(lookup, "CATALOG_FIRESTORE_ITEM_COLLECTION", defaultItemCollection),
			CategoryCollection: stringWithDefault(lookup, "CATALOG_FIRESTORE_CATEGORY_COLLECTION", defaultCategoryCollection),
		},
		Storage: StorageConfig{
			MediaBucket:       stringWithDefault(lookup, "CATALOG_STORAGE_MEDIA_BUCKET", ""),
			MediaPrefix:       strings.Trim(stringWithDefault(lookup, "CATALOG_STORAGE_MEDIA_PREFIX", defaultMediaPrefix), "/"),
			PublicBaseURL:     strings.TrimRight(stringWithDefault(lookup, "CATALOG_STORAGE_PUBLIC_BASE_URL", ""), "/"),
			ImageMaxDimension: intWithDefault(lookup, "CATALOG_STORAGE_IMAGE_MAX_DIMENSION", defaultImageMaxDimension),
			ImageMaxBytes:     int64(intWithDefault(lookup, "CATALOG_STORAGE_IMAGE_MAX_BYTES", defaultImageMaxBytes)),
			ImageQuality:      intWithDefault(lookup, "CATALOG_STORAGE_IMAGE_QUALITY", defaultImageQuality),
		},
		Site: SiteConfig{
			Key:           stringWithDefault(lookup, "CATALOG_SITE_KEY", defaultSiteKey),
			FallbackSlide: stringWithDefault(lookup, "CATALOG_SITE_FALLBACK_SLIDE", defaultFallbackSlide),
		},
		Translation: TranslationConfig{
			Endpoint:    stringWithDefault(lookup, "CATALOG_TRANSLATE_ENDPOINT", ""),
			AuthToken:   stringWithDefault(lookup, "CATALOG_TRANSLATE_AUTH_TOKEN", ""),
			Timeout:     durationWithDefault(lookup, "CATALOG_TRANSLATE_TIMEOUT", defaultTranslateTimeout),
			Concurrency: intWithDefault(lookup, "CATALOG_TRANSLATE_CONCURRENCY", defaultTranslateWorkers),
		},
		Events: EventsConfig{
			ProjectID: stringWithDefault(lookup, "CATALOG_EVENTS_PROJECT_ID", ""),
			Topic:     stringWithDefault(lookup, "CATALOG_EVENTS_TOPIC", ""),
		},
	}

	// Firestore and Pub/Sub default to the Firebase project.
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.Events.ProjectID == "" {
		cfg.Events.ProjectID = cfg.Firebase.ProjectID
	}

	secretFields := []*string{
		&cfg.Translation.AuthToken,
		&cfg.Storage.MediaBucket,
	}
	for _, field := range secretFields {
		resolved, err := resolveSecret(ctx, *field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*field = resolved
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// EnvironmentValues returns the merged key/value view Load reads from, so callers can
// build dependencies (such as the secret resolver) before loading.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
	for _, opt := range opts {
		opt(&options)
	}
	values, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = make(map[string]string)
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			key, value, ok := strings.Cut(entry, "=")
			if !ok || strings.TrimSpace(key) == "" {
				continue
			}
			values[strings.TrimSpace(key)] = value
		}
	}
	for key, value := range options.envMap {
		values[key] = value
	}
	return values, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if !isSecretReference(value) {
		return value, nil
	}
	ref := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return strings.TrimSpace(secret), nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		missing = append(missing, "Server.MaxUploadBytes")
	}
	if cfg.Firebase.ProjectID == "" {
		missing = append(missing, "Firebase.ProjectID")
	}
	if cfg.Firestore.ProjectID == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	if strings.Contains(cfg.Firestore.ItemCollection, "/") || cfg.Firestore.ItemCollection == "" {
		missing = append(missing, "Firestore.ItemCollection")
	}
	if strings.Contains(cfg.Firestore.CategoryCollection, "/") || cfg.Firestore.CategoryCollection == "" {
		missing = append(missing, "Firestore.CategoryCollection")
	}
	if cfg.Storage.MediaBucket == "" {
		missing = append(missing, "Storage.MediaBucket")
	}
	if strings.TrimSpace(cfg.Site.Key) == "" || strings.Contains(cfg.Site.Key, "/") {
		missing = append(missing, "Site.Key")
	}
	if cfg.Translation.Endpoint == "" {
		missing = append(missing, "Translation.Endpoint")
	}
	if cfg.Translation.Timeout <= 0 {
		missing = append(missing, "Translation.Timeout")
	}
	if cfg.Translation.Concurrency <= 0 {
		missing = append(missing, "Translation.Concurrency")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if rest, ok := strings.CutPrefix(trimmed, "sm://"); ok {
		return "secret://" + rest
	}
	return trimmed
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}
