package services

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tsuyoshi-3110/dslab571/internal/domain"
)

const instrumentationName = "github.com/tsuyoshi-3110/dslab571/internal/services"

// TranslationFanout requests every target language concurrently and keeps whatever
// succeeded. A failed language never fails the batch.
type TranslationFanout struct {
	translator Translator
	languages  []domain.Language
	limit      int
	logger     *zap.Logger
	tracer     trace.Tracer
	failures   metric.Int64Counter
}

// FanoutOption customises a TranslationFanout.
type FanoutOption func(*TranslationFanout)

// WithFanoutLogger sets the logger used for per-language failures.
func WithFanoutLogger(logger *zap.Logger) FanoutOption {
	return func(f *TranslationFanout) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithFanoutConcurrency caps in-flight requests. The default sends every language at once.
func WithFanoutConcurrency(limit int) FanoutOption {
	return func(f *TranslationFanout) {
		if limit > 0 {
			f.limit = limit
		}
	}
}

// NewTranslationFanout binds translator to the target roster.
func NewTranslationFanout(translator Translator, opts ...FanoutOption) (*TranslationFanout, error) {
	if translator == nil {
		return nil, errors.New("translation fanout: translator is required")
	}
	languages := domain.TargetLanguages()
	f := &TranslationFanout{
		translator: translator,
		languages:  languages,
		limit:      len(languages),
		logger:     zap.NewNop(),
		tracer:     otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	counter, err := otel.GetMeterProvider().Meter(instrumentationName).Int64Counter(
		"catalog.translation.failures",
		metric.WithDescription("Target languages whose translation request failed"),
	)
	if err != nil {
		f.logger.Warn("translation fanout: unable to register failure counter", zap.Error(err))
	}
	f.failures = counter
	return f, nil
}

// TranslateAll translates title and body into every target language. The result holds
// only successful languages, trimmed, in roster order; it may be empty.
func (f *TranslationFanout) TranslateAll(ctx context.Context, title, body string) []domain.Translation {
	ctx, span := f.tracer.Start(ctx, "catalog.translation.fanout",
		trace.WithAttributes(attribute.Int("translation.requested", len(f.languages))),
	)
	defer span.End()

	source := domain.LocalizedText{Title: title, Body: body}
	results := make([]*domain.Translation, len(f.languages))

	var g errgroup.Group
	g.SetLimit(f.limit)
	for i, lang := range f.languages {
		g.Go(func() error {
			out, err := f.translator.Translate(ctx, source, lang)
			if err != nil {
				f.recordFailure(ctx, &TranslationError{Lang: lang, Err: err})
				return nil
			}
			results[i] = &domain.Translation{
				Lang:  lang,
				Title: strings.TrimSpace(out.Title),
				Body:  strings.TrimSpace(out.Body),
			}
			return nil
		})
	}
	_ = g.Wait()

	translations := make([]domain.Translation, 0, len(results))
	for _, result := range results {
		if result != nil {
			translations = append(translations, *result)
		}
	}
	span.SetAttributes(attribute.Int("translation.succeeded", len(translations)))
	return translations
}

func (f *TranslationFanout) recordFailure(ctx context.Context, err *TranslationError) {
	f.logger.Warn("translation failed",
		zap.String("lang", string(err.Lang)),
		zap.Error(err.Err),
	)
	if f.failures != nil {
		f.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("lang", string(err.Lang))))
	}
}
