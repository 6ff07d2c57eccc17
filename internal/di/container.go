package di

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tsuyoshi-3110/dslab571/internal/domain"
	"github.com/tsuyoshi-3110/dslab571/internal/platform/config"
	"github.com/tsuyoshi-3110/dslab571/internal/repositories"
	"github.com/tsuyoshi-3110/dslab571/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Catalog    services.CatalogService
	Categories services.CategoryService
	System     services.SystemService
}

// Externals carries the collaborators that live outside the repository registry.
// Translator and Events may be nil; saves then skip translation or notification.
type Externals struct {
	Translator services.Translator
	Media      services.MediaStore
	Events     services.ItemEventPublisher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, ext Externals) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, cfg, reg, ext)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// FallbackSlide is the image shown for items without media.
func (c *Container) FallbackSlide() domain.Slide {
	return fallbackSlide(c.Config.Site)
}

// Close releases repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, cfg config.Config, reg repositories.Registry, ext Externals) (Services, error) {
	var svc Services

	logger := ext.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := ext.Clock
	if clock == nil {
		clock = time.Now
	}

	var fanout *services.TranslationFanout
	if ext.Translator != nil {
		f, err := services.NewTranslationFanout(ext.Translator,
			services.WithFanoutLogger(logger.Named("translation")),
			services.WithFanoutConcurrency(cfg.Translation.Concurrency),
		)
		if err != nil {
			return Services{}, fmt.Errorf("build translation fanout: %w", err)
		}
		fanout = f
	} else {
		logger.Warn("translation disabled; items will only carry canonical text")
	}

	categorySvc, err := services.NewCategoryService(services.CategoryServiceDeps{
		Categories: reg.Categories(),
		Fanout:     fanout,
		Logger:     logger,
		Clock:      clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build category service: %w", err)
	}
	svc.Categories = categorySvc

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Items:         reg.Items(),
		Categories:    reg.Categories(),
		Media:         ext.Media,
		Fanout:        fanout,
		Events:        ext.Events,
		SiteKey:       cfg.Site.Key,
		FallbackSlide: fallbackSlide(cfg.Site),
		Logger:        logger,
		Clock:         clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            clock,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}

func fallbackSlide(site config.SiteConfig) domain.Slide {
	return domain.Slide{Kind: domain.MediaImage, Locator: strings.TrimSpace(site.FallbackSlide)}
}
