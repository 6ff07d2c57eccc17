package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/tsuyoshi-3110/dslab571/internal/domain"
	"github.com/tsuyoshi-3110/dslab571/internal/platform/storage"
	"github.com/tsuyoshi-3110/dslab571/internal/repositories"
)

// CatalogServiceDeps bundles constructor inputs for the catalog service.
type CatalogServiceDeps struct {
	Items         repositories.CatalogItemRepository
	Categories    repositories.CategoryRepository
	Media         MediaStore
	Fanout        *TranslationFanout
	Events        ItemEventPublisher
	SiteKey       string
	FallbackSlide domain.Slide
	Logger        *zap.Logger
	Clock         func() time.Time
	NewID         func() string
}

type catalogService struct {
	items      repositories.CatalogItemRepository
	categories repositories.CategoryRepository
	media      MediaStore
	fanout     *TranslationFanout
	events     ItemEventPublisher
	siteKey    string
	fallback   domain.Slide
	logger     *zap.Logger
	clock      func() time.Time
	newID      func() string
}

var _ CatalogService = (*catalogService)(nil)

// NewCatalogService constructs the catalog service with the supplied dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Items == nil {
		return nil, errors.New("catalog service: item repository is required")
	}
	if deps.Media == nil {
		return nil, errors.New("catalog service: media store is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.NewID
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &catalogService{
		items:      deps.Items,
		categories: deps.Categories,
		media:      deps.Media,
		fanout:     deps.Fanout,
		events:     deps.Events,
		siteKey:    strings.TrimSpace(deps.SiteKey),
		fallback:   deps.FallbackSlide,
		logger:     logger.Named("catalog"),
		clock:      func() time.Time { return clock().UTC() },
		newID:      newID,
	}, nil
}

func (s *catalogService) GetItem(ctx context.Context, itemID string) (CatalogItem, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return CatalogItem{}, ErrItemNotFound
	}
	item, err := s.items.Get(ctx, itemID)
	if err != nil {
		if isRepositoryNotFound(err) {
			return CatalogItem{}, ErrItemNotFound
		}
		return CatalogItem{}, err
	}
	return item, nil
}

func (s *catalogService) ListItems(ctx context.Context) ([]CatalogItem, error) {
	items, err := s.items.List(ctx)
	if err != nil {
		return nil, err
	}
	return OrderItems(items), nil
}

func (s *catalogService) GetLocalizedItem(ctx context.Context, itemID string, lang Language) (LocalizedItem, error) {
	item, err := s.GetItem(ctx, itemID)
	if err != nil {
		return LocalizedItem{}, err
	}
	return s.localize(item, lang, s.loadCategories(ctx)), nil
}

func (s *catalogService) ListLocalizedItems(ctx context.Context, lang Language) ([]LocalizedItem, error) {
	items, err := s.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	categories := s.loadCategories(ctx)
	out := make([]LocalizedItem, 0, len(items))
	for _, item := range items {
		out = append(out, s.localize(item, lang, categories))
	}
	return out, nil
}

func (s *catalogService) localize(item CatalogItem, lang Language, categories []domain.Category) LocalizedItem {
	view := LocalizedItem{
		Item:   item,
		Lang:   lang,
		Text:   ResolveLocalized(item, lang),
		Slides: domain.DisplaySlides(item, s.fallback),
	}
	if label, ok := domain.FormatPrice(lang, item.Price); ok {
		view.PriceLabel = label
	}
	if category, ok := ResolveCategory(categories, item.CategoryID); ok {
		view.CategoryName = ResolveCategoryName(category, lang)
	}
	return view
}

// loadCategories is best effort: a failed lookup renders items as uncategorised.
func (s *catalogService) loadCategories(ctx context.Context) []domain.Category {
	if s.categories == nil {
		return nil
	}
	categories, err := s.categories.List(ctx)
	if err != nil {
		s.logger.Warn("category lookup failed", zap.Error(err))
		return nil
	}
	return categories
}

func (s *catalogService) SaveItem(ctx context.Context, capability EditorCapability, cmd SaveItemCommand) (CatalogItem, error) {
	if err := requireEditor(capability); err != nil {
		return CatalogItem{}, err
	}
	input, err := validateSaveItem(cmd)
	if err != nil {
		return CatalogItem{}, err
	}

	itemID := strings.TrimSpace(cmd.ItemID)
	create := itemID == ""
	var existing CatalogItem
	if create {
		itemID = s.newID()
	} else {
		existing, err = s.GetItem(ctx, itemID)
		if err != nil {
			return CatalogItem{}, err
		}
	}
	logger := s.logger.With(zap.String("itemId", itemID), zap.String("editor", capability.Subject()))

	mutation := repositories.ItemMutation{
		ID:         itemID,
		Create:     create,
		Canonical:  input.canonical,
		CategoryID: input.categoryID,
		Price:      input.price,
	}
	if create {
		mutation.CreatedAt = s.clock()
	}

	if cmd.Media != nil {
		stored, err := s.media.Upload(ctx, storage.UploadRequest{
			ItemID:      itemID,
			ContentType: input.contentType,
			FileName:    cmd.Media.FileName,
			Size:        cmd.Media.Size,
			Body:        cmd.Media.Body,
		}, cmd.Progress)
		if err != nil {
			return CatalogItem{}, &StorageError{Op: "upload", Err: err}
		}
		mutation.Media = &domain.Slide{Kind: input.mediaKind, Locator: stored.Locator}
		mutation.OriginalFileName = strings.TrimSpace(cmd.Media.FileName)
		if previous := existing.MediaLocator(); previous != "" && objectPath(previous) != objectPath(stored.Locator) {
			logger.Info("previous media no longer referenced", zap.String("locator", previous))
		}
	}

	if s.fanout != nil {
		mutation.Translations = s.fanout.TranslateAll(ctx, input.canonical.Title, input.canonical.Body)
	}
	logDroppedTranslations(logger, existing.Translations, mutation.Translations)

	saved, err := s.items.Apply(ctx, mutation)
	if err != nil {
		if mutation.Media != nil {
			logger.Warn("uploaded media left unreferenced after failed save", zap.String("locator", mutation.Media.Locator))
		}
		return CatalogItem{}, &StorageError{Op: "persist", Err: err}
	}

	s.publish(ctx, ItemSaved, capability, itemID)
	return saved, nil
}

func (s *catalogService) DeleteItem(ctx context.Context, capability EditorCapability, itemID string) error {
	if err := requireEditor(capability); err != nil {
		return err
	}
	item, err := s.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	logger := s.logger.With(zap.String("itemId", item.ID), zap.String("editor", capability.Subject()))

	for _, locator := range mediaLocators(item) {
		err := s.media.Delete(ctx, locator)
		switch {
		case err == nil:
		case errors.Is(err, storage.ErrReferenceNotFound):
			logger.Info("media already absent", zap.String("locator", locator))
		case errors.Is(err, storage.ErrForeignLocator):
			logger.Debug("media not managed by this service", zap.String("locator", locator))
		default:
			logger.Warn("media delete failed; removing item anyway", zap.String("locator", locator), zap.Error(err))
		}
	}

	if err := s.items.Delete(ctx, item.ID); err != nil {
		return &StorageError{Op: "delete", Err: err}
	}
	s.publish(ctx, ItemDeleted, capability, item.ID)
	return nil
}

func (s *catalogService) ReorderItems(ctx context.Context, capability EditorCapability, itemIDs []string) error {
	if err := requireEditor(capability); err != nil {
		return err
	}
	ids, err := normalizeOrderIDs("itemIds", itemIDs)
	if err != nil {
		return err
	}
	if err := s.items.Reorder(ctx, ids); err != nil {
		if isRepositoryNotFound(err) {
			return ErrItemNotFound
		}
		return &StorageError{Op: "reorder", Err: err}
	}
	s.publish(ctx, ItemsReordered, capability, ids...)
	return nil
}

func (s *catalogService) publish(ctx context.Context, kind ItemChangeKind, capability EditorCapability, ids ...string) {
	if s.events == nil {
		return
	}
	event := ItemChangedEvent{
		Kind:       kind,
		SiteKey:    s.siteKey,
		ItemIDs:    ids,
		Actor:      capability.Subject(),
		OccurredAt: s.clock(),
	}
	if _, err := s.events.PublishItemChanged(ctx, event); err != nil {
		s.logger.Warn("item change event not published", zap.String("kind", string(kind)), zap.Error(err))
	}
}

type saveItemInput struct {
	canonical   domain.LocalizedText
	price       *domain.Price
	categoryID  string
	contentType string
	mediaKind   domain.MediaKind
}

func validateSaveItem(cmd SaveItemCommand) (saveItemInput, error) {
	input := saveItemInput{
		canonical: domain.LocalizedText{
			Title: strings.TrimSpace(cmd.Title),
			Body:  strings.TrimSpace(cmd.Body),
		},
		categoryID: strings.TrimSpace(cmd.CategoryID),
	}
	if input.canonical.Title == "" {
		return saveItemInput{}, &ValidationError{Field: "title", Reason: "is required"}
	}
	if amount := domain.ParsePrice(cmd.PriceInput); amount != nil {
		input.price = &domain.Price{Amount: *amount, TaxMode: domain.TaxModeFromIncluded(cmd.TaxIncluded)}
	}
	if cmd.Media == nil {
		return input, nil
	}
	if cmd.Media.Body == nil {
		return saveItemInput{}, &ValidationError{Field: "media", Reason: "file is empty"}
	}
	input.contentType = domain.NormalizeContentType(cmd.Media.ContentType)
	kind, ok := domain.MediaKindForContentType(input.contentType)
	if !ok {
		return saveItemInput{}, &ValidationError{Field: "media", Reason: fmt.Sprintf("unsupported content type %q", cmd.Media.ContentType)}
	}
	if kind == domain.MediaVideo && cmd.Media.Size > domain.MaxVideoBytes {
		return saveItemInput{}, &ValidationError{Field: "media", Reason: "video must not exceed 50 MB"}
	}
	input.mediaKind = kind
	return input, nil
}

func normalizeOrderIDs(field string, raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, &ValidationError{Field: field, Reason: "must not be empty"}
	}
	seen := make(map[string]struct{}, len(raw))
	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, &ValidationError{Field: field, Reason: "contains an empty id"}
		}
		if _, dup := seen[id]; dup {
			return nil, &ValidationError{Field: field, Reason: fmt.Sprintf("duplicate id %q", id)}
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// logDroppedTranslations notes languages whose earlier translation is lost because
// this save's request for them failed.
func logDroppedTranslations(logger *zap.Logger, previous map[domain.Language]domain.LocalizedText, next []domain.Translation) {
	if len(previous) == 0 {
		return
	}
	kept := make(map[domain.Language]struct{}, len(next))
	for _, t := range next {
		kept[t.Lang] = struct{}{}
	}
	var dropped []string
	for _, lang := range domain.TargetLanguages() {
		if _, had := previous[lang]; !had {
			continue
		}
		if _, ok := kept[lang]; !ok {
			dropped = append(dropped, string(lang))
		}
	}
	if len(dropped) > 0 {
		logger.Info("translations dropped on save", zap.Strings("langs", dropped))
	}
}

func mediaLocators(item CatalogItem) []string {
	var out []string
	seen := map[string]struct{}{}
	add := func(locator string) {
		locator = strings.TrimSpace(locator)
		if locator == "" {
			return
		}
		key := objectPath(locator)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, locator)
	}
	if item.PrimarySlide != nil {
		add(item.PrimarySlide.Locator)
	}
	for _, slide := range item.Media {
		add(slide.Locator)
	}
	return out
}

// objectPath strips the version query so two uploads of the same object compare equal.
func objectPath(locator string) string {
	path, _, _ := strings.Cut(locator, "?")
	return path
}

func isRepositoryNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
