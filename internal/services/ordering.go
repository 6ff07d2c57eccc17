package services

import (
	"slices"
	"time"

	"github.com/tsuyoshi-3110/dslab571/internal/domain"
)

// unorderedRank places entries without an explicit order after every ordered one.
const unorderedRank = 999999

// OrderCategories returns categories sorted by order ascending (unordered last), then
// createdAt ascending, then id. The input slice is left untouched.
func OrderCategories(categories []domain.Category) []domain.Category {
	out := slices.Clone(categories)
	slices.SortStableFunc(out, func(a, b domain.Category) int {
		return compareDisplayOrder(a.Order, b.Order, a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return out
}

// OrderItems sorts items with the same rules as OrderCategories.
func OrderItems(items []domain.CatalogItem) []domain.CatalogItem {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b domain.CatalogItem) int {
		return compareDisplayOrder(a.Order, b.Order, a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return out
}

func compareDisplayOrder(aOrder, bOrder *int, aCreated, bCreated time.Time, aID, bID string) int {
	if c := rank(aOrder) - rank(bOrder); c != 0 {
		if c < 0 {
			return -1
		}
		return 1
	}
	if c := aCreated.Compare(bCreated); c != 0 {
		return c
	}
	switch {
	case aID < bID:
		return -1
	case aID > bID:
		return 1
	}
	return 0
}

func rank(order *int) int {
	if order == nil {
		return unorderedRank
	}
	return *order
}
