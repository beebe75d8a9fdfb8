package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type CategoryService struct {
	store storage.CategoryStore
}

func NewCategoryService(store storage.CategoryStore) *CategoryService {
	return &CategoryService{store: store}
}

// List returns the user's categories, optionally only those of typ.
func (s *CategoryService) List(ctx context.Context, userID int64, typ core.TransactionType) ([]core.Category, error) {
	if typ != "" && !typ.Valid() {
		return nil, core.ValidationErrors{{Field: "type", Message: "must be one of expense, income"}}
	}
	return s.store.ListCategories(ctx, userID, typ)
}

func (s *CategoryService) Get(ctx context.Context, userID, id int64) (core.Category, error) {
	return s.store.GetCategory(ctx, userID, id)
}

func (s *CategoryService) Create(ctx context.Context, userID int64, in core.Category) (core.Category, error) {
	c := core.Category{
		UserID: userID,
		Name:   strings.TrimSpace(in.Name),
		Type:   in.Type,
		Color:  in.Color,
		Icon:   strings.TrimSpace(in.Icon),
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if err := s.store.CreateCategory(ctx, &c); err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

// Update renames or restyles a category. Defaults are immutable and the
// type never changes.
func (s *CategoryService) Update(ctx context.Context, userID, id int64, patch core.CategoryPatch) (core.Category, error) {
	c, err := s.store.GetCategory(ctx, userID, id)
	if err != nil {
		return core.Category{}, err
	}
	if c.IsDefault {
		return core.Category{}, core.ErrDefaultCategory
	}
	if err := patch.Apply(&c); err != nil {
		return core.Category{}, err
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if err := s.store.UpdateCategory(ctx, &c); err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	return c, nil
}

// Delete removes a category with its budgets and recurring schedules. It is
// refused for defaults and while transactions reference it.
func (s *CategoryService) Delete(ctx context.Context, userID, id int64) error {
	c, err := s.store.GetCategory(ctx, userID, id)
	if err != nil {
		return err
	}
	if c.IsDefault {
		return core.ErrDefaultCategory
	}
	return s.store.DeleteCategory(ctx, userID, id)
}

// InitializeDefaults seeds the default set, skipping (name, type) pairs the
// user already has, and returns the complete list.
func (s *CategoryService) InitializeDefaults(ctx context.Context, userID int64) ([]core.Category, error) {
	existing, err := s.store.ListCategories(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[categoryKey(c.Name, c.Type)] = true
	}

	created := 0
	for _, c := range core.DefaultCategories() {
		if have[categoryKey(c.Name, c.Type)] {
			continue
		}
		c.UserID = userID
		if err := s.store.CreateCategory(ctx, &c); err != nil {
			if errors.Is(err, core.ErrDuplicate) {
				continue
			}
			return nil, fmt.Errorf("create default category %q: %w", c.Name, err)
		}
		created++
	}
	if created > 0 {
		slog.InfoContext(ctx, "Default categories created", "user_id", userID, "count", created)
	}
	return s.store.ListCategories(ctx, userID, "")
}

func categoryKey(name string, typ core.TransactionType) string {
	return strings.ToLower(name) + "|" + string(typ)
}

// requireCategory loads an owned category and checks it carries typ.
func requireCategory(ctx context.Context, store storage.CategoryStore, userID, categoryID int64, typ core.TransactionType) (core.Category, error) {
	c, err := store.GetCategory(ctx, userID, categoryID)
	if err != nil {
		return core.Category{}, err
	}
	if typ != "" && c.Type != typ {
		return core.Category{}, core.ErrCategoryTypeMismatch
	}
	return c, nil
}
