// Package directory lists the therapists students can book.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"mindcare-service/internal/models"
	"mindcare-service/internal/storage"
	"mindcare-service/pkg/response"
)

const therapistsKey = "therapists"

type Directory struct {
	store storage.Store
}

func New(store storage.Store) *Directory {
	return &Directory{store: store}
}

// Seed upserts therapists by id, leaving unrelated entries untouched.
func (d *Directory) Seed(ctx context.Context, therapists []models.Therapist) error {
	const op = "directory.Seed"

	all, err := d.load(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	byID := make(map[string]int, len(all))
	for i, t := range all {
		byID[t.ID] = i
	}

	for _, t := range therapists {
		t.ID = strings.TrimSpace(t.ID)
		if t.ID == "" {
			return fmt.Errorf("%s: therapist id is required: %w", op, response.ErrBadRequest)
		}
		if i, ok := byID[t.ID]; ok {
			all[i] = t
			continue
		}
		byID[t.ID] = len(all)
		all = append(all, t)
	}

	raw, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", op, err)
	}
	if err := d.store.Set(ctx, therapistsKey, string(raw)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// List returns active therapists sorted by name.
func (d *Directory) List(ctx context.Context) ([]models.Therapist, error) {
	const op = "directory.List"

	all, err := d.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	active := make([]models.Therapist, 0, len(all))
	for _, t := range all {
		if t.Active {
			active = append(active, t)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Name < active[j].Name })

	return active, nil
}

func (d *Directory) Get(ctx context.Context, id string) (models.Therapist, error) {
	const op = "directory.Get"

	all, err := d.load(ctx)
	if err != nil {
		return models.Therapist{}, fmt.Errorf("%s: %w", op, err)
	}

	for _, t := range all {
		if t.ID == id {
			return t, nil
		}
	}

	return models.Therapist{}, fmt.Errorf("%s: %w", op, response.ErrNotFound)
}

func (d *Directory) load(ctx context.Context) ([]models.Therapist, error) {
	raw, err := d.store.Get(ctx, therapistsKey)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var all []models.Therapist
	if err := json.Unmarshal([]byte(raw), &all); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	return all, nil
}
