package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindcare-service/internal/models"
	"mindcare-service/internal/storage/memory"
	"mindcare-service/pkg/response"
)

func TestSeedAndList(t *testing.T) {
	d := New(memory.New())
	ctx := context.Background()

	require.NoError(t, d.Seed(ctx, []models.Therapist{
		{ID: "3", Name: "Dr. Wilson House", Specialization: "Anxiety and Depression", Active: true},
		{ID: "1", Name: "Dr. John Smith", Specialization: "Anxiety & Stress", Active: true},
		{ID: "2", Name: "Dr. Mei Lee", Specialization: "Academic Pressure", Active: false},
	}))

	list, err := d.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Dr. John Smith", list[0].Name)
	assert.Equal(t, "Dr. Wilson House", list[1].Name)
}

func TestSeedUpsertsByID(t *testing.T) {
	d := New(memory.New())
	ctx := context.Background()

	require.NoError(t, d.Seed(ctx, []models.Therapist{{ID: "1", Name: "Dr. Smith", Active: true}}))
	require.NoError(t, d.Seed(ctx, []models.Therapist{{ID: "1", Name: "Dr. John Smith", Active: true}}))

	got, err := d.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Dr. John Smith", got.Name)

	list, err := d.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSeedRejectsEmptyID(t *testing.T) {
	d := New(memory.New())

	err := d.Seed(context.Background(), []models.Therapist{{Name: "nameless"}})
	assert.ErrorIs(t, err, response.ErrBadRequest)
}

func TestGetUnknown(t *testing.T) {
	d := New(memory.New())

	_, err := d.Get(context.Background(), "42")
	assert.ErrorIs(t, err, response.ErrNotFound)
}
