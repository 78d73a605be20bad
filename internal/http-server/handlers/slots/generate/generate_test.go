package generate

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindcare-service/internal/models"
)

type generatorFunc func(ctx context.Context, therapistRef string, dates models.DateRange) (int, error)

func (f generatorFunc) GenerateSlots(ctx context.Context, therapistRef string, dates models.DateRange) (int, error) {
	return f(ctx, therapistRef, dates)
}

func TestGenerate(t *testing.T) {
	var got models.DateRange
	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), generatorFunc(func(_ context.Context, ref string, dates models.DateRange) (int, error) {
		got = dates
		return 3, nil
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/slots/generate",
		strings.NewReader(`{"therapist_ref":"T1","date_from":"2026-03-01","date_to":"2026-03-03"}`)))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, models.DateRange{From: "2026-03-01", To: "2026-03-03"}, got)

	var resp Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.DaysCreated)
}

func TestGenerateSingleDay(t *testing.T) {
	var got models.DateRange
	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), generatorFunc(func(_ context.Context, _ string, dates models.DateRange) (int, error) {
		got = dates
		return 1, nil
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/slots/generate",
		strings.NewReader(`{"therapist_ref":"T1","date_from":"2026-03-01"}`)))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "2026-03-01", got.To)
}

func TestGenerateRequiresTherapist(t *testing.T) {
	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), generatorFunc(func(context.Context, string, models.DateRange) (int, error) {
		t.Fatal("generator must not be called")
		return 0, nil
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/slots/generate", strings.NewReader(`{"date_from":"2026-03-01"}`)))

	require.Equal(t, http.StatusBadRequest, rr.Code)
}
