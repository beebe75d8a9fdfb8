package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTransactionQuery(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		q, err := parseTransactionQuery(httptest.NewRequest(http.MethodGet, "/transactions", nil))
		require.NoError(t, err)
		assert.Equal(t, 1, q.Page)
		assert.Equal(t, 20, q.Limit)
		assert.Equal(t, storage.SortByDate, q.Filter.SortBy)
		assert.True(t, q.Filter.Desc)
	})

	t.Run("all filters", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet,
			"/transactions?type=INCOME&categoryId=4&startDate=2024-03-01&endDate=2024-03-31"+
				"&search=+rent+&minAmount=10.5&maxAmount=99&tag=home&sortBy=amount&order=asc&page=3&limit=50", nil)
		q, err := parseTransactionQuery(r)
		require.NoError(t, err)
		f := q.Filter
		assert.Equal(t, core.Income, f.Type)
		assert.Equal(t, int64(4), f.CategoryID)
		assert.Equal(t, "2024-03-01", f.StartDate.String())
		assert.Equal(t, "2024-03-31", f.EndDate.String())
		assert.Equal(t, "rent", f.Search)
		assert.Equal(t, int64(1050), f.MinAmount.Cents)
		assert.Equal(t, int64(9900), f.MaxAmount.Cents)
		assert.Equal(t, "home", f.Tag)
		assert.Equal(t, storage.SortByAmount, f.SortBy)
		assert.False(t, f.Desc)
		assert.Equal(t, 3, q.Page)
		assert.Equal(t, 50, q.Limit)
	})

	t.Run("collects every error", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/transactions?type=gift&page=0&order=up&categoryId=x", nil)
		_, err := parseTransactionQuery(r)
		var verrs core.ValidationErrors
		require.True(t, errors.As(err, &verrs))
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field)
		}
		assert.ElementsMatch(t, []string{"type", "page", "order", "categoryId"}, fields)
	})
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"empty", "", "body"},
		{"malformed", "{", "body"},
		{"wrong type", `{"categoryId":"four"}`, "categoryId"},
		{"bad amount", `{"amount":"ten"}`, "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst core.Transaction
			err := decodeJSON(httptest.NewRecorder(), r, &dst)
			var verrs core.ValidationErrors
			require.True(t, errors.As(err, &verrs), "got %v", err)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestPathID(t *testing.T) {
	for _, raw := range []string{"0", "-1", "abc", ""} {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.SetPathValue("id", raw)
		_, err := pathID(r)
		assert.Error(t, err, raw)
	}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.SetPathValue("id", "42")
	id, err := pathID(r)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", core.ValidationErrors{{Field: "amount", Message: "required"}}, http.StatusBadRequest, "Validation failed"},
		{"not found message", storage.NotFound("budget"), http.StatusNotFound, "budget not found"},
		{"wrapped not found", fmt.Errorf("load: %w", core.ErrNotFound), http.StatusNotFound, core.ErrNotFound.Error()},
		{"credentials", core.ErrInvalidCredentials, http.StatusUnauthorized, core.ErrInvalidCredentials.Error()},
		{"domain rule", core.NewDomainError(core.ErrDuplicate, "a budget for this category and period already exists"),
			http.StatusBadRequest, "a budget for this category and period already exists"},
		{"in use", fmt.Errorf("delete: %w", core.ErrCategoryInUse), http.StatusBadRequest, core.ErrCategoryInUse.Error()},
		{"unexpected", errors.New("disk I/O error"), http.StatusInternalServerError, internalErrorMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg, _ := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.message, msg)
		})
	}
}

func TestResponseBuilder(t *testing.T) {
	rec := httptest.NewRecorder()
	NewResponse().Status(http.StatusCreated).Header("X-Test", "1").Data(map[string]int{"id": 7}).Write(rec)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Test"))
	assert.JSONEq(t, `{"success":true,"data":{"id":7}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	ErrorResponse(http.StatusBadRequest, "Validation failed").
		FieldErrors([]core.FieldError{{Field: "name", Message: "is required"}}).
		Write(rec)
	assert.JSONEq(t, `{"success":false,"message":"Validation failed","errors":[{"field":"name","message":"is required"}]}`, rec.Body.String())
}
