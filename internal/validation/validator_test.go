package validation_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	domainerrors "github.com/shelfwise/shelfwise-pipeline/internal/errors"
	"github.com/shelfwise/shelfwise-pipeline/internal/validation"
)

type testRecord struct {
	Shop     string  `json:"shop" validate:"required"`
	Title    string  `json:"title" validate:"required,min=1,max=512"`
	Price    float64 `json:"price" validate:"gte=0"`
	Currency string  `json:"currency,omitempty" validate:"omitempty,len=3"`
	Status   string  `json:"mapping_status" validate:"required,oneof=ok fallback-parent fuzzy-match manual-override unmapped"`
}

func validRecord() testRecord {
	return testRecord{
		Shop:     "mega",
		Title:    "Lapte integral 3.5%",
		Price:    7.49,
		Currency: "RON",
		Status:   "ok",
	}
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	assert.NoError(t, v.Validate(validRecord()))
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		mutate    func(*testRecord)
		wantField string
	}{
		{
			name:      "missing required field",
			mutate:    func(r *testRecord) { r.Shop = "" },
			wantField: "shop",
		},
		{
			name:      "title too long",
			mutate:    func(r *testRecord) { r.Title = string(make([]byte, 513)) },
			wantField: "title",
		},
		{
			name:      "negative price",
			mutate:    func(r *testRecord) { r.Price = -1 },
			wantField: "price",
		},
		{
			name:      "bad currency length",
			mutate:    func(r *testRecord) { r.Currency = "LEI4" },
			wantField: "currency",
		},
		{
			name:      "unknown mapping status",
			mutate:    func(r *testRecord) { r.Status = "guessed" },
			wantField: "mapping_status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(&rec)

			err := v.Validate(rec)
			assert.Error(t, err)

			var domainErr *domainerrors.Error
			if assert.True(t, errors.As(err, &domainErr)) {
				assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)
				assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())

				fields, ok := domainErr.Details.(map[string]string)
				if assert.True(t, ok, "details should carry per-field messages") {
					assert.Contains(t, fields, tt.wantField)
				}
			}
		})
	}
}

func TestValidator_JSONFieldNames(t *testing.T) {
	v := validation.New()

	rec := validRecord()
	rec.Shop = ""

	err := v.Validate(rec)
	assert.Error(t, err)

	var domainErr *domainerrors.Error
	if assert.True(t, errors.As(err, &domainErr)) {
		fields, _ := domainErr.Details.(map[string]string)
		// The JSON tag name "shop", not the struct field name "Shop"
		assert.Contains(t, fields, "shop")
		assert.NotContains(t, fields, "Shop")
	}
}
