package normalizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstString(t *testing.T) {
	raw := RawRecord{
		"title":    "  Lapte integral  ",
		"name":     "ignored",
		"brand":    42,
		"producer": "Zuzu",
		"empty":    "   ",
	}

	assert.Equal(t, "Lapte integral", firstString(raw, "title", "name"))
	assert.Equal(t, "Zuzu", firstString(raw, "brand", "empty", "producer"), "skips non-strings and blanks")
	assert.Equal(t, "", firstString(raw, "missing"))
}

func TestCategoryText(t *testing.T) {
	tests := []struct {
		name string
		raw  RawRecord
		want string
	}{
		{
			name: "plain string",
			raw:  RawRecord{"category": " Lactate / Lapte "},
			want: "Lactate / Lapte",
		},
		{
			name: "breadcrumb list",
			raw:  RawRecord{"breadcrumbs": []any{"Bauturi", " Bere ", ""}},
			want: "Bauturi / Bere",
		},
		{
			name: "string slice",
			raw:  RawRecord{"category_path": []string{"Carne", "Mezeluri"}},
			want: "Carne / Mezeluri",
		},
		{
			name: "missing",
			raw:  RawRecord{},
			want: "",
		},
		{
			name: "unsupported type",
			raw:  RawRecord{"category": 17},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := categoryText(tt.raw, "category", "category_path", "breadcrumbs")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name         string
		value        any
		wantPrice    float64
		wantCurrency string
		wantErr      bool
	}{
		{name: "float", value: 12.49, wantPrice: 12.49},
		{name: "int", value: 7, wantPrice: 7},
		{name: "plain string", value: "12.99", wantPrice: 12.99},
		{name: "romanian comma decimal", value: "1,49", wantPrice: 1.49},
		{name: "lei suffix", value: "1,49 lei", wantPrice: 1.49, wantCurrency: "RON"},
		{name: "ron suffix", value: "23.50 RON", wantPrice: 23.5, wantCurrency: "RON"},
		{name: "euro symbol", value: "€2,50", wantPrice: 2.5, wantCurrency: "EUR"},
		{name: "grouped thousands", value: "1.234,56 lei", wantPrice: 1234.56, wantCurrency: "RON"},
		{name: "negative float", value: -1.0, wantErr: true},
		{name: "negative string", value: "-3,50", wantErr: true},
		{name: "empty string", value: "  ", wantErr: true},
		{name: "garbage", value: "call for price", wantErr: true},
		{name: "unsupported type", value: []int{1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, currency, err := parsePrice(tt.value)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.wantPrice, price, 0.0001)
			assert.Equal(t, tt.wantCurrency, currency)
		})
	}
}

func TestParsePack(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantSize float64
		wantUnit string
	}{
		{name: "grams with space", input: "500 g", wantSize: 500, wantUnit: "g"},
		{name: "comma decimal liters", input: "1,5l", wantSize: 1.5, wantUnit: "l"},
		{name: "long unit spelling", input: "250 grame", wantSize: 250, wantUnit: "g"},
		{name: "pieces", input: "6 buc", wantSize: 6, wantUnit: "buc"},
		{name: "abbreviation with dot", input: "10 buc.", wantSize: 10, wantUnit: "buc"},
		{name: "kilograms", input: "2kg", wantSize: 2, wantUnit: "kg"},
		{name: "free-form text", input: "aprox. o bucata"},
		{name: "unknown unit", input: "2 boxes"},
		{name: "zero size", input: "0 g"},
		{name: "empty", input: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size, unit := parsePack(tt.input)
			assert.InDelta(t, tt.wantSize, size, 0.0001)
			assert.Equal(t, tt.wantUnit, unit)
		})
	}
}

func TestUnitPrice(t *testing.T) {
	tests := []struct {
		name  string
		price float64
		size  float64
		unit  string
		want  float64
	}{
		{name: "per kilogram from grams", price: 5, size: 500, unit: "g", want: 10},
		{name: "per liter from milliliters", price: 3.5, size: 330, unit: "ml", want: 10.61},
		{name: "per liter direct", price: 12, size: 1.5, unit: "l", want: 8},
		{name: "per piece", price: 10, size: 6, unit: "buc", want: 1.67},
		{name: "zero size", price: 10, size: 0, unit: "g", want: 0},
		{name: "zero price", price: 0, size: 100, unit: "g", want: 0},
		{name: "unknown unit", price: 10, size: 2, unit: "cutii", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, unitPrice(tt.price, tt.size, tt.unit), 0.0001)
		})
	}
}

func TestCoerceStock(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		present bool
		want    bool
	}{
		{name: "missing field", present: false, want: true},
		{name: "nil value", value: nil, present: true, want: true},
		{name: "bool true", value: true, present: true, want: true},
		{name: "bool false", value: false, present: true, want: false},
		{name: "positive count", value: 14.0, present: true, want: true},
		{name: "zero count", value: 0, present: true, want: false},
		{name: "da", value: "da", present: true, want: true},
		{name: "nu", value: "Nu", present: true, want: false},
		{name: "in stock phrase", value: "in stoc", present: true, want: true},
		{name: "indisponibil", value: "Indisponibil online", present: true, want: false},
		{name: "epuizat", value: "stoc epuizat", present: true, want: false},
		{name: "out of stock", value: "Out of Stock", present: true, want: false},
		{name: "unrecognized type", value: []string{"?"}, present: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, coerceStock(tt.value, tt.present))
		})
	}
}

func TestStringList(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  []string
	}{
		{name: "single string", value: " bio ", want: []string{"bio"}},
		{name: "string slice", value: []string{"vegan", " bio ", ""}, want: []string{"vegan", "bio"}},
		{name: "any slice", value: []any{"gluten", 3, " lactoza "}, want: []string{"gluten", "lactoza"}},
		{name: "blank string", value: "   ", want: nil},
		{name: "empty slice", value: []any{}, want: nil},
		{name: "unsupported type", value: 12, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stringList(tt.value))
		})
	}
}

func TestParseTime(t *testing.T) {
	ts, ok := parseTime("2026-03-14T09:30:00Z")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC), ts)

	ts, ok = parseTime("2026-03-14")
	require.True(t, ok)
	assert.Equal(t, 14, ts.Day())

	_, ok = parseTime("ieri la pranz")
	assert.False(t, ok)
}
