package entity_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/shopspring/decimal"

	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/entity"
)

func TestProductInputValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   entity.ProductInput
		wantErr string
	}{
		{
			name:  "valid with zero stock",
			input: entity.ProductInput{Name: "Widget", Price: decimal.RequireFromString("9.99")},
		},
		{
			name:  "free product is allowed",
			input: entity.ProductInput{Name: "Sample", Price: decimal.Zero, Stock: 3},
		},
		{
			name:    "blank name",
			input:   entity.ProductInput{Name: "   ", Price: decimal.NewFromInt(1)},
			wantErr: "name must not be empty",
		},
		{
			name:    "negative price",
			input:   entity.ProductInput{Name: "Widget", Price: decimal.NewFromInt(-1)},
			wantErr: "price must not be negative",
		},
		{
			name:    "negative stock",
			input:   entity.ProductInput{Name: "Widget", Price: decimal.NewFromInt(1), Stock: -2},
			wantErr: "stock must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			err := tt.input.Validate()
			if tt.wantErr == "" {
				c.Assert(err, qt.IsNil)
				return
			}
			c.Assert(errors.Is(err, entity.ErrInvalidProduct), qt.IsTrue)
			c.Assert(err.Error(), qt.Contains, tt.wantErr)
		})
	}
}

func TestWithIdentityLeavesOriginalUntouched(t *testing.T) {
	c := qt.New(t)

	original := entity.NewProduct(entity.ProductInput{Name: "Widget", Price: decimal.RequireFromString("9.99"), Stock: 10})
	at := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	stored := original.WithIdentity(1, at)

	c.Assert(stored.ID, qt.Equals, int64(1))
	c.Assert(stored.CreatedAt, qt.Equals, at)
	c.Assert(stored.UpdatedAt, qt.Equals, at)
	c.Assert(stored.Name, qt.Equals, "Widget")
	c.Assert(original.ID, qt.Equals, int64(0))
	c.Assert(original.CreatedAt.IsZero(), qt.IsTrue)
}

func TestProductPriceEncodesAsNumber(t *testing.T) {
	c := qt.New(t)

	data, err := json.Marshal(entity.Product{ID: 3, Name: "Widget", Price: decimal.RequireFromString("9.99")})
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Contains, `"price":9.99`)
	c.Assert(string(data), qt.Contains, `"createdAt":"0001-01-01T00:00:00Z"`)

	// Plain decimals elsewhere in the process keep their default quoting.
	c.Assert(decimal.MarshalJSONWithoutQuotes, qt.IsFalse)
	plain, err := json.Marshal(decimal.RequireFromString("9.99"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(plain), qt.Equals, `"9.99"`)

	var back []entity.Product
	c.Assert(json.Unmarshal([]byte("["+string(data)+"]"), &back), qt.IsNil)
	c.Assert(back, qt.HasLen, 1)
	c.Assert(back[0].Price.Equal(decimal.RequireFromString("9.99")), qt.IsTrue)
}
