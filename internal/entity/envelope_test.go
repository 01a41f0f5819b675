package entity_test

import (
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/shopspring/decimal"

	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/entity"
)

func TestProductCreatedRoundTrip(t *testing.T) {
	c := qt.New(t)

	at := time.Date(2026, 10, 15, 8, 30, 0, 0, time.UTC)
	p := entity.Product{
		ID:          1,
		Name:        "Widget",
		Description: "",
		Price:       decimal.RequireFromString("9.99"),
		Stock:       10,
	}.WithIdentity(1, at)

	payload, err := entity.NewProductCreated(p).Encode()
	c.Assert(err, qt.IsNil)
	c.Assert(string(payload), qt.Contains, `"price":9.99`)
	c.Assert(string(payload), qt.Contains, `"id":1`)

	decoded, err := entity.DecodeProductCreated(payload)
	c.Assert(err, qt.IsNil)

	got := decoded.Product()
	c.Assert(got.ID, qt.Equals, int64(1))
	c.Assert(got.Name, qt.Equals, "Widget")
	c.Assert(got.Stock, qt.Equals, 10)
	c.Assert(got.Price.Equal(decimal.RequireFromString("9.99")), qt.IsTrue)
	c.Assert(got.CreatedAt.Equal(at), qt.IsTrue)
	c.Assert(got.UpdatedAt.Equal(at), qt.IsTrue)
}

func TestNewProductCreatedOmitsZeroTimestamps(t *testing.T) {
	c := qt.New(t)

	e := entity.NewProductCreated(entity.Product{ID: 4, Name: "Bare", Price: decimal.NewFromInt(2)})
	c.Assert(e.CreatedAt, qt.IsNil)
	c.Assert(e.UpdatedAt, qt.IsNil)

	payload, err := e.Encode()
	c.Assert(err, qt.IsNil)
	c.Assert(string(payload), qt.Contains, `"createdAt":null`)
}

func TestDecodeProductCreated(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantErr   bool
		wantStock int
		wantDesc  string
		wantTime  bool
	}{
		{
			name:      "full envelope",
			payload:   `{"id":7,"name":"Lamp","description":"desk","price":89.99,"stock":200,"createdAt":"2026-01-02T03:04:05Z","updatedAt":null}`,
			wantStock: 200,
			wantDesc:  "desk",
			wantTime:  true,
		},
		{
			name:     "pascal case producer without stock",
			payload:  `{"Id":7,"Name":"Lamp","Description":"desk","Price":89.99}`,
			wantDesc: "desk",
		},
		{
			name:     "quoted price and offset-less timestamp",
			payload:  `{"id":7,"name":"Lamp","price":"89.99","createdAt":"2026-01-02T03:04:05.1234567"}`,
			wantTime: true,
		},
		{name: "not json", payload: `not-json`, wantErr: true},
		{name: "json null", payload: `null`, wantErr: true},
		{name: "empty", payload: ``, wantErr: true},
		{name: "missing id", payload: `{"name":"Lamp","price":1}`, wantErr: true},
		{name: "missing name", payload: `{"id":1,"price":1}`, wantErr: true},
		{name: "missing price", payload: `{"id":1,"name":"Lamp"}`, wantErr: true},
		{name: "bad timestamp", payload: `{"id":1,"name":"Lamp","price":1,"createdAt":"yesterday"}`, wantErr: true},
		{name: "wrong id type", payload: `{"id":"one","name":"Lamp","price":1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			e, err := entity.DecodeProductCreated([]byte(tt.payload))
			if tt.wantErr {
				c.Assert(err, qt.IsNotNil)
				c.Assert(errors.Is(err, entity.ErrMalformedEnvelope), qt.IsTrue)
				return
			}
			c.Assert(err, qt.IsNil)
			c.Assert(e.ID, qt.Equals, int64(7))
			c.Assert(e.Name, qt.Equals, "Lamp")
			c.Assert(e.Stock, qt.Equals, tt.wantStock)
			c.Assert(e.Description, qt.Equals, tt.wantDesc)
			c.Assert(e.Price.Equal(decimal.RequireFromString("89.99")), qt.IsTrue)
			c.Assert(e.CreatedAt != nil, qt.Equals, tt.wantTime)
			c.Assert(e.UpdatedAt, qt.IsNil)
		})
	}
}
