package entity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TopicProductCreated is the default topic product creation events go to.
const TopicProductCreated = "product-created"

// ErrMalformedEnvelope is returned when a payload cannot be decoded into a
// ProductCreated event.
var ErrMalformedEnvelope = errors.New("malformed product envelope")

// ProductCreated is the envelope published after a product is persisted. It
// is a flat snapshot of the product; the log offset is its only ordering.
type ProductCreated struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	CreatedAt   *time.Time      `json:"createdAt"`
	UpdatedAt   *time.Time      `json:"updatedAt"`
}

// NewProductCreated snapshots p into an envelope.
func NewProductCreated(p Product) ProductCreated {
	e := ProductCreated{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
	}
	if !p.CreatedAt.IsZero() {
		createdAt := p.CreatedAt
		e.CreatedAt = &createdAt
	}
	if !p.UpdatedAt.IsZero() {
		updatedAt := p.UpdatedAt
		e.UpdatedAt = &updatedAt
	}
	return e
}

func (e ProductCreated) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID          int64        `json:"id"`
		Name        string       `json:"name"`
		Description string       `json:"description"`
		Price       numericPrice `json:"price"`
		Stock       int          `json:"stock"`
		CreatedAt   *time.Time   `json:"createdAt"`
		UpdatedAt   *time.Time   `json:"updatedAt"`
	}{e.ID, e.Name, e.Description, numericPrice(e.Price), e.Stock, e.CreatedAt, e.UpdatedAt})
}

// Encode serializes the envelope as compact JSON.
func (e ProductCreated) Encode() ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal product envelope: %w", err)
	}
	return payload, nil
}

// Product maps the envelope onto a Product. The id is taken verbatim.
func (e ProductCreated) Product() Product {
	p := Product{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		Price:       e.Price,
		Stock:       e.Stock,
	}
	if e.CreatedAt != nil {
		p.CreatedAt = *e.CreatedAt
	}
	if e.UpdatedAt != nil {
		p.UpdatedAt = *e.UpdatedAt
	}
	return p
}

type productCreatedWire struct {
	ID          *int64           `json:"id"`
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
	CreatedAt   *wireTime        `json:"createdAt"`
	UpdatedAt   *wireTime        `json:"updatedAt"`
}

// DecodeProductCreated parses a payload into an envelope. id, name and price
// are required; description and stock fall back to their zero values.
func DecodeProductCreated(payload []byte) (ProductCreated, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ProductCreated{}, fmt.Errorf("%w: empty payload", ErrMalformedEnvelope)
	}

	var w productCreatedWire
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return ProductCreated{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	var missing []string
	if w.ID == nil {
		missing = append(missing, "id")
	}
	if w.Name == nil {
		missing = append(missing, "name")
	}
	if w.Price == nil {
		missing = append(missing, "price")
	}
	if len(missing) > 0 {
		return ProductCreated{}, fmt.Errorf("%w: missing %s", ErrMalformedEnvelope, strings.Join(missing, ", "))
	}

	e := ProductCreated{
		ID:    *w.ID,
		Name:  *w.Name,
		Price: *w.Price,
	}
	if w.Description != nil {
		e.Description = *w.Description
	}
	if w.Stock != nil {
		e.Stock = *w.Stock
	}
	if w.CreatedAt != nil {
		t := time.Time(*w.CreatedAt)
		e.CreatedAt = &t
	}
	if w.UpdatedAt != nil {
		t := time.Time(*w.UpdatedAt)
		e.UpdatedAt = &t
	}
	return e, nil
}

// wireTime accepts RFC 3339 timestamps as well as the offset-less form some
// producers emit, which is read as UTC.
type wireTime time.Time

var wireTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02 15:04:05.9999999",
}

func (t *wireTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	for _, layout := range wireTimeLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			*t = wireTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}
