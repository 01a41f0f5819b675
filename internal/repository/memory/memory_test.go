package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/shopspring/decimal"

	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/repository/memory"
)

// tick is a clock that advances one second per reading.
func tick(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func TestCatalogStoreAssignsSequentialIDs(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	s := memory.NewCatalogStore()

	a, err := s.Insert(ctx, entity.ProductInput{Name: "a"})
	c.Assert(err, qt.IsNil)
	b, err := s.Insert(ctx, entity.ProductInput{Name: "b"})
	c.Assert(err, qt.IsNil)

	c.Assert(a.ID, qt.Equals, int64(1))
	c.Assert(b.ID, qt.Equals, int64(2))
	c.Assert(a.CreatedAt, qt.Equals, a.UpdatedAt)

	all, err := s.FindAll(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(all, qt.HasLen, 2)
}

func TestProjectionUpsertIsIdempotent(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	start := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	s := memory.NewProjectionStore(memory.WithClock(tick(start)))

	p := entity.Product{ID: 1, Name: "Widget", Price: decimal.RequireFromString("9.99"), Stock: 10}
	first, err := s.Upsert(ctx, p)
	c.Assert(err, qt.IsNil)
	second, err := s.Upsert(ctx, p)
	c.Assert(err, qt.IsNil)

	all, err := s.FindAll(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(all, qt.HasLen, 1)
	c.Assert(all[0].CreatedAt, qt.Equals, first.CreatedAt)
	c.Assert(all[0].UpdatedAt, qt.Equals, second.UpdatedAt)
	c.Assert(second.UpdatedAt.After(first.UpdatedAt), qt.IsTrue)
}

func TestProjectionUpsertLastDeliveryWins(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	s := memory.NewProjectionStore()

	older := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := s.Upsert(ctx, entity.Product{ID: 1, Name: "v1", Stock: 1, CreatedAt: older, UpdatedAt: older})
	c.Assert(err, qt.IsNil)
	_, err = s.Upsert(ctx, entity.Product{ID: 1, Name: "v2", Stock: 2})
	c.Assert(err, qt.IsNil)

	all, err := s.FindAll(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(all[0].Name, qt.Equals, "v2")
	c.Assert(all[0].Stock, qt.Equals, 2)
	c.Assert(all[0].CreatedAt, qt.Equals, older)
}

func TestOutboxLifecycle(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	s := memory.NewCatalogStore()

	encode := func(p entity.Product) ([]byte, error) { return entity.NewProductCreated(p).Encode() }
	p, err := s.InsertWithEvent(ctx, entity.ProductInput{Name: "Widget"}, "product-created", encode)
	c.Assert(err, qt.IsNil)

	pending, err := s.FetchPending(ctx, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(pending, qt.HasLen, 1)
	c.Assert(pending[0].AggregateID, qt.Equals, p.ID)

	decoded, err := entity.DecodeProductCreated(pending[0].Payload)
	c.Assert(err, qt.IsNil)
	c.Assert(decoded.ID, qt.Equals, p.ID)

	c.Assert(s.MarkFailed(ctx, pending[0].ID, "broker down"), qt.IsNil)
	pending, err = s.FetchPending(ctx, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(pending[0].Attempts, qt.Equals, 1)
	c.Assert(pending[0].LastError, qt.Equals, "broker down")

	c.Assert(s.MarkPublished(ctx, pending[0].ID, time.Now()), qt.IsNil)
	pending, err = s.FetchPending(ctx, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(pending, qt.HasLen, 0)

	c.Assert(s.MarkPublished(ctx, "missing", time.Now()), qt.ErrorMatches, "outbox event missing not found")
}

func TestOutboxEncodeFailureLeavesNoRow(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	s := memory.NewCatalogStore()

	_, err := s.InsertWithEvent(ctx, entity.ProductInput{Name: "Widget"}, "t",
		func(entity.Product) ([]byte, error) { return nil, errors.New("encode failed") })
	c.Assert(err, qt.ErrorMatches, "encode failed")

	all, err := s.FindAll(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(all, qt.HasLen, 0)
}

func TestProjectionConcurrentUpsertsKeepOneRow(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	s := memory.NewProjectionStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(stock int) {
			defer wg.Done()
			_, _ = s.Upsert(ctx, entity.Product{ID: 42, Name: "n", Stock: stock})
		}(i)
	}
	wg.Wait()

	all, err := s.FindAll(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(all, qt.HasLen, 1)
}

func TestOutboxEventMatchesStoredRow(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	s := memory.NewCatalogStore(memory.WithClock(tick(time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC))))

	encode := func(p entity.Product) ([]byte, error) { return entity.NewProductCreated(p).Encode() }
	p, err := s.InsertWithEvent(ctx, entity.ProductInput{Name: "Widget"}, "product-created", encode)
	c.Assert(err, qt.IsNil)

	pending, err := s.FetchPending(ctx, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(pending, qt.HasLen, 1)
	c.Assert(pending[0].CreatedAt, qt.Equals, p.CreatedAt)

	e, err := entity.DecodeProductCreated(pending[0].Payload)
	c.Assert(err, qt.IsNil)
	decoded := e.Product()
	c.Assert(decoded.ID, qt.Equals, p.ID)
	c.Assert(decoded.CreatedAt.Equal(p.CreatedAt), qt.IsTrue)
	c.Assert(decoded.UpdatedAt.Equal(p.UpdatedAt), qt.IsTrue)

	rows, err := s.FindAll(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(rows, qt.HasLen, 1)
	c.Assert(rows[0].CreatedAt, qt.Equals, p.CreatedAt)
	c.Assert(rows[0].UpdatedAt, qt.Equals, p.UpdatedAt)

	// The next plain insert continues the id sequence.
	next, err := s.Insert(ctx, entity.ProductInput{Name: "Lamp"})
	c.Assert(err, qt.IsNil)
	c.Assert(next.ID, qt.Equals, p.ID+1)
}
