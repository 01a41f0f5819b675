package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	qt "github.com/frankban/quicktest"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/cache"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/repository/memory"
)

func setup(c *qt.C) (*miniredis.Miniredis, *memory.ProjectionStore, *cache.ProjectionCache) {
	mr := miniredis.RunT(c.TB)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c.Cleanup(func() { _ = client.Close() })
	store := memory.NewProjectionStore()
	return mr, store, cache.NewProjectionCache(store, client, cache.WithKey("products"), cache.WithTTL(time.Minute))
}

func TestFindAllPopulatesCache(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	mr, store, pc := setup(c)

	_, err := store.Upsert(ctx, entity.Product{ID: 1, Name: "Widget", Price: decimal.RequireFromString("9.99")})
	c.Assert(err, qt.IsNil)

	got, err := pc.FindAll(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.HasLen, 1)
	c.Assert(mr.Exists("products:0"), qt.IsTrue)
	c.Assert(mr.TTL("products:0"), qt.Equals, time.Minute)

	// Served from the snapshot even though the store changed underneath.
	_, err = store.Upsert(ctx, entity.Product{ID: 2, Name: "Lamp"})
	c.Assert(err, qt.IsNil)
	got, err = pc.FindAll(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.HasLen, 1)
	c.Assert(got[0].Price.Equal(decimal.RequireFromString("9.99")), qt.IsTrue)
}

func TestUpsertInvalidatesCache(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	mr, _, pc := setup(c)

	_, err := pc.FindAll(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(mr.Exists("products:0"), qt.IsTrue)

	_, err = pc.Upsert(ctx, entity.Product{ID: 1, Name: "Widget"})
	c.Assert(err, qt.IsNil)
	c.Assert(mr.Exists("products:0"), qt.IsFalse)
	gen, err := mr.Get("products:gen")
	c.Assert(err, qt.IsNil)
	c.Assert(gen, qt.Equals, "1")

	got, err := pc.FindAll(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.HasLen, 1)
	c.Assert(mr.Exists("products:1"), qt.IsTrue)
}

func TestRedisOutageFallsThrough(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	mr, store, pc := setup(c)
	mr.Close()

	_, err := pc.Upsert(ctx, entity.Product{ID: 1, Name: "Widget"})
	c.Assert(err, qt.IsNil)

	got, err := pc.FindAll(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.HasLen, 1)

	rows, err := store.FindAll(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(rows, qt.HasLen, 1)
}

func TestCorruptEntryIsIgnored(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	mr, store, pc := setup(c)

	_, err := store.Upsert(ctx, entity.Product{ID: 1, Name: "Widget"})
	c.Assert(err, qt.IsNil)
	c.Assert(mr.Set("products:0", "{not json"), qt.IsNil)

	got, err := pc.FindAll(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.HasLen, 1)
}

// hookedStore runs hook once, after loading rows and before returning them.
type hookedStore struct {
	*memory.ProjectionStore
	hook func()
}

func (s *hookedStore) FindAll(ctx context.Context) ([]entity.Product, error) {
	rows, err := s.ProjectionStore.FindAll(ctx)
	if hook := s.hook; hook != nil {
		s.hook = nil
		hook()
	}
	return rows, err
}

func TestUpsertDuringLoadDoesNotLeaveStaleSnapshot(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	mr := miniredis.RunT(c.TB)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c.Cleanup(func() { _ = client.Close() })

	store := &hookedStore{ProjectionStore: memory.NewProjectionStore()}
	pc := cache.NewProjectionCache(store, client, cache.WithKey("products"), cache.WithTTL(time.Minute))

	_, err := pc.Upsert(ctx, entity.Product{ID: 1, Name: "Widget"})
	c.Assert(err, qt.IsNil)

	store.hook = func() {
		_, err := pc.Upsert(ctx, entity.Product{ID: 2, Name: "Lamp"})
		c.Check(err, qt.IsNil)
	}
	got, err := pc.FindAll(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.HasLen, 1)

	got, err = pc.FindAll(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.HasLen, 2)
}
