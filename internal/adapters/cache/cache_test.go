package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/torp/internal/adapters/cache"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCacheTTL(t *testing.T) {
	Convey("Given a cache with a short entry TTL", t, func() {
		ctx := context.Background()
		c := cache.New[string]()
		c.SetTTL(ctx, "k", "v", 100*time.Millisecond)

		Convey("Then an immediate read returns the value", func() {
			v, ok := c.Get(ctx, "k")
			So(ok, ShouldBeTrue)
			So(v, ShouldEqual, "v")
		})

		Convey("When the TTL has elapsed", func() {
			time.Sleep(150 * time.Millisecond)

			Convey("Then the read misses and the entry is evicted", func() {
				_, ok := c.Get(ctx, "k")
				So(ok, ShouldBeFalse)
				So(c.Len(ctx), ShouldEqual, 0)
			})
		})

		Convey("When the entry is overwritten", func() {
			c.SetTTL(ctx, "k", "v2", time.Hour)
			time.Sleep(150 * time.Millisecond)

			Convey("Then expiry was reset from the second write", func() {
				v, ok := c.Get(ctx, "k")
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, "v2")
			})
		})
	})
}

func TestCacheWithClock(t *testing.T) {
	Convey("Given a cache driven by a fake clock", t, func() {
		ctx := context.Background()
		now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		c := cache.New(cache.WithClock[int](func() time.Time { return now }))

		c.Set(ctx, "company", 1, cache.ClassCompany)
		c.Set(ctx, "price", 2, cache.ClassPrice)
		c.Set(ctx, "geo", 3, cache.ClassGeo)
		c.Set(ctx, "misc", 4, cache.ClassDefault)

		Convey("When 7 hours pass", func() {
			now = now.Add(7 * time.Hour)

			Convey("Then only the price and default entries expired", func() {
				_, ok := c.Get(ctx, "price")
				So(ok, ShouldBeFalse)
				_, ok = c.Get(ctx, "misc")
				So(ok, ShouldBeFalse)

				_, ok = c.Get(ctx, "company")
				So(ok, ShouldBeTrue)
				_, ok = c.Get(ctx, "geo")
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When 8 days pass and Cleanup runs", func() {
			now = now.Add(8 * 24 * time.Hour)
			removed := c.Cleanup(ctx)

			Convey("Then every entry is swept", func() {
				So(removed, ShouldEqual, 4)
				So(c.Len(ctx), ShouldEqual, 0)
			})
		})
	})
}

func TestCacheOperations(t *testing.T) {
	Convey("Given a populated cache", t, func() {
		ctx := context.Background()
		c := cache.New[string]()
		c.Set(ctx, "a", "1", cache.ClassDefault)
		c.Set(ctx, "b", "2", cache.ClassDefault)

		Convey("When one key is deleted", func() {
			c.Delete(ctx, "a")

			Convey("Then only that key is gone", func() {
				_, ok := c.Get(ctx, "a")
				So(ok, ShouldBeFalse)
				_, ok = c.Get(ctx, "b")
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When the cache is cleared", func() {
			c.Clear(ctx)

			Convey("Then it is empty", func() {
				So(c.Len(ctx), ShouldEqual, 0)
			})
		})
	})
}

func TestKeyDeterminism(t *testing.T) {
	Convey("Given parameter sets built in different orders", t, func() {
		k1 := cache.Key("p", map[string]string{"b": "2", "a": "1"})
		k2 := cache.Key("p", map[string]string{"a": "1", "b": "2"})

		Convey("Then the keys are identical", func() {
			So(k1, ShouldEqual, k2)
		})

		Convey("And differing values produce different keys", func() {
			k3 := cache.Key("p", map[string]string{"a": "1", "b": "3"})
			So(k3, ShouldNotEqual, k1)
		})

		Convey("And the namespace separates key spaces", func() {
			k4 := cache.Key("q", map[string]string{"a": "1", "b": "2"})
			So(k4, ShouldNotEqual, k1)
		})
	})

	Convey("Given an empty parameter set", t, func() {
		Convey("Then the key is just the namespace", func() {
			So(cache.Key("ns", nil), ShouldEqual, "ns")
		})
	})
}
