package app_test

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"roomledger/internal/domain"
	"roomledger/internal/storage/memory"
)

// ---- fakes ----

type fakeCache struct {
	mu    sync.Mutex
	store map[string]any
	hits  int

	getErr, setErr, delErr error
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return false, c.getErr
	}
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	if d, ok := dst.(*domain.PriceBreakdown); ok {
		*d = v.(domain.PriceBreakdown)
	}
	c.hits++
	return true, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	if c.store == nil {
		c.store = map[string]any{}
	}
	c.store[key] = v
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

func (c *fakeCache) DelPrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.delErr != nil {
		return c.delErr
	}
	for k := range c.store {
		if strings.HasPrefix(k, prefix) {
			delete(c.store, k)
		}
	}
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.ReservationEvent
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, ev domain.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *fakePublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// captureLog redirects the global logger into a buffer for the rest of the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

// ---- fixture ----

type fixture struct {
	store    *memory.Store
	hotel    domain.Hotel
	standard domain.RoomCategory
	family   domain.RoomCategory
	room     domain.Room // standard
	suite    domain.Room // family
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	s := memory.New()
	h := s.AddHotel(domain.Hotel{Name: "Harbour View"})
	std := s.AddCategory(domain.RoomCategory{HotelID: h.ID, Name: "Standard", Capacity: 2, BasePrice: dec("100")})
	fam := s.AddCategory(domain.RoomCategory{HotelID: h.ID, Name: "Family", Capacity: 4, BasePrice: dec("180")})
	r1 := s.AddRoom(domain.Room{HotelID: h.ID, CategoryID: std.ID, Number: "101"})
	r2 := s.AddRoom(domain.Room{HotelID: h.ID, CategoryID: fam.ID, Number: "201"})
	return fixture{store: s, hotel: h, standard: std, family: fam, room: r1, suite: r2}
}

func day(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }
