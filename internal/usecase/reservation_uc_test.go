package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/phenrril/storefront/internal/domain"
)

type ReservationSuite struct {
	suite.Suite
	f   *fixture
	uc  *ReservationUC
	now time.Time
}

func (s *ReservationSuite) SetupTest() {
	s.f = newFixture()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.uc = &ReservationUC{
		Store:     s.f.store,
		Inventory: s.f.inventory,
		TTL:       10 * time.Minute,
		Now:       func() time.Time { return s.now },
	}
}

func TestReservationSuite(t *testing.T) {
	suite.Run(t, new(ReservationSuite))
}

func (s *ReservationSuite) TestReserveLowersAvailability() {
	ctx := context.Background()
	p := s.f.simpleProduct(s.T(), 1000, 5)

	res, err := s.uc.Reserve(ctx, ReserveInput{Holder: "u1", ProductID: p.ID, Quantity: 3})
	s.Require().NoError(err)
	s.Equal(domain.ReservationActive, res.Status)
	s.Equal(s.now.Add(10*time.Minute), res.ExpiresAt)

	avail, err := s.uc.Available(ctx, p.ID, nil)
	s.Require().NoError(err)
	s.Equal(2, avail)
	s.Equal(5, s.f.reload(s.T(), p.ID).StockQuantity)

	_, err = s.uc.Reserve(ctx, ReserveInput{Holder: "u2", ProductID: p.ID, Quantity: 3})
	var short *domain.InsufficientStockError
	s.Require().ErrorAs(err, &short)
	s.Equal(3, short.Requested)
	s.Equal(2, short.Available)
	s.Equal("Insufficient stock available. Requested: 3, Available: 2", err.Error())
}

func (s *ReservationSuite) TestConcurrentReserveForLastUnit() {
	ctx := context.Background()
	p := s.f.simpleProduct(s.T(), 1000, 1)

	var wg sync.WaitGroup
	errs := make([]error, 6)
	for i := range errs {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = s.uc.Reserve(ctx, ReserveInput{Holder: fmt.Sprintf("u%d", n), ProductID: p.ID, Quantity: 1})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		var short *domain.InsufficientStockError
		s.ErrorAs(err, &short)
	}
	s.Equal(1, wins)
	avail, err := s.uc.Available(ctx, p.ID, nil)
	s.Require().NoError(err)
	s.Zero(avail)
}

func (s *ReservationSuite) TestReserveUnknownItem() {
	p := s.f.simpleProduct(s.T(), 1000, 1)
	missing := uuid.New()
	_, err := s.uc.Reserve(context.Background(), ReserveInput{Holder: "u1", ProductID: p.ID, VariantID: &missing, Quantity: 1})
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *ReservationSuite) TestUnlimitedNeverBlocks() {
	ctx := context.Background()
	p := s.f.simpleProduct(s.T(), 1000, 0)
	p.TrackInventory = false
	s.Require().NoError(s.f.store.Products().Save(ctx, p))

	_, err := s.uc.Reserve(ctx, ReserveInput{Holder: "u1", ProductID: p.ID, Quantity: 5000})
	s.Require().NoError(err)
	avail, err := s.uc.Available(ctx, p.ID, nil)
	s.Require().NoError(err)
	s.Equal(domain.UnlimitedStock, avail)
}

func (s *ReservationSuite) TestVariantReservationNeedsVariant() {
	ctx := context.Background()
	p := s.f.variantProduct(s.T(), 1000)
	v := s.f.addVariant(s.T(), p, 2, nil, "Size", "S")

	_, err := s.uc.Reserve(ctx, ReserveInput{Holder: "u1", ProductID: p.ID, Quantity: 1})
	var verr domain.ValidationError
	s.Require().ErrorAs(err, &verr)

	_, err = s.uc.Reserve(ctx, ReserveInput{Holder: "u1", ProductID: p.ID, VariantID: &v.ID, Quantity: 2})
	s.Require().NoError(err)
	avail, err := s.uc.Available(ctx, p.ID, &v.ID)
	s.Require().NoError(err)
	s.Zero(avail)
}

func (s *ReservationSuite) TestFulfillDecrementsLedger() {
	ctx := context.Background()
	p := s.f.variantProduct(s.T(), 1000)
	v := s.f.addVariant(s.T(), p, 4, nil, "Size", "S")

	res, err := s.uc.Reserve(ctx, ReserveInput{Holder: "u1", ProductID: p.ID, VariantID: &v.ID, Quantity: 3})
	s.Require().NoError(err)
	s.Require().NoError(s.uc.Fulfill(ctx, res.ID))
	s.Equal(1, s.f.variantStock(s.T(), v.ID))

	got, err := s.f.store.Reservations().FindByID(ctx, res.ID)
	s.Require().NoError(err)
	s.Equal(domain.ReservationFulfilled, got.Status)

	s.ErrorIs(s.uc.Fulfill(ctx, res.ID), domain.ErrInvalidTransition)
	s.Equal(1, s.f.variantStock(s.T(), v.ID))
}

func (s *ReservationSuite) TestFulfillFailureKeepsHoldActive() {
	ctx := context.Background()
	p := s.f.simpleProduct(s.T(), 1000, 3)
	res, err := s.uc.Reserve(ctx, ReserveInput{Holder: "u1", ProductID: p.ID, Quantity: 3})
	s.Require().NoError(err)

	// stock sold elsewhere after the hold was taken
	s.Require().NoError(s.f.store.Products().DecrementProductStock(ctx, p.ID, 2))

	err = s.uc.Fulfill(ctx, res.ID)
	s.ErrorIs(err, domain.ErrInsufficientStock)
	got, err := s.f.store.Reservations().FindByID(ctx, res.ID)
	s.Require().NoError(err)
	s.Equal(domain.ReservationActive, got.Status)
	s.Equal(1, s.f.reload(s.T(), p.ID).StockQuantity)
}

func (s *ReservationSuite) TestReleaseAndExpire() {
	ctx := context.Background()
	p := s.f.simpleProduct(s.T(), 1000, 10)
	a, err := s.uc.Reserve(ctx, ReserveInput{Holder: "u1", ProductID: p.ID, Quantity: 2})
	s.Require().NoError(err)
	_, err = s.uc.Reserve(ctx, ReserveInput{Holder: "u1", ProductID: p.ID, Quantity: 1})
	s.Require().NoError(err)
	c, err := s.uc.Reserve(ctx, ReserveInput{Holder: "u2", ProductID: p.ID, Quantity: 4, TTL: time.Hour})
	s.Require().NoError(err)

	s.Require().NoError(s.uc.Release(ctx, a.ID))
	s.ErrorIs(s.uc.Release(ctx, a.ID), domain.ErrInvalidTransition)

	n, err := s.uc.ReleaseByReference(ctx, "u1")
	s.Require().NoError(err)
	s.EqualValues(1, n)

	s.now = s.now.Add(30 * time.Minute)
	_, err = s.uc.Extend(ctx, c.ID, time.Hour)
	s.Require().NoError(err)

	s.now = s.now.Add(2 * time.Hour)
	n, err = s.uc.CleanupExpired(ctx)
	s.Require().NoError(err)
	s.EqualValues(1, n)

	got, err := s.f.store.Reservations().FindByID(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(domain.ReservationExpired, got.Status)
	avail, err := s.uc.Available(ctx, p.ID, nil)
	s.Require().NoError(err)
	s.Equal(10, avail)
}

func (s *ReservationSuite) TestExpiredHoldCannotBeExtended() {
	ctx := context.Background()
	p := s.f.simpleProduct(s.T(), 1000, 10)
	res, err := s.uc.Reserve(ctx, ReserveInput{Holder: "u1", ProductID: p.ID, Quantity: 2})
	s.Require().NoError(err)

	s.now = s.now.Add(11 * time.Minute)
	_, err = s.uc.Extend(ctx, res.ID, 0)
	s.ErrorIs(err, domain.ErrInvalidTransition)
	s.ErrorIs(s.uc.Fulfill(ctx, res.ID), domain.ErrInvalidTransition)
}

func TestSweeperStopsOnCancel(t *testing.T) {
	f := newFixture()
	uc := &ReservationUC{Store: f.store, Inventory: f.inventory}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- (&ReservationSweeper{Reservations: uc, Interval: time.Millisecond}).Run(ctx) }()

	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		assert.Fail(t, "sweeper did not stop")
	}
}
