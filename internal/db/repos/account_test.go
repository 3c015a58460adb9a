package repos

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type AccountRepositoryTestSuite struct {
	DBRepositoryTestSuite
}

func TestAccountRepository(t *testing.T) {
	suite.Run(t, new(AccountRepositoryTestSuite))
}

func (s *AccountRepositoryTestSuite) TestDefaultLimit() {
	account := s.createAccount(0)
	s.Equal(40, account.DailyLimit)
}

func (s *AccountRepositoryTestSuite) TestReserveDailySlotStopsAtLimit() {
	account := s.createAccount(2)
	now := time.Date(2030, 5, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		ok, err := s.accountRepo.ReserveDailySlot(s.ctx, account.ID, now)
		s.Require().NoError(err)
		s.True(ok)
	}
	ok, err := s.accountRepo.ReserveDailySlot(s.ctx, account.ID, now)
	s.Require().NoError(err)
	s.False(ok)

	// a new day resets the counter
	ok, err = s.accountRepo.ReserveDailySlot(s.ctx, account.ID, now.Add(24*time.Hour))
	s.Require().NoError(err)
	s.True(ok)

	stored, err := s.accountRepo.GetByID(s.ctx, account.ID)
	s.Require().NoError(err)
	s.Equal(1, stored.DmsSentToday)
	s.Equal("2030-05-02", stored.CounterDate)
}

func (s *AccountRepositoryTestSuite) TestReleaseDailySlot() {
	account := s.createAccount(1)
	now := time.Date(2030, 5, 1, 10, 0, 0, 0, time.UTC)

	ok, err := s.accountRepo.ReserveDailySlot(s.ctx, account.ID, now)
	s.Require().NoError(err)
	s.True(ok)
	s.Require().NoError(s.accountRepo.ReleaseDailySlot(s.ctx, account.ID, now))

	ok, err = s.accountRepo.ReserveDailySlot(s.ctx, account.ID, now)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *AccountRepositoryTestSuite) TestConcurrentReservationsRespectLimit() {
	account := s.createAccount(3)
	now := time.Date(2030, 5, 1, 10, 0, 0, 0, time.UTC)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.accountRepo.ReserveDailySlot(s.ctx, account.ID, now)
			if err != nil || !ok {
				return
			}
			mu.Lock()
			granted++
			mu.Unlock()
		}()
	}
	wg.Wait()
	s.Equal(3, granted)
}

func (s *AccountRepositoryTestSuite) TestGetByIDsAndListActive() {
	a := s.createAccount(5)
	b := s.createAccount(5)

	byID, err := s.accountRepo.GetByIDs(s.ctx, []uint{a.ID, b.ID, 999})
	s.Require().NoError(err)
	s.Len(byID, 2)

	active, err := s.accountRepo.ListActive(s.ctx, testWorkspace)
	s.Require().NoError(err)
	s.Len(active, 2)
}
