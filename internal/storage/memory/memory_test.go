package memory

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ports"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestStore_InsertAndList(t *testing.T) {
	ctx := context.Background()
	s := New()

	a, _ := s.Insert(ctx, core.Transaction{Description: "a", Amount: core.Money{Cents: 100}, Type: core.Income, Date: day(1), OwnerID: 1})
	b, _ := s.Insert(ctx, core.Transaction{Description: "b", Amount: core.Money{Cents: 200}, Type: core.Expense, Date: day(3), OwnerID: 1})
	c, _ := s.Insert(ctx, core.Transaction{Description: "c", Amount: core.Money{Cents: 300}, Type: core.Expense, Date: day(3), OwnerID: 1})
	s.Insert(ctx, core.Transaction{Description: "other", Amount: core.Money{Cents: 999}, Type: core.Income, Date: day(2), OwnerID: 2})

	list, err := s.FindByOwner(ctx, 1)
	if err != nil {
		t.Fatalf("FindByOwner: %v", err)
	}
	want := []int64{c.ID, b.ID, a.ID}
	if len(list) != len(want) {
		t.Fatalf("len = %d, want %d", len(list), len(want))
	}
	for i, tx := range list {
		if tx.ID != want[i] {
			t.Errorf("list[%d].ID = %d, want %d", i, tx.ID, want[i])
		}
	}
}

func TestStore_DeleteAndNotFound(t *testing.T) {
	ctx := context.Background()
	s := New()
	tx, _ := s.Insert(ctx, core.Transaction{Amount: core.Money{Cents: 1}, Type: core.Income, Date: day(1), OwnerID: 1})

	if err := s.DeleteByID(ctx, tx.ID); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}
	if ok, _ := s.ExistsByID(ctx, tx.ID); ok {
		t.Error("transaction still exists after delete")
	}
	if _, err := s.FindByID(ctx, tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("FindByID err = %v, want ErrNotFound", err)
	}
	if err := s.DeleteByID(ctx, tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second DeleteByID err = %v, want ErrNotFound", err)
	}
}

func TestStore_SumAndPeriod(t *testing.T) {
	ctx := context.Background()
	s := New()
	p, _ := core.NewPeriod(day(10), day(20))

	s.Insert(ctx, core.Transaction{Amount: core.Money{Cents: 1}, Type: core.Income, Date: p.Start.Add(-time.Nanosecond), OwnerID: 1})
	s.Insert(ctx, core.Transaction{Amount: core.Money{Cents: 10}, Type: core.Income, Date: p.Start, OwnerID: 1})
	s.Insert(ctx, core.Transaction{Amount: core.Money{Cents: 100}, Type: core.Income, Date: p.End, OwnerID: 1})
	s.Insert(ctx, core.Transaction{Amount: core.Money{Cents: 1000}, Type: core.Income, Date: p.End.Add(time.Nanosecond), OwnerID: 1})
	s.Insert(ctx, core.Transaction{Amount: core.Money{Cents: 5}, Type: core.Expense, Date: day(15), OwnerID: 2})

	tests := []struct {
		name   string
		filter ports.SumFilter
		want   int64
	}{
		{"all income", ports.SumFilter{Type: core.Income}, 1111},
		{"income in period", ports.SumFilter{Type: core.Income, Period: &p}, 110},
		{"owner 2 expense", ports.SumFilter{Type: core.Expense, OwnerID: ports.OwnedBy(2)}, 5},
		{"owner 1 expense", ports.SumFilter{Type: core.Expense, OwnerID: ports.OwnedBy(1), Period: &p}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Sum(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Sum: %v", err)
			}
			if got.Cents != tt.want {
				t.Errorf("Sum = %d, want %d", got.Cents, tt.want)
			}
		})
	}

	list, _ := s.FindByOwnerAndPeriod(ctx, 1, p)
	if len(list) != 2 {
		t.Errorf("FindByOwnerAndPeriod len = %d, want 2", len(list))
	}
}

func TestStore_InsertRejectsUnstorableDate(t *testing.T) {
	s := New()
	_, err := s.Insert(context.Background(), core.Transaction{
		Amount: core.Money{Cents: 1}, Type: core.Income, Date: time.Date(2300, 6, 1, 0, 0, 0, 0, time.UTC), OwnerID: 1,
	})
	if !errors.Is(err, core.ErrInvalidArgument) || !errors.Is(err, core.ErrDateOutOfRange) {
		t.Fatalf("expected out of range date to be rejected, got %v", err)
	}
	if list, _ := s.FindByOwner(context.Background(), 1); len(list) != 0 {
		t.Fatalf("rejected row was stored: %+v", list)
	}
}

func TestStore_SumOverflow(t *testing.T) {
	ctx := context.Background()
	s := New()
	for i := 0; i < 2; i++ {
		s.Insert(ctx, core.Transaction{Amount: core.Money{Cents: math.MaxInt64}, Type: core.Income, Date: day(1), OwnerID: 1})
	}

	if _, err := s.Sum(ctx, ports.SumFilter{Type: core.Income}); !errors.Is(err, core.ErrAmountOverflow) {
		t.Fatalf("expected overflow error, got %v", err)
	}
	if got, err := s.Sum(ctx, ports.SumFilter{Type: core.Expense}); err != nil || got.Cents != 0 {
		t.Fatalf("unrelated sum = %d, %v", got.Cents, err)
	}
}

func TestStore_Users(t *testing.T) {
	ctx := context.Background()
	s := New()

	u, err := s.CreateUser(ctx, core.User{Username: "alice", PasswordHash: "h"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == 0 || len(u.Roles) != 1 || u.Roles[0] != core.RoleUser {
		t.Errorf("unexpected user %+v", u)
	}
	if _, err := s.CreateUser(ctx, core.User{Username: "alice"}); !errors.Is(err, core.ErrUsernameTaken) {
		t.Errorf("duplicate err = %v, want ErrUsernameTaken", err)
	}
	if _, err := s.FindByUsername(ctx, "bob"); !errors.Is(err, core.ErrUserNotFound) {
		t.Errorf("FindByUsername err = %v, want ErrUserNotFound", err)
	}
}

func TestStore_ConcurrentInserts(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Insert(ctx, core.Transaction{Amount: core.Money{Cents: 2}, Type: core.Expense, Date: day(1), OwnerID: 1})
		}()
	}
	wg.Wait()

	got, _ := s.Sum(ctx, ports.SumFilter{Type: core.Expense})
	if got.Cents != 100 {
		t.Errorf("Sum = %d, want 100", got.Cents)
	}
}
