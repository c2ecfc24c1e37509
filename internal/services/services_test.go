package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/ports"
	"fintrack/internal/storage/memory"
)

// countingStore records how often the underlying store is touched.
type countingStore struct {
	*memory.Store
	mu    sync.Mutex
	calls int
}

func (c *countingStore) touch() {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
}

func (c *countingStore) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *countingStore) FindByUsername(ctx context.Context, username string) (core.User, error) {
	c.touch()
	return c.Store.FindByUsername(ctx, username)
}

func (c *countingStore) Sum(ctx context.Context, f ports.SumFilter) (core.Money, error) {
	c.touch()
	return c.Store.Sum(ctx, f)
}

func (c *countingStore) FindByOwnerAndPeriod(ctx context.Context, owner int64, p core.Period) ([]core.Transaction, error) {
	c.touch()
	return c.Store.FindByOwnerAndPeriod(ctx, owner, p)
}

type recordingPublisher struct {
	mu      sync.Mutex
	created []core.Transaction
	deleted []core.Transaction
	err     error
}

func (p *recordingPublisher) PublishTransactionCreated(_ context.Context, t core.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, t)
	return p.err
}

func (p *recordingPublisher) PublishTransactionDeleted(_ context.Context, t core.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, t)
	return p.err
}

type fixture struct {
	store  *countingStore
	events *recordingPublisher
	svc    *TransactionService
	alice  core.User
	bob    core.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := &countingStore{Store: memory.New()}
	events := &recordingPublisher{}

	alice, err := store.CreateUser(context.Background(), core.User{Username: "alice", PasswordHash: "x"})
	require.NoError(t, err)
	bob, err := store.CreateUser(context.Background(), core.User{Username: "bob", PasswordHash: "x"})
	require.NoError(t, err)

	return &fixture{
		store:  store,
		events: events,
		svc:    NewTransactionService(store, store, events, nil),
		alice:  alice,
		bob:    bob,
	}
}

func as(u core.User) context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{UserID: u.ID, Username: u.Username, Roles: u.Roles})
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func money(t *testing.T, s string) core.Money {
	t.Helper()
	m, err := core.ParseMoney(s)
	require.NoError(t, err)
	return m
}

func (f *fixture) add(t *testing.T, u core.User, typ core.TransactionType, amount string, d time.Time) core.Transaction {
	t.Helper()
	tx, err := f.svc.Add(as(u), &core.Transaction{Description: "entry", Amount: money(t, amount), Type: typ, Date: d})
	require.NoError(t, err)
	return tx
}

func TestAdd_OverridesOwner(t *testing.T) {
	f := newFixture(t)

	saved, err := f.svc.Add(as(f.alice), &core.Transaction{
		ID:          999,
		Description: "  Salary ",
		Amount:      money(t, "1500.00"),
		Type:        core.Income,
		Date:        date(2024, 1, 5),
		OwnerID:     f.bob.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, f.alice.ID, saved.OwnerID)
	assert.NotEqual(t, int64(999), saved.ID)
	assert.Equal(t, "Salary", saved.Description)

	stored, err := f.store.FindByID(context.Background(), saved.ID)
	require.NoError(t, err)
	assert.Equal(t, f.alice.ID, stored.OwnerID)

	require.Len(t, f.events.created, 1)
	assert.Equal(t, saved, f.events.created[0])
}

func TestAdd_DefaultsDateToNow(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	saved, err := f.svc.Add(as(f.alice), &core.Transaction{Description: "Coffee", Amount: money(t, "2.50"), Type: core.Expense})
	require.NoError(t, err)
	assert.True(t, saved.Date.Equal(now))
}

func TestAdd_Rejections(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		ctx  context.Context
		tx   *core.Transaction
		want error
	}{
		{"nil transaction", as(f.alice), nil, core.ErrInvalidArgument},
		{"empty description", as(f.alice), &core.Transaction{Amount: money(t, "1"), Type: core.Income}, core.ErrEmptyDescription},
		{"zero amount", as(f.alice), &core.Transaction{Description: "x", Type: core.Income}, core.ErrInvalidAmount},
		{"bad type", as(f.alice), &core.Transaction{Description: "x", Amount: money(t, "1"), Type: "GIFT"}, core.ErrInvalidType},
		{"date after 2262", as(f.alice), &core.Transaction{Description: "x", Amount: money(t, "1"), Type: core.Income, Date: date(2300, 6, 1)}, core.ErrDateOutOfRange},
		{"date before 1678", as(f.alice), &core.Transaction{Description: "x", Amount: money(t, "1"), Type: core.Income, Date: date(1500, 1, 1)}, core.ErrDateOutOfRange},
		{"no identity", context.Background(), &core.Transaction{Description: "x", Amount: money(t, "1"), Type: core.Income}, core.ErrUnauthenticated},
		{"vanished user", as(core.User{ID: 42, Username: "ghost"}), &core.Transaction{Description: "x", Amount: money(t, "1"), Type: core.Income}, core.ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Add(tt.ctx, tt.tx)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	all, _ := f.store.FindByOwner(context.Background(), f.alice.ID)
	assert.Empty(t, all)
	assert.Empty(t, f.events.created)
}

func TestAdd_PublishFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("broker down")

	saved, err := f.svc.Add(as(f.alice), &core.Transaction{Description: "x", Amount: money(t, "1"), Type: core.Income})
	require.NoError(t, err)
	assert.NotZero(t, saved.ID)
}

func TestAdd_WithoutPublisher(t *testing.T) {
	f := newFixture(t)
	svc := NewTransactionService(f.store, f.store, nil, nil)

	_, err := svc.Add(as(f.alice), &core.Transaction{Description: "x", Amount: money(t, "1"), Type: core.Income})
	assert.NoError(t, err)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	keep := f.add(t, f.alice, core.Income, "10", date(2024, 1, 1))
	drop := f.add(t, f.alice, core.Expense, "5", date(2024, 1, 2))

	t.Run("missing id leaves store unchanged", func(t *testing.T) {
		err := f.svc.Delete(as(f.alice), 12345)
		assert.ErrorIs(t, err, core.ErrNotFound)
		list, _ := f.svc.ListAll(as(f.alice))
		assert.Len(t, list, 2)
	})

	t.Run("invalid id", func(t *testing.T) {
		assert.ErrorIs(t, f.svc.Delete(as(f.alice), 0), core.ErrInvalidArgument)
	})

	t.Run("foreign transaction is not found", func(t *testing.T) {
		err := f.svc.Delete(as(f.bob), drop.ID)
		assert.ErrorIs(t, err, core.ErrNotFound)
		ok, _ := f.store.ExistsByID(context.Background(), drop.ID)
		assert.True(t, ok)
	})

	t.Run("removes exactly that record", func(t *testing.T) {
		require.NoError(t, f.svc.Delete(as(f.alice), drop.ID))

		list, err := f.svc.ListAll(as(f.alice))
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, keep.ID, list[0].ID)

		require.Len(t, f.events.deleted, 1)
		assert.Equal(t, drop.ID, f.events.deleted[0].ID)
	})
}

func TestListAll_ScopedToCaller(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.alice, core.Income, "10", date(2024, 1, 1))
	f.add(t, f.bob, core.Income, "20", date(2024, 1, 1))

	list, err := f.svc.ListAll(as(f.alice))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, f.alice.ID, list[0].OwnerID)

	_, err = f.svc.ListAll(context.Background())
	assert.ErrorIs(t, err, core.ErrUnauthenticated)
}

func TestSummary_Empty(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.Summary(as(f.alice))
	require.NoError(t, err)
	assert.Equal(t, core.Summary{}, got)
	assert.Equal(t, "0.00", got.Balance.String())
}

func TestSummary_ScopedToCaller(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.alice, core.Income, "100.00", date(2024, 1, 5))
	f.add(t, f.alice, core.Expense, "140.50", date(2024, 2, 5))
	f.add(t, f.bob, core.Income, "1000.00", date(2024, 1, 5))

	got, err := f.svc.Summary(as(f.alice))
	require.NoError(t, err)
	assert.Equal(t, "100.00", got.TotalIncome.String())
	assert.Equal(t, "140.50", got.TotalExpense.String())
	assert.Equal(t, "-40.50", got.Balance.String())
}

func TestSummaryByPeriod(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.alice, core.Income, "100.00", date(2024, 1, 5))
	f.add(t, f.alice, core.Expense, "40.00", date(2024, 1, 10))

	jan, err := f.svc.SummaryByPeriod(as(f.alice), date(2024, 1, 1), date(2024, 1, 31))
	require.NoError(t, err)
	assert.Equal(t, "100.00", jan.TotalIncome.String())
	assert.Equal(t, "40.00", jan.TotalExpense.String())
	assert.Equal(t, "60.00", jan.Balance.String())

	feb, err := f.svc.SummaryByPeriod(as(f.alice), date(2024, 2, 1), date(2024, 2, 28))
	require.NoError(t, err)
	assert.Equal(t, core.Summary{}, feb)
}

func TestSummaryByPeriod_InvalidRangeSkipsStore(t *testing.T) {
	f := newFixture(t)
	before := f.store.Calls()

	_, err := f.svc.SummaryByPeriod(as(f.alice), date(2024, 2, 1), date(2024, 1, 1))
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	assert.ErrorIs(t, err, core.ErrInvalidRange)

	_, err = f.svc.SummaryByPeriod(as(f.alice), time.Time{}, date(2024, 1, 1))
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = f.svc.ListByPeriod(as(f.alice), date(2024, 2, 1), date(2024, 1, 1))
	assert.ErrorIs(t, err, core.ErrInvalidRange)

	assert.Equal(t, before, f.store.Calls())
}

func TestSummaryByPeriod_SameDay(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.alice, core.Income, "5", time.Date(2024, 3, 3, 18, 0, 0, 0, time.UTC))

	got, err := f.svc.SummaryByPeriod(as(f.alice), date(2024, 3, 3), date(2024, 3, 3))
	require.NoError(t, err)
	assert.Equal(t, "5.00", got.TotalIncome.String())
}

func TestListByPeriod_BoundaryInclusive(t *testing.T) {
	f := newFixture(t)
	end := date(2024, 1, 31)

	inside := f.add(t, f.alice, core.Expense, "1", time.Date(2024, 1, 31, 23, 59, 59, 999999999, time.UTC))
	f.add(t, f.alice, core.Expense, "1", end.AddDate(0, 0, 1))
	start := f.add(t, f.alice, core.Expense, "1", date(2024, 1, 1))
	f.add(t, f.bob, core.Expense, "1", date(2024, 1, 15))

	list, err := f.svc.ListByPeriod(as(f.alice), date(2024, 1, 1), end)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, inside.ID, list[0].ID)
	assert.Equal(t, start.ID, list[1].ID)
}

func TestPeriodQueries_DateRange(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.alice, core.Income, "1", core.MinDate)
	f.add(t, f.alice, core.Income, "10", date(2024, 1, 5))
	f.add(t, f.alice, core.Income, "100", core.MaxDate)

	list, err := f.svc.ListByPeriod(as(f.alice), date(1500, 1, 1), date(2024, 1, 31))
	require.NoError(t, err)
	assert.Len(t, list, 2)

	summary, err := f.svc.SummaryByPeriod(as(f.alice), date(2024, 1, 1), date(2400, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, "110.00", summary.TotalIncome.String())

	before := f.store.Calls()
	_, err = f.svc.SummaryByPeriod(as(f.alice), date(2300, 1, 1), date(2301, 1, 1))
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	assert.ErrorIs(t, err, core.ErrDateOutOfRange)
	_, err = f.svc.ListByPeriod(as(f.alice), date(1400, 1, 1), date(1500, 1, 1))
	assert.ErrorIs(t, err, core.ErrDateOutOfRange)
	assert.Equal(t, before, f.store.Calls())
}

func newAccountService(t *testing.T) (*AccountService, *memory.Store, *auth.TokenService) {
	t.Helper()
	store := memory.New()
	tokens := auth.NewTokenService("0123456789abcdef0123456789abcdef", "fintrack", time.Hour)
	return NewAccountService(store, auth.NewPasswordHasher(bcrypt.MinCost), tokens, nil), store, tokens
}

func TestAccountService_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, store, tokens := newAccountService(t)

	user, err := svc.Register(ctx, " alice ", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, []string{core.RoleUser}, user.Roles)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)

	stored, err := store.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)

	session, err := svc.Login(ctx, "alice", "s3cret-pass")
	require.NoError(t, err)
	assert.True(t, tokens.Validate(session.Token))
	assert.Equal(t, "alice", tokens.ExtractUsername(session.Token))
	assert.False(t, session.ExpiresAt.IsZero())

	_, err = svc.Register(ctx, "alice", "another-pass")
	assert.ErrorIs(t, err, core.ErrUsernameTaken)
}

func TestAccountService_LoginFailures(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newAccountService(t)
	_, err := svc.Register(ctx, "alice", "s3cret-pass")
	require.NoError(t, err)

	for _, tc := range []struct{ user, pass string }{
		{"alice", "wrong-pass"},
		{"nobody", "s3cret-pass"},
		{"", ""},
	} {
		_, err := svc.Login(ctx, tc.user, tc.pass)
		assert.ErrorIs(t, err, core.ErrInvalidCredentials, "user=%q", tc.user)
	}
}

func TestAccountService_RegisterValidation(t *testing.T) {
	svc, _, _ := newAccountService(t)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"short username", "al", "long-enough"},
		{"long username", string(make([]byte, 51)), "long-enough"},
		{"bad characters", "al ice", "long-enough"},
		{"short password", "alice", "short"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.username, tt.password)
			assert.ErrorIs(t, err, core.ErrInvalidArgument)
		})
	}
}

func TestAccountService_Current(t *testing.T) {
	svc, _, _ := newAccountService(t)
	user, err := svc.Register(context.Background(), "alice", "s3cret-pass")
	require.NoError(t, err)

	got, err := svc.Current(as(user))
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.Current(context.Background())
	assert.ErrorIs(t, err, core.ErrUnauthenticated)
}
