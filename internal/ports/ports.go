package ports

import (
	"context"

	"fintrack/internal/core"
)

// Ports for outbound adapters.
type (
	// SumFilter selects the rows folded into a sum. Nil fields do not filter.
	SumFilter struct {
		Type    core.TransactionType
		OwnerID *int64
		Period  *core.Period
	}

	// TransactionStore persists transactions. Implementations must return
	// core.ErrNotFound for missing ids and a zero Money for sums over no rows.
	TransactionStore interface {
		Insert(ctx context.Context, t core.Transaction) (core.Transaction, error)
		FindByID(ctx context.Context, id int64) (core.Transaction, error)
		ExistsByID(ctx context.Context, id int64) (bool, error)
		DeleteByID(ctx context.Context, id int64) error
		FindByOwner(ctx context.Context, ownerID int64) ([]core.Transaction, error)
		FindByOwnerAndPeriod(ctx context.Context, ownerID int64, p core.Period) ([]core.Transaction, error)
		Sum(ctx context.Context, f SumFilter) (core.Money, error)
	}

	// UserDirectory resolves usernames. A missing user yields core.ErrUserNotFound.
	UserDirectory interface {
		FindByUsername(ctx context.Context, username string) (core.User, error)
	}

	// UserStore extends the directory with registration.
	UserStore interface {
		UserDirectory
		CreateUser(ctx context.Context, u core.User) (core.User, error)
	}

	// EventPublisher announces committed transaction changes.
	EventPublisher interface {
		PublishTransactionCreated(ctx context.Context, t core.Transaction) error
		PublishTransactionDeleted(ctx context.Context, t core.Transaction) error
	}

	// Pinger reports store reachability for readiness checks.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// OwnedBy is a convenience for building a SumFilter owner.
func OwnedBy(ownerID int64) *int64 {
	return &ownerID
}
