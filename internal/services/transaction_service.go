package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/ports"
)

// TransactionService exposes the caller-scoped transaction operations. Every
// method reads the caller from the identity the auth gate put in ctx.
type TransactionService struct {
	store  ports.TransactionStore
	users  ports.UserDirectory
	events ports.EventPublisher
	logger *log.Logger
	now    func() time.Time
}

// NewTransactionService wires the service. events may be nil, in which case
// nothing is published.
func NewTransactionService(store ports.TransactionStore, users ports.UserDirectory, events ports.EventPublisher, logger *log.Logger) *TransactionService {
	if logger == nil {
		logger = log.Discard()
	}
	return &TransactionService{
		store:  store,
		users:  users,
		events: events,
		logger: logger.WithComponent(log.ComponentTransaction),
		now:    time.Now,
	}
}

// ListAll returns the caller's transactions, newest first.
func (s *TransactionService) ListAll(ctx context.Context) ([]core.Transaction, error) {
	user, err := resolveCaller(ctx, s.users)
	if err != nil {
		return nil, err
	}
	return s.store.FindByOwner(ctx, user.ID)
}

// Add stores t on behalf of the caller. Any owner or id on t is ignored and a
// zero date defaults to now.
func (s *TransactionService) Add(ctx context.Context, t *core.Transaction) (core.Transaction, error) {
	if t == nil {
		return core.Transaction{}, fmt.Errorf("%w: transaction is required", core.ErrInvalidArgument)
	}

	tx := *t
	tx.ID = 0
	tx.Description = strings.TrimSpace(tx.Description)
	if tx.Date.IsZero() {
		tx.Date = s.now()
	}
	tx.Date = tx.Date.UTC()
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %w", core.ErrInvalidArgument, err)
	}

	user, err := resolveCaller(ctx, s.users)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.OwnerID = user.ID

	saved, err := s.store.Insert(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "Transaction created",
		log.NewFields().
			WithOperation(log.OpCreate).
			WithUser(user.Username).
			WithTransaction(saved.ID, saved.Type.String(), saved.Amount.Cents).
			ToSlice()...)

	if s.events != nil {
		if err := s.events.PublishTransactionCreated(ctx, saved); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish transaction created event",
				log.FieldTransactionID, saved.ID, log.FieldError, err)
		}
	}

	return saved, nil
}

// Delete removes one of the caller's transactions. Ids that do not exist or
// belong to someone else are both reported as core.ErrNotFound.
func (s *TransactionService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: transaction id is required", core.ErrInvalidArgument)
	}

	user, err := resolveCaller(ctx, s.users)
	if err != nil {
		return err
	}

	tx, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if tx.OwnerID != user.ID {
		s.logger.WarnContext(ctx, "Delete of foreign transaction refused",
			log.FieldUser, user.Username, log.FieldTransactionID, id)
		return fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}

	if err := s.store.DeleteByID(ctx, id); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Transaction deleted",
		log.FieldOperation, log.OpDelete, log.FieldUser, user.Username, log.FieldTransactionID, id)

	if s.events != nil {
		if err := s.events.PublishTransactionDeleted(ctx, tx); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish transaction deleted event",
				log.FieldTransactionID, id, log.FieldError, err)
		}
	}
	return nil
}

// Summary totals the caller's income and expense over all time.
func (s *TransactionService) Summary(ctx context.Context) (core.Summary, error) {
	user, err := resolveCaller(ctx, s.users)
	if err != nil {
		return core.Summary{}, err
	}
	return s.summarize(ctx, user.ID, nil)
}

// SummaryByPeriod totals the caller's income and expense between the
// calendar days start and end, both inclusive.
func (s *TransactionService) SummaryByPeriod(ctx context.Context, start, end time.Time) (core.Summary, error) {
	p, err := core.NewPeriod(start, end)
	if err != nil {
		return core.Summary{}, err
	}
	user, err := resolveCaller(ctx, s.users)
	if err != nil {
		return core.Summary{}, err
	}
	return s.summarize(ctx, user.ID, &p)
}

// ListByPeriod returns the caller's transactions between the calendar days
// start and end, both inclusive, newest first.
func (s *TransactionService) ListByPeriod(ctx context.Context, start, end time.Time) ([]core.Transaction, error) {
	p, err := core.NewPeriod(start, end)
	if err != nil {
		return nil, err
	}
	user, err := resolveCaller(ctx, s.users)
	if err != nil {
		return nil, err
	}
	return s.store.FindByOwnerAndPeriod(ctx, user.ID, p)
}

func (s *TransactionService) summarize(ctx context.Context, ownerID int64, p *core.Period) (core.Summary, error) {
	var income, expense core.Money

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		income, err = s.store.Sum(gctx, ports.SumFilter{Type: core.Income, OwnerID: ports.OwnedBy(ownerID), Period: p})
		return err
	})
	g.Go(func() error {
		var err error
		expense, err = s.store.Sum(gctx, ports.SumFilter{Type: core.Expense, OwnerID: ports.OwnedBy(ownerID), Period: p})
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Summary{}, fmt.Errorf("compute summary: %w", err)
	}

	return core.NewSummary(income, expense), nil
}
