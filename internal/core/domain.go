package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"

	RoleUser  = "USER"
	RoleAdmin = "ADMIN"

	// MaxDescriptionLength bounds Transaction.Description in characters.
	MaxDescriptionLength = 100
)

type (
	TransactionType string

	Transaction struct {
		ID          int64
		Description string
		Amount      Money
		Type        TransactionType
		Date        time.Time
		OwnerID     int64 // set by the service from the caller identity
	}

	User struct {
		ID           int64
		Username     string
		PasswordHash string
		Roles        []string
		CreatedAt    time.Time
	}
)

var (
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidType      = errors.New("invalid transaction type")
)

// ParseTransactionType accepts INCOME or EXPENSE in any case.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return t, nil
}

func (t TransactionType) IsValid() bool {
	switch t {
	case Income, Expense:
		return true
	default:
		return false
	}
}

func (t TransactionType) String() string {
	return string(t)
}

func (t Transaction) Validate() error {
	desc := strings.TrimSpace(t.Description)
	if desc == "" {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(desc) > MaxDescriptionLength {
		return fmt.Errorf("description too long (max %d characters)", MaxDescriptionLength)
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Type.IsValid() {
		return ErrInvalidType
	}
	return CheckDate(t.Date)
}

// HasRole reports whether u carries role.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
