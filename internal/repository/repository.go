package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrConflict signals a lost per-key race: the conditional update on a
	// variant's stock, a coupon's used_count or a wallet's balance matched
	// no row. Callers retry with a fresh read or surface the failure.
	ErrConflict = errors.New("concurrent update conflict")

	// ErrInsufficientStock is returned when a guarded stock decrement would
	// take a variant negative.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrCouponAlreadyUsed is returned when redeeming hits the unique
	// (user, coupon) constraint.
	ErrCouponAlreadyUsed = errors.New("coupon already used by user")
)

// isUniqueViolation reports whether err is a postgres unique-constraint error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
