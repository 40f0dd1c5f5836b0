package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/azrion/storefront/internal/model"
)

type WalletRepository interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*model.Wallet, error)

	// Credit adds funds and writes the transaction row inside the caller's
	// transaction.
	Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, description string) error
	// Debit withdraws funds inside the caller's transaction; the balance guard
	// makes it fail with ErrConflict rather than go negative.
	Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, description string) error

	Transactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.WalletTransaction, int, error)
}

type pgWalletRepo struct{ pool *pgxpool.Pool }

func NewWalletRepository(pool *pgxpool.Pool) WalletRepository {
	return &pgWalletRepo{pool: pool}
}

func (r *pgWalletRepo) GetOrCreate(ctx context.Context, userID uuid.UUID) (*model.Wallet, error) {
	w := &model.Wallet{}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO wallets (id, user_id, balance, created_at, updated_at) VALUES ($1, $2, 0, NOW(), NOW())
		 ON CONFLICT (user_id) DO UPDATE SET updated_at = wallets.updated_at
		 RETURNING id, user_id, balance, created_at, updated_at`,
		uuid.New(), userID,
	).Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get or create wallet: %w", err)
	}
	return w, nil
}

func (r *pgWalletRepo) Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, description string) error {
	var walletID uuid.UUID
	err := tx.QueryRow(ctx,
		`INSERT INTO wallets (id, user_id, balance, created_at, updated_at) VALUES ($1, $2, $3, NOW(), NOW())
		 ON CONFLICT (user_id) DO UPDATE SET balance = wallets.balance + $3, updated_at = NOW()
		 RETURNING id`,
		uuid.New(), userID, amount,
	).Scan(&walletID)
	if err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}
	return r.record(ctx, tx, walletID, model.TransactionCredit, amount, description)
}

func (r *pgWalletRepo) Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, description string) error {
	var walletID uuid.UUID
	err := tx.QueryRow(ctx,
		`UPDATE wallets SET balance = balance - $2, updated_at = NOW()
		 WHERE user_id = $1 AND balance >= $2 RETURNING id`,
		userID, amount,
	).Scan(&walletID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrConflict
		}
		return fmt.Errorf("debit wallet: %w", err)
	}
	return r.record(ctx, tx, walletID, model.TransactionDebit, amount, description)
}

func (r *pgWalletRepo) record(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, kind model.TransactionType, amount decimal.Decimal, description string) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO wallet_transactions (id, wallet_id, type, amount, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())`,
		uuid.New(), walletID, kind, amount, description,
	)
	if err != nil {
		return fmt.Errorf("record wallet transaction: %w", err)
	}
	return nil
}

func (r *pgWalletRepo) Transactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.WalletTransaction, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM wallet_transactions t JOIN wallets w ON w.id = t.wallet_id WHERE w.user_id = $1`,
		userID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count wallet transactions: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT t.id, t.wallet_id, t.type, t.amount, t.description, t.created_at
		 FROM wallet_transactions t JOIN wallets w ON w.id = t.wallet_id
		 WHERE w.user_id = $1 ORDER BY t.created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list wallet transactions: %w", err)
	}
	defer rows.Close()

	var txs []model.WalletTransaction
	for rows.Next() {
		var t model.WalletTransaction
		if err := rows.Scan(&t.ID, &t.WalletID, &t.Type, &t.Amount, &t.Description, &t.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan wallet transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, total, nil
}
