package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/azrion/storefront/internal/dto"
	"github.com/azrion/storefront/internal/repository"
)

type WalletService struct {
	walletRepo repository.WalletRepository
	orderRepo  repository.OrderRepository
}

func NewWalletService(walletRepo repository.WalletRepository, orderRepo repository.OrderRepository) *WalletService {
	return &WalletService{walletRepo: walletRepo, orderRepo: orderRepo}
}

func (s *WalletService) Get(ctx context.Context, userID uuid.UUID) (*dto.WalletResponse, error) {
	wallet, err := s.walletRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return &dto.WalletResponse{Balance: wallet.Balance}, nil
}

func (s *WalletService) Transactions(ctx context.Context, userID uuid.UUID, page, limit int) (*dto.WalletTransactionsResponse, error) {
	txs, total, err := s.walletRepo.Transactions(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("list wallet transactions: %w", err)
	}

	resp := &dto.WalletTransactionsResponse{Total: total, Page: page, Limit: limit}
	for _, t := range txs {
		resp.Transactions = append(resp.Transactions, dto.WalletTransactionResponse{
			ID: t.ID, Type: t.Type, Amount: t.Amount, Description: t.Description, CreatedAt: t.CreatedAt,
		})
	}
	return resp, nil
}

// Adjust is the staff correction path: positive amounts credit, negative
// amounts debit with the usual non-negative guard.
func (s *WalletService) Adjust(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string) error {
	if amount.IsZero() {
		return validationErr("Adjustment amount cannot be zero.")
	}
	if description == "" {
		return validationErr("A description is required for wallet adjustments.")
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if amount.IsPositive() {
		err = s.walletRepo.Credit(ctx, tx, userID, amount, description)
	} else {
		err = s.walletRepo.Debit(ctx, tx, userID, amount.Neg(), description)
		if err == repository.ErrConflict {
			return validationErr("Adjustment would make the wallet balance negative.")
		}
	}
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}
