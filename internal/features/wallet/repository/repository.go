package repository

import (
	"context"
	"errors"
)

var ErrAddressNotFound = errors.New("wallet address not found")

// WalletRepository stores the wallet address a participant linked for
// blockchain prizes. Address management itself (proof flows, re-linking)
// lives outside the engine; distribution only needs the lookup.
type WalletRepository interface {
	GetAddress(ctx context.Context, telegramID int64) (string, error)
	SetAddress(ctx context.Context, telegramID int64, address string) error
}
