package ton

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/ton/wallet"

	"contest-engine-backend/internal/common/logger"
)

// Sender pays blockchain prizes out of a single hot wallet.
type Sender struct {
	api    ton.APIClientWrapped
	wallet *wallet.Wallet
	log    zerolog.Logger
}

// NewSender connects to the network through the global config and derives
// the payout wallet from the seed phrase.
func NewSender(ctx context.Context, configURL, seedPhrase string) (*Sender, error) {
	pool := liteclient.NewConnectionPool()
	if err := pool.AddConnectionsFromConfigUrl(ctx, configURL); err != nil {
		return nil, fmt.Errorf("connect to ton network: %w", err)
	}
	api := ton.NewAPIClient(pool)

	words := strings.Fields(seedPhrase)
	w, err := wallet.FromSeed(api, words, wallet.V4R2)
	if err != nil {
		return nil, fmt.Errorf("derive wallet from seed: %w", err)
	}

	log := logger.Component("ton")
	log.Info().Str("wallet", w.WalletAddress().String()).Msg("payout wallet ready")

	return &Sender{api: api, wallet: w, log: log}, nil
}

// ValidateAddress reports whether s parses as a TON address in any of the
// accepted forms.
func (s *Sender) ValidateAddress(addr string) bool {
	_, err := address.ParseAddr(addr)
	return err == nil
}

// Transfer sends amountNano to the address and waits for the transaction to
// be accepted by the network.
func (s *Sender) Transfer(ctx context.Context, addr string, amountNano int64, memo string) error {
	to, err := address.ParseAddr(addr)
	if err != nil {
		return fmt.Errorf("parse destination address: %w", err)
	}

	amount := tlb.FromNanoTON(big.NewInt(amountNano))
	if err := s.wallet.Transfer(ctx, to, amount, memo, true); err != nil {
		return fmt.Errorf("wallet transfer: %w", err)
	}

	s.log.Info().
		Str("to", to.String()).
		Str("amount", amount.String()).
		Msg("transfer confirmed")
	return nil
}
