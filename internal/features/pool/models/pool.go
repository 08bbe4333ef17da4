package models

import "errors"

var (
	ErrNegativeQuantity = errors.New("quantity must be positive")
	ErrLedgerInvariant  = errors.New("reserved + consumed exceeds total")
)

// PoolEntry tracks one fungible prize unit in the shared gift inventory,
// identified by its external catalog id. The ledger invariant
// reserved + consumed <= total is enforced transactionally by the
// repository, never validated after the fact.
type PoolEntry struct {
	GiftID   string `json:"gift_id"`
	Total    int64  `json:"total"`
	Reserved int64  `json:"reserved"`
	Consumed int64  `json:"consumed"`
}

// Availability returns the unreserved, unconsumed balance.
func (e *PoolEntry) Availability() int64 {
	return e.Total - e.Reserved - e.Consumed
}

// Validate checks the ledger invariant on a loaded entry.
func (e *PoolEntry) Validate() error {
	if e.Total < 0 || e.Reserved < 0 || e.Consumed < 0 {
		return ErrLedgerInvariant
	}
	if e.Reserved+e.Consumed > e.Total {
		return ErrLedgerInvariant
	}
	return nil
}
