package models

import "errors"

var (
	ErrUnknownPrizeKind  = errors.New("unknown prize kind")
	ErrPrizeMissingGift  = errors.New("gift prizes require a gift_id")
	ErrPrizeMissingValue = errors.New("blockchain prizes require a positive amount")
	ErrPrizeMissingTitle = errors.New("custom prizes require a title")
)

// PrizeKind tags the resource class a prize is drawn from.
type PrizeKind string

const (
	// PrizeKindPooledGift draws from the shared, finite gift inventory.
	PrizeKindPooledGift PrizeKind = "pooled_gift"
	// PrizeKindOnDemandGift is sourced at send time, no reservation.
	PrizeKindOnDemandGift PrizeKind = "ondemand_gift"
	// PrizeKindChainTransfer pays out of the blockchain-transfer budget.
	PrizeKindChainTransfer PrizeKind = "blockchain_transfer"
	// PrizeKindCustom is fulfilled manually by the contest owner.
	PrizeKindCustom PrizeKind = "custom"
)

// Prize is one per-position prize configuration. Only the fields relevant
// to its kind are set; Validate rejects invalid combinations.
type Prize struct {
	Kind PrizeKind `json:"kind"`

	// GiftID identifies the catalog unit for pooled and on-demand gifts.
	GiftID string `json:"gift_id,omitempty"`

	// AmountNano is the transfer amount in nano units for blockchain prizes.
	AmountNano int64  `json:"amount_nano,omitempty"`
	Memo       string `json:"memo,omitempty"`

	// Title describes a custom prize for manual fulfillment.
	Title string `json:"title,omitempty"`

	// Reserved marks an outstanding pool hold taken for this slot at
	// activation. Cancellation releases only slots carrying the mark, and
	// delivery consumes the hold instead of reserving again.
	Reserved bool `json:"reserved,omitempty"`
}

// Validate checks the kind-specific field combination.
func (p *Prize) Validate() error {
	switch p.Kind {
	case PrizeKindPooledGift, PrizeKindOnDemandGift:
		if p.GiftID == "" {
			return ErrPrizeMissingGift
		}
	case PrizeKindChainTransfer:
		if p.AmountNano <= 0 {
			return ErrPrizeMissingValue
		}
	case PrizeKindCustom:
		if p.Title == "" {
			return ErrPrizeMissingTitle
		}
	default:
		return ErrUnknownPrizeKind
	}
	return nil
}
