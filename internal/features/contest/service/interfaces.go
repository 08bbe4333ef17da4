package service

import "context"

// PrizeSender delivers a pooled or on-demand gift to a winner. Boundary
// with the messaging platform.
type PrizeSender interface {
	SendGift(ctx context.Context, recipientID int64, giftRef, message string) error
}

// ChainTransfer is the blockchain boundary for transfer prizes.
type ChainTransfer interface {
	Transfer(ctx context.Context, address string, amountNano int64, memo string) error
	ValidateAddress(address string) bool
}

// CommentValidator is the anti-spam gate invoked before a comment action is
// offered to the scoring engine.
type CommentValidator interface {
	ValidateComment(text string) (valid bool, reason string)
}
