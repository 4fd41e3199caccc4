// Package bank models the outbound payment-transfer instructions the engine
// returns alongside its state changes. The engine never moves funds itself;
// the host executes these after (and contingent on) a successful commit.
package bank

import (
	"github.com/shopspring/decimal"

	"github.com/gelotto/lottery-engine/internal/game"
)

type InstructionKind string

const (
	// KindSend transfers from the contract's balance to a recipient:
	// a native bank send, or a token-contract transfer when the asset is
	// a token.
	KindSend InstructionKind = "send"
	// KindPull transfers from a payer's pre-approved token allowance into
	// the contract. Only valid for token assets; native payments arrive
	// attached to the call instead.
	KindPull InstructionKind = "pull"
)

type Instruction struct {
	Kind   InstructionKind `json:"kind"`
	From   string          `json:"from,omitempty"` // pull only
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
	Asset  game.Asset      `json:"asset"`
}

// Send pays out from the contract to a recipient.
func Send(to string, amount decimal.Decimal, asset game.Asset) Instruction {
	return Instruction{Kind: KindSend, To: to, Amount: amount, Asset: asset}
}

// Pull collects a token payment from the payer's allowance.
func Pull(from, contract string, amount decimal.Decimal, asset game.Asset) Instruction {
	return Instruction{Kind: KindPull, From: from, To: contract, Amount: amount, Asset: asset}
}

// ValidateAttached checks an exact-amount native payment. The caller must
// attach precisely the amount due; anything else is rejected so no funds
// need refunding.
func ValidateAttached(attached, due decimal.Decimal) error {
	switch attached.Cmp(due) {
	case -1:
		return game.ErrInsufficientFunds
	case 1:
		return game.ErrExcessFunds
	}
	return nil
}
