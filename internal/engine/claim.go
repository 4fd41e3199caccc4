package engine

import (
	"github.com/shopspring/decimal"

	"github.com/gelotto/lottery-engine/internal/bank"
	"github.com/gelotto/lottery-engine/internal/game"
	"github.com/gelotto/lottery-engine/pkg/infra"
)

// ClaimPrize pays out the caller's unclaimed winner entries at the given
// positions. Entries already claimed are skipped, so re-claims are
// idempotent per position; a missing entry or one recorded for another
// address fails the whole call. If nothing accumulates, the call fails
// with no state change.
func (e *Engine) ClaimPrize(ctx TxContext, positions []uint32) (*Result, error) {
	g, err := e.loadGame()
	if err != nil {
		return nil, err
	}
	if g.Status != game.StatusEnded {
		return nil, game.ErrNotAuthorized
	}

	batch := &infra.Batch{}
	total := decimal.Zero
	processed := make(map[uint32]struct{}, len(positions))
	claimedAny := false

	for _, pos := range positions {
		if _, dup := processed[pos]; dup {
			continue
		}
		processed[pos] = struct{}{}

		w, found, err := e.winners.Get(g.ID, pos)
		if err != nil {
			return nil, err
		}
		if !found || w.Address != ctx.Sender {
			return nil, game.ErrNotAuthorized
		}
		if w.HasClaimed {
			continue
		}

		w.HasClaimed = true
		e.winners.Stage(batch, g.ID, *w)
		total = total.Add(w.ClaimAmount)
		claimedAny = true
	}

	if !claimedAny {
		return nil, game.ErrNotAuthorized
	}

	if err := e.kv.Commit(batch); err != nil {
		return nil, err
	}

	e.log.Info("prize claimed", "game", g.ID, "claimer", ctx.Sender, "amount", total)
	return &Result{
		Instructions: []bank.Instruction{bank.Send(ctx.Sender, total, g.Asset)},
	}, nil
}
