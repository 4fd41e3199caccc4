package engine

import (
	"github.com/shopspring/decimal"

	"github.com/gelotto/lottery-engine/internal/bank"
	"github.com/gelotto/lottery-engine/internal/events"
	"github.com/gelotto/lottery-engine/internal/game"
	"github.com/gelotto/lottery-engine/internal/random"
	"github.com/gelotto/lottery-engine/pkg/infra"
)

// EndGame closes ticket sales, finalizes the seed, selects winners, and
// populates the claim ledger. Anyone may call it once the lifecycle gates
// pass; the gates are checked in a fixed order so each failure mode is
// distinct.
func (e *Engine) EndGame(ctx TxContext, phrase string) (*Result, error) {
	g, err := e.loadGame()
	if err != nil {
		return nil, err
	}
	if err := validateEnd(g, ctx); err != nil {
		return nil, err
	}

	g.Seed = random.FinalizeSeed(g.Seed, ctx.Sender, ctx.BlockHeight, phrase)
	g.Status = game.StatusEnded
	endedAt := ctx.BlockTime
	g.EndedAt = &endedAt
	g.EndedBy = ctx.Sender

	// Ending in the same block as the last purchase means the ender could
	// have computed the outcome before the seed was locked. Flag it; this
	// is a heuristic, not a defense.
	if g.LastOrderHeight != 0 && g.LastOrderHeight == ctx.BlockHeight {
		g.Suspect = true
		e.log.Warn("game ended in same block as last purchase",
			"game", g.ID, "height", ctx.BlockHeight, "ended_by", ctx.Sender)
	}

	jackpot := g.Jackpot()
	batch := &infra.Batch{}
	result := &Result{}

	if g.PlayerCount == 1 {
		// Sole player: skip sampling, refund the whole jackpot, pre-mark
		// the claim so no second payout is possible.
		orders, err := e.orders.List(g.ID)
		if err != nil {
			return nil, err
		}
		sole := orders[0].Owner
		player, _, err := e.players.Get(g.ID, sole)
		if err != nil {
			return nil, err
		}
		e.winners.Stage(batch, g.ID, game.Winner{
			Address:     sole,
			Position:    0,
			TicketCount: player.TicketCount,
			ClaimAmount: jackpot,
			HasClaimed:  true,
		})
		result.Instructions = append(result.Instructions,
			bank.Send(sole, jackpot, g.Asset))

		e.games.Stage(batch, g)
		if err := e.kv.Commit(batch); err != nil {
			return nil, err
		}
		result.Notifications = append(result.Notifications, events.GameEnded(g.ID, 1))

		e.log.Info("game ended", "game", g.ID, "winners", 1, "jackpot", jackpot)
		return result, nil
	}

	// Royalty cuts come off the top; the remainder is the reward pool.
	pool := jackpot
	for _, r := range g.Royalties {
		cut := jackpot.Mul(decimal.NewFromInt(int64(r.Pct))).
			Div(decimal.NewFromInt(100)).Floor()
		pool = pool.Sub(cut)
		result.Instructions = append(result.Instructions,
			bank.Send(r.Address, cut, g.Asset))
	}

	orders, err := e.orders.List(g.ID)
	if err != nil {
		return nil, err
	}
	rng, err := random.FromGameSeed(g.Seed)
	if err != nil {
		return nil, err
	}

	winners, err := e.selectWinners(g, orders, pool, rng)
	if err != nil {
		return nil, err
	}
	for _, w := range winners {
		e.winners.Stage(batch, g.ID, w)
	}

	e.games.Stage(batch, g)
	if err := e.kv.Commit(batch); err != nil {
		return nil, err
	}
	result.Notifications = append(result.Notifications,
		events.GameEnded(g.ID, uint32(len(winners))))

	e.log.Info("game ended", "game", g.ID, "winners", len(winners),
		"jackpot", jackpot, "pool", pool, "ended_by", ctx.Sender)
	return result, nil
}

// validateEnd checks the lifecycle gates in order; each produces a distinct
// failure.
func validateEnd(g *game.Game, ctx TxContext) error {
	if g.Status != game.StatusActive {
		return game.ErrNotActive
	}
	if g.PlayerCount == 0 {
		return game.ErrNoWinners
	}
	if g.FundingThreshold != nil && g.Jackpot().LessThan(*g.FundingThreshold) {
		return &game.UnderFundingThresholdError{Threshold: *g.FundingThreshold}
	}
	if g.EndsAfter != nil && !ctx.BlockTime.After(*g.EndsAfter) {
		return game.ErrNotAuthorized
	}
	return nil
}
