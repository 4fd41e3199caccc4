package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/gelotto/lottery-engine/internal/game"
	"github.com/gelotto/lottery-engine/internal/random"
)

// drawCapFactor bounds the sampling loop at drawCapFactor * target draws.
// With distinct winners required over a small pool the redraw loop could
// otherwise spin a long time; past the cap we settle for however many
// distinct winners were found.
const drawCapFactor = 5

// targetWinnerCount computes how many winners this game draws.
func targetWinnerCount(g *game.Game) (uint32, error) {
	switch g.Selection.Kind {
	case game.SelectionFixed:
		n := min(g.PlayerCount, g.Selection.WinnerCount)
		if g.Selection.MaxWinnerCount > 0 {
			n = min(n, g.Selection.MaxWinnerCount)
		}
		return n, nil
	case game.SelectionPercent:
		n := g.PlayerCount * uint32(g.Selection.PctPlayerCount) / 100
		return max(1, n), nil
	default:
		return 0, &game.Error{Kind: game.KindState, Msg: "unknown selection mode"}
	}
}

// findOrder locates the order whose interval [cum_count-count, cum_count)
// contains x: an iterative bisection over the snapshot's strictly
// increasing cum_count sequence.
func findOrder(orders []game.TicketOrder, x uint64) int {
	return sort.Search(len(orders), func(i int) bool {
		return x < orders[i].CumCount
	})
}

// selectWinners draws winners by weighted sampling over ticket ownership:
// each generator output reduces modulo total tickets sold to a point in the
// ticket sequence, and the order owning that point wins the next position.
// When distinct winners are required, repeat owners are redrawn up to the
// draw cap.
func (e *Engine) selectWinners(g *game.Game, orders []game.TicketOrder, pool decimal.Decimal, rng *random.Pcg64) ([]game.Winner, error) {
	target, err := targetWinnerCount(g)
	if err != nil {
		return nil, err
	}

	totalTickets := orders[len(orders)-1].CumCount
	maxDraws := drawCapFactor * int(target)
	selected := make(map[string]struct{}, target)
	winners := make([]game.Winner, 0, target)

	for draws := 0; len(winners) < int(target) && draws < maxDraws; draws++ {
		x := rng.Next64() % totalTickets
		owner := orders[findOrder(orders, x)].Owner

		if g.HasDistinctWinners {
			if _, dup := selected[owner]; dup {
				continue
			}
		}
		selected[owner] = struct{}{}

		player, _, err := e.players.Get(g.ID, owner)
		if err != nil {
			return nil, err
		}
		position := uint32(len(winners))
		amount, err := allocateReward(g.Selection, pool, position, target)
		if err != nil {
			return nil, err
		}
		winners = append(winners, game.Winner{
			Address:     owner,
			Position:    position,
			TicketCount: player.TicketCount,
			ClaimAmount: amount,
			HasClaimed:  false,
		})
	}

	if len(winners) < int(target) {
		e.log.Warn("draw cap reached before target winner count",
			"game", g.ID, "target", target, "found", len(winners))
	}
	return winners, nil
}

// allocateReward returns the pool share owed to the winner at the given
// draw position. Floor division in the asset's smallest unit throughout;
// any remainder stays with the contract by policy.
func allocateReward(sel game.Selection, pool decimal.Decimal, position, winnerCount uint32) (decimal.Decimal, error) {
	switch sel.Kind {
	case game.SelectionFixed:
		if int(position) >= len(sel.PctSplit) {
			return decimal.Zero, nil
		}
		pct := decimal.NewFromInt(int64(sel.PctSplit[position]))
		return pool.Mul(pct).Div(decimal.NewFromInt(100)).Floor(), nil
	case game.SelectionPercent:
		return pool.Div(decimal.NewFromInt(int64(winnerCount))).Floor(), nil
	default:
		return decimal.Zero, &game.Error{Kind: game.KindState, Msg: "unknown selection mode"}
	}
}
