package engine

import (
	"github.com/gelotto/lottery-engine/internal/game"
)

// Game returns the current game record.
func (e *Engine) Game() (*game.Game, error) {
	return e.loadGame()
}

// Winners returns the winner set in draw order. Empty until the game has
// ended.
func (e *Engine) Winners() ([]game.Winner, error) {
	g, err := e.loadGame()
	if err != nil {
		return nil, err
	}
	if g.Status != game.StatusEnded {
		return []game.Winner{}, nil
	}
	return e.winners.All(g.ID)
}

// Players returns every player with its aggregate ticket count.
func (e *Engine) Players() ([]game.PlayerInfo, error) {
	g, err := e.loadGame()
	if err != nil {
		return nil, err
	}
	return e.players.All(g.ID)
}

// PlayerTicketCount returns the aggregate count for one address; zero for
// addresses that never bought in.
func (e *Engine) PlayerTicketCount(addr string) (uint32, error) {
	g, err := e.loadGame()
	if err != nil {
		return 0, err
	}
	p, found, err := e.players.Get(g.ID, addr)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	return p.TicketCount, nil
}

// Round returns the full round snapshot: config, order activity, and the
// winners (empty while the game is active).
func (e *Engine) Round() (*game.Round, error) {
	g, err := e.loadGame()
	if err != nil {
		return nil, err
	}
	orders, err := e.orders.List(g.ID)
	if err != nil {
		return nil, err
	}
	winners := []game.Winner{}
	if g.Status == game.StatusEnded {
		winners, err = e.winners.All(g.ID)
		if err != nil {
			return nil, err
		}
	}
	return &game.Round{Game: *g, Activity: orders, Winners: winners}, nil
}
