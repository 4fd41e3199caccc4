// Package engine implements the lottery settlement core: ticket purchase
// accounting, seed accumulation, winner selection, reward allocation, and
// claims. Every operation loads its state at entry, computes the full
// mutation set in memory, and commits it through one atomic storage batch;
// a failure anywhere before commit leaves storage untouched. Outbound
// transfers and registry notifications are returned to the host, which
// executes them only after a successful commit.
package engine

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gelotto/lottery-engine/internal/bank"
	"github.com/gelotto/lottery-engine/internal/events"
	"github.com/gelotto/lottery-engine/internal/game"
	"github.com/gelotto/lottery-engine/internal/random"
	"github.com/gelotto/lottery-engine/internal/store/gamestore"
	"github.com/gelotto/lottery-engine/internal/store/orderstore"
	"github.com/gelotto/lottery-engine/internal/store/playerstore"
	"github.com/gelotto/lottery-engine/internal/store/winnerstore"
	"github.com/gelotto/lottery-engine/pkg/infra"
)

// TxContext is the host-supplied envelope for one externally-sequenced
// call. The engine never reads ambient time or identity; everything comes
// in here.
type TxContext struct {
	Sender      string
	BlockHeight uint64
	BlockTime   time.Time
}

// Result carries the side effects the host must execute after commit.
type Result struct {
	Instructions  []bank.Instruction
	Notifications []events.Notification
}

// Params configures a new game at instantiation.
type Params struct {
	ID                  string
	Selection           game.Selection
	TicketPrice         decimal.Decimal
	Asset               game.Asset
	EndsAfter           *time.Time
	FundingThreshold    *decimal.Decimal
	HasDistinctWinners  bool
	MaxTicketsPerPlayer uint32
	Royalties           []game.Royalty
}

type Engine struct {
	kv      infra.KVStore
	games   gamestore.Store
	orders  orderstore.Store
	players playerstore.Store
	winners winnerstore.Store

	gameID       string
	contractAddr string
	log          *slog.Logger
}

func New(kv infra.KVStore, gameID, contractAddr string, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		kv:           kv,
		games:        gamestore.New(kv),
		orders:       orderstore.New(kv),
		players:      playerstore.New(kv),
		winners:      winnerstore.New(kv),
		gameID:       gameID,
		contractAddr: contractAddr,
		log:          log,
	}
}

// Instantiate creates the singleton game record and seeds the accumulator
// from the game id and current block height. Calling it twice is a state
// error.
func (e *Engine) Instantiate(ctx TxContext, p Params) (*game.Game, error) {
	if _, found, err := e.games.Get(p.ID); err != nil {
		return nil, err
	} else if found {
		return nil, game.ErrGameExists
	}

	if err := validateParams(p); err != nil {
		return nil, err
	}

	g := &game.Game{
		ID:                  p.ID,
		Owner:               ctx.Sender,
		Status:              game.StatusActive,
		Selection:           p.Selection,
		EndsAfter:           p.EndsAfter,
		FundingThreshold:    p.FundingThreshold,
		TicketPrice:         p.TicketPrice,
		Asset:               p.Asset,
		HasDistinctWinners:  p.HasDistinctWinners,
		MaxTicketsPerPlayer: p.MaxTicketsPerPlayer,
		Royalties:           p.Royalties,
		Seed:                random.InitSeed(p.ID, ctx.BlockHeight),
	}

	batch := &infra.Batch{}
	e.games.Stage(batch, g)
	if err := e.kv.Commit(batch); err != nil {
		return nil, err
	}

	e.log.Info("game instantiated", "game", g.ID, "owner", g.Owner,
		"price", g.TicketPrice, "selection", g.Selection.Kind)
	return g, nil
}

func validateParams(p Params) error {
	if p.ID == "" {
		return &game.Error{Kind: game.KindValidation, Msg: "game id is required"}
	}
	if !p.TicketPrice.IsPositive() {
		return &game.Error{Kind: game.KindValidation, Msg: "ticket price must be positive"}
	}
	if p.Asset.Denom == "" && p.Asset.TokenAddress == "" {
		return &game.Error{Kind: game.KindValidation, Msg: "asset is required"}
	}

	switch p.Selection.Kind {
	case game.SelectionFixed:
		if p.Selection.WinnerCount == 0 {
			return &game.Error{Kind: game.KindValidation, Msg: "winner count must be at least 1"}
		}
		total := 0
		for _, pct := range p.Selection.PctSplit {
			total += int(pct)
		}
		if total > 100 {
			return &game.Error{Kind: game.KindValidation, Msg: "pct split exceeds 100"}
		}
	case game.SelectionPercent:
		if p.Selection.PctPlayerCount == 0 || p.Selection.PctPlayerCount > 100 {
			return &game.Error{Kind: game.KindValidation, Msg: "pct player count must be in 1..100"}
		}
	default:
		return &game.Error{Kind: game.KindValidation, Msg: "unknown selection mode"}
	}

	royaltyTotal := 0
	for _, r := range p.Royalties {
		if r.Address == "" {
			return &game.Error{Kind: game.KindValidation, Msg: "royalty address is required"}
		}
		royaltyTotal += int(r.Pct)
	}
	if royaltyTotal >= 100 {
		return &game.Error{Kind: game.KindValidation, Msg: "royalties must leave a reward pool"}
	}
	return nil
}

func (e *Engine) loadGame() (*game.Game, error) {
	g, found, err := e.games.Get(e.gameID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, game.ErrGameNotFound
	}
	return g, nil
}

// BuyTickets records a purchase: player directory, ticket ledger, seed
// accumulator, and game counters all advance together or not at all.
// Purchases stay open after any configured deadline until EndGame actually
// executes (the grace window); only the game status gates sales.
func (e *Engine) BuyTickets(ctx TxContext, ticketCount uint32, phrase string, attached decimal.Decimal) (*Result, error) {
	g, err := e.loadGame()
	if err != nil {
		return nil, err
	}
	if g.Status != game.StatusActive {
		return nil, game.ErrNotActive
	}
	if ticketCount == 0 {
		return nil, game.ErrInvalidTicketCount
	}

	due := g.TicketPrice.Mul(decimal.NewFromInt(int64(ticketCount)))

	result := &Result{}
	if g.Asset.IsToken() {
		// Collected from the buyer's pre-approved allowance by the host.
		result.Instructions = append(result.Instructions,
			bank.Pull(ctx.Sender, e.contractAddr, due, g.Asset))
	} else {
		if err := bank.ValidateAttached(attached, due); err != nil {
			return nil, err
		}
	}

	player, known, err := e.players.Get(g.ID, ctx.Sender)
	if err != nil {
		return nil, err
	}
	newCount := ticketCount
	if known {
		newCount += player.TicketCount
	}
	if g.MaxTicketsPerPlayer > 0 && newCount > g.MaxTicketsPerPlayer {
		return nil, game.ErrExceededMaxTicketsPerPlayer
	}

	batch := &infra.Batch{}
	if !known {
		g.PlayerCount++
		e.players.StageIndex(batch, g.ID, ctx.Sender, g.PlayerCount)
	}
	e.players.Stage(batch, g.ID, ctx.Sender, game.Player{TicketCount: newCount})

	// Game.TicketCount equals the last order's cum_count, so the next
	// cum_count follows without reading the ledger.
	e.orders.Stage(batch, g.ID, g.OrderCount, game.TicketOrder{
		Owner:    ctx.Sender,
		Count:    ticketCount,
		CumCount: uint64(g.TicketCount) + uint64(ticketCount),
	})
	g.OrderCount++

	g.Seed = random.UpdateSeed(g.Seed, ctx.Sender, ticketCount, ctx.BlockHeight, phrase)
	g.TicketCount += ticketCount
	g.LastOrderHeight = ctx.BlockHeight

	e.games.Stage(batch, g)
	if err := e.kv.Commit(batch); err != nil {
		return nil, err
	}

	result.Notifications = append(result.Notifications,
		events.TicketsBought(g.ID, g.TicketCount, g.PlayerCount))

	e.log.Debug("tickets bought", "game", g.ID, "buyer", ctx.Sender,
		"count", ticketCount, "total", g.TicketCount)
	return result, nil
}
