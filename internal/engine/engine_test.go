package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/gelotto/lottery-engine/internal/game"
	"github.com/gelotto/lottery-engine/internal/random"
	"github.com/gelotto/lottery-engine/pkg/infra"
	"github.com/gelotto/lottery-engine/pkg/kvstore"
)

const (
	testGameID   = "round-1"
	contractAddr = "contract1"
	ticketPrice  = 100
)

type EngineTestSuite struct {
	suite.Suite
	kv    *kvstore.BadgerStore
	eng   *Engine
	clock *clockwork.FakeClock
}

func TestEngineTestSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (s *EngineTestSuite) SetupTest() {
	kv, err := kvstore.NewInMemoryStore("test", infra.JSON)
	s.Require().NoError(err)
	s.kv = kv
	s.eng = New(kv, testGameID, contractAddr, nil)
	s.clock = clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
}

func (s *EngineTestSuite) TearDownTest() {
	s.kv.Close()
}

// tx builds a call context from the fake clock, with the block height
// advancing one unit per call.
func (s *EngineTestSuite) tx(sender string) TxContext {
	s.clock.Advance(time.Second)
	now := s.clock.Now()
	return TxContext{Sender: sender, BlockHeight: uint64(now.Unix()), BlockTime: now}
}

// txAt keeps the clock still, so the call lands in the same block as the
// previous one.
func (s *EngineTestSuite) txAt(sender string) TxContext {
	now := s.clock.Now()
	return TxContext{Sender: sender, BlockHeight: uint64(now.Unix()), BlockTime: now}
}

func defaultParams() Params {
	return Params{
		ID:          testGameID,
		TicketPrice: decimal.NewFromInt(ticketPrice),
		Asset:       game.Asset{Denom: "ujuno"},
		Selection: game.Selection{
			Kind:        game.SelectionFixed,
			WinnerCount: 3,
			PctSplit:    []uint8{60, 30, 10},
		},
		HasDistinctWinners: true,
	}
}

func (s *EngineTestSuite) instantiate(p Params) {
	_, err := s.eng.Instantiate(s.tx("owner"), p)
	s.Require().NoError(err)
}

func (s *EngineTestSuite) buy(addr string, count uint32) *Result {
	attached := decimal.NewFromInt(ticketPrice * int64(count))
	res, err := s.eng.BuyTickets(s.tx(addr), count, "", attached)
	s.Require().NoError(err)
	return res
}

func (s *EngineTestSuite) TestInstantiateTwice() {
	s.instantiate(defaultParams())
	_, err := s.eng.Instantiate(s.tx("owner"), defaultParams())
	s.ErrorIs(err, game.ErrGameExists)
}

func (s *EngineTestSuite) TestInstantiateValidation() {
	p := defaultParams()
	p.TicketPrice = decimal.Zero
	_, err := s.eng.Instantiate(s.tx("owner"), p)
	s.Equal(game.KindValidation, game.KindOf(err))

	p = defaultParams()
	p.Selection.Kind = "bogus"
	_, err = s.eng.Instantiate(s.tx("owner"), p)
	s.Equal(game.KindValidation, game.KindOf(err))

	p = defaultParams()
	p.Royalties = []game.Royalty{{Address: "a", Pct: 60}, {Address: "b", Pct: 40}}
	_, err = s.eng.Instantiate(s.tx("owner"), p)
	s.Equal(game.KindValidation, game.KindOf(err))
}

func (s *EngineTestSuite) TestBuyTicketsAccounting() {
	s.instantiate(defaultParams())
	s.buy("alice", 2)
	s.buy("bob", 3)
	s.buy("alice", 1)
	s.buy("carol", 5)

	g, err := s.eng.Game()
	s.Require().NoError(err)
	s.Equal(uint32(11), g.TicketCount)
	s.Equal(uint32(3), g.PlayerCount)

	players, err := s.eng.Players()
	s.Require().NoError(err)
	var sum uint32
	for _, p := range players {
		sum += p.TicketCount
	}
	s.Equal(g.TicketCount, sum)

	round, err := s.eng.Round()
	s.Require().NoError(err)
	s.Require().Len(round.Activity, 4)
	var prev uint64
	for _, o := range round.Activity {
		s.Equal(prev+uint64(o.Count), o.CumCount)
		s.Greater(o.CumCount, prev)
		prev = o.CumCount
	}
	s.Equal(uint64(g.TicketCount), prev)

	count, err := s.eng.PlayerTicketCount("alice")
	s.Require().NoError(err)
	s.Equal(uint32(3), count)

	count, err = s.eng.PlayerTicketCount("nobody")
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *EngineTestSuite) TestBuyTicketsAssignsStableIndexes() {
	s.instantiate(defaultParams())
	s.buy("alice", 1)
	s.buy("bob", 1)
	s.buy("alice", 1) // repeat purchase keeps the first index

	idx, found, err := s.eng.players.Index(testGameID, "alice")
	s.Require().NoError(err)
	s.True(found)
	s.Equal(uint32(1), idx)

	addr, found, err := s.eng.players.AddressAt(testGameID, 2)
	s.Require().NoError(err)
	s.True(found)
	s.Equal("bob", addr)
}

func (s *EngineTestSuite) TestBuyTicketsPaymentValidation() {
	s.instantiate(defaultParams())

	_, err := s.eng.BuyTickets(s.tx("alice"), 2, "", decimal.NewFromInt(199))
	s.ErrorIs(err, game.ErrInsufficientFunds)

	_, err = s.eng.BuyTickets(s.tx("alice"), 2, "", decimal.NewFromInt(201))
	s.ErrorIs(err, game.ErrExcessFunds)

	// Failed purchases leave no trace.
	g, err := s.eng.Game()
	s.Require().NoError(err)
	s.Zero(g.TicketCount)
	s.Zero(g.PlayerCount)
}

func (s *EngineTestSuite) TestBuyTicketsTokenAssetPullsAllowance() {
	p := defaultParams()
	p.Asset = game.Asset{TokenAddress: "token1"}
	s.instantiate(p)

	res, err := s.eng.BuyTickets(s.tx("alice"), 2, "", decimal.Zero)
	s.Require().NoError(err)
	s.Require().Len(res.Instructions, 1)

	instr := res.Instructions[0]
	s.Equal("alice", instr.From)
	s.Equal(contractAddr, instr.To)
	s.True(instr.Amount.Equal(decimal.NewFromInt(200)))
}

func (s *EngineTestSuite) TestBuyTicketsMaxPerPlayer() {
	p := defaultParams()
	p.MaxTicketsPerPlayer = 5
	s.instantiate(p)

	s.buy("alice", 3)
	_, err := s.eng.BuyTickets(s.tx("alice"), 3, "", decimal.NewFromInt(300))
	s.ErrorIs(err, game.ErrExceededMaxTicketsPerPlayer)
	s.buy("alice", 2)
}

func (s *EngineTestSuite) TestBuyTicketsZeroCount() {
	s.instantiate(defaultParams())
	_, err := s.eng.BuyTickets(s.tx("alice"), 0, "", decimal.Zero)
	s.ErrorIs(err, game.ErrInvalidTicketCount)
}

func (s *EngineTestSuite) TestEndGameGates() {
	s.instantiate(defaultParams())

	// No players yet.
	_, err := s.eng.EndGame(s.tx("anyone"), "")
	s.ErrorIs(err, game.ErrNoWinners)

	s.buy("alice", 1)
	s.buy("bob", 1)

	_, err = s.eng.EndGame(s.tx("anyone"), "")
	s.Require().NoError(err)

	// Terminal: ending again and buying are both rejected.
	_, err = s.eng.EndGame(s.tx("anyone"), "")
	s.ErrorIs(err, game.ErrNotActive)
	_, err = s.eng.BuyTickets(s.tx("carol"), 1, "", decimal.NewFromInt(ticketPrice))
	s.ErrorIs(err, game.ErrNotActive)
}

func (s *EngineTestSuite) TestEndGameFundingThreshold() {
	p := defaultParams()
	threshold := decimal.NewFromInt(1000)
	p.FundingThreshold = &threshold
	s.instantiate(p)

	s.buy("alice", 4)
	s.buy("bob", 4) // 800 total, under threshold

	_, err := s.eng.EndGame(s.tx("anyone"), "")
	var uft *game.UnderFundingThresholdError
	s.Require().True(errors.As(err, &uft))
	s.True(uft.Threshold.Equal(threshold))

	s.buy("carol", 2) // 1000 meets it
	_, err = s.eng.EndGame(s.tx("anyone"), "")
	s.NoError(err)
}

func (s *EngineTestSuite) TestEndGameDeadlineAndGraceWindow() {
	p := defaultParams()
	deadline := s.clock.Now().Add(time.Hour)
	p.EndsAfter = &deadline
	s.instantiate(p)

	s.buy("alice", 1)
	s.buy("bob", 1)

	// Before the deadline nobody can end the game.
	_, err := s.eng.EndGame(s.tx("anyone"), "")
	s.ErrorIs(err, game.ErrNotAuthorized)

	s.clock.Advance(2 * time.Hour)

	// The deadline passed but sales stay open until EndGame executes.
	s.buy("carol", 1)

	_, err = s.eng.EndGame(s.tx("anyone"), "")
	s.NoError(err)
}

func (s *EngineTestSuite) TestEndGameSinglePlayer() {
	s.instantiate(defaultParams())
	s.buy("alice", 4)

	res, err := s.eng.EndGame(s.tx("ender"), "")
	s.Require().NoError(err)

	winners, err := s.eng.Winners()
	s.Require().NoError(err)
	s.Require().Len(winners, 1)

	w := winners[0]
	s.Equal("alice", w.Address)
	s.Equal(uint32(0), w.Position)
	s.True(w.HasClaimed, "sole winner is pre-marked claimed")
	s.True(w.ClaimAmount.Equal(decimal.NewFromInt(400)), "entire jackpot, no royalty cut")

	s.Require().Len(res.Instructions, 1)
	s.Equal("alice", res.Instructions[0].To)
	s.True(res.Instructions[0].Amount.Equal(decimal.NewFromInt(400)))

	// The pre-marked claim cannot be claimed again.
	_, err = s.eng.ClaimPrize(s.tx("alice"), []uint32{0})
	s.ErrorIs(err, game.ErrNotAuthorized)
}

func (s *EngineTestSuite) TestEndGameFixedSplitWithRoyalty() {
	p := defaultParams()
	p.Royalties = []game.Royalty{{Address: "housefund", Pct: 10}}
	s.instantiate(p)

	s.buy("alice", 2)
	s.buy("bob", 3)
	s.buy("carol", 5)

	res, err := s.eng.EndGame(s.tx("ender"), "")
	s.Require().NoError(err)

	// Jackpot 1000, royalty 100, pool 900.
	s.Require().NotEmpty(res.Instructions)
	s.Equal("housefund", res.Instructions[0].To)
	s.True(res.Instructions[0].Amount.Equal(decimal.NewFromInt(100)))

	winners, err := s.eng.Winners()
	s.Require().NoError(err)
	s.Require().Len(winners, 3)

	want := []int64{540, 270, 90}
	total := decimal.Zero
	seen := map[string]bool{}
	for i, w := range winners {
		s.Equal(uint32(i), w.Position)
		s.True(w.ClaimAmount.Equal(decimal.NewFromInt(want[i])),
			"position %d: got %s", i, w.ClaimAmount)
		s.False(w.HasClaimed)
		s.False(seen[w.Address], "distinct winners must not repeat")
		seen[w.Address] = true
		total = total.Add(w.ClaimAmount)
	}
	s.True(total.LessThanOrEqual(decimal.NewFromInt(900)))
}

func (s *EngineTestSuite) TestEndGamePercentMode() {
	p := defaultParams()
	p.Selection = game.Selection{Kind: game.SelectionPercent, PctPlayerCount: 50}
	s.instantiate(p)

	for _, addr := range []string{"a", "b", "c", "d"} {
		s.buy(addr, 1)
	}

	_, err := s.eng.EndGame(s.tx("ender"), "")
	s.Require().NoError(err)

	winners, err := s.eng.Winners()
	s.Require().NoError(err)
	s.Require().Len(winners, 2)
	for _, w := range winners {
		s.True(w.ClaimAmount.Equal(decimal.NewFromInt(200)), "got %s", w.ClaimAmount)
	}
}

func (s *EngineTestSuite) TestEndGameSameBlockSuspicion() {
	s.instantiate(defaultParams())
	s.buy("alice", 1)
	s.buy("bob", 1)

	// End in the same block as bob's purchase.
	_, err := s.eng.EndGame(s.txAt("ender"), "")
	s.Require().NoError(err)

	g, err := s.eng.Game()
	s.Require().NoError(err)
	s.True(g.Suspect)
}

func (s *EngineTestSuite) TestWinnersEmptyWhileActive() {
	s.instantiate(defaultParams())
	s.buy("alice", 1)

	winners, err := s.eng.Winners()
	s.Require().NoError(err)
	s.Empty(winners)

	round, err := s.eng.Round()
	s.Require().NoError(err)
	s.Empty(round.Winners)
}

func (s *EngineTestSuite) TestClaimPrize() {
	s.instantiate(defaultParams())
	s.buy("alice", 2)
	s.buy("bob", 3)
	s.buy("carol", 5)

	_, err := s.eng.EndGame(s.tx("ender"), "")
	s.Require().NoError(err)

	winners, err := s.eng.Winners()
	s.Require().NoError(err)
	first := winners[0]

	res, err := s.eng.ClaimPrize(s.tx(first.Address), []uint32{first.Position})
	s.Require().NoError(err)
	s.Require().Len(res.Instructions, 1)
	s.Equal(first.Address, res.Instructions[0].To)
	s.True(res.Instructions[0].Amount.Equal(first.ClaimAmount))

	// Idempotent per position: nothing left to claim, no second payout.
	_, err = s.eng.ClaimPrize(s.tx(first.Address), []uint32{first.Position})
	s.ErrorIs(err, game.ErrNotAuthorized)

	// Someone else's position.
	second := winners[1]
	_, err = s.eng.ClaimPrize(s.tx(first.Address), []uint32{second.Position})
	s.ErrorIs(err, game.ErrNotAuthorized)

	// Nonexistent position.
	_, err = s.eng.ClaimPrize(s.tx(first.Address), []uint32{99})
	s.ErrorIs(err, game.ErrNotAuthorized)
}

func (s *EngineTestSuite) TestClaimPrizeBeforeEnd() {
	s.instantiate(defaultParams())
	s.buy("alice", 1)

	_, err := s.eng.ClaimPrize(s.tx("alice"), []uint32{0})
	s.ErrorIs(err, game.ErrNotAuthorized)
}

func (s *EngineTestSuite) TestClaimPrizeAggregatesPositions() {
	// Stage an ended game where one address holds two positions, as a
	// non-distinct game can produce.
	g := &game.Game{
		ID:          testGameID,
		Status:      game.StatusEnded,
		TicketPrice: decimal.NewFromInt(ticketPrice),
		Asset:       game.Asset{Denom: "ujuno"},
	}
	batch := &infra.Batch{}
	s.eng.games.Stage(batch, g)
	s.eng.winners.Stage(batch, testGameID, game.Winner{
		Address: "alice", Position: 0, ClaimAmount: decimal.NewFromInt(600),
	})
	s.eng.winners.Stage(batch, testGameID, game.Winner{
		Address: "alice", Position: 1, ClaimAmount: decimal.NewFromInt(300),
	})
	s.Require().NoError(s.kv.Commit(batch))

	// Duplicate position in the request must not double-count.
	res, err := s.eng.ClaimPrize(s.tx("alice"), []uint32{0, 1, 0})
	s.Require().NoError(err)
	s.Require().Len(res.Instructions, 1)
	s.True(res.Instructions[0].Amount.Equal(decimal.NewFromInt(900)))

	winners, err := s.eng.Winners()
	s.Require().NoError(err)
	for _, w := range winners {
		s.True(w.HasClaimed)
	}
}

func (s *EngineTestSuite) TestSelectWinnersDeterministic() {
	// Replays a fixed finalized seed against the canonical three-order
	// ledger; the expected draw sequence is pinned by the generator.
	g := &game.Game{
		ID:                 testGameID,
		PlayerCount:        3,
		HasDistinctWinners: true,
		Selection: game.Selection{
			Kind:        game.SelectionFixed,
			WinnerCount: 2,
			PctSplit:    []uint8{60, 30},
		},
	}
	batch := &infra.Batch{}
	s.eng.players.Stage(batch, testGameID, "alice", game.Player{TicketCount: 2})
	s.eng.players.Stage(batch, testGameID, "bob", game.Player{TicketCount: 3})
	s.eng.players.Stage(batch, testGameID, "carol", game.Player{TicketCount: 5})
	s.Require().NoError(s.kv.Commit(batch))

	rng, err := random.FromGameSeed("7ib0E3+I4kCPPy6Ft9dTWSykuANDktK70XJHlWyEnAo=")
	s.Require().NoError(err)

	winners, err := s.eng.selectWinners(g, threeOrders(), decimal.NewFromInt(900), rng)
	s.Require().NoError(err)
	s.Require().Len(winners, 2)

	s.Equal("carol", winners[0].Address)
	s.Equal(uint32(5), winners[0].TicketCount)
	s.True(winners[0].ClaimAmount.Equal(decimal.NewFromInt(540)))

	s.Equal("bob", winners[1].Address)
	s.True(winners[1].ClaimAmount.Equal(decimal.NewFromInt(270)))
}

func (s *EngineTestSuite) TestSelectWinnersDrawCap() {
	// Two players, three distinct winners requested: the cap stops the
	// redraw loop and returns the two that exist.
	s.instantiate(defaultParams())
	s.buy("alice", 1)
	s.buy("bob", 1)

	_, err := s.eng.EndGame(s.tx("ender"), "")
	s.Require().NoError(err)

	winners, err := s.eng.Winners()
	s.Require().NoError(err)
	s.LessOrEqual(len(winners), 2)

	seen := map[string]bool{}
	for _, w := range winners {
		s.False(seen[w.Address])
		seen[w.Address] = true
	}
}
