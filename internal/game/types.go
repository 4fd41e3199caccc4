package game

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusEnded  Status = "ENDED"
)

// SelectionKind discriminates the Selection tagged union. Consumers must
// switch over it exhaustively and treat unknown kinds as an error.
type SelectionKind string

const (
	SelectionFixed   SelectionKind = "fixed"
	SelectionPercent SelectionKind = "percent"
)

// Selection determines how many winners are drawn and how the reward pool
// splits among them. Exactly one variant's fields are meaningful, keyed by
// Kind.
type Selection struct {
	Kind SelectionKind `json:"kind"`

	// Fixed: pct_split[i] percent of the pool goes to the winner at draw
	// position i; positions past the split receive zero.
	WinnerCount    uint32  `json:"winner_count,omitempty"`
	MaxWinnerCount uint32  `json:"max_winner_count,omitempty"` // 0 = unset
	PctSplit       []uint8 `json:"pct_split,omitempty"`

	// Percent: winner count is pct_player_count percent of the player
	// count (at least 1); the pool splits uniformly.
	PctPlayerCount uint8 `json:"pct_player_count,omitempty"`
}

// Royalty is one house-cut recipient, taken off the jackpot before winner
// allocation.
type Royalty struct {
	Address string `json:"address"`
	Pct     uint8  `json:"pct"`
}

// Asset identifies what a ticket is paid in: a native denom, or a token
// contract the engine pulls from via pre-approved allowance.
type Asset struct {
	Denom        string `json:"denom,omitempty"`
	TokenAddress string `json:"token_address,omitempty"`
}

func (a Asset) IsToken() bool {
	return a.TokenAddress != ""
}

// Game is the singleton configuration and lifecycle record for one lottery
// round. It is created once, mutated only by BuyTickets and EndGame, and
// never deleted.
type Game struct {
	ID                  string           `json:"id"`
	Owner               string           `json:"owner"`
	Status              Status           `json:"status"`
	Selection           Selection        `json:"selection"`
	EndsAfter           *time.Time       `json:"ends_after,omitempty"`
	FundingThreshold    *decimal.Decimal `json:"funding_threshold,omitempty"`
	TicketPrice         decimal.Decimal  `json:"ticket_price"`
	Asset               Asset            `json:"asset"`
	TicketCount         uint32           `json:"ticket_count"`
	PlayerCount         uint32           `json:"player_count"`
	OrderCount          uint64           `json:"order_count"`
	HasDistinctWinners  bool             `json:"has_distinct_winners"`
	MaxTicketsPerPlayer uint32           `json:"max_tickets_per_player,omitempty"` // 0 = unlimited
	Royalties           []Royalty        `json:"royalties,omitempty"`

	// Seed is the accumulated randomness digest, base64 text.
	Seed string `json:"seed"`

	// LastOrderHeight feeds the same-block suspicion heuristic at end-game.
	LastOrderHeight uint64 `json:"last_order_height,omitempty"`

	EndedAt *time.Time `json:"ended_at,omitempty"`
	EndedBy string     `json:"ended_by,omitempty"`
	// Suspect marks games ended in the same block as their last purchase.
	// Informational only; settlement proceeds regardless.
	Suspect bool `json:"suspect,omitempty"`
}

// Jackpot is the gross prize pool: every ticket sold at the configured
// price.
func (g *Game) Jackpot() decimal.Decimal {
	return g.TicketPrice.Mul(decimal.NewFromInt(int64(g.TicketCount)))
}

// TicketOrder is one purchase event. CumCount is the running total of
// tickets sold including this order, so the half-open interval
// [CumCount-Count, CumCount) is the slice of the ticket sequence owned by
// this order's buyer.
type TicketOrder struct {
	Owner    string `json:"owner"`
	Count    uint32 `json:"count"`
	CumCount uint64 `json:"cum_count"`
}

// Player is the per-address aggregate.
type Player struct {
	TicketCount uint32 `json:"ticket_count"`
}

// PlayerInfo pairs a player record with its address for query responses.
type PlayerInfo struct {
	Address     string `json:"address"`
	TicketCount uint32 `json:"ticket_count"`
}

// Winner is one claimable prize allocation, keyed by dense draw position.
type Winner struct {
	Address     string          `json:"address"`
	Position    uint32          `json:"position"`
	TicketCount uint32          `json:"ticket_count"`
	ClaimAmount decimal.Decimal `json:"claim_amount"`
	HasClaimed  bool            `json:"has_claimed"`
}

// Round is the full GetRound snapshot: config, order activity, and winners
// (empty until the game has ended).
type Round struct {
	Game     Game          `json:"game"`
	Activity []TicketOrder `json:"activity"`
	Winners  []Winner      `json:"winners"`
}
