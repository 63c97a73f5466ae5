package contracts

// Action is what a decision asks the portfolio to do with one ticker
type Action string

const (
	ActionBuy   Action = "buy"
	ActionSell  Action = "sell"
	ActionShort Action = "short"
	ActionCover Action = "cover"
	ActionHold  Action = "hold"
)

// Valid reports whether a is a known action
func (a Action) Valid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionShort, ActionCover, ActionHold:
		return true
	}
	return false
}

// TradeDecision is one agent instruction for one ticker
type TradeDecision struct {
	Ticker     string  `json:"ticker"`
	Action     Action  `json:"action"`
	Quantity   int64   `json:"quantity"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// TradeStatus tells how much of a decision was applied
type TradeStatus string

const (
	TradeExecuted TradeStatus = "executed"
	TradePartial  TradeStatus = "partial"  // clipped to what cash/margin allowed
	TradeRejected TradeStatus = "rejected" // nothing applied
)

// Trade records the outcome of applying one decision
type Trade struct {
	Ticker    string      `json:"ticker"`
	Action    Action      `json:"action"`
	Requested int64       `json:"requested_quantity"`
	Executed  int64       `json:"executed_quantity"`
	Price     float64     `json:"price"`
	Status    TradeStatus `json:"status"`
	Reason    string      `json:"reason,omitempty"`
}

// PortfolioState is a read-only copy of simulation state
// holdings: 양수 = 롱, 음수 = 숏
type PortfolioState struct {
	Cash              float64            `json:"cash"`
	Holdings          map[string]int64   `json:"holdings"`
	MarginUsed        map[string]float64 `json:"margin_used"`
	MarginRequirement float64            `json:"margin_requirement"`
}

// Clone returns a deep copy
func (p PortfolioState) Clone() PortfolioState {
	out := PortfolioState{
		Cash:              p.Cash,
		Holdings:          make(map[string]int64, len(p.Holdings)),
		MarginUsed:        make(map[string]float64, len(p.MarginUsed)),
		MarginRequirement: p.MarginRequirement,
	}
	for k, v := range p.Holdings {
		out.Holdings[k] = v
	}
	for k, v := range p.MarginUsed {
		out.MarginUsed[k] = v
	}
	return out
}

// Snapshot is the state of a run after one step
type Snapshot struct {
	Step       int                `json:"step"`
	Date       string             `json:"date"`
	Cash       float64            `json:"cash"`
	Holdings   map[string]int64   `json:"holdings"`
	MarginUsed map[string]float64 `json:"margin_used"`
	Prices     map[string]float64 `json:"prices"`
	Trades     []Trade            `json:"trades"`
	Value      float64            `json:"portfolio_value"`
}

// Clone returns a deep copy
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Holdings = make(map[string]int64, len(s.Holdings))
	for k, v := range s.Holdings {
		out.Holdings[k] = v
	}
	out.MarginUsed = make(map[string]float64, len(s.MarginUsed))
	for k, v := range s.MarginUsed {
		out.MarginUsed[k] = v
	}
	out.Prices = make(map[string]float64, len(s.Prices))
	for k, v := range s.Prices {
		out.Prices[k] = v
	}
	out.Trades = append([]Trade{}, s.Trades...)
	return out
}
