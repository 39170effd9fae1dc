package types

// PositionSide is the direction of a position.
type PositionSide string

const (
	SideLong  PositionSide = "LONG"
	SideShort PositionSide = "SHORT"
)

// PositionStatus is the lifecycle state of a position. Everything other than
// StatusActive is terminal.
type PositionStatus string

const (
	StatusActive      PositionStatus = "ACTIVE"
	StatusClosed      PositionStatus = "CLOSED"
	StatusStopped     PositionStatus = "STOPPED"
	StatusProfitTaken PositionStatus = "PROFIT_TAKEN"
)

// IsTerminal reports whether no further entries or exits are accepted.
func (s PositionStatus) IsTerminal() bool {
	return s != StatusActive
}

// EntryKind tags each entry recorded on a position.
type EntryKind string

const (
	EntryInitial   EntryKind = "initial"
	EntryAddOnUp   EntryKind = "add_on_up"
	EntryAddOnDown EntryKind = "add_on_down"
)

// Direction of a grid add relative to the average entry price.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// EntryKind maps a grid direction to the entry tag recorded on the position.
func (d Direction) EntryKind() EntryKind {
	if d == DirectionUp {
		return EntryAddOnUp
	}
	return EntryAddOnDown
}

// Close reasons understood by the position lifecycle.
const (
	ReasonStopLoss    = "stop_loss"
	ReasonTakeProfit  = "take_profit"
	ReasonBacktestEnd = "backtest_end"
	ReasonManual      = "manual"
	ReasonSignal      = "strategy_signal"
)

// Action is the audit tag of a trade record.
type Action string

const (
	ActionOpenShort  Action = "OPEN_SHORT"
	ActionAddOnUp    Action = "ADD_ON_UP"
	ActionAddOnDown  Action = "ADD_ON_DOWN"
	ActionStopLoss   Action = "STOP_LOSS"
	ActionTakeProfit Action = "TAKE_PROFIT"
	ActionForceClose Action = "FORCE_CLOSE"
)
