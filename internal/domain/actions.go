package domain

import "strings"

// ActionType identifies the variant of a Plan
type ActionType string

const (
	ActionWalletSend    ActionType = "wallet_send"
	ActionScrape        ActionType = "scrape"
	ActionAnalyze       ActionType = "analyze"
	ActionReviewHistory ActionType = "review_history"
	ActionExtendCode    ActionType = "extend_code"
	ActionSwap          ActionType = "swap"
	ActionNoop          ActionType = "noop"
)

var knownActions = map[ActionType]bool{
	ActionWalletSend:    true,
	ActionScrape:        true,
	ActionAnalyze:       true,
	ActionReviewHistory: true,
	ActionExtendCode:    true,
	ActionSwap:          true,
	ActionNoop:          true,
}

// ParseActionType normalizes a model-supplied action name.
// Unknown names map to ActionNoop with ok=false.
func ParseActionType(s string) (ActionType, bool) {
	a := ActionType(strings.ToLower(strings.TrimSpace(s)))
	if knownActions[a] {
		return a, true
	}
	return ActionNoop, false
}

// IsFree reports whether the action gathers context without spending funds or
// touching the repository. Free actions may loop back to REASON.
func (a ActionType) IsFree() bool {
	switch a {
	case ActionAnalyze, ActionScrape, ActionReviewHistory:
		return true
	}
	return false
}

// MovesFunds reports whether the action can change on-chain balances
func (a ActionType) MovesFunds() bool {
	return a == ActionWalletSend || a == ActionSwap
}

func (a ActionType) String() string {
	return string(a)
}
