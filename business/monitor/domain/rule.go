package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	swapDomain "github.com/fd1az/swap-sentinel/business/swap/domain"
)

// ReactionRule maps a classification to a swap. Token and Direction are
// optional filters.
type ReactionRule struct {
	Kind      Kind
	Token     *common.Address
	Direction Direction
	Swap      swapDomain.SwapParams
}

// NewReactionRule parses the rule and checks that its swap parameters
// are well formed, so bad rules fail at startup rather than per match.
func NewReactionRule(kind, token, direction string, swap swapDomain.SwapParams) (ReactionRule, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return ReactionRule{}, err
	}
	d, err := ParseDirection(direction)
	if err != nil {
		return ReactionRule{}, err
	}

	rule := ReactionRule{Kind: k, Direction: d, Swap: swap}
	if token != "" {
		if !common.IsHexAddress(token) {
			return ReactionRule{}, fmt.Errorf("invalid rule token %q", token)
		}
		addr := common.HexToAddress(token)
		rule.Token = &addr
	}

	if _, err := swap.Parse(); err != nil {
		return ReactionRule{}, fmt.Errorf("rule %s: %w", k, err)
	}
	return rule, nil
}

func (r ReactionRule) Matches(c Classification) bool {
	if r.Kind != c.Kind {
		return false
	}
	if r.Direction != "" && r.Direction != c.Direction {
		return false
	}
	if r.Token != nil && (c.Token == nil || c.Token.Address != *r.Token) {
		return false
	}
	return true
}

// FirstMatch returns the first rule matching c.
func FirstMatch(rules []ReactionRule, c Classification) (ReactionRule, bool) {
	for _, r := range rules {
		if r.Matches(c) {
			return r, true
		}
	}
	return ReactionRule{}, false
}

// Request builds the swap parameters for a match, with the trigger as
// the reason.
func (r ReactionRule) Request(c Classification) swapDomain.SwapParams {
	p := r.Swap
	p.Reason = c.Reason()
	return p
}
