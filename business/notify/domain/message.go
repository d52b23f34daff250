// Package domain holds the notification events and message formatting.
package domain

import (
	"fmt"
	"strings"
	"time"

	swapDomain "github.com/fd1az/swap-sentinel/business/swap/domain"
	"github.com/fd1az/swap-sentinel/internal/asset"
)

// Event selects which outcomes are forwarded to the operator.
type Event string

const (
	EventSwapExecuted  Event = "swap_executed"
	EventSwapFailed    Event = "swap_failed"
	EventSwapDryRun    Event = "swap_dry_run"
	EventEmergencyStop Event = "emergency_stop"
)

// ParseEvent accepts the configured event names.
func ParseEvent(s string) (Event, error) {
	switch e := Event(strings.ToLower(strings.TrimSpace(s))); e {
	case EventSwapExecuted, EventSwapFailed, EventSwapDryRun, EventEmergencyStop:
		return e, nil
	default:
		return "", fmt.Errorf("unknown notification event %q", s)
	}
}

// Message is one notification, ready for any channel.
type Message struct {
	Event Event
	Title string
	Body  string
	Time  time.Time
}

// EventFor maps a swap outcome to its event.
func EventFor(res swapDomain.ExecutionResult) Event {
	switch {
	case res.Success && res.DryRun:
		return EventSwapDryRun
	case res.Success:
		return EventSwapExecuted
	default:
		return EventSwapFailed
	}
}

// AssetLookup resolves a swap asset to its symbol and decimals. Unknown
// assets are printed by address with raw amounts.
type AssetLookup func(swapDomain.AssetRef) (*asset.Asset, bool)

// FromResult renders a swap outcome. lookup may be nil.
func FromResult(res swapDomain.ExecutionResult, lookup AssetLookup) Message {
	ev := EventFor(res)

	var title string
	switch ev {
	case EventSwapDryRun:
		title = "Swap dry run passed"
	case EventSwapExecuted:
		title = "Swap executed"
	default:
		if res.Broadcast {
			title = "Swap failed after broadcast"
		} else {
			title = fmt.Sprintf("Swap rejected at %s", res.Stage)
		}
	}

	in, inKnown := resolve(lookup, res.Request.AssetIn)
	out, outKnown := resolve(lookup, res.Request.AssetOut)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s -> %s\n", res.Request.AmountIn, label(in, res.Request.AssetIn), label(out, res.Request.AssetOut))
	if res.Request.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", res.Request.Reason)
	}
	if q := res.Quote; q != nil {
		if outKnown {
			fmt.Fprintf(&b, "Expected out: %s (min %s)\n",
				asset.NewAmount(out, q.EstimatedOutput), asset.NewAmount(out, q.MinOutputAfterSlippage))
		} else {
			fmt.Fprintf(&b, "Expected out: %s (min %s)\n", q.EstimatedOutput, q.MinOutputAfterSlippage)
		}
		if inKnown && outKnown {
			if p, ok := asset.Implied(asset.NewAmount(in, q.AmountIn), asset.NewAmount(out, q.EstimatedOutput)); ok {
				fmt.Fprintf(&b, "Rate: %s\n", p.Readable())
			}
		}
	}
	if cost := res.EstimatedCostWei(); cost != nil {
		fmt.Fprintf(&b, "Est. gas cost: %s ETH\n", asset.FormatUnits(cost, 18).StringFixed(6))
	}
	if res.TxHash != nil {
		fmt.Fprintf(&b, "Tx: %s\n", res.TxHash.Hex())
	}
	if block, ok := res.BlockNumber(); ok {
		gas, _ := res.GasUsed()
		fmt.Fprintf(&b, "Block: %d, gas used %d\n", block, gas)
	}
	if res.Err != nil {
		fmt.Fprintf(&b, "Error [%s]: %v\n", res.Category(), res.Err)
	}
	fmt.Fprintf(&b, "Request: %s", res.RequestID)

	return Message{Event: ev, Title: title, Body: b.String(), Time: res.CompletedAt}
}

func resolve(lookup AssetLookup, ref swapDomain.AssetRef) (*asset.Asset, bool) {
	if lookup == nil {
		return nil, false
	}
	a, ok := lookup(ref)
	return a, ok && a != nil
}

func label(a *asset.Asset, ref swapDomain.AssetRef) string {
	if a != nil {
		return a.Symbol()
	}
	return ref.String()
}

// FromGovernor renders an emergency-stop transition. Resuming is reported
// under the same event.
func FromGovernor(state swapDomain.GovernorState, reason string, at time.Time) Message {
	if state == swapDomain.GovernorEmergencyStopped {
		body := "All swap execution is halted until trading is resumed."
		if reason != "" {
			body = "Reason: " + reason + "\n" + body
		}
		return Message{Event: EventEmergencyStop, Title: "Emergency stop", Body: body, Time: at}
	}
	return Message{Event: EventEmergencyStop, Title: "Trading resumed", Body: "Swap execution is enabled again.", Time: at}
}
