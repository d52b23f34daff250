// Package infra contains infrastructure adapters for the swap context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fd1az/swap-sentinel/business/swap/app"
	"github.com/fd1az/swap-sentinel/business/swap/domain"
	"github.com/fd1az/swap-sentinel/internal/asset"
)

var _ app.ResultSink = (*ConsoleReporter)(nil)

const rule = "================================================================================"

// ConsoleReporter prints every result in CLI mode.
type ConsoleReporter struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{out: os.Stdout}
}

// NewConsoleReporterTo writes to w instead of stdout.
func NewConsoleReporterTo(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: w}
}

// Publish writes the result synchronously; writes to stdout don't block
// long enough to matter.
func (r *ConsoleReporter) Publish(_ context.Context, res domain.ExecutionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, rule)
	fmt.Fprintln(r.out, headline(res))
	fmt.Fprintln(r.out, rule)
	fmt.Fprintf(r.out, "Request:        %s\n", res.RequestID)
	fmt.Fprintf(r.out, "Completed:      %s (%s)\n", res.CompletedAt.Format(time.RFC3339), res.Duration.Round(time.Millisecond))
	fmt.Fprintf(r.out, "Swap:           %s %s -> %s\n", res.Request.AmountIn, res.Request.AssetIn, res.Request.AssetOut)
	if res.Request.Reason != "" {
		fmt.Fprintf(r.out, "Reason:         %s\n", res.Request.Reason)
	}

	if q := res.Quote; q != nil {
		fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
		fmt.Fprintln(r.out, "QUOTE")
		fmt.Fprintf(r.out, "  Estimated out:  %s\n", q.EstimatedOutput)
		fmt.Fprintf(r.out, "  Minimum out:    %s\n", q.MinOutputAfterSlippage)
		fmt.Fprintf(r.out, "  Fee tier:       %d\n", q.FeeTier)
	}
	if s := res.Simulation; s != nil {
		fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
		fmt.Fprintln(r.out, "SIMULATION")
		fmt.Fprintf(r.out, "  Gas estimate:   %d (limit %d)\n", s.GasEstimate, s.GasLimit)
		fmt.Fprintf(r.out, "  Est. cost:      %s ETH\n", asset.FormatUnits(s.EstimatedCostWei, 18).StringFixed(6))
	}
	if res.TxHash != nil {
		fmt.Fprintf(r.out, "Tx:             %s\n", res.TxHash.Hex())
	}
	if rc := res.Receipt; rc != nil {
		fmt.Fprintf(r.out, "Block:          #%d  gas used %d\n", rc.BlockNumber, rc.GasUsed)
	}
	if res.Err != nil {
		fmt.Fprintf(r.out, "Error:          [%s] %v\n", res.Category(), res.Err)
	}
	fmt.Fprintln(r.out, rule)
}

func headline(res domain.ExecutionResult) string {
	switch {
	case res.Success && res.DryRun:
		return "SWAP DRY RUN OK"
	case res.Success:
		return "SWAP EXECUTED"
	case res.Broadcast:
		return "SWAP FAILED AFTER BROADCAST"
	default:
		return "SWAP REJECTED (" + string(res.Stage) + ")"
	}
}
