package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	blockchainDI "github.com/fd1az/swap-sentinel/business/blockchain/di"
	blockchainDomain "github.com/fd1az/swap-sentinel/business/blockchain/domain"
	swapDI "github.com/fd1az/swap-sentinel/business/swap/di"
	swapDomain "github.com/fd1az/swap-sentinel/business/swap/domain"
	"github.com/fd1az/swap-sentinel/pkg/ui"
)

const (
	statusInterval  = 3 * time.Second
	shutdownTimeout = 15 * time.Second
)

func runTUI(ctx context.Context, cancel context.CancelFunc, a *application, modules []namedModule) error {
	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	// Create and start the TUI program immediately (shows welcome screen)
	p := tea.NewProgram(ui.New(), tea.WithAltScreen(), tea.WithContext(ctx))
	ui.Program = p

	errCh := make(chan error, 1)
	go func() {
		select {
		case <-startSignal:
		case <-ctx.Done():
			errCh <- nil
			return
		}

		ui.Send(ui.StartupMsg{Step: "config", Status: "done"})
		err := a.start(ctx, modules, func(step string, err error) {
			status := "done"
			if err != nil {
				status = "failed"
			}
			ui.Send(ui.StartupMsg{Step: step, Status: status})
		})
		if err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
			errCh <- err
			return
		}

		feedDashboard(ctx, a)
		if a.oneOff != nil {
			go a.executeOneOff(ctx)
		}

		<-ctx.Done()
		a.stop()
		errCh <- nil
	}()

	// Run TUI (blocking)
	_, runErr := p.Run()

	// Quitting the dashboard shuts the modules down too.
	cancel()
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", runErr)
	}

	select {
	case err := <-errCh:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-time.After(shutdownTimeout):
		return errors.New("timed out waiting for modules to stop")
	}
}

// feedDashboard pushes governor state, limits and connection status to the
// dashboard. Swap results and monitor activity arrive through their own
// TUI adapters.
func feedDashboard(ctx context.Context, a *application) {
	sr := a.mono.Services()
	svc := swapDI.GetService(sr)
	governor := svc.Governor()

	ui.Governor = governor
	governor.OnStateChange(func(state swapDomain.GovernorState, reason string) {
		go ui.Send(ui.GovernorMsg{Stopped: state == swapDomain.GovernorEmergencyStopped, Reason: reason})
	})

	limits := governor.Limits()
	msg := ui.LimitsMsg{
		MaxSlippagePercent:  limits.MaxSlippagePercent,
		MaxTransactionValue: limits.MaxTransactionValueNative.String(),
		DeadlineMinutes:     limits.DeadlineMinutes,
		RealTrading:         limits.RealExecutionEnabled,
	}
	if svc.Configured() == nil {
		msg.Signer = svc.SignerAddress().Hex()
	}
	if limits.MaxGasPriceWei != nil {
		msg.MaxGasPriceGwei = blockchainDomain.NewGasPrice(limits.MaxGasPriceWei).Gwei()
	}
	ui.Send(msg)
	ui.Send(ui.GovernorMsg{
		Stopped: governor.State() == swapDomain.GovernorEmergencyStopped,
		Reason:  governor.StopReason(),
	})

	chain := blockchainDI.GetBlockchainService(sr)
	go func() {
		ticker := time.NewTicker(statusInterval)
		defer ticker.Stop()
		for {
			statusCtx, cancel := context.WithTimeout(ctx, statusInterval)
			st := chain.Status(statusCtx)
			cancel()
			ui.Send(ui.ConnectionStatusMsg{
				Name:      "Ethereum",
				Connected: st.State == blockchainDomain.StateConnected,
				State:     string(st.State),
				ViaHTTP:   st.ViaHTTP,
			})
			if st.GasGwei > 0 {
				ui.Send(ui.GasPriceMsg{GweiPrice: st.GasGwei})
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}
