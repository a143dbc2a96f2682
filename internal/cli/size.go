package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/portfolio/risk"
)

type sizeFlags struct {
	value       float64
	cash        float64
	entry       float64
	stop        float64
	target      float64
	maxLoss     float64
	maxPosition float64
}

func newSizeCmd(rc *RootConfig) *cobra.Command {
	var f sizeFlags

	cmd := &cobra.Command{
		Use:   "size",
		Short: "Size a single entry against the risk policy",
		Example: `  portfolio size --value 100000 --entry 50
  portfolio size --value 100000 --cash 20000 --entry 50 --stop 46 --target 60`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSize(cmd, rc, f)
		},
	}

	cmd.Flags().Float64Var(&f.value, "value", 0, "Portfolio value (default account.cash)")
	cmd.Flags().Float64Var(&f.cash, "cash", 0, "Available cash (default --value)")
	cmd.Flags().Float64Var(&f.entry, "entry", 0, "Entry price (required)")
	cmd.Flags().Float64Var(&f.stop, "stop", 0, "Stop price (default from risk.stop_loss_pct)")
	cmd.Flags().Float64Var(&f.target, "target", 0, "Target price (default from risk.target_pct)")
	cmd.Flags().Float64Var(&f.maxLoss, "max-loss", 0, "Loss budget fraction (default risk.max_loss_pct)")
	cmd.Flags().Float64Var(&f.maxPosition, "max-position", 0, "Position cap fraction (default risk.max_position_pct)")
	_ = cmd.MarkFlagRequired("entry")

	return cmd
}

func runSize(cmd *cobra.Command, rc *RootConfig, f sizeFlags) error {
	p := rc.Config.Risk
	if f.entry <= 0 {
		return errors.New("--entry must be > 0")
	}
	value := f.value
	if value == 0 {
		value = rc.Config.Account.Cash
	}
	cash := f.cash
	if cash == 0 {
		cash = value
	}
	stop, target := risk.Levels(f.entry, p.StopLossPct, p.TargetPct)
	if f.stop != 0 {
		stop = f.stop
	}
	if f.target != 0 {
		target = f.target
	}
	if f.maxLoss != 0 {
		p.MaxLossPct = f.maxLoss
	}
	if f.maxPosition != 0 {
		p.MaxPositionPct = f.maxPosition
	}

	res := risk.Size(risk.SizeInputs{
		PortfolioValue: value,
		EntryPrice:     f.entry,
		StopPrice:      stop,
		MaxLossPct:     p.MaxLossPct,
		MaxPositionPct: p.MaxPositionPct,
		AvailableCash:  cash,
	})

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Entry:          %.2f\n", f.entry)
	fmt.Fprintf(w, "Stop:           %.2f\n", stop)
	fmt.Fprintf(w, "Target:         %.2f\n", target)
	fmt.Fprintf(w, "Reward/Risk:    %.2f\n", risk.RR(f.entry, stop, target))
	fmt.Fprintln(w, "--------------------------------------------------")
	if !res.OK() {
		fmt.Fprintln(w, "Shares:         0 (no trade)")
		return nil
	}
	fmt.Fprintf(w, "Shares:         %d (%s cap)\n", res.Shares, res.Binding())
	fmt.Fprintf(w, "Position value: %.2f (%.2f%%)\n", res.PositionValue, res.PositionValue/value*100)
	fmt.Fprintf(w, "Risk:           %.2f of %.2f budget\n", res.RiskAmount, res.MaxLossAmount)
	fmt.Fprintf(w, "Caps:           risk=%d position=%d cash=%d\n", res.RiskShares, res.CapShares, res.CashShares)
	return nil
}
