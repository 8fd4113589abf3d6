package config

import (
	"flag"
	"strconv"
)

// BacktestFlags registers the backtest overrides shared by the CLIs.
// Only flags given on the command line override the loaded config.
type BacktestFlags struct {
	fs *flag.FlagSet

	Segmentation  string
	ReversalRun   int
	LossThreshold int
	StopPolicy    string
	TargetWinRate string
	Format        string
	Delimiter     string
	MinSelected   int
}

// BindBacktestFlags registers the backtest flags on fs.
func BindBacktestFlags(fs *flag.FlagSet) *BacktestFlags {
	d := Default().Backtest
	f := &BacktestFlags{fs: fs}
	fs.StringVar(&f.Segmentation, "segmentation", d.Segmentation, "Segmentation policy: strict, oscillation")
	fs.IntVar(&f.ReversalRun, "reversal-run", d.ReversalRun, "Opposite trades that close an oscillation segment")
	fs.IntVar(&f.LossThreshold, "threshold", d.LossThreshold, "Consecutive losses that start following")
	fs.StringVar(&f.StopPolicy, "stop-policy", d.StopPolicy, "Stop policy: single_win, win_rate")
	fs.StringVar(&f.TargetWinRate, "target", "", "Target win rate in percent for win_rate")
	fs.StringVar(&f.Format, "format", d.Format, "Trade ledger format: auto, directional, signed")
	fs.StringVar(&f.Delimiter, "delimiter", d.Delimiter, "Field delimiter: tab, comma or a single character")
	fs.IntVar(&f.MinSelected, "min-selected", d.MinSelected, "Selected segments required for a verdict")
	return f
}

// Apply copies every flag that was set onto cfg.
func (f *BacktestFlags) Apply(cfg *Config) error {
	var err error
	f.fs.Visit(func(fl *flag.Flag) {
		b := &cfg.Backtest
		switch fl.Name {
		case "segmentation":
			b.Segmentation = f.Segmentation
		case "reversal-run":
			b.ReversalRun = f.ReversalRun
		case "threshold":
			b.LossThreshold = f.LossThreshold
		case "stop-policy":
			b.StopPolicy = f.StopPolicy
		case "target":
			v, perr := strconv.ParseFloat(f.TargetWinRate, 64)
			if perr != nil {
				err = perr
				return
			}
			b.TargetWinRate = &v
			// a target alone implies the win-rate policy
			if !f.set("stop-policy") {
				b.StopPolicy = "win_rate"
			}
		case "format":
			b.Format = f.Format
		case "delimiter":
			b.Delimiter = f.Delimiter
		case "min-selected":
			b.MinSelected = f.MinSelected
		}
	})
	if err != nil {
		return err
	}
	return cfg.Validate()
}

func (f *BacktestFlags) set(name string) bool {
	found := false
	f.fs.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			found = true
		}
	})
	return found
}
