// Command demo runs an automatic model search on a panel of series read from
// CSV or generated synthetically, then prints the winning configuration and
// its forecasts.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/sartorproj/goforecast/auto"
	"github.com/sartorproj/goforecast/panel"
	"github.com/sartorproj/goforecast/tune"
)

func fail(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func main() {
	args := struct {
		Data         string        `arg:"help:long-format CSV with unique_id, ds and y (default: synthetic panel)"`
		Space        string        `arg:"help:YAML search space (default: the model's own space)"`
		Model        string        `arg:"help:arima, seasonal_naive or window_average"`
		H            int           `arg:"help:forecast horizon"`
		Samples      int           `arg:"help:number of trials"`
		Searcher     string        `arg:"help:basic, random, grid or bayes"`
		Seed         int64         `arg:"help:searcher seed"`
		CPUs         int           `arg:"help:CPU units (default: all)"`
		GPUs         int           `arg:"help:GPU units"`
		TestSize     int           `arg:"help:held-out steps per series"`
		RefitWithVal bool          `arg:"help:refit the winner including the validation region"`
		Timeout      time.Duration `arg:"help:per-trial timeout"`
		Out          string        `arg:"help:checkpoint path for the fitted model"`
		Verbose      bool          `arg:"-v,help:debug logging"`
	}{
		Model:    "arima",
		H:        7,
		Samples:  12,
		Searcher: "basic",
		Seed:     1,
	}
	arg.MustParse(&args)

	logger, err := zap.NewDevelopment()
	if !args.Verbose {
		logger, err = zap.NewProduction()
	}
	fail(err)
	defer logger.Sync()

	target, err := loadTarget(args.Data)
	fail(err)
	ds, err := panel.New(target, &panel.Options{DsInTest: args.TestSize, Logger: logger})
	fail(err)
	fmt.Printf("Panel: %s series, %s rows, longest %d steps, frequency %q\n",
		humanize.Comma(int64(ds.NSeries())), humanize.Comma(int64(target.Len())), ds.MaxLen(), ds.Frequency())

	cfg := auto.DefaultConfig()
	cfg.NumSamples = args.Samples
	cfg.RefitWithVal = args.RefitWithVal
	cfg.TrialTimeout = args.Timeout
	cfg.Logger = logger
	if args.CPUs > 0 {
		cfg.Resources.CPUs = args.CPUs
	}
	cfg.Resources.GPUs = args.GPUs
	cfg.NewSearcher, err = searcher(args.Searcher, args.Seed)
	fail(err)
	if args.Space != "" {
		cfg.Space, err = tune.LoadSpaceFile(args.Space)
		fail(err)
	}

	events := make(chan tune.Event)
	cfg.Progress = events
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			if ev.Result == nil {
				continue
			}
			if ev.Result.Err != nil {
				fmt.Printf("   trial %2d  failed: %v\n", ev.Trial, ev.Result.Err)
				continue
			}
			fmt.Printf("   trial %2d  loss %.4f  %s  %v\n", ev.Trial, ev.Result.Loss, ev.Result.Duration.Round(time.Millisecond), formatParams(ev.Params))
		}
	}()

	var m *auto.AutoModel
	switch args.Model {
	case "arima":
		m, err = auto.NewARIMA(args.H, cfg)
	case "seasonal_naive":
		m, err = auto.NewSeasonalNaive(args.H, cfg)
	case "window_average":
		m, err = auto.NewWindowAverage(args.H, cfg)
	default:
		err = fmt.Errorf("unknown model %q", args.Model)
	}
	fail(err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println(strings.Repeat("=", 80))
	err = m.Fit(ctx, ds, 0, args.TestSize)
	close(events)
	<-done
	fail(err)

	sum := m.Results().Summary()
	best, _ := m.BestParams()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Trials: %d succeeded, %d failed; loss mean %.4f median %.4f min %.4f\n",
		sum.Succeeded, sum.Failed, sum.Mean, sum.Median, sum.Min)
	fmt.Printf("Best: %v\n", formatParams(best))

	fc, err := m.Predict(ctx, ds, 1)
	fail(err)
	for e, id := range fc.Entities {
		for w := 0; w < fc.Windows; w++ {
			fmt.Printf("%-12s after %s: %v\n", id, fc.Cutoff(e, w).Format("2006-01-02"), round(fc.Series(e, w)))
		}
	}

	if args.Out != "" {
		fail(m.Save(args.Out))
		if info, err := os.Stat(args.Out); err == nil {
			fmt.Printf("Saved %s (%s)\n", args.Out, humanize.Bytes(uint64(info.Size())))
		}
	}
}

func loadTarget(path string) (*panel.Table, error) {
	if path == "" {
		return panel.Generate(panel.GenerateOptions{
			NSeries:      4,
			MinLength:    90,
			MaxLength:    180,
			SeasonLength: 7,
			Trend:        0.1,
			Noise:        1,
			Seed:         42,
		}), nil
	}
	return panel.LoadCSV(path, nil)
}

func searcher(name string, seed int64) (tune.SearcherFactory, error) {
	switch name {
	case "basic":
		return tune.NewBasicVariant(seed), nil
	case "random":
		return tune.NewRandomSearch(seed), nil
	case "grid":
		return tune.NewGridSearch(), nil
	case "bayes":
		return tune.NewBayesSearch(seed, nil), nil
	}
	return nil, fmt.Errorf("unknown searcher %q", name)
}

func formatParams(p tune.Params) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		v := p[k]
		if f, ok := v.(float64); ok {
			v = humanize.FormatFloat("#,###.####", f)
		}
		parts[i] = fmt.Sprintf("%s=%v", k, v)
	}
	return strings.Join(parts, " ")
}

func round(values []float64) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = humanize.FormatFloat("#,###.##", v)
	}
	return out
}
