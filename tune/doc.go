// Package tune runs hyperparameter searches over forecasting models.
//
// A Space maps parameter names to domains or constants:
//
//	space := tune.Space{
//	    "h":             12,
//	    "p":             tune.Choice(0, 1, 2),
//	    "season_length": tune.GridSearch(1, 7),
//	    "learning_rate": tune.LogUniform(1e-3, 1e-1),
//	}
//
// or is read from YAML with LoadSpace. Run draws up to NumSamples parameter
// sets from a Searcher, trains one model per draw with RunTrial and keeps
// every outcome:
//
//	res, err := tune.Run(ctx, &tune.RunConfig{
//	    Space:       space,
//	    NewSearcher: tune.NewBayesSearch(1, nil),
//	    NewModel:    arima.NewModel,
//	    Dataset:     ds,
//	    ValSize:     12,
//	    NumSamples:  20,
//	    Resources:   tune.DetectResources(),
//	})
//	best, ok := res.Best()
//
// Each running trial holds one device unit, a GPU when Resources has GPUs
// and a CPU otherwise, available to the model through
// AllocationFromContext. A failed trial never stops the search; a search
// fails only when no trial succeeds.
package tune
