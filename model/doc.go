// Package model defines the contract between forecasting models and the
// hyperparameter search.
//
// A Model is trained on a *panel.Dataset and reports its validation loss
// through Callbacks:
//
//	cfg, err := model.ConfigFromParams(map[string]any{"h": 12, "p": 2, "loss": "mae"})
//	cfg.Callbacks = append(cfg.Callbacks, model.CallbackFunc(func(r model.ValidationReport) {
//	    fmt.Println(r.Step, r.Loss)
//	}))
//	m, err := arima.NewModel(cfg)
//	err = m.Fit(ctx, ds, 12, 0)
//	fc, err := m.Predict(ctx, ds, 1)
//
// Univariate lifts a single-series Rule to a panel model, fitting one rule
// per entity.
package model
