// Package goforecast builds panel datasets from many time series and tunes
// forecasting models over them.
//
// # Packages
//
//   - panel: long-format tables, left-padded panel tensors, masks and windows
//   - loss: point losses and output domain maps
//   - model: the model contract, configuration record and per-series adapter
//   - arima, baseline: concrete forecasting models
//   - stats: autocorrelation, differencing and residual diagnostics
//   - tune: search spaces, searchers, trial execution and result selection
//   - auto: search-then-refit automatic models
//
// # Quick Start
//
//	ds, err := panel.New(target, &panel.Options{Logger: logger})
//	m, err := auto.NewARIMA(12, nil)
//	err = m.Fit(ctx, ds, 0, 0)
//	fc, err := m.Predict(ctx, ds, 1)
//
// See the demo command for an end-to-end run.
package goforecast
