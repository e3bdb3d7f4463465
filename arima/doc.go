// Package arima fits ARIMA(p,d,q) models by conditional sum of squares.
//
// A Model is a single-series rule: Fit estimates it on a gap-free history and
// ForecastFrom continues any history with the fitted coefficients, so the
// same fit serves every rolling origin of a validation or test region.
//
//	m := arima.New(1, 1, 0)
//	if err := m.Fit(y); err != nil {
//	    return err
//	}
//	next, err := m.ForecastFrom(y, 12)
//
// Summary reports the information criteria and a Ljung-Box test on the
// residuals:
//
//	s := m.Summary()
//	fmt.Printf("%v AICc=%.2f Q=%.2f p=%.3f\n", s.Order, s.AICc, s.LjungBox.Statistic, s.LjungBox.PValue)
//
// # Panels
//
// NewModel wraps the rule into a model.Model that fits one ARIMA per entity
// of a panel.Dataset, taking the order from cfg.P, cfg.D and cfg.Q.
// DefaultSpace is the search space used by auto.NewARIMA.
package arima
