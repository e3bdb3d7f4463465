// Package stats provides autocorrelation and residual diagnostics for the
// forecasting rules in this module.
//
// # Autocorrelation
//
//	acf := stats.ACF(y, 20)   // lags 0..20
//	pacf := stats.PACF(y, 20)
//	phi := stats.YuleWalker(acf, 2)
//
// # Differencing
//
//	levels := stats.DiffN(y, d)        // levels[d] is the differenced series
//	yhat := stats.Integrate(dhat, levels)
//
// # Residual Diagnostics
//
//	lb := stats.LjungBox(residuals, 10, p+q)
//	if lb.PValue > 0.05 {
//	    // Residuals are white noise
//	}
package stats
