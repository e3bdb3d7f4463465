// Package panel builds dense, left-padded tensors from multi-entity time series.
//
// A panel is described by long-format tables keyed by (unique_id, ds): a
// target table with a "y" column, optional exogenous covariates, an optional
// static table with one row per entity, and an optional mask table.
//
// # Building a Dataset
//
//	target := panel.NewTable(ids, times).With("y", values)
//	ds, err := panel.New(target, &panel.Options{
//	    Exogenous:     exog,
//	    Static:        static,
//	    DsInTest:      12,
//	    FutureColumns: []string{"price"},
//	})
//
// New sorts every table by key, rejects any misalignment between them and
// lays each entity out right-aligned on a common time axis:
//
//	ds.NSeries()   // entities
//	ds.NChannels() // y, exogenous columns, available_mask, sample_mask
//	ds.MaxLen()    // longest series
//	ds.At(e, c, t) // zero in the padded region
//
// # Masks
//
// Without a mask table, DefaultMask holds out the last DsInTest timestamps of
// every entity (sample_mask = 0). IsTest inverts the marking.
//
// # Windows
//
// FilteredTensor slices the most recent history for model training:
//
//	w, err := ds.FilteredTensor(horizon, 128, nil)
//	y := w.Series(0, 0)
//	padded := w.Padded()   // append w.RightPadding zero slots
//	t := w.Tensor()        // gomlx tensor [entities, channels, len]
//
// # Loading from CSV
//
//	target, err := panel.LoadCSV("y.csv", nil)
//	static, err := panel.LoadCSV("s.csv", &panel.CSVOptions{Static: true})
package panel
