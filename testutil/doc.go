// Package testutil provides test doubles for colbench.
//
// This package is intended for use in tests and benchmarks only.
//
// # Fake Datasets
//
// Dataset answers takes from memory and records how it was called:
//
//	ds := testutil.NewDataset(8, testutil.WithDelay(time.Millisecond))
//	d, _ := dispatch.New([]dispatch.Dataset{ds}, cfg)
//	_, _ = d.Run(ctx, tasks, dispatch.PhaseTimed)
//	ds.Calls()       // number of takes issued
//	ds.MaxInFlight() // peak concurrent takes
//
// # Failure Injection
//
//	testutil.NewDataset(8, testutil.WithFailEvery(3))  // every third take fails
//	testutil.NewDataset(8, testutil.WithPanicEvery(5)) // every fifth take panics
package testutil
