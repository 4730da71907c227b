// Package dispatch runs take queries against a set of datasets with a fixed
// amount of concurrency and records per-query latencies.
//
// A Dispatcher owns W workers. Each worker pulls tasks from one shared,
// pre-filled queue and keeps up to C takes in flight through its own
// goroutine pool, so at most W*C takes run at any moment.
//
//	d, err := dispatch.New(datasets, dispatch.Config{Workers: 16, Concurrency: 4})
//	if err != nil {
//		return err
//	}
//	res, err := d.Run(ctx, dispatch.BuildTasks(queries, len(datasets)), dispatch.PhaseTimed)
//
// Every task is consumed exactly once. In the timed phase a failed take adds a
// 0.0 sample unless FailureExclude is configured, so the sample size equals
// the number of tasks by default.
package dispatch
