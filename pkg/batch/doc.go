// Package batch renders many pages in parallel, one independent availability
// load per page.
//
// Pre-rendered result pages (static exports, cached search pages) are filled
// by a worker pool. Each page keeps its own loader, retry budget and
// terminal rendering; a failing page never affects the others.
//
// Example usage:
//
//	jobs := batch.Jobs(inputs, outDir)
//	if err := batch.CheckOutputs(jobs); err != nil {
//		return err
//	}
//	runner := batch.NewRunner(renderer, batch.DefaultConfig())
//	results := runner.Run(ctx, jobs)
//	summary := batch.Summarize(results)
//
// The runner:
//   - Spawns a worker pool (default 4 workers)
//   - Distributes pages across workers
//   - Bounds each page with an optional timeout
//   - Returns one Result per job, in job order
package batch
