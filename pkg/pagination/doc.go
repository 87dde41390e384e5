// Package pagination retrieves provider availability from the cursor-
// paginated slot endpoint and fans the work out across providers and dates.
//
// The slot endpoint returns availability in bounded pages: each page
// carries a "more" flag and a next_start_time cursor marking where the
// next page begins. Pages within one (provider, date) are strictly
// ordered by that cursor, so a single walk is sequential; the
// parallelism lives one level up, across (provider, date) pairs.
//
// Example usage:
//
//	walker := pagination.NewWalker(apiClient, pagination.DefaultWalkerConfig())
//	scheduler := pagination.NewScheduler(walker, pagination.DefaultSchedulerConfig())
//	results := scheduler.Run(ctx, providers, dates)
//
// The scheduler:
//   - Builds one task per (provider, date) pair
//   - Spawns a worker pool (default 8 workers)
//   - Runs each walk to a terminal result under a per-task timeout
//   - Collects results with progress logging
//   - Captures per-task failures without aborting the run
//
// A run has no fatal outcome: even with every task failed, Run returns
// the full result list and the caller decides what to report.
package pagination
