// Package downloader orchestrates bulk retrieval of playlist items.
//
// A Downloader owns a queue of items and a fixed pool of workers. Each worker
// runs one item at a time through a pipeline of short-circuiting steps:
//
//  1. claim the item id (at most one worker per id per run)
//  2. delete leftovers of interrupted attempts
//  3. wait for disk space
//  4. stop when the item is already in the output dir or the done list
//  5. restore from the cache dir
//  6. honour skip markers until their retry delay passes
//  7. run the extractor, retrying transient failures
//  8. consolidate the outputs and publish them atomically
//
// All state lives in the filesystem, keyed by the naming convention of the
// matcher package, so a run can be interrupted and restarted at any point.
//
// Item level failures never leave the pipeline. Throttling stops every
// further extractor invocation for the run. Anything unexpected aborts the
// run and is returned by Finish.
package downloader
