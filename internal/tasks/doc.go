// Package tasks runs media downloads in the background and streams their progress.
//
// # Pipeline
//
// A [Service] validates a request, registers a [Task] and starts one goroutine
// for it. The goroutine calls [RunWithFallback] with the route candidates from
// the proxy selector; each attempt is a [Runner.Execute]:
//
//  1. probe the URL for its title
//  2. derive the final file name with [SanitizeTitle]
//  3. download into a task-unique temporary file, publishing progress
//  4. promote the temporary file to its final name
//  5. publish [models.Finished]
//
// When every candidate fails, the last raw error is turned into a user-safe
// message by [Classify] and published as [models.Failed].
//
// # Progress
//
// Each task owns a [Bus], an unbounded FIFO with one producer and one consumer.
// Publishing never blocks the worker. The first event is always
// [models.InitialProgress], exactly one terminal event is delivered, and nothing
// is delivered after it. Progress percentages never go backwards.
//
// # Registry
//
// Running tasks live in a [Registry] from spawn until their terminal event.
// Every task carries its own cancellable context which reaches the extractor
// process; a disconnected stream consumer does not cancel the download.
package tasks
