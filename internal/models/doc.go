// Package models defines the domain types of the media fetch service.
//
// The package contains three groups of types:
//
// 1. Request and routing values
//   - [FetchRequest] : a validated URL plus [MediaKind], immutable per request
//   - [RouteCandidate] : one egress route, direct or through a proxy
//
// 2. Streaming and projection values
//   - [ProgressEvent] : closed union of [Progress], [Finished] and [Failed]
//   - [MediaDetails] : read-only projection of extractor metadata for the info endpoint
//   - [TaskState] : lifecycle of a single download task
//
// 3. Persistent entities
//   - [DownloadRecord] : history row describing a task and its outcome
//
// Persistent entities implement the [Model] interface and are stored through a [Repository].
package models
