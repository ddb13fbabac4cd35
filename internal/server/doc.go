// Package server exposes the download service over HTTP.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] registers
// method-qualified [http.ServeMux] patterns ("GET /tasks/{id}"), so wildcards are available
// through [http.Request.PathValue] and method mismatches get a 405 from the mux.
//
// [Middleware] wraps handlers in reverse order (last added executes first). The stack used by
// [New] is [RequestID], [Recovery] and [Logging]; [RateLimit] guards the endpoints that start
// extractor work.
//
// # Endpoints
//
//	POST   /get-video-info        metadata for {"url": ...}
//	GET    /download              starts a task and streams its progress as server-sent events
//	POST   /start-download        starts a task and returns its id
//	GET    /progress-stream/{id}  streams the progress of a task started with /start-download
//	GET    /get-file/{filename}   delivers a finished file once, then deletes it
//	GET    /tasks                 running tasks
//	DELETE /tasks/{id}            cancels a running task
//	GET    /history               recent downloads, when a history database is configured
//	GET    /health                liveness and yt-dlp availability
//
// Each progress frame is "data: <json>\n\n" where the JSON object carries a "status" of
// "progress", "finished" or "error". A stream always ends with exactly one finished or error frame.
package server
