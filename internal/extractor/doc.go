// Package extractor wraps the yt-dlp tool behind the [Client] interface.
//
// A [Client] does two things: Probe fetches metadata without downloading, and
// Fetch downloads one media URL into a caller-chosen output template while
// reporting [Tick] progress. [YTDLP] is the production implementation, built on
// github.com/lrstanley/go-ytdlp, which runs the yt-dlp executable under the
// caller's context so cancelling the context stops the process.
//
// Format selection lives in [FormatFor] and metadata projection in [MediaInfo.Details].
package extractor
