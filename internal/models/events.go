package models

import (
	"encoding/json"
	"fmt"
	"math"
)

// Event status values on the wire.
const (
	StatusProgress = "progress"
	StatusFinished = "finished"
	StatusError    = "error"
)

// ProgressEvent is one message on a task's progress stream.
//
// The set of variants is closed: [Progress], [Finished] and [Failed].
type ProgressEvent interface {
	progressEvent()
}

// Progress reports an in-flight transfer.
type Progress struct {
	Percent float64
	Speed   string
	ETA     string
}

// Finished is the terminal success event; DownloadURL points at the delivery endpoint.
type Finished struct {
	DownloadURL string
}

// Failed is the terminal failure event carrying a user-safe message.
type Failed struct {
	Message string
}

func (Progress) progressEvent() {}
func (Finished) progressEvent() {}
func (Failed) progressEvent() {}

// InitialProgress is published before any work starts so clients see the stream is alive.
func InitialProgress() Progress {
	return Progress{Percent: 1, Speed: "Initializing...", ETA: "..."}
}

// IsTerminal reports whether ev ends its stream.
func IsTerminal(ev ProgressEvent) bool {
	switch ev.(type) {
	case Finished, Failed:
		return true
	default:
		return false
	}
}

type progressWire struct {
	Status      string   `json:"status"`
	Percent     *float64 `json:"percent,omitempty"`
	Speed       string   `json:"speed,omitempty"`
	ETA         string   `json:"eta,omitempty"`
	DownloadURL string   `json:"download_url,omitempty"`
	Message     string   `json:"message,omitempty"`
}

// MarshalEvent encodes ev as the JSON object written after `data: ` in the event stream.
func MarshalEvent(ev ProgressEvent) ([]byte, error) {
	var w progressWire
	switch e := ev.(type) {
	case Progress:
		pct := math.Round(clampPercent(e.Percent)*10) / 10
		w = progressWire{Status: StatusProgress, Percent: &pct, Speed: e.Speed, ETA: e.ETA}
	case Finished:
		w = progressWire{Status: StatusFinished, DownloadURL: e.DownloadURL}
	case Failed:
		w = progressWire{Status: StatusError, Message: e.Message}
	default:
		return nil, fmt.Errorf("unknown progress event %T", ev)
	}
	return json.Marshal(w)
}

// UnmarshalEvent decodes a stream payload back into a [ProgressEvent]; used by stream consumers.
func UnmarshalEvent(data []byte) (ProgressEvent, error) {
	var w progressWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to decode progress event: %w", err)
	}
	switch w.Status {
	case StatusProgress:
		var pct float64
		if w.Percent != nil {
			pct = *w.Percent
		}
		return Progress{Percent: pct, Speed: w.Speed, ETA: w.ETA}, nil
	case StatusFinished:
		return Finished{DownloadURL: w.DownloadURL}, nil
	case StatusError:
		return Failed{Message: w.Message}, nil
	default:
		return nil, fmt.Errorf("unknown progress status %q", w.Status)
	}
}

func clampPercent(p float64) float64 {
	switch {
	case math.IsNaN(p) || p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
