/*
Copyright 2026 The Poleshift authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package progress carries advisory progress notifications from the
// staging pipeline to whatever displays them.
//
// Delivery is best-effort: events may be dropped, throttled or arrive out
// of order across resources, and a Sink may be called concurrently from
// several goroutines.
package progress

import (
	"encoding/json"
	"fmt"
)

// Kind identifies the pipeline activity an Event reports on.
type Kind string

const (
	// KindDownload reports bytes received from the remote source.
	KindDownload Kind = "download"
	// KindHash reports bytes fed into a digest during verification.
	KindHash Kind = "hash"
	// KindDecompress reports compressed bytes consumed by a decompressor.
	KindDecompress Kind = "decompress"
	// KindStatus reports a phase change of a resource, see Status.
	KindStatus Kind = "status"
)

// Status is the pipeline phase a resource entered.
type Status string

const (
	StatusDownloading   Status = "downloading"
	StatusDecompressing Status = "decompressing"
	StatusComplete      Status = "complete"
	StatusFailed        Status = "failed"
)

// Event is a single progress notification for one resource.
type Event struct {
	Kind Kind
	// Name is the catalog name of the resource.
	Name string
	// Processed is the number of bytes handled so far.
	Processed int64
	// Total is the expected number of bytes, zero when unknown.
	Total int64
	// Status is only set for KindStatus events.
	Status Status
}

// Percent returns the completion ratio in the range [0, 100], or -1 when
// the total is unknown.
func (e Event) Percent() float64 {
	if e.Total <= 0 {
		return -1
	}
	p := float64(e.Processed) / float64(e.Total) * 100
	if p > 100 {
		p = 100
	}
	return p
}

// MarshalJSON encodes the event with the field names the desktop UI
// listens for.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case KindDownload:
		return json.Marshal(struct {
			Event      string `json:"event"`
			Name       string `json:"name"`
			Downloaded int64  `json:"bytes_downloaded"`
			Total      int64  `json:"total_bytes"`
		}{"download-progress", e.Name, e.Processed, e.Total})
	case KindHash:
		return json.Marshal(struct {
			Event  string `json:"event"`
			Name   string `json:"name"`
			Hashed int64  `json:"bytes_hashed"`
			Total  int64  `json:"total_bytes"`
		}{"checksum-progress", e.Name, e.Processed, e.Total})
	case KindDecompress:
		return json.Marshal(struct {
			Event string `json:"event"`
			Name  string `json:"name"`
			Read  int64  `json:"compressed_bytes_read"`
			Total int64  `json:"total_compressed_bytes"`
		}{"decompress-progress", e.Name, e.Processed, e.Total})
	case KindStatus:
		return json.Marshal(struct {
			Event  string `json:"event"`
			Name   string `json:"name"`
			Status Status `json:"status"`
		}{"db-status", e.Name, e.Status})
	default:
		return nil, fmt.Errorf("unknown progress kind %q", e.Kind)
	}
}

// Sink receives progress events. Implementations must be safe for
// concurrent use and should return quickly.
type Sink interface {
	OnProgress(Event)
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(Event)

// OnProgress calls f(e).
func (f SinkFunc) OnProgress(e Event) {
	f(e)
}

type discard struct{}

func (discard) OnProgress(Event) {}

// Discard is a Sink that drops every event.
var Discard Sink = discard{}

// OrDiscard returns s, or Discard when s is nil.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}

// Reporter returns a callback that forwards byte counts for the given
// resource and activity to the sink.
func Reporter(s Sink, kind Kind, name string) func(processed, total int64) {
	s = OrDiscard(s)
	return func(processed, total int64) {
		s.OnProgress(Event{Kind: kind, Name: name, Processed: processed, Total: total})
	}
}

// SendStatus notifies s that the named resource entered status.
func SendStatus(s Sink, name string, status Status) {
	OrDiscard(s).OnProgress(Event{Kind: KindStatus, Name: name, Status: status})
}

// Multi fans every event out to all the given sinks.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(e Event) {
		for _, s := range sinks {
			if s != nil {
				s.OnProgress(e)
			}
		}
	})
}
