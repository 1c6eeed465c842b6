// Package cards implements the image normalization and serving pipeline:
// scanning source directories (component A), transcoding into a
// content-addressed cache (component B), and exposing a read-only card
// registry the room engine draws from (component C).
package cards

import "fmt"

// TransformSpec describes how a source image is normalized into a card
// artifact. Its Tag participates in the cache key alongside the source
// content hash and the pipeline version, so a change to any field the Tag
// encodes invalidates every cached artifact. Encoder and Threads are not
// part of the Tag and are not read by Transcode.
type TransformSpec struct {
	AspectRatio string // e.g. "2:3"
	LongSide    int    // pixels, long edge of the output
	Format      string // "avif" or "jpeg"
	Quality     int
	Speed       int // AVIF encoder speed knob; unused for jpeg
	Encoder     string
	Threads     int
}

// PipelineVersion is bumped whenever the normalization algorithm itself
// changes shape (crop math, default parameters) in a way that must
// invalidate every existing cache artifact even if TransformSpec is
// unchanged.
const PipelineVersion = "v1"

// Tag returns the compact string embedded in cache filenames, encoding
// ratio, long side, format, and encoder parameters.
func (s TransformSpec) Tag() string {
	switch s.Format {
	case "avif":
		return fmt.Sprintf("%s-%d-avif-q%d-s%d", s.AspectRatio, s.LongSide, s.Quality, s.Speed)
	default:
		return fmt.Sprintf("%s-%d-%s-q%d", s.AspectRatio, s.LongSide, s.Format, s.Quality)
	}
}

// Ext returns the artifact file extension for the spec's format.
func (s TransformSpec) Ext() string {
	switch s.Format {
	case "avif":
		return "avif"
	case "jpeg":
		return "jpg"
	default:
		return "bin"
	}
}

// MIME returns the Content-Type for the spec's format.
func (s TransformSpec) MIME() string {
	switch s.Format {
	case "avif":
		return "image/avif"
	case "jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

// SourceRef identifies one accepted source image on disk, path-sorted for
// deterministic card ID assignment.
type SourceRef struct {
	Path string
}

// Card is one entry in the registry: a stable ID bound to a transcoded
// artifact path and its MIME type.
type Card struct {
	ID          string
	SourcePath  string
	ArtifactPath string
	MIME        string
}
