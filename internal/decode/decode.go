// Package decode defines the external decoder contract the video source
// depends on and ships two implementations: FFmpeg, which drives the
// ffmpeg/ffprobe binaries as subprocesses, and Synthetic, a deterministic
// in-process fake used by tests.
package decode

import "context"

// Info describes a loaded source, filled in by Open.
type Info struct {
	FrameCount int
	Width      int
	Height     int
	// RateNum/RateDen express the native frame rate as a rational.
	RateNum int
	RateDen int
	Codec   string
}

// RawFrame is one decoded frame at the source's native geometry, always
// RGB24. Index is the frame ordinal the decoder actually produced, which
// Source implementations must honor even when it differs from the
// requested index. internal/videosource rejects a frame whose Index differs
// from the requested one with an InternalError; it does not decode further
// frames to reach the requested index.
type RawFrame struct {
	Index int
	RGB24 []byte
}

// Source is the decoder port. Implementations own one underlying decoder
// handle; Open replaces any previously opened source, and Close releases
// it. Seeking targets the nearest preceding keyframe and decodes forward;
// SeekAndDecode returns once it has produced the frame at frameIndex (or the
// closest the underlying decoder could reach, flagged via the returned
// RawFrame.Index for the caller to validate).
type Source interface {
	// Open opens path, replacing any previously opened source.
	Open(ctx context.Context, path string) (Info, error)

	// SeekAndDecode seeks to the nearest preceding keyframe of frameIndex
	// and decodes forward until it reaches (or passes) frameIndex,
	// returning the frame it landed on.
	SeekAndDecode(ctx context.Context, frameIndex int) (RawFrame, error)

	// Close releases the decoder handle. Idempotent.
	Close() error
}
