// Package videosource implements the algorithmic heart of the daemon: the
// single shared object that owns the decoder handle, the output format,
// all playback state, and the frame cache. Every mutating operation
// serializes under one mutex, matching the "one switcher, many observers"
// concurrency model grounded on the mutex-guarded shared-resource style of
// zsiec-prism's distribution/relay.go.
package videosource

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zsiec/vtsourced/internal/cache"
	"github.com/zsiec/vtsourced/internal/colorspace"
	"github.com/zsiec/vtsourced/internal/decode"
	"github.com/zsiec/vtsourced/internal/format"
	"github.com/zsiec/vtsourced/internal/metrics"
	"github.com/zsiec/vtsourced/internal/protocol"
	"github.com/zsiec/vtsourced/internal/scale"
)

// recognizedExtensions are the file suffixes LIST considers video files,
// compared case-insensitively.
var recognizedExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".m4v":  true,
	".webm": true,
}

// PlaybackState is the advisory play/pause/stop state of the Source.
type PlaybackState int

const (
	Stopped PlaybackState = iota
	Playing
	Paused
)

// String renders the wire-form name of a PlaybackState.
func (s PlaybackState) String() string {
	switch s {
	case Playing:
		return "PLAYING"
	case Paused:
		return "PAUSED"
	default:
		return "STOPPED"
	}
}

// SourceInfo describes a loaded file. The zero value represents
// "nothing loaded."
type SourceInfo struct {
	Path       string
	FrameCount int
	Width      int
	Height     int
	RateNum    int
	RateDen    int
	Codec      string
}

// Frame is an immutable, fully-produced frame ready to put on the wire:
// the 16-byte header plus its payload.
type Frame struct {
	Header  protocol.FrameHeader
	Payload []byte
}

// FrameInfo is a Frame's metadata without its payload, returned by
// FRAMEINFO and STATUS-adjacent queries.
type FrameInfo struct {
	Sequence    uint32
	TimestampMS uint32
	Width       uint16
	Height      uint16
	Colorspace  byte
	Flags       byte
}

// AdvanceResult reports the outcome of Next/Prev.
type AdvanceResult struct {
	Frame   int
	AtStart bool
	AtEnd   bool
}

// Source is the shared video source. All exported methods are safe for
// concurrent use; callers never need their own locking.
type Source struct {
	log *slog.Logger

	decoderFactory func() decode.Source
	scaler         scale.Scaler

	// mediaRoot is the directory LOAD and LIST resolve relative paths
	// against; empty means the process's working directory.
	mediaRoot string

	mu sync.Mutex

	decoder decode.Source
	info    SourceInfo
	loaded  bool

	outFormat format.OutputFormat
	loop      bool
	state     PlaybackState
	current   int

	cache *cache.LRU
	met   *metrics.Metrics
}

// SetMetrics attaches a metrics sink used to record decode timings and
// frames served. Optional; a nil sink (the default) disables recording.
func (s *Source) SetMetrics(m *metrics.Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.met = m
}

// Option configures a Source at construction.
type Option func(*Source)

// WithCacheCapacity overrides the default LRU cache capacity.
func WithCacheCapacity(capacity int) Option {
	return func(s *Source) { s.cache = cache.New(capacity) }
}

// WithScaler overrides the default CatmullRom scaler, mainly for tests.
func WithScaler(sc scale.Scaler) Option {
	return func(s *Source) { s.scaler = sc }
}

// WithMediaRoot sets the directory LOAD and LIST resolve relative paths
// against, matching media_root in original_source's vtsource daemon. An
// empty root (the default) falls back to the process's working directory.
func WithMediaRoot(root string) Option {
	return func(s *Source) { s.mediaRoot = root }
}

// New builds a Source. decoderFactory constructs a fresh decode.Source each
// time LOAD opens a new file: the decoder handle is opened on LOAD and
// closed on re-LOAD.
func New(log *slog.Logger, decoderFactory func() decode.Source, opts ...Option) *Source {
	s := &Source{
		log:            log,
		decoderFactory: decoderFactory,
		scaler:         scale.CatmullRom{},
		outFormat:      format.Default(),
		cache:          cache.New(cache.DefaultCapacity),
		state:          Stopped,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// resolvePath resolves path against mediaRoot when path is relative (or
// empty, returning the root itself), falling back to the process's working
// directory when mediaRoot is unset. An already-absolute path is returned
// unchanged.
func (s *Source) resolvePath(path string) (string, error) {
	if path != "" && filepath.IsAbs(path) {
		return path, nil
	}

	root := s.mediaRoot
	if root == "" {
		var err error
		root, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}
	if path == "" {
		return root, nil
	}
	return filepath.Join(root, path), nil
}

// Load opens path as the current source, replacing any previously loaded
// one. A relative path is resolved against the configured media root.
func (s *Source) Load(ctx context.Context, path string) (SourceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resolved, err := s.resolvePath(path)
	if err != nil {
		return SourceInfo{}, protocol.Internal("cannot resolve media root")
	}

	if _, err := os.Stat(resolved); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return SourceInfo{}, protocol.NotFound("File not found: %s", resolved)
		}
		return SourceInfo{}, protocol.Internal("stat failed: %s", resolved)
	}

	if s.decoder != nil {
		_ = s.decoder.Close()
		s.decoder = nil
	}
	s.loaded = false

	dec := s.decoderFactory()
	info, err := dec.Open(ctx, resolved)
	if err != nil {
		s.log.Debug("load: decoder open failed", "path", resolved, "err", err)
		return SourceInfo{}, protocol.Internal("failed to open source: %s", resolved)
	}

	s.decoder = dec
	s.info = SourceInfo{
		Path:       resolved,
		FrameCount: info.FrameCount,
		Width:      info.Width,
		Height:     info.Height,
		RateNum:    info.RateNum,
		RateDen:    info.RateDen,
		Codec:      info.Codec,
	}
	s.loaded = true
	s.current = 0
	s.state = Stopped
	s.cache.Clear()

	return s.info, nil
}

// List enumerates recognized video files directly under dir (non-recursive),
// sorted case-insensitively. dir == "" defaults to the configured media
// root, or the process's working directory if none is configured.
func (s *Source) List(dir string) ([]string, error) {
	resolved, err := s.resolvePath(dir)
	if err != nil {
		return nil, protocol.Internal("cannot resolve working directory")
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, protocol.NotFound("File not found: %s", resolved)
		}
		return nil, protocol.Internal("cannot list directory: %s", resolved)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if recognizedExtensions[ext] {
			names = append(names, e.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	return names, nil
}

// SourceInfo returns the currently loaded source's metadata, and whether a
// source is loaded at all.
func (s *Source) SourceInfo() (SourceInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info, s.loaded
}

// resolveKey applies the "omitted key uses CurrentFrame" and
// loop-wraps-out-of-range rules shared by GetFrame, FrameInfo, and Seek.
// Must be called with s.mu held.
func (s *Source) resolveKey(key *int) (int, error) {
	if !s.loaded {
		return 0, protocol.Unloaded("no source loaded")
	}

	k := s.current
	if key != nil {
		k = *key
	}

	if k < 0 || k >= s.info.FrameCount {
		if s.loop && s.info.FrameCount > 0 {
			k = ((k % s.info.FrameCount) + s.info.FrameCount) % s.info.FrameCount
		} else {
			return 0, protocol.Invalid("frame index out of range: %d", k)
		}
	}
	return k, nil
}

// timestampMS computes the presentation timestamp for frame index k under
// the source's native frame rate, rounded to the nearest millisecond.
func (s *Source) timestampMS(k int) uint32 {
	if s.info.RateNum == 0 {
		return 0
	}
	ms := float64(k) * 1000 * float64(s.info.RateDen) / float64(s.info.RateNum)
	return uint32(math.RoundToEven(ms))
}

func (s *Source) flagsFor(k int) byte {
	var flags byte
	if k == 0 {
		flags |= protocol.FlagKeyframe
	}
	if s.info.FrameCount > 0 && k == s.info.FrameCount-1 {
		flags |= protocol.FlagEndOfStream
	}
	return flags
}

// produce decodes, scales, and converts frame index k into the active
// output format, consulting and populating the cache. Must be called with
// s.mu held.
func (s *Source) produce(ctx context.Context, k int) ([]byte, error) {
	outW, outH := s.outFormat.Geometry()
	key := cache.Key{Frame: k, Standard: int(s.outFormat.Standard), Colorspace: int(s.outFormat.Colorspace)}

	if buf, ok := s.cache.Get(key); ok {
		if s.met != nil {
			s.met.FramesServedTotal.WithLabelValues(s.outFormat.Colorspace.String()).Inc()
		}
		return buf, nil
	}

	decodeStart := time.Now()
	raw, err := s.decoder.SeekAndDecode(ctx, k)
	if s.met != nil {
		s.met.DecodeDuration.Observe(time.Since(decodeStart).Seconds())
	}
	if err != nil {
		s.log.Debug("produce: decode failed", "frame", k, "err", err)
		return nil, protocol.Internal("decode failed for frame %d", k)
	}
	if raw.Index != k {
		s.log.Debug("produce: decoder landed on a different frame than requested", "want", k, "got", raw.Index)
		return nil, protocol.Internal("decode failed for frame %d", k)
	}

	rgb := raw.RGB24
	width, height := s.info.Width, s.info.Height
	if width != outW || height != outH {
		scaled := s.scaler.Scale(scale.RGB24Image{Pix: rgb, Width: width, Height: height}, outW, outH)
		rgb = scaled.Pix
		width, height = outW, outH
	}

	out, err := colorspace.Convert(rgb, width, height, s.outFormat.Colorspace)
	if err != nil {
		return nil, protocol.Internal("colorspace conversion failed for frame %d", k)
	}

	s.cache.Put(key, out)
	if s.met != nil {
		s.met.FramesServedTotal.WithLabelValues(s.outFormat.Colorspace.String()).Inc()
	}
	return out, nil
}

// GetFrame produces the fully rendered Frame for key (or CurrentFrame if
// key is nil), updating CurrentFrame as a side effect.
func (s *Source) GetFrame(ctx context.Context, key *int) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, err := s.resolveKey(key)
	if err != nil {
		return Frame{}, err
	}

	payload, err := s.produce(ctx, k)
	if err != nil {
		return Frame{}, err
	}

	s.current = k
	outW, outH := s.outFormat.Geometry()

	return Frame{
		Header: protocol.FrameHeader{
			Sequence:    uint32(k),
			TimestampMS: s.timestampMS(k),
			Width:       uint16(outW),
			Height:      uint16(outH),
			Colorspace:  byte(s.outFormat.Colorspace),
			Flags:       s.flagsFor(k),
		},
		Payload: payload,
	}, nil
}

// FrameInfo returns a Frame's metadata without decoding its payload. It
// does not update CurrentFrame.
func (s *Source) FrameInfo(key *int) (FrameInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, err := s.resolveKey(key)
	if err != nil {
		return FrameInfo{}, err
	}

	outW, outH := s.outFormat.Geometry()
	return FrameInfo{
		Sequence:    uint32(k),
		TimestampMS: s.timestampMS(k),
		Width:       uint16(outW),
		Height:      uint16(outH),
		Colorspace:  byte(s.outFormat.Colorspace),
		Flags:       s.flagsFor(k),
	}, nil
}

// Seek updates CurrentFrame to key without decoding. Accepts the same
// negative-index convenience original_source's retreat() offers: a negative
// key resolves relative to frame_count (-1 == last frame), applied before
// range/loop validation.
func (s *Source) Seek(key int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return 0, protocol.Unloaded("no source loaded")
	}
	if key < 0 {
		key += s.info.FrameCount
	}

	k, err := s.resolveKey(&key)
	if err != nil {
		return 0, err
	}
	s.current = k
	return k, nil
}

// Next advances CurrentFrame by one, wrapping to 0 when LoopMode is on and
// returning AtEnd without advancing otherwise.
func (s *Source) Next() (AdvanceResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return AdvanceResult{}, protocol.Unloaded("no source loaded")
	}

	next := s.current + 1
	if next >= s.info.FrameCount {
		if s.loop {
			s.current = 0
			return AdvanceResult{Frame: s.current}, nil
		}
		return AdvanceResult{Frame: s.current, AtEnd: true}, nil
	}
	s.current = next
	return AdvanceResult{Frame: s.current}, nil
}

// Prev retreats CurrentFrame by one, wrapping to frame_count-1 when
// LoopMode is on and returning AtStart without retreating otherwise.
func (s *Source) Prev() (AdvanceResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return AdvanceResult{}, protocol.Unloaded("no source loaded")
	}

	prev := s.current - 1
	if prev < 0 {
		if s.loop && s.info.FrameCount > 0 {
			s.current = s.info.FrameCount - 1
			return AdvanceResult{Frame: s.current}, nil
		}
		return AdvanceResult{Frame: s.current, AtStart: true}, nil
	}
	s.current = prev
	return AdvanceResult{Frame: s.current}, nil
}

// Play transitions to PLAYING from STOPPED or PAUSED. It fails if no source
// is loaded; PAUSE and STOP, by contrast, are always allowed to succeed.
func (s *Source) Play() (PlaybackState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return s.state, protocol.Unloaded("no source loaded")
	}
	s.state = Playing
	return s.state, nil
}

// Pause transitions to PAUSED from any state.
func (s *Source) Pause() PlaybackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Paused
	return s.state
}

// Stop transitions to STOPPED from any state and resets CurrentFrame to 0.
func (s *Source) Stop() PlaybackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Stopped
	s.current = 0
	return s.state
}

// SetFormat atomically updates the output format and flushes the cache.
func (s *Source) SetFormat(standard format.Standard, cs format.Colorspace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outFormat = format.OutputFormat{Standard: standard, Colorspace: cs}
	s.cache.Clear()
}

// Format returns the current output format.
func (s *Source) Format() format.OutputFormat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outFormat
}

// SetLoop sets LoopMode.
func (s *Source) SetLoop(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loop = on
}

// Loop returns LoopMode.
func (s *Source) Loop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loop
}

// Status reports the playback state, current frame, and total frame count.
func (s *Source) Status() (state PlaybackState, current, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.current, s.info.FrameCount
}

// Stats returns the frame cache's cumulative hit/miss counters, satisfying
// internal/metrics.CacheStater.
func (s *Source) Stats() (hits, misses int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Stats()
}

// Close releases the decoder handle. Idempotent.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.decoder == nil {
		return nil
	}
	err := s.decoder.Close()
	s.decoder = nil
	s.loaded = false
	return err
}
