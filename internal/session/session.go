// Package session implements the per-connection protocol state machine:
// it reads command lines, dispatches them against a shared
// *videosource.Source, and writes framed responses. Grounded on
// original_source/src/vtsource/daemon.py's DaemonProtocol dispatch table and
// on zsiec-prism/ingest/srt/server.go's per-connection handling style
// (structured logging on entry/exit, deferred close).
package session

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zsiec/vtsourced/internal/format"
	"github.com/zsiec/vtsourced/internal/metrics"
	"github.com/zsiec/vtsourced/internal/protocol"
	"github.com/zsiec/vtsourced/internal/videosource"
)

// ServerName and ProtocolVersion are echoed in the HELLO banner.
const (
	ServerName      = "vtsourced"
	ProtocolVersion = "1.0"
)

// Handler drives one client connection against the shared video source.
type Handler struct {
	log    *slog.Logger
	source *videosource.Source
	conn   net.Conn
	id     string
	met    *metrics.Metrics

	// idleTimeout bounds how long Serve waits for the next command line
	// before dropping the connection as idle. Zero disables the timeout.
	idleTimeout time.Duration

	// sawError is set by writeError during route and consulted by dispatch
	// to label the CommandsTotal outcome; it is reset at the top of each
	// dispatch call and never read concurrently since one Handler serves
	// one connection sequentially.
	sawError bool
}

// WithMetrics attaches a metrics sink recording per-verb command outcomes.
// A nil sink (the default) disables recording.
func (h *Handler) WithMetrics(m *metrics.Metrics) *Handler {
	h.met = m
	return h
}

// WithIdleTimeout bounds how long Serve will wait for the next command line
// before closing the connection. Zero (the default) disables the timeout.
func (h *Handler) WithIdleTimeout(d time.Duration) *Handler {
	h.idleTimeout = d
	return h
}

// NewHandler wraps conn for dispatch against source. log is annotated with
// a per-connection trace id used only for log correlation, never sent on
// the wire.
func NewHandler(log *slog.Logger, source *videosource.Source, conn net.Conn) *Handler {
	id := uuid.NewString()
	return &Handler{
		log:    log.With("conn_id", id, "remote", conn.RemoteAddr().String()),
		source: source,
		conn:   conn,
		id:     id,
	}
}

// Serve runs the connection's read-dispatch-write loop until BYE, EOF, an
// unrecoverable write failure, or ctx cancellation. It never returns an
// error for ordinary client-initiated closes.
func (h *Handler) Serve(ctx context.Context) error {
	defer h.conn.Close()
	h.log.Info("connection opened")

	w := bufio.NewWriter(h.conn)
	if err := h.writeLine(w, fmt.Sprintf("OK HELLO %s VTSource %s", ServerName, ProtocolVersion)); err != nil {
		h.log.Debug("hello write failed", "err", err)
		return nil
	}

	scanner := bufio.NewScanner(h.conn)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	for {
		if h.idleTimeout > 0 {
			h.conn.SetReadDeadline(time.Now().Add(h.idleTimeout))
		}
		if !scanner.Scan() {
			break
		}

		if ctx.Err() != nil {
			h.log.Debug("connection aborted by shutdown")
			return nil
		}

		line := strings.TrimRight(scanner.Text(), "\r")
		cmd, perr := protocol.ParseCommand(line)
		if perr != nil {
			if err := h.writeError(w, protocol.Invalid("%s", perr)); err != nil {
				h.log.Debug("write failed, closing connection", "err", err)
				return nil
			}
			continue
		}
		if cmd.Verb == "" {
			continue
		}

		if cmd.Verb == "BYE" {
			h.writeLine(w, "OK BYE")
			h.log.Info("connection closed", "reason", "bye")
			return nil
		}

		if err := h.dispatch(ctx, w, cmd); err != nil {
			h.log.Debug("write failed, closing connection", "err", err)
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			h.log.Info("connection closed", "reason", "idle timeout")
		} else {
			h.log.Debug("connection closed", "reason", "read error", "err", err)
		}
	} else {
		h.log.Info("connection closed", "reason", "eof")
	}
	return nil
}

// dispatch handles one parsed command, writing exactly one response
// (a text line, or for GETFRAME a text line plus binary header and
// payload). It returns an error only for an unrecoverable write failure.
func (h *Handler) dispatch(ctx context.Context, w *bufio.Writer, cmd protocol.Command) error {
	h.sawError = false
	// Render the response in memory first so the command is counted before
	// the client can observe its reply.
	var resp bytes.Buffer
	rw := bufio.NewWriter(&resp)
	err := h.route(ctx, rw, cmd)
	if err == nil {
		err = rw.Flush()
	}
	if h.met != nil {
		outcome := "ok"
		if err != nil || h.sawError {
			outcome = "error"
		}
		h.met.CommandsTotal.WithLabelValues(cmd.Verb, outcome).Inc()
	}
	if err != nil {
		return err
	}
	if _, err := w.Write(resp.Bytes()); err != nil {
		return err
	}
	return w.Flush()
}

func (h *Handler) route(ctx context.Context, w *bufio.Writer, cmd protocol.Command) error {
	switch cmd.Verb {
	case "LIST":
		return h.handleList(w, cmd)
	case "LOAD":
		return h.handleLoad(ctx, w, cmd)
	case "SOURCE":
		return h.handleSource(w)
	case "PLAY":
		return h.handlePlay(w)
	case "PAUSE":
		return h.writeLine(w, "OK "+h.source.Pause().String())
	case "STOP":
		return h.writeLine(w, "OK "+h.source.Stop().String())
	case "SEEK":
		return h.handleSeek(w, cmd)
	case "NEXT":
		return h.handleAdvance(w, h.source.Next)
	case "PREV":
		return h.handleAdvance(w, h.source.Prev)
	case "GETFRAME":
		return h.handleGetFrame(ctx, w, cmd)
	case "FRAMEINFO":
		return h.handleFrameInfo(w, cmd)
	case "FORMAT":
		return h.handleFormat(w, cmd)
	case "LOOP":
		return h.handleLoop(w, cmd)
	case "STATUS":
		return h.handleStatus(w)
	case "INFO":
		return h.handleInfo(w)
	default:
		return h.writeError(w, protocol.Unknown("unknown command: %s", cmd.Verb))
	}
}

func (h *Handler) handleList(w *bufio.Writer, cmd protocol.Command) error {
	names, err := h.source.List(cmd.Arg(0))
	if err != nil {
		return h.writeError(w, protocol.AsCommandError(err))
	}
	if err := h.writeLine(w, fmt.Sprintf("OK LIST %d", len(names))); err != nil {
		return err
	}
	for _, name := range names {
		if err := h.writeLine(w, name); err != nil {
			return err
		}
	}
	return w.Flush()
}

func (h *Handler) handleLoad(ctx context.Context, w *bufio.Writer, cmd protocol.Command) error {
	path := cmd.Arg(0)
	if path == "" {
		return h.writeError(w, protocol.Invalid("LOAD requires a path"))
	}
	info, err := h.source.Load(ctx, path)
	if err != nil {
		return h.writeError(w, protocol.AsCommandError(err))
	}
	return h.writeLine(w, fmt.Sprintf("OK LOADED %d frames", info.FrameCount))
}

func (h *Handler) handlePlay(w *bufio.Writer) error {
	state, err := h.source.Play()
	if err != nil {
		return h.writeError(w, protocol.AsCommandError(err))
	}
	return h.writeLine(w, "OK "+state.String())
}

func (h *Handler) handleSource(w *bufio.Writer) error {
	info, ok := h.source.SourceInfo()
	if !ok {
		return h.writeLine(w, "OK SOURCE NONE")
	}
	fps := rationalString(info.RateNum, info.RateDen)
	return h.writeLine(w, fmt.Sprintf("OK SOURCE %q %d %dx%d %s %s",
		info.Path, info.FrameCount, info.Width, info.Height, fps, info.Codec))
}

func (h *Handler) handleSeek(w *bufio.Writer, cmd protocol.Command) error {
	key, err := strconv.Atoi(cmd.Arg(0))
	if err != nil {
		return h.writeError(w, protocol.Invalid("SEEK requires an integer frame index"))
	}
	frame, serr := h.source.Seek(key)
	if serr != nil {
		return h.writeError(w, protocol.AsCommandError(serr))
	}
	return h.writeLine(w, fmt.Sprintf("OK SEEKED %d", frame))
}

func (h *Handler) handleAdvance(w *bufio.Writer, fn func() (videosource.AdvanceResult, error)) error {
	res, err := fn()
	if err != nil {
		return h.writeError(w, protocol.AsCommandError(err))
	}
	switch {
	case res.AtEnd:
		return h.writeLine(w, "OK END")
	case res.AtStart:
		return h.writeLine(w, "OK START")
	default:
		return h.writeLine(w, fmt.Sprintf("OK FRAME %d", res.Frame))
	}
}

func (h *Handler) handleGetFrame(ctx context.Context, w *bufio.Writer, cmd protocol.Command) error {
	key, ok, perr := optionalInt(cmd.Arg(0))
	if perr != nil {
		return h.writeError(w, protocol.Invalid("GETFRAME frame index must be an integer"))
	}
	var keyPtr *int
	if ok {
		keyPtr = &key
	}

	frame, err := h.source.GetFrame(ctx, keyPtr)
	if err != nil {
		return h.writeError(w, protocol.AsCommandError(err))
	}

	if _, err := fmt.Fprintf(w, "OK FRAMEDATA %d\n", len(frame.Payload)); err != nil {
		return err
	}
	if _, err := w.Write(frame.Header.Encode()); err != nil {
		return err
	}
	if _, err := w.Write(frame.Payload); err != nil {
		return err
	}
	return w.Flush()
}

func (h *Handler) handleFrameInfo(w *bufio.Writer, cmd protocol.Command) error {
	key, ok, perr := optionalInt(cmd.Arg(0))
	if perr != nil {
		return h.writeError(w, protocol.Invalid("FRAMEINFO frame index must be an integer"))
	}
	var keyPtr *int
	if ok {
		keyPtr = &key
	}

	info, err := h.source.FrameInfo(keyPtr)
	if err != nil {
		return h.writeError(w, protocol.AsCommandError(err))
	}
	return h.writeLine(w, fmt.Sprintf("OK FRAMEINFO %d %d %d %d %d %d",
		info.Sequence, info.TimestampMS, info.Width, info.Height, info.Colorspace, info.Flags))
}

func (h *Handler) handleFormat(w *bufio.Writer, cmd protocol.Command) error {
	current := h.source.Format()
	std := current.Standard
	cs := current.Colorspace
	changed := false

	if cmd.Arg(0) != "" {
		parsed, err := format.ParseStandard(cmd.Arg(0))
		if err != nil {
			return h.writeError(w, protocol.Invalid("unknown standard: %s", cmd.Arg(0)))
		}
		std = parsed
		changed = true
	}
	if cmd.Arg(1) != "" {
		parsed, err := format.ParseColorspace(cmd.Arg(1))
		if err != nil {
			return h.writeError(w, protocol.Invalid("unknown colorspace: %s", cmd.Arg(1)))
		}
		cs = parsed
		changed = true
	}

	// A bare query must not disturb the cache, which is keyed in part on
	// the output format.
	if changed {
		h.source.SetFormat(std, cs)
	}
	return h.writeLine(w, fmt.Sprintf("OK FORMAT %s %s", std, cs))
}

func (h *Handler) handleLoop(w *bufio.Writer, cmd protocol.Command) error {
	arg := strings.ToLower(cmd.Arg(0))
	switch arg {
	case "on":
		h.source.SetLoop(true)
	case "off":
		h.source.SetLoop(false)
	case "":
		// query only, no state change
	default:
		return h.writeError(w, protocol.Invalid("LOOP argument must be 'on' or 'off'"))
	}

	if h.source.Loop() {
		return h.writeLine(w, "OK LOOP ON")
	}
	return h.writeLine(w, "OK LOOP OFF")
}

func (h *Handler) handleStatus(w *bufio.Writer) error {
	state, current, total := h.source.Status()
	return h.writeLine(w, fmt.Sprintf("OK STATUS %s %d %d", state, current, total))
}

func (h *Handler) handleInfo(w *bufio.Writer) error {
	info, ok := h.source.SourceInfo()
	if !ok {
		return h.writeError(w, protocol.Unloaded("no source loaded"))
	}
	fps := rationalString(info.RateNum, info.RateDen)
	duration := 0.0
	if info.RateNum != 0 {
		duration = float64(info.FrameCount) * float64(info.RateDen) / float64(info.RateNum)
	}
	return h.writeLine(w, fmt.Sprintf("OK INFO %dx%d %sfps %s %d frames %.3fs",
		info.Width, info.Height, fps, info.Codec, info.FrameCount, duration))
}

func (h *Handler) writeLine(w *bufio.Writer, line string) error {
	if _, err := w.WriteString(line); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}

func (h *Handler) writeError(w *bufio.Writer, ce *protocol.CommandError) error {
	h.sawError = true
	return h.writeLine(w, fmt.Sprintf("ERROR %d %s", ce.Code, ce.Message))
}

// optionalInt parses s as an int if non-empty, reporting ok=false (no
// error) for an empty argument so callers can fall back to CurrentFrame.
func optionalInt(s string) (value int, ok bool, err error) {
	if s == "" {
		return 0, false, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func rationalString(num, den int) string {
	if den == 1 || den == 0 {
		return strconv.Itoa(num)
	}
	f := float64(num) / float64(den)
	return strconv.FormatFloat(f, 'g', -1, 64)
}
