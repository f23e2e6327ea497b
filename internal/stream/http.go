package stream

import (
	"context"
	"io"
	"net/http"
	"os/exec"
	"strconv"

	"github.com/charmbracelet/log"
)

// HTTPHandler serves a chunked MP3 audio stream via HTTP, the
// fallback transport for clients that can't negotiate WebRTC. Each
// connection spawns an FFmpeg process encoding PCM -> MP3 in
// real-time, at the broadcaster's format rather than a hardcoded
// 48kHz/stereo (generalized from the teacher's fixed-format radio
// pipeline).
type HTTPHandler struct {
	broadcaster *Broadcaster
	logger      *log.Logger
}

// NewHTTPHandler creates an HTTP stream handler.
func NewHTTPHandler(b *Broadcaster, logger *log.Logger) *HTTPHandler {
	return &HTTPHandler{broadcaster: b, logger: logger}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("ICY-Name", "soundsride")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	format := h.broadcaster.Format()

	// FFmpeg: PCM stdin -> MP3 stdout
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-f", "s16le",
		"-ar", strconv.Itoa(format.SampleRate),
		"-ac", strconv.Itoa(format.Channels),
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", "192k",
		"-f", "mp3",
		"-fflags", "nobuffer",
		"-flush_packets", "1",
		"-loglevel", "error",
		"pipe:1",
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		h.logger.Error("HTTP stream stdin pipe", "err", err)
		return
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		h.logger.Error("HTTP stream stdout pipe", "err", err)
		return
	}

	if err := cmd.Start(); err != nil {
		h.logger.Error("HTTP stream ffmpeg start", "err", err)
		return
	}

	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)

	h.logger.Info("HTTP listener connected", "total", h.broadcaster.ListenerCount())
	defer h.logger.Info("HTTP listener disconnected")

	// Feed PCM chunks to FFmpeg
	go func() {
		defer stdin.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-listener.done:
				return
			case chunk, ok := <-listener.C:
				if !ok {
					return
				}
				if _, err := stdin.Write(chunk); err != nil {
					return
				}
			}
		}
	}()

	// Read MP3 from FFmpeg and write to HTTP response
	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				break
			}
			flusher.Flush()
		}
		if err != nil {
			if err != io.EOF {
				h.logger.Error("HTTP stream ffmpeg read", "err", err)
			}
			break
		}
	}

	cmd.Wait()
}
