// Package progrock records job progress as a progrock status stream.
package progrock

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/opencontainers/go-digest"
	"github.com/vito/progrock"
	"go.trai.ch/rbt/internal/core/ports"
	"go.trai.ch/zerr"
)

// Recorder implements ports.Telemetry on top of a progrock.Recorder.
type Recorder struct {
	w   progrock.Writer
	rec *progrock.Recorder
}

// New creates a Recorder writing to an in-memory tape.
func New() *Recorder {
	return NewRecorder(progrock.NewTape())
}

// NewRecorder creates a Recorder writing status updates to w.
func NewRecorder(w progrock.Writer) *Recorder {
	return &Recorder{w: w, rec: progrock.NewRecorder(w)}
}

// Record starts a vertex for the named job. The vertex digest is derived
// from the name so re-recording a job updates the same vertex.
func (r *Recorder) Record(ctx context.Context, name string) (context.Context, ports.Vertex) {
	v := &Vertex{vertex: r.rec.Vertex(digest.FromString(name), name)}
	return ports.ContextWithVertex(ctx, v), v
}

// Close closes the underlying writer.
func (r *Recorder) Close() error {
	return r.w.Close()
}

// JSONWriter is a progrock.Writer encoding each status update as one JSON line.
type JSONWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
	c   io.Closer
}

// NewJSONWriter returns a JSONWriter over w. If w is an io.Closer it is
// closed with the writer.
func NewJSONWriter(w io.Writer) *JSONWriter {
	jw := &JSONWriter{enc: json.NewEncoder(w)}
	if c, ok := w.(io.Closer); ok {
		jw.c = c
	}
	return jw
}

// WriteStatus appends update to the stream.
func (w *JSONWriter) WriteStatus(update *progrock.StatusUpdate) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(update); err != nil {
		return zerr.Wrap(err, "failed to encode progress update")
	}
	return nil
}

// Close closes the destination.
func (w *JSONWriter) Close() error {
	if w.c == nil {
		return nil
	}
	return w.c.Close()
}
