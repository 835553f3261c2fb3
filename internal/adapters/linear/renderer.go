// Package linear renders build progress as plain, chronological lines for
// CI logs and other non-interactive terminals.
package linear

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/muesli/termenv"
	"go.trai.ch/rbt/internal/core/ports"
	"go.trai.ch/rbt/internal/ui/output"
	"go.trai.ch/rbt/internal/ui/style"
)

// Renderer implements ports.Telemetry. Job output is printed line by line
// with the job label as prefix, and every job ends with one status line.
type Renderer struct {
	stdout io.Writer
	stderr io.Writer
	out    *termenv.Output
	now    func() time.Time

	mu sync.Mutex
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithClock replaces time.Now for duration measurements.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.now = now }
}

// NewRenderer creates a Renderer. Nil writers default to the process streams.
func NewRenderer(stdout, stderr io.Writer, opts ...Option) *Renderer {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	r := &Renderer{
		stdout: stdout,
		stderr: stderr,
		out:    output.NewWithProfile(stderr, output.ColorProfileANSI),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record starts tracking the named job.
func (r *Renderer) Record(ctx context.Context, name string) (context.Context, ports.Vertex) {
	v := &vertex{r: r, name: name, start: r.now()}
	v.stdout = &lineWriter{r: r, dst: r.stdout, prefix: name}
	v.stderr = &lineWriter{r: r, dst: r.stderr, prefix: name}
	return ports.ContextWithVertex(ctx, v), v
}

// Close is a no-op; every vertex flushes its own output on completion.
func (r *Renderer) Close() error {
	return nil
}

func (r *Renderer) prefix(name string) string {
	return r.out.String("[" + name + "]").Faint().String()
}

func (r *Renderer) icon(glyph, color string) string {
	return r.out.String(glyph).Foreground(r.out.Color(color)).String()
}

// printLineLocked must be called with mu held.
func (r *Renderer) printLineLocked(dst io.Writer, name string, line []byte) {
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(line) == 0 {
		return
	}
	_, _ = fmt.Fprintf(dst, "%s %s\n", r.prefix(name), line)
}

type vertex struct {
	r      *Renderer
	name   string
	start  time.Time
	stdout *lineWriter
	stderr *lineWriter

	once   sync.Once
	cached bool
}

func (v *vertex) Stdout() io.Writer { return v.stdout }

func (v *vertex) Stderr() io.Writer { return v.stderr }

func (v *vertex) Cached() {
	v.r.mu.Lock()
	defer v.r.mu.Unlock()
	v.cached = true
}

func (v *vertex) Complete(err error) {
	v.once.Do(func() {
		r := v.r
		elapsed := r.now().Sub(v.start).Round(time.Millisecond)

		r.mu.Lock()
		defer r.mu.Unlock()

		v.stdout.flushLocked()
		v.stderr.flushLocked()

		prefix := r.prefix(v.name)
		switch {
		case err != nil:
			_, _ = fmt.Fprintf(r.stderr, "%s %s Failed after %v: %v\n",
				prefix, r.icon(style.Cross, string(style.Red)), elapsed, err)
		case v.cached:
			_, _ = fmt.Fprintf(r.stderr, "%s %s Cached\n",
				prefix, r.icon(style.Tilde, string(style.Slate)))
		default:
			_, _ = fmt.Fprintf(r.stderr, "%s %s Completed in %v\n",
				prefix, r.icon(style.Check, string(style.Green)), elapsed)
		}
	})
}

// lineWriter holds back partial lines until their newline arrives.
type lineWriter struct {
	r      *Renderer
	dst    io.Writer
	prefix string
	buf    bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.r.mu.Lock()
	defer w.r.mu.Unlock()

	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		w.r.printLineLocked(w.dst, w.prefix, w.buf.Next(i+1))
	}
	return len(p), nil
}

// flushLocked must be called with r.mu held.
func (w *lineWriter) flushLocked() {
	if w.buf.Len() == 0 {
		return
	}
	w.r.printLineLocked(w.dst, w.prefix, w.buf.Bytes())
	w.buf.Reset()
}
