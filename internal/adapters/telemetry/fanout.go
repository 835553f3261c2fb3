package telemetry

import (
	"context"
	"errors"
	"io"

	"go.trai.ch/rbt/internal/core/ports"
)

// Fanout records every vertex in each of its sinks.
type Fanout []ports.Telemetry

// Record starts a vertex in every sink.
func (f Fanout) Record(ctx context.Context, name string) (context.Context, ports.Vertex) {
	vs := make(fanoutVertex, 0, len(f))
	for _, t := range f {
		var v ports.Vertex
		ctx, v = t.Record(ctx, name)
		vs = append(vs, v)
	}
	return ports.ContextWithVertex(ctx, vs), vs
}

// Close closes every sink and joins their errors.
func (f Fanout) Close() error {
	var errs []error
	for _, t := range f {
		errs = append(errs, t.Close())
	}
	return errors.Join(errs...)
}

type fanoutVertex []ports.Vertex

func (vs fanoutVertex) Stdout() io.Writer {
	ws := make([]io.Writer, len(vs))
	for i, v := range vs {
		ws[i] = v.Stdout()
	}
	return io.MultiWriter(ws...)
}

func (vs fanoutVertex) Stderr() io.Writer {
	ws := make([]io.Writer, len(vs))
	for i, v := range vs {
		ws[i] = v.Stderr()
	}
	return io.MultiWriter(ws...)
}

func (vs fanoutVertex) Cached() {
	for _, v := range vs {
		v.Cached()
	}
}

func (vs fanoutVertex) Complete(err error) {
	for _, v := range vs {
		v.Complete(err)
	}
}
