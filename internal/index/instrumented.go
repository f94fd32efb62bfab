package index

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/donovan0902/project-hunt/pkg/types"
)

// DefaultTimeout bounds a single index call.
const DefaultTimeout = 10 * time.Second

var tracer = otel.Tracer("projecthunt.index")

// call runs fn under a deadline inside a span, records metrics, and turns any
// failure into an upstream failure.
func call(ctx context.Context, timeout time.Duration, indexName, op string, attrs []attribute.KeyValue, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, indexName+"."+op, trace.WithAttributes(attrs...))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	OperationDuration.WithLabelValues(indexName, op).Observe(time.Since(start).Seconds())

	if err == nil {
		OperationsTotal.WithLabelValues(indexName, op, "success").Inc()
		span.SetStatus(codes.Ok, "success")
		return nil
	}

	result := "error"
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		result = "timeout"
	}
	OperationsTotal.WithLabelValues(indexName, op, result).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return types.WrapError(types.KindUpstream, indexName+" "+op, err)
}

// InstrumentedVectorIndex wraps a VectorIndex with a per-call timeout,
// tracing and metrics. Every error it returns is an upstream failure.
type InstrumentedVectorIndex struct {
	inner   VectorIndex
	timeout time.Duration
}

// NewInstrumentedVectorIndex wraps inner. A non-positive timeout selects
// DefaultTimeout.
func NewInstrumentedVectorIndex(inner VectorIndex, timeout time.Duration) *InstrumentedVectorIndex {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &InstrumentedVectorIndex{inner: inner, timeout: timeout}
}

func (x *InstrumentedVectorIndex) Add(ctx context.Context, namespace, key, text string) (string, error) {
	var out string
	err := call(ctx, x.timeout, "vector", "add",
		[]attribute.KeyValue{attribute.String("namespace", namespace), attribute.String("key", key)},
		func(ctx context.Context) error {
			var err error
			out, err = x.inner.Add(ctx, namespace, key, text)
			return err
		})
	return out, err
}

func (x *InstrumentedVectorIndex) Search(ctx context.Context, namespace, text string, limit int, minScore float32) ([]VectorHit, error) {
	var out []VectorHit
	err := call(ctx, x.timeout, "vector", "search",
		[]attribute.KeyValue{attribute.String("namespace", namespace), attribute.Int("limit", limit)},
		func(ctx context.Context) error {
			var err error
			out, err = x.inner.Search(ctx, namespace, text, limit, minScore)
			return err
		})
	return out, err
}

func (x *InstrumentedVectorIndex) Delete(ctx context.Context, namespace, key string) error {
	return call(ctx, x.timeout, "vector", "delete",
		[]attribute.KeyValue{attribute.String("namespace", namespace), attribute.String("key", key)},
		func(ctx context.Context) error {
			return x.inner.Delete(ctx, namespace, key)
		})
}

// InstrumentedLexicalIndex is the LexicalIndex counterpart of
// InstrumentedVectorIndex.
type InstrumentedLexicalIndex struct {
	inner   LexicalIndex
	timeout time.Duration
}

func NewInstrumentedLexicalIndex(inner LexicalIndex, timeout time.Duration) *InstrumentedLexicalIndex {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &InstrumentedLexicalIndex{inner: inner, timeout: timeout}
}

func (x *InstrumentedLexicalIndex) Search(ctx context.Context, query string, limit int) ([]string, error) {
	var out []string
	err := call(ctx, x.timeout, "lexical", "search",
		[]attribute.KeyValue{attribute.Int("limit", limit)},
		func(ctx context.Context) error {
			var err error
			out, err = x.inner.Search(ctx, query, limit)
			return err
		})
	return out, err
}
