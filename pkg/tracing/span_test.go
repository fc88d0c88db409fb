package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChildSpansJoinParentTrace(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "search", "req-1")
	_, a := StartChildSpan(ctx, "catalog.snapshot")
	a.End()
	_, b := StartChildSpan(ctx, "tiers.build")
	b.SetAttr("products", 20)
	b.End()
	root.End()

	children := root.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "catalog.snapshot", children[0].Name)
	assert.Equal(t, "req-1", children[1].TraceID)
	assert.Same(t, root, SpanFromContext(ctx))
}

func TestOrphanSpan(t *testing.T) {
	_, span := StartChildSpan(context.Background(), "tiers.build")
	span.End()
	assert.Empty(t, span.TraceID)
}

func TestLogWritesTreeAtDebug(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "search", "req-2")
	_, child := StartChildSpan(ctx, "tiers.build")
	child.End()
	root.End()

	var buf bytes.Buffer
	root.Log(ctx, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "span=tiers.build")
	assert.Contains(t, lines[1], "depth=1")

	buf.Reset()
	root.Log(ctx, slog.New(slog.NewTextHandler(&buf, nil)))
	assert.Empty(t, buf.String())
}
