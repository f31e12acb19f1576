package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/logger"
)

func TestChildSpansInheritTraceID(t *testing.T) {
	ctx := logger.WithRequestID(context.Background(), "req-1")
	ctx, root := StartSpan(ctx, "predict")
	_, child := StartChildSpan(ctx, "engineer")
	child.SetAttr("rows", 1)
	child.End()
	root.End()

	if child.TraceID != "req-1" {
		t.Errorf("child trace id = %q", child.TraceID)
	}
	if len(root.Children) != 1 {
		t.Fatalf("children = %d", len(root.Children))
	}

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	out := buf.String()
	if !strings.Contains(out, "span=engineer") || !strings.Contains(out, "depth=1") {
		t.Errorf("span tree not logged:\n%s", out)
	}
}

func TestLogSkippedAboveDebug(t *testing.T) {
	_, root := StartSpan(context.Background(), "predict")
	root.End()
	var buf bytes.Buffer
	root.Log(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}
