package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithPolicy(ctx, "travel@1.0.0")
	ctx = WithSpanID(ctx, "span-1")

	tests := []struct {
		got, want string
	}{
		{GetRequestID(ctx), "req-1"},
		{GetTraceID(ctx), "trace-1"},
		{GetPolicy(ctx), "travel@1.0.0"},
		{GetSpanID(ctx), "span-1"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
	if GetTraceID(context.Background()) != "" {
		t.Error("empty context must yield empty trace id")
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	base := slog.New(slog.NewTextHandler(buf, nil))

	if FromContext(context.Background(), base) != base {
		t.Error("context without fields should return the base logger")
	}

	FromContext(WithTraceID(context.Background(), "trace-9"), base).Info("hello")
	if !bytes.Contains(buf.Bytes(), []byte("trace_id=trace-9")) {
		t.Errorf("output = %s", buf.String())
	}
}
