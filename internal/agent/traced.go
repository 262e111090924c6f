package agent

import (
	"context"
	"encoding/json"
	"log/slog"

	"gail/internal/trace"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type tracedTool struct {
	Tool
}

func withTrace(t Tool) Tool {
	return &tracedTool{Tool: t}
}

func (t *tracedTool) Execute(ctx context.Context, input json.RawMessage, call Call) (*Result, error) {
	ctx, span := trace.Tracer().Start(ctx, "tool."+t.Name(),
		oteltrace.WithAttributes(
			attribute.String("gen_ai.tool.name", t.Name()),
			attribute.String("gen_ai.tool.call.id", call.ID),
			attribute.String("gen_ai.tool.input", string(input)),
			attribute.String("conversation.id", call.ConversationID),
		),
	)
	defer span.End()

	sc := span.SpanContext()
	slog.Debug("tool span started", "tool", t.Name(), "trace_id", sc.TraceID(), "span_id", sc.SpanID())

	result, err := t.Tool.Execute(ctx, input, call)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	if result != nil && result.Artifact != nil {
		span.SetAttributes(
			attribute.String("gail.artifact.type", result.Artifact.Type),
			attribute.String("gail.artifact.id", result.Artifact.ID),
		)
	}
	return result, nil
}
