package obs

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultMaxStatement = 300

type pgxSpanKey struct{}

// PGXTracer implements pgx.QueryTracer with one client span per statement.
type PGXTracer struct {
	// MaxStatement caps the recorded db.statement length in bytes.
	MaxStatement int
}

// TraceQueryStart opens a span named after the SQL verb.
func (t PGXTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	op := sqlOperation(data.SQL)
	ctx, span := otel.Tracer("db.pgx").Start(ctx, "pgx "+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", op),
			attribute.String("db.statement", t.statement(data.SQL)),
		),
	)
	return context.WithValue(ctx, pgxSpanKey{}, span)
}

// TraceQueryEnd records the outcome and ends the span.
func (PGXTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span, ok := ctx.Value(pgxSpanKey{}).(trace.Span)
	if !ok {
		return
	}
	defer span.End()
	if data.Err != nil {
		span.RecordError(data.Err)
		span.SetStatus(codes.Error, data.Err.Error())
		return
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
}

func (t PGXTracer) statement(sql string) string {
	limit := t.MaxStatement
	if limit <= 0 {
		limit = defaultMaxStatement
	}
	sql = strings.Join(strings.Fields(sql), " ")
	if len(sql) > limit {
		return sql[:limit] + "..."
	}
	return sql
}

func sqlOperation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "QUERY"
	}
	return strings.ToUpper(fields[0])
}
