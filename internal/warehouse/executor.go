package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tbourn/go-sql-assistant/internal/domain"
	"github.com/tbourn/go-sql-assistant/internal/observability"
)

// Executor runs SQL and returns records in column order.
//
// Fields:
//   - DB: connection pool (required).
//   - Timeout: per-query deadline; zero means none beyond ctx.
//   - ReadOnly: run every query inside a read-only transaction.
//   - MaxRows: stop reading after this many rows; zero reads all.
type Executor struct {
	DB       *sqlx.DB
	Timeout  time.Duration
	ReadOnly bool
	MaxRows  int
}

// Execute runs query and converts every row.
func (e *Executor) Execute(ctx context.Context, query string) ([]domain.Record, error) {
	ctx, span := otel.Tracer("warehouse").Start(ctx, "Execute")
	defer span.End()

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := e.run(ctx, query)
	observability.WarehouseLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("rows", len(out)))
	return out, nil
}

func (e *Executor) run(ctx context.Context, query string) ([]domain.Record, error) {
	if !e.ReadOnly {
		rows, err := e.DB.QueryxContext(ctx, query)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return e.scan(rows)
	}

	tx, err := e.DB.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read-only tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	rows, err := tx.QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return e.scan(rows)
}

func (e *Executor) scan(rows *sqlx.Rows) ([]domain.Record, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	out := []domain.Record{}
	for rows.Next() {
		if e.MaxRows > 0 && len(out) >= e.MaxRows {
			break
		}
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, err
		}
		fields := make([]domain.Field, len(vals))
		for i, raw := range vals {
			fields[i] = domain.Field{Name: types[i].Name(), Value: ToValue(raw, types[i].DatabaseTypeName())}
		}
		out = append(out, domain.NewRecord(fields...))
	}
	return out, rows.Err()
}

// Ping checks connectivity.
func (e *Executor) Ping(ctx context.Context) error {
	return e.DB.PingContext(ctx)
}

// ToValue converts a scanned driver value. dbType is the driver's column
// type name and decides how textual numerics are read.
func ToValue(raw any, dbType string) domain.Value {
	switch v := raw.(type) {
	case nil:
		return domain.Null()
	case int64:
		return domain.Int(v)
	case int32:
		return domain.Int(int64(v))
	case int:
		return domain.Int(int64(v))
	case float64:
		return domain.Float(v)
	case float32:
		return domain.Float(float64(v))
	case bool:
		return domain.Bool(v)
	case time.Time:
		return domain.Timestamp(v)
	case []byte:
		return fromText(string(v), dbType)
	case string:
		return fromText(v, dbType)
	default:
		return domain.String(fmt.Sprint(v))
	}
}

func fromText(s, dbType string) domain.Value {
	switch KindOf(dbType) {
	case domain.KindInt:
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return domain.Int(i)
		}
	case domain.KindFloat:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return domain.Float(f)
		}
	case domain.KindBool:
		if b, err := strconv.ParseBool(s); err == nil {
			return domain.Bool(b)
		}
	}
	return domain.String(s)
}

// KindOf maps a driver column type name to the value kind it holds.
func KindOf(dbType string) domain.Kind {
	t := strings.ToUpper(dbType)
	switch {
	case t == "":
		return domain.KindNull
	case strings.Contains(t, "INT") || t == "SERIAL":
		return domain.KindInt
	case t == "NUMERIC" || t == "DECIMAL" || strings.Contains(t, "FLOAT") || t == "REAL" || strings.Contains(t, "DOUBLE"):
		return domain.KindFloat
	case strings.HasPrefix(t, "BOOL"):
		return domain.KindBool
	case strings.Contains(t, "TIME") || t == "DATE":
		return domain.KindTimestamp
	default:
		return domain.KindString
	}
}

var syntaxPatterns = []string{
	"syntax error",
	"invalid input syntax",
	"does not exist",
	"no such column",
	"no such table",
}

// IsSyntaxError reports whether err comes from the shape of the SQL rather
// than from the database itself: a PostgreSQL class 42 error (syntax error or
// access rule violation) or a driver message with a known pattern.
func IsSyntaxError(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "42" {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range syntaxPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
