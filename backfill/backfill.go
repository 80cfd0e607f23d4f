package backfill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/switchyard/adapter"
	"github.com/arloliu/switchyard/internal/logging"
	"github.com/arloliu/switchyard/querybuilder"
	"github.com/arloliu/switchyard/relation"
	"github.com/arloliu/switchyard/types"
)

// DefaultBatchSize is the number of rows read from the source per page.
const DefaultBatchSize = 500

// maxErrorLen caps the message kept per failed row.
const maxErrorLen = 100

// ErrSameStore is returned when source and target are the same store.
var ErrSameStore = errors.New("switchyard: backfill source and target are the same store")

// DefaultTables lists the synchronized tables, parents first.
var DefaultTables = []string{
	"app_settings",
	"gas_type_categories",
	"cylinder_sizes",
	"dry_ice_packaging",
	"dry_ice_product_types",
	"task_types",
	"time_off_types",
	"gas_types",
	"customers",
	"gas_cylinder_orders",
	"dry_ice_orders",
}

// DefaultStripRules removes foreign keys whose referenced rows may be absent
// on the target.
var DefaultStripRules = relation.Rules{
	"gas_types":           {"category_id"},
	"gas_cylinder_orders": {"customer_id", "gas_type_id", "assigned_to", "created_by"},
	"dry_ice_orders":      {"customer_id", "product_type_id", "packaging_id", "parent_order_id", "assigned_to", "created_by"},
}

// TableReport is the outcome of copying one table.
type TableReport struct {
	Table    string
	Rows     int
	Written  int
	Errors   []string
	Duration time.Duration
}

// Report is the outcome of a backfill run.
type Report struct {
	Source types.StoreKind
	Target types.StoreKind
	Tables []TableReport
}

// TotalRows returns the number of rows read from the source.
func (r *Report) TotalRows() int {
	n := 0
	for _, t := range r.Tables {
		n += t.Rows
	}

	return n
}

// TotalWritten returns the number of rows written to the target.
func (r *Report) TotalWritten() int {
	n := 0
	for _, t := range r.Tables {
		n += t.Written
	}

	return n
}

// TotalErrors returns the number of collected errors.
func (r *Report) TotalErrors() int {
	n := 0
	for _, t := range r.Tables {
		n += len(t.Errors)
	}

	return n
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithBatchSize sets the page size. Values <= 0 are ignored.
func WithBatchSize(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithTables replaces the table list. The order is kept.
func WithTables(tables ...string) Option {
	return func(s *Syncer) {
		if len(tables) > 0 {
			s.tables = tables
		}
	}
}

// WithStripRules replaces the strip rules.
func WithStripRules(rules relation.Rules) Option {
	return func(s *Syncer) {
		s.rules = rules
	}
}

// WithLogger sets the logger.
func WithLogger(logger types.Logger) Option {
	return func(s *Syncer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithProgress registers a callback invoked after each table.
func WithProgress(fn func(TableReport)) Option {
	return func(s *Syncer) {
		s.progress = fn
	}
}

// Syncer copies tables between stores.
type Syncer struct {
	batchSize int
	tables    []string
	rules     relation.Rules
	logger    types.Logger
	progress  func(TableReport)
}

// New creates a Syncer with DefaultTables, DefaultStripRules and DefaultBatchSize.
func New(opts ...Option) *Syncer {
	s := &Syncer{
		batchSize: DefaultBatchSize,
		tables:    DefaultTables,
		rules:     DefaultStripRules,
		logger:    logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Tables returns the tables a run copies, in order.
func (s *Syncer) Tables() []string {
	return s.tables
}

// Run copies every configured table from source to target.
//
// Row and page failures are collected in the report and do not stop the run.
// Only cancellation of ctx ends it early.
//
// Parameters:
//   - ctx: Context for all store calls
//   - source: Store to read from
//   - target: Store to upsert into
//
// Returns:
//   - *Report: Per-table results, including tables finished before cancellation
//   - error: ErrSameStore, or the context error
func (s *Syncer) Run(ctx context.Context, source, target adapter.Adapter) (*Report, error) {
	if source == nil || target == nil {
		return nil, types.ErrNilAdapter
	}
	if source.Kind() == target.Kind() {
		return nil, fmt.Errorf("%w: %s", ErrSameStore, source.Kind())
	}

	report := &Report{Source: source.Kind(), Target: target.Kind()}
	s.logger.Info("backfill started",
		"source", source.Kind().String(),
		"target", target.Kind().String(),
		"tables", len(s.tables),
	)

	for _, table := range s.tables {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		tr := s.SyncTable(ctx, source, target, table)
		report.Tables = append(report.Tables, tr)
		if s.progress != nil {
			s.progress(tr)
		}
	}

	s.logger.Info("backfill finished",
		"rows", report.TotalRows(),
		"written", report.TotalWritten(),
		"errors", report.TotalErrors(),
	)

	return report, ctx.Err()
}

// SyncTable copies one table page by page, ordered by id.
func (s *Syncer) SyncTable(ctx context.Context, source, target adapter.Adapter, table string) TableReport {
	start := time.Now()
	tr := TableReport{Table: table}

	for offset := 0; ; offset += s.batchSize {
		rows, err := source.Read(ctx, table, types.ReadOptions{
			Order:  []types.Order{types.Asc("id")},
			Limit:  s.batchSize,
			Offset: offset,
		})
		if err != nil {
			tr.Errors = append(tr.Errors, "Fetch error: "+truncate(err.Error()))
			break
		}

		tr.Rows += len(rows)
		for _, row := range rows {
			if err := s.write(ctx, target, table, row); err != nil {
				id, _ := row.ID()
				tr.Errors = append(tr.Errors, fmt.Sprintf("Row %v: %s", id, truncate(err.Error())))

				continue
			}
			tr.Written++
		}

		if len(rows) < s.batchSize || ctx.Err() != nil {
			break
		}
	}

	tr.Duration = time.Since(start)
	if len(tr.Errors) > 0 {
		s.logger.Warn("backfill table finished with errors",
			"table", table,
			"rows", tr.Rows,
			"written", tr.Written,
			"errors", len(tr.Errors),
		)
	} else {
		s.logger.Info("backfill table finished",
			"table", table,
			"rows", tr.Rows,
			"duration", tr.Duration.String(),
		)
	}

	return tr
}

func (s *Syncer) write(ctx context.Context, target adapter.Adapter, table string, row types.Record) error {
	row = s.rules.Apply(table, row)

	if exec, ok := target.(adapter.StatementExecutor); ok && target.Kind() == types.KindSelfHosted {
		stmt, err := querybuilder.BuildUpsert(table, row)
		if err != nil {
			return err
		}
		_, err = exec.Exec(ctx, stmt)

		return err
	}

	return target.Upsert(ctx, table, row)
}

func truncate(msg string) string {
	if len(msg) <= maxErrorLen {
		return msg
	}

	return msg[:maxErrorLen]
}
