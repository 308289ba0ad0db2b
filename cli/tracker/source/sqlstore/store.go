package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/daniil11ru/fieldnav/cli/tracker/source"
)

const (
	pqUniqueViolation   = "23505"
	mysqlDuplicateEntry = 1062
	driverPostgres      = "postgres"
	driverMySQL         = "mysql"
)

// Store реализация TableStore поверх database/sql
type Store struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ source.TableStore = (*Store)(nil)

func New(db *sql.DB, driverName string) *Store {
	return &Store{db: db, builder: newBuilder(driverName)}
}

func newBuilder(driverName string) sq.StatementBuilderType {
	switch driverName {
	case driverPostgres:
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	case driverMySQL:
		return sq.StatementBuilder.PlaceholderFormat(sq.Question)
	default:
		return sq.StatementBuilder.PlaceholderFormat(sq.Question)
	}
}

func (s *Store) buildSelect(table string, q source.Query) sq.SelectBuilder {
	b := s.builder.Select("*").From(table)
	if len(q.Where) > 0 {
		b = b.Where(sq.Eq(q.Where))
	}
	if len(q.OrderBy) > 0 {
		b = b.OrderBy(q.OrderBy...)
	}
	if q.Limit > 0 {
		b = b.Limit(q.Limit)
	}
	return b
}

func (s *Store) buildInsert(table string, rows []source.Row) sq.InsertBuilder {
	columns := columnsOf(rows)
	b := s.builder.Insert(table).Columns(columns...)
	for _, row := range rows {
		values := make([]interface{}, len(columns))
		for i, col := range columns {
			values[i] = row[col]
		}
		b = b.Values(values...)
	}
	return b
}

func (s *Store) Select(ctx context.Context, table string, q source.Query) ([]source.Row, error) {
	query, args, err := s.buildSelect(table, q).ToSql()
	if err != nil {
		return nil, fmt.Errorf("не удалось собрать запрос к %s: %w", table, err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, classify(err)
	}

	var result []source.Row
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err = rows.Scan(pointers...); err != nil {
			return nil, classify(err)
		}

		row := make(source.Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				values[i] = append([]byte(nil), b...)
			}
			row[col] = values[i]
		}
		result = append(result, row)
	}
	if err = rows.Err(); err != nil {
		return nil, classify(err)
	}
	return result, nil
}

func (s *Store) Insert(ctx context.Context, table string, rows ...source.Row) error {
	if len(rows) == 0 {
		return nil
	}
	query, args, err := s.buildInsert(table, rows).ToSql()
	if err != nil {
		return fmt.Errorf("не удалось собрать вставку в %s: %w", table, err)
	}
	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		return classify(err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, table string, patch source.Row, where source.Filter) (int64, error) {
	query, args, err := s.builder.Update(table).SetMap(patch).Where(sq.Eq(where)).ToSql()
	if err != nil {
		return 0, fmt.Errorf("не удалось собрать обновление %s: %w", table, err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify(err)
	}
	return res.RowsAffected()
}

func (s *Store) Delete(ctx context.Context, table string, where source.Filter) (int64, error) {
	query, args, err := s.builder.Delete(table).Where(sq.Eq(where)).ToSql()
	if err != nil {
		return 0, fmt.Errorf("не удалось собрать удаление из %s: %w", table, err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify(err)
	}
	return res.RowsAffected()
}

func (s *Store) PingContext(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", source.ErrUnavailable, err)
	}
	return nil
}

func columnsOf(rows []source.Row) []string {
	set := map[string]struct{}{}
	for _, row := range rows {
		for col := range row {
			set[col] = struct{}{}
		}
	}
	columns := make([]string, 0, len(set))
	for col := range set {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}

func isDuplicate(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return true
	}
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

func classify(err error) error {
	switch {
	case isDuplicate(err):
		return fmt.Errorf("%w: %v", source.ErrDuplicate, err)
	case errors.Is(err, mysql.ErrInvalidConn), source.IsConnectivity(err):
		return fmt.Errorf("%w: %v", source.ErrUnavailable, err)
	default:
		return err
	}
}
