package memory

/*
Удаленное хранилище в памяти процесса. Повторяет поведение SQL-хранилища
(уникальность id, фильтры равенства и IN, сортировка), умеет имитировать
недоступность сети и отказы отдельных операций.
*/

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/daniil11ru/fieldnav/cli/tracker/source"
)

const (
	OpSelect = "select"
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

type fault struct {
	op    string
	table string
	err   error
	times int
}

type Store struct {
	mu      sync.Mutex
	tables  map[string][]source.Row
	offline bool
	faults  []*fault
}

var _ source.TableStore = (*Store)(nil)

func New() *Store {
	return &Store{tables: map[string][]source.Row{}}
}

// SetOffline все операции будут возвращать source.ErrUnavailable
func (s *Store) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = offline
}

// FailNext следующие times вызовов op над table вернут err
func (s *Store) FailNext(op, table string, err error, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, &fault{op: op, table: table, err: err, times: times})
}

// Rows копия содержимого таблицы
func (s *Store) Rows(table string) []source.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRows(s.tables[table])
}

func (s *Store) check(op, table string) error {
	if s.offline {
		return fmt.Errorf("%s %s: %w", op, table, source.ErrUnavailable)
	}
	for i, f := range s.faults {
		if f.op == op && f.table == table {
			f.times--
			if f.times <= 0 {
				s.faults = append(s.faults[:i], s.faults[i+1:]...)
			}
			return f.err
		}
	}
	return nil
}

func (s *Store) Select(_ context.Context, table string, q source.Query) ([]source.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(OpSelect, table); err != nil {
		return nil, err
	}

	var result []source.Row
	for _, row := range s.tables[table] {
		if matches(row, q.Where) {
			result = append(result, copyRow(row))
		}
	}
	sortRows(result, q.OrderBy)
	if q.Limit > 0 && uint64(len(result)) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

func (s *Store) Insert(_ context.Context, table string, rows ...source.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(OpInsert, table); err != nil {
		return err
	}

	seen := map[interface{}]struct{}{}
	for _, existing := range s.tables[table] {
		seen[existing["id"]] = struct{}{}
	}
	for _, row := range rows {
		id, ok := row["id"]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%s %v: %w", table, id, source.ErrDuplicate)
		}
		seen[id] = struct{}{}
	}

	s.tables[table] = append(s.tables[table], copyRows(rows)...)
	return nil
}

func (s *Store) Update(_ context.Context, table string, patch source.Row, where source.Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(OpUpdate, table); err != nil {
		return 0, err
	}

	var n int64
	for _, row := range s.tables[table] {
		if !matches(row, where) {
			continue
		}
		for k, v := range patch {
			row[k] = v
		}
		n++
	}
	return n, nil
}

func (s *Store) Delete(_ context.Context, table string, where source.Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(OpDelete, table); err != nil {
		return 0, err
	}

	kept := s.tables[table][:0]
	var n int64
	for _, row := range s.tables[table] {
		if matches(row, where) {
			n++
			continue
		}
		kept = append(kept, row)
	}
	s.tables[table] = kept
	return n, nil
}

func (s *Store) PingContext(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline {
		return source.ErrUnavailable
	}
	return ctx.Err()
}

func matches(row source.Row, where source.Filter) bool {
	for col, want := range where {
		got := row[col]
		v := reflect.ValueOf(want)
		if v.Kind() == reflect.Slice {
			found := false
			for i := 0; i < v.Len(); i++ {
				if reflect.DeepEqual(got, v.Index(i).Interface()) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func sortRows(rows []source.Row, orderBy []string) {
	if len(orderBy) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, clause := range orderBy {
			fields := strings.Fields(clause)
			if len(fields) == 0 {
				continue
			}
			desc := len(fields) > 1 && strings.EqualFold(fields[1], "DESC")
			c := compare(rows[i][fields[0]], rows[j][fields[0]])
			if c == 0 {
				continue
			}
			if desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compare(a, b interface{}) int {
	switch av := a.(type) {
	case time.Time:
		bv, _ := b.(time.Time)
		switch {
		case av.Before(bv):
			return -1
		case av.After(bv):
			return 1
		}
		return 0
	case int64:
		bv, _ := b.(int64)
		return compareOrdered(av, bv)
	case int:
		bv, _ := b.(int)
		return compareOrdered(av, bv)
	case float64:
		bv, _ := b.(float64)
		return compareOrdered(av, bv)
	case string:
		bv, _ := b.(string)
		return strings.Compare(av, bv)
	}
	return 0
}

func compareOrdered[T int | int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func copyRow(row source.Row) source.Row {
	c := make(source.Row, len(row))
	for k, v := range row {
		c[k] = v
	}
	return c
}

func copyRows(rows []source.Row) []source.Row {
	result := make([]source.Row, 0, len(rows))
	for _, row := range rows {
		result = append(result, copyRow(row))
	}
	return result
}
