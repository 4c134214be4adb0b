package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

// QueryParams encapsulates all query parameters
type QueryParams struct {
	// Where holds the WHERE clause without the "WHERE" keyword
	// Example: "Time > ? AND Signal = ?"
	Where string

	// Args holds the arguments for the placeholders in Where
	Args []any

	// Limit is the maximum number of records to return (pagination)
	// Set to 0 for no limit
	Limit int

	// Offset is the number of records to skip (pagination)
	Offset int

	// OrderBy specifies sorting, without the "ORDER BY" keywords
	// Example: "Time DESC"
	OrderBy string
}

// DataReader can read recorded data back.
type DataReader interface {
	// MapTable establishes a mapping between a database table and a Go struct
	// type. This mapping is required before querying a table.
	MapTable(tableName string, sampleEntry any)

	// ListTables returns a list of all tables that have been mapped.
	ListTables() []string

	// Query executes a query on a table and returns the results, each a
	// pointer to a struct of the mapped type.
	Query(ctx context.Context, tableName string, params QueryParams) (
		results []any,
		totalCount int,
		err error,
	)

	// Close closes the reader
	Close() error
}

type sqliteReader struct {
	*sql.DB

	typeMap map[string]reflect.Type
}

// NewReader opens a recorded database.
func NewReader(path string) (DataReader, error) {
	db, err := sql.Open("sqlite3", "file:"+FileName(path)+"?mode=ro")
	if err != nil {
		return nil, errors.Wrap(err, "opening recording")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "opening recording")
	}

	return NewReaderWithDB(db), nil
}

// NewReaderWithDB creates a new DataReader with a given database
func NewReaderWithDB(db *sql.DB) DataReader {
	return &sqliteReader{
		DB:      db,
		typeMap: make(map[string]reflect.Type),
	}
}

func (r *sqliteReader) MapTable(tableName string, sampleEntry any) {
	r.typeMap[tableName] = reflect.TypeOf(sampleEntry)
}

func (r *sqliteReader) ListTables() []string {
	tables := make([]string, 0, len(r.typeMap))
	for table := range r.typeMap {
		tables = append(tables, table)
	}

	return tables
}

func (r *sqliteReader) Query(
	ctx context.Context,
	tableName string,
	params QueryParams,
) ([]any, int, error) {
	structType, ok := r.typeMap[tableName]
	if !ok {
		return nil, 0, errors.Errorf("no mapping found for table: %s", tableName)
	}

	query := fmt.Sprintf("SELECT * FROM %s", tableName)

	if params.Where != "" {
		query += " WHERE " + params.Where
	}

	if params.OrderBy != "" {
		query += " ORDER BY " + params.OrderBy
	}

	if params.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", params.Limit)
		if params.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", params.Offset)
		}
	}

	totalCount, err := r.queryTotalCount(ctx, tableName, params)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.DB.QueryContext(ctx, query, params.Args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	results, err := r.scanRowsToSlice(rows, structType)
	if err != nil {
		return nil, 0, err
	}

	return results, totalCount, nil
}

func (r *sqliteReader) queryTotalCount(
	ctx context.Context,
	tableName string,
	params QueryParams,
) (int, error) {
	var totalCount int

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", tableName)

	if params.Where != "" {
		countQuery += " WHERE " + params.Where
	}

	err := r.DB.QueryRowContext(ctx, countQuery, params.Args...).Scan(&totalCount)
	if err != nil {
		return 0, err
	}

	return totalCount, nil
}

func (r *sqliteReader) scanRowsToSlice(
	rows *sql.Rows,
	structType reflect.Type,
) ([]any, error) {
	var results []any

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	fieldMap := make(map[string]int)

	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		fieldMap[field.Name] = i
	}

	for rows.Next() {
		structPtr := reflect.New(structType)
		structVal := structPtr.Elem()
		scanTargets := make([]interface{}, len(columns))

		for i, colName := range columns {
			if fieldIdx, ok := fieldMap[colName]; ok {
				fieldVal := structVal.Field(fieldIdx)
				scanTargets[i] = fieldVal.Addr().Interface()
			} else {
				var placeholder interface{}

				scanTargets[i] = &placeholder
			}
		}

		if err := rows.Scan(scanTargets...); err != nil {
			return nil, err
		}

		results = append(results, structPtr.Interface())
	}

	return results, rows.Err()
}

func (r *sqliteReader) Close() error {
	return r.DB.Close()
}

// DeltaStat summarizes the delta cycles of one time step.
type DeltaStat struct {
	Time    uint64
	Deltas  int
	Changes int
	Resumed int
}

// Reader answers questions about a recording made by a SignalRecorder.
type Reader struct {
	DataReader
}

// OpenRecording opens a recording made by a SignalRecorder.
func OpenRecording(path string) (*Reader, error) {
	dr, err := NewReader(path)
	if err != nil {
		return nil, err
	}

	dr.MapTable(SignalTable, SignalRow{})
	dr.MapTable(ChangeTable, ChangeRow{})
	dr.MapTable(DeltaTable, DeltaRow{})

	return &Reader{DataReader: dr}, nil
}

// Signals lists the recorded signals by id.
func (r *Reader) Signals(ctx context.Context) ([]SignalRow, error) {
	results, _, err := r.Query(ctx, SignalTable, QueryParams{OrderBy: "ID"})
	if err != nil {
		return nil, err
	}

	out := make([]SignalRow, 0, len(results))
	for _, res := range results {
		out = append(out, *res.(*SignalRow))
	}

	return out, nil
}

// SignalHistory returns the changes of a signal in time order. The first
// row holds the initial value, with delta -1.
func (r *Reader) SignalHistory(
	ctx context.Context,
	name string,
) ([]ChangeRow, error) {
	results, _, err := r.Query(ctx, ChangeTable, QueryParams{
		Where:   "Signal = ?",
		Args:    []any{name},
		OrderBy: "Time, Delta",
	})
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return nil, errors.Errorf("signal %s was not recorded", name)
	}

	out := make([]ChangeRow, 0, len(results))
	for _, res := range results {
		out = append(out, *res.(*ChangeRow))
	}

	return out, nil
}

// DeltaStats returns, per time step, the number of delta cycles, value
// changes and process resumptions.
func (r *Reader) DeltaStats(ctx context.Context) ([]DeltaStat, error) {
	rows, err := r.DataReader.(*sqliteReader).QueryContext(ctx,
		"SELECT Time, COUNT(*), SUM(Changes), SUM(Resumed) FROM "+
			DeltaTable+" GROUP BY Time ORDER BY Time")
	if err != nil {
		return nil, errors.Wrap(err, "reading delta statistics")
	}
	defer rows.Close()

	var stats []DeltaStat

	for rows.Next() {
		var s DeltaStat
		if err := rows.Scan(&s.Time, &s.Deltas, &s.Changes, &s.Resumed); err != nil {
			return nil, err
		}

		stats = append(stats, s)
	}

	return stats, rows.Err()
}
