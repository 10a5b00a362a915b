package core

// Row is one result row keyed by column name. Text and blob columns are
// returned as strings.
type Row = map[string]any

// Result is the contract shared by QueryResult and AsyncQueryResult.
type Result interface {
	Query() string
	HasFailed() bool
	Err() error
	ErrorNumber() int
	ErrorMessage() string
	InsertID() int64
	NumberOfAffectedRows() int64
	NumberOfRows() int64
	HasDeadlock() bool
	HasLockTimeout() bool
	ResultArray() []Row
	ResultRow() Row
	ResultColumn(column string) []any
	ResultCell(column string) any
}

// QueryResult is the materialized outcome of one statement. Rows are
// buffered when the result is created and consumed through a forward-only
// cursor: every ResultXxx accessor advances it, and once exhausted they
// return empty values.
type QueryResult struct {
	query        string
	success      bool
	errNumber    int
	errMessage   string
	insertID     int64
	affectedRows int64
	columns      []string
	rows         []Row
	cursor       int
	deadlock     bool
	lockTimeout  bool
}

// newFailedResult builds a failed result and classifies its error number.
func newFailedResult(query string, number int, message string, d Driver) *QueryResult {
	r := &QueryResult{
		query:      query,
		errNumber:  number,
		errMessage: message,
	}
	if d != nil && number != 0 {
		r.deadlock = d.Deadlock(number)
		r.lockTimeout = d.LockTimeout(number)
	}
	return r
}

// newExecResult builds the result of a statement without a result set.
func newExecResult(query string, insertID, affected int64) *QueryResult {
	return &QueryResult{
		query:        query,
		success:      true,
		insertID:     insertID,
		affectedRows: affected,
	}
}

// newRowsResult builds the result of a statement returning rows. The
// affected row count equals the number of rows, as MySQL reports it.
func newRowsResult(query string, columns []string, rows []Row) *QueryResult {
	return &QueryResult{
		query:        query,
		success:      true,
		columns:      columns,
		rows:         rows,
		affectedRows: int64(len(rows)),
	}
}

// Query returns the executed statement.
func (r *QueryResult) Query() string { return r.query }

// HasFailed reports whether the statement or the connect attempt failed.
func (r *QueryResult) HasFailed() bool { return !r.success }

// Err returns a *QueryError for failed results and nil otherwise.
func (r *QueryResult) Err() error {
	if r.success {
		return nil
	}
	return &QueryError{Query: r.query, Number: r.errNumber, Message: r.errMessage}
}

// ErrorNumber returns the driver error number, 0 on success.
func (r *QueryResult) ErrorNumber() int { return r.errNumber }

// ErrorMessage returns the driver error message, "" on success.
func (r *QueryResult) ErrorMessage() string { return r.errMessage }

// InsertID returns the auto-increment id generated by an INSERT.
func (r *QueryResult) InsertID() int64 { return r.insertID }

// NumberOfAffectedRows returns the number of changed or returned rows.
func (r *QueryResult) NumberOfAffectedRows() int64 { return r.affectedRows }

// NumberOfRows returns the size of the result set.
func (r *QueryResult) NumberOfRows() int64 { return int64(len(r.rows)) }

// HasDeadlock reports whether the statement failed with a deadlock.
func (r *QueryResult) HasDeadlock() bool { return r.deadlock }

// HasLockTimeout reports whether the statement failed waiting for a lock.
func (r *QueryResult) HasLockTimeout() bool { return r.lockTimeout }

// Columns returns the result set column names in server order.
func (r *QueryResult) Columns() []string { return r.columns }

// ResultArray returns all remaining rows.
func (r *QueryResult) ResultArray() []Row {
	rows := make([]Row, 0, len(r.rows)-r.cursor)
	for row := r.next(); row != nil; row = r.next() {
		rows = append(rows, row)
	}
	return rows
}

// ResultRow returns the next row, or an empty row after exhaustion.
func (r *QueryResult) ResultRow() Row {
	if row := r.next(); row != nil {
		return row
	}
	return Row{}
}

// ResultColumn returns the values of one column over all remaining rows.
func (r *QueryResult) ResultColumn(column string) []any {
	values := make([]any, 0, len(r.rows)-r.cursor)
	for row := r.next(); row != nil; row = r.next() {
		values = append(values, row[column])
	}
	return values
}

// ResultCell returns one column of the next row, or nil when the column
// does not exist or the rows are exhausted.
func (r *QueryResult) ResultCell(column string) any {
	if row := r.next(); row != nil {
		return row[column]
	}
	return nil
}

func (r *QueryResult) next() Row {
	if r.cursor >= len(r.rows) {
		return nil
	}
	row := r.rows[r.cursor]
	r.cursor++
	return row
}
