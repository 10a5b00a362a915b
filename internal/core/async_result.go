package core

// AsyncQueryResult is returned by Connection.AsyncQuery before the server
// has answered. The first accessor call reaps the statement, blocking until
// it completes; later calls read the memoized QueryResult. A result must be
// drained by a single caller.
type AsyncQueryResult struct {
	query   string
	pending <-chan *QueryResult
	fetched bool
	result  *QueryResult
}

// newPendingResult wraps the channel a statement goroutine reports on.
func newPendingResult(query string, pending <-chan *QueryResult) *AsyncQueryResult {
	return &AsyncQueryResult{query: query, pending: pending}
}

// newFetchedResult wraps a result that is known before issuing the
// statement, such as a connect failure.
func newFetchedResult(result *QueryResult) *AsyncQueryResult {
	return &AsyncQueryResult{query: result.query, fetched: true, result: result}
}

// fetch reaps the pending statement once.
func (r *AsyncQueryResult) fetch() {
	if r.fetched {
		return
	}
	r.result = <-r.pending
	r.pending = nil
	r.fetched = true
}

// Fetched reports whether the statement has been reaped.
func (r *AsyncQueryResult) Fetched() bool { return r.fetched }

// Reap blocks until the statement completes and returns its result.
func (r *AsyncQueryResult) Reap() *QueryResult {
	r.fetch()
	return r.result
}

// Query returns the statement. It does not reap.
func (r *AsyncQueryResult) Query() string { return r.query }

func (r *AsyncQueryResult) HasFailed() bool { return r.Reap().HasFailed() }
func (r *AsyncQueryResult) Err() error { return r.Reap().Err() }
func (r *AsyncQueryResult) ErrorNumber() int { return r.Reap().ErrorNumber() }
func (r *AsyncQueryResult) ErrorMessage() string { return r.Reap().ErrorMessage() }
func (r *AsyncQueryResult) InsertID() int64 { return r.Reap().InsertID() }
func (r *AsyncQueryResult) NumberOfAffectedRows() int64 { return r.Reap().NumberOfAffectedRows() }
func (r *AsyncQueryResult) NumberOfRows() int64 { return r.Reap().NumberOfRows() }
func (r *AsyncQueryResult) HasDeadlock() bool { return r.Reap().HasDeadlock() }
func (r *AsyncQueryResult) HasLockTimeout() bool { return r.Reap().HasLockTimeout() }
func (r *AsyncQueryResult) ResultArray() []Row { return r.Reap().ResultArray() }
func (r *AsyncQueryResult) ResultRow() Row { return r.Reap().ResultRow() }

func (r *AsyncQueryResult) ResultColumn(column string) []any { return r.Reap().ResultColumn(column) }
func (r *AsyncQueryResult) ResultCell(column string) any { return r.Reap().ResultCell(column) }

var (
	_ Result = (*QueryResult)(nil)
	_ Result = (*AsyncQueryResult)(nil)
)
