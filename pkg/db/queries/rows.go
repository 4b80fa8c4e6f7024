package queries

// returnedRows is the part of *sqlx.Rows read after an INSERT ... RETURNING.
type returnedRows interface {
	Next() bool
	Err() error
	StructScan(dest interface{}) error
}

// scanReturned scans the first returned row into dest. It reports false with
// a nil error only when the statement produced no row; iteration failures
// surface as errors.
func scanReturned(rows returnedRows, dest interface{}) (bool, error) {
	if !rows.Next() {
		return false, rows.Err()
	}
	return true, rows.StructScan(dest)
}
