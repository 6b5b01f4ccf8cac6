package apperrors

import "errors"

var (
	ErrTableNotFound         = errors.New("table not found in schema")
	ErrColumnNotFound        = errors.New("column not found in table")
	ErrEmptyFilterSpec       = errors.New("filter specification is empty")
	ErrDisconnectedJoinGraph = errors.New("join graph is disconnected")
	ErrUnsupportedDriver     = errors.New("unsupported database driver")
	ErrUnsafeFilterValue     = errors.New("filter value failed injection screening")
)
