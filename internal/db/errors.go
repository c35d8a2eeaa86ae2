//-------------------------------------------------------------------------
//
// pgEdge Olist Warehouse Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package db

import (
	"errors"
	"io/fs"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorKind groups failures by the stage of the pipeline they abort.
type ErrorKind int

const (
	// KindUnknown is anything the classifier does not recognize.
	KindUnknown ErrorKind = iota
	// KindConnection covers unreachable hosts, bad credentials and
	// unknown databases. Fatal before any schema work.
	KindConnection
	// KindSchema covers DDL problems such as an incompatible existing
	// table or an undefined object.
	KindSchema
	// KindData covers data exceptions and integrity constraint
	// violations raised while loading or transforming rows.
	KindData
)

// SQLSTATE codes checked explicitly.
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgCodeForeignKeyViolation = "23503"
	pgCodeUniqueViolation     = "23505"
	pgCodeCheckViolation      = "23514"
	pgCodeNotNullViolation    = "23502"
	pgCodeUndefinedFile       = "58P01"
)

// String returns a short name for the kind, used in log fields.
func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindSchema:
		return "schema"
	case KindData:
		return "data"
	default:
		return "unknown"
	}
}

// Classify maps an error onto the pipeline's error taxonomy.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyCode(pgErr.Code)
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return KindConnection
	}

	if isNetworkError(err) {
		return KindConnection
	}

	// Local CSV file missing or unreadable during a stdin copy
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return KindData
	}

	return KindUnknown
}

func classifyCode(code string) ErrorKind {
	switch {
	// Class 08 - Connection Exception, 28 - Invalid Authorization,
	// 3D - Invalid Catalog Name (unknown database)
	case strings.HasPrefix(code, "08"),
		strings.HasPrefix(code, "28"),
		strings.HasPrefix(code, "3D"):
		return KindConnection

	// Class 42 - Syntax Error or Access Rule Violation, 3F - Invalid Schema Name
	case strings.HasPrefix(code, "42"),
		strings.HasPrefix(code, "3F"):
		return KindSchema

	// Class 22 - Data Exception, 23 - Integrity Constraint Violation.
	// A missing server-side COPY file is a data problem too.
	case strings.HasPrefix(code, "22"),
		strings.HasPrefix(code, "23"),
		code == pgCodeUndefinedFile:
		return KindData
	}
	return KindUnknown
}

func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH)
}

// SQLState returns the SQLSTATE of a PostgreSQL error, or "".
func SQLState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsUniqueViolation reports a duplicate primary or unique key.
func IsUniqueViolation(err error) bool {
	return SQLState(err) == pgCodeUniqueViolation
}

// IsForeignKeyViolation reports a missing foreign key parent row.
func IsForeignKeyViolation(err error) bool {
	return SQLState(err) == pgCodeForeignKeyViolation
}

// IsCheckViolation reports a failed CHECK constraint.
func IsCheckViolation(err error) bool {
	return SQLState(err) == pgCodeCheckViolation
}

// IsNotNullViolation reports a NULL written to a NOT NULL column.
func IsNotNullViolation(err error) bool {
	return SQLState(err) == pgCodeNotNullViolation
}
