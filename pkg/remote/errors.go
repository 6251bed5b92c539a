// Package remote is the thin client over the hosted relational store.
// Failures are converted to *Error values carrying a stable Code.
package remote

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Code classifies remote failures.
type Code string

const (
	CodeTableNotFound     Code = "TABLE_NOT_FOUND"
	CodeBucketNotFound    Code = "BUCKET_NOT_FOUND"
	CodeRLSPolicyRequired Code = "RLS_POLICY_REQUIRED"
	CodeDuplicateEmail    Code = "DUPLICATE_EMAIL"
	CodeDuplicateKey      Code = "DUPLICATE_KEY"
	CodeNotFound          Code = "NOT_FOUND"
	CodeUnknown           Code = "UNKNOWN"
)

// ErrNotFound is returned when a row lookup by id matches nothing.
var ErrNotFound = &Error{Code: CodeNotFound, Message: "record not found"}

// Error is a classified remote failure.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Table   string `json:"table,omitempty"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Table, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of a classified error, or "" for nil / unclassified errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries code.
func IsCode(err error, code Code) bool { return CodeOf(err) == code }

// Permanent reports whether retrying err cannot succeed without a data change.
func Permanent(err error) bool {
	switch CodeOf(err) {
	case CodeDuplicateEmail, CodeDuplicateKey, CodeNotFound:
		return true
	}
	return false
}

// Classify converts database and object-store failures into *Error.
// table is recorded on the result for remediation messages.
func Classify(err error, table string) error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		if re.Table == "" && table != "" {
			cp := *re
			cp.Table = table
			return &cp
		}
		return re
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &Error{Code: CodeNotFound, Message: "record not found", Table: table, Err: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P01", "3F000": // undefined_table, invalid_schema_name
			return &Error{Code: CodeTableNotFound, Message: fmt.Sprintf("table %q does not exist", table), Table: table, Err: err}
		case "42501": // insufficient_privilege, raised by row-level security
			return &Error{Code: CodeRLSPolicyRequired, Message: "row-level security policy rejected the request", Table: table, Err: err}
		case "23505": // unique_violation
			hint := strings.ToLower(pgErr.ConstraintName + " " + pgErr.Detail)
			if strings.Contains(hint, "email") {
				return &Error{Code: CodeDuplicateEmail, Message: "a record with this email already exists", Table: table, Err: err}
			}
			return &Error{Code: CodeDuplicateKey, Message: pgErr.Message, Table: table, Err: err}
		}
		return &Error{Code: CodeUnknown, Message: pgErr.Message, Table: table, Err: err}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchBucket":
			return &Error{Code: CodeBucketNotFound, Message: fmt.Sprintf("bucket %q does not exist", table), Table: table, Err: err}
		case "AccessDenied", "AllAccessDisabled":
			return &Error{Code: CodeRLSPolicyRequired, Message: "storage policy does not allow this upload", Table: table, Err: err}
		}
	}
	return &Error{Code: CodeUnknown, Message: err.Error(), Table: table, Err: err}
}
