package tools

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/datascope-io/datascope-engine/pkg/analysis"
)

// ErrorResponse represents a structured error in tool results.
// This is used to return actionable error information to the calling model
// as a tool result, ensuring error details are visible rather than being
// swallowed by the MCP client.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for recoverable/actionable errors that the caller can see and
// potentially fix (invalid parameters, unknown table, unusable column).
//
// Do NOT use this for system failures (database connection errors,
// internal server errors) - those should still return Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// NewErrorResultWithDetails creates an error result with additional context.
// The details field can carry anything that helps the caller correct the
// request, such as the list of valid columns.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// resultFromAnalysisError maps engine errors onto structured error results.
// Validation errors and SQL user errors become JSON error results the caller
// can act on; anything else returns nil and the tool should surface the Go
// error through the MCP protocol.
func resultFromAnalysisError(err error) *mcp.CallToolResult {
	if err == nil {
		return nil
	}
	if analysis.IsValidation(err) {
		return NewErrorResult("validation_error", err.Error())
	}
	return NewSQLErrorResult(err)
}

// sqlStateRegex matches PostgreSQL SQLSTATE codes in error messages like "(SQLSTATE 42601)"
var sqlStateRegex = regexp.MustCompile(`\(SQLSTATE ([0-9A-Z]{5})\)`)

// IsSQLUserError returns true if the error is a SQL user error (bad SQL,
// constraint violation, missing table, etc.) rather than a server error
// (connection failure, internal error, etc.).
//
// These errors should be returned as JSON error results, not MCP protocol
// errors, because they are actionable - the caller can fix the SQL and retry.
//
// PostgreSQL SQLSTATE class codes that indicate user errors:
//   - 22xxx: Data Exception (invalid input, division by zero)
//   - 23xxx: Integrity Constraint Violation (unique, FK, check)
//   - 42xxx: Syntax Error or Access Rule Violation
//   - 44xxx: WITH CHECK OPTION Violation
func IsSQLUserError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return isSQLStateUserError(pgErr.Code)
	}

	// Check for SQLSTATE pattern in error message (for wrapped errors)
	errStr := err.Error()
	if matches := sqlStateRegex.FindStringSubmatch(errStr); len(matches) >= 2 {
		return isSQLStateUserError(matches[1])
	}

	return false
}

// isSQLStateUserError returns true if the SQLSTATE code indicates a user error.
func isSQLStateUserError(code string) bool {
	if len(code) < 2 {
		return false
	}
	class := code[:2]
	switch class {
	case "22", // Data Exception
		"23", // Integrity Constraint Violation
		"42", // Syntax Error or Access Rule Violation
		"44": // WITH CHECK OPTION Violation
		return true
	}
	return false
}

// SQLUserErrorCode returns an appropriate error code for a SQL user error.
// Returns empty string if the error is not a SQL user error.
func SQLUserErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapSQLStateToCode(pgErr.Code)
	}

	errStr := err.Error()
	if matches := sqlStateRegex.FindStringSubmatch(errStr); len(matches) >= 2 {
		return mapSQLStateToCode(matches[1])
	}

	return ""
}

// mapSQLStateToCode maps a SQLSTATE code to a human-readable error code.
func mapSQLStateToCode(sqlState string) string {
	if len(sqlState) < 2 {
		return "sql_error"
	}

	switch sqlState {
	case "42601": // syntax_error
		return "syntax_error"
	case "42703": // undefined_column
		return "undefined_column"
	case "42P01": // undefined_table
		return "undefined_table"
	case "42P02": // undefined_parameter
		return "undefined_parameter"
	case "42883": // undefined_function
		return "undefined_function"
	case "23505": // unique_violation
		return "unique_violation"
	case "23503": // foreign_key_violation
		return "foreign_key_violation"
	case "23502": // not_null_violation
		return "not_null_violation"
	case "23514": // check_violation
		return "check_violation"
	case "22001": // string_data_right_truncation (value too long)
		return "value_too_long"
	case "22003": // numeric_value_out_of_range
		return "numeric_out_of_range"
	case "22007": // invalid_datetime_format
		return "invalid_datetime"
	case "22012": // division_by_zero
		return "division_by_zero"
	case "22P02": // invalid_text_representation (invalid input syntax)
		return "invalid_input"
	}

	// Fall back to class-based codes
	class := sqlState[:2]
	switch class {
	case "22":
		return "data_exception"
	case "23":
		return "constraint_violation"
	case "42":
		return "sql_error"
	case "44":
		return "check_option_violation"
	}

	return "sql_error"
}

// ExtractSQLErrorMessage extracts a clean error message from a SQL error.
// Removes the "SQLSTATE XXXXX" suffix and any wrapping prefixes for cleaner display.
func ExtractSQLErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Message
	}

	msg := err.Error()

	// Remove SQLSTATE suffix
	if idx := strings.Index(msg, " (SQLSTATE"); idx != -1 {
		msg = msg[:idx]
	}

	// Remove common prefixes from wrapped errors
	prefixes := []string{
		"execute query: ",
		"sample table: ",
		"correlation query: ",
		"group-by query: ",
		"time-series query: ",
		"column scan: ",
		"ERROR: ",
	}
	for _, prefix := range prefixes {
		msg = strings.TrimPrefix(msg, prefix)
	}

	return msg
}

// NewSQLErrorResult creates an error result from a SQL error if it's a user error.
// Returns nil if the error is not a SQL user error (caller should return Go error instead).
func NewSQLErrorResult(err error) *mcp.CallToolResult {
	if !IsSQLUserError(err) {
		return nil
	}
	code := SQLUserErrorCode(err)
	message := ExtractSQLErrorMessage(err)
	return NewErrorResult(code, message)
}

// inputErrorPatterns are substrings that indicate an error is due to user input
// rather than a server failure. These errors should be logged at DEBUG/INFO level,
// not ERROR level, because they are expected when users provide invalid input.
var inputErrorPatterns = []string{
	"not found",
	"does not exist",
	"is not a numeric column",
	"is not a date/time column",
	"invalid input",
	"missing required",
	"cannot be empty",
	"multiple SQL statements",
}

// IsInputError returns true if the error appears to be caused by user input
// rather than a server failure.
func IsInputError(err error) bool {
	if err == nil {
		return false
	}

	if analysis.IsValidation(err) {
		return true
	}
	if IsSQLUserError(err) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range inputErrorPatterns {
		if strings.Contains(errStr, strings.ToLower(pattern)) {
			return true
		}
	}

	return false
}
