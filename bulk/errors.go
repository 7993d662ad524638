package bulk

import (
	"fmt"

	"github.com/keeldb/keel/record"
)

// Error codes reported by the bulk engine.
const (
	CodeNoPrimaryKey    = "E_NO_PRIMARY_KEY"
	CodeNoChangedFields = "E_NO_CHANGED_FIELDS"
	CodeAcquireFailed   = "E_ACQUIRE_FAILED"
	CodePrepareFailed   = "E_PREPARE_FAILED"
	CodeExecFailed      = "E_EXEC_FAILED"
	CodeHookFailed      = "E_HOOK_FAILED"
	CodeSourceFailed    = "E_SOURCE_FAILED"
	CodeBadChange       = "E_BAD_CHANGE"
)

// MutationError is a failed bulk mutation step: initialization, statement
// compilation, batch execution or a hook. It carries a stable code, the
// mutation kind, the target table and the underlying cause.
type MutationError struct {
	Code    string
	Op      string
	Table   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *MutationError) Error() string {
	msg := fmt.Sprintf("%s: %s (op=%s, table=%s)", e.Code, e.Message, e.Op, e.Table)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is and errors.As.
func (e *MutationError) Unwrap() error {
	return e.Cause
}

func newMutationError(code string, kind record.ChangeKind, table, message string, cause error) *MutationError {
	return &MutationError{
		Code:    code,
		Op:      kind.String(),
		Table:   table,
		Message: message,
		Cause:   cause,
	}
}

// RejectedError reports rows rejected during a batch execute when the
// operation registered no reject callback to absorb them. Rejects are in
// arrival order; Cause is the driver error that accompanied the batch, if
// any.
type RejectedError struct {
	Table   string
	Rejects []*record.Record
	Cause   error
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	msg := fmt.Sprintf("E_BATCH_REJECTED: %d row(s) rejected (table=%s)", len(e.Rejects), e.Table)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the driver error behind the rejection, if any.
func (e *RejectedError) Unwrap() error {
	return e.Cause
}
