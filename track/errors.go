package track

import (
	"errors"
	"fmt"
)

// ErrLedgerFull indicates the ledger hit its configured entry limit and
// could not grow to record another tracked object. The failed Add leaves
// the ledger unchanged.
var ErrLedgerFull = errors.New("track: ledger full")

// InvariantError reports a bookkeeping defect in the caller, such as two
// live entries for one overflow reference. It is delivered by panic, never
// as an error return: continuing would risk freeing a block that is still
// referenced.
type InvariantError struct {
	Page PageID
	Ref  RefID
	Msg  string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("track: invariant violation on page %d, ref %d: %s", e.Page, e.Ref, e.Msg)
}
