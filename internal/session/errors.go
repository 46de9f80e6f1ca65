package session

import "fmt"

// EngineError wraps a session engine failure with a dotted operation code so
// callers and logs can distinguish failure sites without string matching.
type EngineError struct {
	code string
	err  error
}

func (e *EngineError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *EngineError) Unwrap() error {
	return e.err
}

func (e *EngineError) Code() string {
	return e.code
}

const (
	opLedgerNew       = "session.ledger.new"
	opVoteSubmit      = "session.vote.submit"
	opCursorStoreNew  = "session.cursor_store.new"
	opContextStoreNew = "session.context_store.new"
	opContextSave     = "session.context.save"
	opSynchronizerNew = "session.synchronizer.new"
	opSync            = "session.sync"
	opTieBreak        = "session.tie_break"
	opWatchParty      = "session.watch_party"
	opEnd             = "session.end"
)

func newEngineError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &EngineError{code: code, err: cause}
}
