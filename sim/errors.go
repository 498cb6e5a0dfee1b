package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// InvariantError reports a violated instrumentation or host invariant: an
// invalid thread id, a missing host handle, a zero program counter or corrupted
// counters. These indicate a bug in the instrumentation layer or the host, so
// the controller raises them as panics rather than returning them.
type InvariantError struct {
	Op  string
	Msg string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated in %s: %s", e.Op, e.Msg)
}

// invariantf logs and panics with an *InvariantError.
func invariantf(op, format string, args ...any) {
	err := &InvariantError{Op: op, Msg: fmt.Sprintf(format, args...)}
	logrus.WithField("op", op).Error(err.Msg)
	panic(err)
}
