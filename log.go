package padsp

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

/*------------------------------------------------------------------
 *
 * Purpose: Package-wide structured logger. Only the non-real-time
 *	paths log anything — stream open/close, backend failures, the
 *	host loop's fatal-error exit — the worker's steady-state
 *	per-block path never touches it, since a log call is exactly
 *	the kind of allocate-and-maybe-block operation the callback
 *	contract forbids.
 *
 *---------------------------------------------------------------*/

var logger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	Prefix:          "padsp",
})

// SetLogOutput lets an embedding application redirect or silence
// logging, e.g. in tests.
func SetLogOutput(w io.Writer) {
	if w == nil {
		logger.SetOutput(os.Stderr)
		return
	}
	logger.SetOutput(w)
}

// SetLogLevel adjusts verbosity; see github.com/charmbracelet/log for
// the level constants (log.DebugLevel, log.InfoLevel, ...).
func SetLogLevel(level log.Level) {
	logger.SetLevel(level)
}
