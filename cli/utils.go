package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"go.viam.com/stereo/logging"
)

// printf prints a message with no decoration.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// warningf prints a message prefixed with a bold yellow "Warning: ".
func warningf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, "\x1b[1;33mWarning:\x1b[0m "+format+"\n", a...)
}

// Errorf prints a message prefixed with a bold red "Error: " prefix and exits with 1.
func Errorf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, "\x1b[1;31mError:\x1b[0m "+strings.TrimSuffix(format, "\n")+"\n", a...)
	os.Exit(1)
}

// newLogger returns the logger actions use, honoring the global debug flag.
// It also becomes the global logger.
func newLogger(c *cli.Context) logging.Logger {
	logger := logging.NewLogger("stereo")
	if c.Bool(debugFlag) {
		logger = logging.NewDebugLogger("stereo")
	}
	logging.ReplaceGlobal(logger)
	return logger
}
