package notemd

import (
	"strings"

	"github.com/akeil/notemd/internal/logging"
)

// SetLogLevel sets the logging level for this package and its children.
// Accepts one of "debug", "info", "warning" or "error";
// anything else turns logging off.
func SetLogLevel(level string) {
	var lvl logging.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = logging.LevelDebug
	case "info":
		lvl = logging.LevelInfo
	case "warning":
		lvl = logging.LevelWarning
	case "error":
		lvl = logging.LevelError
	default:
		lvl = logging.LevelNone
	}
	logging.SetLevel(lvl)
}
