package app

import (
	"log/slog"
	"os"

	"github.com/maxsxu/settings-repository-plus/internal/settings/store"
)

// RestartExitCode signals the supervisor that the process wants to be
// restarted rather than stopped.
const RestartExitCode = 7

// ExitRestarter forces an immediate process exit with RestartExitCode. The
// sync run already persisted everything, so no save-and-confirm pass runs.
type ExitRestarter struct{}

func (ExitRestarter) Restart() {
	slog.Info("exiting for restart", "code", RestartExitCode)
	os.Exit(RestartExitCode)
}

// acceptAllPrompter approves restarts unconditionally. The daemon has no
// interactive surface; a supervisor brings the process back up.
type acceptAllPrompter struct{}

func (acceptAllPrompter) ConfirmRestart(notReloadable []store.ComponentName) bool {
	slog.Warn("components require reconstruction", "components", notReloadable)
	return true
}
