// Package deps reports which registered applications can be resolved on PATH.
package deps

import (
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"serialapps/internal/logging"
	"serialapps/internal/registry"
)

// Requirement is an executable the daemon may be asked to start.
type Requirement struct {
	Name    string
	Command string
	Code    int
}

// Status reports whether a requirement resolves to an executable.
type Status struct {
	Name      string
	Command   string
	Code      int
	Available bool
	Path      string
	Detail    string
}

// ForRegistry builds one requirement per registry entry.
func ForRegistry(entries []registry.Entry) []Requirement {
	reqs := make([]Requirement, 0, len(entries))
	for _, entry := range entries {
		reqs = append(reqs, Requirement{
			Name:    "code " + strconv.Itoa(entry.Code),
			Command: entry.Application,
			Code:    entry.Code,
		})
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{Name: req.Name, Command: cmd, Code: req.Code}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = path
		results = append(results, status)
	}
	return results
}

// Missing filters statuses down to unavailable commands.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available {
			missing = append(missing, status)
		}
	}
	return missing
}

// LogSnapshot logs one summary line and a warning per missing application.
// Missing applications are not fatal; launches of them fail individually.
func LogSnapshot(logger *slog.Logger, statuses []Status) {
	if logger == nil {
		return
	}
	missing := Missing(statuses)
	names := make([]string, 0, len(missing))
	for _, status := range missing {
		names = append(names, status.Command)
	}
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Int("applications", len(statuses)),
		logging.Int("available", len(statuses)-len(missing)),
		logging.Strings("missing", names),
	)
	for _, status := range missing {
		logging.WarnWithContext(logger, "registered application not found", "dependency_missing",
			logging.Int("code", status.Code),
			logging.String("application", status.Command),
			logging.String("detail", status.Detail),
			logging.String(logging.FieldErrorHint, "install the application or remove it from apps"),
			logging.String(logging.FieldImpact, "selecting this code will fail to launch"),
		)
	}
}
