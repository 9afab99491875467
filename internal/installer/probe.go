package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/opencode-updater/internal/domain/release"
)

// versionCommandTimeout is the timeout for executing version commands.
const versionCommandTimeout = 10 * time.Second

// errInvalidVersionOutput is returned when the output carries no version.
var errInvalidVersionOutput = errors.New("invalid version output format")

// versionPattern finds the first MAJOR.MINOR.PATCH token, optionally "v"-prefixed.
var versionPattern = regexp.MustCompile(`v?\d+\.\d+\.\d+(?:-[0-9A-Za-z.-]+)?(?:\+[0-9A-Za-z.-]+)?`)

// ProbeVersion runs "<path> --version" and returns the normalized version.
func ProbeVersion(ctx context.Context, path string) (string, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, versionCommandTimeout)
	defer cancel()

	output, err := exec.CommandContext(cmdCtx, path, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("run %s --version: %w", path, err)
	}

	return parseVersionOutput(string(output))
}

// parseVersionOutput accepts "1.2.3", "v1.2.3" and
// "version: 1.2.3, commit: abc, built at: ..." forms.
func parseVersionOutput(output string) (string, error) {
	output = strings.TrimSpace(output)
	if after, found := strings.CutPrefix(output, "version: "); found {
		output, _, _ = strings.Cut(after, ",")
	}

	token := versionPattern.FindString(output)
	if token == "" {
		return "", fmt.Errorf("%w: %q", errInvalidVersionOutput, output)
	}

	parsed, err := release.ParseVersion(token)
	if err != nil {
		return "", err
	}

	return parsed.String(), nil
}

// RunningInstances returns the PIDs of processes whose executable is name,
// excluding the current process.
func RunningInstances(name string) ([]int, error) {
	processList, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	thisProcessID := os.Getpid()
	result := make([]int, 0, 1)

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() != name {
			continue
		}

		result = append(result, process.Pid())
	}

	return result, nil
}
