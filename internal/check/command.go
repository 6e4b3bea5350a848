package check

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/learningequality/bundlegen/internal/stage"
	"github.com/learningequality/bundlegen/internal/violation"
)

// unixLine matches the "path:line:column: message [Severity/rule]" output
// most linters offer as their unix formatter.
var unixLine = regexp.MustCompile(`^(.+?):(\d+):(\d+):\s*(.*?)(?:\s+\[(?:[A-Za-z]+/)?([^\]]+)\])?$`)

// Command is a processor backed by an external linter. The asset path is
// appended to Args and the command runs in Dir. A zero exit status means no
// violations; any other status is parsed into violations from the output.
type Command struct {
	Dir  string
	Args []string
}

func NewCommand(dir string, args ...string) *Command {
	return &Command{Dir: dir, Args: args}
}

func (c *Command) Process(ctx context.Context, st stage.Stage, path string, content []byte) (violation.Result, error) {
	if len(c.Args) == 0 {
		return violation.Result{}, fmt.Errorf("stage %s: empty command", st.Name)
	}

	cmd := exec.CommandContext(ctx, c.Args[0], slices.Concat(c.Args[1:], []string{path})...)
	cmd.Dir = c.Dir
	cmd.Stdin = bytes.NewReader(content)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return violation.Result{}, nil
	case errors.As(err, &exitErr):
		return violation.Result{Violations: parseViolations(out.String(), path, exitErr.ExitCode())}, nil
	default:
		return violation.Result{}, fmt.Errorf("run %s: %w", c.Args[0], err)
	}
}

func parseViolations(output, path string, code int) []violation.Violation {
	var vs []violation.Violation
	for line := range strings.Lines(output) {
		m := unixLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		ln, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		vs = append(vs, violation.Violation{Path: m[1], Line: ln, Column: col, Message: m[4], Rule: m[5]})
	}
	if len(vs) == 0 {
		msg := strings.TrimSpace(output)
		if msg == "" {
			msg = fmt.Sprintf("exited with status %d", code)
		}
		vs = append(vs, violation.Violation{Path: path, Message: msg})
	}
	return vs
}
