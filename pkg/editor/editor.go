// Package editor opens files in the user's text editor.
package editor

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/jingkaihe/rulesmgr/pkg/logger"
	"github.com/pkg/errors"
)

// DefaultCommand is used when no editor is configured anywhere.
const DefaultCommand = "vim"

// Launcher runs an editor command with a file path appended.
type Launcher struct {
	command []string
}

// New creates a Launcher for an editor command line such as "code --wait".
func New(command string) (*Launcher, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, errors.New("editor command must not be empty")
	}
	return &Launcher{command: fields}, nil
}

// Resolve picks the editor command: configured first, then git core.editor,
// GIT_EDITOR, VISUAL, EDITOR and finally DefaultCommand.
func Resolve(configured string) string {
	return resolve(configured, gitCoreEditor, os.Getenv)
}

func resolve(configured string, git func() string, getenv func(string) string) string {
	if configured = strings.TrimSpace(configured); configured != "" {
		return configured
	}
	if e := git(); e != "" {
		return e
	}
	for _, key := range []string{"GIT_EDITOR", "VISUAL", "EDITOR"} {
		if e := getenv(key); e != "" {
			return e
		}
	}
	return DefaultCommand
}

func gitCoreEditor() string {
	out, err := exec.Command("git", "config", "--get", "core.editor").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// Command builds the process that edits path, attached to the terminal.
func (l *Launcher) Command(ctx context.Context, path string) *exec.Cmd {
	args := append(append([]string{}, l.command[1:]...), path)
	cmd := exec.CommandContext(ctx, l.command[0], args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

// Open edits path and waits for the editor to exit.
func (l *Launcher) Open(ctx context.Context, path string) error {
	logger.G(ctx).WithField("editor", l.command[0]).WithField("path", path).Debug("opening editor")
	if err := l.Command(ctx, path).Run(); err != nil {
		return errors.Wrapf(err, "failed to run editor %s", l.command[0])
	}
	return nil
}
