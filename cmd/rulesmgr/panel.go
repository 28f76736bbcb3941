package main

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/jingkaihe/rulesmgr/pkg/config"
	"github.com/jingkaihe/rulesmgr/pkg/logger"
	"github.com/jingkaihe/rulesmgr/pkg/panel"
	"github.com/jingkaihe/rulesmgr/pkg/presenter"
	"github.com/jingkaihe/rulesmgr/pkg/tui"
	"github.com/spf13/cobra"
)

var panelCmd = &cobra.Command{
	Use:   "panel",
	Short: "Browse and manage rules interactively",
	Long: `Open the interactive rules panel. It lists the project's rule files and your
global rules side by side with a preview, and lets you create, open, delete, save
as global and copy global rules into the project.

Press ? inside the panel for key bindings.`,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := runPanel(cmd.Context()); err != nil {
			presenter.Error(err, "Panel failed")
			exitWithError(cmd.Context(), err)
		}
	},
}

func init() {
	rootCmd.AddCommand(panelCmd)
}

// newPanelManager builds panels whose project store defers editor launches to
// the terminal UI.
func newPanelManager(opener *tui.DeferredOpener) *panel.Manager {
	return panel.NewManager(func(ctx context.Context) (*panel.Controller, error) {
		notices := &panel.NoticeBuffer{}
		a, err := newApp(ctx, loadedConfig, appOptions{opener: opener, notifier: notices})
		if err != nil {
			return nil, err
		}
		return panel.NewController(a.project, a.global, a.editorType(),
			panel.WithNotices(notices),
			panel.WithOnClose(a.Close),
		), nil
	})
}

func runPanel(ctx context.Context) error {
	// The panel owns the terminal; log lines go to a file instead.
	closeLog := redirectPanelLog(ctx)
	defer closeLog()

	opener := &tui.DeferredOpener{}
	handle, err := newPanelManager(opener).Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := handle.Close(); err != nil {
			logger.G(ctx).WithError(err).Warn("failed to close panel")
		}
	}()

	var launch tui.Launcher
	if loadedConfig.OpenInEditor {
		launcher, err := newLauncher(loadedConfig)
		if err != nil {
			return err
		}
		launch = func(path string) *exec.Cmd {
			return launcher.Command(ctx, path)
		}
	}

	return tui.StartPanel(ctx, handle, opener, launch)
}

// redirectPanelLog sends log output to panel.log in the per user directory,
// or discards it when that file cannot be opened.
func redirectPanelLog(ctx context.Context) func() {
	restore := func() { logger.SetLogOutput(os.Stderr) }

	dir, err := config.BaseDir()
	if err == nil {
		err = os.MkdirAll(dir, 0o755)
	}
	if err != nil {
		logger.SetLogOutput(io.Discard)
		return restore
	}

	f, err := os.OpenFile(filepath.Join(dir, "panel.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.SetLogOutput(io.Discard)
		return restore
	}
	logger.SetLogOutput(f)
	logger.G(ctx).Debug("panel started")
	return func() {
		restore()
		f.Close()
	}
}
