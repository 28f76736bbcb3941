package main

import (
	"context"
	"os"

	"github.com/jingkaihe/rulesmgr/pkg/config"
	"github.com/jingkaihe/rulesmgr/pkg/detect"
	"github.com/jingkaihe/rulesmgr/pkg/editor"
	"github.com/jingkaihe/rulesmgr/pkg/globalrules"
	"github.com/jingkaihe/rulesmgr/pkg/logger"
	"github.com/jingkaihe/rulesmgr/pkg/panel"
	"github.com/jingkaihe/rulesmgr/pkg/presenter"
	"github.com/jingkaihe/rulesmgr/pkg/projectrules"
	"github.com/jingkaihe/rulesmgr/pkg/settings"
	"github.com/jingkaihe/rulesmgr/pkg/types/rules"
	"github.com/pkg/errors"
)

// app holds the stores and controller one command works with.
type app struct {
	cfg        config.Config
	settings   settings.Store
	project    *projectrules.Store
	global     *globalrules.Store
	controller *panel.Controller
}

// appOptions tweak how newApp builds the project store.
type appOptions struct {
	// opener replaces the editor launcher; nil means use cfg.OpenInEditor.
	opener projectrules.Opener
	// noOpen disables opening files after writes.
	noOpen   bool
	notifier projectrules.Notifier
}

var presenterNotifier = projectrules.NotifierFunc(func(_ context.Context, message string) {
	presenter.Info(message)
})

func newApp(ctx context.Context, cfg config.Config, opts appOptions) (*app, error) {
	editorType, err := detect.EditorType(cfg.EditorType, os.Environ())
	if err != nil {
		return nil, err
	}

	store, err := settings.Open(ctx, cfg.SettingsOptions())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open settings")
	}

	notifier := opts.notifier
	if notifier == nil {
		notifier = presenterNotifier
	}
	projectOpts := []projectrules.Option{projectrules.WithNotifier(notifier)}

	switch {
	case opts.opener != nil:
		projectOpts = append(projectOpts, projectrules.WithOpener(opts.opener))
	case cfg.OpenInEditor && !opts.noOpen:
		launcher, err := newLauncher(cfg)
		if err != nil {
			store.Close()
			return nil, err
		}
		projectOpts = append(projectOpts, projectrules.WithOpener(launcher))
	}

	project, err := projectrules.New(cfg.ProjectRoot, projectOpts...)
	if err != nil {
		store.Close()
		return nil, err
	}
	global := globalrules.New(store)

	logger.G(ctx).WithField("project_root", project.Root()).
		WithField("editor_type", editorType).
		WithField("settings_backend", cfg.Settings.Backend).
		Debug("initialized rules manager")

	return &app{
		cfg:        cfg,
		settings:   store,
		project:    project,
		global:     global,
		controller: panel.NewController(project, global, editorType),
	}, nil
}

func newLauncher(cfg config.Config) (*editor.Launcher, error) {
	launcher, err := editor.New(editor.Resolve(cfg.Editor))
	if err != nil {
		return nil, errors.Wrap(err, "failed to set up editor")
	}
	return launcher, nil
}

func (a *app) Close() error {
	return a.settings.Close()
}

func (a *app) editorType() rules.EditorType {
	return a.controller.EditorType()
}
