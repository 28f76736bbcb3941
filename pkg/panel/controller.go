// Package panel is the presentation boundary of rulesmgr. Front ends send
// typed requests to a Controller, which drives the project and global rule
// stores and answers with the refreshed state. A Manager keeps at most one
// panel open at a time.
package panel

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jingkaihe/rulesmgr/pkg/globalrules"
	"github.com/jingkaihe/rulesmgr/pkg/logger"
	"github.com/jingkaihe/rulesmgr/pkg/projectrules"
	"github.com/jingkaihe/rulesmgr/pkg/ruleinput"
	"github.com/jingkaihe/rulesmgr/pkg/telemetry"
	"github.com/jingkaihe/rulesmgr/pkg/types/rules"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// NoticeBuffer collects notices raised by the stores while a request runs.
// Pass it to projectrules.WithNotifier and to WithNotices.
type NoticeBuffer struct {
	mu       sync.Mutex
	messages []string
}

// Notify implements projectrules.Notifier.
func (b *NoticeBuffer) Notify(_ context.Context, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, message)
}

// Drain returns and clears the collected notices.
func (b *NoticeBuffer) Drain() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.messages
	b.messages = nil
	return out
}

// Controller executes panel requests against the rule stores.
type Controller struct {
	project    *projectrules.Store
	global     *globalrules.Store
	editorType rules.EditorType
	notices    *NoticeBuffer
	onClose    func() error
}

// Option configures a Controller
type Option func(*Controller)

// WithNotices attaches the buffer the project store notifies into, so its
// notices are reported in responses.
func WithNotices(b *NoticeBuffer) Option {
	return func(c *Controller) {
		c.notices = b
	}
}

// WithOnClose registers cleanup run when the controller is closed.
func WithOnClose(fn func() error) Option {
	return func(c *Controller) {
		c.onClose = fn
	}
}

// NewController creates a Controller. editorType is the default for requests
// that do not name one.
func NewController(project *projectrules.Store, global *globalrules.Store, editorType rules.EditorType, opts ...Option) *Controller {
	c := &Controller{
		project:    project,
		global:     global,
		editorType: editorType,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EditorType returns the default editor type.
func (c *Controller) EditorType() rules.EditorType {
	return c.editorType
}

// Close runs the registered cleanup.
func (c *Controller) Close() error {
	if c.onClose == nil {
		return nil
	}
	return c.onClose()
}

// Handle executes req. On failure the returned Response still carries any
// state the request refreshes, so front ends can redraw.
func (c *Controller) Handle(ctx context.Context, req Request) (Response, error) {
	if req == nil {
		return Response{}, errors.New("nil request")
	}
	ctx, span := telemetry.Tracer("rulesmgr.panel").Start(ctx, "panel.request",
		trace.WithAttributes(attribute.String("panel.command", string(req.Command()))))
	defer span.End()

	ctx = logger.WithFields(ctx, logrus.Fields{"command": req.Command()})
	logger.G(ctx).Debug("handling panel request")

	resp, err := c.dispatch(ctx, req)
	resp.Command = req.Command()
	if c.notices != nil {
		if extra := c.notices.Drain(); len(extra) > 0 {
			resp.Notice = strings.Join(append(nonEmpty(resp.Notice), extra...), "; ")
		}
	}
	telemetry.SetAttributes(ctx,
		attribute.Int("panel.rules", len(resp.Rules)),
		attribute.Int("panel.global_rules", len(resp.GlobalRules)),
	)
	telemetry.SetStatus(ctx, err)
	if err != nil {
		logger.G(ctx).WithError(err).Debug("panel request failed")
	}
	return resp, err
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

func (c *Controller) dispatch(ctx context.Context, req Request) (Response, error) {
	switch r := req.(type) {
	case GetRules:
		return Response{Rules: c.project.List(ctx)}, nil
	case CreateRule:
		return c.createRule(ctx, r)
	case EditRule:
		if !r.EditorType.Valid() {
			return Response{}, errors.Errorf("unknown editor type %q", r.EditorType)
		}
		return Response{}, c.project.Open(ctx, r.FileName, r.EditorType)
	case ReadRule:
		content, ok := c.project.Read(ctx, r.FileName, r.EditorType)
		if !ok {
			return Response{}, errors.Wrapf(rules.ErrNotFound, "rule file %q", r.FileName)
		}
		return Response{Content: content}, nil
	case DeleteRule:
		return c.deleteRule(ctx, r)
	case GetGlobalRules:
		return c.globalList(ctx, Response{})
	case SaveRuleAsGlobal:
		return c.saveRuleAsGlobal(ctx, r)
	case DeleteGlobalRule:
		if err := c.global.Delete(ctx, r.Name); err != nil {
			return Response{}, err
		}
		return c.globalList(ctx, Response{Notice: fmt.Sprintf("Deleted global rule %q", r.Name)})
	case AddGlobalRuleToProject:
		return c.addGlobalRuleToProject(ctx, r)
	case SearchGlobalRules:
		found, err := c.global.Search(ctx, r.Query, r.Source)
		return Response{GlobalRules: found}, err
	case EditGlobalRule:
		return c.editGlobalRule(ctx, r)
	case Ready:
		resp := Response{EditorType: c.editorType, Rules: c.project.List(ctx)}
		return c.globalList(ctx, resp)
	default:
		return Response{}, errors.Errorf("unsupported panel request %T", req)
	}
}

func (c *Controller) globalList(ctx context.Context, resp Response) (Response, error) {
	list, err := c.global.List(ctx)
	if err != nil {
		return resp, err
	}
	resp.GlobalRules = list
	return resp, nil
}

func (c *Controller) resolveEditorType(t rules.EditorType) (rules.EditorType, error) {
	if t == "" {
		return c.editorType, nil
	}
	if !t.Valid() {
		return "", errors.Errorf("unknown editor type %q", t)
	}
	return t, nil
}

func (c *Controller) createRule(ctx context.Context, r CreateRule) (resp Response, err error) {
	defer func() { resp.Rules = c.project.List(ctx) }()

	editorType, err := c.resolveEditorType(r.EditorType)
	if err != nil {
		return resp, err
	}
	if err := ruleinput.ValidateFileName(r.Name); err != nil {
		return resp, err
	}
	format, err := ruleinput.ParseFormat(r.Format)
	if err != nil {
		return resp, err
	}

	fileName := ruleinput.NormalizeFileName(r.Name, format)
	if err := c.project.Create(ctx, fileName, editorType, ruleinput.InitialContent(fileName)); err != nil {
		return resp, err
	}
	resp.Notice = fmt.Sprintf("Created rule file %s", fileName)
	return resp, nil
}

func (c *Controller) deleteRule(ctx context.Context, r DeleteRule) (Response, error) {
	if !r.EditorType.Valid() {
		return Response{}, errors.Errorf("unknown editor type %q", r.EditorType)
	}
	if err := c.project.Delete(ctx, r.FileName, r.EditorType); err != nil {
		return Response{Rules: c.project.List(ctx)}, err
	}
	return Response{
		Rules:  c.project.List(ctx),
		Notice: fmt.Sprintf("Deleted rule file %s", r.FileName),
	}, nil
}

func limitTags(tags []string) []string {
	if len(tags) > rules.MaxTags {
		return tags[:rules.MaxTags]
	}
	return tags
}

func (c *Controller) saveRuleAsGlobal(ctx context.Context, r SaveRuleAsGlobal) (Response, error) {
	if !r.EditorType.Valid() {
		return Response{}, errors.Errorf("unknown editor type %q", r.EditorType)
	}
	content, ok := c.project.Read(ctx, r.RuleName, r.EditorType)
	if !ok {
		return Response{}, errors.Wrapf(rules.ErrNotFound, "cannot read content of rule file %q", r.RuleName)
	}

	name := strings.TrimSpace(r.GlobalName)
	if name == "" {
		name = r.RuleName
	}

	if name != r.RuleName {
		old, err := c.global.FindByName(ctx, r.RuleName)
		if err != nil {
			return Response{}, err
		}
		if old != nil {
			if err := c.global.Delete(ctx, r.RuleName); err != nil {
				return Response{}, err
			}
		}
	}

	if err := c.global.Save(ctx, name, content, limitTags(r.Tags), r.EditorType); err != nil {
		return Response{}, err
	}
	return c.globalList(ctx, Response{Notice: fmt.Sprintf("Saved %q as a global rule", name)})
}

// projectFileName turns a global rule name into a file name the project
// listing will pick up.
func projectFileName(name string) (string, error) {
	if err := ruleinput.ValidateFileName(name); err != nil {
		return "", errors.Wrapf(err, "global rule %q cannot be used as a file name", name)
	}
	name = strings.TrimSpace(name)
	if !rules.IsSupportedRuleFile(name) {
		name += ruleinput.DefaultFormat
	}
	return name, nil
}

func (c *Controller) addGlobalRuleToProject(ctx context.Context, r AddGlobalRuleToProject) (Response, error) {
	rule, err := c.global.FindByName(ctx, r.Name)
	if err != nil {
		return Response{}, err
	}
	if rule == nil {
		return Response{}, errors.Wrapf(rules.ErrNotFound, "global rule %q", r.Name)
	}

	target := rule.EditorType
	if !target.Valid() {
		target = c.editorType
	}
	fileName, err := projectFileName(rule.Name)
	if err != nil {
		return Response{}, err
	}

	if err := c.project.WriteFromContent(ctx, fileName, target, rule.Content, r.Confirm); err != nil {
		return Response{Rules: c.project.List(ctx)}, err
	}
	return Response{
		Rules:  c.project.List(ctx),
		Notice: fmt.Sprintf("Added global rule %q to the project as %s", rule.Name, rules.NewRuleFile(fileName, target).FullPath),
	}, nil
}

func (c *Controller) editGlobalRule(ctx context.Context, r EditGlobalRule) (Response, error) {
	rule, err := c.global.FindByName(ctx, r.Name)
	if err != nil {
		return Response{}, err
	}
	if rule == nil {
		return Response{}, errors.Wrapf(rules.ErrNotFound, "global rule %q", r.Name)
	}

	if err := c.global.Save(ctx, rule.Name, r.Content, limitTags(r.Tags), rule.EditorType); err != nil {
		return Response{}, err
	}
	return c.globalList(ctx, Response{Notice: fmt.Sprintf("Updated global rule %q", rule.Name)})
}
