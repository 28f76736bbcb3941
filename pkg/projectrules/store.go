// Package projectrules manages rule files inside a project. Each editor type
// owns one fixed folder under the project root; the store creates, deletes,
// reads, lists and opens the files in those folders.
package projectrules

import (
	"context"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/jingkaihe/rulesmgr/pkg/logger"
	"github.com/jingkaihe/rulesmgr/pkg/types/rules"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Opener hands a rule file to an editing surface.
type Opener interface {
	Open(ctx context.Context, path string) error
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, path string) error

// Open calls f(ctx, path).
func (f OpenerFunc) Open(ctx context.Context, path string) error {
	return f(ctx, path)
}

// Notifier receives informational notices meant for the user.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, message string)

// Notify calls f(ctx, message).
func (f NotifierFunc) Notify(ctx context.Context, message string) {
	f(ctx, message)
}

// Conflict describes an existing file about to be overwritten.
type Conflict struct {
	Path     string
	Existing string
	Incoming string
}

// ConfirmFunc asks the user whether to overwrite; false cancels the write.
type ConfirmFunc func(ctx context.Context, c Conflict) bool

var (
	noopOpener   = OpenerFunc(func(context.Context, string) error { return nil })
	noopNotifier = NotifierFunc(func(context.Context, string) {})
)

// Store performs file level operations on the rule folders of one project.
type Store struct {
	root     string
	opener   Opener
	notifier Notifier
}

// Option configures a Store
type Option func(*Store) error

// WithOpener sets the editing surface rule files are handed to after writes.
func WithOpener(o Opener) Option {
	return func(s *Store) error {
		if o == nil {
			return errors.New("opener must not be nil")
		}
		s.opener = o
		return nil
	}
}

// WithNotifier sets where informational notices go.
func WithNotifier(n Notifier) Option {
	return func(s *Store) error {
		if n == nil {
			return errors.New("notifier must not be nil")
		}
		s.notifier = n
		return nil
	}
}

// New creates a Store for the project rooted at root.
func New(root string, opts ...Option) (*Store, error) {
	if root == "" {
		return nil, errors.New("project root must not be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve project root %s", root)
	}

	s := &Store{
		root:     abs,
		opener:   noopOpener,
		notifier: noopNotifier,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, errors.Wrap(err, "failed to apply project store option")
		}
	}
	return s, nil
}

// Root returns the absolute project root.
func (s *Store) Root() string {
	return s.root
}

// ResolveFolder returns the absolute rule folder of editorType.
func (s *Store) ResolveFolder(editorType rules.EditorType) string {
	return filepath.Join(s.root, filepath.FromSlash(editorType.Folder()))
}

func (s *Store) isRoot(folder string) bool {
	return folder == s.root
}

// ResolvePath returns the absolute path of fileName in the folder of editorType.
func (s *Store) ResolvePath(fileName string, editorType rules.EditorType) string {
	return filepath.Join(s.ResolveFolder(editorType), fileName)
}

// EnsureFolder creates the rule folder of editorType when missing. The project
// root itself is never created.
func (s *Store) EnsureFolder(editorType rules.EditorType) error {
	folder := s.ResolveFolder(editorType)
	if s.isRoot(folder) {
		return nil
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return errors.Wrapf(rules.ErrUnknownIO, "failed to create rule folder %s: %v", folder, err)
	}
	return nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *Store) log(ctx context.Context, fileName string, editorType rules.EditorType) *logrus.Entry {
	return logger.G(ctx).WithFields(logrus.Fields{
		"file":        fileName,
		"editor_type": editorType,
	})
}

// Create writes a new rule file and opens it. It fails with
// rules.ErrAlreadyExists when the file is already there.
func (s *Store) Create(ctx context.Context, fileName string, editorType rules.EditorType, content string) error {
	if err := s.EnsureFolder(editorType); err != nil {
		return err
	}

	path := s.ResolvePath(fileName, editorType)
	found, err := exists(path)
	if err != nil {
		return errors.Wrapf(rules.ErrUnknownIO, "failed to stat %s: %v", path, err)
	}
	if found {
		return errors.Wrapf(rules.ErrAlreadyExists, "rule file %q", fileName)
	}

	if err := s.write(path, content); err != nil {
		return err
	}
	s.log(ctx, fileName, editorType).Debug("created rule file")

	return s.opener.Open(ctx, path)
}

func (s *Store) write(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return errors.Wrapf(rules.ErrUnknownIO, "failed to write %s: %v", path, err)
	}
	return nil
}

// Delete removes a rule file. When the file was the only entry of a
// non-root rule folder the folder is removed too; that cleanup never fails the
// delete.
func (s *Store) Delete(ctx context.Context, fileName string, editorType rules.EditorType) error {
	folder := s.ResolveFolder(editorType)
	path := filepath.Join(folder, fileName)

	found, err := exists(path)
	if err != nil {
		return errors.Wrapf(rules.ErrUnknownIO, "failed to stat %s: %v", path, err)
	}
	if !found {
		return errors.Wrapf(rules.ErrNotFound, "rule file %q", fileName)
	}

	removeFolder := false
	if !s.isRoot(folder) {
		entries, err := os.ReadDir(folder)
		if err != nil {
			s.log(ctx, fileName, editorType).WithError(err).Warn("failed to inspect rule folder before delete")
		} else if len(entries) == 1 && entries[0].Name() == fileName {
			removeFolder = true
		}
	}

	if err := os.Remove(path); err != nil {
		return errors.Wrapf(rules.ErrUnknownIO, "failed to delete %s: %v", path, err)
	}
	s.log(ctx, fileName, editorType).Debug("deleted rule file")

	if removeFolder {
		if err := os.Remove(folder); err != nil {
			s.log(ctx, fileName, editorType).WithError(err).Warn("failed to remove empty rule folder")
			return nil
		}
		s.notifier.Notify(ctx, "Removed empty rule folder "+filepath.Base(folder))
	}

	return nil
}

// Read returns the content of a rule file. The second result is false when the
// file is missing or unreadable; read failures are logged, not returned.
func (s *Store) Read(ctx context.Context, fileName string, editorType rules.EditorType) (string, bool) {
	path := s.ResolvePath(fileName, editorType)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log(ctx, fileName, editorType).WithError(err).Error("failed to read rule file")
		}
		return "", false
	}
	return string(data), true
}

// Open hands an existing rule file to the editing surface.
func (s *Store) Open(ctx context.Context, fileName string, editorType rules.EditorType) error {
	path := s.ResolvePath(fileName, editorType)

	found, err := exists(path)
	if err != nil {
		return errors.Wrapf(rules.ErrUnknownIO, "failed to stat %s: %v", path, err)
	}
	if !found {
		return errors.Wrapf(rules.ErrNotFound, "rule file %q", fileName)
	}

	return s.opener.Open(ctx, path)
}

// WriteFromContent writes content as a rule file and opens it. When the file
// already exists confirm must approve the overwrite; a nil confirm or a
// refusal yields rules.ErrUserCancelled and nothing is written.
func (s *Store) WriteFromContent(ctx context.Context, fileName string, editorType rules.EditorType, content string, confirm ConfirmFunc) error {
	if err := s.EnsureFolder(editorType); err != nil {
		return err
	}

	path := s.ResolvePath(fileName, editorType)
	existing, err := os.ReadFile(path)
	switch {
	case err == nil:
		conflict := Conflict{Path: path, Existing: string(existing), Incoming: content}
		if confirm == nil || !confirm(ctx, conflict) {
			return errors.Wrapf(rules.ErrUserCancelled, "overwrite of %q declined", fileName)
		}
	case !os.IsNotExist(err):
		return errors.Wrapf(rules.ErrUnknownIO, "failed to read %s: %v", path, err)
	}

	if err := s.write(path, content); err != nil {
		return err
	}
	s.log(ctx, fileName, editorType).Debug("wrote rule file from content")

	return s.opener.Open(ctx, path)
}

// List scans every editor type's folder and returns the rule files found,
// deduplicated by file name and editor type. Folders that fail to scan are
// logged and skipped.
func (s *Store) List(ctx context.Context) []rules.RuleFile {
	var all []rules.RuleFile
	var scanErrs *multierror.Error

	for _, editorType := range rules.AllEditorTypes {
		found, err := s.scan(editorType)
		if err != nil {
			scanErrs = multierror.Append(scanErrs, errors.Wrapf(err, "failed to list %s rules", editorType))
			continue
		}
		all = append(all, found...)
	}

	if err := scanErrs.ErrorOrNil(); err != nil {
		logger.G(ctx).WithError(err).Warn("some rule folders could not be listed")
	}

	return dedupe(all)
}

func (s *Store) scan(editorType rules.EditorType) ([]rules.RuleFile, error) {
	folder := s.ResolveFolder(editorType)
	entries, err := os.ReadDir(folder)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	root := s.isRoot(folder)
	var found []rules.RuleFile
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !rules.IsSupportedRuleFile(name) {
			continue
		}
		if root && rules.IsExcludedRootFile(name) {
			continue
		}
		found = append(found, rules.NewRuleFile(name, editorType))
	}
	return found, nil
}

type ruleKey struct {
	fileName   string
	editorType rules.EditorType
}

// dedupe keeps the first record for each (file name, editor type) pair.
func dedupe(records []rules.RuleFile) []rules.RuleFile {
	seen := make(map[ruleKey]bool, len(records))
	unique := make([]rules.RuleFile, 0, len(records))
	for _, r := range records {
		k := ruleKey{r.FileName, r.EditorType}
		if seen[k] {
			continue
		}
		seen[k] = true
		unique = append(unique, r)
	}
	return unique
}
