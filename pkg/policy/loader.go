package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Loader reads policies from .rego and .json files and can watch those
// paths for changes.
type Loader struct {
	logger  zerolog.Logger
	watcher *fsnotify.Watcher
}

// NewLoader builds a loader.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger: logger.With().Str("component", "policy-loader").Logger(),
	}
}

// LoadFromPaths loads every policy under the given files and directories.
func (l *Loader) LoadFromPaths(paths []string) ([]Policy, error) {
	var all []Policy
	for _, path := range paths {
		policies, err := l.loadPath(path)
		if err != nil {
			return nil, fmt.Errorf("loading policies from %s: %w", path, err)
		}
		all = append(all, policies...)
	}
	return all, nil
}

func (l *Loader) loadPath(path string) ([]Policy, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		p, err := l.loadFile(path)
		if err != nil {
			return nil, err
		}
		return []Policy{*p}, nil
	}

	var policies []Policy
	err = filepath.WalkDir(path, func(file string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if !isPolicyFile(file) {
			return nil
		}
		p, err := l.loadFile(file)
		if err != nil {
			// A broken file must not take down the rest of the set.
			l.logger.Warn().Err(err).Str("path", file).Msg("skipping unloadable policy file")
			return nil
		}
		policies = append(policies, *p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return policies, nil
}

func (l *Loader) loadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch {
	case strings.HasSuffix(path, ".rego"):
		return regoPolicy(path, data), nil
	case strings.HasSuffix(path, ".json"):
		return jsonPolicy(data)
	default:
		return nil, fmt.Errorf("unsupported policy file %s", path)
	}
}

// regoPolicy wraps bare Rego source. The file name becomes the policy
// name and leading comments its description.
func regoPolicy(path string, data []byte) *Policy {
	source := string(data)
	return &Policy{
		Name:        strings.TrimSuffix(filepath.Base(path), ".rego"),
		Description: leadingComment(source),
		Rego:        source,
		Severity:    SeverityWarning,
		Enabled:     true,
	}
}

// jsonPolicy parses a full policy document.
func jsonPolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing policy document: %w", err)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("policy document has no name")
	}
	if p.Severity == "" {
		p.Severity = SeverityWarning
	}
	return &p, nil
}

// leadingComment collects the comment block at the top of Rego source.
func leadingComment(source string) string {
	var b strings.Builder
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			break
		}
		comment := strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
		if comment == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(comment)
	}
	return b.String()
}

func isPolicyFile(path string) bool {
	return strings.HasSuffix(path, ".rego") || strings.HasSuffix(path, ".json")
}

// Watch reloads the policy set whenever a file under paths changes,
// handing the fresh set to apply. It returns after starting the
// background watcher; cancel ctx to stop it.
func (l *Loader) Watch(ctx context.Context, paths []string, apply func([]Policy) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating policy watcher: %w", err)
	}
	l.watcher = watcher

	for _, path := range paths {
		if err := watcher.Add(path); err != nil {
			l.logger.Warn().Err(err).Str("path", path).Msg("cannot watch policy path")
		}
	}

	go l.watchLoop(ctx, paths, apply)
	return nil
}

func (l *Loader) watchLoop(ctx context.Context, paths []string, apply func([]Policy) error) {
	defer l.watcher.Close()

	// Editors fire bursts of events per save; debounce into one reload.
	const debounce = 500 * time.Millisecond
	var pending *time.Timer

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}
			if !isPolicyFile(event.Name) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(debounce, func() {
				policies, err := l.LoadFromPaths(paths)
				if err != nil {
					l.logger.Error().Err(err).Msg("policy reload failed")
					return
				}
				if err := apply(policies); err != nil {
					l.logger.Error().Err(err).Msg("applying reloaded policies failed")
					return
				}
				l.logger.Info().Int("count", len(policies)).Msg("policies reloaded")
			})

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error().Err(err).Msg("policy watcher error")
		}
	}
}
