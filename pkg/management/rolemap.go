package management

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/tablyhq/tably/pkg/apperrors"
	"github.com/tablyhq/tably/pkg/auth"
	"github.com/tablyhq/tably/pkg/observability"
)

// RoleMap maps domain roles to provider role ids. The mapping lives in a
// JSON file ({"OWNER": "rol_abc", ...}) and is reloaded when the file
// changes, so role rotation at the provider needs no restart.
type RoleMap struct {
	path   string
	logger *observability.Logger

	mu  sync.RWMutex
	ids map[auth.Role]string
}

// NewRoleMap loads the role map from path
func NewRoleMap(path string, logger *observability.Logger) (*RoleMap, error) {
	m := &RoleMap{
		path:   path,
		logger: logger,
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

// RoleID resolves a domain role to the provider's role id. A role without a
// mapping is a ValidationError so handlers reject the request as caller
// input rather than an internal fault.
func (m *RoleMap) RoleID(role auth.Role) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.ids[role]
	if !ok {
		return "", apperrors.NewValidationError("role",
			fmt.Sprintf("role %s has no provider mapping", role))
	}
	return id, nil
}

// Roles returns the mapped domain roles
func (m *RoleMap) Roles() []auth.Role {
	m.mu.RLock()
	defer m.mu.RUnlock()

	roles := make([]auth.Role, 0, len(m.ids))
	for r := range m.ids {
		roles = append(roles, r)
	}
	return roles
}

func (m *RoleMap) load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("failed to read role map %s: %w", m.path, err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse role map %s: %w", m.path, err)
	}

	ids := make(map[auth.Role]string, len(raw))
	for key, id := range raw {
		role := auth.Role(key)
		if !role.Valid() {
			return fmt.Errorf("role map %s contains unknown role %q", m.path, key)
		}
		if id == "" {
			return fmt.Errorf("role map %s has empty id for role %q", m.path, key)
		}
		ids[role] = id
	}

	m.mu.Lock()
	m.ids = ids
	m.mu.Unlock()
	return nil
}

// Watch reloads the role map when the file changes, until ctx is cancelled.
// A reload that fails keeps the previous mapping.
func (m *RoleMap) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// Watch the directory: editors and config managers typically replace
	// the file, which drops a watch on the file itself.
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(m.path), err)
	}

	go func() {
		defer watcher.Close()
		defer observability.RecoverPanic(m.logger, "role map watch")

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if filepath.Clean(event.Name) != filepath.Clean(m.path) {
					continue
				}
				if err := m.load(); err != nil {
					m.logger.WithError(err).Error("role map reload failed, keeping previous mapping")
					continue
				}
				m.logger.WithField("path", m.path).Info("role map reloaded")

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.logger.WithError(err).Warn("role map watcher error")

			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}
