package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"etcd-backup-agent/internal/errors"
)

// ChangeState persists the combined source digest of the last backup
// that made it to verified durable storage. A matching digest on the
// next run means nothing changed and the run can stop before doing any
// expensive work.
type ChangeState struct {
	dir  string
	name string
}

// NewChangeState creates a state handle for one backup type. The state
// directory is created on first write, not here.
func NewChangeState(dir, name string) *ChangeState {
	return &ChangeState{dir: dir, name: name}
}

func (s *ChangeState) path() string {
	return filepath.Join(s.dir, fmt.Sprintf("%s.state", s.name))
}

// Last returns the digest recorded by the previous successful run.
// A missing state file returns an empty digest, which never matches.
func (s *ChangeState) Last() (string, error) {
	data, err := os.ReadFile(s.path())
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errors.NewConfigurationError(
			fmt.Sprintf("failed to read state file %s", s.path()), err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Record writes the digest of a backup whose upload has been verified.
// It must only be called after verification so an interrupted run
// retries instead of suppressing.
func (s *ChangeState) Record(digest string) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return errors.NewConfigurationError(
			fmt.Sprintf("failed to create state directory %s", s.dir), err)
	}
	if err := os.WriteFile(s.path(), []byte(digest+"\n"), 0o600); err != nil {
		return errors.NewConfigurationError(
			fmt.Sprintf("failed to write state file %s", s.path()), err)
	}
	return nil
}
