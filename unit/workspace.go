package unit

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// CreateWorkspace makes a fresh, collision-free workspace directory under
// root for one unit's execution. Workspaces are never shared between units
// in the same run.
func CreateWorkspace(root string) (string, error) {
	path := filepath.Join(root, uuid.NewString())
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("create workspace %s: %w", path, err)
	}
	return path, nil
}

// RemoveWorkspace deletes a workspace directory. Callers skip this on
// ROLLBACK_FAILED, which preserves the workspace for forensics.
func RemoveWorkspace(path string) error {
	if path == "" {
		return nil
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove workspace %s: %w", path, err)
	}
	return nil
}
