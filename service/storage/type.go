package storage

import (
	"context"
	"time"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-segment/model"
)

// ErrOutsideStatic is returned when a requested file resolves outside the
// static folder.
var ErrOutsideStatic = xerrors.New("path escapes the static folder")

type WorkspaceInfo struct {
	Workspace model.Workspace
	ModTime   time.Time
}

type IService interface {
	NewWorkspace() (model.Workspace, error)
	Workspace(id string) (model.Workspace, error)
	Workspaces() ([]WorkspaceInfo, error)
	RemoveWorkspace(id string) error

	// URL is the get_file path of a file inside a workspace.
	URL(ws model.Workspace, name string) string
	// Resolve maps a get_file name to a regular file below the static folder.
	Resolve(name string) (string, error)

	// StoreFile mirrors a local artifact to object storage and returns its
	// remote URL, or "" when no mirror is configured.
	StoreFile(ctx context.Context, fileName string) (string, error)
}

// Mirror copies finished artifacts to remote storage.
type Mirror interface {
	Put(ctx context.Context, key string, path string) (string, error)
}
