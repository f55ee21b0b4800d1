package storage

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/khaledhikmat/vs-segment/model"
	"github.com/khaledhikmat/vs-segment/service/config"
	"golang.org/x/xerrors"
)

type localService struct {
	CfgSvc config.IService
	Mirror Mirror
}

// NewLocal keeps workspaces on the local disk below the static folder. A nil
// mirror disables object storage.
func NewLocal(cfgsvc config.IService, mirror Mirror) IService {
	return &localService{
		CfgSvc: cfgsvc,
		Mirror: mirror,
	}
}

func (svc *localService) NewWorkspace() (model.Workspace, error) {
	id := uuid.NewString()
	ws := svc.workspace(id)

	if err := os.MkdirAll(ws.Dir, 0755); err != nil {
		return model.Workspace{}, model.NewError(model.FileIOError, "create workspace", err)
	}
	return ws, nil
}

func (svc *localService) Workspace(id string) (model.Workspace, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Workspace{}, xerrors.Errorf("workspace %q: %w", id, os.ErrNotExist)
	}

	ws := svc.workspace(id)
	info, err := os.Stat(ws.Dir)
	if err != nil {
		return model.Workspace{}, xerrors.Errorf("workspace %s: %w", id, err)
	}
	if !info.IsDir() {
		return model.Workspace{}, xerrors.Errorf("workspace %s: %w", id, os.ErrNotExist)
	}
	return ws, nil
}

func (svc *localService) Workspaces() ([]WorkspaceInfo, error) {
	entries, err := os.ReadDir(svc.CfgSvc.GetWorkspacesFolder())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, xerrors.Errorf("list workspaces: %w", err)
	}

	var result []WorkspaceInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := uuid.Parse(e.Name()); err != nil {
			continue
		}

		info, err := e.Info()
		if err != nil {
			// Removed concurrently
			continue
		}

		result = append(result, WorkspaceInfo{
			Workspace: svc.workspace(e.Name()),
			ModTime:   info.ModTime(),
		})
	}
	return result, nil
}

func (svc *localService) RemoveWorkspace(id string) error {
	ws, err := svc.Workspace(id)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(ws.Dir); err != nil {
		return model.NewError(model.FileIOError, "remove workspace", err)
	}
	return nil
}

func (svc *localService) URL(ws model.Workspace, name string) string {
	return "/get_file/" + path.Join(ws.Prefix, filepath.ToSlash(name))
}

func (svc *localService) Resolve(name string) (string, error) {
	root, err := filepath.Abs(svc.CfgSvc.GetStaticFolder())
	if err != nil {
		return "", err
	}

	// Cleaning against a virtual root drops every leading "..".
	clean := path.Clean("/" + strings.ReplaceAll(name, "\\", "/"))
	if clean == "/" {
		return "", xerrors.Errorf("resolve %q: %w", name, os.ErrNotExist)
	}
	full := filepath.Join(root, filepath.FromSlash(clean))

	// Symlinks must not lead out of the static folder either
	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		return "", xerrors.Errorf("resolve %q: %w", name, err)
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", xerrors.Errorf("resolve static folder: %w", err)
	}

	rel, err := filepath.Rel(realRoot, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", xerrors.Errorf("resolve %q: %w", name, ErrOutsideStatic)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", xerrors.Errorf("resolve %q: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return "", xerrors.Errorf("resolve %q: %w", name, os.ErrNotExist)
	}
	return resolved, nil
}

func (svc *localService) StoreFile(ctx context.Context, fileName string) (string, error) {
	if svc.Mirror == nil {
		return "", nil
	}

	root, err := filepath.Abs(svc.CfgSvc.GetStaticFolder())
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(fileName)
	if err != nil {
		return "", err
	}

	key, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(key, "..") {
		return "", xerrors.Errorf("store %s: %w", fileName, ErrOutsideStatic)
	}

	return svc.Mirror.Put(ctx, filepath.ToSlash(key), abs)
}

func (svc *localService) workspace(id string) model.Workspace {
	return model.Workspace{
		ID:     id,
		Dir:    filepath.Join(svc.CfgSvc.GetWorkspacesFolder(), id),
		Prefix: path.Join("tmp", id),
	}
}
