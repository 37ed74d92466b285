package release

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/jonathan/boot-release/internal/types"
)

// ManifestFile is written into every release directory
const ManifestFile = "release.json"

// Manifest describes a release published by DirPublisher
type Manifest struct {
	ID         int64           `json:"id"`
	Tag        string          `json:"tag"`
	Title      string          `json:"title"`
	Draft      bool            `json:"draft"`
	Prerelease bool            `json:"prerelease"`
	CommitSHA  string          `json:"commit_sha,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	Assets     []ManifestAsset `json:"assets"`
}

// ManifestAsset is one attached file
type ManifestAsset struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	SHA256      string `json:"sha256"`
	ContentType string `json:"content_type"`
}

// DirPublisher publishes releases into <root>/<tag>/ on the local filesystem.
// Used for dry runs and offline mirrors.
type DirPublisher struct {
	root string
	mu   sync.Mutex
}

// NewDirPublisher creates the root directory if needed
func NewDirPublisher(root string) (*DirPublisher, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create release directory %s: %w", root, err)
	}
	return &DirPublisher{root: root}, nil
}

// CreateRelease implements Publisher
func (p *DirPublisher) CreateRelease(_ context.Context, req ReleaseRequest) (*types.ReleaseRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if req.Tag == "" || req.Tag != filepath.Base(req.Tag) {
		return nil, &CreateReleaseError{Tag: req.Tag, Message: "tag cannot be used as a directory name"}
	}

	dir := filepath.Join(p.root, req.Tag)
	if err := os.Mkdir(dir, 0755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, &CreateReleaseError{Tag: req.Tag, Message: "release already exists", Exists: true}
		}
		return nil, &CreateReleaseError{Tag: req.Tag, Message: "failed to create release directory", Cause: err}
	}

	entries, err := os.ReadDir(p.root)
	if err != nil {
		return nil, &CreateReleaseError{Tag: req.Tag, Message: "failed to read release root", Cause: err}
	}

	m := &Manifest{
		ID:         int64(len(entries)),
		Tag:        req.Tag,
		Title:      req.Title,
		Draft:      req.Draft,
		Prerelease: req.Prerelease,
		CommitSHA:  req.CommitSHA,
		CreatedAt:  time.Now().UTC(),
		Assets:     []ManifestAsset{},
	}
	if err := writeManifest(dir, m); err != nil {
		return nil, &CreateReleaseError{Tag: req.Tag, Message: "failed to write manifest", Cause: err}
	}

	return &types.ReleaseRecord{
		ID:         m.ID,
		Tag:        m.Tag,
		Title:      m.Title,
		Draft:      m.Draft,
		Prerelease: m.Prerelease,
		URL:        "file://" + filepath.ToSlash(dir),
	}, nil
}

// UploadAsset implements Publisher
func (p *DirPublisher) UploadAsset(_ context.Context, record *types.ReleaseRecord, key string, data []byte) error {
	if key == ManifestFile {
		return fmt.Errorf("asset name %q is reserved for the release manifest", key)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	dir := filepath.Join(p.root, record.Tag)
	m, err := ReadManifest(dir)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, key)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0755)
	if err != nil {
		return fmt.Errorf("failed to create asset %s: %w", key, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("failed to write asset %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close asset %s: %w", key, err)
	}

	a := types.NewArtifact(key, data)
	m.Assets = append(m.Assets, ManifestAsset{
		Name:        key,
		Size:        a.Size,
		SHA256:      a.SHA256,
		ContentType: mimetype.Detect(data).String(),
	})
	return writeManifest(dir, m)
}

// ReadManifest loads the manifest of a release directory
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

func writeManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ManifestFile), data, 0644)
}
