package artifact

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jonathan/boot-release/internal/types"
)

// Store is a write-once-per-key staging area for build artifacts
type Store interface {
	// Put stores data under key. It fails with *DuplicateKeyError if key already has a value.
	Put(ctx context.Context, key string, data []byte) error
	// Get returns the bytes stored under key or *NotFoundError.
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns every stored artifact, sorted by key.
	List(ctx context.Context) ([]types.Artifact, error)
}

// Store backend kinds accepted by configuration
const (
	KindMemory = "memory"
	KindDisk   = "disk"
	KindMinio  = "minio"
)

// ValidateKeys checks that every descriptor has a distinct platform id and
// maps to a distinct, usable store key. It is the startup validation pass
// run before any build starts.
func ValidateKeys(platforms []types.PlatformDescriptor) error {
	ids := make(map[string]bool, len(platforms))
	owners := make(map[string][]string, len(platforms))
	var order []string
	for _, p := range platforms {
		if ids[p.PlatformID] {
			return &DuplicatePlatformError{PlatformID: p.PlatformID}
		}
		ids[p.PlatformID] = true
		if err := checkKey(p.PublishedAssetName); err != nil {
			return fmt.Errorf("platform %s: %w", p.PlatformID, err)
		}
		if _, seen := owners[p.PublishedAssetName]; !seen {
			order = append(order, p.PublishedAssetName)
		}
		owners[p.PublishedAssetName] = append(owners[p.PublishedAssetName], p.PlatformID)
	}

	for _, key := range order {
		if ids := owners[key]; len(ids) > 1 {
			return &DuplicateKeyError{Key: key, Platforms: ids}
		}
	}
	return nil
}

// checkKey rejects keys that cannot be used as a flat file or object name
func checkKey(key string) error {
	if key == "" || key == "." || key == ".." {
		return &StoreError{Message: fmt.Sprintf("invalid artifact key %q", key)}
	}
	if strings.ContainsAny(key, `/\`) {
		return &StoreError{Message: fmt.Sprintf("artifact key %q must not contain path separators", key)}
	}
	return nil
}

func sortArtifacts(list []types.Artifact) {
	sort.Slice(list, func(i, j int) bool { return list[i].Key < list[j].Key })
}
