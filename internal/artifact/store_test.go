package artifact

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/boot-release/internal/types"
)

// storeFactories lets the same behavioral tests run against every local backend
func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		KindMemory: func() Store { return NewMemoryStore() },
		KindDisk: func() Store {
			s, err := NewDiskStore(t.TempDir())
			require.NoError(t, err)
			return s
		},
	}
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			data := []byte{0x7f, 'E', 'L', 'F', 0x00, 0xff, 0x10}

			require.NoError(t, s.Put(ctx, "boot-linux-amd64", data))

			got, err := s.Get(ctx, "boot-linux-amd64")
			require.NoError(t, err)
			assert.Equal(t, data, got)
		})
	}
}

func TestStore_SecondPutFails(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			require.NoError(t, s.Put(ctx, "boot-macos-amd64", []byte("first")))

			err := s.Put(ctx, "boot-macos-amd64", []byte("second"))
			var dup *DuplicateKeyError
			require.ErrorAs(t, err, &dup)
			assert.Equal(t, "boot-macos-amd64", dup.Key)

			// The original value is untouched
			got, err := s.Get(ctx, "boot-macos-amd64")
			require.NoError(t, err)
			assert.Equal(t, []byte("first"), got)
		})
	}
}

func TestStore_GetMissing(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			_, err := newStore().Get(ctx, "nope")
			var nf *NotFoundError
			require.ErrorAs(t, err, &nf)
			assert.Equal(t, "nope", nf.Key)
		})
	}
}

func TestStore_ListSortedWithChecksums(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			list, err := s.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, list)

			require.NoError(t, s.Put(ctx, "boot-windows-amd64.exe", []byte("MZ")))
			require.NoError(t, s.Put(ctx, "boot-linux-amd64", []byte("ELF")))

			list, err = s.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "boot-linux-amd64", list[0].Key)
			assert.Equal(t, []byte("ELF"), list[0].Data)
			assert.Equal(t, int64(3), list[0].Size)
			assert.Equal(t, types.NewArtifact("boot-linux-amd64", []byte("ELF")).SHA256, list[0].SHA256)
			assert.Equal(t, "boot-windows-amd64.exe", list[1].Key)
		})
	}
}

func TestStore_RejectsPathKeys(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			for _, key := range []string{"", "..", "dist/boot", `dist\boot`} {
				err := s.Put(ctx, key, []byte("x"))
				var storeErr *StoreError
				assert.ErrorAs(t, err, &storeErr, key)
			}
		})
	}
}

func TestStore_ConcurrentDisjointPuts(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					assert.NoError(t, s.Put(ctx, fmt.Sprintf("artifact-%02d", i), []byte{byte(i)}))
				}(i)
			}
			wg.Wait()

			list, err := s.List(ctx)
			require.NoError(t, err)
			assert.Len(t, list, 16)
		})
	}
}

func TestMemoryStore_CopiesInput(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	data := []byte("abc")
	require.NoError(t, s.Put(ctx, "k", data))
	data[0] = 'z'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestValidateKeys(t *testing.T) {
	assert.NoError(t, ValidateKeys(types.DefaultPlatforms()))
	assert.NoError(t, ValidateKeys(nil))

	platforms := types.DefaultPlatforms()
	platforms[2].PublishedAssetName = "boot-linux-amd64"

	err := ValidateKeys(platforms)
	var dup *DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "boot-linux-amd64", dup.Key)
	assert.Equal(t, []string{"linux-amd64", "macos-amd64"}, dup.Platforms)
	assert.Contains(t, err.Error(), "linux-amd64")
}

func TestValidateKeys_DuplicatePlatformID(t *testing.T) {
	platforms := types.DefaultPlatforms()
	platforms[1].PlatformID = "linux-amd64"
	platforms[1].PublishedAssetName = "boot-b"

	err := ValidateKeys(platforms)
	var dup *DuplicatePlatformError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "linux-amd64", dup.PlatformID)
}

func TestValidateKeys_BadKey(t *testing.T) {
	platforms := types.DefaultPlatforms()
	platforms[0].PublishedAssetName = "bin/boot"

	err := ValidateKeys(platforms)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "platform linux-amd64")
}
