package types

import (
	"crypto/sha256"
	"encoding/hex"
)

// Artifact is a build output binary keyed by its published asset name
type Artifact struct {
	Key    string `json:"key"`
	Data   []byte `json:"-"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// NewArtifact builds an Artifact and computes its size and checksum
func NewArtifact(key string, data []byte) Artifact {
	sum := sha256.Sum256(data)
	return Artifact{
		Key:    key,
		Data:   data,
		Size:   int64(len(data)),
		SHA256: hex.EncodeToString(sum[:]),
	}
}
