package config

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/mcphub/mcphub/internal/domain/upstream"
)

// Snapshot is a named, hashed view of the descriptor set produced by one
// read of the config file. The hash lets the reconciler skip the diff
// phase when nothing changed.
type Snapshot struct {
	ByName map[string]upstream.Descriptor
	Hash   string
}

// hashRow is the sorted, JSON-encoded tuple shape the hash is computed
// over: (name, endpoint, enabled, timeout).
type hashRow struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	Enabled  bool   `json:"enabled"`
	Timeout  int    `json:"timeout"`
}

// NewSnapshot builds a Snapshot from a freshly loaded descriptor list.
// Descriptor names are assumed unique (LoadDescriptors enforces this).
func NewSnapshot(descriptors []upstream.Descriptor) (Snapshot, error) {
	byName := make(map[string]upstream.Descriptor, len(descriptors))
	rows := make([]hashRow, len(descriptors))
	for i, d := range descriptors {
		byName[d.Name] = d
		rows[i] = hashRow{Name: d.Name, Endpoint: d.Endpoint, Enabled: d.Enabled, Timeout: d.Timeout}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })

	encoded, err := json.Marshal(rows)
	if err != nil {
		return Snapshot{}, err
	}
	sum := sha1.Sum(encoded)

	return Snapshot{ByName: byName, Hash: hex.EncodeToString(sum[:])}, nil
}
