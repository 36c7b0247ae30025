package cachepool

import "reflect"

// CollectionInfo is an immutable snapshot of one collection's counters.
type CollectionInfo struct {
	Type           reflect.Type `json:"-" yaml:"-"`
	TypeName       string       `json:"type" yaml:"type"`
	UnusedCount    int          `json:"unused_count" yaml:"unused_count"`
	UsingCount     int          `json:"using_count" yaml:"using_count"`
	SpawnCount     int          `json:"spawn_count" yaml:"spawn_count"`
	UnspawnCount   int          `json:"unspawn_count" yaml:"unspawn_count"`
	CreatedCount   int          `json:"created_count" yaml:"created_count"`
	DiscardedCount int          `json:"discarded_count" yaml:"discarded_count"`
}

// Balanced reports whether the snapshot satisfies
// created - discarded == unused + using.
func (i CollectionInfo) Balanced() bool {
	return i.CreatedCount-i.DiscardedCount == i.UnusedCount+i.UsingCount
}
