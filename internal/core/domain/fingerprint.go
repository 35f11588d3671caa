package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"time"
)

// FingerprintRecord is the persisted change-detection baseline for one source.
// A record is only written after a manifest has been fully written.
type FingerprintRecord struct {
	// SourceID identifies the configured source.
	SourceID string `json:"source_id"`

	// Hash is the hex-encoded fingerprint of the item set.
	Hash string `json:"content_hash"`

	// ItemCount is the number of items the hash covers.
	ItemCount int `json:"item_count"`

	// GeneratedAt is when the manifest was last successfully written.
	GeneratedAt time.Time `json:"last_updated"`

	// TTL is the cache duration in force when the record was committed.
	TTL time.Duration `json:"cache_ttl"`

	// ExtractorUsed names the extractor that produced the items.
	ExtractorUsed string `json:"extractor_used,omitempty"`

	// GeneratorVersion is the llmsync version that wrote the record.
	GeneratorVersion string `json:"generator_version,omitempty"`
}

// Expired reports whether the record is older than ttl at now.
// A non-positive ttl never expires.
func (r *FingerprintRecord) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(r.GeneratedAt) > ttl
}

// Fingerprint computes a deterministic hash over the (url, last_modified,
// word_count) tuples of items. Input order does not matter.
func Fingerprint(items []ContentItem) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lastMod := ""
		if !item.LastModified.IsZero() {
			lastMod = item.LastModified.UTC().Format(time.RFC3339Nano)
		}
		lines = append(lines, item.URL+"\t"+lastMod+"\t"+strconv.Itoa(item.WordCount)+"\n")
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, line := range lines {
		h.Write([]byte(line))
	}
	return hex.EncodeToString(h.Sum(nil))
}
