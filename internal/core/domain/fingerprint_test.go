package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_PermutationInvariant(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a := ContentItem{URL: "https://example.com/a", LastModified: ts, WordCount: 100}
	b := ContentItem{URL: "https://example.com/b", WordCount: 20}
	c := ContentItem{URL: "https://example.com/c", LastModified: ts.Add(time.Hour)}

	assert.Equal(t, Fingerprint([]ContentItem{a, b, c}), Fingerprint([]ContentItem{c, a, b}))
}

func TestFingerprint_SensitiveToIdentityFields(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	base := []ContentItem{{URL: "https://example.com/a", LastModified: ts, WordCount: 100}}
	h := Fingerprint(base)

	assert.NotEqual(t, h, Fingerprint([]ContentItem{{URL: "https://example.com/a", LastModified: ts, WordCount: 101}}))
	assert.NotEqual(t, h, Fingerprint([]ContentItem{{URL: "https://example.com/a", LastModified: ts.Add(time.Second), WordCount: 100}}))
	assert.NotEqual(t, h, Fingerprint([]ContentItem{{URL: "https://example.com/b", LastModified: ts, WordCount: 100}}))

	// Titles and excerpts are presentation, not identity.
	assert.Equal(t, h, Fingerprint([]ContentItem{{URL: "https://example.com/a", Title: "x", LastModified: ts, WordCount: 100}}))
}

func TestFingerprint_TimezoneNormalised(t *testing.T) {
	utc := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	local := utc.In(time.FixedZone("CEST", 2*60*60))

	assert.Equal(t,
		Fingerprint([]ContentItem{{URL: "u", LastModified: utc}}),
		Fingerprint([]ContentItem{{URL: "u", LastModified: local}}))
}

func TestFingerprintRecord_Expired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := &FingerprintRecord{GeneratedAt: now.Add(-2 * time.Hour)}

	assert.True(t, r.Expired(now, time.Hour))
	assert.False(t, r.Expired(now, 3*time.Hour))
	assert.False(t, r.Expired(now, 0))
}
