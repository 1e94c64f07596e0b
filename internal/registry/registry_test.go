package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSources_AllTagsUnique(t *testing.T) {
	sources := DefaultSources()
	require.NotEmpty(t, sources)

	seen := make(map[string]bool)
	for _, s := range sources {
		assert.False(t, seen[s.Tag], "duplicate tag %q", s.Tag)
		seen[s.Tag] = true
		assert.NotEmpty(t, s.BaseURL)
		assert.NotEmpty(t, s.Format)
		assert.Positive(t, s.MinPollInterval)
		assert.Positive(t, s.Timeout)
		assert.NotEmpty(t, s.SupportedRegions)
	}
}

func TestByTag_FiltersAndPreservesOrder(t *testing.T) {
	all := DefaultSources()
	got := ByTag(all, []string{"geonet", "usgs"})

	require.Len(t, got, 2)
	assert.Equal(t, "usgs", got[0].Tag) // DefaultSources order preserved, not request order
	assert.Equal(t, "geonet", got[1].Tag)
}

func TestByTag_EmptyTagsReturnsAll(t *testing.T) {
	all := DefaultSources()
	got := ByTag(all, nil)
	assert.Equal(t, all, got)
}

func TestByTag_UnknownTagSkipped(t *testing.T) {
	all := DefaultSources()
	got := ByTag(all, []string{"usgs", "not-a-real-source"})
	require.Len(t, got, 1)
	assert.Equal(t, "usgs", got[0].Tag)
}
