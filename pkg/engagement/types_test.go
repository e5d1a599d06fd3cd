package engagement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultAndOwnedTypes(t *testing.T) {
	assert.Equal(t, []Type{Favorites, Retweets, Replies}, DefaultTypes())
	assert.Equal(t, []Type{Impressions, Engagements, Favorites, Retweets, Replies}, OwnedTypes())
}

func TestParseTypes(t *testing.T) {
	types, err := ParseTypes([]string{"Favorites", " replies", "favorites"})
	require.NoError(t, err)
	assert.Equal(t, []Type{Favorites, Replies}, types)

	_, err = ParseTypes([]string{"likes"})
	assert.ErrorContains(t, err, `unknown engagement type "likes"`)
}

func TestResolveEndpoint(t *testing.T) {
	tests := map[string]string{
		"":                        TotalsURL,
		"totals":                  TotalsURL,
		"28HR":                    Last28HoursURL,
		"historical":              HistoricalURL,
		"http://localhost/totals": "http://localhost/totals",
	}
	for in, want := range tests {
		got, err := ResolveEndpoint(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ResolveEndpoint("weekly")
	assert.Error(t, err)
}
