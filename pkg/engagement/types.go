package engagement

import (
	"fmt"
	"strings"
)

// MaxBatchSize is the most identifiers the API accepts per request
const MaxBatchSize = 250

// Endpoints of the engagement API
const (
	DefaultTokenURL = "https://api.twitter.com/oauth2/token"
	TotalsURL       = "https://data-api.twitter.com/insights/engagement/totals"
	Last28HoursURL  = "https://data-api.twitter.com/insights/engagement/28hr"
	HistoricalURL   = "https://data-api.twitter.com/insights/engagement/historical"
)

// Type is an engagement metric the API can report
type Type string

const (
	Favorites   Type = "favorites"
	Retweets    Type = "retweets"
	Replies     Type = "replies"
	Impressions Type = "impressions"
	Engagements Type = "engagements"
)

var knownTypes = map[Type]bool{
	Favorites:   true,
	Retweets:    true,
	Replies:     true,
	Impressions: true,
	Engagements: true,
}

// DefaultTypes is the set available for content the caller does not own
func DefaultTypes() []Type {
	return []Type{Favorites, Retweets, Replies}
}

// OwnedTypes is the set available for the caller's own content
func OwnedTypes() []Type {
	return []Type{Impressions, Engagements, Favorites, Retweets, Replies}
}

// ParseTypes validates engagement type names. Duplicates are dropped.
func ParseTypes(names []string) ([]Type, error) {
	seen := make(map[Type]bool, len(names))
	var types []Type
	for _, name := range names {
		t := Type(strings.ToLower(strings.TrimSpace(name)))
		if !knownTypes[t] {
			return nil, fmt.Errorf("unknown engagement type %q", name)
		}
		if !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}
	return types, nil
}

// ResolveEndpoint maps an endpoint name (totals, 28hr, historical) or a
// full URL onto a URL.
func ResolveEndpoint(name string) (string, error) {
	switch strings.ToLower(name) {
	case "", "totals":
		return TotalsURL, nil
	case "28hr":
		return Last28HoursURL, nil
	case "historical":
		return HistoricalURL, nil
	}
	if strings.HasPrefix(name, "https://") || strings.HasPrefix(name, "http://") {
		return name, nil
	}
	return "", fmt.Errorf("unknown endpoint %q", name)
}

func typeNames(types []Type) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return names
}
