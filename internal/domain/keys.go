package domain

import (
	"strconv"
	"strings"
)

// DefaultKeyPrefix namespaces every key the service owns.
const DefaultKeyPrefix = "matchsearch:"

// Keyspace builds per-tenant key and index names. Every name starts with
// <prefix><tenant>: so tenants never share data.
type Keyspace struct {
	prefix string
}

// NewKeyspace returns a Keyspace for prefix, falling back to DefaultKeyPrefix.
func NewKeyspace(prefix string) Keyspace {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return Keyspace{prefix: prefix}
}

func (k Keyspace) base(tenant string) string {
	return k.prefix + tenant + ":"
}

// UserPrefix is the key prefix covered by the user index.
func (k Keyspace) UserPrefix(tenant string) string { return k.base(tenant) + "user:" }

// User is the profile hash of one user.
func (k Keyspace) User(tenant string, id int64) string {
	return k.UserPrefix(tenant) + strconv.FormatInt(id, 10)
}

// UserIndex is the search index over user hashes.
func (k Keyspace) UserIndex(tenant string) string { return k.base(tenant) + "idx:users" }

// PlacePrefix is the key prefix covered by the place index.
func (k Keyspace) PlacePrefix(tenant string) string { return k.base(tenant) + "place:" }

// Place is the hash of one localized place record.
func (k Keyspace) Place(tenant, id string) string { return k.PlacePrefix(tenant) + id }

// PlaceIndex is the search index over place hashes.
func (k Keyspace) PlaceIndex(tenant string) string { return k.base(tenant) + "idx:places" }

// Postal is the hash of one exact postal code.
func (k Keyspace) Postal(tenant, code string) string { return k.base(tenant) + "postal:" + code }

// PostalRangePrefix is the key prefix covered by the postal range index.
func (k Keyspace) PostalRangePrefix(tenant string) string { return k.base(tenant) + "postalrange:" }

// PostalRangeIndex is the search index over postal range hashes.
func (k Keyspace) PostalRangeIndex(tenant string) string { return k.base(tenant) + "idx:postalranges" }

// Tracking is the JSON document of one tracked search.
func (k Keyspace) Tracking(tenant, searchID string) string {
	return k.base(tenant) + "tracking:" + searchID
}

// TrackingLatest points at the most recent tracked search of a user.
func (k Keyspace) TrackingLatest(tenant string, userID int64) string {
	return k.base(tenant) + "tracking:latest:" + strconv.FormatInt(userID, 10)
}
