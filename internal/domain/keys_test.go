package domain

import "testing"

func TestKeyspace(t *testing.T) {
	ks := NewKeyspace("")

	tests := []struct {
		got, want string
	}{
		{ks.User("nl", 42), "matchsearch:nl:user:42"},
		{ks.UserPrefix("nl"), "matchsearch:nl:user:"},
		{ks.UserIndex("nl"), "matchsearch:nl:idx:users"},
		{ks.Place("de", "p1"), "matchsearch:de:place:p1"},
		{ks.PlaceIndex("de"), "matchsearch:de:idx:places"},
		{ks.Postal("nl", "1017AB"), "matchsearch:nl:postal:1017AB"},
		{ks.PostalRangePrefix("nl"), "matchsearch:nl:postalrange:"},
		{ks.PostalRangeIndex("nl"), "matchsearch:nl:idx:postalranges"},
		{ks.Tracking("nl", "abc"), "matchsearch:nl:tracking:abc"},
		{ks.TrackingLatest("nl", 7), "matchsearch:nl:tracking:latest:7"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestKeyspace_PrefixWithoutColon(t *testing.T) {
	ks := NewKeyspace("staging")
	if got := ks.User("nl", 1); got != "staging:nl:user:1" {
		t.Errorf("got %q", got)
	}
}
