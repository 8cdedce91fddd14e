package user

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sitly-nl/matchsearch/internal/domain/availability"
	"github.com/sitly-nl/matchsearch/internal/domain/geo"
	domuser "github.com/sitly-nl/matchsearch/internal/domain/user"
)

// Hash fields that are stored on the profile but not indexed.
const (
	hashPremiumSince     = "premium_since"
	hashQuarantinedUntil = "quarantined_until"
	hashMinChildBirth    = "min_child_birth"
	hashExcluded         = "excluded"

	hashPrefMaxDistance = "pref_max_distance"
	hashPrefGender      = "pref_gender"
	hashPrefRemoteTutor = "pref_remote_tutor"
	hashPrefAfterSchool = "pref_after_school"
	hashPrefLanguages   = "pref_languages"
)

// gridPrefix is the hash field prefix of the stored availability grid:
// parents keep the care they look for, caregivers the care they offer.
func gridPrefix(role domuser.Role) string {
	if role.IsCaregiver() {
		return "foster_"
	}
	return "pref_"
}

// userFromHash hydrates a domain User from an HGETALL result map.
func userFromHash(m map[string]string) (*domuser.User, error) {
	id, err := strconv.ParseInt(m[domuser.FieldUserID], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", domuser.FieldUserID, err)
	}
	role, ok := domuser.ParseRole(m[domuser.FieldRole])
	if !ok {
		return nil, fmt.Errorf("invalid %s %q", domuser.FieldRole, m[domuser.FieldRole])
	}

	u := &domuser.User{
		ID:             id,
		Role:           role,
		Gender:         m[domuser.FieldGender],
		Location:       parseLocation(m[domuser.FieldLat], m[domuser.FieldLon]),
		Premium:        parseBool(m[domuser.FieldPremium]),
		BabyExperience: parseBool(m[domuser.FieldBabyExperience]),
	}

	times := []struct {
		field string
		dst   *time.Time
	}{
		{hashPremiumSince, &u.PremiumSince},
		{hashQuarantinedUntil, &u.QuarantinedUntil},
		{domuser.FieldCreated, &u.CreatedAt},
		{domuser.FieldLastActive, &u.LastActiveAt},
		{domuser.FieldYoungestChildBirth, &u.YoungestChildBirth},
		{hashMinChildBirth, &u.MinChildBirth},
	}
	for _, tf := range times {
		t, err := parseUnix(m[tf.field])
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", tf.field, err)
		}
		*tf.dst = t
	}

	if u.ChildrenCount, err = parseInt(m[domuser.FieldChildrenCount]); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", domuser.FieldChildrenCount, err)
	}

	if u.Availability, err = gridFromHash(m, role); err != nil {
		return nil, err
	}

	if u.Excluded, err = parseIDs(m[hashExcluded]); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", hashExcluded, err)
	}

	if u.Preferences.MaxDistanceKm, err = parseInt(m[hashPrefMaxDistance]); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", hashPrefMaxDistance, err)
	}
	u.Preferences.Gender = m[hashPrefGender]
	u.Preferences.RemoteTutor = parseBool(m[hashPrefRemoteTutor])
	u.Preferences.AfterSchool = parseBool(m[hashPrefAfterSchool])
	u.Preferences.Languages = splitList(m[hashPrefLanguages])

	return u, nil
}

// gridFromHash reads the indexed availability tag, falling back to the
// per-cell fields of the user's role side.
func gridFromHash(m map[string]string, role domuser.Role) (availability.Grid, error) {
	if tag := m[domuser.FieldAvailability]; tag != "" {
		g, err := availability.FromKeys(splitList(tag))
		if err != nil {
			return availability.Grid{}, fmt.Errorf("invalid %s: %w", domuser.FieldAvailability, err)
		}
		return g, nil
	}
	var g availability.Grid
	prefix := gridPrefix(role)
	for _, c := range allCells() {
		if parseBool(m[prefix+c.Key()]) {
			g = g.With(c, true)
		}
	}
	return g, nil
}

// preferencesToHash encodes only the changed preference fields. An
// availability change rewrites every cell of the role side and the tag.
func preferencesToHash(role domuser.Role, c domuser.PreferenceChanges) map[string]string {
	m := make(map[string]string)
	if c.MaxDistanceKm != nil {
		m[hashPrefMaxDistance] = strconv.Itoa(*c.MaxDistanceKm)
	}
	if c.Gender != nil {
		m[hashPrefGender] = *c.Gender
	}
	if c.RemoteTutor != nil {
		m[hashPrefRemoteTutor] = formatBool(*c.RemoteTutor)
	}
	if c.AfterSchool != nil {
		m[hashPrefAfterSchool] = formatBool(*c.AfterSchool)
	}
	if c.Languages != nil {
		m[hashPrefLanguages] = strings.Join(c.Languages, ",")
	}
	if c.Availability != nil {
		prefix := gridPrefix(role)
		for _, cell := range allCells() {
			m[prefix+cell.Key()] = formatBool(c.Availability.Has(cell))
		}
		m[domuser.FieldAvailability] = strings.Join(c.Availability.Keys(), ",")
	}
	return m
}

func allCells() []availability.Cell {
	cells := make([]availability.Cell, 0, len(availability.Weekdays)*len(availability.Dayparts))
	for d := range availability.Weekdays {
		for p := range availability.Dayparts {
			cells = append(cells, availability.Cell{Day: d, Part: p})
		}
	}
	return cells
}

func parseLocation(lat, lon string) *geo.Point {
	if lat == "" || lon == "" {
		return nil
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return nil
	}
	p := geo.Point{Lat: la, Lon: lo}
	if p.Validate() != nil {
		return nil
	}
	return &p
}

func parseUnix(s string) (time.Time, error) {
	if s == "" || s == "0" {
		return time.Time{}, nil
	}
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0).UTC(), nil
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func parseBool(s string) bool {
	return s == "1" || s == "true"
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseIDs(s string) ([]int64, error) {
	parts := splitList(s)
	if len(parts) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(parts))
	for i, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
