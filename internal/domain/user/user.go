// Package user holds the searchable profile model and the preferences a
// searcher has stored for future searches.
package user

import (
	"time"

	"github.com/sitly-nl/matchsearch/internal/domain/availability"
	"github.com/sitly-nl/matchsearch/internal/domain/geo"
)

// Role is the side of the marketplace a user is on.
type Role string

// Roles.
const (
	RoleParent      Role = "parent"
	RoleBabysitter  Role = "babysitter"
	RoleChildminder Role = "childminder"
)

// ParseRole accepts singular and plural forms.
func ParseRole(s string) (Role, bool) {
	switch s {
	case "parent", "parents":
		return RoleParent, true
	case "babysitter", "babysitters":
		return RoleBabysitter, true
	case "childminder", "childminders":
		return RoleChildminder, true
	}
	return "", false
}

// IsCaregiver reports whether the role provides care.
func (r Role) IsCaregiver() bool {
	return r == RoleBabysitter || r == RoleChildminder
}

// Preferences are the search defaults a user persists between searches.
type Preferences struct {
	MaxDistanceKm int
	Gender        string
	RemoteTutor   bool
	AfterSchool   bool
	Languages     []string
}

// User is a searcher or candidate profile.
type User struct {
	ID       int64
	Role     Role
	Gender   string
	Location *geo.Point

	Premium          bool
	PremiumSince     time.Time
	QuarantinedUntil time.Time
	CreatedAt        time.Time
	LastActiveAt     time.Time

	// Parents: number and age of children. Caregivers: youngest child
	// birthdate they accept, zero when unrestricted.
	ChildrenCount      int
	YoungestChildBirth time.Time
	MinChildBirth      time.Time
	BabyExperience     bool

	// Availability is the caregiver's free grid or the parent's care-need grid.
	Availability availability.Grid
	Preferences  Preferences

	Excluded []int64
}

// SeeksCare reports whether the user is a parent looking for caregivers.
func (u *User) SeeksCare() bool {
	return u.Role == RoleParent
}

// IsQuarantined reports whether the user is currently quarantined.
func (u *User) IsQuarantined(now time.Time) bool {
	return !u.QuarantinedUntil.IsZero() && now.Before(u.QuarantinedUntil)
}

// PremiumFor returns how long the user has held premium, zero if not premium.
func (u *User) PremiumFor(now time.Time) time.Duration {
	if !u.Premium || u.PremiumSince.IsZero() || now.Before(u.PremiumSince) {
		return 0
	}
	return now.Sub(u.PremiumSince)
}

// HasChildYoungerThan reports whether the youngest child is under age at now.
func (u *User) HasChildYoungerThan(age time.Duration, now time.Time) bool {
	if u.YoungestChildBirth.IsZero() {
		return false
	}
	return now.Sub(u.YoungestChildBirth) < age
}

// PreferenceChanges lists preference updates; nil fields are unchanged.
type PreferenceChanges struct {
	MaxDistanceKm *int
	Gender        *string
	RemoteTutor   *bool
	AfterSchool   *bool
	Languages     []string
	Availability  *availability.Grid
}

// IsEmpty reports whether there is nothing to write.
func (c PreferenceChanges) IsEmpty() bool {
	return c.MaxDistanceKm == nil && c.Gender == nil && c.RemoteTutor == nil &&
		c.AfterSchool == nil && c.Languages == nil && c.Availability == nil
}
