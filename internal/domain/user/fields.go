package user

// Index field names of the per-tenant user search index.
const (
	FieldUserID         = "user_id"
	FieldUserTag        = "uid"
	FieldRole           = "role"
	FieldStatus         = "status"
	FieldGender         = "gender"
	FieldLocation       = "location"
	FieldLat            = "lat"
	FieldLon            = "lon"
	FieldAge            = "age"
	FieldCreated        = "created"
	FieldLastActive     = "last_active"
	FieldAvailability   = "availability"
	FieldChores         = "chores"
	FieldHourlyRate     = "hourly_rate"
	FieldLanguages      = "languages"
	FieldNativeLanguage = "native_language"
	FieldPlaceID        = "place_id"

	FieldPremium             = "premium"
	FieldHasAvatar           = "has_avatar"
	FieldAboutLength         = "about_length"
	FieldRecommendationScore = "recommendation_score"
	FieldReceivedMessages    = "received_messages"
	FieldReceivedInvites     = "received_invites"
	FieldMaxChildren         = "max_children"
	FieldChildrenCount       = "children_count"
	FieldBabyExperience      = "baby_experience"
	FieldYoungestChildBirth  = "youngest_child_birth"
)

// StatusActive marks visible, non-blocked, non-hidden profiles.
const StatusActive = "active"

// Flag is a boolean profile attribute that searches can require.
type Flag string

// Flags. Each is indexed as a NUMERIC 0/1 field of the same name.
const (
	FlagSmoker         Flag = "smoker"
	FlagEducated       Flag = "educated"
	FlagReferences     Flag = "references"
	FlagRemoteTutor    Flag = "remote_tutor"
	FlagAfterSchool    Flag = "after_school"
	FlagRegularCare    Flag = "regular_care"
	FlagOccasionalCare Flag = "occasional_care"
)

// Flags lists every searchable flag.
var Flags = []Flag{
	FlagSmoker, FlagEducated, FlagReferences, FlagRemoteTutor,
	FlagAfterSchool, FlagRegularCare, FlagOccasionalCare,
}

// ParseFlag returns the flag for a request name such as "remoteTutor".
func ParseFlag(name string) (Flag, bool) {
	switch name {
	case "smoker":
		return FlagSmoker, true
	case "educated", "education":
		return FlagEducated, true
	case "references":
		return FlagReferences, true
	case "remoteTutor", "remote_tutor":
		return FlagRemoteTutor, true
	case "afterSchool", "after_school":
		return FlagAfterSchool, true
	case "regularCare", "regular_care":
		return FlagRegularCare, true
	case "occasionalCare", "occasional_care":
		return FlagOccasionalCare, true
	}
	return "", false
}
