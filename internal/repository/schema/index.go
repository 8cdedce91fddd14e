package schema

import (
	"github.com/sitly-nl/matchsearch/internal/db"
	"github.com/sitly-nl/matchsearch/internal/domain"
	"github.com/sitly-nl/matchsearch/internal/domain/user"
	placerepo "github.com/sitly-nl/matchsearch/internal/repository/place"
)

// userIndex indexes profile hashes for filtering, scoring and clustering.
func userIndex(keys domain.Keyspace, tenant string) (*db.IndexDefinition, error) {
	b := db.NewIndex(keys.UserIndex(tenant)).
		Prefix(keys.UserPrefix(tenant)).
		SortableNumeric(user.FieldUserID).
		TagAs(user.FieldUserID, user.FieldUserTag).
		Tag(user.FieldRole).
		Tag(user.FieldStatus).
		Tag(user.FieldGender).
		Geo(user.FieldLocation).
		Numeric(user.FieldLat).
		Numeric(user.FieldLon).
		Numeric(user.FieldAge).
		SortableNumeric(user.FieldCreated).
		SortableNumeric(user.FieldLastActive).
		Tag(user.FieldAvailability).
		Tag(user.FieldChores).
		Tag(user.FieldHourlyRate).
		Tag(user.FieldLanguages).
		Tag(user.FieldNativeLanguage).
		Tag(user.FieldPlaceID).
		Numeric(user.FieldPremium).
		Numeric(user.FieldHasAvatar).
		Numeric(user.FieldAboutLength).
		Numeric(user.FieldRecommendationScore).
		Numeric(user.FieldReceivedMessages).
		Numeric(user.FieldReceivedInvites).
		Numeric(user.FieldMaxChildren).
		Numeric(user.FieldChildrenCount).
		Numeric(user.FieldBabyExperience).
		Numeric(user.FieldYoungestChildBirth)
	for _, f := range user.Flags {
		b = b.Numeric(string(f))
	}
	return b.Build()
}

// placeIndex indexes localized place hashes for slug, name and proximity lookups.
func placeIndex(keys domain.Keyspace, tenant string) (*db.IndexDefinition, error) {
	return db.NewIndex(keys.PlaceIndex(tenant)).
		Prefix(keys.PlacePrefix(tenant)).
		Tag(placerepo.FieldPlaceID).
		Tag(placerepo.FieldCanonicalID).
		Numeric(placerepo.FieldLocaleID).
		Text(placerepo.FieldNameFolded).
		Tag(placerepo.FieldSlug).
		Tag(placerepo.FieldSlugEnglish).
		GeoShape(placerepo.FieldPoint).
		SortableNumeric(placerepo.FieldUserCount).
		Build()
}

// postalRangeIndex indexes numeric postal code ranges.
func postalRangeIndex(keys domain.Keyspace, tenant string) (*db.IndexDefinition, error) {
	return db.NewIndex(keys.PostalRangeIndex(tenant)).
		Prefix(keys.PostalRangePrefix(tenant)).
		Numeric(placerepo.FieldFrom).
		Numeric(placerepo.FieldTo).
		Tag(placerepo.FieldPlaceID).
		Build()
}
