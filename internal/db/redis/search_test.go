package redis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/sitly-nl/matchsearch/internal/db"
	"github.com/sitly-nl/matchsearch/internal/domain/geo"
	"github.com/sitly-nl/matchsearch/internal/domain/search/filter"
	"github.com/sitly-nl/matchsearch/internal/domain/search/query"
	"github.com/sitly-nl/matchsearch/internal/domain/search/scoring"
)

// --- filter.go tests ---

func mustExpr(t *testing.T, must, should, mustNot []filter.Condition) filter.Expression {
	t.Helper()
	e, err := filter.NewExpression(must, should, mustNot)
	if err != nil {
		t.Fatalf("NewExpression: %v", err)
	}
	return e
}

func TestBuildFilter_Empty(t *testing.T) {
	if got := buildFilter(filter.Expression{}); got != "*" {
		t.Errorf("expected *, got %q", got)
	}
}

func TestBuildFilter_Combined(t *testing.T) {
	role, _ := filter.NewMatch("role", "babysitter")
	rates, _ := filter.NewMatchAny("hourly_rate", []string{"5-10", "10-15"})
	smoker, _ := filter.Between("smoker", 0, 0)
	radius, _ := filter.NewRadius("location", geo.Point{Lat: 52.37, Lon: 4.9}, 20)
	excl, _ := filter.NewMatchAny("uid", []string{"12", "13"})

	got := buildFilter(mustExpr(t, []filter.Condition{role, rates, smoker, radius}, nil, []filter.Condition{excl}))
	want := `@role:{babysitter} @hourly_rate:{5\-10 | 10\-15} @smoker:[0 0] @location:[4.9 52.37 20 km] -@uid:{12 | 13}`
	if got != want {
		t.Errorf("buildFilter =\n  %q\nwant\n  %q", got, want)
	}
}

func TestBuildFilter_ShouldGroup(t *testing.T) {
	east, _ := filter.AtLeast("lon", 179)
	west, _ := filter.NewRange("lon", mustRange(t, nil, nil, nil, ptr(-179.5)))
	got := buildFilter(mustExpr(t, nil, []filter.Condition{east, west}, nil))
	if got != "(@lon:[179 +inf] | @lon:[-inf -179.5])" {
		t.Errorf("unexpected should group: %q", got)
	}
}

func TestBuildNumericFilter_Exclusive(t *testing.T) {
	below, _ := filter.Below("created", 1700000000)
	if got := buildCondition(below); got != "@created:[-inf (1700000000]" {
		t.Errorf("unexpected filter: %q", got)
	}
	above, _ := filter.Above("last_active", 0.5)
	if got := buildCondition(above); got != "@last_active:[(0.5 +inf]" {
		t.Errorf("unexpected filter: %q", got)
	}
}

func TestBuildCondition_Prefix(t *testing.T) {
	c, _ := filter.NewPrefix("name_folded", "den h")
	if got := buildCondition(c); got != `@name_folded:den\ h*` {
		t.Errorf("unexpected prefix filter: %q", got)
	}
}

func TestEscapeQuery(t *testing.T) {
	input := `"world" @user {tag}`
	expected := `\"world\"\ \@user\ \{tag\}`
	if got := escapeQuery(input); got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}

// --- search.go tests ---

func TestBuildListArgs_Within(t *testing.T) {
	minUsers, _ := filter.AtLeast("user_count", 5)
	args, err := buildListArgs(&db.ListQuery{
		IndexName: "nl:places",
		Filters:   mustExpr(t, []filter.Condition{minUsers}, nil, nil),
		Within:    &db.Shape{Field: "point", WKT: "POLYGON ((0 0, 1 0, 1 1, 0 0))"},
		SortBy:    "user_count",
		SortDesc:  true,
		Limit:     50,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"nl:places", "@user_count:[5 +inf] @point:[WITHIN $shape]",
		"SORTBY", "user_count", "DESC",
		"LIMIT", "0", "50",
		"PARAMS", "2", "shape", "POLYGON ((0 0, 1 0, 1 1, 0 0))",
		"DIALECT", "3",
	}
	assertArgs(t, args, want)
}

func TestBuildListArgs_Validation(t *testing.T) {
	if _, err := buildListArgs(&db.ListQuery{}); err == nil {
		t.Error("expected error for empty index name")
	}
	if _, err := buildListArgs(&db.ListQuery{IndexName: "i", Limit: -1}); err == nil {
		t.Error("expected error for negative limit")
	}
}

func TestSearchList_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[1] == "nl:places"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("nl:place:1"),
			mock.RedisArray(mock.RedisString("name"), mock.RedisString("Utrecht")),
			mock.RedisString("nl:place:2"),
			mock.RedisArray(mock.RedisString("name"), mock.RedisString("Zeist")),
		)))

	s := NewStoreForTest(c)
	result, err := s.SearchList(context.Background(), &db.ListQuery{IndexName: "nl:places", Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 2 || len(result.Entries) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Entries[1].Fields["name"] != "Zeist" {
		t.Errorf("unexpected entry: %+v", result.Entries[1])
	}
}

func TestSearchCount_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.SEARCH", "nl:users", "@role:{parent}", "LIMIT", "0", "0", "DIALECT", "2")).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(42))))

	role, _ := filter.NewMatch("role", "parent")
	s := NewStoreForTest(c)
	count, err := s.SearchCount(context.Background(), &db.CountQuery{
		IndexName: "nl:users",
		Filters:   mustExpr(t, []filter.Condition{role}, nil, nil),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 42 {
		t.Errorf("expected 42, got %d", count)
	}
}

func TestSearchCount_UnknownIndex(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.Result(mock.RedisError("nl:users: no such index")))

	_, err := NewStoreForTest(c).SearchCount(context.Background(), &db.CountQuery{IndexName: "nl:users"})
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}

// --- aggregate.go tests ---

func scoredQuery(t *testing.T, explain bool) *query.Compiled {
	t.Helper()
	role, _ := filter.NewMatch("role", "babysitter")
	premium, _ := filter.Between("premium", 1, 1)
	q, err := query.New(query.Params{
		Filter: mustExpr(t, []filter.Condition{role}, nil, nil),
		Origin: &geo.Point{Lat: 52.37, Lon: 4.9},
		Scoring: []scoring.Factor{
			{Name: scoring.FactorDistance, Weight: 3, Params: scoring.Params{
				Kind: scoring.KindDecay, Field: scoring.DistanceField, Scale: 10, Decay: 0.5,
			}},
			{Name: scoring.FactorPremium, Weight: 1, Params: scoring.Params{
				Kind: scoring.KindCondition, Condition: premium,
			}},
			{Name: scoring.FactorAvailabilityOverlap, Weight: 4, Params: scoring.Params{
				Kind: scoring.KindOverlap, Field: "availability", Values: []string{"monday_morning"},
			}},
		},
		Sort:    []query.SortKey{{Field: query.ScoreField, Desc: true}, {Field: "user_id"}},
		Offset:  20,
		Limit:   10,
		Explain: explain,
	})
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}
	return q
}

func aggQuery(q *query.Compiled) *db.AggregateQuery {
	return &db.AggregateQuery{
		IndexName: "nl:users", Query: q,
		KeyField: "user_id", GeoField: "location", LatField: "lat", LonField: "lon",
	}
}

func TestBuildAggregateArgs_Scored(t *testing.T) {
	args, err := buildAggregateArgs(aggQuery(scoredQuery(t, false)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	joined := strings.Join(args, " | ")

	for _, want := range []string{
		"nl:users | @role:{babysitter}",
		"LOAD | 4 | @user_id | @location | @premium | @availability",
		"APPLY | geodistance(@location, 4.9, 52.37) / 1000 | AS | __distance",
		"APPLY | ((contains(@availability, \"monday_morning\") > 0)) / 1 | AS | __f_availabilityOverlap",
		"APPLY | ((@premium >= 1) && (@premium <= 1)) | AS | __f_premium",
		"APPLY | 3 * @__f_distance + 1 * @__f_premium + 4 * @__f_availabilityOverlap | AS | __score",
		"SORTBY | 4 | @__score | DESC | @user_id | ASC",
		"LIMIT | 20 | 10 | DIALECT | 2",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing %q in\n%s", want, joined)
		}
	}
}

func TestBuildAggregateArgs_Grouped(t *testing.T) {
	role, _ := filter.NewMatch("role", "parent")
	q, err := query.New(query.Params{
		Filter: mustExpr(t, []filter.Condition{role}, nil, nil),
		Group:  &query.Grouping{CellDeg: 0.05},
	})
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}
	args, err := buildAggregateArgs(aggQuery(q))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"LOAD 3 @user_id @lat @lon",
		"APPLY floor(@lat / 0.05) AS __cell_lat",
		"GROUPBY 2 @__cell_lat @__cell_lon REDUCE COUNT 0 AS count",
		"REDUCE AVG 1 @lat AS latitude",
		"SORTBY 2 @count DESC",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing %q in\n%s", want, joined)
		}
	}
	if strings.Contains(joined, "__score") {
		t.Error("unscored grouped query must not compute a score")
	}
}

func TestFactorExpr_DecayAndRatio(t *testing.T) {
	d, err := factorExpr(scoring.Params{Kind: scoring.KindDecay, Field: "last_active", Origin: 1000, Scale: 50, Decay: 0.5, Offset: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(d, "exp(-0.69314718") || !strings.Contains(d, "abs(@last_active - 1000)") || !strings.Contains(d, "> 5") {
		t.Errorf("unexpected decay expression: %s", d)
	}
	r, _ := factorExpr(scoring.Params{Kind: scoring.KindRatio, Field: "about_length", Pivot: 500})
	if r != "((@about_length >= 500) + (@about_length < 500) * @about_length / 500)" {
		t.Errorf("unexpected ratio expression: %s", r)
	}
}

func TestAggregate_ParsesRowsAndExplanation(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.AGGREGATE" && cmd[1] == "nl:users"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(1),
			mock.RedisArray(
				mock.RedisString("user_id"), mock.RedisString("42"),
				mock.RedisString("__distance"), mock.RedisString("10"),
				mock.RedisString("__f_distance"), mock.RedisString("0.5"),
				mock.RedisString("__f_premium"), mock.RedisString("1"),
				mock.RedisString("__f_availabilityOverlap"), mock.RedisString("1"),
				mock.RedisString("__score"), mock.RedisString("6.5"),
			),
		)))

	res, err := NewStoreForTest(c).Aggregate(context.Background(), aggQuery(scoredQuery(t, true)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("want 1 row, got %d", len(res.Rows))
	}
	row := res.Rows[0]
	if row.Key != "42" || row.Score != 6.5 || row.Distance == nil || *row.Distance != 10 {
		t.Fatalf("unexpected row: %+v", row)
	}
	if row.Explanation == nil || len(row.Explanation.Details) != 3 {
		t.Fatalf("expected explanation with 3 factors, got %+v", row.Explanation)
	}
	if row.Explanation.Value != 6.5 {
		t.Errorf("explanation total = %v, want 6.5", row.Explanation.Value)
	}
	d := row.Explanation.Details[0]
	if d.Description != "weight(distance)" || d.Value != 1.5 {
		t.Errorf("unexpected distance detail: %+v", d)
	}
}

func TestAggregate_ParsesGroups(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisArray(
				mock.RedisString("__cell_lat"), mock.RedisString("1047"),
				mock.RedisString("__cell_lon"), mock.RedisString("98"),
				mock.RedisString("count"), mock.RedisString("12"),
				mock.RedisString("latitude"), mock.RedisString("52.37"),
				mock.RedisString("longitude"), mock.RedisString("4.9"),
			),
			mock.RedisArray(
				mock.RedisString("count"), mock.RedisString("3"),
				mock.RedisString("latitude"), mock.RedisString("52.09"),
				mock.RedisString("longitude"), mock.RedisString("5.12"),
			),
		)))

	q, _ := query.New(query.Params{Group: &query.Grouping{CellDeg: 0.05}})
	res, err := NewStoreForTest(c).Aggregate(context.Background(), aggQuery(q))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Groups) != 2 || res.Groups[0].Count != 12 || res.Groups[1].Latitude != 52.09 {
		t.Fatalf("unexpected groups: %+v", res.Groups)
	}
}

func ptr(f float64) *float64 { return &f }

func mustRange(t *testing.T, gt, gte, lt, lte *float64) filter.Range {
	t.Helper()
	r, err := filter.NewRangeFilter(gt, gte, lt, lte)
	if err != nil {
		t.Fatalf("NewRangeFilter: %v", err)
	}
	return r
}
