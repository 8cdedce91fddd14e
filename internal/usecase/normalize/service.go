package normalize

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sitly-nl/matchsearch/internal/domain"
	"github.com/sitly-nl/matchsearch/internal/domain/availability"
	"github.com/sitly-nl/matchsearch/internal/domain/geo"
	"github.com/sitly-nl/matchsearch/internal/domain/search/criteria"
	"github.com/sitly-nl/matchsearch/internal/domain/search/request"
	"github.com/sitly-nl/matchsearch/internal/domain/search/scoring"
	"github.com/sitly-nl/matchsearch/internal/domain/user"
)

// Config holds the business defaults applied during normalization.
type Config struct {
	DefaultDistanceKm  float64
	PostalCodeMarginKm float64
	PremiumStaleness   time.Duration
	DefaultPageSize    int
	MaxPageSize        int
}

// Result is a normalized search plus what was learned on the way.
type Result struct {
	Criteria criteria.Criteria
	// Requester is nil for anonymous actors.
	Requester *user.User
	// RequestedAvailability is the grid sent with the request, nil when absent.
	RequestedAvailability *availability.Grid
	Weights               map[scoring.FactorName]float64
	IsTest                bool
}

// Service turns raw filter input into SearchCriteria.
type Service struct {
	users  UserReader
	places PlaceResolver
	cfg    Config
	now    func() time.Time
}

// New creates a normalizer.
func New(users UserReader, places PlaceResolver, cfg Config) *Service {
	if cfg.DefaultDistanceKm <= 0 {
		cfg.DefaultDistanceKm = 20
	}
	if cfg.PremiumStaleness <= 0 {
		cfg.PremiumStaleness = 24 * time.Hour
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 20
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = cfg.DefaultPageSize
	}
	return &Service{users: users, places: places, cfg: cfg, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// parsed is the request-only part of normalization, before any lookups.
type parsed struct {
	params      criteria.Params
	hasRoles    bool
	hasDistance bool
	hasAvail    bool
	keyword     string
	postalCode  string
	weights     map[scoring.FactorName]float64
	isTest      bool
}

// Normalize validates raw and resolves places and requester defaults. Bad
// input yields a *domain.SearchParseError naming the parameter.
func (s *Service) Normalize(
	ctx context.Context, tenant string, raw request.RawInput, actor request.Actor,
) (Result, error) {
	pr, err := s.parse(raw, actor)
	if err != nil {
		return Result{}, err
	}

	var (
		requester *user.User
		area      placeArea
	)
	g, gctx := errgroup.WithContext(ctx)
	if actor.IsAuthenticated() {
		g.Go(func() error {
			u, err := s.users.Get(gctx, tenant, actor.UserID)
			if err != nil {
				return fmt.Errorf("load requester %d: %w", actor.UserID, err)
			}
			requester = u
			return nil
		})
	}
	if pr.keyword != "" || pr.postalCode != "" {
		g.Go(func() error {
			a, err := s.resolveArea(gctx, tenant, pr.keyword, pr.postalCode, raw.LocaleID)
			if err != nil {
				return err
			}
			area = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	p := &pr.params
	if err := applyArea(p, area); err != nil {
		return Result{}, err
	}
	if err := s.applyRequester(p, pr, requester, actor); err != nil {
		return Result{}, err
	}

	c, err := criteria.New(*p)
	if err != nil {
		return Result{}, domain.NewParseError("filter", err)
	}

	res := Result{Criteria: c, Requester: requester, Weights: pr.weights, IsTest: pr.isTest}
	if pr.hasAvail {
		grid := p.Availability
		res.RequestedAvailability = &grid
	}
	return res, nil
}

func (s *Service) parse(raw request.RawInput, actor request.Actor) (parsed, error) {
	var pr parsed
	p := &pr.params

	if err := s.parsePaging(raw, p); err != nil {
		return parsed{}, err
	}
	if err := parseGem(raw, actor, &pr); err != nil {
		return parsed{}, err
	}

	var minAge, maxAge *int
	for _, k := range sortedKeys(raw.Filter) {
		v := raw.Filter[k]
		param := "filter[" + k + "]"
		switch k {
		case "role":
			roles, err := parseRoles(v)
			if err != nil {
				return parsed{}, domain.NewParseError(param, err)
			}
			p.Roles = roles
			pr.hasRoles = len(roles) > 0
		case "age":
			age, err := parseAge(v)
			if err != nil {
				return parsed{}, domain.NewParseError(param, err)
			}
			p.Age = age
		case "minAge", "maxAge":
			n, err := toInt(v)
			if err != nil || n < 0 {
				return parsed{}, domain.NewParseErrorf(param, "expected a non-negative integer, got %v", v)
			}
			if k == "minAge" {
				minAge = &n
			} else {
				maxAge = &n
			}
		case "distance":
			d, err := toFloat(v)
			if err != nil {
				return parsed{}, domain.NewParseError(param, err)
			}
			if d < 0 {
				return parsed{}, domain.NewParseError(param, criteria.ErrNegativeDistance)
			}
			p.DistanceKm = d
			pr.hasDistance = d > 0
		case "center":
			c, err := parseCenter(v)
			if err != nil {
				return parsed{}, domain.NewParseError(param, err)
			}
			p.Center = &c
		case "bounds":
			b, err := parseBounds(v)
			if err != nil {
				return parsed{}, domain.NewParseError(param, err)
			}
			p.Bounds = &b
		case "availability":
			grid, err := parseAvailability(v)
			if err != nil {
				return parsed{}, err
			}
			p.Availability = grid
			pr.hasAvail = true
		case "gender":
			gender, err := parseGender(v)
			if err != nil {
				return parsed{}, domain.NewParseError(param, err)
			}
			p.Gender = gender
		case "chores":
			list, err := toList(v)
			if err != nil {
				return parsed{}, domain.NewParseError(param, err)
			}
			p.Chores = lower(list)
		case "hourlyRates", "hourlyRate":
			list, err := toList(v)
			if err != nil {
				return parsed{}, domain.NewParseError(param, err)
			}
			p.HourlyRates = list
		case "languages":
			list, err := toList(v)
			if err != nil {
				return parsed{}, domain.NewParseError(param, err)
			}
			p.Languages = lower(list)
		case "nativeLanguage":
			lang, ok := toString(v)
			if !ok {
				return parsed{}, domain.NewParseErrorf(param, "expected a language code")
			}
			p.NativeLanguage = strings.ToLower(lang)
		case "placeId", "place":
			id, ok := toString(v)
			if !ok {
				return parsed{}, domain.NewParseErrorf(param, "expected a place id")
			}
			p.PlaceID = id
		case "keyword":
			kw, ok := toString(v)
			if !ok {
				return parsed{}, domain.NewParseErrorf(param, "expected text")
			}
			pr.keyword = kw
		case "postalCode", "postal-code":
			code, ok := toString(v)
			if !ok {
				return parsed{}, domain.NewParseErrorf(param, "expected a postal code")
			}
			pr.postalCode = code
		case "exclude":
			ids, err := parseIDs(v)
			if err != nil {
				return parsed{}, domain.NewParseError(param, err)
			}
			p.Exclude = ids
		case "createdBefore", "createdAfter", "activeAfter":
			t, err := toTime(v)
			if err != nil {
				return parsed{}, domain.NewParseError(param, err)
			}
			switch k {
			case "createdBefore":
				p.CreatedBefore = t
			case "createdAfter":
				p.CreatedAfter = t
			default:
				p.ActiveAfter = t
			}
		default:
			flag, ok := user.ParseFlag(k)
			if !ok {
				continue
			}
			b, ok := truthy(v)
			if !ok {
				return parsed{}, domain.NewParseErrorf(param, "expected a boolean, got %v", v)
			}
			if p.Flags == nil {
				p.Flags = make(map[user.Flag]bool)
			}
			p.Flags[flag] = b
		}
	}

	// The convenience fields win over the range object.
	if minAge != nil {
		p.Age.Min = *minAge
	}
	if maxAge != nil {
		p.Age.Max = *maxAge
	}
	if p.Age.Min > 0 && p.Age.Max > 0 && p.Age.Min > p.Age.Max {
		return parsed{}, domain.NewParseErrorf("filter[age]", "min %d exceeds max %d", p.Age.Min, p.Age.Max)
	}
	if p.Center != nil && p.Bounds != nil {
		return parsed{}, domain.NewParseError("filter[bounds]", criteria.ErrConflictingGeo)
	}
	if pr.hasDistance && p.Bounds != nil {
		return parsed{}, domain.NewParseError("filter[distance]", criteria.ErrConflictingGeo)
	}
	return pr, nil
}

func (s *Service) parsePaging(raw request.RawInput, p *criteria.Params) error {
	p.Sort = criteria.SortCreated
	if len(raw.Sort) > 0 {
		v := raw.Sort[0]
		mode, ok := criteria.ParseSortMode(strings.TrimPrefix(strings.TrimSpace(v), "-"))
		if !ok {
			return domain.NewParseErrorf("sort", "unknown sort %q", v)
		}
		p.Sort = mode
	}

	p.Page = criteria.Page{Number: 1, Size: s.cfg.DefaultPageSize}
	if v, ok := raw.Page["number"]; ok {
		n, err := toInt(v)
		if err != nil || n < 1 {
			return domain.NewParseErrorf("page[number]", "expected a positive integer, got %v", v)
		}
		p.Page.Number = n
	}
	if v, ok := raw.Page["size"]; ok {
		n, err := toInt(v)
		if err != nil || n < 1 {
			return domain.NewParseErrorf("page[size]", "expected a positive integer, got %v", v)
		}
		p.Page.Size = min(n, s.cfg.MaxPageSize)
	}

	if raw.Group != nil {
		b, ok := truthy(raw.Group)
		if !ok {
			return domain.NewParseErrorf("group", "expected a boolean, got %v", raw.Group)
		}
		p.Group = b
	}
	if raw.Explain != nil {
		b, ok := truthy(raw.Explain)
		if !ok {
			return domain.NewParseErrorf("explain", "expected a boolean, got %v", raw.Explain)
		}
		p.Explain = b
	}
	p.CountOnly = raw.IsCountOnly()
	return nil
}

// parseGem reads the staff-only parameters.
func parseGem(raw request.RawInput, actor request.Actor, pr *parsed) error {
	if raw.Test != nil {
		b, ok := truthy(raw.Test)
		if !ok {
			return domain.NewParseErrorf("test", "expected a boolean, got %v", raw.Test)
		}
		if b && !actor.IsGem() {
			return domain.NewParseError("test", domain.ErrForbidden)
		}
		pr.isTest = b
	}
	if pr.params.Explain && !actor.IsGem() {
		return domain.NewParseError("explain", domain.ErrForbidden)
	}
	if len(raw.Weights) == 0 {
		return nil
	}
	if !actor.IsGem() {
		return domain.NewParseError("weights", domain.ErrForbidden)
	}
	pr.weights = make(map[scoring.FactorName]float64, len(raw.Weights))
	for k, v := range raw.Weights {
		param := "weights[" + k + "]"
		name := scoring.FactorName(k)
		if !name.IsValid() {
			return domain.NewParseError(param, scoring.ErrUnknownFactor)
		}
		w, err := toFloat(v)
		if err != nil {
			return domain.NewParseError(param, err)
		}
		if w < 0 {
			return domain.NewParseError(param, scoring.ErrInvalidWeight)
		}
		pr.weights[name] = w
	}
	return nil
}

// placeArea is what a keyword or postal code narrowed the search to.
type placeArea struct {
	placeID string
	center  *geo.Point
	bounds  *geo.Bounds
}

// resolveArea maps a keyword to a place by slug, falling back to reading it
// as a postal code when no explicit postal code was sent.
func (s *Service) resolveArea(ctx context.Context, tenant, keyword, postal string, localeID int) (placeArea, error) {
	var area placeArea
	if keyword != "" {
		p, err := s.places.ResolveByURLSlug(ctx, tenant, keyword, localeID, false)
		if err != nil {
			return placeArea{}, err
		}
		switch {
		case p != nil:
			area.placeID = p.ID
			if !p.IsCanonical() {
				area.placeID = p.CanonicalID
			}
			loc := p.Location
			area.center = &loc
		case postal == "":
			b, err := s.postalBounds(ctx, tenant, keyword, "filter[keyword]")
			if err != nil {
				return placeArea{}, err
			}
			if b == nil {
				return placeArea{}, domain.NewParseErrorf("filter[keyword]", "unknown place %q", keyword)
			}
			area.bounds = b
		}
	}
	if postal != "" {
		b, err := s.postalBounds(ctx, tenant, postal, "filter[postalCode]")
		if err != nil {
			return placeArea{}, err
		}
		if b == nil {
			return placeArea{}, domain.NewParseErrorf("filter[postalCode]", "unknown postal code %q", postal)
		}
		area.bounds = b
	}
	return area, nil
}

// postalBounds geocodes code to a box grown by the configured margin; nil
// when neither an exact code nor a range matches.
func (s *Service) postalBounds(ctx context.Context, tenant, code, param string) (*geo.Bounds, error) {
	var center geo.Point
	var box geo.Bounds
	pc, err := s.places.ResolveByPostalCode(ctx, tenant, code)
	if err != nil {
		return nil, err
	}
	if pc != nil {
		center, box = pc.Center, pc.Bounds
	} else {
		rng, err := s.places.ResolveByPostalRange(ctx, tenant, code)
		if err != nil {
			return nil, err
		}
		if rng == nil {
			return nil, nil
		}
		center, box = rng.Center, rng.Bounds
	}
	if box == (geo.Bounds{}) {
		box = geo.Bounds{North: center.Lat, South: center.Lat, East: center.Lon, West: center.Lon}
	}
	if s.cfg.PostalCodeMarginKm > 0 {
		box, err = geo.ExtendBounds(box, s.cfg.PostalCodeMarginKm)
		if err != nil {
			return nil, domain.NewParseError(param, err)
		}
	} else if err := box.Validate(); err != nil {
		return nil, domain.NewParseError(param, err)
	}
	return &box, nil
}

func applyArea(p *criteria.Params, area placeArea) error {
	if area.placeID != "" && p.PlaceID == "" {
		p.PlaceID = area.placeID
	}
	if area.bounds != nil {
		if p.Center != nil {
			return domain.NewParseError("filter[postalCode]", criteria.ErrConflictingGeo)
		}
		p.Bounds = area.bounds
	}
	if area.center != nil && p.Center == nil && p.Bounds == nil {
		p.Center = area.center
	}
	return nil
}

// applyRequester fills in everything that depends on who is searching.
func (s *Service) applyRequester(p *criteria.Params, pr parsed, u *user.User, actor request.Actor) error {
	now := s.now()

	if !pr.hasRoles {
		if u == nil {
			return domain.NewParseErrorf("filter[role]", "required for anonymous searches")
		}
		p.Roles = counterpartRoles(u.Role)
	}

	if u != nil {
		p.Exclude = mergeIDs(p.Exclude, u.Excluded, []int64{u.ID})
	}

	// A radius with nowhere to center on uses the requester's location.
	if pr.hasDistance && p.Center == nil {
		if u == nil || u.Location == nil {
			return domain.NewParseError("filter[distance]", criteria.ErrDistanceWithoutCenter)
		}
		loc := *u.Location
		p.Center = &loc
	}

	if p.Sort == criteria.SortRelevance && u == nil {
		if p.Center != nil || p.Bounds != nil {
			p.Sort = criteria.SortDistance
		} else {
			p.Sort = criteria.SortCreated
		}
	}

	if p.Sort == criteria.SortRelevance && actor.IsSelf() && !pr.hasDistance && p.Bounds == nil {
		center := p.Center
		if center == nil && u.Location != nil {
			loc := *u.Location
			center = &loc
		}
		if center != nil {
			km := s.cfg.DefaultDistanceKm
			if u.Preferences.MaxDistanceKm > 0 {
				km = float64(u.Preferences.MaxDistanceKm)
			}
			p.Center = center
			p.DistanceKm = km
		}
	}

	if p.Sort == criteria.SortDistance && p.Center == nil && p.Bounds == nil {
		if u == nil || u.Location == nil {
			return domain.NewParseErrorf("sort", "distance sort needs a location")
		}
		loc := *u.Location
		p.Center = &loc
	}

	if u != nil && u.SeeksCare() && u.PremiumFor(now) >= s.cfg.PremiumStaleness {
		base := p.CreatedBefore
		if base.IsZero() {
			base = now
		}
		p.CreatedBefore = base.Add(-s.cfg.PremiumStaleness)
	}

	if p.Sort == criteria.SortRelevance {
		p.AvailabilityUsage = criteria.UsageSoftFactor
	} else {
		p.AvailabilityUsage = criteria.UsageHardFilter
	}
	return nil
}

func counterpartRoles(r user.Role) []user.Role {
	if r.IsCaregiver() {
		return []user.Role{user.RoleParent}
	}
	return []user.Role{user.RoleBabysitter, user.RoleChildminder}
}

func parseRoles(v any) ([]user.Role, error) {
	list, err := toList(v)
	if err != nil {
		return nil, err
	}
	out := make([]user.Role, 0, len(list))
	for _, s := range list {
		r, ok := user.ParseRole(strings.ToLower(s))
		if !ok {
			return nil, fmt.Errorf("unknown role %q", s)
		}
		out = append(out, r)
	}
	return out, nil
}

func parseAge(v any) (criteria.AgeRange, error) {
	m, ok := toMap(v)
	if !ok {
		return criteria.AgeRange{}, errors.New("expected min and/or max")
	}
	var age criteria.AgeRange
	for k, dst := range map[string]*int{"min": &age.Min, "max": &age.Max} {
		raw, ok := m[k]
		if !ok {
			continue
		}
		n, err := toInt(raw)
		if err != nil || n < 0 {
			return criteria.AgeRange{}, fmt.Errorf("%s: expected a non-negative integer, got %v", k, raw)
		}
		*dst = n
	}
	return age, nil
}

func parseCenter(v any) (geo.Point, error) {
	m, ok := toMap(v)
	if !ok {
		return geo.Point{}, errors.New("expected lat and lng")
	}
	latRaw, ok := m["lat"]
	if !ok {
		return geo.Point{}, errors.New("lat is required")
	}
	lonRaw, ok := m["lng"]
	if !ok {
		lonRaw, ok = m["lon"]
	}
	if !ok {
		return geo.Point{}, errors.New("lng is required")
	}
	lat, err := toFloat(latRaw)
	if err != nil {
		return geo.Point{}, fmt.Errorf("lat: %w", err)
	}
	lon, err := toFloat(lonRaw)
	if err != nil {
		return geo.Point{}, fmt.Errorf("lng: %w", err)
	}
	p := geo.Point{Lat: lat, Lon: lon}
	if err := p.Validate(); err != nil {
		return geo.Point{}, err
	}
	return p, nil
}

func parseBounds(v any) (geo.Bounds, error) {
	m, ok := toMap(v)
	if !ok {
		return geo.Bounds{}, errors.New("expected north, south, east and west")
	}
	var b geo.Bounds
	for _, side := range []struct {
		name string
		dst  *float64
	}{
		{"north", &b.North}, {"south", &b.South}, {"east", &b.East}, {"west", &b.West},
	} {
		raw, ok := m[side.name]
		if !ok {
			return geo.Bounds{}, fmt.Errorf("%s is required", side.name)
		}
		f, err := toFloat(raw)
		if err != nil {
			return geo.Bounds{}, fmt.Errorf("%s: %w", side.name, err)
		}
		*side.dst = f
	}
	if err := b.Validate(); err != nil {
		return geo.Bounds{}, err
	}
	return b, nil
}

// parseAvailability reads filter[availability][<day>][<part>] cells. Every
// cell must coerce to a boolean; false cells are simply unset.
func parseAvailability(v any) (availability.Grid, error) {
	days, ok := toMap(v)
	if !ok {
		return availability.Grid{}, domain.NewParseErrorf("filter[availability]", "expected a weekday grid")
	}
	var grid availability.Grid
	for _, day := range sortedKeys(days) {
		parts, ok := toMap(days[day])
		if !ok {
			return availability.Grid{}, domain.NewParseErrorf(
				"filter[availability]["+day+"]", "expected day parts")
		}
		for _, part := range sortedKeys(parts) {
			rawCell := parts[part]
			param := "filter[availability][" + day + "][" + part + "]"
			cell, err := availability.ParseCell(day, part)
			if err != nil {
				return availability.Grid{}, domain.NewParseError(param, err)
			}
			set, ok := truthy(rawCell)
			if !ok {
				return availability.Grid{}, domain.NewParseErrorf(param, "expected a boolean, got %v", rawCell)
			}
			grid = grid.With(cell, set)
		}
	}
	return grid, nil
}

func parseGender(v any) (string, error) {
	s, ok := toString(v)
	if !ok {
		return "", errors.New("expected m or f")
	}
	switch strings.ToLower(s) {
	case "m", "male":
		return "m", nil
	case "f", "female":
		return "f", nil
	}
	return "", fmt.Errorf("unknown gender %q", s)
}

func parseIDs(v any) ([]int64, error) {
	list, err := toList(v)
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(list))
	for _, s := range list {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid user id %q", s)
		}
		out = append(out, id)
	}
	return out, nil
}

func mergeIDs(lists ...[]int64) []int64 {
	seen := make(map[int64]struct{})
	var out []int64
	for _, l := range lists {
		for _, id := range l {
			if _, ok := seen[id]; ok || id <= 0 {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// lower lowercases list, dropping values that collide after folding.
func lower(list []string) []string {
	out := make([]string, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, s := range list {
		s = strings.ToLower(s)
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
