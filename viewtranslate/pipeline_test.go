package viewtranslate

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/couchmongo/gateway/views"
)

func asFloat(t *testing.T, v interface{}) float64 {
	t.Helper()
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		t.Fatalf("expected a numeric value, got %#v", v)
		return 0
	}
}

func dateView() *views.ViewDef {
	return &views.ViewDef{
		MatchFields:       []string{"date"},
		Aggregation:       []string{`{"$sort": {"date": 1}}`},
		FilterInsertIndex: 0,
	}
}

func TestBuildDescendingNegatesSortAndAppendsIDTiebreak(t *testing.T) {
	def := dateView()
	o := Options{Descending: true}

	pipeline, err := Build(def, o)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sort, ok := pipeline[0]["$sort"].(bson.M)
	if !ok {
		t.Fatalf("expected first stage to be a $sort, got %#v", pipeline[0])
	}
	if asFloat(t, sort["date"]) != -1 {
		t.Fatalf("expected date direction to be negated to -1, got %v", sort["date"])
	}
	if sort["_id"] != -1 {
		t.Fatalf("expected _id:-1 tiebreaker, got %v", sort["_id"])
	}
}

func TestBuildSplicesIntoExistingMatch(t *testing.T) {
	def := &views.ViewDef{
		MatchFields: []string{"date"},
		Aggregation: []string{
			`{"$match": {"active": true}}`,
			`{"$sort": {"date": 1}}`,
		},
		FilterInsertIndex: 0,
	}
	o := Options{StartKey: []interface{}{"2024-01-01"}, EndKey: []interface{}{"2024-12-31"}}

	pipeline, err := Build(def, o)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pipeline) != 3 {
		t.Fatalf("expected match + sort + skip stages (no new $match) when splicing into an existing $match, got %d", len(pipeline))
	}

	match, ok := pipeline[0]["$match"].(bson.M)
	if !ok {
		t.Fatalf("expected first stage to remain a $match")
	}
	if match["active"] != true {
		t.Fatalf("expected pre-existing $match key to survive merge, got %#v", match)
	}
	if _, ok := match["date"]; !ok {
		t.Fatalf("expected synthesized filter key to merge into the existing $match, got %#v", match)
	}
}

func TestBuildInsertsNewMatchWhenNoneAtIndex(t *testing.T) {
	def := dateView()
	o := Options{StartKey: []interface{}{"2024-01-01"}, EndKey: []interface{}{"2024-12-31"}}

	pipeline, err := Build(def, o)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pipeline) != 3 {
		t.Fatalf("expected sort + match + skip stages, got %d: %#v", len(pipeline), pipeline)
	}
	if _, ok := pipeline[0]["$match"]; !ok {
		t.Fatalf("expected new $match stage inserted at index 0, got %#v", pipeline[0])
	}
}

func TestBuildAppendsSkipAndLimit(t *testing.T) {
	def := dateView()
	limit := 10
	o := Options{Skip: 5, Limit: &limit}

	pipeline, err := Build(def, o)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := pipeline[len(pipeline)-1]
	if last["$limit"] != 10 {
		t.Fatalf("expected final stage to be $limit:10, got %#v", last)
	}
	secondLast := pipeline[len(pipeline)-2]
	if secondLast["$skip"] != 5 {
		t.Fatalf("expected $skip:5 before $limit, got %#v", secondLast)
	}
}

func TestBuildReduceMissingKeyFails(t *testing.T) {
	def := dateView()
	o := Options{Reduce: true, GroupLevel: 1}

	if _, err := Build(def, o); err == nil {
		t.Fatalf("expected an error when no reduce definition exists for the requested group_level")
	}
}

func TestBuildReduceSentinelUsesKeyFieldArity(t *testing.T) {
	def := &views.ViewDef{
		MatchFields: []string{"date"},
		KeyFields:   []string{"date", "hour"},
		Reduce: map[string]views.ReduceDef{
			"2": {Aggregation: []string{`{"$group": {"_id": "$date"}}`}},
		},
	}
	o := Options{Reduce: true, GroupLevel: GroupLevelSentinel}

	pipeline, err := Build(def, o)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := pipeline[0]["$group"]; !ok {
		t.Fatalf("expected the group_level=2 reduce definition to be used, got %#v", pipeline[0])
	}
}
