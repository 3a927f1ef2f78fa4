package viewtranslate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/stretchr/testify/mock"

	"github.com/couchmongo/gateway/dbiface"
	"github.com/couchmongo/gateway/jsruntime"
	"github.com/couchmongo/gateway/views"
)

func TestExecuteQueryShapesRowsAndTotals(t *testing.T) {
	def := dateView()
	def.KeyFields = []string{"date"}
	def.ValueFields = []string{"name"}

	mdb := new(dbiface.MockDatabase)
	mdb.On("Aggregate", mock.Anything, "events", mock.Anything).Return([]bson.M{
		{"_id": "1", "date": "2024-01-01", "name": "alice"},
	}, nil)
	mdb.On("EstimatedCount", mock.Anything, "events").Return(int64(42), nil)

	result, err := ExecuteQuery(context.Background(), mdb, "events", def, Options{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalRows != 42 {
		t.Fatalf("expected total_rows 42, got %d", result.TotalRows)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(result.Rows))
	}
	if result.Rows[0].Key != "2024-01-01" {
		t.Fatalf("unexpected row key: %#v", result.Rows[0].Key)
	}
	mdb.AssertExpectations(t)
}

func TestExecuteQueryIncludeDocsAttachesEmptyOnMiss(t *testing.T) {
	def := views.AllDocsView()

	mdb := new(dbiface.MockDatabase)
	mdb.On("Aggregate", mock.Anything, "events", mock.Anything).Return([]bson.M{
		{"_id": "missing-doc", "rev": "1-a"},
	}, nil)
	mdb.On("FindByID", mock.Anything, "events", "missing-doc").Return(nil, dbiface.ErrNotFound)
	mdb.On("EstimatedCount", mock.Anything, "events").Return(int64(1), nil)

	result, err := ExecuteQuery(context.Background(), mdb, "events", def, Options{IncludeDocs: true}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc, ok := result.Rows[0].Doc.(bson.M)
	if !ok || len(doc) != 0 {
		t.Fatalf("expected an empty doc on a missing lookup, got %#v", result.Rows[0].Doc)
	}
}

func TestExecuteQueryBreakGlassScriptBuildsPipeline(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "pipeline.js")
	script := `
		var stages = [{ "$sort": { "date": view_options.descending ? -1 : 1 } }];
		result = stages;
	`
	if err := os.WriteFile(scriptPath, []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}

	def := &views.ViewDef{
		KeyFields:          []string{"date"},
		ValueFields:        []string{"name"},
		BreakGlassJSScript: scriptPath,
	}

	var gotPipeline []bson.M
	mdb := new(dbiface.MockDatabase)
	mdb.On("Aggregate", mock.Anything, "events", mock.MatchedBy(func(p []bson.M) bool {
		gotPipeline = p
		return true
	})).Return([]bson.M{}, nil)
	mdb.On("EstimatedCount", mock.Anything, "events").Return(int64(0), nil)

	sb := jsruntime.New(0, nil)
	_, err := ExecuteQuery(context.Background(), mdb, "events", def, Options{Descending: true}, sb)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gotPipeline) != 1 {
		t.Fatalf("expected the script's single stage, got %#v", gotPipeline)
	}
	sort, ok := gotPipeline[0]["$sort"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected a $sort stage, got %#v", gotPipeline[0])
	}
	if asFloat(t, sort["date"]) != -1 {
		t.Fatalf("expected the script to see descending=true, got %#v", sort)
	}
}
