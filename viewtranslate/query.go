package viewtranslate

import (
	"context"
	"os"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/couchmongo/gateway/dbiface"
	"github.com/couchmongo/gateway/gwerror"
	"github.com/couchmongo/gateway/jsruntime"
	"github.com/couchmongo/gateway/views"
)

// Result is the final {total_rows, offset, rows} view response body.
type Result struct {
	TotalRows int64 `json:"total_rows"`
	Offset    int   `json:"offset"`
	Rows      []Row `json:"rows"`
}

// ExecuteQuery builds (or, for a break-glass view, loads) the aggregation
// pipeline for def/o, runs it against collection, reshapes the rows, and
// attaches documents when include_docs is set.
func ExecuteQuery(ctx context.Context, db dbiface.Database, collection string, def *views.ViewDef, o Options, sandbox *jsruntime.Sandbox) (*Result, error) {
	var pipeline []bson.M
	var err error

	if def.BreakGlassJSScript != "" {
		pipeline, err = breakGlassPipeline(def.BreakGlassJSScript, o, sandbox)
	} else {
		pipeline, err = Build(def, o)
	}
	if err != nil {
		return nil, err
	}

	docs, err := db.Aggregate(ctx, collection, pipeline)
	if err != nil {
		return nil, gwerror.Internal("aggregation failed", err)
	}

	rows := make([]Row, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, ShapeRow(def, d))
	}

	if o.IncludeDocs {
		attachDocs(ctx, db, collection, rows)
	}

	total, err := db.EstimatedCount(ctx, collection)
	if err != nil {
		return nil, gwerror.Internal("counting collection", err)
	}

	return &Result{TotalRows: total, Offset: o.Skip, Rows: rows}, nil
}

func attachDocs(ctx context.Context, db dbiface.Database, collection string, rows []Row) {
	for i := range rows {
		id, ok := rows[i].ID.(string)
		if !ok || id == "" {
			rows[i].Doc = bson.M{}
			continue
		}
		doc, err := db.FindByID(ctx, collection, id)
		if err != nil || doc == nil {
			rows[i].Doc = bson.M{}
			continue
		}
		rows[i].Doc = doc
	}
}

// breakGlassPipeline runs an operator-supplied JS script that builds the
// aggregation pipeline directly, bypassing declarative translation.
func breakGlassPipeline(scriptPath string, o Options, sandbox *jsruntime.Sandbox) ([]bson.M, error) {
	if sandbox == nil {
		return nil, gwerror.Internal("break-glass script configured but no JS sandbox is available", nil)
	}

	source, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, gwerror.Internal("reading break-glass script", err)
	}

	stages, err := sandbox.RunViewScript(string(source), optionsToMap(o))
	if err != nil {
		return nil, gwerror.Internal("executing break-glass script", err)
	}

	pipeline := make([]bson.M, 0, len(stages))
	for _, s := range stages {
		pipeline = append(pipeline, bson.M(s))
	}
	return pipeline, nil
}

func optionsToMap(o Options) map[string]interface{} {
	limit := interface{}(nil)
	if o.Limit != nil {
		limit = *o.Limit
	}
	return map[string]interface{}{
		"reduce":         o.Reduce,
		"group":          o.Group,
		"group_level":    o.GroupLevel,
		"include_docs":   o.IncludeDocs,
		"descending":     o.Descending,
		"limit":          limit,
		"skip":           o.Skip,
		"start_key":      o.StartKey,
		"end_key":        o.EndKey,
		"keys":           o.Keys,
		"startkey_docid": o.StartKeyDocID,
		"endkey_docid":   o.EndKeyDocID,
	}
}
