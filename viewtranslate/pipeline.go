package viewtranslate

import (
	"encoding/json"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/couchmongo/gateway/gwerror"
	"github.com/couchmongo/gateway/views"
)

// parseStages decodes a ViewDef's ordered list of JSON-stage strings into
// BSON pipeline stages.
func parseStages(raw []string) ([]bson.M, error) {
	stages := make([]bson.M, 0, len(raw))
	for _, s := range raw {
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return nil, gwerror.Internal("invalid pipeline stage JSON", err)
		}
		stages = append(stages, bson.M(m))
	}
	return stages, nil
}

// baseStages resolves which pipeline a query runs: the view's declared
// aggregation, or - when reduce/group is requested - the reduce
// definition keyed by group_level (with the "999" sentinel standing for
// "full key arity").
func baseStages(def *views.ViewDef, o Options) ([]bson.M, error) {
	if !o.Reduce && !o.Group {
		return parseStages(def.Aggregation)
	}

	level := o.GroupLevel
	if level == GroupLevelSentinel {
		level = len(def.KeyFields)
	}
	key := strconv.Itoa(level)

	reduceDef, ok := def.Reduce[key]
	if !ok {
		return nil, gwerror.Internal("no reduce definition for group_level "+key, nil)
	}
	return parseStages(reduceDef.Aggregation)
}

// splice inserts (or merges) the synthesized $match filter into the
// pipeline at def.FilterInsertIndex.
func splice(pipeline []bson.M, idx int, filter bson.M) []bson.M {
	if len(filter) == 0 {
		return pipeline
	}
	if idx >= 0 && idx < len(pipeline) {
		switch existing := pipeline[idx]["$match"].(type) {
		case bson.M:
			mergeMatch(existing, filter)
			return pipeline
		case map[string]interface{}:
			merged := bson.M(existing)
			mergeMatch(merged, filter)
			pipeline[idx]["$match"] = merged
			return pipeline
		}
	}

	pos := idx
	if pos > len(pipeline) {
		pos = len(pipeline)
	}
	if pos < 0 {
		pos = 0
	}

	out := make([]bson.M, 0, len(pipeline)+1)
	out = append(out, pipeline[:pos]...)
	out = append(out, bson.M{"$match": filter})
	out = append(out, pipeline[pos:]...)
	return out
}

func mergeMatch(existing, filter bson.M) {
	for k, v := range filter {
		if k == "$and" {
			var list bson.A
			switch cur := existing["$and"].(type) {
			case bson.A:
				list = cur
			case []interface{}:
				list = bson.A(cur)
			}
			if arr, ok := v.(bson.A); ok {
				list = append(list, arr...)
			}
			existing["$and"] = list
			continue
		}
		existing[k] = v
	}
}

// applyDescending negates the direction of every field named in
// def.SortFields (or def.MatchFields when unset) across all $sort stages,
// and appends a final _id:-1 tiebreaker.
func applyDescending(pipeline []bson.M, def *views.ViewDef) {
	fields := def.SortFields
	if len(fields) == 0 {
		fields = def.MatchFields
	}
	names := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		names[f] = struct{}{}
	}

	for _, stage := range pipeline {
		sortVal, ok := stage["$sort"]
		if !ok {
			continue
		}
		sortDoc, ok := sortVal.(bson.M)
		if !ok {
			if m, ok := sortVal.(map[string]interface{}); ok {
				sortDoc = bson.M(m)
				stage["$sort"] = sortDoc
			} else {
				continue
			}
		}
		for field := range names {
			if dir, ok := sortDoc[field]; ok {
				sortDoc[field] = negate(dir)
			}
		}
		sortDoc["_id"] = -1
	}
}

func negate(dir interface{}) interface{} {
	switch v := dir.(type) {
	case int:
		return -v
	case int32:
		return -v
	case int64:
		return -v
	case float64:
		return -v
	default:
		return v
	}
}

// Build assembles the full aggregation pipeline for a declarative
// (non-break-glass) view query: base stages, filter synthesis and
// splicing, descending rewrite, then paging.
func Build(def *views.ViewDef, o Options) ([]bson.M, error) {
	pipeline, err := baseStages(def, o)
	if err != nil {
		return nil, err
	}

	filter := synthesizeFilter(def, o)
	pipeline = splice(pipeline, def.FilterInsertIndex, filter)

	if o.Descending {
		applyDescending(pipeline, def)
	}

	pipeline = append(pipeline, bson.M{"$skip": o.Skip})
	if o.Limit != nil {
		pipeline = append(pipeline, bson.M{"$limit": *o.Limit})
	}

	return pipeline, nil
}
