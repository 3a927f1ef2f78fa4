package viewtranslate

import (
	"reflect"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/couchmongo/gateway/views"
)

// isAbsent treats nil and an empty map as "no bound given", matching the
// spec's "Treat null and {} as absent" rule for startkey/endkey elements.
func isAbsent(v interface{}) bool {
	if v == nil {
		return true
	}
	if m, ok := v.(map[string]interface{}); ok {
		return len(m) == 0
	}
	if m, ok := v.(bson.M); ok {
		return len(m) == 0
	}
	return false
}

func at(values []interface{}, i int) interface{} {
	if i < 0 || i >= len(values) {
		return nil
	}
	return values[i]
}

// synthesizeFilter builds the $match document for a view query, either
// from a ranged startkey/endkey or from an explicit `keys` list.
func synthesizeFilter(def *views.ViewDef, o Options) bson.M {
	if len(o.Keys) > 0 {
		return keyedFilter(def.MatchFields, o.Keys)
	}
	return rangeFilter(def, o)
}

func rangeFilter(def *views.ViewDef, o Options) bson.M {
	filter := bson.M{}
	for i, field := range def.MatchFields {
		s := at(o.StartKey, i)
		e := at(o.EndKey, i)
		if o.Descending {
			s, e = e, s
		}
		if isAbsent(s) {
			s = nil
		}
		if isAbsent(e) {
			e = nil
		}

		if s != nil && e != nil && reflect.DeepEqual(s, e) {
			filter[field] = bson.M{"$eq": s}
			continue
		}

		cond := bson.M{}
		if s != nil {
			cond["$gte"] = s
		}
		if e != nil {
			cond["$lte"] = e
		}
		if len(cond) > 0 {
			filter[field] = cond
		}
	}

	if o.StartKeyDocID != "" {
		idCond, _ := filter["_id"].(bson.M)
		if idCond == nil {
			idCond = bson.M{}
		}
		idCond["$gte"] = o.StartKeyDocID
		filter["_id"] = idCond
	}
	if o.EndKeyDocID != "" {
		idCond, _ := filter["_id"].(bson.M)
		if idCond == nil {
			idCond = bson.M{}
		}
		idCond["$lte"] = o.EndKeyDocID
		filter["_id"] = idCond
	}

	return filter
}

// keyedFilter builds {$and:[{$or:[ {$and:[{f0:v0, f1:v1, ...}]}, ... ]}]}
// for an explicit `keys` list, each element either a scalar (matched
// against the first match field) or a positional array.
func keyedFilter(fields []string, keys []interface{}) bson.M {
	ors := make(bson.A, 0, len(keys))
	for _, k := range keys {
		var parts []interface{}
		if arr, ok := k.([]interface{}); ok {
			parts = arr
		} else {
			parts = []interface{}{k}
		}

		eq := bson.M{}
		for i, field := range fields {
			if i < len(parts) {
				eq[field] = parts[i]
			}
		}
		ors = append(ors, bson.M{"$and": bson.A{eq}})
	}
	return bson.M{"$and": bson.A{bson.M{"$or": ors}}}
}
