// Package viewtranslate builds MongoDB aggregation pipelines from a
// views.ViewDef plus a bag of CouchDB view query parameters, and reshapes
// the resulting documents into CouchDB's {id, key, value} row format.
package viewtranslate

import (
	"encoding/json"
	"net/url"
	"strconv"
)

// Options is the per-request view query, derived from CouchDB's view
// query parameters (key/keys/startkey/endkey, grouping, descending,
// skip/limit, include_docs).
type Options struct {
	Reduce      bool
	Group       bool
	GroupLevel  int
	IncludeDocs bool
	Descending  bool
	Limit       *int
	Skip        int

	StartKey []interface{}
	EndKey   []interface{}
	Keys     []interface{}

	StartKeyDocID string
	EndKeyDocID   string
}

// GroupLevelSentinel is the magic group_level value meaning "full key
// arity" when resolving a reduce definition. Clients send it literally,
// so it is matched verbatim rather than normalized away.
const GroupLevelSentinel = 999

// ParseOptions extracts view query Options from CouchDB's query-string
// parameters and, for POST queries, the decoded JSON body (which may
// supply "keys" and override any of the query-string fields). Setting
// group_level always forces group=true; clients rely on that coupling
// even though the two are logically independent knobs.
func ParseOptions(query url.Values, body map[string]interface{}) (Options, error) {
	o := Options{}

	// POST bodies carry native JSON types (true, 10); the query string
	// carries their textual forms ("true", "10"). Both are accepted, with
	// the body winning.
	getBool := func(key string) (bool, bool) {
		if body != nil {
			if v, ok := body[key]; ok {
				if b, ok := v.(bool); ok {
					return b, true
				}
			}
		}
		if v := query.Get(key); v != "" {
			b, _ := strconv.ParseBool(v)
			return b, true
		}
		return false, false
	}

	getInt := func(key string) (int, bool, error) {
		if body != nil {
			if v, ok := body[key]; ok {
				if f, ok := v.(float64); ok {
					return int(f), true, nil
				}
			}
		}
		if v := query.Get(key); v != "" {
			n, err := strconv.Atoi(v)
			return n, true, err
		}
		return 0, false, nil
	}

	getString := func(key string) (string, bool) {
		if body != nil {
			if v, ok := body[key]; ok {
				if s, ok := v.(string); ok {
					return s, true
				}
			}
		}
		if v := query.Get(key); v != "" {
			return v, true
		}
		return "", false
	}

	getJSON := func(key string) (interface{}, bool) {
		if body != nil {
			if v, ok := body[key]; ok {
				return v, true
			}
		}
		if v := query.Get(key); v != "" {
			var parsed interface{}
			if err := json.Unmarshal([]byte(v), &parsed); err == nil {
				return parsed, true
			}
			return v, true
		}
		return nil, false
	}

	if v, ok := getBool("reduce"); ok {
		o.Reduce = v
	}
	if v, ok := getBool("group"); ok {
		o.Group = v
	}
	if n, ok, err := getInt("group_level"); ok {
		if err != nil {
			return o, err
		}
		o.GroupLevel = n
		o.Group = true
	}
	if v, ok := getBool("include_docs"); ok {
		o.IncludeDocs = v
	}
	if v, ok := getBool("descending"); ok {
		o.Descending = v
	}
	if n, ok, err := getInt("limit"); ok {
		if err != nil {
			return o, err
		}
		o.Limit = &n
	}
	if n, ok, err := getInt("skip"); ok {
		if err != nil {
			return o, err
		}
		o.Skip = n
	}
	if v, ok := getString("startkey_docid"); ok {
		o.StartKeyDocID = v
	}
	if v, ok := getString("endkey_docid"); ok {
		o.EndKeyDocID = v
	}

	if v, ok := getJSON("startkey"); ok {
		o.StartKey = asSlice(v)
	}
	if v, ok := getJSON("endkey"); ok {
		o.EndKey = asSlice(v)
	}
	if v, ok := getJSON("key"); ok {
		o.Keys = []interface{}{v}
	}
	if v, ok := getJSON("keys"); ok {
		if arr, ok := v.([]interface{}); ok {
			o.Keys = arr
		}
	}

	return o, nil
}

// asSlice wraps a scalar startkey/endkey value into a one-element slice
// so it lines up positionally with match_fields[0]; an already-array
// value (multi-field view) passes through unchanged.
func asSlice(v interface{}) []interface{} {
	if arr, ok := v.([]interface{}); ok {
		return arr
	}
	return []interface{}{v}
}
