// Package views loads the declarative view definitions that the view
// translator compiles into MongoDB aggregation pipelines, and holds them
// in the in-memory db -> design -> view map the gateway queries at
// request time.
package views

// ReduceDef is one entry of a ViewDef's Reduce table, keyed by the
// decimal group_level (or the "999" sentinel meaning "full key arity").
type ReduceDef struct {
	Aggregation []string `toml:"aggregation"`
}

// ViewDef is the declarative, on-disk shape of a single CouchDB view,
// loaded once at startup and never mutated afterward.
type ViewDef struct {
	MatchFields       []string             `toml:"match_fields"`
	SortFields        []string             `toml:"sort_fields"`
	KeyFields         []string             `toml:"key_fields"`
	ValueFields       []string             `toml:"value_fields"`
	Aggregation       []string             `toml:"aggregation"`
	FilterInsertIndex int                  `toml:"filter_insert_index"`
	Reduce            map[string]ReduceDef `toml:"reduce"`

	SingleItemKeyIsList   bool `toml:"single_item_key_is_list"`
	SingleItemValueIsDict bool `toml:"single_item_value_is_dict"`
	OmitNullKeysInValue   bool `toml:"omit_null_keys_in_value"`

	BreakGlassJSScript string `toml:"break_glass_js_script"`
}

// AllDocsView synthesizes the ViewDef backing GET/POST /{db}/_all_docs:
// a plain id-ordered scan with CouchDB's {id, key: _id, value: {rev}} row
// shape. It is not loaded from disk.
func AllDocsView() *ViewDef {
	return &ViewDef{
		MatchFields: []string{"_id"},
		KeyFields:   []string{"_id"},
		ValueFields: []string{"rev"},
		Aggregation: []string{
			`{"$addFields": {"rev": "$_rev"}}`,
			`{"$sort": {"_id": 1}}`,
		},
		FilterInsertIndex:     1,
		SingleItemKeyIsList:   false,
		SingleItemValueIsDict: true,
	}
}
