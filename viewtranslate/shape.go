package viewtranslate

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/couchmongo/gateway/views"
)

// Row is one entry of a view result, reshaped into CouchDB's {id, key,
// value} triple.
type Row struct {
	ID    interface{} `json:"id"`
	Key   interface{} `json:"key"`
	Value interface{} `json:"value"`
	Doc   interface{} `json:"doc,omitempty"`
}

// ShapeRow builds one Row from an aggregation output document: key is the
// ordered list of key_fields (collapsed to a scalar when it has one
// element and single_item_key_is_list is false), value is the
// {field: value} dict built from value_fields (nulls optionally dropped,
// collapsed to a scalar under the same one-element rule).
func ShapeRow(def *views.ViewDef, doc bson.M) Row {
	row := Row{ID: doc["_id"]}

	key := make(bson.A, 0, len(def.KeyFields))
	for _, f := range def.KeyFields {
		key = append(key, doc[f])
	}
	if len(key) == 1 && !def.SingleItemKeyIsList {
		row.Key = key[0]
	} else {
		row.Key = key
	}

	value := bson.M{}
	for _, f := range def.ValueFields {
		v := doc[f]
		if v == nil && def.OmitNullKeysInValue {
			continue
		}
		value[f] = v
	}
	if len(value) == 1 && !def.SingleItemValueIsDict {
		for _, v := range value {
			row.Value = v
		}
	} else {
		row.Value = value
	}

	return row
}
