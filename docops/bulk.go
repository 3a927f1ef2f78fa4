package docops

import (
	"context"
	"encoding/json"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/couchmongo/gateway/dbiface"
)

// BulkRequest is the decoded body of a _bulk_docs request.
type BulkRequest struct {
	Docs []map[string]interface{} `json:"docs"`
}

// Bulk dispatches each element of a _bulk_docs request independently to
// Put or Delete, collecting one response per item. Failures never halt
// the batch: a failing item is replaced with a conflict placeholder
// rather than aborting the remaining items.
func Bulk(ctx context.Context, db dbiface.Database, collection string, req BulkRequest) *Response {
	results := make([]interface{}, 0, len(req.Docs))

	for _, doc := range req.Docs {
		id, _ := doc["_id"].(string)
		deleted, _ := doc["_deleted"].(bool)

		var item interface{}
		var err error

		if deleted {
			rev, _ := doc["_rev"].(string)
			if rev == "" {
				item = conflictPlaceholder(id)
			} else {
				var resp *Response
				resp, err = Delete(ctx, db, collection, id, rev, "")
				if err == nil {
					item = resp.Body
				}
			}
		} else {
			raw, marshalErr := json.Marshal(doc)
			if marshalErr != nil {
				err = marshalErr
			} else {
				var resp *Response
				resp, err = Put(ctx, db, collection, id, raw, "")
				if err == nil {
					item = resp.Body
				}
			}
		}

		if err != nil {
			item = conflictPlaceholder(id)
		}
		results = append(results, item)
	}

	return &Response{Status: 201, Body: results}
}

func conflictPlaceholder(id string) bson.M {
	return bson.M{
		"id":     id,
		"error":  "conflict",
		"reason": "Document update conflict.",
	}
}
