// Package updatefn orchestrates one CouchDB update-function invocation:
// load the target document (tolerating "not found" as an upsert-style
// nil doc), run it through the JS sandbox, write back whatever document
// the script returns, and translate its response descriptor into an HTTP
// response.
package updatefn

import (
	"context"
	"encoding/json"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/couchmongo/gateway/dbiface"
	"github.com/couchmongo/gateway/docops"
	"github.com/couchmongo/gateway/gwerror"
	"github.com/couchmongo/gateway/jsruntime"
)

// Response is the HTTP response an update function produced, including
// the x-couch-update-newrev header set when the script wrote a document.
type Response struct {
	Status  int
	Body    []byte
	Headers map[string]string
}

// Run loads docID from collection (nil if absent), evaluates scriptSource
// against it with reqBody/reqUUID bound into req, writes back any
// returned document, and builds the HTTP response the script asked for.
func Run(ctx context.Context, db dbiface.Database, sandbox *jsruntime.Sandbox, collection, scriptSource, docID, reqBody, reqUUID string) (*Response, error) {
	var doc map[string]interface{}
	if docID != "" {
		stored, err := db.FindByID(ctx, collection, docID)
		if err != nil && err != dbiface.ErrNotFound {
			return nil, gwerror.Internal("fetching document for update function", err)
		}
		if stored != nil {
			doc = map[string]interface{}(stored)
		}
	}

	result, err := sandbox.RunUpdateFunction(scriptSource, doc, docID, reqBody, reqUUID)
	if err != nil {
		return nil, gwerror.Internal("executing update function", err)
	}

	headers := map[string]string{}

	if result.HasDoc {
		id, ok := result.Doc["_id"].(string)
		if !ok || id == "" {
			return nil, gwerror.Internal("update function returned a document without _id", nil)
		}
		raw, err := json.Marshal(result.Doc)
		if err != nil {
			return nil, gwerror.Internal("marshaling update function document", err)
		}
		putResp, err := docops.Put(ctx, db, collection, id, raw, "")
		if err != nil {
			return nil, err
		}
		if body, ok := putResp.Body.(bson.M); ok {
			if rev, ok := body["rev"].(string); ok {
				headers["x-couch-update-newrev"] = rev
			}
		}
	}

	resp := result.Response
	status := resp.Code
	if status == 0 {
		status = 200
	}

	var body []byte
	switch {
	case resp.Base64:
		return nil, gwerror.Internal("base64 update function response bodies are not supported", nil)
	case resp.HasJSON:
		body = resp.JSON
		headers["Content-Type"] = "application/json"
	case resp.HasBody:
		body = []byte(resp.Body)
		headers["Content-Type"] = "text/html"
	default:
		// Neither json nor body given: the response stays empty.
		body = []byte{}
	}

	return &Response{Status: status, Body: body, Headers: headers}, nil
}
