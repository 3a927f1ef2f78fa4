// Package docops implements the gateway's document-level CRUD
// operations: get, put, delete and bulk_docs, including revision
// arithmetic, conditional-request handling, and the conflict-vs-not-found
// disambiguation every write path shares.
package docops

import (
	"context"
	"encoding/json"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/couchmongo/gateway/dbiface"
	"github.com/couchmongo/gateway/gwerror"
	"github.com/couchmongo/gateway/revision"
)

// Response is a fully-formed document operation result: the status code
// to emit, the JSON body, and any extra headers (Etag, Location,
// x-couch-update-newrev) the caller should set.
type Response struct {
	Status  int
	Body    interface{}
	Headers map[string]string
}

// Get fetches a document by id, resolving CouchDB's conditional-request
// and revision-pinning rules.
//
// If ifNoneMatch is set, a matching _rev always yields 304, and a
// non-matching one yields 412. Not standard RFC 7232 semantics, but
// what CouchDB clients have come to expect from this endpoint.
func Get(ctx context.Context, db dbiface.Database, collection, id string, ifNoneMatch, rev string, latest bool) (*Response, error) {
	doc, err := db.FindByID(ctx, collection, id)
	if err != nil {
		if err == dbiface.ErrNotFound {
			return nil, gwerror.NotFound("not found")
		}
		return nil, gwerror.Internal("fetching document", err)
	}
	if doc == nil {
		return nil, gwerror.NotFound("not found")
	}

	storedRev, _ := doc["_rev"].(string)

	if ifNoneMatch != "" {
		if ifNoneMatch == storedRev {
			return nil, gwerror.New(gwerror.KindNotModified, "")
		}
		return nil, gwerror.PreconditionFailed("")
	}

	pinnedRev := false
	if rev != "" && !latest {
		if rev != storedRev {
			return nil, gwerror.NotFound("not found")
		}
		pinnedRev = true
	}

	headers := map[string]string{}
	if storedRev != "" {
		headers["Etag"] = `"` + storedRev + `"`
	}

	status := 200
	body := interface{}(doc)
	if pinnedRev {
		// Requesting a specific (matching) rev returns 304 with no
		// body, instead of 200 with the document.
		status = 304
		body = nil
	}

	return &Response{Status: status, Body: body, Headers: headers}, nil
}

// Put creates or updates a document. When item is empty, an id is taken
// from the payload's _id field or generated. The new revision is
// computed from the exact JSON body bytes the gateway received, and the
// write is an upsert conditioned on the existing _rev (if any) matching.
func Put(ctx context.Context, db dbiface.Database, collection, item string, rawBody []byte, ifMatch string) (*Response, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, gwerror.BadRequest("invalid JSON body")
	}

	id := item
	if id == "" {
		if v, ok := payload["_id"].(string); ok && v != "" {
			id = v
		} else {
			id = revision.NewDocumentID()
		}
	}

	existingRev := ifMatch
	if v, ok := payload["_rev"].(string); ok && v != "" {
		existingRev = v
	}

	digest := revision.Digest(rawBody)
	newRev := revision.Next(existingRev, digest)

	doc := bson.M{}
	for k, v := range payload {
		doc[k] = v
	}
	doc["_id"] = id
	doc["_rev"] = newRev

	filter := bson.M{"_id": id}
	if existingRev != "" {
		filter["_rev"] = existingRev
	}

	if err := db.ReplaceUpsert(ctx, collection, filter, doc); err != nil {
		return nil, checkConflict(ctx, db, collection, id)
	}

	return &Response{
		Status: 201,
		Body:   bson.M{"ok": true, "id": id, "rev": newRev},
		Headers: map[string]string{
			"Location": "/" + id,
		},
	}, nil
}

// Delete removes a document, requiring a revision via query parameter or
// If-Match; missing that, it fails fast with 412 before touching the
// database.
func Delete(ctx context.Context, db dbiface.Database, collection, id, rev, ifMatch string) (*Response, error) {
	existingRev := rev
	if existingRev == "" {
		existingRev = ifMatch
	}
	if existingRev == "" {
		return nil, gwerror.PreconditionFailed("missing rev")
	}

	filter := bson.M{"_id": id, "_rev": existingRev}
	count, err := db.DeleteOne(ctx, collection, filter)
	if err != nil || count == 0 {
		return nil, checkConflict(ctx, db, collection, id)
	}

	return &Response{
		Status: 200,
		Body:   bson.M{"ok": true, "id": id, "rev": existingRev},
	}, nil
}

// checkConflict re-reads a document after a failed write to disambiguate
// between "document doesn't exist" (404) and "a conflicting revision
// already exists" (409); any driver error on a conditional write routes
// through this check, regardless of what actually went wrong.
func checkConflict(ctx context.Context, db dbiface.Database, collection, id string) error {
	_, err := db.FindByID(ctx, collection, id)
	if err != nil {
		if err == dbiface.ErrNotFound {
			return gwerror.NotFound("not found")
		}
		return gwerror.Internal("checking for conflict", err)
	}
	return gwerror.Conflict("conflict")
}
