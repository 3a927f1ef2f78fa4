package updatefn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/couchmongo/gateway/dbiface"
	"github.com/couchmongo/gateway/gwerror"
	"github.com/couchmongo/gateway/jsruntime"
)

func TestRunWritesDocumentAndSetsNewRevHeader(t *testing.T) {
	db := new(dbiface.MockDatabase)
	db.On("FindByID", mock.Anything, "fake_couch", "").Return(nil, dbiface.ErrNotFound).Maybe()
	db.On("ReplaceUpsert", mock.Anything, "fake_couch", bson.M{"_id": "u1"}, mock.Anything).Return(nil).Maybe()

	sandbox := jsruntime.New(0, nil)

	script := `function(doc, req) { return [{_id: "u1", n: 1}, {code: 201, json: {ok: true}}]; }`

	resp, err := Run(context.Background(), db, sandbox, "fake_couch", script, "", `{}`, "uuid-1")
	require.NoError(t, err)
	assert.Equal(t, 201, resp.Status)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
	assert.NotEmpty(t, resp.Headers["x-couch-update-newrev"])
}

func TestRunEmptyResponseWhenNoJSONOrBody(t *testing.T) {
	db := new(dbiface.MockDatabase)
	db.On("ReplaceUpsert", mock.Anything, "fake_couch", bson.M{"_id": "u2"}, mock.Anything).Return(nil)

	sandbox := jsruntime.New(0, nil)

	script := `function(doc, req) { return [{_id: "u2", n: 1}, {code: 202}]; }`

	resp, err := Run(context.Background(), db, sandbox, "fake_couch", script, "", `{}`, "uuid-2")
	require.NoError(t, err)
	assert.Equal(t, 202, resp.Status)
	assert.Empty(t, resp.Body)
	assert.Empty(t, resp.Headers["Content-Type"])
	assert.NotEmpty(t, resp.Headers["x-couch-update-newrev"])
}

func TestRunBase64ResponseIsAServerError(t *testing.T) {
	db := new(dbiface.MockDatabase)

	sandbox := jsruntime.New(0, nil)

	script := `function(doc, req) { return [null, {code: 200, base64: "aGVsbG8="}]; }`

	_, err := Run(context.Background(), db, sandbox, "fake_couch", script, "", `{}`, "uuid-3")
	require.Error(t, err)
	gwErr, ok := err.(*gwerror.Error)
	require.True(t, ok)
	assert.Equal(t, 500, gwErr.Status())
}
