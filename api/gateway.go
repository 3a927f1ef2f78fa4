// Package api wires every HTTP endpoint in the gateway's surface
// (document CRUD, bulk operations, views, update functions, and the
// server banner) to the translation engine in docops/viewtranslate/
// updatefn, on top of an Echo server with request logging, panic
// recovery, and CouchDB-compatible response headers.
package api

import (
	"github.com/sirupsen/logrus"

	"github.com/couchmongo/gateway/dbiface"
	"github.com/couchmongo/gateway/jsruntime"
	"github.com/couchmongo/gateway/metrics"
	"github.com/couchmongo/gateway/upstream"
	"github.com/couchmongo/gateway/views"
)

// Gateway holds every dependency the route handlers need: the storage
// interface, the immutable view library and upstream policy, the JS
// sandbox for update functions and break-glass scripts, and the
// observability collaborators.
type Gateway struct {
	DB            dbiface.Database
	Views         *views.Library
	Policy        *upstream.Policy
	Upstream      *upstream.Client
	Sandbox       *jsruntime.Sandbox
	UpdatesFolder string
	Metrics       *metrics.Metrics
	Log           *logrus.Logger
}
