package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/couchmongo/gateway/common"
	"github.com/couchmongo/gateway/docops"
	"github.com/couchmongo/gateway/gwerror"
	"github.com/couchmongo/gateway/revision"
	"github.com/couchmongo/gateway/updatefn"
	"github.com/couchmongo/gateway/upstream"
	"github.com/couchmongo/gateway/version"
	"github.com/couchmongo/gateway/views"
	"github.com/couchmongo/gateway/viewtranslate"
)

func (g *Gateway) handleRoot(c echo.Context) error {
	mongoDetails, err := g.DB.ServerVersion(c.Request().Context())
	if err != nil {
		mongoDetails = bson.M{"error": err.Error()}
	}
	return c.JSON(http.StatusOK, bson.M{
		"couchdb":       "Welcome",
		"version":       "2.3.1",
		"vendor":        bson.M{"name": "CouchDB to MongoDB Emulator Proxy"},
		"mongo_details": mongoDetails,
		"build_info":    version.GetBuildInfo(),
	})
}

func (g *Gateway) handleDBStub(c echo.Context) error {
	db := c.Param("db")
	return c.JSON(http.StatusOK, bson.M{
		"db_name":             db,
		"doc_count":           0,
		"doc_del_count":       0,
		"update_seq":          0,
		"purge_seq":           0,
		"compact_running":     false,
		"disk_size":           0,
		"data_size":           0,
		"instance_start_time": "0",
	})
}

func (g *Gateway) handleGetDocument(c echo.Context) error {
	db := c.Param("db")
	id := c.Param("id")

	ifNoneMatch := common.IfNoneMatch(c)
	rev := c.QueryParam("rev")
	latest := c.QueryParam("latest") == "true"

	resp, err := docops.Get(c.Request().Context(), g.DB, db, id, ifNoneMatch, rev, latest)
	if err != nil {
		return err
	}
	return writeDocopsResponse(c, resp)
}

func (g *Gateway) handlePutDocument(c echo.Context) error {
	return g.handleWrite(c, c.Param("db"), c.Param("id"))
}

func (g *Gateway) handlePostDocument(c echo.Context) error {
	return g.handleWrite(c, c.Param("db"), "")
}

func (g *Gateway) handleWrite(c echo.Context, db, id string) error {
	if g.Policy.IsReadOnly(db) {
		return g.forwardUpstream(c, db)
	}

	rawBody, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return gwerror.BadRequest("reading request body")
	}

	// Asserted-revision precedence below the body's own _rev: If-Match,
	// then the rev query parameter.
	asserted := common.IfMatch(c)
	if asserted == "" {
		asserted = c.QueryParam("rev")
	}

	resp, err := docops.Put(c.Request().Context(), g.DB, db, id, rawBody, asserted)
	if err != nil {
		return err
	}
	return writeDocopsResponse(c, resp)
}

func (g *Gateway) handleDeleteDocument(c echo.Context) error {
	db := c.Param("db")
	id := c.Param("id")

	if g.Policy.IsReadOnly(db) {
		return g.forwardUpstream(c, db)
	}

	resp, err := docops.Delete(c.Request().Context(), g.DB, db, id, c.QueryParam("rev"), common.IfMatch(c))
	if err != nil {
		return err
	}
	return writeDocopsResponse(c, resp)
}

func (g *Gateway) handleBulkDocs(c echo.Context) error {
	db := c.Param("db")
	if g.Policy.IsReadOnly(db) {
		return g.forwardUpstream(c, db)
	}

	var req docops.BulkRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return gwerror.BadRequest("invalid bulk_docs body")
	}

	resp := docops.Bulk(c.Request().Context(), g.DB, db, req)
	return writeDocopsResponse(c, resp)
}

func (g *Gateway) handleAllDocs(c echo.Context) error {
	db := c.Param("db")
	body := decodeOptionalJSONBody(c)

	o, err := viewtranslate.ParseOptions(c.QueryParams(), body)
	if err != nil {
		return gwerror.BadRequest("invalid view query parameters")
	}

	result, err := viewtranslate.ExecuteQuery(c.Request().Context(), g.DB, db, views.AllDocsView(), o, g.Sandbox)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (g *Gateway) handleView(c echo.Context) error {
	db := c.Param("db")
	design := c.Param("design")
	view := c.Param("view")

	def, ok := g.Views.Lookup(db, design, view)
	if !ok {
		if g.Policy.ShouldReadThrough(db) {
			return g.forwardReadThroughView(c, db, design, view, "")
		}
		return gwerror.NotFound("missing_named_view")
	}

	body := decodeOptionalJSONBody(c)
	o, err := viewtranslate.ParseOptions(c.QueryParams(), body)
	if err != nil {
		return gwerror.BadRequest("invalid view query parameters")
	}

	if g.Metrics != nil {
		g.Metrics.ViewTranslations.WithLabelValues(db, design, view).Inc()
		if def.BreakGlassJSScript != "" {
			g.Metrics.JSExecutions.WithLabelValues("break_glass").Inc()
		}
	}

	result, err := viewtranslate.ExecuteQuery(c.Request().Context(), g.DB, db, def, o, g.Sandbox)
	if err != nil {
		if g.Metrics != nil {
			g.Metrics.ViewPipelineErrors.WithLabelValues(db, design, view).Inc()
		}
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (g *Gateway) handleViewQueries(c echo.Context) error {
	db := c.Param("db")
	design := c.Param("design")
	view := c.Param("view")

	def, ok := g.Views.Lookup(db, design, view)
	if !ok {
		if g.Policy.ShouldReadThrough(db) {
			return g.forwardReadThroughView(c, db, design, view, "/queries")
		}
		return gwerror.NotFound("missing_named_view")
	}

	var payload struct {
		Queries []map[string]interface{} `json:"queries"`
	}
	if err := json.NewDecoder(c.Request().Body).Decode(&payload); err != nil {
		return gwerror.BadRequest("invalid queries body")
	}

	results := make([]*viewtranslate.Result, 0, len(payload.Queries))
	for _, q := range payload.Queries {
		o, err := viewtranslate.ParseOptions(url.Values{}, q)
		if err != nil {
			return gwerror.BadRequest("invalid view query parameters")
		}
		result, err := viewtranslate.ExecuteQuery(c.Request().Context(), g.DB, db, def, o, g.Sandbox)
		if err != nil {
			return err
		}
		results = append(results, result)
	}

	return c.JSON(http.StatusOK, bson.M{"results": results})
}

func (g *Gateway) handleUpdateFunction(c echo.Context) error {
	db := c.Param("db")
	design := c.Param("design")
	function := c.Param("func")
	docID := c.Param("docid")

	if g.Policy.IsReadOnly(db) {
		return g.forwardUpstream(c, db)
	}

	if g.UpdatesFolder == "" {
		return gwerror.NotImplemented("update functions are not configured")
	}

	scriptPath := filepath.Join(g.UpdatesFolder, db, design, function+".js")
	source, err := os.ReadFile(scriptPath)
	if err != nil {
		return gwerror.NotFound("update function not found")
	}

	rawBody, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return gwerror.BadRequest("reading request body")
	}

	if g.Metrics != nil {
		g.Metrics.JSExecutions.WithLabelValues("update").Inc()
	}

	resp, err := updatefn.Run(c.Request().Context(), g.DB, g.Sandbox, db, string(source), docID, string(rawBody), revision.NewDocumentID())
	if err != nil {
		if g.Metrics != nil {
			g.Metrics.JSExecutionErrors.WithLabelValues("update").Inc()
		}
		return err
	}

	for k, v := range resp.Headers {
		c.Response().Header().Set(k, v)
	}
	if len(resp.Body) == 0 {
		return c.NoContent(resp.Status)
	}
	return c.Blob(resp.Status, resp.Headers["Content-Type"], resp.Body)
}

// forwardUpstream relays a write request to CouchDB unchanged, used for
// the read-only-database fall-through.
func (g *Gateway) forwardUpstream(c echo.Context, db string) error {
	mapped := g.Policy.MapDB(db)
	path := "/" + mapped + trimDBPrefix(c.Request().URL.Path, db)

	if g.Metrics != nil {
		g.Metrics.UpstreamForwards.WithLabelValues(db, "read_only").Inc()
	}

	rawBody, _ := io.ReadAll(c.Request().Body)
	resp, err := g.Upstream.Forward(c.Request().Context(), c.Request().Method, path, c.QueryParams(), rawBody, c.Request().Header)
	if err != nil {
		return gwerror.Upstream("forwarding to couchdb", err)
	}
	return writeUpstreamResponse(c, resp)
}

// trimDBPrefix returns the portion of the request path after the leading
// "/{db}" segment, preserving whatever document id or operation suffix
// follows it.
func trimDBPrefix(path, db string) string {
	rest := strings.TrimPrefix(path, "/"+db)
	return rest
}

// forwardReadThroughView relays a view-miss request to CouchDB's own
// view endpoint, optionally with a /queries suffix.
func (g *Gateway) forwardReadThroughView(c echo.Context, db, design, view, suffix string) error {
	mapped := g.Policy.MapDB(db)
	path := "/" + mapped + "/_design/" + design + "/_view/" + view + suffix

	if g.Metrics != nil {
		g.Metrics.UpstreamForwards.WithLabelValues(db, "read_through").Inc()
	}

	rawBody, _ := io.ReadAll(c.Request().Body)
	resp, err := g.Upstream.Forward(c.Request().Context(), c.Request().Method, path, c.QueryParams(), rawBody, c.Request().Header)
	if err != nil {
		return gwerror.Upstream("forwarding view to couchdb", err)
	}
	return writeUpstreamResponse(c, resp)
}

func writeUpstreamResponse(c echo.Context, resp *upstream.Response) error {
	for name, values := range resp.Header {
		for _, v := range values {
			c.Response().Header().Add(name, v)
		}
	}
	return c.Blob(resp.StatusCode, resp.Header.Get("Content-Type"), resp.Body)
}

func writeDocopsResponse(c echo.Context, resp *docops.Response) error {
	for k, v := range resp.Headers {
		c.Response().Header().Set(k, v)
	}
	if resp.Body == nil {
		return c.NoContent(resp.Status)
	}
	return c.JSON(resp.Status, resp.Body)
}

func decodeOptionalJSONBody(c echo.Context) map[string]interface{} {
	if c.Request().Method != http.MethodPost {
		return nil
	}
	defer c.Request().Body.Close()
	var body map[string]interface{}
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return nil
	}
	return body
}

