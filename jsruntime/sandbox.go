// Package jsruntime embeds a sandboxed JavaScript engine used for two
// CouchDB-compatibility features that have no natural MongoDB
// equivalent: design-document update functions, and "break glass" view
// scripts that hand-build an aggregation pipeline instead of relying on
// the declarative view translator.
package jsruntime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dop251/goja"
	"github.com/sirupsen/logrus"
)

// Sandbox runs untrusted CouchDB-style JavaScript under a wall-clock
// timeout. Each Run call gets its own goja.Runtime; nothing is shared
// across calls, so a Sandbox value is safe for concurrent use.
type Sandbox struct {
	Timeout time.Duration
	Log     *logrus.Logger
}

// New returns a Sandbox with the given timeout, defaulting to one second
// when timeout is zero.
func New(timeout time.Duration, log *logrus.Logger) *Sandbox {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Sandbox{Timeout: timeout, Log: log}
}

func (s *Sandbox) newRuntime() *goja.Runtime {
	vm := goja.New()
	console := map[string]func(goja.FunctionCall) goja.Value{
		"log":   s.consoleFunc(logrus.InfoLevel),
		"warn":  s.consoleFunc(logrus.WarnLevel),
		"error": s.consoleFunc(logrus.ErrorLevel),
	}
	obj := vm.NewObject()
	for name, fn := range console {
		_ = obj.Set(name, fn)
	}
	_ = vm.Set("console", obj)
	return vm
}

func (s *Sandbox) consoleFunc(level logrus.Level) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if s.Log == nil {
			return goja.Undefined()
		}
		args := make([]interface{}, 0, len(call.Arguments))
		for _, a := range call.Arguments {
			args = append(args, a.Export())
		}
		s.Log.Log(level, args...)
		return goja.Undefined()
	}
}

func (s *Sandbox) run(vm *goja.Runtime, script string) (goja.Value, error) {
	timer := time.AfterFunc(s.Timeout, func() {
		vm.Interrupt("script execution timed out")
	})
	defer timer.Stop()
	return vm.RunString(script)
}

// UpdateResponse is the second element of an update function's return
// array: the HTTP response it wants the gateway to emit.
type UpdateResponse struct {
	Code    int
	JSON    json.RawMessage
	HasJSON bool
	Body    string
	HasBody bool
	Base64  bool
}

// UpdateResult is the decoded [newDoc, response] pair an update function
// returns. Doc is nil when the function chose not to write a document.
type UpdateResult struct {
	Doc      map[string]interface{}
	HasDoc   bool
	Response UpdateResponse
}

// RunUpdateFunction evaluates a CouchDB update-function script of the
// form `function(doc, req) { ... }` against the given document (nil for
// a non-existent document, matching CouchDB's upsert-capable update
// handlers) and request descriptor.
func (s *Sandbox) RunUpdateFunction(scriptSource string, doc map[string]interface{}, reqID, reqBody, reqUUID string) (UpdateResult, error) {
	vm := s.newRuntime()

	var docValue interface{}
	if doc != nil {
		docValue = doc
	}
	if err := vm.Set("doc", docValue); err != nil {
		return UpdateResult{}, fmt.Errorf("binding doc: %w", err)
	}

	req := map[string]interface{}{
		"id":   reqID,
		"body": reqBody,
		"uuid": reqUUID,
	}
	if err := vm.Set("req", req); err != nil {
		return UpdateResult{}, fmt.Errorf("binding req: %w", err)
	}

	wrapped := "f = " + scriptSource + "\nresult = f(doc, req)\nresult = JSON.parse(JSON.stringify(result));"
	if _, err := s.run(vm, wrapped); err != nil {
		return UpdateResult{}, fmt.Errorf("evaluating update script: %w", err)
	}

	resultVal := vm.Get("result")
	if resultVal == nil || goja.IsUndefined(resultVal) {
		return UpdateResult{}, fmt.Errorf("update script did not set result")
	}

	raw, ok := resultVal.Export().([]interface{})
	if !ok {
		return UpdateResult{}, fmt.Errorf("update script result is not an array")
	}
	return decodeUpdateResult(raw)
}

func decodeUpdateResult(raw []interface{}) (UpdateResult, error) {
	var out UpdateResult

	if len(raw) < 1 {
		return out, fmt.Errorf("update script result is empty")
	}

	switch v := raw[0].(type) {
	case nil:
		out.HasDoc = false
	case map[string]interface{}:
		out.Doc = v
		out.HasDoc = true
	default:
		return out, fmt.Errorf("update script return value is not an object")
	}

	if len(raw) < 2 {
		return out, fmt.Errorf("update script result is missing a response element")
	}

	respMap, ok := raw[1].(map[string]interface{})
	if !ok {
		return out, fmt.Errorf("update script response is not an object")
	}

	out.Response.Code = 200
	if code, ok := respMap["code"]; ok {
		switch n := code.(type) {
		case int64:
			out.Response.Code = int(n)
		case float64:
			out.Response.Code = int(n)
		}
	}
	if j, ok := respMap["json"]; ok {
		b, err := json.Marshal(j)
		if err != nil {
			return out, fmt.Errorf("marshaling response json: %w", err)
		}
		out.Response.JSON = b
		out.Response.HasJSON = true
	}
	if b, ok := respMap["body"]; ok {
		s, ok := b.(string)
		if !ok {
			return out, fmt.Errorf("response body is not a string")
		}
		out.Response.Body = s
		out.Response.HasBody = true
	}
	if _, ok := respMap["base64"]; ok {
		out.Response.Base64 = true
	}

	return out, nil
}

// RunViewScript evaluates a break-glass view script, binding the view
// query options as the global `view_options` and returning the
// aggregation pipeline stages the script produces as `result`.
func (s *Sandbox) RunViewScript(scriptSource string, opts map[string]interface{}) ([]map[string]interface{}, error) {
	vm := s.newRuntime()

	if err := vm.Set("view_options", opts); err != nil {
		return nil, fmt.Errorf("binding view_options: %w", err)
	}

	wrapped := scriptSource + "\nresult = JSON.parse(JSON.stringify(result));"
	if _, err := s.run(vm, wrapped); err != nil {
		return nil, fmt.Errorf("evaluating view script: %w", err)
	}

	resultVal := vm.Get("result")
	if resultVal == nil || goja.IsUndefined(resultVal) {
		return nil, fmt.Errorf("view script did not set result")
	}

	raw, ok := resultVal.Export().([]interface{})
	if !ok {
		return nil, fmt.Errorf("view script result is not an array")
	}

	stages := make([]map[string]interface{}, 0, len(raw))
	for _, r := range raw {
		m, ok := r.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("view script result element is not an object")
		}
		stages = append(stages, m)
	}
	return stages, nil
}
