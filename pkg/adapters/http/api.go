package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

//go:embed openapi.yaml
var openapiSpec []byte

// GetGraphParams defines parameters for GetGraph.
type GetGraphParams struct {
	// Session highlights the path taken by this session.
	Session *string `form:"session,omitempty" json:"session,omitempty"`
}

// SubscribeEventsParams defines parameters for SubscribeEvents.
type SubscribeEventsParams struct {
	// Watch restricts the stream to diffs touching these parts.
	Watch *[]string `form:"watch,omitempty" json:"watch,omitempty"`
}

// ServerInterface is the set of operations declared in openapi.yaml.
type ServerInterface interface {
	// (GET /health)
	GetHealth(w http.ResponseWriter, r *http.Request)
	// (GET /info)
	GetInfo(w http.ResponseWriter, r *http.Request)
	// (GET /agent)
	GetAgent(w http.ResponseWriter, r *http.Request)
	// (GET /agent/graph)
	GetGraph(w http.ResponseWriter, r *http.Request, params GetGraphParams)
	// (GET /sessions)
	ListSessions(w http.ResponseWriter, r *http.Request)
	// (GET /sessions/{id})
	GetSession(w http.ResponseWriter, r *http.Request, id string)
	// (DELETE /sessions/{id})
	DeleteSession(w http.ResponseWriter, r *http.Request, id string)
	// (POST /sessions/{id}/turn)
	Turn(w http.ResponseWriter, r *http.Request, id string)
	// (GET /sessions/{id}/events)
	SubscribeEvents(w http.ResponseWriter, r *http.Request, id string, params SubscribeEventsParams)
	// (GET /sessions/{id}/ws)
	HandleWebSocket(w http.ResponseWriter, r *http.Request, id string)
}

// InvalidParamFormatError reports a parameter that could not be bound.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }

// ServerInterfaceWrapper binds path and query parameters before calling the
// ServerInterface.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *ServerInterfaceWrapper) withID(r *http.Request, w http.ResponseWriter, call func(id string)) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "id", Err: err})
		return
	}
	call(id)
}

// GetGraph binds the session query parameter.
func (siw *ServerInterfaceWrapper) GetGraph(w http.ResponseWriter, r *http.Request) {
	var params GetGraphParams
	if err := runtime.BindQueryParameter("form", true, false, "session", r.URL.Query(), &params.Session); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "session", Err: err})
		return
	}
	siw.Handler.GetGraph(w, r, params)
}

// GetSession binds the id path parameter.
func (siw *ServerInterfaceWrapper) GetSession(w http.ResponseWriter, r *http.Request) {
	siw.withID(r, w, func(id string) { siw.Handler.GetSession(w, r, id) })
}

// DeleteSession binds the id path parameter.
func (siw *ServerInterfaceWrapper) DeleteSession(w http.ResponseWriter, r *http.Request) {
	siw.withID(r, w, func(id string) { siw.Handler.DeleteSession(w, r, id) })
}

// Turn binds the id path parameter.
func (siw *ServerInterfaceWrapper) Turn(w http.ResponseWriter, r *http.Request) {
	siw.withID(r, w, func(id string) { siw.Handler.Turn(w, r, id) })
}

// SubscribeEvents binds the id path parameter and the watch list.
func (siw *ServerInterfaceWrapper) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	siw.withID(r, w, func(id string) {
		var params SubscribeEventsParams
		if err := runtime.BindQueryParameter("form", false, false, "watch", r.URL.Query(), &params.Watch); err != nil {
			siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "watch", Err: err})
			return
		}
		siw.Handler.SubscribeEvents(w, r, id, params)
	})
}

// HandleWebSocket binds the id path parameter.
func (siw *ServerInterfaceWrapper) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	siw.withID(r, w, func(id string) { siw.Handler.HandleWebSocket(w, r, id) })
}

// HandlerFromMux mounts every operation of si on r.
func HandlerFromMux(si ServerInterface, r chi.Router, errorHandler func(w http.ResponseWriter, r *http.Request, err error)) http.Handler {
	if errorHandler == nil {
		errorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{Handler: si, ErrorHandlerFunc: errorHandler}

	r.Get("/health", si.GetHealth)
	r.Get("/info", si.GetInfo)
	r.Get("/agent", si.GetAgent)
	r.Get("/agent/graph", wrapper.GetGraph)
	r.Get("/sessions", si.ListSessions)
	r.Get("/sessions/{id}", wrapper.GetSession)
	r.Delete("/sessions/{id}", wrapper.DeleteSession)
	r.Post("/sessions/{id}/turn", wrapper.Turn)
	r.Get("/sessions/{id}/events", wrapper.SubscribeEvents)
	r.Get("/sessions/{id}/ws", wrapper.HandleWebSocket)
	return r
}

// rawSpec returns the embedded OpenAPI document.
func rawSpec() []byte { return openapiSpec }

var loadSwagger = sync.OnceValues(func() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		return nil, fmt.Errorf("error loading OpenAPI document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI document: %w", err)
	}
	return doc, nil
})

// GetSwagger returns the parsed and validated OpenAPI document.
func GetSwagger() (*openapi3.T, error) {
	return loadSwagger()
}

// validateBody checks a JSON request body against the named component schema.
func validateBody(schemaName string, body []byte) error {
	doc, err := GetSwagger()
	if err != nil {
		return err
	}
	ref, ok := doc.Components.Schemas[schemaName]
	if !ok || ref.Value == nil {
		return fmt.Errorf("schema %s not declared", schemaName)
	}
	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return err
	}
	return ref.Value.VisitJSON(value)
}
