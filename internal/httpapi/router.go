// Package httpapi exposes the Registry and Deintegration Manager over
// the HTTP request surface spec §6 requires (register, list,
// get, update, enable/disable, delete, test, execute action, get
// metrics, reintegrate, confirm manual cleanup).
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"integrationhub/internal/deintegration"
	"integrationhub/internal/hub"
	"integrationhub/internal/registry"
)

// Router wires the Registry and Deintegration Manager behind a chi mux.
type Router struct {
	registry *registry.Registry
	deint    *deintegration.Manager
	mux      chi.Router
}

// NewRouter builds the mux; call ServeHTTP (or Handler()) to serve it.
func NewRouter(reg *registry.Registry, deint *deintegration.Manager) *Router {
	r := &Router{registry: reg, deint: deint}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)

	mux.Route("/integrations", func(router chi.Router) {
		router.Post("/", r.register)
		router.Get("/", r.list)
		router.Route("/{id}", func(ir chi.Router) {
			ir.Get("/", r.get)
			ir.Patch("/", r.updateConfig)
			ir.Post("/enable", r.enable)
			ir.Post("/disable", r.disable)
			ir.Delete("/", r.delete)
			ir.Post("/test", r.test)
			ir.Post("/actions/{action}", r.executeAction)
			ir.Get("/metrics", r.metrics)
		})
	})

	mux.Route("/deintegrations", func(router chi.Router) {
		router.Post("/{id}/reintegrate", r.reintegrate)
		router.Post("/{id}/confirm", r.confirmManual)
	})

	r.mux = mux
	return r
}

// Handler returns the http.Handler serving this API.
func (r *Router) Handler() http.Handler { return r.mux }

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) { r.mux.ServeHTTP(w, req) }

// --- handlers ---------------------------------------------------------

type registerBody struct {
	Name    string                 `json:"name"`
	Type    string                 `json:"type"`
	Config  map[string]interface{} `json:"config"`
	Options struct {
		SkipHealthCheck   bool `json:"skipHealthCheck"`
		AutoDetectPort    bool `json:"autoDetectPort"`
		BypassHealthCheck bool `json:"bypassHealthCheck"`
	} `json:"options"`
}

func (r *Router) register(w http.ResponseWriter, req *http.Request) {
	var body registerBody
	if !decodeJSON(w, req, &body) {
		return
	}

	id, err := r.registry.Register(req.Context(), registry.RegisterRequest{
		Name:   body.Name,
		Type:   hub.IntegrationType(body.Type),
		Config: body.Config,
		Options: registry.RegisterOptions{
			SkipHealthCheck:   body.Options.SkipHealthCheck,
			AutoDetectPort:    body.Options.AutoDetectPort,
			BypassHealthCheck: body.Options.BypassHealthCheck,
		},
	})
	if writeErr(w, err) {
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (r *Router) list(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	filter := registry.ListFilter{
		Type:   hub.IntegrationType(q.Get("type")),
		Status: hub.Status(q.Get("status")),
		Tag:    q.Get("tag"),
	}
	writeJSON(w, http.StatusOK, r.registry.List(filter))
}

func (r *Router) get(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	rec, err := r.registry.Get(id)
	if writeErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, rec.Snapshot())
}

func (r *Router) updateConfig(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	var patch map[string]interface{}
	if !decodeJSON(w, req, &patch) {
		return
	}
	rec, err := r.registry.UpdateConfig(req.Context(), id, patch)
	if writeErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, rec.Snapshot())
}

func (r *Router) enable(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	if writeErr(w, r.registry.Enable(req.Context(), id)) {
		return
	}
	r.writeStatus(w, id)
}

func (r *Router) disable(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	if writeErr(w, r.registry.Disable(req.Context(), id)) {
		return
	}
	r.writeStatus(w, id)
}

func (r *Router) writeStatus(w http.ResponseWriter, id string) {
	rec, err := r.registry.Get(id)
	if writeErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(rec.Status())})
}

type deleteBody struct {
	Policy       string `json:"policy"`
	PreserveData bool   `json:"preserveData"`
	Force        bool   `json:"force"`
	AtTime       string `json:"atTime,omitempty"`
}

func (r *Router) delete(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	var body deleteBody
	if !decodeJSON(w, req, &body) {
		return
	}

	opts := deintegration.Options{
		Policy:       deintegration.Policy(body.Policy),
		PreserveData: body.PreserveData,
		Force:        body.Force,
	}
	if body.AtTime != "" {
		if t, err := time.Parse(time.RFC3339, body.AtTime); err == nil {
			opts.AtTime = t
		}
	}

	deintID, err := r.deint.Delete(req.Context(), id, opts)
	if writeErr(w, err) {
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"deintegrationId": deintID})
}

func (r *Router) test(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	rec, err := r.registry.Get(id)
	if writeErr(w, err) {
		return
	}

	ok := rec.Status() == hub.StatusActive
	result := map[string]interface{}{
		"success": ok,
		"message": string(rec.Status()),
		"details": rec.Snapshot(),
	}
	writeJSON(w, http.StatusOK, result)
}

func (r *Router) executeAction(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	action := chi.URLParam(req, "action")

	var params map[string]interface{}
	_ = json.NewDecoder(req.Body).Decode(&params)

	rec, err := r.registry.Get(id)
	if writeErr(w, err) {
		return
	}

	h := rec.Handle()
	if h == nil {
		h = hub.NoopHandle{}
	}
	result, err := h.Action(req.Context(), action, params)
	if writeErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (r *Router) metrics(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	rec, err := r.registry.Get(id)
	if writeErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, rec.Metrics())
}

func (r *Router) reintegrate(w http.ResponseWriter, req *http.Request) {
	deintID := chi.URLParam(req, "id")
	id, err := r.deint.Reintegrate(req.Context(), deintID)
	if writeErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (r *Router) confirmManual(w http.ResponseWriter, req *http.Request) {
	deintID := chi.URLParam(req, "id")
	if writeErr(w, r.deint.ConfirmManual(req.Context(), deintID)) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// --- request/response plumbing -----------------------------------------

func decodeJSON(w http.ResponseWriter, req *http.Request, target interface{}) bool {
	if req.Body == nil {
		return true
	}
	if err := json.NewDecoder(req.Body).Decode(target); err != nil && err.Error() != "EOF" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "InvalidBody", "message": err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeErr translates a *hub.Error to a stable JSON error identifier
// (spec §6: "every operation must translate internal error kinds to
// stable identifiers the client can switch on"). Returns true if it
// wrote a response (i.e. err was non-nil).
func writeErr(w http.ResponseWriter, err error) bool {
	if err == nil {
		return false
	}

	status := http.StatusInternalServerError
	kind := "Internal"
	if herr, ok := asHubError(err); ok {
		kind = string(herr.Kind)
		status = statusForKind(herr.Kind)
	}

	writeJSON(w, status, map[string]string{"error": kind, "message": err.Error()})
	return true
}

func asHubError(err error) (*hub.Error, bool) {
	herr, ok := err.(*hub.Error)
	return herr, ok
}

func statusForKind(kind hub.Kind) int {
	switch kind {
	case hub.KindNotFound, hub.KindRecordNotFound:
		return http.StatusNotFound
	case hub.KindInvalidType, hub.KindMissingField:
		return http.StatusBadRequest
	case hub.KindImmutable, hub.KindDeintegrationBlocked:
		return http.StatusConflict
	case hub.KindRequestTimeout:
		return http.StatusGatewayTimeout
	case hub.KindServiceUnreachable, hub.KindPortExhausted, hub.KindRegistrationFailed,
		hub.KindCleanupVerificationFailed, hub.KindStateCorrupt, hub.KindTypeUnavailable,
		hub.KindDeliveryFailed, hub.KindActionUnsupported:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
