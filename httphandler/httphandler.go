package httphandler

import (
	"net/http"

	// Packages
	backend "github.com/mutablelogic/go-collect/backend"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type HTTPMiddlewareFuncs []func(http.HandlerFunc) http.HandlerFunc

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// RegisterHandlers registers the collection HTTP handlers on the provided
// router with the given path prefix. At least one workspace must be given;
// requests naming an unregistered workspace return 404.
func RegisterHandlers(router *http.ServeMux, prefix string, middleware HTTPMiddlewareFuncs, workspaces ...*backend.Workspace) {
	byName := make(map[string]*backend.Workspace, len(workspaces))
	for _, ws := range workspaces {
		byName[ws.Name()] = ws
	}
	resolve := func(w http.ResponseWriter, r *http.Request) *backend.Workspace {
		ws, exists := byName[r.PathValue("workspace")]
		if !exists {
			_ = httpresponse.Error(w, httpresponse.ErrNotFound.Withf("workspace %q not found", r.PathValue("workspace")))
			return nil
		}
		return ws
	}

	// GET /api/collect/{workspace} - usage snapshot for the workspace
	router.HandleFunc(joinPath(prefix, "/{workspace}"), middleware.Wrap(func(w http.ResponseWriter, r *http.Request) {
		ws := resolve(w, r)
		if ws == nil {
			return
		}
		switch r.Method {
		case http.MethodGet:
			_ = quotaGet(w, r, ws)
		case http.MethodPost:
			_ = uploadPost(w, r, ws)
		default:
			_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
		}
	}))

	// POST /api/collect/{workspace}/{path...} - multipart upload into a folder
	// GET /api/collect/{workspace}/{path...} - list files under a folder
	// DELETE /api/collect/{workspace}/{path...} - delete a file
	router.HandleFunc(joinPath(prefix, "/{workspace}/{path...}"), middleware.Wrap(func(w http.ResponseWriter, r *http.Request) {
		ws := resolve(w, r)
		if ws == nil {
			return
		}
		switch r.Method {
		case http.MethodPost:
			_ = uploadPost(w, r, ws)
		case http.MethodGet:
			_ = listGet(w, r, ws)
		case http.MethodDelete:
			_ = objectDelete(w, r, ws)
		default:
			_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
		}
	}))
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (w HTTPMiddlewareFuncs) Wrap(handler http.HandlerFunc) http.HandlerFunc {
	if len(w) == 0 {
		return handler
	}
	for i := len(w) - 1; i >= 0; i-- {
		handler = w[i](handler)
	}
	return handler
}

func joinPath(prefix, path string) string {
	return types.JoinPath(prefix, path)
}
