package httphandler

import (
	"io"
	"net/http"
	"strconv"

	// Packages
	backend "github.com/mutablelogic/go-collect/backend"
	schema "github.com/mutablelogic/go-collect/schema"
	httprequest "github.com/mutablelogic/go-server/pkg/httprequest"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// uploadPost accepts one file as multipart/form-data (field name: "file")
// and commits it to the workspace under the URL path. The response is the
// upload envelope carrying the committed record and a usage summary.
func uploadPost(w http.ResponseWriter, r *http.Request, ws *backend.Workspace) error {
	// Read multipart form data into a struct with a []types.File field
	var form struct {
		Files []types.File `json:"file"`
	}
	if err := httprequest.Read(r, &form); err != nil {
		return httpresponse.Error(w, httpresponse.ErrBadRequest.With(err.Error()))
	} else if len(form.Files) == 0 {
		return httpresponse.Error(w, httpresponse.ErrBadRequest.With(`missing or unreadable "file" form field`))
	} else if len(form.Files) != 1 {
		return httpresponse.Error(w, httpresponse.ErrBadRequest.Withf("expected one file per request, got %d", len(form.Files)))
	}
	part := form.Files[0]
	defer part.Body.Close()

	folder := types.NormalisePath(r.PathValue("path"))

	// Declared part size, when the part header provides it
	var size int64
	if v := part.Header.Get(types.ContentLengthHeader); v != "" {
		size, _ = strconv.ParseInt(v, 10, 64)
	}

	record, err := ws.Put(r.Context(), folder, schema.File{
		Name:        part.Path,
		Size:        size,
		ContentType: part.ContentType,
		Open: func() (io.ReadCloser, error) {
			return part.Body, nil
		},
	})
	if err != nil {
		return httpresponse.Error(w, err)
	}

	quota, err := ws.Quota(r.Context())
	if err != nil {
		return httpresponse.Error(w, err)
	}

	return httpresponse.JSON(w, http.StatusCreated, httprequest.Indent(r), schema.UploadResponse{
		Success:     true,
		Data:        record,
		StorageInfo: ws.StorageInfo(quota),
	})
}

// quotaGet returns the usage snapshot for the workspace
func quotaGet(w http.ResponseWriter, r *http.Request, ws *backend.Workspace) error {
	quota, err := ws.Quota(r.Context())
	if err != nil {
		return httpresponse.Error(w, err)
	}
	return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), quota)
}

// listGet returns the files stored under the URL path
func listGet(w http.ResponseWriter, r *http.Request, ws *backend.Workspace) error {
	var query struct {
		Recursive bool `json:"recursive"`
	}
	if err := httprequest.Query(r.URL.Query(), &query); err != nil {
		return httpresponse.Error(w, httpresponse.ErrBadRequest.With(err.Error()))
	}

	files, err := ws.List(r.Context(), types.NormalisePath(r.PathValue("path")), query.Recursive)
	if err != nil {
		return httpresponse.Error(w, err)
	}
	return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), files)
}

// objectDelete removes one file and returns its record
func objectDelete(w http.ResponseWriter, r *http.Request, ws *backend.Workspace) error {
	record, err := ws.Delete(r.Context(), types.NormalisePath(r.PathValue("path")))
	if err != nil {
		return httpresponse.Error(w, err)
	}
	return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), record)
}
