package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"time"

	// Packages
	collect "github.com/mutablelogic/go-collect"
	schema "github.com/mutablelogic/go-collect/schema"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// CONSTANTS

const (
	// progressGranularity is the minimum number of bytes written between
	// two progress callbacks, so large uploads do not flood the caller.
	progressGranularity = 64 * 1024

	// simulatedTick is the emit interval for size-unknown uploads, where
	// progress is simulated as a percentage approaching simulatedCeiling.
	simulatedTick    = 200 * time.Millisecond
	simulatedCeiling = 95

	// maxErrorBody bounds how much of an error response body is read when
	// building the error message.
	maxErrorBody = 4 * 1024
)

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Upload sends one file to the workspace as a multipart POST and returns the
// decoded response envelope. The progress callback, when not nil, receives
// (written, total) byte counters at most once per 64KiB of payload; when the
// file size is unknown the counters are a simulated percentage over 100 and
// are display-only. A hard request timeout applies independently of the
// caller's context.
func (c *Client) Upload(ctx context.Context, req schema.UploadRequest, progress func(written, total int64)) (*schema.UploadResponse, error) {
	if req.Workspace == "" {
		return nil, fmt.Errorf("missing workspace")
	}
	if req.File.Open == nil {
		return nil, fmt.Errorf("file %q has no payload", req.File.Name)
	}

	body, err := req.File.Open()
	if err != nil {
		return nil, err
	}

	// Byte-level progress for known sizes, simulated otherwise
	var reader io.Reader = body
	var simulated *simulatedProgress
	if progress != nil {
		if req.File.Size > 0 {
			reader = &progressReader{r: body, total: req.File.Size, cb: progress}
		} else {
			simulated = startSimulatedProgress(progress)
			defer simulated.Stop(false)
		}
	}

	// Stream the multipart body through a pipe so the payload is never
	// buffered in full.
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer body.Close()
		part, err := createFilePart(mw, req.File)
		if err == nil {
			_, err = io.Copy(part, reader)
		}
		if cerr := mw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	timeout, _ := time.ParseDuration(schema.DefaultRequestTimeout)
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.uploadURL(req.Workspace, req.Folder), pr)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set(types.ContentTypeHeader, mw.FormDataContentType())
	httpReq.Header.Set(schema.WorkspaceHeader, req.Workspace)
	httpReq.Header.Set(schema.UploadCountHeader, "1")

	response, err := c.Client.Client.Do(httpReq)
	if err != nil {
		return nil, c.mapTransportErr(ctx, err)
	}
	defer response.Body.Close()

	// Non-2xx carries the error envelope or a plain text message
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, &collect.StatusError{
			Code:    response.StatusCode,
			Message: readErrorMessage(response.Body),
		}
	}

	var envelope schema.UploadResponse
	if err := json.NewDecoder(response.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", collect.ErrBadResponse, err)
	}
	if !envelope.Success {
		return nil, &collect.StatusError{Code: response.StatusCode, Message: envelope.Error}
	}

	// Final emit so the caller always observes completion
	if progress != nil {
		if simulated != nil {
			simulated.Stop(true)
		} else if req.File.Size > 0 {
			progress(req.File.Size, req.File.Size)
		}
	}
	return &envelope, nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// uploadURL joins the endpoint, workspace and folder into the request URL.
func (c *Client) uploadURL(workspace, folder string) string {
	p := types.JoinPath(workspace, folder)
	return c.endpoint + "/" + strings.TrimPrefix(p, "/")
}

// mapTransportErr converts round-trip errors into the sentinel errors the
// retry classifier understands. Cancellation of the caller's context wins
// over the hard request timeout.
func (c *Client) mapTransportErr(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return collect.ErrCancelled
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return collect.ErrTimeout
	default:
		return err
	}
}

// createFilePart writes the multipart header for the file, carrying its
// declared content type and size so the server can account without buffering.
func createFilePart(mw *multipart.Writer, file schema.File) (io.Writer, error) {
	ct := file.ContentType
	if ct == "" {
		ct = types.ContentTypeBinary
	}
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	h.Set(types.ContentTypeHeader, ct)
	if file.Size > 0 {
		h.Set(types.ContentLengthHeader, strconv.FormatInt(file.Size, 10))
	}
	return mw.CreatePart(h)
}

// readErrorMessage extracts a human-readable message from an error response,
// preferring the JSON envelope's error field over the raw body.
func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}
	var envelope struct {
		Error  string `json:"error"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil {
		if envelope.Error != "" {
			return envelope.Error
		}
		if envelope.Reason != "" {
			return envelope.Reason
		}
	}
	return strings.TrimSpace(string(data))
}

///////////////////////////////////////////////////////////////////////////////
// PROGRESS READERS

// progressReader counts bytes as the HTTP client drains the payload and
// invokes the callback at most once per progressGranularity bytes, plus once
// when the declared total is reached.
type progressReader struct {
	r        io.Reader
	total    int64
	written  int64
	lastEmit int64
	cb       func(written, total int64)
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.written += int64(n)
		if r.written-r.lastEmit >= progressGranularity || r.written >= r.total {
			r.lastEmit = r.written
			r.cb(r.written, r.total)
		}
	}
	return n, err
}

// simulatedProgress emits a percentage which approaches simulatedCeiling
// while the request is in flight, then jumps to 100 on success. It exists
// only so callers can display movement for payloads of unknown size.
type simulatedProgress struct {
	cb   func(written, total int64)
	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func startSimulatedProgress(cb func(written, total int64)) *simulatedProgress {
	s := &simulatedProgress{cb: cb, stop: make(chan struct{})}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(simulatedTick)
		defer ticker.Stop()
		percent := float64(0)
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				percent += (simulatedCeiling - percent) / 10
				s.cb(int64(percent), 100)
			}
		}
	}()
	return s
}

// Stop halts the emitter. When success is true a final (100, 100) is emitted
// after the ticker goroutine has exited.
func (s *simulatedProgress) Stop(success bool) {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
	if success {
		s.cb(100, 100)
	}
}
