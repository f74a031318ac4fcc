package schema

import (
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	// Packages
	types "github.com/mutablelogic/go-server/pkg/types"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// File is an explicit description of a local payload to be uploaded. It
// carries the declared size and content type alongside an Open function,
// so the transport can re-open the payload for each attempt rather than
// sharing a consumed reader between retries.
type File struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"type,omitempty"`

	// Open returns a fresh reader over the payload. It is called once per
	// upload attempt and the returned reader is closed by the transport.
	Open func() (io.ReadCloser, error) `json:"-"`
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// FileFromPath describes a file on the local filesystem. The content type
// is derived from the extension, falling back to sniffing the first 512
// bytes when the extension yields nothing useful.
func FileFromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, err
	}

	ct := mime.TypeByExtension(filepath.Ext(path))
	if ct == "" || ct == types.ContentTypeBinary {
		if f, err := os.Open(path); err == nil {
			var buf [512]byte
			n, _ := io.ReadFull(f, buf[:])
			f.Close()
			ct = http.DetectContentType(buf[:n])
		}
	}

	return File{
		Name:        filepath.Base(path),
		Size:        info.Size(),
		ContentType: ct,
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// FileFromFS describes a file inside an fs.FS, for tests and embedded
// fixtures.
func FileFromFS(fsys fs.FS, path string) (File, error) {
	info, err := fs.Stat(fsys, path)
	if err != nil {
		return File{}, err
	}
	return File{
		Name:        filepath.Base(path),
		Size:        info.Size(),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Open: func() (io.ReadCloser, error) {
			return fsys.Open(path)
		},
	}, nil
}

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (f File) String() string {
	return types.Stringify(f)
}
