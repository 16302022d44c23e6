// Package drive persists post content and returns a shareable link, either
// on Google Drive or in a local directory.
package drive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/lewflauta/AgenticSocialBot/internal/services/google"
)

// maxLocalSuffix bounds the numbered names Local tries for one filename.
const maxLocalSuffix = 1000

// File is a stored post. Name may differ from the requested filename when the
// persister had to make it unique.
type File struct {
	Name string
	Link string
}

// Persister stores content under filename and returns where it went. A call
// never replaces content stored by an earlier call.
type Persister interface {
	Store(ctx context.Context, content []byte, filename string) (File, error)
}

// CleanFilename rejects empty names and strips any directory component.
func CleanFilename(filename string) (string, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == ".." || name == string(filepath.Separator) {
		return "", fmt.Errorf("drive: invalid filename %q", filename)
	}
	return name, nil
}

// Drive uploads files to a Google Drive folder as text/plain. Drive keys
// files by id, so equal names never overwrite each other.
type Drive struct {
	files    *drivev3.FilesService
	folderID string
}

// NewDrive creates a Drive persister. endpoint may be empty for the public
// API.
func NewDrive(ctx context.Context, client *http.Client, folderID, endpoint string) (*Drive, error) {
	svc, err := drivev3.NewService(ctx, google.ClientOptions(client, endpoint)...)
	if err != nil {
		return nil, fmt.Errorf("drive: create service: %w", err)
	}
	return &Drive{files: svc.Files, folderID: folderID}, nil
}

var _ Persister = (*Drive)(nil)

// Store uploads content and returns the file's webViewLink.
func (d *Drive) Store(ctx context.Context, content []byte, filename string) (File, error) {
	name, err := CleanFilename(filename)
	if err != nil {
		return File{}, err
	}
	meta := &drivev3.File{Name: name, MimeType: "text/plain"}
	if d.folderID != "" {
		meta.Parents = []string{d.folderID}
	}

	created, err := d.files.Create(meta).
		Media(bytes.NewReader(content), googleapi.ContentType("text/plain")).
		Fields("id", "name", "webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return File{}, fmt.Errorf("drive: upload %s: %w", name, err)
	}
	if created.WebViewLink == "" {
		return File{}, fmt.Errorf("drive: upload %s: response has no webViewLink", name)
	}
	return File{Name: name, Link: created.WebViewLink}, nil
}

// Local writes files into a directory and returns file:// links. When the
// name is taken it stores under name-2, name-3 and so on.
type Local struct {
	Dir string
}

var _ Persister = Local{}

func (l Local) Store(ctx context.Context, content []byte, filename string) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, err
	}
	name, err := CleanFilename(filename)
	if err != nil {
		return File{}, err
	}
	if l.Dir == "" {
		return File{}, errors.New("drive: local directory is not configured")
	}
	dir, err := filepath.Abs(l.Dir)
	if err != nil {
		return File{}, fmt.Errorf("drive: resolve %s: %w", l.Dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return File{}, fmt.Errorf("drive: create %s: %w", dir, err)
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; i <= maxLocalSuffix; i++ {
		candidate := name
		if i > 1 {
			candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return File{}, fmt.Errorf("drive: create %s: %w", path, err)
		}
		_, werr := f.Write(content)
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			_ = os.Remove(path)
			return File{}, fmt.Errorf("drive: write %s: %w", path, werr)
		}
		return File{
			Name: candidate,
			Link: (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String(),
		}, nil
	}
	return File{}, fmt.Errorf("drive: no free name for %s in %s", name, dir)
}
