package media

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	// Register the decoders image.DecodeConfig needs for dimension probing.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/strata-cms/strata/internal/audit"
)

// maxUploadBytes bounds a single upload (10 MiB).
const maxUploadBytes = 10 << 20

// extMIME maps the extensions the default accept list knows to the MIME
// type their records are served with. Extensions outside this table fall
// back to the platform MIME registry.
var extMIME = map[string]string{
	"gif":  "image/gif",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
	"svg":  "image/svg+xml",
	"pdf":  "application/pdf",
	"mp3":  "audio/mpeg",
	"txt":  "text/plain",
	"md":   "text/markdown",
	"csv":  "text/csv",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"zip":  "application/zip",
	"json": "application/json",
}

// rasterExts are the image extensions whose uploads get dimension probing
// and whose files the thumbnailer will render.
var rasterExts = map[string]bool{
	"gif":  true,
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"webp": true,
}

// Rejected is a user-facing upload refusal: wrong extension, oversized
// payload, or content that does not match what the name claims.
type Rejected struct {
	Reason string
}

func (r *Rejected) Error() string { return r.Reason }

// IsRejected reports whether err is an upload refusal rather than an
// internal failure.
func IsRejected(err error) bool {
	var rej *Rejected
	return errors.As(err, &rej)
}

// Service accepts, stores, and removes uploaded files. Which extensions are
// accepted comes from configuration, mirroring the accept_file_types list a
// site declares.
type Service struct {
	repo   *Repository
	files  *FileStore
	audits *audit.Service
	accept map[string]bool
}

// NewService builds a Service accepting the given extensions (leading dots
// and case are ignored). The audit service may be nil.
func NewService(repo *Repository, files *FileStore, audits *audit.Service, acceptExts []string) *Service {
	accept := make(map[string]bool, len(acceptExts))
	for _, ext := range acceptExts {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			accept[ext] = true
		}
	}
	return &Service{repo: repo, files: files, audits: audits, accept: accept}
}

// Accepts reports whether the extension is on the configured accept list.
func (s *Service) Accepts(ext string) bool {
	return s.accept[strings.ToLower(strings.TrimPrefix(ext, "."))]
}

// Upload validates and stores one multipart file and records it, returning
// the stored record. Refusals come back as *Rejected.
func (s *Service) Upload(ctx context.Context, fh *multipart.FileHeader, adminID string) (*Media, error) {
	if fh.Size > maxUploadBytes {
		return nil, &Rejected{Reason: fmt.Sprintf("file exceeds the %d byte upload limit", maxUploadBytes)}
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fh.Filename), "."))
	if ext == "" || !s.accept[ext] {
		return nil, &Rejected{Reason: fmt.Sprintf("files of type %q are not accepted", ext)}
	}

	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("opening upload: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > maxUploadBytes {
		return nil, &Rejected{Reason: fmt.Sprintf("file exceeds the %d byte upload limit", maxUploadBytes)}
	}

	if err := checkContent(ext, data); err != nil {
		return nil, err
	}

	m := &Media{
		Filename:     randomName(ext),
		OriginalName: fh.Filename,
		MimeType:     mimeForExt(ext),
		Size:         int64(len(data)),
		UploadedBy:   &adminID,
	}

	if rasterExts[ext] {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			m.Width, m.Height = &cfg.Width, &cfg.Height
		}
	}

	if err := s.files.Write(m.Filename, data); err != nil {
		return nil, fmt.Errorf("storing upload: %w", err)
	}
	if err := s.repo.Insert(ctx, m); err != nil {
		if rmErr := s.files.Remove(m.Filename); rmErr != nil {
			slog.Warn("orphaned upload left on disk", "filename", m.Filename, "error", rmErr)
		}
		return nil, fmt.Errorf("recording upload: %w", err)
	}

	s.logAudit(ctx, audit.Event{
		Action:     "media.upload",
		ActorID:    adminID,
		Resource:   "media",
		ResourceID: m.ID,
		Payload:    map[string]any{"filename": m.Filename, "original_name": m.OriginalName},
	})
	return m, nil
}

// checkContent sniffs the payload and refuses uploads whose content
// contradicts the claimed extension. HTML is refused outright: a file that
// browsers would render as markup must never be served from the media root.
func checkContent(ext string, data []byte) error {
	sniffed := http.DetectContentType(data[:min(512, len(data))])
	if mediaType, _, err := mime.ParseMediaType(sniffed); err == nil {
		sniffed = mediaType
	}

	if sniffed == "text/html" {
		return &Rejected{Reason: "HTML content is not accepted"}
	}

	if rasterExts[ext] {
		// The sniffer recognizes every raster type we accept, so anything
		// other than an image result means the name is lying.
		if !strings.HasPrefix(sniffed, "image/") {
			return &Rejected{Reason: fmt.Sprintf("content does not look like a %s image", ext)}
		}
	}
	return nil
}

// mimeForExt resolves the served MIME type for an accepted extension.
func mimeForExt(ext string) string {
	if mt, ok := extMIME[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension("." + ext); mt != "" {
		if mediaType, _, err := mime.ParseMediaType(mt); err == nil {
			return mediaType
		}
		return mt
	}
	return "application/octet-stream"
}

// randomName generates the stored filename: 32 hex characters plus the
// validated extension. Collisions are left to the store's exclusive write.
func randomName(ext string) string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(buf[:]) + "." + ext
}

// Delete removes the record and its file. The file removal is best-effort
// once the record is gone.
func (s *Service) Delete(ctx context.Context, id, adminID string) error {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.files.Remove(m.Filename); err != nil {
		slog.Warn("deleted media file left on disk", "filename", m.Filename, "error", err)
	}

	s.logAudit(ctx, audit.Event{
		Action:     "media.delete",
		ActorID:    adminID,
		Resource:   "media",
		ResourceID: id,
		Payload:    map[string]any{"filename": m.Filename},
	})
	return nil
}

// List returns one page of media records with the total count.
func (s *Service) List(ctx context.Context, page, perPage int) ([]*Media, int, error) {
	return s.repo.List(ctx, page, perPage)
}

// Find returns the record stored under the given generated filename.
func (s *Service) Find(ctx context.Context, filename string) (*Media, error) {
	return s.repo.FindByFilename(ctx, filename)
}

func (s *Service) logAudit(ctx context.Context, event audit.Event) {
	if s.audits != nil {
		s.audits.Log(ctx, event)
	}
}

// renderable reports whether the thumbnailer can decode and re-encode
// files of this MIME type.
func renderable(mimeType string) bool {
	switch mimeType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	}
	return false
}

// encodeFormat picks the thumbnail encoding for a source MIME type. WebP
// sources come back as PNG since the imaging library cannot encode WebP.
func encodeFormat(mimeType string) imaging.Format {
	switch mimeType {
	case "image/png", "image/webp":
		return imaging.PNG
	case "image/gif":
		return imaging.GIF
	default:
		return imaging.JPEG
	}
}
