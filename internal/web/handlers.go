package web

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/HOUCINE710/csv-fille-Processed/internal/core"
	"github.com/HOUCINE710/csv-fille-Processed/internal/logging"
	"github.com/HOUCINE710/csv-fille-Processed/internal/web/templates"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temporary files.
const multipartMemory = 32 << 20

// handleIndex renders the page for the visitor's session.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	st := s.service.Snapshot(sessionID(r))
	s.renderPage(w, r, st, http.StatusOK)
}

// handleProcess applies the submitted form and runs the batch.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)

	files, err := s.parseSubmission(w, r)
	if err != nil {
		// Nothing reached the session; show the error against its current state.
		st := s.service.Snapshot(id)
		st.Error = core.DisplayError(err)
		logging.FromContext(r.Context()).Warn("upload rejected", "error", err)
		s.renderPage(w, r, st, statusFor(err))
		return
	}

	st, err := s.service.Submit(r.Context(), id, core.Submission{
		ReportID:  r.FormValue("report_id"),
		Threshold: r.FormValue("threshold"),
		Files:     files,
	})
	s.renderPage(w, r, st, statusFor(err))
}

// handleExport downloads the table as Processed_Results.csv.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	st, data, err := s.service.Export(sessionID(r))
	if err != nil {
		s.renderPage(w, r, st, statusFor(err))
		return
	}
	writeDownload(w, core.ExportFileName, core.CSVContentType, data)
}

// handleExportXLSX downloads the table as a workbook.
func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	st, data, err := s.service.ExportXLSX(sessionID(r))
	if err != nil {
		s.renderPage(w, r, st, statusFor(err))
		return
	}
	writeDownload(w, core.ExportXLSXFileName, core.XLSXContentType, data)
}

// handleReset clears the session and returns to the empty page.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	st := s.service.Reset(sessionID(r))
	if isHTMX(r) {
		s.renderPage(w, r, st, http.StatusOK)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// parseSubmission reads the multipart form and its uploaded files. A form
// without a file part is accepted and yields no files.
func (s *Server) parseSubmission(w http.ResponseWriter, r *http.Request) ([]core.SourceFile, error) {
	maxFiles := int64(s.cfg.Upload.MaxFiles)
	if maxFiles <= 0 {
		maxFiles = 1
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFiles*s.cfg.Upload.MaxFileSize+multipartMemory)

	err := r.ParseMultipartForm(multipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("upload exceeds %d bytes: %w", tooLarge.Limit, core.ErrFileTooLarge)
		}
		return nil, fmt.Errorf("parse form: %w: %w", core.ErrInvalidRequest, err)
	}
	if r.MultipartForm == nil {
		return nil, nil
	}

	headers := r.MultipartForm.File["files"]
	if s.cfg.Upload.MaxFiles > 0 && len(headers) > s.cfg.Upload.MaxFiles {
		return nil, fmt.Errorf("%d files selected, limit is %d: %w", len(headers), s.cfg.Upload.MaxFiles, core.ErrTooManyFiles)
	}

	files := make([]core.SourceFile, 0, len(headers))
	for _, fh := range headers {
		f, err := readUpload(fh, s.cfg.Upload.MaxFileSize)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, core.CheckFiles(files, s.cfg.Upload.MaxFiles, s.cfg.Upload.MaxFileSize)
}

// readUpload reads at most maxSize+1 bytes so CheckFiles can see an
// oversized file without buffering all of it.
func readUpload(fh *multipart.FileHeader, maxSize int64) (core.SourceFile, error) {
	f, err := fh.Open()
	if err != nil {
		return core.SourceFile{}, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	var rd io.Reader = f
	if maxSize > 0 {
		rd = io.LimitReader(f, maxSize+1)
	}
	data, err := io.ReadAll(rd)
	if err != nil {
		return core.SourceFile{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return core.SourceFile{Name: fh.Filename, Data: data}, nil
}

// renderPage renders the full page, or only the results section for HTMX.
// HTMX only swaps 2xx responses, so partials always go out as 200.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, st core.State, status int) {
	data := s.pageData(st)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	component := templates.Page(data)
	if isHTMX(r) {
		component = templates.Results(data)
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if err := component.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render page", "error", err)
	}
}

func (s *Server) pageData(st core.State) templates.PageData {
	names := make([]string, len(st.Files))
	for i, f := range st.Files {
		names[i] = f.Name
	}
	return templates.PageData{
		ReportID:  st.ReportID,
		Threshold: st.Threshold,
		Error:     st.Error,
		Files:     names,
		Rows:      st.Rows,
		Summary:   st.Summary(),
		Policy:    s.service.Policy(),
		MaxFiles:  s.cfg.Upload.MaxFiles,
	}
}

// writeDownload sends data as an attachment named filename.
func writeDownload(w http.ResponseWriter, filename, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
