package http

import (
	"errors"
	"io"
	"io/fs"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"adminportal/requests/internal/model"
	"adminportal/requests/internal/operations"
)

const multipartMemory = 8 << 20

type documentResponse struct {
	ID          int64     `json:"id"`
	RequestID   int64     `json:"requestId"`
	FileName    string    `json:"fileName"`
	StoredName  string    `json:"storedName"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

func mapDocument(doc model.Document) documentResponse {
	return documentResponse{
		ID:          doc.ID,
		RequestID:   doc.RequestID,
		FileName:    doc.OriginalName,
		StoredName:  doc.StoredName,
		Size:        doc.Size,
		ContentType: doc.ContentType,
		UploadedAt:  doc.UploadedAt,
	}
}

func mapDocuments(docs []model.Document) []documentResponse {
	resp := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		resp = append(resp, mapDocument(doc))
	}
	return resp
}

func (s *Server) handleUploadDocuments(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(r, "requestId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request_id", "request id must be a positive integer")
		return
	}

	limit := int64(s.ops.MaxUploadFiles())*s.ops.MaxDocumentBytes() + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, operations.ErrFileTooLarge, "upload exceeds the allowed size")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "expected a multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	files := make([]operations.FileBlob, 0, len(headers))
	var opened []multipart.File
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "unreadable file part")
			return
		}
		opened = append(opened, f)
		files = append(files, operations.FileBlob{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Content:     f,
		})
	}

	docs, err := s.ops.UploadDocuments(r.Context(), identityFrom(r), requestID, files)
	if err != nil {
		writeOpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapDocuments(docs))
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(r, "requestId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request_id", "request id must be a positive integer")
		return
	}
	docs, err := s.ops.ListDocuments(r.Context(), identityFrom(r), requestID)
	if err != nil {
		writeOpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapDocuments(docs))
}

func (s *Server) handleDownloadDocument(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(r, "requestId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request_id", "request id must be a positive integer")
		return
	}
	documentID, ok := pathID(r, "documentId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_document_id", "document id must be a positive integer")
		return
	}

	doc, content, err := s.ops.DownloadDocument(r.Context(), identityFrom(r), requestID, documentID)
	if err != nil {
		writeOpError(w, r, err)
		return
	}
	defer content.Close()

	// Content-Type is whatever the uploader declared; browsers must not sniff past it.
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if size, ok := objectSize(content); ok {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.OriginalName}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, content); err != nil {
		logServerError(r, "stream document", err)
	}
}

// objectSize reports the length of the stored object when the backend can
// tell. Otherwise the response is streamed without Content-Length.
func objectSize(content io.Reader) (int64, bool) {
	statter, ok := content.(interface{ Stat() (fs.FileInfo, error) })
	if !ok {
		return 0, false
	}
	info, err := statter.Stat()
	if err != nil || !info.Mode().IsRegular() {
		return 0, false
	}
	return info.Size(), true
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(r, "requestId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request_id", "request id must be a positive integer")
		return
	}
	documentID, ok := pathID(r, "documentId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_document_id", "document id must be a positive integer")
		return
	}
	if err := s.ops.DeleteDocument(r.Context(), identityFrom(r), requestID, documentID); err != nil {
		writeOpError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
