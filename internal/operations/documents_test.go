package operations

import (
	"bytes"
	"context"
	"io"
	"regexp"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"adminportal/requests/internal/model"
)

var storedNamePattern = regexp.MustCompile(`^\d+_\d+_[0-9a-f]{16}\.(pdf|png)$`)

func TestUploadAndDownloadRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.create(t, teacher, model.RequestTypeMissionOrder, "Mission")
	payload := []byte("%PDF-1.4 mission order")

	docs, err := h.svc.UploadDocuments(ctx, teacher, req.ID, []FileBlob{
		{Name: `C:\Users\me\ordre.PDF`, ContentType: "application/pdf", Size: int64(len(payload)), Content: bytes.NewReader(payload)},
		{Name: "ticket.png", Size: 3, Content: bytes.NewReader([]byte("png"))},
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].OriginalName != "ordre.PDF" || docs[0].Size != int64(len(payload)) {
		t.Fatalf("unexpected metadata: %+v", docs[0])
	}
	if docs[1].ContentType != "image/png" {
		t.Fatalf("expected content type from extension, got %q", docs[1].ContentType)
	}
	for _, doc := range docs {
		if !storedNamePattern.MatchString(doc.StoredName) {
			t.Fatalf("unexpected stored name %q", doc.StoredName)
		}
	}

	meta, rc, err := h.svc.DownloadDocument(ctx, secretary, req.ID, docs[0].ID)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) || meta.ID != docs[0].ID {
		t.Fatalf("downloaded content mismatch")
	}

	listed, err := h.svc.ListDocuments(ctx, teacher, req.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != docs[0].ID {
		t.Fatalf("expected documents in upload order")
	}
	if got := testutil.ToFloat64(h.metrics.DocumentsUploaded); got != 2 {
		t.Fatalf("expected upload counter 2, got %v", got)
	}
}

func TestUploadRequiresEligibleType(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, typ := range []model.RequestType{model.RequestTypeLeave, model.RequestTypeAbsence, model.RequestTypeAttestation} {
		req := h.create(t, teacher, typ, "r")
		for _, actor := range []model.Identity{teacher, admin, secretary, staff} {
			_, err := h.svc.UploadDocuments(ctx, actor, req.ID, []FileBlob{pdf("a.pdf", 1)})
			expectCode(t, err, KindForbidden, ErrForbidden)
		}
	}
	if h.store.DocumentCount() != 0 || len(h.storedFiles(t)) != 0 {
		t.Fatalf("forbidden uploads must leave nothing behind")
	}
}

func TestUploadOnlyByOwner(t *testing.T) {
	h := newHarness(t)
	req := h.create(t, teacher, model.RequestTypeOvertime, "Overtime")
	_, err := h.svc.UploadDocuments(context.Background(), admin, req.ID, []FileBlob{pdf("a.pdf", 1)})
	expectCode(t, err, KindForbidden, ErrForbidden)
	_, err = h.svc.UploadDocuments(context.Background(), teacher, req.ID+9, []FileBlob{pdf("a.pdf", 1)})
	expectCode(t, err, KindNotFound, ErrRequestNotFound)
}

func TestUploadValidation(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxUploadFiles = 2 })
	ctx := context.Background()
	req := h.create(t, teacher, model.RequestTypeOvertime, "Overtime")

	cases := map[string]struct {
		files []FileBlob
		code  string
	}{
		"empty":       {nil, ErrNoFiles},
		"too many":    {[]FileBlob{pdf("a.pdf", 1), pdf("b.pdf", 1), pdf("c.pdf", 1)}, ErrTooManyFiles},
		"declared":    {[]FileBlob{pdf("a.pdf", 1), pdf("big.pdf", 6<<20)}, ErrFileTooLarge},
		"unsupported": {[]FileBlob{pdf("a.pdf", 1), pdf("script.exe", 1)}, ErrUnsupportedType},
		"no ext":      {[]FileBlob{pdf("README", 1)}, ErrUnsupportedType},
	}
	for name, tc := range cases {
		_, err := h.svc.UploadDocuments(ctx, teacher, req.ID, tc.files)
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		expectCode(t, err, KindValidation, tc.code)
	}
	if h.store.DocumentCount() != 0 || len(h.storedFiles(t)) != 0 {
		t.Fatalf("rejected batches must leave nothing behind")
	}
	if got := testutil.ToFloat64(h.metrics.DocumentUploadFailures.WithLabelValues(ErrFileTooLarge)); got != 1 {
		t.Fatalf("expected one file_too_large failure, got %v", got)
	}
}

func TestUploadUndeclaredOversizeIsCaught(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.create(t, teacher, model.RequestTypeOvertime, "Overtime")

	liar := FileBlob{Name: "small.pdf", Size: 10, Content: bytes.NewReader(make([]byte, 6<<20))}
	_, err := h.svc.UploadDocuments(ctx, teacher, req.ID, []FileBlob{pdf("ok.pdf", 10), liar})
	expectCode(t, err, KindValidation, ErrFileTooLarge)
	if h.store.DocumentCount() != 0 {
		t.Fatalf("no rows may persist from a failed batch")
	}
	if files := h.storedFiles(t); len(files) != 0 {
		t.Fatalf("files written by the failed batch must be removed, got %v", files)
	}
}

func TestUploadStorageFailureRollsBack(t *testing.T) {
	base := newHarness(t)
	blobs := &failingBlobs{Blobs: base.blobs, failAt: 2}
	h := newHarnessWithBlobs(t, base.root, blobs)
	ctx := context.Background()
	req := h.create(t, teacher, model.RequestTypeMissionOrder, "Mission")

	_, err := h.svc.UploadDocuments(ctx, teacher, req.ID, []FileBlob{pdf("a.pdf", 10), pdf("b.pdf", 10)})
	expectCode(t, err, KindStorage, ErrStorageError)
	if h.store.DocumentCount() != 0 {
		t.Fatalf("no rows may persist from a failed batch")
	}
	if files := h.storedFiles(t); len(files) != 0 {
		t.Fatalf("first file must be removed, got %v", files)
	}
}

func TestDeleteDocument(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.create(t, teacher, model.RequestTypeMissionOrder, "Mission")
	docs, err := h.svc.UploadDocuments(ctx, teacher, req.ID, []FileBlob{pdf("a.pdf", 10), pdf("b.pdf", 10)})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	expectCode(t, h.svc.DeleteDocument(ctx, admin, req.ID, docs[0].ID), KindForbidden, ErrForbidden)
	expectCode(t, h.svc.DeleteDocument(ctx, teacher, req.ID, docs[0].ID+100), KindNotFound, ErrDocumentNotFound)
	expectCode(t, h.svc.DeleteDocument(ctx, teacher, req.ID+100, docs[0].ID), KindNotFound, ErrRequestNotFound)

	if err := h.svc.DeleteDocument(ctx, teacher, req.ID, docs[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if h.store.DocumentCount() != 1 || len(h.storedFiles(t)) != 1 {
		t.Fatalf("expected one document left")
	}
	_, _, err = h.svc.DownloadDocument(ctx, teacher, req.ID, docs[0].ID)
	expectCode(t, err, KindNotFound, ErrDocumentNotFound)

	if err := h.blobs.Delete(ctx, docs[1].StoredName); err != nil {
		t.Fatalf("remove object: %v", err)
	}
	_, _, err = h.svc.DownloadDocument(ctx, teacher, req.ID, docs[1].ID)
	expectCode(t, err, KindNotFound, ErrDocumentNotFound)
	expectCode(t, h.svc.DeleteDocument(ctx, teacher, req.ID, docs[1].ID), KindNotFound, ErrDocumentNotFound)
}

func TestDeleteDocumentRollbackRestoresFile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.create(t, teacher, model.RequestTypeMissionOrder, "Mission")
	docs, err := h.svc.UploadDocuments(ctx, teacher, req.ID, []FileBlob{pdf("a.pdf", 10)})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	h.store.Fail("DeleteDocument", io.ErrUnexpectedEOF)
	expectCode(t, h.svc.DeleteDocument(ctx, teacher, req.ID, docs[0].ID), KindInternal, ErrServerError)

	_, rc, err := h.svc.DownloadDocument(ctx, teacher, req.ID, docs[0].ID)
	if err != nil {
		t.Fatalf("document should still be downloadable: %v", err)
	}
	rc.Close()
}

func TestDocumentReadPermissions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.create(t, teacher, model.RequestTypeMissionOrder, "Mission")
	docs, err := h.svc.UploadDocuments(ctx, teacher, req.ID, []FileBlob{pdf("a.pdf", 10)})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	_, err = h.svc.ListDocuments(ctx, staff, req.ID)
	expectCode(t, err, KindForbidden, ErrForbidden)
	_, _, err = h.svc.DownloadDocument(ctx, staff, req.ID, docs[0].ID)
	expectCode(t, err, KindForbidden, ErrForbidden)

	other := h.create(t, teacher, model.RequestTypeOvertime, "Other")
	_, _, err = h.svc.DownloadDocument(ctx, teacher, other.ID, docs[0].ID)
	expectCode(t, err, KindNotFound, ErrDocumentNotFound)
}

// Teacher 3 files a mission order, the secretary approves it, then the
// teacher attaches the signed order.
func TestMissionOrderLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	req, err := h.svc.CreateRequest(ctx, teacher, CreateInput{Type: "MISSION_ORDER", Title: "Mission à Casablanca"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if req.Status != model.StatusPending || req.OwnerID != 3 {
		t.Fatalf("unexpected request: %+v", req)
	}

	approved, err := h.svc.UpdateRequest(ctx, secretary, req.ID, Patch{Status: strPtr("APPROVED"), Comment: strPtr("ok")})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != model.StatusApproved || *approved.Comment != "ok" || !approved.UpdatedAt.After(req.UpdatedAt) {
		t.Fatalf("unexpected approval: %+v", approved)
	}

	docs, err := h.svc.UploadDocuments(ctx, teacher, req.ID, []FileBlob{pdf("ordre.pdf", 2<<20)})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(docs) != 1 || docs[0].Size != 2<<20 {
		t.Fatalf("expected one 2 MiB document")
	}

	_, err = h.svc.UploadDocuments(ctx, teacher, req.ID, []FileBlob{pdf("scan.pdf", 6<<20)})
	expectCode(t, err, KindValidation, ErrFileTooLarge)

	listed, err := h.svc.ListDocuments(ctx, teacher, req.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("document count must be unchanged, got %d", len(listed))
	}
}
