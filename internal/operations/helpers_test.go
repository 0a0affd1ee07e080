package operations

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"adminportal/requests/internal/db/dbtest"
	"adminportal/requests/internal/metrics"
	"adminportal/requests/internal/model"
	"adminportal/requests/internal/storage"
)

var (
	admin     = model.Identity{ID: 1, Email: "admin@example.org", Role: model.RoleAdmin}
	secretary = model.Identity{ID: 2, Email: "secretary@example.org", Role: model.RoleSecretary}
	teacher   = model.Identity{ID: 3, Email: "teacher@example.org", Role: model.RoleTeacher}
	staff     = model.Identity{ID: 4, Email: "staff@example.org", Role: model.RoleStaff}
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type harness struct {
	svc     *Service
	store   *dbtest.Store
	blobs   storage.Blobs
	root    string
	metrics *metrics.Metrics
}

func newHarness(t *testing.T, configure ...func(*Config)) *harness {
	t.Helper()
	root := t.TempDir()
	local, err := storage.NewLocal(root)
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	return newHarnessWithBlobs(t, root, local, configure...)
}

func newHarnessWithBlobs(t *testing.T, root string, blobs storage.Blobs, configure ...func(*Config)) *harness {
	t.Helper()
	store := dbtest.New()
	for _, id := range []model.Identity{admin, secretary, teacher, staff} {
		store.AddUser(model.User{ID: id.ID, Email: id.Email, Role: id.Role, Active: true})
	}
	cfg := Config{
		MaxDocumentBytes: 5 << 20,
		MaxUploadFiles:   10,
		Now:              (&clock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}).Now,
	}
	for _, fn := range configure {
		fn(&cfg)
	}
	m := metrics.New(prometheus.NewRegistry())
	return &harness{
		svc:     NewService(store, blobs, m, cfg),
		store:   store,
		blobs:   blobs,
		root:    root,
		metrics: m,
	}
}

func (h *harness) create(t *testing.T, owner model.Identity, typ model.RequestType, title string) model.Request {
	t.Helper()
	req, err := h.svc.CreateRequest(context.Background(), owner, CreateInput{Type: string(typ), Title: title})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return req
}

// storedFiles lists the visible objects in the storage root.
func (h *harness) storedFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(h.root)
	if err != nil {
		t.Fatalf("read storage dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	return names
}

func pdf(name string, size int) FileBlob {
	return FileBlob{
		Name:        name,
		ContentType: "application/pdf",
		Size:        int64(size),
		Content:     bytes.NewReader(bytes.Repeat([]byte{'%'}, size)),
	}
}

func expectCode(t *testing.T, err error, kind Kind, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s/%s, got nil", kind, code)
	}
	var opErr *Error
	if !errors.As(err, &opErr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if opErr.Kind != kind || opErr.Code != code {
		t.Fatalf("expected %s/%s, got %s/%s (%s)", kind, code, opErr.Kind, opErr.Code, opErr.Message)
	}
}

func strPtr(s string) *string { return &s }

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// failingBlobs fails the nth write.
type failingBlobs struct {
	storage.Blobs
	failAt int
	writes int
}

func (f *failingBlobs) Write(ctx context.Context, key string, r io.Reader, limit int64) (int64, error) {
	f.writes++
	if f.writes == f.failAt {
		return 0, errors.New("disk full")
	}
	return f.Blobs.Write(ctx, key, r, limit)
}
