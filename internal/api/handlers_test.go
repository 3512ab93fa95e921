package api

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/shuttle/internal/aggregate"
	"github.com/kalambet/shuttle/internal/inbox"
	"github.com/kalambet/shuttle/internal/session"
	"github.com/kalambet/shuttle/internal/storage"
	"github.com/kalambet/shuttle/internal/syncstatus"
	"github.com/kalambet/shuttle/internal/trigger"
)

const testToken = "test-token-12345"

func setupHandler(t *testing.T) (http.Handler, Deps) {
	t.Helper()
	in, err := inbox.Open(filepath.Join(t.TempDir(), "inbox"))
	if err != nil {
		t.Fatalf("inbox.Open: %v", err)
	}
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	deps := Deps{
		Session: session.New(aggregate.New(in), in, trigger.Noop{}),
		Inbox:   in,
		Store:   store,
		Status:  syncstatus.NewTracker(),
		Token:   testToken,
	}
	return NewHandler(deps), deps
}

func authReq(method, url, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)
	return req
}

func TestShare_LinkAndCaption(t *testing.T) {
	h, deps := setupHandler(t)

	body := `{"caption":"read later","urls":["https://example.com/My-Cool-Page"]}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/share", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp map[string]string
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp["title"] != "read later" {
		t.Errorf("title = %q, want caption", resp["title"])
	}
	if resp["entry_id"] == "" {
		t.Fatal("response missing entry_id")
	}

	rec, err := deps.Inbox.ReadRecord(resp["entry_id"])
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if rec.URL != "https://example.com/My-Cool-Page" {
		t.Errorf("URL = %q", rec.URL)
	}
}

func TestShare_ImageFilePersistsPayloadFirst(t *testing.T) {
	h, deps := setupHandler(t)

	img := base64.StdEncoding.EncodeToString([]byte{0xFF, 0xD8, 0xFF, 0xE0})
	body := `{"files":[{"name":"pic.jpg","content_type":"image/jpeg","data":"` + img + `"}]}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/share", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	json.NewDecoder(rr.Body).Decode(&resp)

	rec, err := deps.Inbox.ReadRecord(resp["entry_id"])
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if rec.ImagePath == "" {
		t.Fatal("record has no payload reference")
	}
	if _, err := deps.Inbox.ReadPayload(rec.ImagePath); err != nil {
		t.Errorf("payload referenced by record is unreadable: %v", err)
	}
	if rec.Subtitle != "from photo library" {
		t.Errorf("Subtitle = %q", rec.Subtitle)
	}
}

func TestShare_InvalidBase64(t *testing.T) {
	h, _ := setupHandler(t)

	body := `{"files":[{"name":"x.jpg","data":"!!!not-base64!!!"}]}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/share", body))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestShare_RequiresAuth(t *testing.T) {
	h, _ := setupHandler(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/share", strings.NewReader(`{}`))
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestWake_TriggersSync(t *testing.T) {
	h, deps := setupHandler(t)

	triggered := make(chan struct{}, 1)
	deps.Status.OnTrigger(func() { triggered <- struct{}{} })

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/wake", ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	select {
	case <-triggered:
	default:
		t.Error("wake did not trigger a sync")
	}
}

func TestStatus_ReportsTrackerState(t *testing.T) {
	h, deps := setupHandler(t)
	deps.Status.Succeed(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/status", ""))

	var got syncstatus.Status
	json.NewDecoder(rr.Body).Decode(&got)
	if got.State != syncstatus.StateSuccess {
		t.Errorf("state = %v, want success", got.State)
	}
	if !got.Online {
		t.Error("online = false, want true")
	}
}

func TestListItems_Paginated(t *testing.T) {
	h, deps := setupHandler(t)

	for i, id := range []string{"pkg-a", "pkg-b"} {
		item := storage.Item{
			ID:         id,
			Title:      id,
			CreatedAt:  time.Date(2026, 3, 1, 10, i, 0, 0, time.UTC),
			ImportedAt: time.Now().UTC(),
		}
		if err := deps.Store.SaveItem(item); err != nil {
			t.Fatalf("SaveItem: %v", err)
		}
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/items?limit=1", ""))

	var items []itemResponse
	json.NewDecoder(rr.Body).Decode(&items)
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}
	if items[0].ID != "pkg-b" {
		t.Errorf("first item = %q, want newest", items[0].ID)
	}
}

func TestListInbox_PendingEntries(t *testing.T) {
	h, _ := setupHandler(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/share", `{"caption":"pending"}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("share status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/inbox", ""))

	var resp struct {
		Pending []string `json:"pending"`
	}
	json.NewDecoder(rr.Body).Decode(&resp)
	if len(resp.Pending) != 1 {
		t.Errorf("pending = %v, want one entry", resp.Pending)
	}
}
