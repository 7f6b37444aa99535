package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lecternlabs/lectern/internal/models"
	"github.com/lecternlabs/lectern/internal/projectsvc"
	"github.com/lecternlabs/lectern/internal/testutil"
)

// testEnv sets up a temp workspace, SQLite DB, service, and router.
// An empty authToken means auth disabled.
func testEnv(t *testing.T, authToken string) (*projectsvc.Service, http.Handler) {
	t.Helper()

	_, st := testutil.TestStore(t)
	db := testutil.TestDB(t)
	svc := projectsvc.NewService(st, db, testutil.TestGate(), nil, nil, testutil.Logger())
	router := NewRouter(svc, st, authToken != "", authToken, nil)
	return svc, router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
	return v
}

func TestProjectLifecycle(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/projects", CreateProjectRequest{Name: "talk"}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPost, "/projects", CreateProjectRequest{Name: "talk"}, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate create status = %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/projects", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	list := decodeBody[ProjectListResponse](t, w)
	if len(list.Projects) != 1 || list.Projects[0].Name != "talk" {
		t.Errorf("list = %+v", list)
	}

	doc := models.Project{Pages: []models.Page{{Content: "updated deck"}}}
	w = doJSON(t, router, http.MethodPut, "/projects/talk", doc, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("save status = %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/projects/talk", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	got := decodeBody[models.Project](t, w)
	if len(got.Pages) != 1 || got.Pages[0].Content != "updated deck" {
		t.Errorf("document = %+v", got)
	}

	w = doJSON(t, router, http.MethodDelete, "/projects/talk", nil, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/projects/talk/meta", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("meta after delete = %d", w.Code)
	}
}

func TestBearerAuth(t *testing.T) {
	_, router := testEnv(t, "sekrit")

	w := doJSON(t, router, http.MethodGet, "/projects", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no bearer = %d, want 401", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/projects", nil, map[string]string{"Authorization": "Bearer sekrit"})
	if w.Code != http.StatusOK {
		t.Errorf("valid bearer = %d, want 200", w.Code)
	}
}

func TestPasswordFlow(t *testing.T) {
	_, router := testEnv(t, "")

	doJSON(t, router, http.MethodPost, "/projects", CreateProjectRequest{Name: "talk"}, nil)

	w := doJSON(t, router, http.MethodPost, "/projects/talk/password", PasswordRequest{Password: "hunter2"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("set password status = %d, body %s", w.Code, w.Body.String())
	}
	issued := decodeBody[TokenResponse](t, w)
	if issued.Token == "" {
		t.Fatal("no token issued")
	}

	w = doJSON(t, router, http.MethodGet, "/projects/talk", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("get locked without token = %d, want 401", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/projects/talk", nil, map[string]string{projectTokenHeader: issued.Token})
	if w.Code != http.StatusOK {
		t.Errorf("get locked with token = %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodDelete, "/projects/talk/password", nil, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("clear without proof = %d, want 403", w.Code)
	}
	w = doJSON(t, router, http.MethodDelete, "/projects/talk/password",
		PasswordRequest{CurrentPassword: "wrong"}, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("clear with wrong password = %d, want 403", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/projects/talk/unlock", PasswordRequest{Password: "wrong"}, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("unlock wrong password = %d, want 403", w.Code)
	}
	w = doJSON(t, router, http.MethodPost, "/projects/talk/unlock", PasswordRequest{Password: "hunter2"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unlock status = %d", w.Code)
	}
	unlocked := decodeBody[TokenResponse](t, w)

	w = doJSON(t, router, http.MethodDelete, "/projects/talk/password", nil, map[string]string{projectTokenHeader: unlocked.Token})
	if w.Code != http.StatusNoContent {
		t.Errorf("clear password = %d, body %s", w.Code, w.Body.String())
	}
	w = doJSON(t, router, http.MethodGet, "/projects/talk", nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("get after clear = %d", w.Code)
	}
}

func TestDeleteResourceConflict(t *testing.T) {
	_, router := testEnv(t, "")

	doc := models.Project{
		Pages:     []models.Page{{Content: `\includegraphics{fig1.png}`}},
		Resources: []string{"fig1.png"},
	}
	w := doJSON(t, router, http.MethodPut, "/projects/talk", doc, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("save status = %d", w.Code)
	}

	w = doJSON(t, router, http.MethodDelete, "/projects/talk/resources/fig1.png", nil, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("delete referenced = %d, want 409", w.Code)
	}
	resp := decodeBody[errResponse](t, w)
	if len(resp.Contexts) == 0 {
		t.Errorf("conflict body carries no contexts: %+v", resp)
	}
}

func TestAttachmentUploadAndServe(t *testing.T) {
	_, st := testutil.TestStore(t)
	db := testutil.TestDB(t)
	svc := projectsvc.NewService(st, db, testutil.TestGate(), nil, nil, testutil.Logger())
	router := NewRouter(svc, st, false, "", nil)
	files := NewFileRouter(svc, st)

	doJSON(t, router, http.MethodPost, "/projects", CreateProjectRequest{Name: "talk"}, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "deck.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(fw, "pdf-bytes"); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/projects/talk/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", w.Code, w.Body.String())
	}
	up := decodeBody[AttachmentUploadResponse](t, w)
	if up.Filename != "deck.pdf" || up.Size != int64(len("pdf-bytes")) {
		t.Errorf("upload response = %+v", up)
	}

	req = httptest.NewRequest(http.MethodGet, "/attachments/talk/deck.pdf", nil)
	w = httptest.NewRecorder()
	files.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("serve status = %d", w.Code)
	}
	if w.Body.String() != "pdf-bytes" {
		t.Errorf("served body = %q", w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/attachments/talk/missing.pdf", nil)
	w = httptest.NewRecorder()
	files.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing file status = %d", w.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	doc := models.Project{Pages: []models.Page{{Content: "a rareterm lives here"}}}
	if w := doJSON(t, router, http.MethodPut, "/projects/talk", doc, nil); w.Code != http.StatusOK {
		t.Fatalf("save status = %d", w.Code)
	}

	w := doJSON(t, router, http.MethodGet, "/search?q=rareterm", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d", w.Code)
	}
	resp := decodeBody[SearchResponse](t, w)
	if len(resp.Results) != 1 || resp.Results[0].Project != "talk" {
		t.Errorf("results = %+v", resp.Results)
	}

	w = doJSON(t, router, http.MethodGet, "/search", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing query = %d, want 400", w.Code)
	}
}

func TestRenameEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	doJSON(t, router, http.MethodPost, "/projects", CreateProjectRequest{Name: "before"}, nil)
	w := doJSON(t, router, http.MethodPost, "/projects/before/rename", RenameProjectRequest{NewName: "after"}, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("rename status = %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/projects/after/meta", nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("meta after rename = %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/projects/before/meta", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("old name meta = %d, want 404", w.Code)
	}
}

func TestRemoteEndpointsWithoutRemote(t *testing.T) {
	_, router := testEnv(t, "")

	doJSON(t, router, http.MethodPost, "/projects", CreateProjectRequest{Name: "talk"}, nil)

	w := doJSON(t, router, http.MethodPut, "/projects/talk/remote", RemoteSyncRequest{Enabled: true}, nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("enable remote = %d, want 502", w.Code)
	}
	w = doJSON(t, router, http.MethodPost, "/projects/talk/sync", nil, nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("sync = %d, want 502", w.Code)
	}
}
