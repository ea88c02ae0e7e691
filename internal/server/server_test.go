package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/madaldho/designflow-app-sub000/internal/db"
	"github.com/madaldho/designflow-app-sub000/internal/domain"
	"github.com/madaldho/designflow-app-sub000/internal/engine"
	"github.com/madaldho/designflow-app-sub000/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn)
	ctx := context.Background()
	now := time.Now().UTC().Format(time.RFC3339)
	if err := e.Repo.InsertInstitution(ctx, domain.Institution{ID: "inst-1", Name: "City Press", CreatedAt: now}); err != nil {
		t.Fatalf("seed institution: %v", err)
	}
	for id, role := range map[string]domain.Role{
		"u-admin": domain.RoleAdmin,
		"u-req":   domain.RoleRequester,
		"u-des":   domain.RoleDesignerInternal,
		"u-ext":   domain.RoleDesignerExternal,
		"u-rev":   domain.RoleReviewer,
		"u-app":   domain.RoleApprover,
	} {
		u := domain.User{
			ID: id, Name: id, Email: id + "@example.test",
			Role: role, InstitutionID: "inst-1", Active: true, CreatedAt: now,
		}
		if err := e.Repo.InsertUser(ctx, u); err != nil {
			t.Fatalf("seed user %s: %v", id, err)
		}
	}
	handler, err := New(Config{Engine: e, BasePath: "/v1", Auth: AuthConfig{JWTSecret: "test-secret"}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func login(t *testing.T, srv *testServer, actorID string) map[string]string {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/auth/dev/login", map[string]any{
		"actor_id": actorID,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login for %s: %d %s", actorID, res.StatusCode, string(data))
	}
	var out DevLoginResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + out.Token}
}

func TestWorkflowOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	asReq := login(t, srv, "u-req")
	asAdmin := login(t, srv, "u-admin")
	asDes := login(t, srv, "u-des")
	asRev := login(t, srv, "u-rev")
	asApp := login(t, srv, "u-app")
	asExt := login(t, srv, "u-ext")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects", map[string]any{
		"title":      "Banner order",
		"media_type": "banner",
		"quantity":   2,
	}, asReq)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project: %d %s", res.StatusCode, string(data))
	}
	var project ProjectResponse
	if err := json.Unmarshal(data, &project); err != nil {
		t.Fatalf("unmarshal project: %v", err)
	}
	if project.Status != "draft" {
		t.Fatalf("new project status %s", project.Status)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/"+project.ID+"/assign", map[string]any{
		"assignee_id": "u-des",
		"reviewer_id": "u-rev",
		"approver_id": "u-app",
	}, asAdmin)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("assign: %d %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &project)
	if project.Status != "designing" {
		t.Fatalf("after assign status %s", project.Status)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/"+project.ID+"/proofs", map[string]any{
		"file_ref": "s3://proofs/banner-v1.pdf",
	}, asDes)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("submit proof: %d %s", res.StatusCode, string(data))
	}
	var proof domain.Proof
	_ = json.Unmarshal(data, &proof)
	if proof.Version != 1 {
		t.Fatalf("proof version %d", proof.Version)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/"+project.ID+"/reviews", map[string]any{
		"decision": "approved",
	}, asRev)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("review: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/"+project.ID+"/approvals", map[string]any{
		"decision": "approved",
	}, asApp)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("approval: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/"+project.ID+"/print-jobs", nil, asExt)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("start print: %d %s", res.StatusCode, string(data))
	}
	var job domain.PrintJob
	_ = json.Unmarshal(data, &job)

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/print-jobs/"+job.ID, map[string]any{
		"status": "completed",
	}, asExt)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("complete print: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/"+project.ID+"/pickup", map[string]any{
		"taker_name": "Budi",
	}, asExt)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("pickup: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/projects/"+project.ID, nil, asReq)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get project: %d %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &project)
	if project.Status != "picked_up" {
		t.Fatalf("final status %s", project.Status)
	}
}

func errCode(t *testing.T, data []byte) string {
	t.Helper()
	var body struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal error body %q: %v", string(data), err)
	}
	return body.Error.Code
}

func TestErrorEnvelopes(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	asReq := login(t, srv, "u-req")
	asAdmin := login(t, srv, "u-admin")
	asDes := login(t, srv, "u-des")
	asRev := login(t, srv, "u-rev")
	asExt := login(t, srv, "u-ext")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects", map[string]any{
		"title": "Flyer", "media_type": "flyer",
	}, asReq)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", res.StatusCode, string(data))
	}
	var project ProjectResponse
	_ = json.Unmarshal(data, &project)
	doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/"+project.ID+"/assign", map[string]any{
		"assignee_id": "u-des", "reviewer_id": "u-rev",
	}, asAdmin)

	// role matrix denial
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/"+project.ID+"/proofs", map[string]any{
		"file_ref": "f",
	}, asReq)
	if res.StatusCode != http.StatusForbidden || errCode(t, data) != "forbidden" {
		t.Fatalf("requester proof: %d %s", res.StatusCode, string(data))
	}

	// precondition: nothing to review yet
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/"+project.ID+"/reviews", map[string]any{
		"decision": "approved",
	}, asRev)
	if res.StatusCode != http.StatusUnprocessableEntity || errCode(t, data) != "precondition_failed" {
		t.Fatalf("review without proof: %d %s", res.StatusCode, string(data))
	}

	// invalid transition: second upload while already in review
	doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/"+project.ID+"/proofs", map[string]any{"file_ref": "f"}, asDes)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/"+project.ID+"/proofs", map[string]any{"file_ref": "f"}, asDes)
	if res.StatusCode != http.StatusConflict || errCode(t, data) != "invalid_transition" {
		t.Fatalf("double proof: %d %s", res.StatusCode, string(data))
	}

	// precondition: print before approval
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/"+project.ID+"/print-jobs", nil, asExt)
	if res.StatusCode != http.StatusUnprocessableEntity || errCode(t, data) != "precondition_failed" {
		t.Fatalf("early print: %d %s", res.StatusCode, string(data))
	}

	// missing auth
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/projects", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated: %d %s", res.StatusCode, string(data))
	}

	// unknown project
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/projects/nope", nil, asReq)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("missing project: %d %s", res.StatusCode, string(data))
	}
}

func TestDevLoginRejectsUnknownActor(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/auth/dev/login", map[string]any{
		"actor_id": "ghost",
	}, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("ghost login: %d %s", res.StatusCode, string(data))
	}
}

func TestNotificationsEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	asReq := login(t, srv, "u-req")
	asAdmin := login(t, srv, "u-admin")
	asDes := login(t, srv, "u-des")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects", map[string]any{
		"title": "Poster", "media_type": "poster",
	}, asReq)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", res.StatusCode, string(data))
	}
	var project ProjectResponse
	_ = json.Unmarshal(data, &project)
	doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/"+project.ID+"/assign", map[string]any{
		"assignee_id": "u-des",
	}, asAdmin)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/notifications?unread=true", nil, asDes)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list notifications: %d %s", res.StatusCode, string(data))
	}
	var page paginatedNotifications
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal notifications: %v", err)
	}
	if page.UnreadCount != 1 || len(page.Items) != 1 {
		t.Fatalf("expected one unread notification, got count=%d items=%d", page.UnreadCount, len(page.Items))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/notifications/"+page.Items[0].ID+"/read", nil, asDes)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("mark read: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/notifications?unread=true", nil, asDes)
	_ = json.Unmarshal(data, &page)
	if page.UnreadCount != 0 {
		t.Fatalf("unread after read: %d", page.UnreadCount)
	}
}
