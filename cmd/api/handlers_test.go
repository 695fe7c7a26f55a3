package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pickup/internal/config"
	"pickup/internal/roster"
)

type stubStore struct {
	students []roster.Student
	err      error
}

func (s *stubStore) ListStudents(context.Context) ([]roster.Student, error) {
	return s.students, s.err
}

func (s *stubStore) GetStudent(_ context.Context, id string) (roster.Student, error) {
	for _, st := range s.students {
		if st.ID == id {
			return st, nil
		}
	}
	return roster.Student{}, roster.ErrNotFound
}

func (s *stubStore) InsertStudent(_ context.Context, st roster.Student) (roster.Student, error) {
	if st.ID == "" {
		st.ID = "new-id"
	}
	s.students = append(s.students, st)
	return st, nil
}

func (s *stubStore) UpdateStudent(_ context.Context, id string, _ roster.StudentPatch) (roster.Student, error) {
	return s.GetStudent(context.Background(), id)
}

func (s *stubStore) DeleteStudent(_ context.Context, id string) error {
	if _, err := s.GetStudent(context.Background(), id); err != nil {
		return err
	}
	return nil
}

func (s *stubStore) SetStatus(_ context.Context, id string, _ roster.StatusKind, _ bool) error {
	_, err := s.GetStudent(context.Background(), id)
	return err
}

func (s *stubStore) ListClassSlots(context.Context) (map[string]roster.ClassSlot, error) {
	return nil, nil
}

func (s *stubStore) ReplaceClassSlots(context.Context, map[string]roster.ClassSlot) error {
	return nil
}

func newTestServer(store roster.Store) (*server, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	srv := &server{
		cfg: config.App{JWTIssuer: "test", JWTSigningKey: "test-key", AccessTTL: time.Hour, RefreshTTL: 24 * time.Hour},
		log: zap.NewNop(),
		svc: roster.NewService(store, nil, nil),
	}
	r := gin.New()
	srv.routes(r)
	return srv, r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestListStudentsFallback(t *testing.T) {
	_, r := newTestServer(&stubStore{err: errors.New("connection refused")})

	w := doJSON(r, http.MethodGet, "/api/students", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even when the store is down", w.Code)
	}
	var resp struct {
		Students []roster.Student `json:"students"`
		Fallback bool             `json:"fallback"`
		Error    string           `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Fallback || resp.Error == "" {
		t.Fatalf("fallback response must be flagged: %+v", resp)
	}
	if len(resp.Students) != 3 || resp.Students[0].Name != "김민준" {
		t.Fatalf("expected sample roster, got %+v", resp.Students)
	}
}

func TestListStudentsFiltersByDate(t *testing.T) {
	_, r := newTestServer(&stubStore{students: []roster.Student{
		{ID: "a", Name: "김민준", ClassDays: []string{"월"}},
		{ID: "b", Name: "이서연", ClassDays: []string{"화"}},
	}})

	// 2026-08-31 is a Monday.
	w := doJSON(r, http.MethodGet, "/api/students?date=2026-08-31", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Students []roster.Student `json:"students"`
		Fallback bool             `json:"fallback"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Fallback {
		t.Fatal("healthy store must not serve fallback")
	}
	if len(resp.Students) != 1 || resp.Students[0].ID != "a" {
		t.Fatalf("expected only the Monday student, got %+v", resp.Students)
	}

	w = doJSON(r, http.MethodGet, "/api/students?date=August", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad date: status = %d, want 400", w.Code)
	}
}

func TestToggleValidation(t *testing.T) {
	_, r := newTestServer(&stubStore{students: []roster.Student{{ID: "s1", Name: "김민준"}}})

	w := doJSON(r, http.MethodPost, "/api/students/s1/toggle", `{"type":"lunch"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad kind: status = %d, want 400", w.Code)
	}

	w = doJSON(r, http.MethodPost, "/api/students/ghost/toggle", `{"type":"arrival"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown student: status = %d, want 404", w.Code)
	}

	w = doJSON(r, http.MethodPost, "/api/students/s1/toggle", `{"type":"arrival"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("toggle: status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestCreateStudentRequiresName(t *testing.T) {
	_, r := newTestServer(&stubStore{})

	w := doJSON(r, http.MethodPost, "/api/students", `{"classTime":"16:30"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	w = doJSON(r, http.MethodPost, "/api/students", `{"name":"이서연"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", w.Code, w.Body.String())
	}
}

func TestRegisterDriverIssuesTokens(t *testing.T) {
	_, r := newTestServer(&stubStore{})

	w := doJSON(r, http.MethodPost, "/api/drivers/register", `{"driverId":"driver-1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("expected both tokens in response")
	}
}

func TestReportVehicleRequiresAuth(t *testing.T) {
	_, r := newTestServer(&stubStore{})

	w := doJSON(r, http.MethodPost, "/api/vehicles/bus-1/location", `{"latitude":37.5,"longitude":127.0}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without a bearer token", w.Code)
	}
}
