package notion

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testClient(url string) *Client {
	c := New("secret-token")
	c.BaseURL = url
	return c
}

func TestUpdateCheckbox(t *testing.T) {
	var (
		gotMethod, gotPath, gotAuth, gotVersion string
		gotBody                                 []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotVersion = r.Header.Get("Notion-Version")
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	if err := c.UpdateCheckbox(context.Background(), "page-1", PropArrivalStatus, true); err != nil {
		t.Fatalf("update checkbox: %v", err)
	}
	if gotMethod != http.MethodPatch || gotPath != "/v1/pages/page-1" {
		t.Fatalf("unexpected request %s %s", gotMethod, gotPath)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotVersion != defaultVersion {
		t.Fatalf("unexpected version header %q", gotVersion)
	}
	var body struct {
		Properties map[string]struct {
			Checkbox bool `json:"checkbox"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(gotBody, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body.Properties[PropArrivalStatus].Checkbox {
		t.Fatal("expected checkbox true in payload")
	}
}

func TestQueryDatabasePagination(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Write([]byte(`{"results":[{"id":"p1"}],"has_more":true,"next_cursor":"c1"}`))
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["start_cursor"] != "c1" {
			t.Errorf("expected start_cursor c1, got %v", body["start_cursor"])
		}
		w.Write([]byte(`{"results":[{"id":"p2"}],"has_more":false,"next_cursor":null}`))
	}))
	defer srv.Close()

	pages, err := testClient(srv.URL).QueryDatabase(context.Background(), "db-1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(pages) != 2 || pages[0].ID != "p1" || pages[1].ID != "p2" {
		t.Fatalf("unexpected pages: %+v", pages)
	}
}

func TestQueryDatabaseErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid token"}`))
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).QueryDatabase(context.Background(), "db-1"); err == nil {
		t.Fatal("expected error on 401 response")
	}
}

func TestStudentFromPage(t *testing.T) {
	checked := true
	p := Page{
		ID: "page-9",
		Properties: map[string]Property{
			PropName:          {Title: []RichText{{PlainText: "김민준"}}},
			PropShortID:       {RichText: []RichText{{PlainText: "7"}}},
			PropClassTime:     {RichText: []RichText{{PlainText: "16:40"}}},
			PropClassDays:     {MultiSelect: []SelectOption{{Name: "월"}, {Name: "수"}}},
			PropArrivalStatus: {Checkbox: &checked},
		},
	}
	st := StudentFromPage(p)
	if st.NotionPageID != "page-9" || st.Name != "김민준" || st.ShortID != "7" {
		t.Fatalf("unexpected student: %+v", st)
	}
	if st.ClassTime != "16:30" {
		t.Fatalf("expected normalized class time 16:30, got %s", st.ClassTime)
	}
	if len(st.ClassDays) != 2 || st.ClassDays[0] != "월" {
		t.Fatalf("unexpected class days: %v", st.ClassDays)
	}
	if !st.ArrivalStatus || st.DepartureStatus {
		t.Fatalf("unexpected statuses: %+v", st)
	}
}

func TestEnabled(t *testing.T) {
	if (&Client{}).Enabled() {
		t.Fatal("client without token should be disabled")
	}
	var nilClient *Client
	if nilClient.Enabled() {
		t.Fatal("nil client should be disabled")
	}
	if !New("tok").Enabled() {
		t.Fatal("client with token should be enabled")
	}
}
