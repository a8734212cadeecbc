package forms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPEngine_Start(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/traverse" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req StartRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.FormID != "f1" || req.Answer == nil || *req.Answer != "blue" {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(TraversalResult{
			Question:     &QuestionDescriptor{FormID: "f1", XPath: "/data/q2"},
			CurrentIndex: "question./data/q2",
			FormVersion:  "1",
		})
	}))
	defer srv.Close()

	answer := "blue"
	eng := &HTTPEngine{BaseURL: srv.URL, Client: srv.Client()}
	res, err := eng.Start(context.Background(), StartRequest{FormID: "f1", Answer: &answer})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if res.Question == nil || res.Question.XPath != "/data/q2" || res.CurrentIndex != "question./data/q2" {
		t.Fatalf("result = %+v", res)
	}
}

func TestHTTPEngine_QuestionAt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/question" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"question":{"formID":"f1","xPath":"/data/q1"},"payload":{"text":"Q1?","flow":"f1"}}`))
	}))
	defer srv.Close()

	eng := &HTTPEngine{BaseURL: srv.URL, Client: srv.Client()}
	q, pay, err := eng.QuestionAt(context.Background(), QuestionLookup{FormID: "f1", XPath: "/data/q1"})
	if err != nil {
		t.Fatalf("QuestionAt: %v", err)
	}
	if q == nil || q.XPath != "/data/q1" {
		t.Fatalf("question = %+v", q)
	}
	if pay == nil || pay.Text != "Q1?" || pay.Flow != "f1" {
		t.Fatalf("payload = %+v", pay)
	}
}

func TestHTTPEngine_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "form definition corrupt", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	eng := &HTTPEngine{BaseURL: srv.URL, Client: srv.Client()}
	if _, err := eng.Start(context.Background(), StartRequest{FormID: "f1"}); err == nil {
		t.Fatalf("expected error on non-2xx status")
	}
}
