package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
	tu "github.com/desertthunder/shelfx/internal/testing"
)

func newTestService(t *testing.T, h http.HandlerFunc) *APIService {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return NewAPIService(server.URL, server.Client())
}

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Custom BaseURL and Client", func(t *testing.T) {
			customClient := &http.Client{}
			srv := NewAPIService("http://example.com/api/v1/", customClient)

			if srv.BaseURL() != "http://example.com/api/v1/" {
				t.Errorf("expected baseURL 'http://example.com/api/v1/', got %s", srv.BaseURL())
			}
			if srv.client.GetClient() != customClient {
				t.Error("expected custom client to be used")
			}
			if srv.client.BaseURL != "http://example.com/api/v1" {
				t.Errorf("expected trailing slash to be trimmed, got %s", srv.client.BaseURL)
			}
		})

		t.Run("With Empty BaseURL", func(t *testing.T) {
			srv := NewAPIService("", nil)

			if srv.BaseURL() != "http://127.0.0.1:8000/api/v1" {
				t.Errorf("expected default baseURL, got %s", srv.BaseURL())
			}
		})

		t.Run("With Nil Client", func(t *testing.T) {
			srv := NewAPIService("http://example.com", nil)

			if srv.client.GetClient() != http.DefaultClient {
				t.Error("expected http.DefaultClient to be used")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("Successful Request With JSON Response", func(t *testing.T) {
			srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET method, got %s", r.Method)
				}
				if r.URL.Path != "/test" {
					t.Errorf("expected path '/test', got %s", r.URL.Path)
				}
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]string{"status": "success"})
			})

			resp, err := srv.Get(context.Background(), "/test")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.StatusCode != http.StatusOK {
				t.Errorf("expected status 200, got %d", resp.StatusCode)
			}
			if !resp.IsJSON {
				t.Error("expected IsJSON to be true")
			}
			data, ok := resp.JSONData.(map[string]any)
			if !ok || data["status"] != "success" {
				t.Errorf("unexpected JSON data: %v", resp.JSONData)
			}
		})

		t.Run("Non-JSON Response", func(t *testing.T) {
			srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/plain")
				io.WriteString(w, "plain text response")
			})

			resp, err := srv.Get(context.Background(), "/test")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.IsJSON {
				t.Error("expected IsJSON to be false")
			}
			if string(resp.Body) != "plain text response" {
				t.Errorf("expected body 'plain text response', got %s", string(resp.Body))
			}
		})

		t.Run("Error Status Is Returned As Response", func(t *testing.T) {
			srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				io.WriteString(w, `{"detail":"not found"}`)
			})

			resp, err := srv.Get(context.Background(), "/missing")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.StatusCode != http.StatusNotFound {
				t.Errorf("expected status 404, got %d", resp.StatusCode)
			}
		})

		t.Run("Transport Error", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("network error"))}
			srv := NewAPIService("http://example.com", client)

			_, err := srv.Get(context.Background(), "/test")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), "request failed") {
				t.Errorf("expected 'request failed' error, got %v", err)
			}
		})
	})

	t.Run("Post", func(t *testing.T) {
		t.Run("Sends Body And Headers", func(t *testing.T) {
			srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST method, got %s", r.Method)
				}
				if ct := r.Header.Get("Content-Type"); ct != "application/json" {
					t.Errorf("expected Content-Type 'application/json', got %s", ct)
				}
				body, _ := io.ReadAll(r.Body)
				if string(body) != `{"limit":3}` {
					t.Errorf("unexpected body %s", body)
				}
				w.WriteHeader(http.StatusCreated)
				io.WriteString(w, `{"processed":3}`)
			})

			resp, err := srv.Post(context.Background(), "/process", []byte(`{"limit":3}`))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.StatusCode != http.StatusCreated {
				t.Errorf("expected status 201, got %d", resp.StatusCode)
			}
			if !resp.IsJSON {
				t.Error("expected IsJSON to be true")
			}
		})
	})
}

func TestNewHTTPClient(t *testing.T) {
	t.Run("Sends Bearer Token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer secret" {
				t.Errorf("expected bearer token, got %q", got)
			}
			io.WriteString(w, `{"items":[],"next_cursor":null}`)
		}))
		defer server.Close()

		client := NewHTTPClient(context.Background(), "secret", 5*time.Second)
		if client.Timeout != 5*time.Second {
			t.Errorf("expected timeout 5s, got %v", client.Timeout)
		}

		srv := NewAPIService(server.URL, client)
		if _, err := srv.ListTasks(context.Background(), "", 10); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("No Token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "" {
				t.Errorf("expected no Authorization header, got %q", got)
			}
		}))
		defer server.Close()

		srv := NewAPIService(server.URL, NewHTTPClient(context.Background(), "", time.Second))
		if err := srv.DismissTask(context.Background(), "t1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestEnrichmentEndpoints(t *testing.T) {
	ctx := context.Background()

	t.Run("ListTasks", func(t *testing.T) {
		srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/tasks" {
				t.Errorf("expected path '/tasks', got %s", r.URL.Path)
			}
			if got := r.URL.Query().Get("cursor"); got != "c1" {
				t.Errorf("expected cursor c1, got %q", got)
			}
			if got := r.URL.Query().Get("limit"); got != "100" {
				t.Errorf("expected limit 100, got %q", got)
			}
			io.WriteString(w, `{
				"items": [{"id":"t1","status":"needs_review","work_id":"w1","confidence":0.82,
					"suggested_values":{"edition.publisher":"Tor"},"last_error":null}],
				"next_cursor": "c2"
			}`)
		})

		page, err := srv.ListTasks(ctx, "c1", 100)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(page.Items) != 1 || page.Items[0].Status != models.StatusNeedsReview {
			t.Fatalf("unexpected page %+v", page)
		}
		if page.Items[0].Confidence == nil || *page.Items[0].Confidence != 0.82 {
			t.Errorf("expected confidence 0.82")
		}
		if !page.HasNext() || *page.NextCursor != "c2" {
			t.Errorf("expected next cursor c2")
		}
	})

	t.Run("ListTasks Omits Empty Cursor", func(t *testing.T) {
		srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Has("cursor") {
				t.Error("expected no cursor parameter on first page")
			}
			io.WriteString(w, `{"items":[]}`)
		})

		page, err := srv.ListTasks(ctx, "", 50)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.HasNext() {
			t.Error("expected last page")
		}
	})

	t.Run("ProcessTasks", func(t *testing.T) {
		srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			var body map[string]int
			json.NewDecoder(r.Body).Decode(&body)
			if r.URL.Path != "/process" || body["limit"] != 10 {
				t.Errorf("unexpected request %s %v", r.URL.Path, body)
			}
			io.WriteString(w, `{"processed":4,"covers_applied":1,"metadata_applied":1,"needs_review":2,"skipped":0,"failed":0,"limit":10}`)
		})

		result, err := srv.ProcessTasks(ctx, 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Processed != 4 || result.NeedsReview != 2 || result.Limit != 10 {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("ApproveTask", func(t *testing.T) {
		srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/tasks/t1/approve" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			var body struct {
				Selections []models.FieldSelection `json:"selections"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			if len(body.Selections) != 1 || body.Selections[0].FieldKey != "cover" {
				t.Errorf("unexpected selections %+v", body.Selections)
			}
			io.WriteString(w, `{"id":"t1","status":"complete","fields_applied":["cover"]}`)
		})

		task, err := srv.ApproveTask(ctx, "t1", []models.FieldSelection{{FieldKey: "cover", Provider: "openlibrary", ProviderID: "OL1M", Value: "x"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if task.Status != models.StatusComplete {
			t.Errorf("expected complete, got %s", task.Status)
		}
	})

	t.Run("ApproveTask Sends Empty List", func(t *testing.T) {
		srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(body), `"selections":[]`) {
				t.Errorf("expected empty selections array, got %s", body)
			}
			io.WriteString(w, `{"id":"t1","status":"complete"}`)
		})

		if _, err := srv.ApproveTask(ctx, "t1", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("Retry Endpoints", func(t *testing.T) {
		tc := []struct {
			name string
			path string
			call func(*APIService) (*models.Task, error)
		}{
			{"retry", "/tasks/t1/retry", func(s *APIService) (*models.Task, error) { return s.RetryTask(ctx, "t1") }},
			{"retry-now", "/tasks/t1/retry-now", func(s *APIService) (*models.Task, error) { return s.RetryTaskNow(ctx, "t1") }},
		}
		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
					if r.Method != http.MethodPost || r.URL.Path != tt.path {
						t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
					}
					io.WriteString(w, `{"id":"t1","status":"pending"}`)
				})
				task, err := tt.call(srv)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if task.Status != models.StatusPending {
					t.Errorf("expected pending, got %s", task.Status)
				}
			})
		}
	})

	t.Run("ListSources", func(t *testing.T) {
		srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/works/w1/cover-metadata/sources" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if got := r.URL.Query().Get("languages"); got != "en,fr" {
				t.Errorf("expected languages en,fr, got %q", got)
			}
			io.WriteString(w, `{
				"items":[{"provider":"openlibrary","source_id":"OL1M","edition_id":"e1"}],
				"prefetch_compare":{"openlibrary:OL1M":{"fields":[{"field_key":"cover","candidate_available":true,"provider":"openlibrary"}]}}
			}`)
		})

		resp, err := srv.ListSources(ctx, "w1", models.SourceQuery{Languages: []string{"en", "fr"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(resp.Items) != 1 || resp.Items[0].EditionID != "e1" {
			t.Fatalf("unexpected items %+v", resp.Items)
		}
		if fields := resp.PrefetchCompare["openlibrary:OL1M"].Fields; len(fields) != 1 || !fields[0].CandidateAvailable {
			t.Errorf("unexpected prefetch bundle %+v", resp.PrefetchCompare)
		}
	})

	t.Run("CompareSource", func(t *testing.T) {
		srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if r.URL.Path != "/works/w1/cover-metadata/compare" || q.Get("provider") != "google" || q.Get("source_id") != "g7" {
				t.Errorf("unexpected request %s?%s", r.URL.Path, r.URL.RawQuery)
			}
			if q.Has("edition_id") {
				t.Error("expected no edition_id when empty")
			}
			io.WriteString(w, `{"fields":[{"field_key":"edition.publisher","current_value":null,"candidate_value":"Tor","candidate_available":true,"provider":"google"}]}`)
		})

		resp, err := srv.CompareSource(ctx, "w1", models.CompareKey{WorkID: "w1", Provider: "google", SourceID: "g7"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(resp.Fields) != 1 || resp.Fields[0].CandidateValue != "Tor" {
			t.Errorf("unexpected fields %+v", resp.Fields)
		}
	})
}

func TestAPIErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("Error Body Detail", func(t *testing.T) {
		srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			io.WriteString(w, `{"detail":"task is not awaiting review"}`)
		})

		_, err := srv.ApproveTask(ctx, "t1", nil)
		if err == nil {
			t.Fatal("expected error")
		}
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
		if StatusOf(err) != http.StatusConflict {
			t.Errorf("expected status 409, got %d", StatusOf(err))
		}
		if MessageOf(err) != "task is not awaiting review" {
			t.Errorf("unexpected message %q", MessageOf(err))
		}
	})

	t.Run("Error Without Body", func(t *testing.T) {
		srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		err := srv.DismissTask(ctx, "t1")
		if MessageOf(err) != http.StatusText(http.StatusBadGateway) {
			t.Errorf("unexpected message %q", MessageOf(err))
		}
	})

	t.Run("Transport Failure", func(t *testing.T) {
		client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))}
		srv := NewAPIService("http://example.com", client)

		_, err := srv.ListTasks(ctx, "", 10)
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Fatalf("expected ErrAPIRequest, got %v", err)
		}
		if StatusOf(err) != 0 {
			t.Errorf("expected status 0 for transport errors, got %d", StatusOf(err))
		}
	})

	t.Run("Canceled Context", func(t *testing.T) {
		srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {})
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := srv.RetryTask(cctx, "t1")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if MessageOf(err) != "request canceled" {
			t.Errorf("unexpected message %q", MessageOf(err))
		}
	})

	t.Run("Malformed Body", func(t *testing.T) {
		srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"items": [`)
		})

		_, err := srv.ListTasks(ctx, "", 10)
		if !errors.Is(err, shared.ErrDecodeResponse) {
			t.Errorf("expected ErrDecodeResponse, got %v", err)
		}
	})

	t.Run("Invalid Task In Action Response", func(t *testing.T) {
		tc := []struct {
			name string
			body string
		}{
			{"empty body", ``},
			{"empty object", `{}`},
			{"other task", `{"id":"t2","status":"complete"}`},
			{"unknown status", `{"id":"t1","status":"archived"}`},
			{"fields applied outside complete", `{"id":"t1","status":"needs_review","fields_applied":["cover"]}`},
		}
		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
					io.WriteString(w, tt.body)
				})

				task, err := srv.ApproveTask(ctx, "t1", nil)
				if !errors.Is(err, shared.ErrDecodeResponse) {
					t.Errorf("expected ErrDecodeResponse, got %v", err)
				}
				if task != nil {
					t.Errorf("expected no task, got %+v", task)
				}
			})
		}
	})

	t.Run("MessageOf Plain Error", func(t *testing.T) {
		if MessageOf(nil) != "" {
			t.Error("expected empty message for nil")
		}
		if MessageOf(errors.New("boom")) != "boom" {
			t.Error("expected plain error text")
		}
	})
}

func TestRetries(t *testing.T) {
	ctx := context.Background()

	t.Run("GET Retries On Server Error", func(t *testing.T) {
		var hits atomic.Int32
		srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			io.WriteString(w, `{"items":[]}`)
		})
		srv.WithRetries(2)
		srv.client.SetRetryWaitTime(time.Millisecond).SetRetryMaxWaitTime(5 * time.Millisecond)

		if _, err := srv.ListTasks(ctx, "", 10); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if hits.Load() != 3 {
			t.Errorf("expected 3 attempts, got %d", hits.Load())
		}
	})

	t.Run("POST Is Not Retried", func(t *testing.T) {
		var hits atomic.Int32
		srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		})
		srv.WithRetries(2)
		srv.client.SetRetryWaitTime(time.Millisecond).SetRetryMaxWaitTime(5 * time.Millisecond)

		if _, err := srv.ProcessTasks(ctx, 5); err == nil {
			t.Fatal("expected error")
		}
		if hits.Load() != 1 {
			t.Errorf("expected a single attempt, got %d", hits.Load())
		}
	})

	t.Run("Client Errors Are Not Retried", func(t *testing.T) {
		var hits atomic.Int32
		srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusNotFound)
		})
		srv.WithRetries(2)

		if _, err := srv.ListTasks(ctx, "", 10); StatusOf(err) != http.StatusNotFound {
			t.Fatalf("expected 404, got %v", err)
		}
		if hits.Load() != 1 {
			t.Errorf("expected a single attempt, got %d", hits.Load())
		}
	})
}
