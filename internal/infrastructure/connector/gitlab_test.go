package connector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/knowwhyhq/knowwhy/internal/domain/entities"
)

func newGitLabTestRepo(userID uuid.UUID, baseURL string) *fakeIntegrationRepo {
	integration := entities.NewIntegration(userID, entities.SourceGitLab, "glpat-test")
	integration.BaseURL = &baseURL
	return &fakeIntegrationRepo{integrations: []*entities.Integration{integration}}
}

func TestGitLabListCandidatesExcludesStaleItems(t *testing.T) {
	now := time.Now()
	fresh := now.Add(-2 * 24 * time.Hour)
	stale := now.Add(-10 * 24 * time.Hour)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/projects", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"id": 42, "path_with_namespace": "team/backend"},
		})
	})
	mux.HandleFunc("/api/v4/projects/42/issues", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("updated_after") == "" {
			t.Error("expected updated_after query parameter")
		}
		// The API already filters on updated_after; the stale item mimics a
		// server that returns it anyway.
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"iid": 7, "project_id": 42, "title": "Pick a database", "state": "opened",
				"web_url": "https://gitlab.example.com/team/backend/-/issues/7",
				"updated_at": fresh.Format(time.RFC3339)},
			{"iid": 3, "project_id": 42, "title": "Old discussion", "state": "closed",
				"web_url": "https://gitlab.example.com/team/backend/-/issues/3",
				"updated_at": stale.Format(time.RFC3339)},
		})
	})
	mux.HandleFunc("/api/v4/projects/42/merge_requests", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]interface{}{})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	userID := uuid.New()
	c := NewGitLabConnector(newGitLabTestRepo(userID, srv.URL), 7*24*time.Hour, 10*time.Second)

	candidates, err := c.ListCandidates(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListCandidates: %v", err)
	}

	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(candidates))
	}
	if candidates[0].Key != "42/issues/7" {
		t.Errorf("got candidate key %s, want 42/issues/7", candidates[0].Key)
	}
	if candidates[0].Title != "Pick a database" {
		t.Errorf("got title %q", candidates[0].Title)
	}
}

func TestGitLabFetchTranscript(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/projects/42/issues/7", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("PRIVATE-TOKEN") != "glpat-test" {
			t.Errorf("missing PRIVATE-TOKEN header")
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"iid": 7, "project_id": 42, "title": "Pick a database", "state": "closed",
			"description": "We need to choose between Postgres and MySQL.",
		})
	})
	mux.HandleFunc("/api/v4/projects/42/issues/7/notes", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"body": "changed the description", "system": true,
				"author": map[string]string{"name": "GitLab"}},
			{"body": "Postgres has better JSONB support", "system": false,
				"author": map[string]string{"name": "Alice"}},
			{"body": "agreed, going with Postgres", "system": false,
				"author": map[string]string{"name": "Bob"}},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	userID := uuid.New()
	c := NewGitLabConnector(newGitLabTestRepo(userID, srv.URL), 7*24*time.Hour, 10*time.Second)

	transcript, err := c.FetchTranscript(context.Background(), userID, Candidate{
		Source: entities.SourceGitLab,
		Key:    "42/issues/7",
	})
	if err != nil {
		t.Fatalf("FetchTranscript: %v", err)
	}

	if !strings.HasPrefix(transcript, "GitLab Issue: Pick a database [closed]") {
		t.Errorf("unexpected transcript header: %q", transcript)
	}
	if strings.Contains(transcript, "changed the description") {
		t.Errorf("system note leaked into transcript")
	}
	if !strings.Contains(transcript, "Alice: Postgres has better JSONB support") {
		t.Errorf("missing note line in transcript: %q", transcript)
	}
}

func TestGitLabUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	userID := uuid.New()
	c := NewGitLabConnector(newGitLabTestRepo(userID, srv.URL), 7*24*time.Hour, 10*time.Second)

	if _, err := c.ListCandidates(context.Background(), userID); err == nil {
		t.Fatal("expected error on 401 response")
	}
}
