package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/knowwhyhq/knowwhy/errors"
	"github.com/knowwhyhq/knowwhy/internal/domain/entities"
	"github.com/knowwhyhq/knowwhy/internal/domain/repositories"
)

const defaultGitLabBaseURL = "https://gitlab.com"

// GitLabConnector discovers decision candidates in GitLab issues and merge
// requests via the REST v4 API.
type GitLabConnector struct {
	integrations repositories.IntegrationRepository
	recency      time.Duration
	client       *http.Client
}

// NewGitLabConnector creates a new GitLab connector
func NewGitLabConnector(integrations repositories.IntegrationRepository, recency, timeout time.Duration) *GitLabConnector {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GitLabConnector{
		integrations: integrations,
		recency:      recency,
		client:       &http.Client{Timeout: timeout},
	}
}

// Name returns the source this connector serves
func (c *GitLabConnector) Name() entities.DecisionSource {
	return entities.SourceGitLab
}

type gitlabProject struct {
	ID                int64  `json:"id"`
	PathWithNamespace string `json:"path_with_namespace"`
}

type gitlabItem struct {
	IID         int64     `json:"iid"`
	ProjectID   int64     `json:"project_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	State       string    `json:"state"`
	WebURL      string    `json:"web_url"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type gitlabNote struct {
	Body   string `json:"body"`
	System bool   `json:"system"`
	Author struct {
		Name     string `json:"name"`
		Username string `json:"username"`
	} `json:"author"`
}

func (c *GitLabConnector) credentials(ctx context.Context, userID uuid.UUID) (baseURL, token string, err error) {
	integration, err := c.integrations.FindByUserAndSource(ctx, userID, entities.SourceGitLab)
	if err != nil {
		if err == entities.ErrIntegrationNotFound {
			return "", "", errors.ErrNotConnected(string(entities.SourceGitLab))
		}
		return "", "", err
	}
	base := defaultGitLabBaseURL
	if integration.BaseURL != nil && *integration.BaseURL != "" {
		base = strings.TrimRight(*integration.BaseURL, "/")
	}
	return base, integration.AccessToken, nil
}

func (c *GitLabConnector) get(ctx context.Context, baseURL, token, path string, query url.Values, out interface{}) error {
	endpoint := baseURL + "/api/v4" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("PRIVATE-TOKEN", token)

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.ErrUpstream(string(entities.SourceGitLab), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errors.ErrUpstream(string(entities.SourceGitLab),
			fmt.Errorf("gitlab returned status %d for %s", resp.StatusCode, path))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.ErrUpstream(string(entities.SourceGitLab), err)
	}
	return nil
}

// ListCandidates returns recent issues and merge requests across the user's
// projects. Items last updated outside the recency window are excluded.
func (c *GitLabConnector) ListCandidates(ctx context.Context, userID uuid.UUID) ([]Candidate, error) {
	baseURL, token, err := c.credentials(ctx, userID)
	if err != nil {
		return nil, err
	}

	var projects []gitlabProject
	query := url.Values{}
	query.Set("membership", "true")
	query.Set("simple", "true")
	query.Set("per_page", "50")
	if err := c.get(ctx, baseURL, token, "/projects", query, &projects); err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-c.recency)
	var candidates []Candidate

	for _, project := range projects {
		for _, kind := range []string{"issues", "merge_requests"} {
			var items []gitlabItem
			itemQuery := url.Values{}
			itemQuery.Set("updated_after", cutoff.Format(time.RFC3339))
			itemQuery.Set("per_page", "50")
			path := fmt.Sprintf("/projects/%d/%s", project.ID, kind)
			if err := c.get(ctx, baseURL, token, path, itemQuery, &items); err != nil {
				return nil, err
			}

			for _, item := range items {
				if item.UpdatedAt.Before(cutoff) {
					continue
				}
				candidates = append(candidates, Candidate{
					Source:    entities.SourceGitLab,
					Key:       fmt.Sprintf("%d/%s/%d", project.ID, kind, item.IID),
					Title:     item.Title,
					Link:      item.WebURL,
					UpdatedAt: item.UpdatedAt,
				})
			}
		}
	}

	return candidates, nil
}

// FetchTranscript renders an issue or merge request as a discussion
// transcript: a header with title, state and description, then non-system
// notes as "author: body" lines.
func (c *GitLabConnector) FetchTranscript(ctx context.Context, userID uuid.UUID, candidate Candidate) (string, error) {
	baseURL, token, err := c.credentials(ctx, userID)
	if err != nil {
		return "", err
	}

	parts := strings.Split(candidate.Key, "/")
	if len(parts) != 3 {
		return "", errors.ErrInvalidArgument(fmt.Sprintf("malformed gitlab candidate key: %s", candidate.Key))
	}
	projectID, kind, iid := parts[0], parts[1], parts[2]

	var item gitlabItem
	itemPath := fmt.Sprintf("/projects/%s/%s/%s", projectID, kind, iid)
	if err := c.get(ctx, baseURL, token, itemPath, nil, &item); err != nil {
		return "", err
	}

	var notes []gitlabNote
	notesQuery := url.Values{}
	notesQuery.Set("sort", "asc")
	notesQuery.Set("per_page", "100")
	if err := c.get(ctx, baseURL, token, itemPath+"/notes", notesQuery, &notes); err != nil {
		return "", err
	}

	label := "Issue"
	if kind == "merge_requests" {
		label = "Merge Request"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "GitLab %s: %s [%s]\n", label, item.Title, item.State)
	if item.Description != "" {
		b.WriteString(item.Description)
		b.WriteString("\n")
	}

	for _, note := range notes {
		if note.System || note.Body == "" {
			continue
		}
		author := note.Author.Name
		if author == "" {
			author = note.Author.Username
		}
		fmt.Fprintf(&b, "%s: %s\n", author, note.Body)
	}

	return strings.TrimRight(b.String(), "\n"), nil
}

// RegisterProjectHook installs a webhook on a project so issue and merge
// request updates flow back without polling. Best-effort at connect time.
func (c *GitLabConnector) RegisterProjectHook(ctx context.Context, userID uuid.UUID, projectID int64, hookURL, secret string) error {
	baseURL, token, err := c.credentials(ctx, userID)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("url", hookURL)
	form.Set("token", secret)
	form.Set("issues_events", "true")
	form.Set("merge_requests_events", "true")
	form.Set("note_events", "true")

	endpoint := fmt.Sprintf("%s/api/v4/projects/%d/hooks", baseURL, projectID)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("PRIVATE-TOKEN", token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.ErrUpstream(string(entities.SourceGitLab), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errors.ErrUpstream(string(entities.SourceGitLab),
			fmt.Errorf("gitlab hook registration returned status %d", resp.StatusCode))
	}
	return nil
}

// ListProjects returns the user's member projects, used at connect time to
// register hooks.
func (c *GitLabConnector) ListProjects(ctx context.Context, userID uuid.UUID) ([]int64, error) {
	baseURL, token, err := c.credentials(ctx, userID)
	if err != nil {
		return nil, err
	}

	var projects []gitlabProject
	query := url.Values{}
	query.Set("membership", "true")
	query.Set("simple", "true")
	query.Set("per_page", "50")
	if err := c.get(ctx, baseURL, token, "/projects", query, &projects); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(projects))
	for _, project := range projects {
		ids = append(ids, project.ID)
	}
	return ids, nil
}
