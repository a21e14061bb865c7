package share

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAPIBase = "https://api.github.com"
	userAgent      = "kast-playground"
)

// GistClient creates public gists.
type GistClient interface {
	CreateGist(ctx context.Context, filename, content string) (string, error)
}

// PATClient talks to the GitHub REST API with a personal access token.
type PATClient struct {
	token       string
	apiBase     string
	description string
	httpClient  *http.Client
}

// NewPATClient creates a gist client. An empty apiBase means api.github.com.
func NewPATClient(token, apiBase, description string) *PATClient {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	return &PATClient{
		token:       token,
		apiBase:     strings.TrimRight(apiBase, "/"),
		description: description,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type gistFile struct {
	Content string `json:"content"`
}

type createGistRequest struct {
	Description string              `json:"description"`
	Public      bool                `json:"public"`
	Files       map[string]gistFile `json:"files"`
}

// CreateGist creates a public single-file gist and returns its html_url.
func (c *PATClient) CreateGist(ctx context.Context, filename, content string) (string, error) {
	body, err := json.Marshal(createGistRequest{
		Description: c.description,
		Public:      true,
		Files:       map[string]gistFile{filename: {Content: content}},
	})
	if err != nil {
		return "", err
	}

	var gist struct {
		HTMLURL string `json:"html_url"`
	}
	if err := c.post(ctx, "/gists", body, &gist); err != nil {
		return "", fmt.Errorf("create gist: %w", err)
	}
	if gist.HTMLURL == "" {
		return "", fmt.Errorf("create gist: response has no html_url")
	}
	return gist.HTMLURL, nil
}

func (c *PATClient) post(ctx context.Context, endpoint string, body []byte, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("GitHub API %s returned %d: %s", endpoint, resp.StatusCode, string(msg))
	}
	return json.NewDecoder(resp.Body).Decode(result)
}
