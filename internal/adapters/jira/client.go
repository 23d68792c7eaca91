/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "os"
    "strings"
    "time"

    "github.com/HamedShams/issue-pulse/internal/config"
    "github.com/HamedShams/issue-pulse/internal/domain"
    "github.com/rs/zerolog"
)

type Client struct {
    baseURL  string
    token    string
    basic    string
    user     string
    pass     string
    http     *http.Client
    log      zerolog.Logger
    apiVer   string
    jql      string
    projects []string
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    return &Client{
        baseURL:  cfg.JiraBaseURL,
        token:    cfg.JiraPAT,
        basic:    getenvBasic(),
        user:     cfg.JiraUsername,
        pass:     cfg.JiraPassword,
        http:     &http.Client{ Timeout: cfg.HTTPTimeout },
        log:      log,
        apiVer:   cfg.JiraAPIVersion,
        jql:      cfg.JiraDefaultJQL,
        projects: cfg.JiraProjects,
    }
}

// getenvBasic reads JIRA_BASIC_AUTH from environment if present (format: user:pass base64), optional
func getenvBasic() string {
    v := ""
    if s := strings.TrimSpace(os.Getenv("JIRA_BASIC_AUTH")); s != "" { v = s }
    return v
}

// GetIssues pages through the configured JQL and returns every matching
// issue mapped to the domain shape. This is the live acquisition boundary;
// issues arrive fully in memory before any analysis starts.
func (c *Client) GetIssues(ctx context.Context) ([]domain.Issue, error) {
    jql := c.jql
    if len(c.projects) > 0 {
        jql = fmt.Sprintf("project IN (%s) AND (%s)", strings.Join(c.projects, ","), jql)
    }
    var out []domain.Issue
    startAt := 0
    for {
        res, err := c.Search(ctx, jql, startAt, 50)
        if err != nil { return nil, err }
        m, _ := res.(map[string]any)
        arr, _ := m["issues"].([]any)
        if len(arr) == 0 { break }
        for _, it := range arr {
            im, _ := it.(map[string]any)
            if im == nil { continue }
            out = append(out, mapIssue(im))
        }
        if len(arr) < 50 { break }
        startAt += 50
    }
    c.log.Info().Int("issues", len(out)).Str("jql", jql).Msg("jira issues fetched")
    return out, nil
}

// mapIssue extracts the analytically relevant fields from a raw search hit.
func mapIssue(im map[string]any) domain.Issue {
    fields, _ := im["fields"].(map[string]any)
    key := toStrAny(im["key"])
    proj := ""; if pj, ok := fields["project"].(map[string]any); ok { proj = toStrAny(pj["key"]) }
    typ := ""; if tp, ok := fields["issuetype"].(map[string]any); ok { typ = toStrAny(tp["name"]) }
    st := ""; if ss, ok := fields["status"].(map[string]any); ok { st = toStrAny(ss["name"]) }
    created := parseTimeUTC(fields["created"])
    updated := parseTimeUTC(fields["updated"])
    var labels []string
    if lv, ok := fields["labels"].([]any); ok {
        for _, x := range lv {
            if s, ok := x.(string); ok { labels = append(labels, s) }
        }
    }
    return domain.Issue{
        Key:        key,
        Project:    proj,
        Type:       typ,
        StatusLast: st,
        CreatedAt:  created,
        UpdatedAt:  updated,
        Labels:     labels,
    }
}

func (c *Client) Search(ctx context.Context, jql string, startAt, max int) (any, error) {
    if jql == "" { return nil, errors.New("jira: empty jql") }
    if c.apiVer == "2" {
        q := url.Values{}
        q.Set("jql", jql)
        if startAt > 0 { q.Set("startAt", fmt.Sprint(startAt)) }
        if max > 0 { q.Set("maxResults", fmt.Sprint(max)) }
        q.Set("fields", "*all")
        u := c.apiURL("/rest/api/2/search", q)
        return c.doJSON(ctx, http.MethodGet, u, nil)
    }
    // default to v3
    body := map[string]any{"jql": jql, "startAt": startAt, "maxResults": max}
    u := c.apiURL("/rest/api/3/search", url.Values{"fields": []string{"*all"}})
    return c.doJSON(ctx, http.MethodPost, u, body)
}

func (c *Client) apiURL(path string, q url.Values) string {
    base := strings.TrimRight(c.baseURL, "/")
    if !strings.HasPrefix(path, "/") { path = "/" + path }
    u := base + path
    if len(q) > 0 { u = u + "?" + q.Encode() }
    return u
}

func (c *Client) doJSON(ctx context.Context, method, u string, body any) (map[string]any, error) {
    if c.baseURL == "" { return nil, errors.New("jira: empty baseURL") }
    var payload []byte
    if body != nil {
        b, err := json.Marshal(body)
        if err != nil { return nil, err }
        payload = b
    }
    var lastErr error
    for attempt := 0; attempt < 3; attempt++ {
        var r io.Reader
        if payload != nil { r = strings.NewReader(string(payload)) }
        req, err := http.NewRequestWithContext(ctx, method, u, r)
        if err != nil { return nil, err }
        if body != nil { req.Header.Set("Content-Type", "application/json") }
        if c.token != "" {
            req.Header.Set("Authorization", "Bearer "+c.token)
        } else if c.user != "" && c.pass != "" {
            req.SetBasicAuth(c.user, c.pass)
        } else if c.basic != "" {
            req.Header.Set("Authorization", "Basic "+c.basic)
        }
        resp, err := c.http.Do(req)
        if err != nil { lastErr = err } else {
            defer resp.Body.Close()
            if resp.StatusCode >= 300 {
                b, _ := io.ReadAll(resp.Body)
                // retry on 429/5xx
                if resp.StatusCode == 429 || resp.StatusCode >= 500 {
                    lastErr = fmt.Errorf("jira api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
                } else {
                    return nil, fmt.Errorf("jira api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
                }
            } else {
                var out map[string]any
                if err := json.NewDecoder(resp.Body).Decode(&out); err != nil { return nil, err }
                return out, nil
            }
        }
        // backoff
        time.Sleep(time.Duration(300*(1<<attempt)) * time.Millisecond)
    }
    return nil, lastErr
}

func parseTimeUTC(v any) *time.Time {
    s, _ := v.(string)
    if s == "" { return nil }
    layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000-0700", "2006-01-02T15:04:05-0700"}
    for _, l := range layouts {
        if t, err := time.Parse(l, s); err == nil {
            tt := t.UTC(); return &tt
        }
    }
    return nil
}

func toStrAny(v any) string {
    if v == nil { return "" }
    if s, ok := v.(string); ok { return s }
    return fmt.Sprintf("%v", v)
}
