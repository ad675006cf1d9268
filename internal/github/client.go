// Package github pulls file trees and contents from public repositories
// through the unauthenticated REST API and raw.githubusercontent.com.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"examcraft/internal/domain"
)

const (
	apiBaseURL  = "https://api.github.com"
	rawBaseURL  = "https://raw.githubusercontent.com"
	userAgent   = "examcraft-worker"
	acceptJSON  = "application/vnd.github+json"
	maxFileSize = 100 * 1024 // skip individual files larger than 100 KB
	maxFiles    = 80         // cap total files fetched per repo
)

var docExtensions = map[string]bool{
	".md": true, ".mdx": true, ".txt": true, ".rst": true, ".adoc": true,
}

var codeExtensions = map[string]bool{
	".ts": true, ".tsx": true, ".js": true, ".jsx": true, ".py": true,
	".go": true, ".rs": true, ".java": true, ".c": true, ".cpp": true,
	".h": true, ".cs": true, ".rb": true, ".swift": true, ".kt": true,
	".vue": true, ".svelte": true,
}

var excludedDirs = []string{
	"node_modules/", "vendor/", "dist/", "build/",
	".git/", "__pycache__/", ".next/",
}

var extensionLanguage = map[string]string{
	".ts": "typescript", ".tsx": "typescript", ".js": "javascript",
	".jsx": "javascript", ".py": "python", ".go": "go", ".rs": "rust",
	".java": "java", ".c": "c", ".cpp": "cpp", ".h": "c", ".cs": "csharp",
	".rb": "ruby", ".swift": "swift", ".kt": "kotlin", ".vue": "vue",
	".svelte": "svelte", ".md": "markdown", ".mdx": "markdown",
	".txt": "text", ".rst": "restructuredtext", ".adoc": "asciidoc",
}

// ParsedURL identifies a repository plus an optional ref and subdirectory.
type ParsedURL struct {
	Owner   string
	Repo    string
	Ref     string
	Subpath string
}

// TreeEntry is one blob of a repository tree.
type TreeEntry struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
	Size *int64 `json:"size,omitempty"`
	URL  string `json:"url"`
}

type treeResponse struct {
	SHA       string      `json:"sha"`
	Tree      []TreeEntry `json:"tree"`
	Truncated bool        `json:"truncated"`
}

type repoResponse struct {
	DefaultBranch string `json:"default_branch"`
}

// Client talks to the public GitHub API and the raw content host.
type Client struct {
	httpClient *http.Client
	apiBase    string
	rawBase    string
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiBase:    apiBaseURL,
		rawBase:    rawBaseURL,
	}
}

// NewClientWithBase is used by tests to point the client at a stub server.
func NewClientWithBase(httpClient *http.Client, apiBase, rawBase string) *Client {
	return &Client{httpClient: httpClient, apiBase: apiBase, rawBase: rawBase}
}

// ParseURL extracts owner, repo, optional ref and subpath from a github.com
// web URL. Supported shapes:
//
//	https://github.com/owner/repo
//	https://github.com/owner/repo/tree/branch
//	https://github.com/owner/repo/tree/branch/path/to/dir
func ParseURL(rawURL string) (*ParsedURL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, domain.NewInvalidInputError(fmt.Sprintf("Invalid URL: %s", rawURL))
	}
	if parsed.Hostname() != "github.com" {
		return nil, domain.NewInvalidInputError(fmt.Sprintf("Not a github.com URL: %s", rawURL))
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, domain.NewInvalidInputError(fmt.Sprintf("Cannot extract owner/repo from URL: %s", rawURL))
	}

	result := &ParsedURL{Owner: parts[0], Repo: parts[1]}
	if len(parts) >= 4 && parts[2] == "tree" {
		result.Ref = parts[3]
		if len(parts) > 4 {
			result.Subpath = strings.Join(parts[4:], "/")
		}
	}
	return result, nil
}

func (c *Client) apiGet(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+path, nil)
	if err != nil {
		return domain.NewInternalError("failed to build GitHub API request", err)
	}
	req.Header.Set("Accept", acceptJSON)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewInternalError("GitHub API request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return domain.NewInternalError(
			fmt.Sprintf("GitHub API %d for %s: %s", resp.StatusCode, path, string(body)), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewInternalError("failed to decode GitHub API response", err)
	}
	return nil
}

// FetchRepoTree fetches the recursive blob list for a repo. When ref is
// empty the default branch is resolved first; the resolved ref is returned.
func (c *Client) FetchRepoTree(ctx context.Context, owner, repo, ref string) (string, []TreeEntry, error) {
	if ref == "" {
		var info repoResponse
		if err := c.apiGet(ctx, fmt.Sprintf("/repos/%s/%s", owner, repo), &info); err != nil {
			return "", nil, err
		}
		ref = info.DefaultBranch
	}

	var tree treeResponse
	if err := c.apiGet(ctx, fmt.Sprintf("/repos/%s/%s/git/trees/%s?recursive=true", owner, repo, ref), &tree); err != nil {
		return "", nil, err
	}

	files := make([]TreeEntry, 0, len(tree.Tree))
	for _, entry := range tree.Tree {
		if entry.Type == "blob" {
			files = append(files, entry)
		}
	}
	return ref, files, nil
}

// FetchFileContent fetches raw file content without spending API quota.
func (c *Client) FetchFileContent(ctx context.Context, owner, repo, ref, path string) (string, error) {
	fileURL := fmt.Sprintf("%s/%s/%s/%s/%s", c.rawBase, owner, repo, ref, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", domain.NewInternalError("failed to build raw content request", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", domain.NewInternalError("raw content request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", domain.NewInternalError(fmt.Sprintf("Failed to fetch %s: HTTP %d", path, resp.StatusCode), nil)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.NewInternalError("failed to read raw content", err)
	}
	return string(body), nil
}

func extension(path string) string {
	dot := strings.LastIndexByte(path, '.')
	if dot == -1 {
		return ""
	}
	return strings.ToLower(path[dot:])
}

func isExcludedDir(path string) bool {
	for _, dir := range excludedDirs {
		if strings.HasPrefix(path, dir) || strings.Contains(path, "/"+dir) {
			return true
		}
	}
	return false
}

// FilterFiles keeps only supported doc/code blobs, respecting the per-file
// size limit, excluded directories and the optional subpath prefix. Above
// the file cap, docs win over code, each group sorted by path.
func FilterFiles(files []TreeEntry, subpath string) []TreeEntry {
	filtered := make([]TreeEntry, 0, len(files))
	for _, f := range files {
		if isExcludedDir(f.Path) {
			continue
		}
		if f.Size != nil && *f.Size > maxFileSize {
			continue
		}
		ext := extension(f.Path)
		if !docExtensions[ext] && !codeExtensions[ext] {
			continue
		}
		filtered = append(filtered, f)
	}

	if subpath != "" {
		prefix := subpath
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		kept := filtered[:0]
		for _, f := range filtered {
			if strings.HasPrefix(f.Path, prefix) || f.Path == subpath {
				kept = append(kept, f)
			}
		}
		filtered = kept
	}

	if len(filtered) > maxFiles {
		var docs, code []TreeEntry
		for _, f := range filtered {
			if docExtensions[extension(f.Path)] {
				docs = append(docs, f)
			} else {
				code = append(code, f)
			}
		}
		sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
		sort.Slice(code, func(i, j int) bool { return code[i].Path < code[j].Path })
		filtered = append(docs, code...)[:maxFiles]
	}
	return filtered
}

// IsDocFile reports whether the path carries a documentation extension.
func IsDocFile(path string) bool {
	return docExtensions[extension(path)]
}

// DetectLanguage maps a file extension to a language label for document
// metadata, or "" when unknown.
func DetectLanguage(path string) string {
	return extensionLanguage[extension(path)]
}

// BuildFileURL is the github.com web URL for a file at a ref.
func BuildFileURL(owner, repo, ref, path string) string {
	return fmt.Sprintf("https://github.com/%s/%s/blob/%s/%s", owner, repo, ref, path)
}
