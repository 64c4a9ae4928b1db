// Package drive implements remote.Store against the Google Drive v3 REST API
// using a service account. Uploads go through resumable upload sessions so a
// flaky kiosk uplink can push large photo files chunk by chunk.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gnomeskillet/kiosk/internal/remote"
)

const (
	defaultBaseURL   = "https://www.googleapis.com/drive/v3/files"
	defaultUploadURL = "https://www.googleapis.com/upload/drive/v3/files"

	// chunkSize is the resumable upload chunk. Drive requires a multiple of
	// 256 KiB for every chunk except the last.
	chunkSize = 8 << 20

	listPageSize = 100
)

// Options configures a Client. Zero values select production endpoints.
type Options struct {
	CredentialsFile string
	BaseURL         string
	UploadURL       string
	HTTPClient      *http.Client
}

// Client talks to the Drive API. It implements remote.Store.
type Client struct {
	hc     *http.Client
	base   string
	upload string
	tokens *tokenSource
}

var _ remote.Store = (*Client)(nil)

// New loads the service-account credentials and returns a ready client.
func New(opts Options) (*Client, error) {
	creds, err := LoadCredentials(opts.CredentialsFile)
	if err != nil {
		return nil, err
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}

	tokens, err := newTokenSource(creds, hc)
	if err != nil {
		return nil, err
	}

	c := &Client{hc: hc, base: defaultBaseURL, upload: defaultUploadURL, tokens: tokens}
	if opts.BaseURL != "" {
		c.base = opts.BaseURL
	}
	if opts.UploadURL != "" {
		c.upload = opts.UploadURL
	}
	return c, nil
}

// ListChildren lists the non-trashed children of parentID, optionally
// restricted to an exact name. Follows pagination to exhaustion.
func (c *Client) ListChildren(ctx context.Context, parentID, name string) ([]remote.Node, error) {
	q := fmt.Sprintf("'%s' in parents and trashed=false", escapeQueryTerm(parentID))
	if name != "" {
		q += fmt.Sprintf(" and name='%s'", escapeQueryTerm(name))
	}

	var nodes []remote.Node
	pageToken := ""
	for {
		params := url.Values{}
		params.Set("q", q)
		params.Set("fields", "nextPageToken,files(id,name,mimeType)")
		params.Set("pageSize", fmt.Sprint(listPageSize))
		params.Set("supportsAllDrives", "true")
		params.Set("includeItemsFromAllDrives", "true")
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		body, err := c.do(ctx, http.MethodGet, c.base+"?"+params.Encode(), "", nil)
		if err != nil {
			return nil, err
		}

		var lr listResponse
		if err := json.Unmarshal(body, &lr); err != nil {
			return nil, fmt.Errorf("drive list: %w", err)
		}
		for _, f := range lr.Files {
			nodes = append(nodes, remote.Node{ID: f.ID, Name: f.Name, MimeType: f.MimeType})
		}

		if lr.NextPageToken == "" {
			return nodes, nil
		}
		pageToken = lr.NextPageToken
	}
}

// CreateFolder creates a folder under parentID and returns its id.
func (c *Client) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	meta, err := json.Marshal(fileMeta{
		Name:     name,
		MimeType: remote.FolderMimeType,
		Parents:  []string{parentID},
	})
	if err != nil {
		return "", err
	}

	body, err := c.do(ctx, http.MethodPost,
		c.base+"?fields=id&supportsAllDrives=true", "application/json", bytes.NewReader(meta))
	if err != nil {
		return "", err
	}

	var created apiFile
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("drive create folder: %w", err)
	}
	return created.ID, nil
}

// CreateFile uploads a new file under parentID via a resumable session and
// returns its id.
func (c *Client) CreateFile(ctx context.Context, name, parentID string, r io.Reader, size int64, mimeType string) (string, error) {
	meta, err := json.Marshal(fileMeta{Name: name, Parents: []string{parentID}})
	if err != nil {
		return "", err
	}

	initURL := c.upload + "?uploadType=resumable&fields=id&supportsAllDrives=true"
	session, err := c.initSession(ctx, http.MethodPost, initURL, meta, size, mimeType)
	if err != nil {
		return "", err
	}

	body, err := c.uploadSession(ctx, session, r, size, mimeType)
	if err != nil {
		return "", err
	}

	var created apiFile
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("drive create file: %w", err)
	}
	return created.ID, nil
}

// UpdateFile overwrites an existing file's content in place, preserving its id.
func (c *Client) UpdateFile(ctx context.Context, id string, r io.Reader, size int64, mimeType string) error {
	initURL := c.upload + "/" + url.PathEscape(id) + "?uploadType=resumable&supportsAllDrives=true"
	session, err := c.initSession(ctx, http.MethodPatch, initURL, []byte("{}"), size, mimeType)
	if err != nil {
		return err
	}

	_, err = c.uploadSession(ctx, session, r, size, mimeType)
	return err
}

// initSession starts a resumable upload and returns the session URL.
func (c *Client) initSession(ctx context.Context, method, rawURL string, meta []byte, size int64, mimeType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(meta))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Upload-Content-Type", mimeType)
	req.Header.Set("X-Upload-Content-Length", fmt.Sprint(size))
	if err := c.authorize(ctx, req); err != nil {
		return "", err
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("drive upload init: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apiErrorFrom(resp)
	}
	session := resp.Header.Get("Location")
	if session == "" {
		return "", fmt.Errorf("drive upload init: no session URL")
	}
	return session, nil
}

// uploadSession streams r to the session URL in Content-Range chunks and
// returns the final response body.
func (c *Client) uploadSession(ctx context.Context, session string, r io.Reader, size int64, mimeType string) ([]byte, error) {
	if size == 0 {
		return c.putChunk(ctx, session, nil, "bytes */0", mimeType, true)
	}

	buf := make([]byte, chunkSize)
	var offset int64
	for offset < size {
		n, err := io.ReadFull(r, buf)
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			// last, short chunk
		} else if err != nil {
			return nil, fmt.Errorf("drive upload: read source: %w", err)
		}
		if n == 0 {
			return nil, fmt.Errorf("drive upload: source ended at %d of %d bytes", offset, size)
		}

		end := offset + int64(n) - 1
		rangeHdr := fmt.Sprintf("bytes %d-%d/%d", offset, end, size)
		final := end == size-1

		body, err := c.putChunk(ctx, session, buf[:n], rangeHdr, mimeType, final)
		if err != nil {
			return nil, err
		}
		offset += int64(n)
		if final {
			return body, nil
		}
	}
	return nil, fmt.Errorf("drive upload: source ended at %d of %d bytes", offset, size)
}

func (c *Client) putChunk(ctx context.Context, session string, chunk []byte, rangeHdr, mimeType string, final bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, session, bytes.NewReader(chunk))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Range", rangeHdr)
	req.Header.Set("Content-Type", mimeType)
	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("drive upload chunk: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPermanentRedirect && !final:
		// 308 Resume Incomplete: the session accepted the chunk.
		return nil, nil
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	default:
		return nil, apiErrorFrom(resp)
	}
}

// do performs an authorized metadata request and returns the response body.
func (c *Client) do(ctx context.Context, method, rawURL, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("drive request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apiErrorFrom(resp)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 8<<20))
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func apiErrorFrom(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) //nolint:errcheck // best-effort error body
	apiErr := &APIError{Status: resp.StatusCode}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		apiErr.Message = env.Error.Message
		if len(env.Error.Errors) > 0 {
			apiErr.Reason = env.Error.Errors[0].Reason
		}
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

// escapeQueryTerm escapes backslashes and single quotes for Drive query strings.
func escapeQueryTerm(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
