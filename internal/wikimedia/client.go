// Package wikimedia is a minimal MediaWiki Action API client covering what
// the publisher needs: login, duplicate lookup by content hash, and file
// upload with an explicit warning policy.
package wikimedia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultTimeout   = 5 * time.Minute
	defaultUserAgent = "DPLA-Wikimedia-Ingest/1.0 (+https://dp.la; tech@dp.la)"
)

// UploadError is a structured API error from an upload call.
type UploadError struct {
	Code string
	Info string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("wikimedia: upload failed: %s: %s", e.Code, e.Info)
}

// WarningsError reports that an upload was held back by warnings instead of
// completing. The caller decides which warnings to tolerate and may resubmit
// with IgnoreWarnings set.
type WarningsError struct {
	Warnings []string
}

func (e *WarningsError) Error() string {
	return fmt.Sprintf("wikimedia: upload warnings: %s", strings.Join(e.Warnings, ", "))
}

// UploadParams describes one file upload.
type UploadParams struct {
	Title          string
	File           io.Reader
	Text           string
	Comment        string
	IgnoreWarnings bool
}

// Client talks to one MediaWiki installation. Uploads are never retried
// (non-idempotent); transient failures surface to the publisher for
// classification. Safe for concurrent use after LogIn.
type Client struct {
	httpClient *http.Client
	apiURL     string
	username   string
	password   string
	userAgent  string
	csrfToken  string
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithLogger attaches a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient constructs a Client for apiURL (the api.php endpoint).
func NewClient(apiURL, username, password string, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout, Jar: jar},
		apiURL:     apiURL,
		username:   username,
		password:   password,
		userAgent:  defaultUserAgent,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LogIn performs the bot-password login flow and caches a CSRF token for
// subsequent uploads.
func (c *Client) LogIn(ctx context.Context) error {
	loginToken, err := c.fetchToken(ctx, "login")
	if err != nil {
		return fmt.Errorf("wikimedia: fetching login token: %w", err)
	}

	form := url.Values{
		"action":     {"login"},
		"format":     {"json"},
		"lgname":     {c.username},
		"lgpassword": {c.password},
		"lgtoken":    {loginToken},
	}
	var loginResp struct {
		Login struct {
			Result string `json:"result"`
			Reason string `json:"reason"`
		} `json:"login"`
	}
	if err := c.postForm(ctx, form, &loginResp); err != nil {
		return fmt.Errorf("wikimedia: login: %w", err)
	}
	if loginResp.Login.Result != "Success" {
		return fmt.Errorf("wikimedia: login rejected: %s %s", loginResp.Login.Result, loginResp.Login.Reason)
	}

	csrf, err := c.fetchToken(ctx, "csrf")
	if err != nil {
		return fmt.Errorf("wikimedia: fetching csrf token: %w", err)
	}
	c.csrfToken = csrf
	c.logger.Info().Str("user", c.username).Msg("wikimedia: logged in")
	return nil
}

// FindBySHA1 queries for an existing file with the given content hash (hex
// SHA-1). Returns the existing file title, or "" when no duplicate exists.
func (c *Client) FindBySHA1(ctx context.Context, sha1Hex string) (string, error) {
	params := url.Values{
		"action": {"query"},
		"format": {"json"},
		"list":   {"allimages"},
		"aisha1": {sha1Hex},
	}
	var resp struct {
		Query struct {
			AllImages []struct {
				Name string `json:"name"`
			} `json:"allimages"`
		} `json:"query"`
	}
	if err := c.get(ctx, params, &resp); err != nil {
		return "", fmt.Errorf("wikimedia: sha1 lookup: %w", err)
	}
	if len(resp.Query.AllImages) == 0 {
		return "", nil
	}
	return resp.Query.AllImages[0].Name, nil
}

// Upload submits one file. A response of result "Warning" is returned as a
// *WarningsError; API errors come back as *UploadError.
func (c *Client) Upload(ctx context.Context, p UploadParams) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeUploadForm(mw, c.csrfToken, p)
		mw.Close()
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, pr)
	if err != nil {
		return fmt.Errorf("wikimedia: building upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("wikimedia: upload request: %w", err)
	}
	defer resp.Body.Close()

	var uploadResp struct {
		Upload struct {
			Result   string                     `json:"result"`
			Warnings map[string]json.RawMessage `json:"warnings"`
		} `json:"upload"`
		Error *struct {
			Code string `json:"code"`
			Info string `json:"info"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploadResp); err != nil {
		return fmt.Errorf("wikimedia: decoding upload response: %w", err)
	}
	if uploadResp.Error != nil {
		return &UploadError{Code: uploadResp.Error.Code, Info: uploadResp.Error.Info}
	}
	switch uploadResp.Upload.Result {
	case "Success":
		return nil
	case "Warning":
		warnings := make([]string, 0, len(uploadResp.Upload.Warnings))
		for name := range uploadResp.Upload.Warnings {
			warnings = append(warnings, name)
		}
		return &WarningsError{Warnings: warnings}
	default:
		return fmt.Errorf("wikimedia: unexpected upload result %q", uploadResp.Upload.Result)
	}
}

func writeUploadForm(mw *multipart.Writer, token string, p UploadParams) error {
	fields := map[string]string{
		"action":   "upload",
		"format":   "json",
		"filename": p.Title,
		"text":     p.Text,
		"comment":  p.Comment,
		"token":    token,
	}
	if p.IgnoreWarnings {
		fields["ignorewarnings"] = "1"
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("file", p.Title)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, p.File)
	return err
}

// fetchToken retrieves a token of the given type.
func (c *Client) fetchToken(ctx context.Context, tokenType string) (string, error) {
	params := url.Values{
		"action": {"query"},
		"format": {"json"},
		"meta":   {"tokens"},
		"type":   {tokenType},
	}
	var resp struct {
		Query struct {
			Tokens map[string]string `json:"tokens"`
		} `json:"query"`
	}
	if err := c.get(ctx, params, &resp); err != nil {
		return "", err
	}
	token := resp.Query.Tokens[tokenType+"token"]
	if token == "" {
		return "", fmt.Errorf("empty %s token in response", tokenType)
	}
	return token, nil
}

func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	return c.doJSON(req, out)
}

func (c *Client) postForm(ctx context.Context, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
