// Package submit sends a recording together with its reference track to the
// melody comparison endpoint and reports the outcome exactly once.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/brassbook/brassbook/internal/notify"
	"github.com/brassbook/brassbook/internal/recorder"
	"github.com/brassbook/brassbook/pkg/brassbook"
	"github.com/brassbook/brassbook/pkg/brassbook/melody"
	"github.com/brassbook/brassbook/pkg/logger"
	"github.com/brassbook/brassbook/pkg/models"
	"github.com/gabriel-vasile/mimetype"
)

const (
	DefaultEndpoint = "/api/v1/compare_melodies"
	// LegacyEndpoint is the older unprefixed route, still served.
	LegacyEndpoint = "/v1/compare_melodies"

	defaultTimeout = 2 * time.Minute
)

var (
	ErrEmptyRecording = errors.New("recording is empty")
	ErrMissingToken   = errors.New("no access token")
)

// StatusError reports a non-200 answer from the comparison endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("comparison endpoint returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("comparison endpoint returned %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

type Fetcher interface {
	Fetch(ctx context.Context, source string) ([]byte, error)
}

type TokenSource interface {
	Token() (string, error)
}

type Client struct {
	baseURL  string
	endpoint string
	http     *http.Client
	tokens   TokenSource
	fetch    Fetcher
	notifier notify.Notifier
	log      brassbook.Logger
}

type Option func(*Client)

func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

func WithNotifier(n notify.Notifier) Option {
	return func(c *Client) {
		c.notifier = n
	}
}

func WithLogger(log brassbook.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

func New(baseURL string, tokens TokenSource, fetch Fetcher, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		endpoint: DefaultEndpoint,
		http:     &http.Client{Timeout: defaultTimeout},
		tokens:   tokens,
		fetch:    fetch,
		notifier: notify.NewConsole(nil),
		log:      logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit posts the reference audio of track as file1 and blob as file2.
// Exactly one alert is raised per call. The returned result is nil when the
// server answered 200 with a body that is not a comparison result.
func (c *Client) Submit(ctx context.Context, track models.Track, blob recorder.Blob) (*melody.Result, error) {
	if blob.Empty() {
		return nil, c.fail("Nothing was recorded", ErrEmptyRecording)
	}

	token, err := c.tokens.Token()
	if err != nil || token == "" {
		return nil, c.fail("Sign in before sending a recording", errors.Join(ErrMissingToken, err))
	}

	reference, err := c.fetch.Fetch(ctx, track.AudioURL)
	if err != nil {
		return nil, c.fail("Could not load the reference track", fmt.Errorf("fetching reference %s: %w", track.AudioURL, err))
	}

	body, contentType, err := buildPayload(track, reference, blob)
	if err != nil {
		return nil, c.fail("Could not prepare the recording", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.endpoint, body)
	if err != nil {
		return nil, c.fail("Could not prepare the recording", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.fail("Could not reach the comparison service", fmt.Errorf("posting recording: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, c.fail("Could not read the comparison response", fmt.Errorf("reading response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.fail("The comparison service rejected the recording", &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		})
	}

	var res melody.Result
	if err := json.Unmarshal(data, &res); err != nil {
		c.log.Warnf("Unexpected comparison response: %v", err)
		c.notifier.Notify(notify.Success, "Recording sent")
		return nil, nil
	}
	c.log.Infof("Comparison for track %s: integral %.2f", track.ID, res.Integral)
	c.notifier.Notify(notify.Success, fmt.Sprintf("Recording sent. Score: %.0f%%", res.Integral*100))
	return &res, nil
}

func (c *Client) fail(message string, err error) error {
	c.log.Errorf("Submission failed: %v", err)
	c.notifier.Notify(notify.Failure, message)
	return err
}

// buildPayload writes the multipart body with file1 (reference) and file2
// (recording).
func buildPayload(track models.Track, reference []byte, blob recorder.Blob) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	refType := mimetype.Detect(reference)
	refName := referenceName(track, refType)
	if err := writeFile(mw, "file1", refName, refType.String(), reference); err != nil {
		return nil, "", err
	}

	recType := blob.MIMEType
	if recType == "" {
		recType = mimetype.Detect(blob.Data).String()
	}
	recName := "recording" + extensionFor(recType, ".wav")
	if err := writeFile(mw, "file2", recName, recType, blob.Data); err != nil {
		return nil, "", err
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

func writeFile(mw *multipart.Writer, field, filename, contentType string, data []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, escapeQuotes(filename)))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("creating %s part: %w", field, err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("writing %s part: %w", field, err)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }

// referenceName is "<track id><ext>", taking the extension from the source
// URL, then from the sniffed type, then defaulting to .mp3.
func referenceName(track models.Track, mt *mimetype.MIME) string {
	id := track.ID
	if id == "" {
		id = "reference"
	}
	ext := ""
	if u, err := url.Parse(track.AudioURL); err == nil {
		ext = path.Ext(u.Path)
	}
	if ext == "" {
		ext = extensionFor(mt.String(), ".mp3")
	}
	return id + ext
}

func extensionFor(contentType, fallback string) string {
	if mt := mimetype.Lookup(contentType); mt != nil && mt.Extension() != "" {
		return mt.Extension()
	}
	return fallback
}
