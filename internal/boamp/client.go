// Package boamp talks to the opendatasoft record-search API publishing
// BOAMP award notices, and ties it to the extraction engine.
package boamp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultAPIBase is the opendatasoft search endpoint serving the BOAMP
	// datasets.
	DefaultAPIBase = "https://boamp-datadila.opendatasoft.com/api/records/1.0/search/"

	noticeDataset = "boamp"
	htmlDataset   = "boamp-html"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// noticeIDRe matches a BOAMP idweb such as "24-123456" inside a notice URL.
var noticeIDRe = regexp.MustCompile(`(\d{2}-\d{3,})`)

// NoticeIDFromURL extracts the BOAMP idweb from a notice URL, or "" when the
// URL carries none.
func NoticeIDFromURL(rawURL string) string {
	return noticeIDRe.FindString(rawURL)
}

// NoticeURL builds the public notice page URL for an idweb.
func NoticeURL(idweb string) string {
	return fmt.Sprintf("https://www.boamp.fr/pages/avis/?q=idweb:%%22%s%%22", idweb)
}

// IsSearchURL reports whether a boamp.fr URL points at a search-result page
// rather than a single notice.
func IsSearchURL(rawURL string) bool {
	return strings.Contains(rawURL, "pages/recherche")
}

// Client is a thin HTTP client over the record-search API.
type Client struct {
	httpClient *http.Client
	apiBase    string
	log        *slog.Logger
}

// NewClient builds a client. An empty apiBase selects the public endpoint; a
// non-positive timeout gets a sane default.
func NewClient(apiBase string, timeout time.Duration, log *slog.Logger) *Client {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiBase:    apiBase,
		log:        log,
	}
}

type searchResponse struct {
	NHits   int `json:"nhits"`
	Records []struct {
		Fields map[string]any `json:"fields"`
	} `json:"records"`
}

// FetchNotice retrieves the record of one notice and decodes its "donnees"
// payload into a generic document. Depending on dataset age the API serves
// donnees either as a JSON string or as an inline object.
func (c *Client) FetchNotice(ctx context.Context, idweb string) (map[string]any, error) {
	params := baseParams(noticeDataset)
	params.Set("q", fmt.Sprintf("idweb:%q", idweb))
	params.Set("rows", "1")

	var parsed searchResponse
	if err := c.get(ctx, params, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Records) == 0 {
		return nil, fmt.Errorf("notice %s: no record found", idweb)
	}
	return decodeDonnees(parsed.Records[0].Fields)
}

// FetchNoticeHTML retrieves the rendered HTML of a notice from the
// boamp-html dataset. Only the unstructured fallback path uses it.
func (c *Client) FetchNoticeHTML(ctx context.Context, idweb string) (string, error) {
	params := baseParams(htmlDataset)
	params.Set("q", fmt.Sprintf("idweb:%q", idweb))
	params.Set("rows", "1")

	var parsed searchResponse
	if err := c.get(ctx, params, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Records) == 0 {
		return "", fmt.Errorf("notice %s: no html record found", idweb)
	}
	htmlContent, _ := parsed.Records[0].Fields["html"].(string)
	return htmlContent, nil
}

// SearchIDs maps a boamp.fr search-page URL onto the records API and returns
// the idweb of each hit plus the total hit count. Only q, sort and the
// refine./disjunctive. facet parameters of the page URL are forwarded.
func (c *Client) SearchIDs(ctx context.Context, searchURL string, rows int) ([]string, int, error) {
	parsed, err := url.Parse(searchURL)
	if err != nil {
		return nil, 0, fmt.Errorf("parse search url: %w", err)
	}
	if rows <= 0 {
		rows = 50
	}

	params := baseParams(noticeDataset)
	params.Set("rows", strconv.Itoa(rows))
	for key, values := range parsed.Query() {
		if len(values) == 0 {
			continue
		}
		if key == "q" || key == "sort" || strings.HasPrefix(key, "refine.") || strings.HasPrefix(key, "disjunctive.") {
			params.Set(key, values[0])
		}
	}

	var resp searchResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, 0, err
	}

	ids := make([]string, 0, len(resp.Records))
	for _, record := range resp.Records {
		if id, ok := record.Fields["idweb"].(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids, resp.NHits, nil
}

func (c *Client) get(ctx context.Context, params url.Values, out *searchResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch records: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received non-OK status code %d from records API", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode records response: %w", err)
	}
	return nil
}

func baseParams(dataset string) url.Values {
	return url.Values{
		"dataset":  {dataset},
		"timezone": {"Europe/Paris"},
		"lang":     {"fr"},
	}
}

func decodeDonnees(fields map[string]any) (map[string]any, error) {
	switch v := fields["donnees"].(type) {
	case string:
		var doc map[string]any
		if err := json.Unmarshal([]byte(v), &doc); err != nil {
			return nil, fmt.Errorf("decode donnees payload: %w", err)
		}
		return doc, nil
	case map[string]any:
		return v, nil
	default:
		return nil, errors.New("record carries no structured donnees field")
	}
}
