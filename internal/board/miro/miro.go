// Package miro implements board.Board on the Miro REST API v2.
package miro

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"

	"board-tiler/internal/board"
	"board-tiler/internal/dialer"
	"board-tiler/internal/geom"
	"board-tiler/internal/logger"

	"github.com/bytedance/sonic"
)

const (
	DefaultBaseURL = "https://api.miro.com"
	pageLimit      = 50
)

type Config struct {
	BaseURL  string
	Token    string
	BoardID  string
	ItemIDs  []string  // selection; empty selects every image on the board
	Viewport geom.Rect // the REST API has no notion of the user's viewport
	ProxyURL string
	Timeout  time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
	base string

	mu        sync.Mutex
	imageURLs map[string]string
}

func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("miro: access token is required")
	}
	if cfg.BoardID == "" {
		return nil, fmt.Errorf("miro: board id is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	hc, err := dialer.NewHTTPClient(cfg.ProxyURL, cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("miro: %w", err)
	}
	return &Client{
		cfg:       cfg,
		http:      hc,
		base:      strings.TrimRight(cfg.BaseURL, "/") + "/v2/boards/" + url.PathEscape(cfg.BoardID),
		imageURLs: make(map[string]string),
	}, nil
}

type position struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Origin string  `json:"origin,omitempty"`
}

type geometry struct {
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

type imageData struct {
	Title    string `json:"title"`
	ImageURL string `json:"imageUrl,omitempty"`
}

type item struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Data     imageData `json:"data"`
	Position position  `json:"position"`
	Geometry geometry  `json:"geometry"`
}

type itemsPage struct {
	Data   []item `json:"data"`
	Cursor string `json:"cursor"`
}

type createRequest struct {
	Title    string    `json:"title,omitempty"`
	Position position  `json:"position"`
	Geometry *geometry `json:"geometry,omitempty"`
}

type updateRequest struct {
	Data     imageData `json:"data"`
	Position position  `json:"position"`
	Geometry geometry  `json:"geometry"`
}

type resourceLink struct {
	URL string `json:"url"`
}

func (c *Client) toItem(it item) *board.Item {
	if it.Data.ImageURL != "" {
		c.mu.Lock()
		c.imageURLs[it.ID] = it.Data.ImageURL
		c.mu.Unlock()
	}
	return &board.Item{
		ID:     it.ID,
		Title:  it.Data.Title,
		X:      it.Position.X,
		Y:      it.Position.Y,
		Width:  it.Geometry.Width,
		Height: it.Geometry.Height,
	}
}

func (c *Client) Selection(ctx context.Context) ([]*board.Item, error) {
	want := make(map[string]int, len(c.cfg.ItemIDs))
	for i, id := range c.cfg.ItemIDs {
		want[id] = i
	}

	var all []item
	cursor := ""
	for {
		q := url.Values{}
		q.Set("type", "image")
		q.Set("limit", fmt.Sprint(pageLimit))
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		var page itemsPage
		if err := c.doJSON(ctx, "list items", http.MethodGet, "/items?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Data...)
		if page.Cursor == "" || len(page.Data) == 0 {
			break
		}
		cursor = page.Cursor
	}

	if len(want) == 0 {
		out := make([]*board.Item, 0, len(all))
		for _, it := range all {
			out = append(out, c.toItem(it))
		}
		return out, nil
	}

	// keep the configured order
	out := make([]*board.Item, len(c.cfg.ItemIDs))
	for _, it := range all {
		if i, ok := want[it.ID]; ok {
			out[i] = c.toItem(it)
		}
	}
	found := out[:0]
	for i, it := range out {
		if it == nil {
			logger.Warn.Printf("Item %s is not an image on board %s, skipped", c.cfg.ItemIDs[i], c.cfg.BoardID)
			continue
		}
		found = append(found, it)
	}
	return found, nil
}

func (c *Client) CreateImage(ctx context.Context, spec board.ImageSpec) (*board.Item, error) {
	meta := createRequest{
		Title:    spec.Title,
		Position: position{X: spec.Center.X, Y: spec.Center.Y, Origin: "center"},
	}
	if spec.Width > 0 {
		meta.Geometry = &geometry{Width: spec.Width}
	}
	metaJSON, err := sonic.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image metadata: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="data"`)
	h.Set("Content-Type", "application/json")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(metaJSON); err != nil {
		return nil, err
	}

	filename := spec.Filename
	if filename == "" {
		filename = "image.jpg"
	}
	fw, err := mw.CreateFormFile("resource", filename)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(spec.Data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/images", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var created item
	if err := c.do(req, "create image", &created); err != nil {
		return nil, err
	}
	return c.toItem(created), nil
}

func (c *Client) Sync(ctx context.Context, it *board.Item) error {
	body, err := sonic.Marshal(updateRequest{
		Data:     imageData{Title: it.Title},
		Position: position{X: it.X, Y: it.Y, Origin: "center"},
		Geometry: geometry{Width: it.Width},
	})
	if err != nil {
		return fmt.Errorf("failed to encode update: %w", err)
	}
	var updated item
	if err := c.doJSON(ctx, "update image", http.MethodPatch, "/images/"+url.PathEscape(it.ID), body, &updated); err != nil {
		return err
	}
	if updated.Geometry.Height > 0 {
		it.Height = updated.Geometry.Height
	}
	return nil
}

// SetMetadata is not offered by the REST API for image items.
func (c *Client) SetMetadata(ctx context.Context, it *board.Item, namespace string, data map[string]any) error {
	return fmt.Errorf("set metadata: %w", board.ErrUnsupported)
}

// ImageData downloads the original image behind an item.
func (c *Client) ImageData(ctx context.Context, it *board.Item) ([]byte, error) {
	c.mu.Lock()
	src := c.imageURLs[it.ID]
	c.mu.Unlock()
	if src == "" {
		var fetched item
		if err := c.doJSON(ctx, "get image", http.MethodGet, "/images/"+url.PathEscape(it.ID), nil, &fetched); err != nil {
			return nil, err
		}
		c.toItem(fetched)
		src = fetched.Data.ImageURL
		if src == "" {
			return nil, fmt.Errorf("image %s has no image URL: %w", it.ID, board.ErrNotFound)
		}
	}

	u, err := url.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("invalid image URL %q: %w", src, err)
	}
	q := u.Query()
	q.Set("format", "original")
	q.Set("redirect", "false")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	var link resourceLink
	if err := c.do(req, "resolve image", &link); err != nil {
		return nil, err
	}
	if link.URL == "" {
		return nil, fmt.Errorf("resolve image %s: empty download URL", it.ID)
	}

	// the resolved link is pre-signed and must not carry our token
	dl, err := http.NewRequestWithContext(ctx, http.MethodGet, link.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(dl)
	if err != nil {
		return nil, fmt.Errorf("download image %s: %w", it.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, statusError("download image", resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) Viewport(ctx context.Context) (geom.Rect, error) {
	return c.cfg.Viewport, nil
}

// ZoomTo does nothing; only the web client can move the user's view.
func (c *Client) ZoomTo(ctx context.Context, items []*board.Item) error {
	logger.Debug.Printf("ZoomTo %d items skipped for REST board", len(items))
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, body []byte, out any) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := c.newRequest(ctx, method, path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, op, out)
}

func (c *Client) do(req *http.Request, op string, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	logger.Debug.Printf("%s %s -> %d (%s)", req.Method, req.URL.Path, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	if resp.StatusCode/100 != 2 {
		return statusError(op, resp)
	}
	if out == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: failed to read response: %w", op, err)
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	se := &board.StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w", board.ErrNotFound, se)
	}
	return se
}

var _ board.Board = (*Client)(nil)
