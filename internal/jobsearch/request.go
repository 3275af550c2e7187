package jobsearch

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip, deflate, br"
)

type Item interface{}

// PostJob makes a POST request to the scraper endpoint and returns raw job
// items found in the response. The scraper wraps results in several possible
// shapes, so the items are located dynamically.
func (c *Client) PostJob(url string, payload any) ([]Item, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(c.ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req = c.setHeaders(req)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.request(req)
	if err != nil {
		return nil, err
	}

	raw, err := c.parseResponse(resp)
	if err != nil {
		return nil, err
	}

	items := findItems(raw)
	if items == nil {
		return nil, fmt.Errorf("no job items found in response")
	}

	c.logger.Debug("got response from scraper api", zap.Int("items", len(items)))

	return items, nil
}

func (c *Client) parseResponse(resp *http.Response) (any, error) {
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s: %s", resp.Status, truncateBody(data))
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	return raw, nil
}

// findItems locates the list of job objects in a loosely shaped response.
// The scraper may return {returnvalue: {data: [...]}} or a list under one of
// several well-known keys.
func findItems(obj any) []Item {
	switch v := obj.(type) {
	case map[string]any:
		if rv, ok := v["returnvalue"].(map[string]any); ok {
			if data, ok := rv["data"].([]any); ok {
				return toItems(data)
			}
		}
		for _, key := range []string{"data", "results", "items", "jobs", "listings"} {
			if list, ok := v[key].([]any); ok {
				return toItems(list)
			}
		}
		for _, value := range v {
			if list, ok := value.([]any); ok && len(list) > 0 {
				if _, ok := list[0].(map[string]any); ok {
					return toItems(list)
				}
			}
		}
	case []any:
		if len(v) > 0 {
			if _, ok := v[0].(map[string]any); ok {
				return toItems(v)
			}
		}
	}

	return nil
}

func toItems(list []any) []Item {
	items := make([]Item, 0, len(list))
	for _, entry := range list {
		items = append(items, entry)
	}
	return items
}

func (c *Client) request(req *http.Request) (*http.Response, error) {
	c.logger.Debug("make request", zap.String("url", req.URL.String()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("X-RapidAPI-Key", c.key)
	req.Header.Set("X-RapidAPI-Host", c.APIHost)
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}

func truncateBody(data []byte) string {
	const limit = 400
	if len(data) <= limit {
		return string(data)
	}
	return string(data[:limit]) + "..."
}
