// Package proverb fetches a random quote from an external HTTP API.
package proverb

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const maxBody = 64 << 10

var ErrUpstream = errors.New("proverb upstream failed")

type Quote struct {
	Content string `json:"content"`
	Author  string `json:"author,omitempty"`
}

type Options struct {
	URL                string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

type Client struct {
	url  string
	http *http.Client
}

func New(o Options) *Client {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: o.InsecureSkipVerify, // off unless configured
	}
	return &Client{url: o.URL, http: &http.Client{Timeout: o.Timeout, Transport: tr}}
}

// Random returns one quote. Every failure wraps ErrUpstream.
func (c *Client) Random(ctx context.Context) (Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return Quote{}, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return Quote{}, fmt.Errorf("%w: status %d", ErrUpstream, res.StatusCode)
	}

	q, err := decode(body)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if strings.TrimSpace(q.Content) == "" {
		return Quote{}, fmt.Errorf("%w: empty content", ErrUpstream)
	}
	return q, nil
}

// decode accepts a single object or a non-empty array of them.
func decode(body []byte) (Quote, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var qs []Quote
		if err := json.Unmarshal(body, &qs); err != nil {
			return Quote{}, err
		}
		if len(qs) == 0 {
			return Quote{}, errors.New("empty list")
		}
		return qs[0], nil
	}
	var q Quote
	err := json.Unmarshal(body, &q)
	return q, err
}
