// Package httpclient provides basic http functions
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Client retrieves remote documents with a bounded timeout
type Client struct {
	log        *log.Logger
	httpClient *http.Client
}

// NewClient creates a Client, requests are abandoned after timeout even when the caller's context allows longer
func NewClient(log *log.Logger, timeout time.Duration) *Client {
	return &Client{
		log:        log,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// RemoteFileInfo contains information from the response headers of a retrieved document
type RemoteFileInfo struct {
	ETag                  string
	LastModifiedTimestamp int64
	Path                  string
}

func getRemoteFileInfo(url string, resp *http.Response) RemoteFileInfo {
	result := RemoteFileInfo{
		Path: url,
	}
	result.ETag = resp.Header.Get("ETag")

	lastModifiedString := resp.Header.Get("Last-Modified")

	if len(lastModifiedString) > 0 {
		parsedTime, err := time.Parse(time.RFC1123, lastModifiedString)
		if err == nil {
			result.LastModifiedTimestamp = parsedTime.Unix()
		}
	}
	return result
}

// IsDifferent returns true if etag or lastModifiedTimestamp indicate the remote document has changed
func (df *RemoteFileInfo) IsDifferent(etag string, lastModifiedTimestamp int64) bool {
	if len(df.ETag) > 0 {
		return df.ETag != etag
	}
	return df.LastModifiedTimestamp != lastModifiedTimestamp
}

// RetrieveBytes pulls the body of url using a GET request bound to ctx.
// Any status other than 200 is returned as an error
func (c *Client) RetrieveBytes(ctx context.Context, url string) ([]byte, RemoteFileInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, RemoteFileInfo{}, fmt.Errorf("creating request for %s: %w", url, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, RemoteFileInfo{}, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer func() {
		innerErr := resp.Body.Close()
		if innerErr != nil {
			c.log.Printf("error closing http response body. error: %v\n", innerErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, RemoteFileInfo{}, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	if err != nil {
		return nil, RemoteFileInfo{}, fmt.Errorf("reading body of %s: %w", url, err)
	}
	return buf.Bytes(), getRemoteFileInfo(url, resp), nil
}
