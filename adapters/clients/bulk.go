//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2025 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// BulkClient sends NDJSON bulk bodies to the public API of a node
type BulkClient struct {
	client  *http.Client
	baseURL string
}

func NewBulkClient(httpClient *http.Client, baseURL string) *BulkClient {
	return &BulkClient{client: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

// BulkResponse is the decoded answer of the bulk API. Items keep their
// raw form: one object keyed by the op type per request line.
type BulkResponse struct {
	Took   int64                                `json:"took"`
	Errors bool                                 `json:"errors"`
	Items  []map[string]map[string]interface{} `json:"items"`
}

// Send posts body to /{index}/{type}/_bulk. Empty index and type are left
// out of the path.
func (c *BulkClient) Send(ctx context.Context, index, typ string, params url.Values, body []byte) (*BulkResponse, error) {
	path := "/_bulk"
	if index != "" {
		if typ != "" {
			path = "/" + url.PathEscape(typ) + path
		}
		path = "/" + url.PathEscape(index) + path
	}
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("content-type", "application/x-ndjson")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("status code: %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}
	var out BulkResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}
