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
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/weaviate/bulkshard/adapters/handlers/rest/clusterapi"
	"github.com/weaviate/bulkshard/entities/bulk"
	enterrors "github.com/weaviate/bulkshard/entities/errors"
)

// replicationClient talks to the cluster API of other nodes
type replicationClient struct {
	client *http.Client
	*retryer
	maxRetries int
}

func NewReplicationClient(httpClient *http.Client) *replicationClient {
	return &replicationClient{
		client:     httpClient,
		retryer:    newRetryer(),
		maxRetries: 9,
	}
}

// ApplyBulk sends req to the replica copy at host
func (c *replicationClient) ApplyBulk(ctx context.Context, host string, req *bulk.ReplicaRequest) error {
	body, err := clusterapi.IndicesPayloads.ReplicaBulk.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	path := fmt.Sprintf("/replicas/indices/%s/shards/%d/bulk",
		url.PathEscape(req.ShardID.Index), req.ShardID.Shard)

	return c.retry(ctx, c.maxRetries, func(ctx context.Context) (bool, error) {
		hreq, err := newHttpRequest(ctx, http.MethodPost, host, path, bytes.NewReader(body))
		if err != nil {
			return false, fmt.Errorf("create http request: %w", err)
		}
		clusterapi.IndicesPayloads.ReplicaBulk.SetContentTypeHeaderReq(hreq)
		return c.do(hreq, req.ShardID.Index, req.ShardID.Shard)
	})
}

// PutMapping sends fields the local primary added to the node at host
func (c *replicationClient) PutMapping(ctx context.Context, host, index, typ string, fields []string) error {
	body, err := clusterapi.IndicesPayloads.Mapping.Marshal(clusterapi.MappingUpdate{Type: typ, Fields: fields})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	path := fmt.Sprintf("/replicas/indices/%s/mapping", url.PathEscape(index))

	return c.retry(ctx, c.maxRetries, func(ctx context.Context) (bool, error) {
		hreq, err := newHttpRequest(ctx, http.MethodPut, host, path, bytes.NewReader(body))
		if err != nil {
			return false, fmt.Errorf("create http request: %w", err)
		}
		clusterapi.IndicesPayloads.Mapping.SetContentTypeHeaderReq(hreq)
		return c.do(hreq, index, -1)
	})
}

func newHttpRequest(ctx context.Context, method, host, path string, body io.Reader) (*http.Request, error) {
	u := url.URL{Scheme: "http", Host: host, Path: path}
	return http.NewRequestWithContext(ctx, method, u.String(), body)
}

// do sends req once. It asks for a retry on connection errors, on 429 and
// on server errors that carry no typed status.
func (c *replicationClient) do(req *http.Request, index string, shard int) (bool, error) {
	res, err := c.client.Do(req)
	if err != nil {
		return req.Context().Err() == nil, fmt.Errorf("connect: %w", err)
	}
	defer res.Body.Close()

	code := res.StatusCode
	if code == http.StatusOK || code == http.StatusNoContent {
		return false, nil
	}
	err = clusterapi.IndicesPayloads.Error.Read(index, shard, code, res.Body)
	var se *enterrors.Error
	untyped := errors.As(err, &se) && se.Code == enterrors.StatusInternal
	shouldRetry := code == http.StatusTooManyRequests || (code >= 500 && untyped)
	return shouldRetry, err
}
