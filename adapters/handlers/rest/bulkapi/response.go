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

package bulkapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/weaviate/bulkshard/entities/bulk"
	enterrors "github.com/weaviate/bulkshard/entities/errors"
)

type bulkResponse struct {
	Took   int64                 `json:"took"`
	Errors bool                  `json:"errors"`
	Items  []map[string]itemBody `json:"items"`
}

type itemBody struct {
	Index   string          `json:"_index"`
	Type    string          `json:"_type"`
	ID      string          `json:"_id"`
	Version int64           `json:"_version,omitempty"`
	Result  string          `json:"result,omitempty"`
	Created *bool           `json:"created,omitempty"`
	Found   *bool           `json:"found,omitempty"`
	Get     *bulk.GetResult `json:"get,omitempty"`
	Status  int             `json:"status"`
	Error   *errorBody      `json:"error,omitempty"`
}

type errorBody struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
	Line   int    `json:"line,omitempty"`
}

type errorResponse struct {
	Error  errorBody `json:"error"`
	Status int       `json:"status"`
}

func newBulkResponse(items []*bulk.ItemResponse, took time.Duration) *bulkResponse {
	resp := &bulkResponse{
		Took:  took.Milliseconds(),
		Items: make([]map[string]itemBody, len(items)),
	}
	for i, item := range items {
		body := itemBody{Index: item.Index, Type: item.Type, ID: item.ID}
		switch o := item.Outcome.(type) {
		case bulk.Success:
			body.Version = o.Version
			body.Result = string(o.Result)
			body.Get = o.Get
			body.Status = http.StatusOK
			switch item.OpType {
			case bulk.OpIndex, bulk.OpCreate, bulk.OpUpdate:
				created := o.Created
				body.Created = &created
				if created {
					body.Status = http.StatusCreated
				}
			case bulk.OpDelete:
				found := o.Found
				body.Found = &found
				if !found {
					body.Status = http.StatusNotFound
				}
			}
		case bulk.Failure:
			resp.Errors = true
			body.Status = o.Status
			body.Error = &errorBody{Type: string(o.Kind), Reason: o.Message()}
		}
		resp.Items[i] = map[string]itemBody{string(item.OpType): body}
	}
	return resp
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	body := errorBody{Type: string(enterrors.KindOf(err)), Reason: err.Error()}
	var pe *enterrors.ParseError
	if errors.As(err, &pe) {
		body.Line = pe.Line
	}
	h.logger.WithError(err).WithField("status", status).Debug("bulk request rejected")
	h.writeJSON(w, status, errorResponse{Error: body, Status: status})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	if h.requests != nil {
		h.requests.WithLabelValues(strconv.Itoa(status)).Inc()
	}
	w.Header().Set("content-type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.WithError(err).Error("write bulk response")
	}
}
