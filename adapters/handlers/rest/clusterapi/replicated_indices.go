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

package clusterapi

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/weaviate/bulkshard/entities/bulk"
	enterrors "github.com/weaviate/bulkshard/entities/errors"
)

const (
	urlPatternReplicaBulk = `\/replicas\/indices\/([A-Za-z0-9_.+-]+)` +
		`\/shards\/([0-9]+)\/bulk`
	urlPatternMapping = `\/replicas\/indices\/([A-Za-z0-9_.+-]+)\/mapping`
)

type replicator interface {
	ApplyOnReplica(ctx context.Context, req *bulk.ReplicaRequest) error
}

type mappings interface {
	MergeMapping(index, typ string, fields []string) error
}

type replicatedIndices struct {
	shards        replicator
	mappings      mappings
	logger        logrus.FieldLogger
	regexpBulk    *regexp.Regexp
	regexpMapping *regexp.Regexp
}

func NewReplicatedIndices(shards replicator, mappings mappings, logger logrus.FieldLogger) *replicatedIndices {
	return &replicatedIndices{
		shards:        shards,
		mappings:      mappings,
		logger:        logger.WithField("action", "cluster_api"),
		regexpBulk:    regexp.MustCompile(urlPatternReplicaBulk),
		regexpMapping: regexp.MustCompile(urlPatternMapping),
	}
}

func (i *replicatedIndices) Indices() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case i.regexpBulk.MatchString(path):
			if r.Method != http.MethodPost {
				http.Error(w, "405 Method not Allowed", http.StatusMethodNotAllowed)
				return
			}
			i.postBulk().ServeHTTP(w, r)
			return
		case i.regexpMapping.MatchString(path):
			if r.Method != http.MethodPut {
				http.Error(w, "405 Method not Allowed", http.StatusMethodNotAllowed)
				return
			}
			i.putMapping().ServeHTTP(w, r)
			return
		default:
			http.NotFound(w, r)
			return
		}
	})
}

func (i *replicatedIndices) postBulk() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		args := i.regexpBulk.FindStringSubmatch(r.URL.Path)
		if len(args) != 3 {
			http.Error(w, "invalid URI", http.StatusBadRequest)
			return
		}
		index := args[1]
		shard, err := strconv.Atoi(args[2])
		if err != nil {
			http.Error(w, "invalid shard", http.StatusBadRequest)
			return
		}

		defer r.Body.Close()
		if ct, ok := IndicesPayloads.ReplicaBulk.CheckContentTypeHeaderReq(r); !ok {
			http.Error(w, "415 Unsupported Media Type: "+ct, http.StatusUnsupportedMediaType)
			return
		}
		bodyBytes, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		req, err := IndicesPayloads.ReplicaBulk.Unmarshal(bodyBytes)
		if err != nil {
			IndicesPayloads.Error.Write(w, enterrors.NewValidationError("%v", err))
			return
		}
		if req.ShardID.Index != index || req.ShardID.Shard != shard {
			IndicesPayloads.Error.Write(w, enterrors.NewValidationError(
				"payload addresses %s, url addresses [%s][%d]", req.ShardID, index, shard))
			return
		}

		if err := i.shards.ApplyOnReplica(r.Context(), req); err != nil {
			i.logger.WithError(err).WithField("shard", req.ShardID.String()).
				Debug("replica bulk failed")
			IndicesPayloads.Error.Write(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func (i *replicatedIndices) putMapping() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		args := i.regexpMapping.FindStringSubmatch(r.URL.Path)
		if len(args) != 2 {
			http.Error(w, "invalid URI", http.StatusBadRequest)
			return
		}
		index := args[1]

		defer r.Body.Close()
		if ct, ok := IndicesPayloads.Mapping.CheckContentTypeHeaderReq(r); !ok {
			http.Error(w, "415 Unsupported Media Type: "+ct, http.StatusUnsupportedMediaType)
			return
		}
		bodyBytes, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		update, err := IndicesPayloads.Mapping.Unmarshal(bodyBytes)
		if err != nil {
			IndicesPayloads.Error.Write(w, enterrors.NewValidationError("decode mapping: %v", err))
			return
		}
		if err := i.mappings.MergeMapping(index, update.Type, update.Fields); err != nil {
			IndicesPayloads.Error.Write(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
