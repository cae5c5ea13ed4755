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
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/bulkshard/entities/bulk"
	enterrors "github.com/weaviate/bulkshard/entities/errors"
	"github.com/weaviate/bulkshard/usecases/monitoring"
	"github.com/weaviate/bulkshard/usecases/ratelimiter"
	"github.com/weaviate/bulkshard/usecases/sharding"
)

const (
	urlPatternBulk  = `^\/(?:([A-Za-z0-9.+-][A-Za-z0-9_.+-]*)\/)?(?:([A-Za-z0-9.+-][A-Za-z0-9_.+-]*)\/)?_bulk\/?$`
	urlPatternCount = `^\/([A-Za-z0-9.+-][A-Za-z0-9_.+-]*)\/_count\/?$`
)

// Topology knows the indices of the cluster and where their primaries live
type Topology interface {
	Index(name string) (*sharding.State, bool)
	IsLocalPrimary(shard bulk.ShardID) bool
}

// IndexCreator creates an index with the default layout and opens its
// local shard copies
type IndexCreator interface {
	CreateIndex(name string) (*sharding.State, error)
}

// ShardExecutor runs a shard batch through its primary and replicas
type ShardExecutor interface {
	Execute(ctx context.Context, batch *bulk.Batch) (*bulk.ShardResponse, error)
}

// Counter returns the number of searchable documents held locally
type Counter interface {
	Count(index string) (int64, bool)
}

type Config struct {
	AllowExplicitIndex bool
	AutoCreateIndex    bool
	AllowIDGeneration  bool
	// MaxConcurrentRequests caps bulk calls in flight, <= 0 is unlimited
	MaxConcurrentRequests int
}

type Handler struct {
	topology    Topology
	creator     IndexCreator
	shards      ShardExecutor
	counter     Counter
	config      Config
	logger      logrus.FieldLogger
	requests    *prometheus.CounterVec
	limiter     *ratelimiter.Limiter
	regexpBulk  *regexp.Regexp
	regexpCount *regexp.Regexp
	generateID  func() string
	now         func() time.Time
}

func NewHandler(topology Topology, creator IndexCreator, shards ShardExecutor, counter Counter,
	config Config, logger logrus.FieldLogger, prom *monitoring.PrometheusMetrics,
) (*Handler, error) {
	h := &Handler{
		topology:    topology,
		creator:     creator,
		shards:      shards,
		counter:     counter,
		config:      config,
		logger:      logger.WithField("action", "bulk_api"),
		regexpBulk:  regexp.MustCompile(urlPatternBulk),
		regexpCount: regexp.MustCompile(urlPatternCount),
		generateID:  uuid.NewString,
		now:         time.Now,
	}
	var (
		inFlight prometheus.Gauge
		rejected prometheus.Counter
	)
	if prom != nil {
		requests, err := monitoring.NewCounterVec(prom.Registerer, "bulk_api_requests_total",
			"Bulk API calls by response status", "status")
		if err != nil {
			return nil, err
		}
		h.requests = requests
		if inFlight, err = monitoring.NewGauge(prom.Registerer, "bulk_api_requests_in_flight",
			"Bulk API calls currently being executed"); err != nil {
			return nil, err
		}
		if rejected, err = monitoring.NewCounter(prom.Registerer, "bulk_api_requests_rejected_total",
			"Bulk API calls rejected because too many were in flight"); err != nil {
			return nil, err
		}
	}
	h.limiter = ratelimiter.New(config.MaxConcurrentRequests, inFlight, rejected)
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case h.regexpBulk.MatchString(path):
		if r.Method != http.MethodPost && r.Method != http.MethodPut {
			http.Error(w, "405 Method not Allowed", http.StatusMethodNotAllowed)
			return
		}
		h.bulk(w, r)
	case h.regexpCount.MatchString(path):
		if r.Method != http.MethodGet {
			http.Error(w, "405 Method not Allowed", http.StatusMethodNotAllowed)
			return
		}
		h.count(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) bulk(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.TryAcquire() {
		h.writeError(w, http.StatusTooManyRequests, &enterrors.RejectedError{
			Reason: fmt.Sprintf("more than %d bulk requests in flight", h.config.MaxConcurrentRequests),
		})
		return
	}
	defer h.limiter.Release()

	start := h.now()
	args := h.regexpBulk.FindStringSubmatch(r.URL.Path)
	defaults := Defaults{
		Index:              args[1],
		Type:               args[2],
		Routing:            r.URL.Query().Get("routing"),
		AllowExplicitIndex: h.config.AllowExplicitIndex,
	}
	if f := r.URL.Query().Get("fields"); f != "" {
		defaults.Fields = strings.Split(f, ",")
	}

	opts, err := parseOptions(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	ops, err := Parse(body, defaults)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(ops) == 0 {
		h.writeError(w, http.StatusBadRequest, enterrors.NewValidationError("no requests added"))
		return
	}

	h.assignIDs(ops)
	if err := validate(ops); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	states, err := h.resolveIndices(ops)
	if err != nil {
		h.writeError(w, enterrors.HTTPStatus(err), err)
		return
	}

	items := h.execute(r.Context(), ops, states, opts)
	h.writeJSON(w, http.StatusOK, newBulkResponse(items, h.now().Sub(start)))
}

type options struct {
	refresh     bool
	consistency bulk.ConsistencyLevel
	timeout     time.Duration
}

func parseOptions(r *http.Request) (options, error) {
	q := r.URL.Query()
	var opts options

	if _, ok := q["refresh"]; ok {
		switch v := strings.ToLower(q.Get("refresh")); v {
		case "", "true":
			opts.refresh = true
		case "false":
		default:
			return opts, enterrors.NewValidationError("invalid refresh value [%s]", v)
		}
	}
	if v := q.Get("consistency"); v != "" {
		level, err := bulk.ParseConsistencyLevel(v)
		if err != nil {
			return opts, enterrors.NewValidationError("%v", err)
		}
		opts.consistency = level
	}
	if v := q.Get("timeout"); v != "" {
		d, err := parseTimeValue(v)
		if err != nil || d <= 0 {
			return opts, enterrors.NewValidationError("invalid timeout [%s]", v)
		}
		opts.timeout = d
	}
	return opts, nil
}

// assignIDs gives index operations without an id a generated one. Such
// documents cannot exist yet, so they are created rather than indexed.
func (h *Handler) assignIDs(ops []bulk.Operation) {
	if !h.config.AllowIDGeneration {
		return
	}
	for _, op := range ops {
		if idx, ok := op.(*bulk.IndexOp); ok && idx.ID == "" {
			idx.ID = h.generateID()
			idx.Create = true
		}
	}
}

func validate(ops []bulk.Operation) error {
	var ve *enterrors.ValidationError
	for i, op := range ops {
		index, _, id := op.Target()
		if index == "" {
			ve = enterrors.AddValidationError(ve, fmt.Sprintf("item [%d]: index is missing", i))
		}
		if _, ok := op.(*bulk.IndexOp); ok && id == "" {
			ve = enterrors.AddValidationError(ve, fmt.Sprintf("item [%d]: id is missing", i))
		}
		if err := op.Validate(); err != nil {
			ve = enterrors.AddValidationError(ve, fmt.Sprintf("item [%d]: %v", i, err))
		}
	}
	if ve != nil {
		return ve
	}
	return nil
}

// resolveIndices looks up every index named by ops, creating missing ones
// when allowed
func (h *Handler) resolveIndices(ops []bulk.Operation) (map[string]*sharding.State, error) {
	states := map[string]*sharding.State{}
	for _, op := range ops {
		name, _, _ := op.Target()
		if _, ok := states[name]; ok {
			continue
		}
		s, ok := h.topology.Index(name)
		if !ok {
			if !h.config.AutoCreateIndex {
				return nil, &enterrors.IndexNotFoundError{Index: name}
			}
			created, err := h.creator.CreateIndex(name)
			if err != nil {
				return nil, fmt.Errorf("create index [%s]: %w", name, err)
			}
			h.logger.WithField("index", name).Info("created index on first write")
			s = created
		}
		states[name] = s
	}
	return states, nil
}

type group struct {
	shard     bulk.ShardID
	ops       []bulk.Operation
	positions []int
}

// execute splits ops into one batch per shard, runs the batches
// concurrently and returns the item answers in submission order
func (h *Handler) execute(ctx context.Context, ops []bulk.Operation,
	states map[string]*sharding.State, opts options,
) []*bulk.ItemResponse {
	var groups []*group
	byShard := map[bulk.ShardID]*group{}
	for pos, op := range ops {
		name, _, _ := op.Target()
		sid := bulk.ShardID{Index: name, Shard: states[name].ShardFor(op.RoutingKey())}
		g, ok := byShard[sid]
		if !ok {
			g = &group{shard: sid}
			byShard[sid] = g
			groups = append(groups, g)
		}
		g.ops = append(g.ops, op)
		g.positions = append(g.positions, pos)
	}

	items := make([]*bulk.ItemResponse, len(ops))
	eg := enterrors.NewErrorGroupWrapper(h.logger)
	for _, g := range groups {
		if !h.topology.IsLocalPrimary(g.shard) {
			fail(items, g, &enterrors.ShardNotAvailableError{
				Index: g.shard.Index, Shard: g.shard.Shard, Reason: "primary is not on this node",
			})
			continue
		}

		g := g
		batch := bulk.NewBatch(g.shard, g.ops, g.positions...)
		batch.Refresh = opts.refresh
		batch.Consistency = opts.consistency
		batch.Timeout = opts.timeout
		eg.Go(func() error {
			resp, err := h.shards.Execute(ctx, batch)
			if err != nil {
				h.logger.WithError(err).WithField("shard", g.shard.String()).
					Debug("shard batch failed")
				fail(items, g, err)
				return nil
			}
			for _, item := range resp.Items {
				items[item.Position] = item
			}
			if n := len(resp.ShardInfo.Failures); n > 0 {
				h.logger.WithField("shard", g.shard.String()).WithField("failed_copies", n).
					Warn("batch was not applied on every shard copy")
			}
			return nil
		}, g.shard)
	}
	if err := eg.Wait(); err != nil {
		h.logger.WithError(err).Error("shard batch aborted")
	}

	for pos, item := range items {
		if item == nil {
			items[pos] = bulk.NewItemResponse(pos, ops[pos].OpType(), ops[pos],
				bulk.NewFailure(fmt.Errorf("no response for item [%d]", pos)))
		}
	}
	return items
}

func fail(items []*bulk.ItemResponse, g *group, err error) {
	for i, op := range g.ops {
		pos := g.positions[i]
		items[pos] = bulk.NewItemResponse(pos, op.OpType(), op, bulk.NewFailure(err))
	}
}

func (h *Handler) count(w http.ResponseWriter, r *http.Request) {
	index := h.regexpCount.FindStringSubmatch(r.URL.Path)[1]
	n, ok := h.counter.Count(index)
	if !ok {
		h.writeError(w, http.StatusNotFound, &enterrors.IndexNotFoundError{Index: index})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}
