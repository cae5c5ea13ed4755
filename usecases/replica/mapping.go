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

package replica

import (
	"context"

	"github.com/sirupsen/logrus"

	enterrors "github.com/weaviate/bulkshard/entities/errors"
	"github.com/weaviate/bulkshard/usecases/sharding"
)

// MappingClient sends a mapping update to the node at host
type MappingClient interface {
	PutMapping(ctx context.Context, host, index, typ string, fields []string) error
}

// Members lists the nodes a mapping update has to reach
type Members interface {
	RemoteNodes() []sharding.Node
}

// MappingPublisher pushes fields a primary added to its mapping to every
// other node. Replicas that miss an update keep answering with a retry
// until the update arrives, so failures are only logged.
type MappingPublisher struct {
	client  MappingClient
	members Members
	logger  logrus.FieldLogger
}

func NewMappingPublisher(client MappingClient, members Members, logger logrus.FieldLogger) *MappingPublisher {
	return &MappingPublisher{
		client:  client,
		members: members,
		logger:  logger.WithField("action", "publish_mapping"),
	}
}

func (p *MappingPublisher) PublishMapping(ctx context.Context, index, typ string, fields []string) {
	eg := enterrors.NewErrorGroupWrapper(p.logger, "index", index)
	for _, node := range p.members.RemoteNodes() {
		node := node
		eg.Go(func() error {
			if err := p.client.PutMapping(ctx, node.Host, index, typ, fields); err != nil {
				p.logger.WithError(err).WithFields(logrus.Fields{
					"node":   node.Name,
					"index":  index,
					"type":   typ,
					"fields": fields,
				}).Warn("failed to publish mapping update")
			}
			return nil
		}, node.Name)
	}
	eg.Wait()
}
