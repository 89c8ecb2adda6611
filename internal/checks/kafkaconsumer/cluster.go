// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package kafkaconsumer

import (
	"sort"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
)

// Cluster is the view of a kafka cluster the check needs.
type Cluster interface {
	// ConsumerGroups lists every group known to the cluster.
	ConsumerGroups() ([]string, error)
	// GroupOffsets returns the committed offsets of group. A nil topics
	// map asks for every partition the group committed to.
	GroupOffsets(group string, topics map[string][]int32) (map[string]map[int32]int64, error)
	// Partitions lists the partitions of topic.
	Partitions(topic string) ([]int32, error)
	// HighWatermark returns the offset of the next message produced to the partition.
	HighWatermark(topic string, partition int32) (int64, error)
	Close() error
}

type saramaCluster struct {
	client sarama.Client
	admin  sarama.ClusterAdmin
}

func dialSarama(addrs []string, cfg *sarama.Config) (Cluster, error) {
	client, err := sarama.NewClient(addrs, cfg)
	if err != nil {
		return nil, err
	}
	admin, err := sarama.NewClusterAdminFromClient(client)
	if err != nil {
		client.Close()
		return nil, errors.Wrap(err, "cluster admin")
	}
	return &saramaCluster{client: client, admin: admin}, nil
}

func (s *saramaCluster) ConsumerGroups() ([]string, error) {
	groups, err := s.admin.ListConsumerGroups()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *saramaCluster) GroupOffsets(group string, topics map[string][]int32) (map[string]map[int32]int64, error) {
	resp, err := s.admin.ListConsumerGroupOffsets(group, topics)
	if err != nil {
		return nil, err
	}
	if resp.Err != sarama.ErrNoError {
		return nil, resp.Err
	}
	out := make(map[string]map[int32]int64, len(resp.Blocks))
	for topic, partitions := range resp.Blocks {
		for partition, block := range partitions {
			// -1 means nothing committed
			if block == nil || block.Err != sarama.ErrNoError || block.Offset < 0 {
				continue
			}
			if out[topic] == nil {
				out[topic] = make(map[int32]int64)
			}
			out[topic][partition] = block.Offset
		}
	}
	return out, nil
}

func (s *saramaCluster) Partitions(topic string) ([]int32, error) {
	return s.client.Partitions(topic)
}

func (s *saramaCluster) HighWatermark(topic string, partition int32) (int64, error) {
	return s.client.GetOffset(topic, partition, sarama.OffsetNewest)
}

// Close closes the admin, which closes the underlying client.
func (s *saramaCluster) Close() error {
	return s.admin.Close()
}
