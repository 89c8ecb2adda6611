// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package kafkaconsumer reports broker high watermarks, committed consumer
// group offsets and the lag between them.
package kafkaconsumer

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/circonus-labs/circonus-checks/internal/check"
	"github.com/circonus-labs/circonus-checks/internal/config"
	"github.com/circonus-labs/circonus-checks/internal/sink"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Name of the check type.
const Name = "kafka_consumer"

const (
	serviceCheckName    = "kafka.can_connect"
	sourceType          = "kafka"
	clientID            = "circonus-checks"
	defaultTimeout      = 5 * time.Second
	defaultRetries      = 3
	defaultContextLimit = 500
)

type initOptions struct {
	KafkaTimeout         time.Duration `json:"kafka_timeout"`
	KafkaRetries         int           `json:"kafka_retries"`
	MaxPartitionContexts int           `json:"max_partition_contexts"`
}

type kafkaOptions struct {
	ConnectStr       []string                      `json:"kafka_connect_str"`
	ConsumerGroups   map[string]map[string][]int32 `json:"consumer_groups"`
	MonitorUnlisted  bool                          `json:"monitor_unlisted_consumer_groups"`
	ClientAPIVersion string                        `json:"kafka_client_api_version"`
	SecurityProtocol string                        `json:"security_protocol"`
	TLSCACert        string                        `json:"tls_ca_cert"`
	TLSCert          string                        `json:"tls_cert"`
	TLSPrivateKey    string                        `json:"tls_private_key"`
	TLSVerify        *bool                         `json:"tls_verify"`
}

// partitionKey identifies a topic partition
type partitionKey struct {
	topic     string
	partition int32
}

// consumerKey identifies the offset of a group on a topic partition
type consumerKey struct {
	group string
	partitionKey
}

// Kafka defines the kafka_consumer check
type Kafka struct {
	addrs        []string
	groups       map[string]map[string][]int32
	unlisted     bool
	contextLimit int
	cfg          *sarama.Config
	dial         func(addrs []string, cfg *sarama.Config) (Cluster, error)
	cluster      Cluster
	scTags       []string
	logger       zerolog.Logger
	sync.Mutex
}

// New creates a kafka_consumer check instance.
func New(id string, init, inst map[string]interface{}, deps check.Deps) (check.Check, error) {
	var iopts initOptions
	if err := check.Decode(init, &iopts); err != nil {
		return nil, err
	}
	var opts kafkaOptions
	if err := check.Decode(inst, &opts); err != nil {
		return nil, err
	}

	addrs := []string{}
	for _, a := range opts.ConnectStr {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	if len(addrs) == 0 {
		return nil, config.Invalid("kafka_connect_str", "required")
	}
	if !opts.MonitorUnlisted && len(opts.ConsumerGroups) == 0 {
		return nil, config.Invalid("consumer_groups", "required unless monitor_unlisted_consumer_groups is set")
	}

	if iopts.KafkaTimeout <= 0 {
		iopts.KafkaTimeout = defaultTimeout
	}
	if iopts.KafkaRetries <= 0 {
		iopts.KafkaRetries = defaultRetries
	}
	if iopts.MaxPartitionContexts <= 0 {
		iopts.MaxPartitionContexts = defaultContextLimit
	}

	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Net.DialTimeout = iopts.KafkaTimeout
	cfg.Net.ReadTimeout = iopts.KafkaTimeout
	cfg.Net.WriteTimeout = iopts.KafkaTimeout
	cfg.Metadata.Retry.Max = iopts.KafkaRetries
	cfg.Admin.Timeout = iopts.KafkaTimeout
	if opts.ClientAPIVersion != "" {
		v, err := sarama.ParseKafkaVersion(opts.ClientAPIVersion)
		if err != nil {
			return nil, config.Invalidf("kafka_client_api_version", "%s", err)
		}
		cfg.Version = v
	} else {
		cfg.Version = sarama.V2_0_0_0
	}

	switch strings.ToUpper(opts.SecurityProtocol) {
	case "", "PLAINTEXT":
	case "SSL":
		tlsConfig, err := tlsSettings(opts)
		if err != nil {
			return nil, err
		}
		cfg.Net.TLS.Enable = true
		cfg.Net.TLS.Config = tlsConfig
	default:
		return nil, config.Invalidf("security_protocol", "unsupported protocol (%s)", opts.SecurityProtocol)
	}

	if err := cfg.Validate(); err != nil {
		return nil, config.Invalidf("instance", "%s", err)
	}

	return &Kafka{
		addrs:        addrs,
		groups:       opts.ConsumerGroups,
		unlisted:     opts.MonitorUnlisted,
		contextLimit: iopts.MaxPartitionContexts,
		cfg:          cfg,
		dial:         dialSarama,
		scTags:       []string{"kafka_connect_str:" + strings.Join(addrs, ",")},
		logger:       deps.Logger,
	}, nil
}

func tlsSettings(opts kafkaOptions) (*tls.Config, error) {
	verify := opts.TLSVerify == nil || *opts.TLSVerify
	cfg := &tls.Config{InsecureSkipVerify: !verify} //nolint:gosec

	if opts.TLSCert != "" {
		pair, err := tls.LoadX509KeyPair(opts.TLSCert, opts.TLSPrivateKey)
		if err != nil {
			return nil, config.Invalidf("tls_cert", "%s", err)
		}
		cfg.Certificates = []tls.Certificate{pair}
	}
	if opts.TLSCACert != "" {
		pem, err := os.ReadFile(opts.TLSCACert)
		if err != nil {
			return nil, config.Invalidf("tls_ca_cert", "%s", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, config.Invalid("tls_ca_cert", "no certificates found")
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}

// ServiceCheckName of the terminal service check.
func (k *Kafka) ServiceCheckName() string {
	return serviceCheckName
}

// Close releases the cluster connection.
func (k *Kafka) Close() error {
	k.Lock()
	defer k.Unlock()
	return k.reset()
}

func (k *Kafka) reset() error {
	if k.cluster == nil {
		return nil
	}
	err := k.cluster.Close()
	k.cluster = nil
	return err
}

// Collect reads consumer offsets first and broker offsets second, so the
// lag can be overstated slightly but never understated.
func (k *Kafka) Collect(ctx context.Context, r *check.Reporter) error {
	k.Lock()
	defer k.Unlock()

	if k.cluster == nil {
		cluster, err := k.dial(k.addrs, k.cfg)
		if err != nil {
			cerr := &check.ConnectError{Target: strings.Join(k.addrs, ","), Err: err}
			r.ServiceCheck(serviceCheckName, sink.Critical, k.scTags, cerr.Error())
			return cerr
		}
		k.cluster = cluster
	}

	consumers, topics, err := k.consumerOffsets(ctx)
	if err != nil {
		_ = k.reset()
		r.ServiceCheck(serviceCheckName, sink.Critical, k.scTags, err.Error())
		return err
	}
	r.ServiceCheck(serviceCheckName, sink.OK, k.scTags, "")

	if len(consumers) > k.contextLimit {
		return check.Soft(errors.Errorf("discovered %d partition contexts, exceeding the limit of %d: narrow consumer_groups", len(consumers), k.contextLimit))
	}

	highwater := k.brokerOffsets(ctx, topics)

	for _, pk := range sortedPartitions(highwater) {
		r.Gauge("kafka.broker_offset", float64(highwater[pk]), partitionTags(pk)...)
	}

	for _, ck := range sortedConsumers(consumers) {
		hw, ok := highwater[ck.partitionKey]
		if !ok {
			k.logger.Warn().
				Str("consumer_group", ck.group).
				Str("topic", ck.topic).
				Int32("partition", ck.partition).
				Msg("partition has no broker offset, skipping consumer submission")
			continue
		}

		offset := consumers[ck]
		tl := append(partitionTags(ck.partitionKey), "consumer_group:"+ck.group, "source:kafka")
		r.Gauge("kafka.consumer_offset", float64(offset), tl...)

		lag := hw - offset
		if lag < 0 {
			r.Event(sink.Event{
				Title:          "Negative consumer lag for group: " + ck.group + ".",
				Text:           fmt.Sprintf("Consumer lag for consumer group: %s, topic: %s, partition: %d is negative. This should never happen.", ck.group, ck.topic, ck.partition),
				AlertType:      sink.AlertError,
				Tags:           tl,
				SourceType:     sourceType,
				AggregationKey: fmt.Sprintf("%s:%s:%d", ck.group, ck.topic, ck.partition),
			})
		}
		r.Gauge("kafka.consumer_lag", float64(lag), tl...)
	}

	return nil
}

// consumerOffsets fetches the committed offsets of the monitored groups and
// the set of topic partitions they cover. A failure listing groups is
// returned, a failure reading one group is logged.
func (k *Kafka) consumerOffsets(ctx context.Context) (map[consumerKey]int64, map[partitionKey]bool, error) {
	groups := k.groups
	if k.unlisted {
		names, err := k.cluster.ConsumerGroups()
		if err != nil {
			return nil, nil, errors.Wrap(err, "listing consumer groups")
		}
		groups = make(map[string]map[string][]int32, len(names))
		for _, name := range names {
			groups[name] = k.groups[name]
		}
	}

	consumers := map[consumerKey]int64{}
	topics := map[partitionKey]bool{}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, group := range names {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}

		var filter map[string][]int32
		if len(groups[group]) > 0 {
			filter = make(map[string][]int32, len(groups[group]))
			for topic, partitions := range groups[group] {
				if len(partitions) == 0 {
					all, err := k.cluster.Partitions(topic)
					if err != nil {
						k.logger.Warn().Err(err).Str("topic", topic).Msg("listing partitions")
						continue
					}
					partitions = all
				}
				filter[topic] = partitions
			}
		}

		offsets, err := k.cluster.GroupOffsets(group, filter)
		if err != nil {
			k.logger.Warn().Err(err).Str("consumer_group", group).Msg("could not read consumer offsets")
			continue
		}
		for topic, partitions := range offsets {
			for partition, offset := range partitions {
				pk := partitionKey{topic: topic, partition: partition}
				consumers[consumerKey{group: group, partitionKey: pk}] = offset
				topics[pk] = true
			}
		}
	}

	return consumers, topics, nil
}

// brokerOffsets fetches the high watermark of every partition in topics.
// Failures are logged and the partition left out.
func (k *Kafka) brokerOffsets(ctx context.Context, topics map[partitionKey]bool) map[partitionKey]int64 {
	highwater := make(map[partitionKey]int64, len(topics))
	for pk := range topics {
		if ctx.Err() != nil {
			break
		}
		offset, err := k.cluster.HighWatermark(pk.topic, pk.partition)
		if err != nil {
			k.logger.Warn().Err(err).Str("topic", pk.topic).Int32("partition", pk.partition).Msg("high watermark")
			continue
		}
		highwater[pk] = offset
	}
	return highwater
}

func partitionTags(pk partitionKey) []string {
	return []string{"topic:" + pk.topic, "partition:" + strconv.Itoa(int(pk.partition))}
}

func sortedPartitions(m map[partitionKey]int64) []partitionKey {
	keys := make([]partitionKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].topic != keys[j].topic {
			return keys[i].topic < keys[j].topic
		}
		return keys[i].partition < keys[j].partition
	})
	return keys
}

func sortedConsumers(m map[consumerKey]int64) []consumerKey {
	keys := make([]consumerKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].group != keys[j].group {
			return keys[i].group < keys[j].group
		}
		if keys[i].topic != keys[j].topic {
			return keys[i].topic < keys[j].topic
		}
		return keys[i].partition < keys[j].partition
	})
	return keys
}
