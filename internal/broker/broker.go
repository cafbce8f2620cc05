// Copyright 2026 The Chess Pipeline Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

const sendTimeout = 32 * time.Second

// Client holds the broker endpoint and constructs producers/consumers on
// demand; every stage owns one Client and its own connections (§5).
type Client struct {
	endpoint string
}

func New(endpoint string) *Client {
	return &Client{endpoint: endpoint}
}

// Message is one fetched record: the broker key/value plus the partition and
// offset it was read from (§4.1).
type Message struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int32
	Offset    int64
}

// Consumer wraps a kgo.Client bound to a consumer group over one or more
// topics, with selectable commit mode.
type Consumer struct {
	client     *kgo.Client
	autoCommit bool
}

// NewConsumer constructs a consumer bound to groupID over topics, with
// auto.offset.reset=beginning and enable.partition.eof=false baked in (§4.1).
// When autoCommit is false the caller must call CommitSync explicitly after
// processing each message; CommitAsync only marks records for the background
// auto-commit, which runs only when autoCommit is true.
func (c *Client) NewConsumer(groupID string, topics []string, autoCommit bool, maxPollInterval time.Duration) (*Consumer, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(c.endpoint),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topics...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.SessionTimeout(6 * time.Second),
	}
	if maxPollInterval > 0 {
		opts = append(opts, kgo.RebalanceTimeout(maxPollInterval))
	}
	if autoCommit {
		opts = append(opts, kgo.AutoCommitMarks(), kgo.AutoCommitInterval(time.Second))
	} else {
		opts = append(opts, kgo.DisableAutoCommit())
	}

	cl, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("broker: connect failed: %w", err)
	}
	return &Consumer{client: cl, autoCommit: autoCommit}, nil
}

// Poll blocks until at least one record is available (or ctx is done) and
// returns the batch in partition/offset order within each partition.
func (c *Consumer) Poll(ctx context.Context) ([]Message, error) {
	fetches := c.client.PollFetches(ctx)
	if err := fetches.Err0(); err != nil {
		return nil, fmt.Errorf("broker: poll failed: %w", err)
	}
	var out []Message
	fetches.EachRecord(func(r *kgo.Record) {
		out = append(out, Message{
			Key:       r.Key,
			Value:     r.Value,
			Topic:     r.Topic,
			Partition: r.Partition,
			Offset:    r.Offset,
		})
	})
	return out, nil
}

// CommitSync commits the given messages' offsets synchronously; the caller
// must await this before taking the next message from the same partition
// when autoCommit is false (§5).
func (c *Consumer) CommitSync(ctx context.Context, msgs ...Message) error {
	records := toKgoRecords(msgs)
	if err := c.client.CommitRecords(ctx, records...); err != nil {
		return fmt.Errorf("broker: sync commit failed: %w", err)
	}
	return nil
}

// CommitAsync marks offsets for the next background auto-commit; losing the
// most recent mark causes at most one duplicate on restart, which is
// tolerated by every consumer of this topic (§4.5).
func (c *Consumer) CommitAsync(msgs ...Message) {
	c.client.MarkCommitRecords(toKgoRecords(msgs)...)
}

func (c *Consumer) Close() {
	c.client.Close()
}

func toKgoRecords(msgs []Message) []*kgo.Record {
	records := make([]*kgo.Record, len(msgs))
	for i, m := range msgs {
		records[i] = &kgo.Record{Topic: m.Topic, Partition: m.Partition, Offset: m.Offset}
	}
	return records
}

// Producer is a non-transactional publisher whose Send waits up to 32s for
// the broker's acknowledgement (§4.1).
type Producer struct {
	client *kgo.Client
}

func (c *Client) NewProducer() (*Producer, error) {
	cl, err := kgo.NewClient(kgo.SeedBrokers(c.endpoint))
	if err != nil {
		return nil, fmt.Errorf("broker: connect failed: %w", err)
	}
	return &Producer{client: cl}, nil
}

// Send publishes one record and blocks until it is acknowledged or the 32s
// send timeout elapses. A failed or timed-out send is returned to the caller
// as an error; Send itself does not stop the process.
func (p *Producer) Send(ctx context.Context, topic string, key, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	result := p.client.ProduceSync(ctx, &kgo.Record{Topic: topic, Key: key, Value: value})
	if err := result.FirstErr(); err != nil {
		return fmt.Errorf("broker: send to %s failed: %w", topic, err)
	}
	return nil
}

func (p *Producer) Close() {
	p.client.Close()
}

// TransactionalProducer encloses a batch of sends inside begin/commit
// primitives (§4.1); a transaction bounds batch durability for the splitter.
type TransactionalProducer struct {
	client *kgo.Client
}

// NewTransactionalProducer constructs a producer registered under
// transactionalID (GLOSSARY: "Transactional id"). The broker fences only
// producers that share an id; the splitter passes a fresh random id on every
// run, so a restarted instance does not fence out a predecessor.
func (c *Client) NewTransactionalProducer(transactionalID string) (*TransactionalProducer, error) {
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(c.endpoint),
		kgo.TransactionalID(transactionalID),
		kgo.TransactionTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("broker: connect failed: %w", err)
	}
	return &TransactionalProducer{client: cl}, nil
}

// Record is one key/value/topic tuple to be produced inside a transaction.
type Record struct {
	Topic string
	Key   []byte
	Value []byte
}

// SendBatch begins a transaction, produces every record in it, and commits.
// Either all records appear on the topic or none do (§4.4, invariant 4 in §8).
func (p *TransactionalProducer) SendBatch(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := p.client.BeginTransaction(); err != nil {
		return fmt.Errorf("broker: begin transaction failed: %w", err)
	}

	errs := make(chan error, len(records))
	for _, r := range records {
		p.client.Produce(ctx, &kgo.Record{Topic: r.Topic, Key: r.Key, Value: r.Value}, func(_ *kgo.Record, err error) {
			errs <- err
		})
	}
	var firstErr error
	for range records {
		if err := <-errs; err != nil && firstErr == nil {
			firstErr = err
		}
	}

	endCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if firstErr != nil {
		_ = p.client.EndTransaction(endCtx, kgo.TryAbort)
		return fmt.Errorf("broker: transactional send failed: %w", firstErr)
	}
	if err := p.client.EndTransaction(endCtx, kgo.TryCommit); err != nil {
		return fmt.Errorf("broker: commit transaction failed: %w", err)
	}
	return nil
}

func (p *TransactionalProducer) Close() {
	p.client.Close()
}
