// Package pubsub implements a frontier that publishes discovered tokens to a
// Google Cloud Pub/Sub topic for the fetcher to consume.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/JakeFAU/socialgraph-parser/internal/parser"
)

// Attribute keys set on every published message.
const (
	AttrToken = "token"
	AttrKind  = "kind"
)

// Message kinds carried in AttrKind.
const (
	KindProfile = "profile"
	KindToken   = "token"
)

// Config captures the Pub/Sub topic settings.
type Config struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Frontier publishes one message per FrontierEntry.
type Frontier struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// New creates a client and verifies the topic exists.
func New(ctx context.Context, cfg Config) (*Frontier, error) {
	if cfg.ProjectID == "" || cfg.TopicName == "" {
		return nil, fmt.Errorf("pubsub.project_id and pubsub.topic_name are required")
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	f, err := NewWithClient(ctx, client, cfg.TopicName)
	if err != nil {
		return nil, errors.Join(err, client.Close())
	}
	return f, nil
}

// NewWithClient binds an existing client to a topic, which must exist.
func NewWithClient(ctx context.Context, client *pubsub.Client, topicName string) (*Frontier, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client is required")
	}
	topic := client.Topic(topicName)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for topic %q: %w", topicName, err)
	}
	if !exists {
		return nil, fmt.Errorf("pubsub topic %q does not exist", topicName)
	}
	return &Frontier{client: client, topic: topic}, nil
}

// EnqueueTokens publishes entries and waits until the server has accepted
// every message.
func (f *Frontier) EnqueueTokens(ctx context.Context, entries []parser.FrontierEntry) error {
	results := make([]*pubsub.PublishResult, 0, len(entries))
	for _, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal entry %q: %w", entry.Token, err)
		}
		kind := KindToken
		if entry.Info != nil {
			kind = KindProfile
		}
		results = append(results, f.topic.Publish(ctx, &pubsub.Message{
			Data:       data,
			Attributes: map[string]string{AttrToken: entry.Token, AttrKind: kind},
		}))
	}

	var errs []error
	for i, res := range results {
		if _, err := res.Get(ctx); err != nil {
			errs = append(errs, fmt.Errorf("publish %q: %w", entries[i].Token, err))
		}
	}
	return errors.Join(errs...)
}

// Close flushes pending messages and releases the client.
func (f *Frontier) Close() error {
	f.topic.Stop()
	if err := f.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
