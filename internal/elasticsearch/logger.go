// Package elasticsearch provides Elasticsearch integration for the
// explanation audit trail.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
)

// ExplanationRecord represents one served explanation or prediction
type ExplanationRecord struct {
	Timestamp    time.Time   `json:"timestamp"`
	Kind         string      `json:"kind"`
	ModelVersion string      `json:"model_version"`
	Prediction   float64     `json:"prediction,omitempty"`
	Cached       bool        `json:"cached,omitempty"`
	Detail       interface{} `json:"detail,omitempty"`
}

// Logger handles logging served explanations to Elasticsearch
type Logger struct {
	client *elasticsearch.Client
	index  string
}

// NewLogger creates a new Elasticsearch logger
func NewLogger(addresses []string, username, password, index string) (*Logger, error) {
	cfg := elasticsearch.Config{
		Addresses: addresses,
		Username:  username,
		Password:  password,
	}

	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %v", err)
	}

	return &Logger{
		client: client,
		index:  index,
	}, nil
}

// LogExplanation logs a served explanation to Elasticsearch
func (l *Logger) LogExplanation(ctx context.Context, rec ExplanationRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	recJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal explanation record: %v", err)
	}

	res, err := l.client.Index(
		l.index,
		bytes.NewReader(recJSON),
		l.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to index explanation record: %v", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing explanation record: %s", res.String())
	}

	return nil
}

// Ping checks the Elasticsearch connection
func (l *Logger) Ping(ctx context.Context) error {
	res, err := l.client.Info(l.client.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to reach Elasticsearch: %v", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch error: %s", res.String())
	}
	return nil
}
