package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/capscanio/capscan/pkg/domain/capability"
	"github.com/capscanio/capscan/pkg/domain/shared"
)

const (
	recordKeyPrefix = "capability:"
	recordSetKey    = "capability:index"
)

// CapabilityIndex stores validated capability records in Redis. Keys are
// derived from the record's deterministic ID, so rescanning an item
// overwrites its record in place instead of accumulating duplicates.
type CapabilityIndex struct {
	client *Client
}

// NewCapabilityIndex creates a CapabilityIndex.
func NewCapabilityIndex(client *Client) *CapabilityIndex {
	return &CapabilityIndex{client: client}
}

// Upsert writes a record, replacing any previous record for the same ID.
func (i *CapabilityIndex) Upsert(ctx context.Context, record *capability.Record) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("refusing to index invalid record: %w", err)
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	key := recordKeyPrefix + record.ID.String()
	pipe := i.client.Client().TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"record":     raw,
		"name":       record.Name,
		"search":     searchText(record),
		"complexity": string(record.Complexity),
	})
	pipe.SAdd(ctx, recordSetKey, record.ID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("index record %s: %w", record.Name, err)
	}
	return nil
}

// Get loads a record by ID.
func (i *CapabilityIndex) Get(ctx context.Context, id shared.ID) (*capability.Record, error) {
	raw, err := i.client.Client().HGet(ctx, recordKeyPrefix+id.String(), "record").Result()
	if errors.Is(err, redis.Nil) {
		return nil, shared.NewDomainError("RECORD_NOT_FOUND", "capability record not found", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}

	var record capability.Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &record, nil
}

// GetByName loads a record by its item name.
func (i *CapabilityIndex) GetByName(ctx context.Context, name string) (*capability.Record, error) {
	return i.Get(ctx, capability.RecordID(name))
}

// Delete removes a record from the index.
func (i *CapabilityIndex) Delete(ctx context.Context, id shared.ID) error {
	pipe := i.client.Client().TxPipeline()
	pipe.Del(ctx, recordKeyPrefix+id.String())
	pipe.SRem(ctx, recordSetKey, id.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// Search returns records whose name, description or tags contain the
// query, case-insensitively. An empty query returns everything.
func (i *CapabilityIndex) Search(ctx context.Context, query string) ([]*capability.Record, error) {
	ids, err := i.client.Client().SMembers(ctx, recordSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list record ids: %w", err)
	}

	query = strings.ToLower(strings.TrimSpace(query))
	var out []*capability.Record
	for _, id := range ids {
		fields, err := i.client.Client().HMGet(ctx, recordKeyPrefix+id, "record", "search").Result()
		if err != nil {
			return nil, fmt.Errorf("load record %s: %w", id, err)
		}
		raw, ok := fields[0].(string)
		if !ok {
			continue // record deleted between SMEMBERS and HMGET
		}
		if query != "" {
			text, _ := fields[1].(string)
			if !strings.Contains(text, query) {
				continue
			}
		}
		var record capability.Record
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("unmarshal record %s: %w", id, err)
		}
		out = append(out, &record)
	}
	return out, nil
}

// Count returns the number of indexed records.
func (i *CapabilityIndex) Count(ctx context.Context) (int64, error) {
	n, err := i.client.Client().SCard(ctx, recordSetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func searchText(record *capability.Record) string {
	parts := append([]string{record.Name, record.Description}, record.Tags...)
	return strings.ToLower(strings.Join(parts, " "))
}
