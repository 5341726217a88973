package store

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/royglick/laboneq/pkg/workflow"
)

// RedisStore is a RunStore backed by Redis.
// It uses a simple key structure:
//
//	<prefix>run:<id>             => gob-encoded redisRunPayload
//	<prefix>idx:all              => SET of all run IDs
//	<prefix>idx:wf:<workflow>    => SET of run IDs for a given workflow
//	<prefix>idx:status:<status>  => SET of run IDs for a given status
//
// The indexes are best-effort; they are always updated on Save/Update, and
// ListRuns uses set operations for filtering.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ RunStore = (*RedisStore)(nil)

type redisRunPayload struct {
	ID       string
	Workflow string
	Status   string
	Input    []byte
	Output   []byte
	Tasks    []byte
	Error    string
}

// NewRedisStore creates a RedisStore.
// prefix is optional but recommended (e.g. "labq:").
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "labq:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) keyRun(id string) string {
	return s.prefix + "run:" + id
}

func (s *RedisStore) keyAll() string {
	return s.prefix + "idx:all"
}

func (s *RedisStore) keyWorkflow(name string) string {
	return s.prefix + "idx:wf:" + name
}

func (s *RedisStore) keyStatus(status workflow.Status) string {
	return s.prefix + "idx:status:" + string(status)
}

func encodeRedisPayload(run *workflow.Run) ([]byte, error) {
	input, output, tasks, errStr, err := encodeRun(run)
	if err != nil {
		return nil, err
	}

	payload := redisRunPayload{
		ID:       run.ID,
		Workflow: run.Workflow,
		Status:   string(run.Status),
		Input:    input,
		Output:   output,
		Tasks:    tasks,
		Error:    errStr,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRedisPayload(data []byte) (*workflow.Run, error) {
	if len(data) == 0 {
		return nil, ErrRunNotFound
	}
	var payload redisRunPayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil {
		return nil, err
	}

	inVal, err := decodeInput(payload.Input)
	if err != nil {
		return nil, err
	}
	outVal, err := decodeValue(payload.Output)
	if err != nil {
		return nil, err
	}
	taskVal, err := decodeTasks(payload.Tasks)
	if err != nil {
		return nil, err
	}

	run := &workflow.Run{
		ID:       payload.ID,
		Workflow: payload.Workflow,
		Status:   workflow.Status(payload.Status),
		Input:    inVal,
		Output:   outVal,
		Tasks:    taskVal,
	}
	if payload.Error != "" {
		run.Err = errors.New(payload.Error)
	}
	return run, nil
}

func (s *RedisStore) SaveRun(run *workflow.Run) error {
	ctx := context.Background()

	data, err := encodeRedisPayload(run)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.keyRun(run.ID), data, 0).Err(); err != nil {
		return err
	}

	// Update indexes (best-effort; we don't treat index failures as fatal)
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, s.keyAll(), run.ID)
	pipe.SAdd(ctx, s.keyWorkflow(run.Workflow), run.ID)
	pipe.SAdd(ctx, s.keyStatus(run.Status), run.ID)
	_, _ = pipe.Exec(ctx)

	return nil
}

func (s *RedisStore) UpdateRun(run *workflow.Run) error {
	ctx := context.Background()

	data, err := encodeRedisPayload(run)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.keyRun(run.ID), data, 0).Err(); err != nil {
		return err
	}

	// Index updates: we just re-add; some stale index entries may remain if
	// the status changed, but ListRuns filters by payload.
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, s.keyAll(), run.ID)
	pipe.SAdd(ctx, s.keyWorkflow(run.Workflow), run.ID)
	pipe.SAdd(ctx, s.keyStatus(run.Status), run.ID)
	_, _ = pipe.Exec(ctx)

	return nil
}

func (s *RedisStore) GetRun(id string) (*workflow.Run, error) {
	ctx := context.Background()

	data, err := s.client.Get(ctx, s.keyRun(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return decodeRedisPayload(data)
}

func (s *RedisStore) ListRuns(filter RunFilter) ([]*workflow.Run, error) {
	ctx := context.Background()

	var ids []string
	var err error

	switch {
	case filter.Workflow != "" && filter.Status != "":
		ids, err = s.client.SInter(ctx,
			s.keyWorkflow(filter.Workflow),
			s.keyStatus(filter.Status),
		).Result()
	case filter.Workflow != "":
		ids, err = s.client.SMembers(ctx, s.keyWorkflow(filter.Workflow)).Result()
	case filter.Status != "":
		ids, err = s.client.SMembers(ctx, s.keyStatus(filter.Status)).Result()
	default:
		ids, err = s.client.SMembers(ctx, s.keyAll()).Result()
	}
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*workflow.Run{}, nil
		}
		return nil, err
	}
	if len(ids) == 0 {
		return []*workflow.Run{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, s.keyRun(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	var runs []*workflow.Run
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		run, err := decodeRedisPayload(data)
		if err != nil {
			return nil, err
		}

		// An index entry may be stale after a status change; filter again
		// by payload.
		if filter.Workflow != "" && run.Workflow != filter.Workflow {
			continue
		}
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}
