package nonce

import (
	"context"
	"strconv"

	"CProject/logger"
	errs "CProject/tools/errs"

	"github.com/redis/go-redis/v9"
)

// SnapshotStore 优雅停机时保存 confirmed 视图 重启时恢复。
// pending 故意不持久化——重启后 pending 一律按空算 出错靠下一次 resync。
type SnapshotStore interface {
	Save(ctx context.Context, confirmed map[string]uint64) error
	Load(ctx context.Context) (map[string]uint64, error)
}

// Snapshot 导出 confirmed 视图
func (m *Manager) Snapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]uint64, len(m.accounts))
	for acc, st := range m.accounts {
		out[acc] = st.confirmed
	}
	return out
}

// Persist 落盘到快照存储
func (m *Manager) Persist(ctx context.Context, store SnapshotStore) error {
	snap := m.Snapshot()
	if err := store.Save(ctx, snap); err != nil {
		return errs.WrapMsg(err, "persist nonce snapshot", "accounts", len(snap))
	}
	logger.Infof("[nonce] persisted snapshot accounts=%d", len(snap))
	return nil
}

// Restore 从快照存储恢复 confirmed pending 保持为空
func (m *Manager) Restore(ctx context.Context, store SnapshotStore) error {
	snap, err := store.Load(ctx)
	if err != nil {
		return errs.WrapMsg(err, "restore nonce snapshot")
	}
	for acc, confirmed := range snap {
		m.Seed(acc, confirmed)
	}
	logger.Infof("[nonce] restored snapshot accounts=%d", len(snap))
	return nil
}

const redisSnapshotKey = "cgw:nonce:confirmed"

// RedisStore redis hash 实现 account -> confirmed
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Save(ctx context.Context, confirmed map[string]uint64) error {
	if len(confirmed) == 0 {
		return nil
	}
	fields := make(map[string]interface{}, len(confirmed))
	for acc, n := range confirmed {
		fields[acc] = strconv.FormatUint(n, 10)
	}
	return s.rdb.HSet(ctx, redisSnapshotKey, fields).Err()
}

func (s *RedisStore) Load(ctx context.Context) (map[string]uint64, error) {
	raw, err := s.rdb.HGetAll(ctx, redisSnapshotKey).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]uint64, len(raw))
	for acc, v := range raw {
		n, perr := strconv.ParseUint(v, 10, 64)
		if perr != nil {
			logger.Warnf("[nonce] bad snapshot value account=%s value=%q", short(acc), v)
			continue
		}
		out[acc] = n
	}
	return out, nil
}
