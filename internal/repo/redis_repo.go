package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/dkeye/studyroom/internal/domain"
)

const roomIndexKey = "rooms:index"

func roomKey(id domain.RoomID) string {
	return fmt.Sprintf("rooms:%s", id)
}

func presenceKey(id domain.RoomID) string {
	return fmt.Sprintf("rooms:%s:presence", id)
}

// setCountScript applies a count only when its sequence is newer than the stored one.
// Returns -1 when the room is missing, 0 for a stale write, 1 when applied.
var setCountScript = redis.NewScript(`
	local room_key = KEYS[1]
	local presence_key = KEYS[2]
	local count = ARGV[1]
	local seq = tonumber(ARGV[2])

	if redis.call('EXISTS', room_key) == 0 then
		return -1
	end

	local cur = tonumber(redis.call('HGET', presence_key, 'seq') or '0')
	if seq <= cur then
		return 0
	end

	redis.call('HSET', presence_key, 'count', count, 'seq', ARGV[2])
	return 1
`)

// createRoomScript stores the record and indexes it in one step. The index
// type is checked before any write so a failure leaves nothing behind.
// Returns 0 when the id is taken, 1 when created.
var createRoomScript = redis.NewScript(`
	local index_type = redis.call('TYPE', KEYS[2]).ok
	if index_type ~= 'zset' and index_type ~= 'none' then
		return redis.error_reply('room index has type ' .. index_type)
	end
	if redis.call('SET', KEYS[1], ARGV[1], 'NX') == false then
		return 0
	end
	redis.call('ZADD', KEYS[2], ARGV[2], ARGV[3])
	return 1
`)

type RedisRoomRepo struct{ rdb *redis.Client }

func NewRedisRoomRepo(rdb *redis.Client) *RedisRoomRepo {
	return &RedisRoomRepo{rdb: rdb}
}

func (rr *RedisRoomRepo) CreateRoom(ctx context.Context, room domain.Room) error {
	b, err := json.Marshal(room)
	if err != nil {
		return err
	}
	created, err := createRoomScript.Run(ctx, rr.rdb,
		[]string{roomKey(room.ID), roomIndexKey},
		string(b), room.CreatedAt.UnixMilli(), string(room.ID),
	).Int()
	if err != nil {
		return err
	}
	if created == 0 {
		return ErrRoomExists
	}
	return nil
}

func (rr *RedisRoomRepo) GetRoom(ctx context.Context, id domain.RoomID) (domain.Room, error) {
	val, err := rr.rdb.Get(ctx, roomKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Room{}, ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, err
	}
	var r domain.Room
	if err := json.Unmarshal(val, &r); err != nil {
		return domain.Room{}, err
	}
	count, err := rr.rdb.HGet(ctx, presenceKey(id), "count").Int()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return domain.Room{}, err
	default:
		r.ParticipantCount = count
	}
	return r, nil
}

func (rr *RedisRoomRepo) ListRooms(ctx context.Context, limit int) ([]domain.Room, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := rr.rdb.ZRevRange(ctx, roomIndexKey, 0, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []domain.Room{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = roomKey(domain.RoomID(id))
	}
	vals, err := rr.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	pipe := rr.rdb.Pipeline()
	counts := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		counts[i] = pipe.HGet(ctx, presenceKey(domain.RoomID(id)), "count")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	res := make([]domain.Room, 0, len(ids))
	for i, val := range vals {
		s, ok := val.(string)
		if !ok {
			// index entry without a record
			continue
		}
		var r domain.Room
		if json.Unmarshal([]byte(s), &r) != nil {
			continue
		}
		if n, err := strconv.Atoi(counts[i].Val()); err == nil {
			r.ParticipantCount = n
		}
		res = append(res, r)
	}
	return res, nil
}

func (rr *RedisRoomRepo) UpdateRoom(ctx context.Context, room domain.Room) error {
	b, err := json.Marshal(room)
	if err != nil {
		return err
	}
	ok, err := rr.rdb.SetXX(ctx, roomKey(room.ID), b, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrRoomNotFound
	}
	return nil
}

func (rr *RedisRoomRepo) DeleteRoom(ctx context.Context, id domain.RoomID) error {
	pipe := rr.rdb.TxPipeline()
	del := pipe.Del(ctx, roomKey(id))
	pipe.Del(ctx, presenceKey(id))
	pipe.ZRem(ctx, roomIndexKey, string(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	if del.Val() == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (rr *RedisRoomRepo) SetParticipantCount(ctx context.Context, id domain.RoomID, count int, seq uint64) (bool, error) {
	n, err := setCountScript.Run(ctx, rr.rdb,
		[]string{roomKey(id), presenceKey(id)},
		count, strconv.FormatUint(seq, 10),
	).Int()
	if err != nil {
		return false, err
	}
	switch n {
	case -1:
		return false, ErrRoomNotFound
	case 0:
		return false, nil
	default:
		return true, nil
	}
}
