package reminder

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	goredis "github.com/redis/go-redis/v9"
)

const (
	redisUserKeyPrefix = "reminders:user:"
	redisDueKey        = "reminders:due"
	redisMemberSep     = "|"
)

// redisReminder is the CBOR payload stored per identifier.
type redisReminder struct {
	Identifier string `cbor:"1,keyasint"`
	FireAt     int64  `cbor:"2,keyasint"`
	Hour       int    `cbor:"3,keyasint"`
	Minute     int    `cbor:"4,keyasint"`
	Repeats    bool   `cbor:"5,keyasint"`
	TimeZone   string `cbor:"6,keyasint,omitempty"`
	Title      string `cbor:"7,keyasint,omitempty"`
	Body       string `cbor:"8,keyasint,omitempty"`
	LeadSecs   int64  `cbor:"9,keyasint,omitempty"`
}

func toRedis(req Request) redisReminder {
	return redisReminder{
		Identifier: req.Identifier,
		FireAt:     req.FireAt.Unix(),
		Hour:       req.Hour,
		Minute:     req.Minute,
		Repeats:    req.Repeats,
		TimeZone:   req.TimeZone,
		Title:      req.Title,
		Body:       req.Body,
		LeadSecs:   int64(req.Lead / time.Second),
	}
}

func (rr redisReminder) request() Request {
	return Request{
		Identifier: rr.Identifier,
		FireAt:     time.Unix(rr.FireAt, 0).UTC(),
		Hour:       rr.Hour,
		Minute:     rr.Minute,
		Lead:       time.Duration(rr.LeadSecs) * time.Second,
		Repeats:    rr.Repeats,
		TimeZone:   rr.TimeZone,
		Title:      rr.Title,
		Body:       rr.Body,
	}
}

// RedisStore implements Store with a hash of CBOR encoded requests per user
// and a sorted set indexing every request by fire time.
type RedisStore struct {
	rdb goredis.UniversalClient
}

// NewRedisStore creates a reminder store on an existing client.
func NewRedisStore(rdb goredis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr string) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func userKey(userID string) string {
	return redisUserKeyPrefix + userID
}

func dueMember(userID, identifier string) string {
	return userID + redisMemberSep + identifier
}

func splitDueMember(member string) (userID, identifier string, ok bool) {
	return strings.Cut(member, redisMemberSep)
}

// Add stores the request and indexes its fire time in one transaction.
func (s *RedisStore) Add(ctx context.Context, userID string, req Request) error {
	raw, err := cbor.Marshal(toRedis(req))
	if err != nil {
		return fmt.Errorf("encode reminder: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		put(ctx, pipe, userID, req, raw)
		return nil
	})
	return err
}

func put(ctx context.Context, pipe goredis.Pipeliner, userID string, req Request, raw []byte) {
	pipe.HSet(ctx, userKey(userID), req.Identifier, raw)
	pipe.ZAdd(ctx, redisDueKey, goredis.Z{
		Score:  float64(req.FireAt.Unix()),
		Member: dueMember(userID, req.Identifier),
	})
}

func remove(ctx context.Context, pipe goredis.Pipeliner, userID, identifier string) {
	pipe.HDel(ctx, userKey(userID), identifier)
	pipe.ZRem(ctx, redisDueKey, dueMember(userID, identifier))
}

// Cancel removes the request and its index entry.
func (s *RedisStore) Cancel(ctx context.Context, userID, identifier string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		remove(ctx, pipe, userID, identifier)
		return nil
	})
	return err
}

// Pending lists the identifiers registered for userID.
func (s *RedisStore) Pending(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.rdb.HKeys(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	slices.Sort(ids)
	return ids, nil
}

// Due returns requests whose fire time is at or before now, oldest first.
// Index entries without a stored request are dropped.
func (s *RedisStore) Due(ctx context.Context, now time.Time, limit int) ([]Entry, error) {
	by := &goredis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}
	if limit > 0 {
		by.Count = int64(limit)
	}
	members, err := s.rdb.ZRangeByScore(ctx, redisDueKey, by).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(members))
	for _, member := range members {
		userID, identifier, ok := splitDueMember(member)
		if !ok {
			s.rdb.ZRem(ctx, redisDueKey, member)
			continue
		}
		raw, err := s.rdb.HGet(ctx, userKey(userID), identifier).Bytes()
		if errors.Is(err, goredis.Nil) {
			s.rdb.ZRem(ctx, redisDueKey, member)
			continue
		}
		if err != nil {
			return nil, err
		}
		var rr redisReminder
		if err := cbor.Unmarshal(raw, &rr); err != nil {
			return nil, fmt.Errorf("decode reminder %s: %w", member, err)
		}
		entries = append(entries, Entry{UserID: userID, Request: rr.request()})
	}
	return entries, nil
}

// Advance watches the user's hash, compares the stored request with prev and
// writes next in a MULTI block. A concurrent write to the hash aborts the
// transaction and counts as a lost race.
func (s *RedisStore) Advance(ctx context.Context, userID string, prev Request, next *Request) (bool, error) {
	var raw []byte
	if next != nil {
		var err error
		if raw, err = cbor.Marshal(toRedis(*next)); err != nil {
			return false, fmt.Errorf("encode reminder: %w", err)
		}
	}

	key := userKey(userID)
	applied := false
	err := s.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		cur, err := tx.HGet(ctx, key, prev.Identifier).Bytes()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		var rr redisReminder
		if err := cbor.Unmarshal(cur, &rr); err != nil {
			return fmt.Errorf("decode reminder: %w", err)
		}
		if !rr.request().Same(toRedis(prev).request()) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			if next == nil {
				remove(ctx, pipe, userID, prev.Identifier)
			} else {
				put(ctx, pipe, userID, *next, raw)
			}
			return nil
		})
		if err != nil {
			return err
		}
		applied = true
		return nil
	}, key)
	if errors.Is(err, goredis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return applied, nil
}

// Compile-time interface check
var _ Store = (*RedisStore)(nil)
