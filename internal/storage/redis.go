package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"freshshare/internal/domain"
	logx "freshshare/pkg/logx"
)

// redisStore layout (all keys under KeyPrefix, default "fanout:"):
//   - recipient:<id>  hash with the recipient fields
//   - recipients:geo  GEO set of verified recipients that have a location
//   - reports         sorted set of JSON entries scored by unix millis
type redisStore struct {
	rdb    *redis.Client
	prefix string
	log    logx.Logger
}

func openRedis(cfg Config, log logx.Logger) (Store, error) {
	addr := strings.TrimSpace(cfg.Redis.Addr)
	if addr == "" {
		return nil, errors.New("storage.redis.addr is required for redis driver")
	}
	prefix := cfg.Redis.KeyPrefix
	if prefix == "" {
		prefix = "fanout:"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Debug("redis store opened", logx.String("addr", addr), logx.String("prefix", prefix))
	return &redisStore{rdb: rdb, prefix: prefix, log: log}, nil
}

func (s *redisStore) key(parts ...string) string {
	return s.prefix + strings.Join(parts, ":")
}

func (s *redisStore) Close() error { return s.rdb.Close() }

func (s *redisStore) FindRecipientsInRadius(ctx context.Context, lat, lon, radiusKm float64, excludeID string) ([]domain.Recipient, error) {
	ids, err := s.rdb.GeoSearch(ctx, s.key("recipients", "geo"), &redis.GeoSearchQuery{
		Longitude:  lon,
		Latitude:   lat,
		Radius:     radiusKm * radiusSlack,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, 0, len(ids))
	_, err = s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, id := range ids {
			if id == excludeID {
				continue
			}
			cmds = append(cmds, p.HGetAll(ctx, s.key("recipient", id)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	cands := make([]domain.Recipient, 0, len(cmds))
	for _, c := range cmds {
		m := c.Val()
		if len(m) == 0 {
			continue
		}
		r, err := recipientFromHash(m)
		if err != nil {
			s.log.Warn("skip malformed recipient hash", logx.Err(err))
			continue
		}
		cands = append(cands, r)
	}
	return eligible(cands, domain.Point{Lat: lat, Lon: lon}, radiusKm, excludeID), nil
}

func (s *redisStore) UpsertRecipient(ctx context.Context, r domain.Recipient) error {
	if err := validateRecipient(r); err != nil {
		return err
	}
	geoKey := s.key("recipients", "geo")
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		hkey := s.key("recipient", r.ID)
		p.Del(ctx, hkey)
		p.HSet(ctx, hkey, recipientToHash(r))
		if r.Verified && r.Location != nil {
			p.GeoAdd(ctx, geoKey, &redis.GeoLocation{Name: r.ID, Longitude: r.Location.Lon, Latitude: r.Location.Lat})
		} else {
			p.ZRem(ctx, geoKey, r.ID)
		}
		return nil
	})
	return err
}

func (s *redisStore) AppendReport(ctx context.Context, e ReportEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.rdb.ZAdd(ctx, s.key("reports"), redis.Z{Score: float64(e.At.UnixMilli()), Member: string(b)}).Err()
}

func (s *redisStore) PruneReports(ctx context.Context, before time.Time) (int, error) {
	n, err := s.rdb.ZRemRangeByScore(ctx, s.key("reports"), "-inf", "("+strconv.FormatInt(before.UnixMilli(), 10)).Result()
	return int(n), err
}

func recipientToHash(r domain.Recipient) map[string]any {
	m := map[string]any{
		"id":           r.ID,
		"name":         r.Name,
		"email":        r.Email,
		"phone":        r.Phone,
		"device_token": r.DeviceToken,
		"verified":     strconv.FormatBool(r.Verified),
	}
	if r.Location != nil {
		m["lat"] = strconv.FormatFloat(r.Location.Lat, 'f', -1, 64)
		m["lon"] = strconv.FormatFloat(r.Location.Lon, 'f', -1, 64)
	}
	return m
}

func recipientFromHash(m map[string]string) (domain.Recipient, error) {
	r := domain.Recipient{
		ID:          m["id"],
		Name:        m["name"],
		Email:       m["email"],
		Phone:       m["phone"],
		DeviceToken: m["device_token"],
	}
	if r.ID == "" {
		return r, ErrInvalidRecipient
	}
	r.Verified, _ = strconv.ParseBool(m["verified"])
	if m["lat"] != "" && m["lon"] != "" {
		lat, err1 := strconv.ParseFloat(m["lat"], 64)
		lon, err2 := strconv.ParseFloat(m["lon"], 64)
		if err := errors.Join(err1, err2); err != nil {
			return r, err
		}
		r.Location = &domain.Point{Lat: lat, Lon: lon}
	}
	return r, nil
}
