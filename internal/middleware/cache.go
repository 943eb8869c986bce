package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/task-management-api/internal/config"
)

// captureWriter records the status and up to limit body bytes while
// forwarding everything to the client.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	size   int64
	limit  int64
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if cw.limit <= 0 {
		cw.buf.Write(b)
	} else if remain := cw.limit - cw.size; remain > 0 {
		if int64(len(b)) <= remain {
			cw.buf.Write(b)
		} else {
			cw.buf.Write(b[:remain])
		}
	}
	cw.size += int64(len(b))
	return cw.ResponseWriter.Write(b)
}

// generationKey holds the per-user counter folded into every cache key.
func generationKey(cfg config.CacheConfig, userID string) string {
	return cfg.Prefix + ":gen:" + userID
}

// Generations invalidates the cached responses of a user from outside the
// request path, e.g. after a background job changed their data.
type Generations struct {
	Cfg   config.CacheConfig
	Redis *redis.Client
	Log   log.FieldLogger
}

// NewGenerations returns nil when caching is off; a nil *Generations is a
// valid no-op invalidator.
func NewGenerations(cfg config.CacheConfig, rdb *redis.Client, logger log.FieldLogger) *Generations {
	if !cfg.Enabled || rdb == nil {
		return nil
	}
	return &Generations{Cfg: cfg, Redis: rdb, Log: logger}
}

// Invalidate bumps the generation of userID.  Failures are logged.
func (g *Generations) Invalidate(ctx context.Context, userID string) {
	if g == nil || userID == "" {
		return
	}
	if err := g.Redis.Incr(context.WithoutCancel(ctx), generationKey(g.Cfg, userID)).Err(); err != nil {
		g.Log.WithError(err).WithField("user_id", userID).Warn("cache.generation.bump_failed")
	}
}

// cacheKeyFrom scopes the key to the user and their current generation, so
// one user's responses are never served to another and a write makes the
// earlier entries unreachable.
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context, userID string, gen int64) string {
	parts := []string{"route", c.Path(), "path", c.Request().URL.Path}
	if strings.ToLower(cfg.KeyStrategy) != "route" {
		parts = append(parts, "q", c.Request().URL.RawQuery)
	}
	sum := sha1.Sum([]byte(strings.Join(parts, ":")))
	return fmt.Sprintf("%s:u:%s:g%d:%x", cfg.Prefix, userID, gen, sum[:])
}

// encodePayload packs [4 bytes status][4 bytes header length][header JSON][body].
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdrJSON, err := sonic.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdrJSON)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
	copy(out[8:], hdrJSON)
	copy(out[8+len(hdrJSON):], body)
	return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen < 0 || 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	header = make(http.Header)
	if hlen > 0 {
		if err := sonic.Unmarshal(bs[8:8+hlen], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, bs[8+hlen:], true
}

// NewRedisCache caches successful responses of the configured methods for
// authenticated users.  Any other successful request from a user bumps
// that user's generation.  It must run after JWTAuth; anonymous requests
// pass through untouched.  Redis failures degrade to uncached responses.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, logger log.FieldLogger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	maxBody := int64(cfg.MaxBodyBytes)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid := UserID(c)
			if uid == "" {
				return next(c)
			}
			ctx := c.Request().Context()

			if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
				if err := next(c); err != nil {
					return err
				}
				if s := c.Response().Status; s >= 200 && s < 400 {
					if err := rdb.Incr(context.WithoutCancel(ctx), generationKey(cfg, uid)).Err(); err != nil {
						logger.WithError(err).WithField("user_id", uid).Warn("cache.generation.bump_failed")
					}
				}
				return nil
			}

			gen, err := rdb.Get(ctx, generationKey(cfg, uid)).Int64()
			if err != nil && err != redis.Nil {
				return next(c)
			}
			key := cacheKeyFrom(cfg, c, uid, gen)

			if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
				if status, hdr, body, ok := decodePayload(bs); ok {
					for k, vals := range hdr {
						if strings.EqualFold(k, echo.HeaderContentLength) || strings.EqualFold(k, echo.HeaderXRequestID) {
							continue
						}
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					c.Response().Header().Set("X-Cache", "HIT")
					c.Response().WriteHeader(status)
					_, _ = c.Response().Write(body)
					return nil
				}
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || (maxBody > 0 && cw.size > maxBody) {
				return nil
			}
			hdr := c.Response().Header().Clone()
			hdr.Del("X-Cache")
			payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
			if err != nil {
				return nil
			}
			if err := rdb.SetEx(context.WithoutCancel(ctx), key, payload, ttl).Err(); err != nil {
				logger.WithError(err).WithField("key", key).Warn("cache.store_failed")
			}
			return nil
		}
	}
}

