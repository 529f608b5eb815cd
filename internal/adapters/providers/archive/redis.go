package archive

import (
	"context"
	"fmt"
	"time"
)

// Setter is the slice of the redis seam the archive needs
type Setter interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Redis stores responses as expiring keys archive:<name>:<endpoint>:<stamp>:<seq>
type Redis struct {
	c    Setter
	name string
	ttl  time.Duration
	now  func() time.Time
}

// NewRedis builds a redis archive; name scopes keys per provider
func NewRedis(c Setter, name string, ttl time.Duration) *Redis {
	return &Redis{c: c, name: name, ttl: ttl, now: time.Now}
}

// Save implements Archive
func (r *Redis) Save(ctx context.Context, endpoint string, payload []byte) error {
	key := fmt.Sprintf("archive:%s:%s:%s:%d", r.name, endpointName(endpoint), r.now().UTC().Format(stampLayout), nextSeq())
	return r.c.Set(ctx, key, payload, r.ttl)
}
