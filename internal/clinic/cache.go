package clinic

import (
	"context"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CachedDirectory memoizes directory lookups in process for a short TTL.
// Not-found results are cached too so repeated probes for unknown slugs do not
// reach the database.
type CachedDirectory struct {
	next  Directory
	cache *gocache.Cache
}

type notFound struct{ err error }

// NewCachedDirectory wraps next with a TTL cache. A non-positive ttl disables
// caching and returns next unchanged.
func NewCachedDirectory(next Directory, ttl time.Duration) Directory {
	if ttl <= 0 {
		return next
	}
	return &CachedDirectory{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (c *CachedDirectory) TenantBySlug(ctx context.Context, slug string) (*Tenant, error) {
	v, err := c.lookup("tenant:"+slug, ErrTenantNotFound, func() (any, error) {
		return c.next.TenantBySlug(ctx, slug)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Tenant), nil
}

func (c *CachedDirectory) Location(ctx context.Context, tenantID, locationID string) (*Location, error) {
	v, err := c.lookup("location:"+tenantID+":"+locationID, ErrLocationNotFound, func() (any, error) {
		return c.next.Location(ctx, tenantID, locationID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Location), nil
}

func (c *CachedDirectory) Agent(ctx context.Context, tenantID, agentID string) (*Agent, error) {
	v, err := c.lookup("agent:"+tenantID+":"+agentID, ErrAgentNotFound, func() (any, error) {
		return c.next.Agent(ctx, tenantID, agentID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Agent), nil
}

func (c *CachedDirectory) lookup(key string, missing error, load func() (any, error)) (any, error) {
	if cached, ok := c.cache.Get(key); ok {
		if nf, isNF := cached.(notFound); isNF {
			return nil, nf.err
		}
		return cached, nil
	}
	v, err := load()
	if err != nil {
		if errors.Is(err, missing) {
			c.cache.SetDefault(key, notFound{err: err})
		}
		return nil, err
	}
	c.cache.SetDefault(key, v)
	return v, nil
}
