package clinic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDirectory struct {
	tenantCalls int
	tenants     map[string]*Tenant
}

func (d *countingDirectory) TenantBySlug(ctx context.Context, slug string) (*Tenant, error) {
	d.tenantCalls++
	if t, ok := d.tenants[slug]; ok {
		return t, nil
	}
	return nil, ErrTenantNotFound
}

func (d *countingDirectory) Location(ctx context.Context, tenantID, locationID string) (*Location, error) {
	return &Location{ID: locationID, TenantID: tenantID}, nil
}

func (d *countingDirectory) Agent(ctx context.Context, tenantID, agentID string) (*Agent, error) {
	return nil, ErrAgentNotFound
}

func TestCachedDirectoryMemoizesHitsAndMisses(t *testing.T) {
	inner := &countingDirectory{tenants: map[string]*Tenant{"clinic-a": {ID: "t-1", Slug: "clinic-a"}}}
	dir := NewCachedDirectory(inner, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tenant, err := dir.TenantBySlug(ctx, "clinic-a")
		require.NoError(t, err)
		assert.Equal(t, "t-1", tenant.ID)
	}
	assert.Equal(t, 1, inner.tenantCalls)

	for i := 0; i < 2; i++ {
		_, err := dir.TenantBySlug(ctx, "ghost")
		assert.ErrorIs(t, err, ErrTenantNotFound)
	}
	assert.Equal(t, 2, inner.tenantCalls)

	loc, err := dir.Location(ctx, "t-1", "loc-1")
	require.NoError(t, err)
	assert.Equal(t, "loc-1", loc.ID)

	_, err = dir.Agent(ctx, "t-1", "a-1")
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestCachedDirectoryDisabled(t *testing.T) {
	inner := &countingDirectory{}
	assert.Same(t, Directory(inner), NewCachedDirectory(inner, 0))
}
