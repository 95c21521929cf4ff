// Package catalog resolves tenants to their isolated data partitions.
//
// The shared workspace partition lists every tenant. Each tenant's records
// live in a partition whose name is a pure function of the tenant id
// ([PartitionName]). Callers never build partition identifiers themselves:
// they obtain a [Partition] capability from the [Catalog] and query through
// its handle.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
)

// WorkspaceName is the name of the shared workspace partition.
const WorkspaceName = "ednevnik_workspace"

// partitionPrefix prefixes every tenant partition name.
const partitionPrefix = "ednevnik_tenant_db_tenant_id_"

// TenantID identifies one institution.
type TenantID int64

// PartitionName returns the deterministic partition name for id.
func PartitionName(id TenantID) string {
	return fmt.Sprintf("%s%d", partitionPrefix, id)
}

// Partition is the capability object for one tenant's data.
type Partition struct {
	// ID is the tenant this partition belongs to.
	ID TenantID
	// Name is the resolved partition name, for logs only.
	Name string
	// DB is the handle all tenant queries must go through.
	DB *sqlx.DB
}

// OpenFunc opens the partition with the given name.
type OpenFunc func(ctx context.Context, name string) (*sqlx.DB, error)

// Catalog lists tenants and hands out partition handles. Handles are opened
// lazily and cached until [Catalog.Close]. Safe for concurrent use.
type Catalog struct {
	workspace *sqlx.DB
	open      OpenFunc

	mu         sync.Mutex
	partitions map[TenantID]*Partition
}

// New returns a Catalog over an already-open workspace handle.
func New(workspace *sqlx.DB, open OpenFunc) *Catalog {
	return &Catalog{
		workspace:  workspace,
		open:       open,
		partitions: make(map[TenantID]*Partition),
	}
}

// Workspace returns the shared workspace handle.
func (c *Catalog) Workspace() *sqlx.DB {
	return c.workspace
}

// ListTenants returns every tenant id known to the workspace, ordered by id.
// An empty result is not an error.
func (c *Catalog) ListTenants(ctx context.Context) ([]TenantID, error) {
	var ids []TenantID
	if err := c.workspace.SelectContext(ctx, &ids, `SELECT id FROM tenant ORDER BY id`); err != nil {
		return nil, fmt.Errorf("catalog: list tenants: %w", err)
	}
	return ids, nil
}

// Partition returns the capability object for id, opening it on first use.
func (c *Catalog) Partition(ctx context.Context, id TenantID) (*Partition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.partitions[id]; ok {
		return p, nil
	}
	name := PartitionName(id)
	db, err := c.open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("catalog: open partition %s: %w", name, err)
	}
	p := &Partition{ID: id, Name: name, DB: db}
	c.partitions[id] = p
	return p, nil
}

// Partitions lists every tenant and opens its partition, preserving the
// [Catalog.ListTenants] order.
func (c *Catalog) Partitions(ctx context.Context) ([]*Partition, error) {
	ids, err := c.ListTenants(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Partition, 0, len(ids))
	for _, id := range ids {
		p, err := c.Partition(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Close releases every opened partition and the workspace handle.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for id, p := range c.partitions {
		if err := p.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("catalog: close %s: %w", p.Name, err))
		}
		delete(c.partitions, id)
	}
	if err := c.workspace.Close(); err != nil {
		errs = append(errs, fmt.Errorf("catalog: close workspace: %w", err))
	}
	return errors.Join(errs...)
}
