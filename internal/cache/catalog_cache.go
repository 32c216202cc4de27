package cache

import (
	"fmt"
	"time"

	catalogdomain "github.com/smallbiznis/sekarnet/internal/catalog/domain"
)

const (
	catalogPrefix     = "catalog:"
	defaultPackageTTL = 10 * time.Minute
	defaultListTTL    = 2 * time.Minute
)

// CatalogCache stores package lookups for the read-mostly catalog.
type CatalogCache interface {
	GetPackage(id string) (catalogdomain.Package, bool)
	SetPackage(pkg catalogdomain.Package)
	GetList(includeInactive bool, skip, limit int) (catalogdomain.ListResponse, bool)
	SetList(includeInactive bool, skip, limit int, resp catalogdomain.ListResponse)
	Invalidate()
}

type catalogCache struct {
	packages Cache[catalogdomain.Package]
	lists    Cache[catalogdomain.ListResponse]
	pkgTTL   time.Duration
	listTTL  time.Duration
}

// NewCatalogCache returns an in-memory cache tuned for catalog reads.
func NewCatalogCache() CatalogCache {
	return &catalogCache{
		packages: NewTTLCache[catalogdomain.Package](),
		lists:    NewTTLCache[catalogdomain.ListResponse](),
		pkgTTL:   defaultPackageTTL,
		listTTL:  defaultListTTL,
	}
}

func (c *catalogCache) GetPackage(id string) (catalogdomain.Package, bool) {
	return c.packages.Get(cacheKey("catalog", "package", id))
}

func (c *catalogCache) SetPackage(pkg catalogdomain.Package) {
	c.packages.Set(cacheKey("catalog", "package", pkg.ID.String()), pkg, c.pkgTTL)
}

func (c *catalogCache) GetList(includeInactive bool, skip, limit int) (catalogdomain.ListResponse, bool) {
	return c.lists.Get(listKey(includeInactive, skip, limit))
}

func (c *catalogCache) SetList(includeInactive bool, skip, limit int, resp catalogdomain.ListResponse) {
	c.lists.Set(listKey(includeInactive, skip, limit), resp, c.listTTL)
}

func (c *catalogCache) Invalidate() {
	c.packages.DeleteByPrefix(catalogPrefix)
	c.lists.DeleteByPrefix(catalogPrefix)
}

func listKey(includeInactive bool, skip, limit int) string {
	return cacheKey("catalog", "list", fmt.Sprintf("%t", includeInactive), fmt.Sprintf("%d", skip), fmt.Sprintf("%d", limit))
}
