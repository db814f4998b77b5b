package publicview

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitrine-app/vitrine/app/models"
	"github.com/vitrine-app/vitrine/internal/pkg/apperr"
)

type fakePublicRepo struct {
	users    map[string]*models.User
	catalogs map[string]*models.Catalog // keyed by ownerID+"/"+slug
	products map[uint][]models.Product

	userLookups int
}

func (r *fakePublicRepo) GetUserByUsername(username string) (*models.User, error) {
	r.userLookups++
	if user, ok := r.users[username]; ok {
		return user, nil
	}
	return nil, apperr.ErrNotFound
}

func (r *fakePublicRepo) GetPublicCatalogBySlug(ownerID, slug string) (*models.Catalog, error) {
	if catalog, ok := r.catalogs[ownerID+"/"+slug]; ok {
		return catalog, nil
	}
	return nil, apperr.ErrNotFound
}

func (r *fakePublicRepo) ListPublicCatalogs(ownerID string) ([]models.Catalog, error) {
	var out []models.Catalog
	for _, c := range r.catalogs {
		if c.OwnerID == ownerID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakePublicRepo) ListVisibleProducts(catalogID uint) ([]models.Product, error) {
	return r.products[catalogID], nil
}

type memoryCache struct {
	values map[string]string
	ints   map[string]int64
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}, ints: map[string]int64{}}
}

func (c *memoryCache) Get(key string) (string, bool) {
	val, ok := c.values[key]
	return val, ok
}

func (c *memoryCache) Set(key, value string, ttl time.Duration) {
	c.values[key] = value
}

func (c *memoryCache) Incr(key string) int64 {
	c.ints[key]++
	return c.ints[key]
}

func (c *memoryCache) GetInt(key string) (int64, bool) {
	val, ok := c.ints[key]
	return val, ok
}

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func newFakeRepo() *fakePublicRepo {
	username := "maria"
	return &fakePublicRepo{
		users: map[string]*models.User{
			"maria": {
				ID:              "user-1",
				Username:        &username,
				StoreName:       "Maria's Crafts",
				ContactNumber:   "5511999999999",
				MessageTemplate: "Hello! I want {{productName}}",
			},
		},
		catalogs: map[string]*models.Catalog{
			"user-1/summer": {ID: 10, OwnerID: "user-1", Slug: "summer", Name: "Summer", IsPublic: true},
		},
		products: map[uint][]models.Product{
			10: {
				{CatalogID: 10, Slug: "hat", Name: "Hat", Price: price("25.00"), Visible: true},
				{CatalogID: 10, Slug: "bag", Name: "Bag", Price: price("10.50"), Visible: true},
				{CatalogID: 10, Slug: "card", Name: "Card", Visible: true},
			},
		},
	}
}

func TestResolveCatalogRendersContactLinks(t *testing.T) {
	repo := newFakeRepo()
	resolver := NewResolver(repo, newMemoryCache())

	view, err := resolver.ResolveCatalog("maria", "summer", SortDefault)
	require.NoError(t, err)

	assert.Equal(t, "maria", view.Username)
	assert.Equal(t, "Maria's Crafts", view.StoreName)
	require.Len(t, view.Products, 3)
	assert.Equal(t, "25.00", view.Products[0].Price)
	assert.Contains(t, view.Products[0].WhatsAppLink, "https://wa.me/5511999999999")
	assert.Contains(t, view.Products[0].WhatsAppLink, "Hat")
	// Product without a price omits the field entirely
	assert.Empty(t, view.Products[2].Price)
}

func TestResolveCatalogUnknownUsernameIsNotFound(t *testing.T) {
	resolver := NewResolver(newFakeRepo(), newMemoryCache())

	_, err := resolver.ResolveCatalog("nobody", "summer", SortDefault)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestResolveCatalogPrivateCatalogIsNotFound(t *testing.T) {
	repo := newFakeRepo()
	// The restricted repository never returns private catalogs, so from the
	// resolver's point of view they simply do not exist.
	delete(repo.catalogs, "user-1/summer")
	resolver := NewResolver(repo, newMemoryCache())

	_, err := resolver.ResolveCatalog("maria", "summer", SortDefault)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestResolveCatalogSortsByPrice(t *testing.T) {
	resolver := NewResolver(newFakeRepo(), newMemoryCache())

	asc, err := resolver.ResolveCatalog("maria", "summer", SortPriceAsc)
	require.NoError(t, err)
	assert.Equal(t, "bag", asc.Products[0].Slug)
	assert.Equal(t, "hat", asc.Products[1].Slug)
	// Unpriced products sink to the end
	assert.Equal(t, "card", asc.Products[2].Slug)

	desc, err := resolver.ResolveCatalog("maria", "summer", SortPriceDesc)
	require.NoError(t, err)
	assert.Equal(t, "hat", desc.Products[0].Slug)
	assert.Equal(t, "bag", desc.Products[1].Slug)
	assert.Equal(t, "card", desc.Products[2].Slug)
}

func TestResolveCatalogRejectsUnknownSort(t *testing.T) {
	resolver := NewResolver(newFakeRepo(), newMemoryCache())

	_, err := resolver.ResolveCatalog("maria", "summer", "name_asc")
	require.Error(t, err)
	_, ok := apperr.IsValidation(err)
	assert.True(t, ok)
}

func TestResolveStoreListsPublicCatalogs(t *testing.T) {
	resolver := NewResolver(newFakeRepo(), newMemoryCache())

	view, err := resolver.ResolveStore("MARIA")
	require.NoError(t, err)
	assert.Equal(t, "maria", view.Username)
	require.Len(t, view.Catalogs, 1)
	assert.Equal(t, "summer", view.Catalogs[0].Slug)
}

func TestResolveCachesUntilInvalidated(t *testing.T) {
	repo := newFakeRepo()
	resolver := NewResolver(repo, newMemoryCache())

	_, err := resolver.ResolveStore("maria")
	require.NoError(t, err)
	_, err = resolver.ResolveStore("maria")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.userLookups)

	resolver.Invalidate("maria")
	_, err = resolver.ResolveStore("maria")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.userLookups)
}
