package publicview

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/vitrine-app/vitrine/app/models"
	"github.com/vitrine-app/vitrine/app/repository"
	"github.com/vitrine-app/vitrine/internal/pkg/apperr"
	"github.com/vitrine-app/vitrine/internal/pkg/cache"
	"github.com/vitrine-app/vitrine/internal/pkg/env"
	"github.com/vitrine-app/vitrine/internal/pkg/whatsapp"
)

// Sort orders for public product listings.
const (
	SortDefault   = ""
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
)

// StoreView is the public representation of a seller's storefront.
type StoreView struct {
	Username  string           `json:"username"`
	StoreName string           `json:"store_name"`
	PhotoURL  string           `json:"photo_url,omitempty"`
	Catalogs  []CatalogSummary `json:"catalogs"`
}

// CatalogSummary lists a public catalog on the storefront page.
type CatalogSummary struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CatalogView is the public representation of one catalog with its visible
// products.
type CatalogView struct {
	ID        uint          `json:"id"`
	Username  string        `json:"username"`
	StoreName string        `json:"store_name"`
	Slug      string        `json:"slug"`
	Name      string        `json:"name"`
	Products  []ProductView `json:"products"`
}

// ProductView is a visible product with its contact link rendered.
type ProductView struct {
	Slug         string   `json:"slug"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Price        string   `json:"price,omitempty"`
	Images       []string `json:"images,omitempty"`
	WhatsAppLink string   `json:"whatsapp_link,omitempty"`
}

// Cache is the small caching surface the resolver needs. Satisfied by the
// Redis-backed implementation and by in-memory fakes in tests.
type Cache interface {
	Get(key string) (string, bool)
	Set(key, value string, ttl time.Duration)
	Incr(key string) int64
	GetInt(key string) (int64, bool)
}

// Resolver serves anonymous storefront and catalog pages. All reads go
// through the restricted repository, so private data is unreachable here.
type Resolver struct {
	repo  repository.PublicRepository
	cache Cache
	ttl   time.Duration
}

// NewResolver builds the public resolver.
func NewResolver(repo repository.PublicRepository, c Cache) *Resolver {
	ttl := 60 * time.Second
	if v, err := strconv.Atoi(env.GetEnv("PUBLIC_CACHE_TTL_SECONDS", "60")); err == nil && v >= 0 {
		ttl = time.Duration(v) * time.Second
	}
	return &Resolver{repo: repo, cache: c, ttl: ttl}
}

// ResolveStore resolves /{username} into the storefront view. Unknown
// usernames and sellers without a claimed username both collapse into
// apperr.ErrNotFound.
func (r *Resolver) ResolveStore(username string) (*StoreView, error) {
	key := r.storeKey(username)
	if cached, ok := r.cacheGet(key); ok {
		var view StoreView
		if err := json.Unmarshal([]byte(cached), &view); err == nil {
			return &view, nil
		}
	}

	user, err := r.repo.GetUserByUsername(models.NormalizeUsername(username))
	if err != nil {
		return nil, err
	}

	catalogs, err := r.repo.ListPublicCatalogs(user.ID)
	if err != nil {
		return nil, err
	}

	view := &StoreView{
		Username:  user.UsernameValue(),
		StoreName: user.StoreName,
		PhotoURL:  user.StorePhotoURL,
		Catalogs:  make([]CatalogSummary, 0, len(catalogs)),
	}
	for _, c := range catalogs {
		view.Catalogs = append(view.Catalogs, CatalogSummary{
			Slug:        c.Slug,
			Name:        c.Name,
			Description: c.Description,
		})
	}

	r.cachePut(key, view)
	return view, nil
}

// ResolveCatalog resolves /{username}/{catalogSlug} into the public catalog
// view. A private catalog is indistinguishable from a missing one.
func (r *Resolver) ResolveCatalog(username, catalogSlug, sortOrder string) (*CatalogView, error) {
	if sortOrder != SortDefault && sortOrder != SortPriceAsc && sortOrder != SortPriceDesc {
		return nil, apperr.Validation("unknown sort order %q", sortOrder)
	}

	key := r.catalogKey(username, catalogSlug, sortOrder)
	if cached, ok := r.cacheGet(key); ok {
		var view CatalogView
		if err := json.Unmarshal([]byte(cached), &view); err == nil {
			return &view, nil
		}
	}

	user, err := r.repo.GetUserByUsername(models.NormalizeUsername(username))
	if err != nil {
		return nil, err
	}

	catalog, err := r.repo.GetPublicCatalogBySlug(user.ID, catalogSlug)
	if err != nil {
		return nil, err
	}

	products, err := r.repo.ListVisibleProducts(catalog.ID)
	if err != nil {
		return nil, err
	}
	sortProducts(products, sortOrder)

	view := &CatalogView{
		ID:        catalog.ID,
		Username:  user.UsernameValue(),
		StoreName: user.StoreName,
		Slug:      catalog.Slug,
		Name:      catalog.Name,
		Products:  make([]ProductView, 0, len(products)),
	}
	for _, p := range products {
		view.Products = append(view.Products, renderProduct(user, &p))
	}

	r.cachePut(key, view)
	return view, nil
}

// Invalidate drops all cached views of a seller's storefront. Called after
// any mutation that can change public output.
func (r *Resolver) Invalidate(username string) {
	if username == "" || r.cache == nil {
		return
	}
	r.cache.Incr(r.versionKey(username))
}

func renderProduct(user *models.User, p *models.Product) ProductView {
	view := ProductView{
		Slug:        p.Slug,
		Name:        p.Name,
		Description: p.Description,
		Images:      p.Images,
	}
	if p.Price != nil {
		view.Price = p.Price.StringFixed(2)
	}
	if user.ContactNumber != "" {
		view.WhatsAppLink = whatsapp.BuildLink(user.ContactNumber, user.MessageTemplate, p.Name)
	}
	return view
}

// sortProducts orders by price when requested. Products without a price sink
// to the end; ties keep their listing order.
func sortProducts(products []models.Product, sortOrder string) {
	if sortOrder != SortPriceAsc && sortOrder != SortPriceDesc {
		return
	}
	sort.SliceStable(products, func(i, j int) bool {
		a, b := products[i].Price, products[j].Price
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		if sortOrder == SortPriceAsc {
			return a.LessThan(*b)
		}
		return a.GreaterThan(*b)
	})
}

func (r *Resolver) storeKey(username string) string {
	return fmt.Sprintf("public:store:%s:v%d", models.NormalizeUsername(username), r.version(username))
}

func (r *Resolver) catalogKey(username, slug, sortOrder string) string {
	return fmt.Sprintf("public:catalog:%s:%s:%s:v%d", models.NormalizeUsername(username), slug, sortOrder, r.version(username))
}

func (r *Resolver) versionKey(username string) string {
	return "public:ver:" + models.NormalizeUsername(username)
}

func (r *Resolver) version(username string) int64 {
	if r.cache == nil {
		return 0
	}
	if v, ok := r.cache.GetInt(r.versionKey(username)); ok {
		return v
	}
	return 0
}

func (r *Resolver) cacheGet(key string) (string, bool) {
	if r.cache == nil || r.ttl == 0 {
		return "", false
	}
	return r.cache.Get(key)
}

func (r *Resolver) cachePut(key string, view interface{}) {
	if r.cache == nil || r.ttl == 0 {
		return
	}
	data, err := json.Marshal(view)
	if err != nil {
		return
	}
	r.cache.Set(key, string(data), r.ttl)
}

// redisCache adapts the shared cache client to the resolver's interface.
type redisCache struct{}

// NewRedisCache returns the Redis-backed resolver cache.
func NewRedisCache() Cache {
	return redisCache{}
}

func (redisCache) Get(key string) (string, bool) {
	val, err := cache.Get(key)
	if err != nil {
		return "", false
	}
	return val, true
}

func (redisCache) Set(key, value string, ttl time.Duration) {
	if err := cache.Set(key, value, ttl); err != nil {
		log.Warnf("publicview: cache set failed for %s: %v", key, err)
	}
}

func (redisCache) Incr(key string) int64 {
	val, err := cache.GetClient().Incr(context.Background(), key).Result()
	if err != nil {
		log.Warnf("publicview: cache incr failed for %s: %v", key, err)
		return 0
	}
	return val
}

func (redisCache) GetInt(key string) (int64, bool) {
	val, err := cache.Get(key)
	if err != nil {
		return 0, false
	}
	parsed, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}
