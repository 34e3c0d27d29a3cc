package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/campus/internal/cache"
	"github.com/smallbiznis/campus/internal/clock"
	"github.com/smallbiznis/campus/internal/config"
	"github.com/smallbiznis/campus/internal/microsite/domain"
	obscontext "github.com/smallbiznis/campus/internal/observability/context"
	"github.com/smallbiznis/campus/internal/observability/logger"
	"github.com/smallbiznis/campus/internal/observability/metrics"
	"github.com/smallbiznis/campus/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const orgsCacheKey = "all_orgs"

var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9.-]*[a-z0-9])?$`)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Features config.FeatureSource
	Overlays cache.LookupCache[domain.Overlay]
	Orgs     cache.LookupCache[[]string]
	Counter  domain.Counter `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	features config.FeatureSource
	overlays cache.LookupCache[domain.Overlay]
	orgs     cache.LookupCache[[]string]
	counter  domain.Counter
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("microsite.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		features: p.Features,
		overlays: p.Overlays,
		orgs:     p.Orgs,
		counter:  p.Counter,
	}
}

func (s *Service) OnRequestStart(ctx context.Context, host string) context.Context {
	if previous := cellFrom(ctx); previous != nil {
		previous.clear()
	}
	c := &cell{}
	ctx = context.WithValue(ctx, cellKey{}, c)

	if !s.enabled() {
		return ctx
	}

	overlay := s.resolve(ctx, host)
	c.store(overlay)
	if !overlay.IsDefault() {
		ctx = obscontext.WithMicrosite(ctx, overlay.Key)
	}
	return ctx
}

func (s *Service) OnRequestEnd(ctx context.Context) {
	if c := cellFrom(ctx); c != nil {
		c.clear()
	}
}

func (s *Service) Current(ctx context.Context) domain.Overlay {
	if c := cellFrom(ctx); c != nil {
		return c.load()
	}
	return domain.Overlay{}
}

func (s *Service) GetValue(ctx context.Context, key string, def any) any {
	return s.Current(ctx).Get(key, def)
}

func (s *Service) HasOverrideValue(ctx context.Context, key string) bool {
	return s.Current(ctx).Has(key)
}

func (s *Service) IsRequestInMicrosite(ctx context.Context) bool {
	return !s.Current(ctx).IsDefault()
}

func (s *Service) GetAllOrgs(ctx context.Context) (domain.OrgSet, error) {
	set := domain.OrgSet{}
	if !s.enabled() {
		return set, nil
	}

	orgs, ok := s.orgs.Get(ctx, orgsCacheKey)
	if !ok {
		items, err := s.repo.List(ctx, s.db)
		if err != nil {
			return nil, err
		}
		orgs = make([]string, 0, len(items))
		for _, item := range items {
			orgs = append(orgs, domain.NewOverlay(&item).OrgFilter()...)
		}
		s.orgs.Set(ctx, orgsCacheKey, orgs)
	}

	for _, org := range orgs {
		set[org] = struct{}{}
	}
	return set, nil
}

func (s *Service) GetValueForOrg(ctx context.Context, org, key string, def any) any {
	org = strings.TrimSpace(org)
	if org == "" || !s.enabled() {
		return def
	}
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		logger.WithContext(ctx, s.log).Warn("microsite list failed", zap.String("org", org), zap.Error(err))
		return def
	}
	for _, item := range items {
		overlay := domain.NewOverlay(&item)
		if overlay.ClaimsOrg(org) {
			return overlay.Get(key, def)
		}
	}
	return def
}

func (s *Service) OrgAllowed(ctx context.Context, org string) (bool, string, error) {
	overlay := s.Current(ctx)
	if len(overlay.OrgFilter()) > 0 && !overlay.ClaimsOrg(org) {
		return false, domain.DenyOutsideFilter, nil
	}

	claimed, err := s.GetAllOrgs(ctx)
	if err != nil {
		return false, "", err
	}
	if claimed.Has(org) && !overlay.ClaimsOrg(org) {
		return false, domain.DenyClaimedElsewhere, nil
	}
	return true, "", nil
}

func (s *Service) Create(ctx context.Context, req domain.SaveRequest) (*domain.Microsite, error) {
	item, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSubdomainFree(ctx, item.Subdomain, 0); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	item.ID = s.genID.Generate().Int64()
	item.CreatedAt = now
	item.UpdatedAt = now

	if err := s.save(ctx, item, true); err != nil {
		return nil, err
	}
	s.log.Info("microsite created", zap.String("key", item.Key), zap.String("subdomain", item.Subdomain))
	return item, nil
}

func (s *Service) Update(ctx context.Context, id int64, req domain.SaveRequest) (*domain.Microsite, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	item, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSubdomainFree(ctx, item.Subdomain, id); err != nil {
		return nil, err
	}

	item.ID = existing.ID
	item.CreatedAt = existing.CreatedAt
	item.UpdatedAt = s.clock.Now()

	if err := s.save(ctx, item, false); err != nil {
		return nil, err
	}
	s.log.Info("microsite updated", zap.String("key", item.Key), zap.String("subdomain", item.Subdomain))
	return item, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Microsite, error) {
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Microsite, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	item, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, s.db, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.log.Info("microsite deleted", zap.String("key", item.Key))
	return nil
}

func (s *Service) History(ctx context.Context, id int64) ([]domain.History, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, s.db, id)
}

func (s *Service) save(ctx context.Context, item *domain.Microsite, create bool) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if create {
			err = s.repo.Insert(ctx, tx, item)
		} else {
			err = s.repo.Update(ctx, tx, item)
		}
		if err != nil {
			return err
		}
		return s.repo.AppendHistory(ctx, tx, &domain.History{
			ID:          s.genID.Generate().Int64(),
			MicrositeID: item.ID,
			Key:         item.Key,
			Subdomain:   item.Subdomain,
			Values:      item.Values,
			CreatedAt:   item.UpdatedAt,
		})
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return s.duplicateCause(ctx, item)
		}
		return err
	}
	s.invalidate(ctx)
	return nil
}

// duplicateCause tells which unique column a rejected save collided on.
// Translated driver errors drop the constraint name, so the row is re-read.
func (s *Service) duplicateCause(ctx context.Context, item *domain.Microsite) error {
	if err := s.ensureSubdomainFree(ctx, item.Subdomain, item.ID); err != nil {
		return err
	}
	return domain.ErrKeyTaken
}

func (s *Service) validate(req domain.SaveRequest) (*domain.Microsite, error) {
	key := slug.Make(strings.TrimSpace(req.Key))
	if key == "" {
		return nil, domain.ErrInvalidKey
	}
	subdomain := strings.ToLower(strings.TrimSpace(req.Subdomain))
	if !subdomainPattern.MatchString(subdomain) {
		return nil, domain.ErrInvalidSubdomain
	}

	values := datatypes.JSONMap{}
	for k, v := range req.Values {
		values[k] = v
	}
	if raw, ok := values[domain.OrgFilterKey]; ok && !validOrgFilter(raw) {
		return nil, domain.ErrInvalidOrgFilter
	}

	return &domain.Microsite{Key: key, Subdomain: subdomain, Values: values}, nil
}

func validOrgFilter(raw any) bool {
	switch v := raw.(type) {
	case string:
		return true
	case []string:
		return true
	case []any:
		for _, item := range v {
			if _, ok := item.(string); !ok {
				return false
			}
		}
		return true
	}
	return false
}

func (s *Service) ensureSubdomainFree(ctx context.Context, subdomain string, self int64) error {
	existing, err := s.repo.FindBySubdomain(ctx, s.db, subdomain)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != self {
		return domain.ErrSubdomainTaken
	}
	return nil
}

func (s *Service) resolve(ctx context.Context, host string) domain.Overlay {
	host = NormalizeHost(host)
	if host == "" {
		s.count(ctx, domain.Overlay{}, "default")
		return domain.Overlay{}
	}

	if overlay, ok := s.overlays.Get(ctx, host); ok {
		s.count(ctx, overlay, resultOf(overlay))
		return overlay
	}

	overlay, err := s.lookup(ctx, host)
	if err != nil {
		logger.WithContext(ctx, s.log).Warn("microsite lookup failed", zap.String("host", host), zap.Error(err))
		s.count(ctx, domain.Overlay{}, "error")
		return domain.Overlay{}
	}
	s.overlays.Set(ctx, host, overlay)
	s.count(ctx, overlay, resultOf(overlay))
	return overlay
}

func (s *Service) lookup(ctx context.Context, host string) (domain.Overlay, error) {
	for _, subdomain := range candidates(host) {
		item, err := s.repo.FindBySubdomain(ctx, s.db, subdomain)
		if err != nil {
			return domain.Overlay{}, err
		}
		if item != nil {
			return domain.NewOverlay(item), nil
		}
	}
	return domain.Overlay{}, nil
}

func (s *Service) invalidate(ctx context.Context) {
	s.overlays.Invalidate(ctx)
	s.orgs.Invalidate(ctx)
}

func (s *Service) enabled() bool {
	if s.features == nil {
		return config.DefaultFeatures().UseMicrosites
	}
	return s.features.Features().UseMicrosites
}

func (s *Service) count(ctx context.Context, overlay domain.Overlay, result string) {
	if s.counter == nil {
		return
	}
	site := overlay.Key
	if site == "" {
		site = "default"
	}
	err := s.counter.Increment(ctx, metrics.MicrositeResolution, map[string]string{
		"microsite": site,
		"result":    result,
	})
	if err != nil {
		s.log.Debug("microsite counter failed", zap.Error(err))
	}
}

func resultOf(overlay domain.Overlay) string {
	if overlay.IsDefault() {
		return "default"
	}
	return "matched"
}
