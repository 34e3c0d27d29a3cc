package domain

import (
	"context"
	"errors"
)

// Resolver binds a per-request overlay from the Host header. Reads never
// fail: a missing microsite or lookup error yields the default overlay.
type Resolver interface {
	OnRequestStart(ctx context.Context, host string) context.Context
	OnRequestEnd(ctx context.Context)
	Current(ctx context.Context) Overlay
	GetValue(ctx context.Context, key string, def any) any
	HasOverrideValue(ctx context.Context, key string) bool
	IsRequestInMicrosite(ctx context.Context) bool
	GetAllOrgs(ctx context.Context) (OrgSet, error)
	GetValueForOrg(ctx context.Context, org, key string, def any) any
	// OrgAllowed reports whether content owned by org may be served under
	// the current overlay. The reason is set when access is denied.
	OrgAllowed(ctx context.Context, org string) (bool, string, error)
}

type Service interface {
	Resolver

	Create(ctx context.Context, req SaveRequest) (*Microsite, error)
	Update(ctx context.Context, id int64, req SaveRequest) (*Microsite, error)
	Get(ctx context.Context, id int64) (*Microsite, error)
	List(ctx context.Context) ([]Microsite, error)
	Delete(ctx context.Context, id int64) error
	History(ctx context.Context, id int64) ([]History, error)
}

type SaveRequest struct {
	Key       string         `json:"key"`
	Subdomain string         `json:"subdomain"`
	Values    map[string]any `json:"values"`
}

// Counter is the monitoring hook for resolution outcomes.
type Counter interface {
	Increment(ctx context.Context, name string, tags map[string]string) error
}

const (
	DenyOutsideFilter    = "outside_filter"
	DenyClaimedElsewhere = "claimed_elsewhere"
)

var (
	ErrNotFound         = errors.New("microsite_not_found")
	ErrInvalidKey       = errors.New("invalid_microsite_key")
	ErrInvalidSubdomain = errors.New("invalid_subdomain")
	ErrInvalidOrgFilter = errors.New("invalid_course_org_filter")
	ErrKeyTaken         = errors.New("microsite_key_taken")
	ErrSubdomainTaken   = errors.New("subdomain_taken")
)
