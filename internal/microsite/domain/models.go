package domain

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// OrgFilterKey names the value holding the organizations a microsite claims.
const OrgFilterKey = "course_org_filter"

type Microsite struct {
	ID        int64             `json:"id,string" gorm:"primaryKey"`
	Key       string            `json:"key" gorm:"uniqueIndex;size:63;not null"`
	Subdomain string            `json:"subdomain" gorm:"uniqueIndex;size:127;not null"`
	Values    datatypes.JSONMap `json:"values" gorm:"type:jsonb"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (Microsite) TableName() string { return "microsite_configuration_microsite" }

// History is an append-only snapshot written on every save.
type History struct {
	ID          int64             `json:"id,string" gorm:"primaryKey"`
	MicrositeID int64             `json:"microsite_id,string" gorm:"index;not null"`
	Key         string            `json:"key" gorm:"size:63;not null"`
	Subdomain   string            `json:"subdomain" gorm:"size:127;not null"`
	Values      datatypes.JSONMap `json:"values" gorm:"type:jsonb"`
	CreatedAt   time.Time         `json:"created_at"`
}

func (History) TableName() string { return "microsite_configuration_micrositehistory" }

// Overlay is the read-only configuration resolved for one request.
// The zero value is the default overlay.
type Overlay struct {
	Key       string         `json:"key,omitempty"`
	Subdomain string         `json:"subdomain,omitempty"`
	Values    map[string]any `json:"values,omitempty"`
}

func NewOverlay(m *Microsite) Overlay {
	if m == nil {
		return Overlay{}
	}
	values := make(map[string]any, len(m.Values))
	for k, v := range m.Values {
		values[k] = v
	}
	return Overlay{Key: m.Key, Subdomain: m.Subdomain, Values: values}
}

func (o Overlay) IsDefault() bool {
	return o.Key == ""
}

func (o Overlay) Has(key string) bool {
	_, ok := o.Values[key]
	return ok
}

func (o Overlay) Get(key string, def any) any {
	if v, ok := o.Values[key]; ok {
		return v
	}
	return def
}

// OrgFilter returns the claimed organizations. The stored value is either
// a single string or a list of strings.
func (o Overlay) OrgFilter() []string {
	return ParseOrgFilter(o.Values[OrgFilterKey])
}

func (o Overlay) ClaimsOrg(org string) bool {
	for _, candidate := range o.OrgFilter() {
		if candidate == org {
			return true
		}
	}
	return false
}

func ParseOrgFilter(raw any) []string {
	switch v := raw.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
	case []string:
		return compact(v)
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				items = append(items, s)
			}
		}
		return compact(items)
	}
	return nil
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// OrgSet is the union of organizations claimed across microsites.
type OrgSet map[string]struct{}

func (s OrgSet) Has(org string) bool {
	_, ok := s[org]
	return ok
}
