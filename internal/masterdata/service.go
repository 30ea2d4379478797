// internal/masterdata/service.go
package masterdata

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"gacp-certification/internal/common/errors"
	"gacp-certification/internal/common/logger"
	"gacp-certification/internal/common/metrics"
	"gacp-certification/internal/wizard"

	"github.com/redis/go-redis/v9"
)

type Kind string

const (
	KindPlants    Kind = "plants"
	KindPurposes  Kind = "certification-purposes"
	KindMethods   Kind = "cultivation-methods"
	KindLayouts   Kind = "farm-layouts"
	KindStyles    Kind = "growing-styles"
	KindQRPricing Kind = "qr-pricing"
)

var Kinds = []Kind{KindPlants, KindPurposes, KindMethods, KindLayouts, KindStyles, KindQRPricing}

func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Source says which layer answered a lookup.
type Source string

const (
	SourceCache    Source = "cache"
	SourceRemote   Source = "remote"
	SourceFallback Source = "fallback"
)

type Purpose struct {
	ID           string   `json:"id"`
	NameTH       string   `json:"nameTH"`
	NameEN       string   `json:"nameEN"`
	Description  string   `json:"description"`
	Requirements []string `json:"requirements"`
	SortOrder    int      `json:"sortOrder"`
}

type Method struct {
	ID              string   `json:"id"`
	NameTH          string   `json:"nameTH"`
	NameEN          string   `json:"nameEN"`
	Description     string   `json:"description"`
	Pros            []string `json:"pros"`
	Cons            []string `json:"cons"`
	YieldMultiplier float64  `json:"yieldMultiplier"`
	SortOrder       int      `json:"sortOrder"`
}

type Result struct {
	Kind   Kind            `json:"kind"`
	Source Source          `json:"source"`
	Data   json.RawMessage `json:"data"`
}

// Fetcher is satisfied by the common outbound HTTP client.
type Fetcher interface {
	GetJSON(ctx context.Context, url string, out interface{}) error
}

type Config struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Service answers master-data lookups from Redis, then the remote API, then
// the built-in tables. A failing layer is logged and skipped; lookups of a
// known kind never fail.
type Service struct {
	fetcher Fetcher
	cache   redis.Cmdable
	cfg     Config
	logger  logger.Logger
}

func NewService(fetcher Fetcher, cache redis.Cmdable, cfg Config, log logger.Logger) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Service{
		fetcher: fetcher,
		cache:   cache,
		cfg:     cfg,
		logger:  log.WithFields(map[string]interface{}{"component": "master-data"}),
	}
}

func cacheKey(kind Kind) string {
	return "masterdata:" + string(kind)
}

func (s *Service) Get(ctx context.Context, kind Kind) (*Result, error) {
	if !kind.Valid() {
		return nil, errors.NewResourceNotFoundError("master-data", fmt.Sprintf("unknown kind %q", kind))
	}

	res := s.lookup(ctx, kind)
	metrics.MasterDataLookups.WithLabelValues(string(kind), string(res.Source)).Inc()
	return res, nil
}

func (s *Service) lookup(ctx context.Context, kind Kind) *Result {
	if s.cache != nil {
		val, err := s.cache.Get(ctx, cacheKey(kind)).Bytes()
		switch {
		case err == nil && json.Valid(val):
			return &Result{Kind: kind, Source: SourceCache, Data: val}
		case err != nil && err != redis.Nil:
			s.logger.Debug("master data cache read failed", map[string]interface{}{
				"kind":  kind,
				"error": err.Error(),
			})
		}
	}

	data, err := s.fetch(ctx, kind)
	if err == nil {
		s.store(ctx, kind, data)
		return &Result{Kind: kind, Source: SourceRemote, Data: data}
	}
	if !stderrors.Is(err, errNoRemote) {
		s.logger.Warn("master data fetch failed, serving built-in table", map[string]interface{}{
			"kind":  kind,
			"error": err.Error(),
		})
	}

	data, _ = json.Marshal(fallback(kind))
	return &Result{Kind: kind, Source: SourceFallback, Data: data}
}

var errNoRemote = stderrors.New("master data remote not configured")

func (s *Service) fetch(ctx context.Context, kind Kind) (json.RawMessage, error) {
	if s.cfg.BaseURL == "" || s.fetcher == nil {
		return nil, errNoRemote
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	url := fmt.Sprintf("%s/master-data/%s", s.cfg.BaseURL, kind)
	if err := s.fetcher.GetJSON(ctx, url, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil, fmt.Errorf("empty data for %s", kind)
	}
	return envelope.Data, nil
}

func (s *Service) store(ctx context.Context, kind Kind, data json.RawMessage) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(kind), []byte(data), s.cfg.CacheTTL).Err(); err != nil {
		s.logger.Warn("master data cache write failed", map[string]interface{}{
			"kind":  kind,
			"error": err.Error(),
		})
	}
}

// Invalidate drops the cached copy of every kind.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	keys := make([]string, 0, len(Kinds))
	for _, k := range Kinds {
		keys = append(keys, cacheKey(k))
	}
	return s.cache.Del(ctx, keys...).Err()
}

// decodeInto decodes a lookup result, falling back to the built-in table when
// the remote payload has an unexpected shape.
func decodeInto[T any](ctx context.Context, s *Service, kind Kind) ([]T, error) {
	res, err := s.Get(ctx, kind)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(res.Data, &out); err == nil {
		return out, nil
	}
	s.logger.Warn("master data payload has unexpected shape", map[string]interface{}{
		"kind":   kind,
		"source": res.Source,
	})
	data, _ := json.Marshal(fallback(kind))
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.NewInternalError(err)
	}
	return out, nil
}

func (s *Service) Layouts(ctx context.Context) ([]wizard.FarmLayout, error) {
	return decodeInto[wizard.FarmLayout](ctx, s, KindLayouts)
}

func (s *Service) Styles(ctx context.Context) ([]wizard.GrowingStyle, error) {
	return decodeInto[wizard.GrowingStyle](ctx, s, KindStyles)
}

// LayoutsFor returns the layouts applicable to a cultivation method.
func (s *Service) LayoutsFor(ctx context.Context, method wizard.CultivationMethod) ([]wizard.FarmLayout, error) {
	all, err := s.Layouts(ctx)
	if err != nil {
		return nil, err
	}
	var out []wizard.FarmLayout
	for _, l := range all {
		for _, m := range l.ApplicableTo {
			if m == string(method) {
				out = append(out, l)
				break
			}
		}
	}
	return out, nil
}

func (s *Service) Layout(ctx context.Context, id string) (wizard.FarmLayout, error) {
	all, err := s.Layouts(ctx)
	if err != nil {
		return wizard.FarmLayout{}, err
	}
	for _, l := range all {
		if l.ID == id {
			return l, nil
		}
	}
	return wizard.FarmLayout{}, errors.NewValidationError("unknown farm layout", map[string]string{"layoutId": id})
}

func (s *Service) Style(ctx context.Context, id string) (wizard.GrowingStyle, error) {
	all, err := s.Styles(ctx)
	if err != nil {
		return wizard.GrowingStyle{}, err
	}
	for _, st := range all {
		if st.ID == id {
			return st, nil
		}
	}
	return wizard.GrowingStyle{}, errors.NewValidationError("unknown growing style", map[string]string{"styleId": id})
}
