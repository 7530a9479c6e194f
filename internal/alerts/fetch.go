package alerts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	appLog "weddingapp/internal/log"
	"weddingapp/internal/metrics"
	"weddingapp/internal/model"
)

// Result sources, also used as metric labels.
const (
	SourceFresh  = "fresh"
	SourceCache  = "cache"
	SourceStatic = "static"
)

// maxBodyBytes caps the remote payload; the sheet holds a handful of rows.
const maxBodyBytes = 1 << 20

// Result is the outcome of a single Fetch.
type Result struct {
	Alerts    []model.Alert `json:"alerts"`
	FromCache bool          `json:"from_cache"`
	// Source is one of SourceFresh, SourceCache, SourceStatic.
	Source string `json:"source"`
}

// Options configures a Synchronizer.
type Options struct {
	// URL is the remote alert endpoint. Empty means static alerts only.
	URL string
	// Client is used for the remote GET. A 15s-timeout client is used if nil.
	Client *http.Client
	// Cache holds the last-known-good list. A MemoryStore is used if nil.
	Cache Store
	// Static is the bundled last-resort list.
	Static []model.Alert
	// Seen tracks which urgent alerts were already announced. A fresh empty
	// set is used if nil.
	Seen *SeenSet
}

// Synchronizer fetches alerts from the remote source and falls back through
// the cache and the static list when the remote is unavailable.
type Synchronizer struct {
	url    string
	client *http.Client
	cache  Store
	static []model.Alert
	seen   *SeenSet

	mu        sync.RWMutex
	latest    Result
	latestAt  time.Time
	hasLatest bool
}

// NewSynchronizer creates a Synchronizer from opts.
func NewSynchronizer(opts Options) *Synchronizer {
	s := &Synchronizer{
		url:    opts.URL,
		client: opts.Client,
		cache:  opts.Cache,
		static: opts.Static,
		seen:   opts.Seen,
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: 15 * time.Second}
	}
	if s.cache == nil {
		s.cache = NewMemoryStore()
	}
	if s.seen == nil {
		s.seen = NewSeenSet()
	}
	if s.static == nil {
		s.static = []model.Alert{}
	}
	return s
}

// Fetch runs one sync attempt.
//
//   - No URL configured: static list, FromCache=false.
//   - Remote returns a non-empty valid list: cache overwritten, FromCache=false.
//   - Remote fails or is empty: cached list with FromCache=true, or the static
//     list with FromCache=false when no cache exists.
//
// Fetch never returns an error; every failure degrades to older data.
func (s *Synchronizer) Fetch(ctx context.Context) Result {
	if s.url == "" {
		metrics.AlertSyncs.WithLabelValues(SourceStatic).Inc()
		return s.staticResult()
	}

	list, err := s.fetchRemote(ctx)
	if err == nil && len(list) > 0 {
		s.writeCache(ctx, list)
		appLog.Info("alerts fetch success", "url", redactURL(s.url), "count", len(list))
		metrics.AlertSyncs.WithLabelValues(SourceFresh).Inc()
		return Result{Alerts: list, FromCache: false, Source: SourceFresh}
	}
	if err != nil {
		appLog.Error("alerts fetch failed, falling back", err, "url", redactURL(s.url))
	} else {
		appLog.Info("alerts fetch returned no alerts, falling back", "url", redactURL(s.url))
	}

	if cached, ok := s.readCache(ctx); ok {
		metrics.AlertSyncs.WithLabelValues(SourceCache).Inc()
		return Result{Alerts: cached, FromCache: true, Source: SourceCache}
	}
	metrics.AlertSyncs.WithLabelValues(SourceStatic).Inc()
	return s.staticResult()
}

// Refresh runs Fetch, stores the result as the latest snapshot and returns
// the urgent alerts that have not been reported by an earlier Refresh.
// Only fresh results are announced. Cached alerts were current in an
// earlier run, so they are marked seen without being returned.
func (s *Synchronizer) Refresh(ctx context.Context) (Result, []model.Alert) {
	res := s.Fetch(ctx)
	now := time.Now()

	s.mu.Lock()
	s.latest = res
	s.latestAt = now
	s.hasLatest = true
	s.mu.Unlock()

	metrics.AlertsCurrent.Set(float64(len(res.Alerts)))
	metrics.LastAlertSync.Set(float64(now.Unix()))

	switch res.Source {
	case SourceFresh:
		return res, s.seen.NewUrgent(res.Alerts)
	case SourceCache:
		s.seen.NewUrgent(res.Alerts)
	}
	return res, nil
}

// Latest returns the most recent Refresh result.
func (s *Synchronizer) Latest() (Result, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.latestAt, s.hasLatest
}

// Current returns the latest snapshot, running a Refresh first when there
// is none yet.
func (s *Synchronizer) Current(ctx context.Context) (Result, time.Time) {
	if res, at, ok := s.Latest(); ok {
		return res, at
	}
	res, _ := s.Refresh(ctx)
	_, at, _ := s.Latest()
	return res, at
}

func (s *Synchronizer) staticResult() Result {
	list := make([]model.Alert, len(s.static))
	copy(list, s.static)
	return Result{Alerts: list, FromCache: false, Source: SourceStatic}
}

func (s *Synchronizer) fetchRemote(ctx context.Context) ([]model.Alert, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("alerts: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	return ParseAlerts(body)
}

func (s *Synchronizer) readCache(ctx context.Context) ([]model.Alert, bool) {
	data, err := s.cache.Get(ctx)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			appLog.Error("alerts cache read failed; treating as miss", err)
			metrics.AlertCacheErrors.WithLabelValues("read").Inc()
		}
		return nil, false
	}
	list, err := ParseAlerts(data)
	if err != nil {
		appLog.Error("alerts cache corrupt; treating as miss", err)
		metrics.AlertCacheErrors.WithLabelValues("decode").Inc()
		return nil, false
	}
	if len(list) == 0 {
		return nil, false
	}
	return list, true
}

func (s *Synchronizer) writeCache(ctx context.Context, list []model.Alert) {
	data, err := EncodeAlerts(list)
	if err == nil {
		err = s.cache.Set(ctx, data)
	}
	if err != nil {
		// Log but still return the freshly fetched list.
		appLog.Error("alerts cache save failed", err)
		metrics.AlertCacheErrors.WithLabelValues("write").Inc()
	}
}

// SeenSet remembers which urgent alert ids were already reported. It
// starts empty.
type SeenSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewSeenSet() *SeenSet {
	return &SeenSet{ids: make(map[string]struct{})}
}

// NewUrgent marks every urgent alert in list as seen and returns those that
// were not seen before, in list order.
func (s *SeenSet) NewUrgent(list []model.Alert) []model.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Alert
	for _, a := range list {
		if !a.Urgent {
			continue
		}
		if _, ok := s.ids[a.ID]; ok {
			continue
		}
		s.ids[a.ID] = struct{}{}
		out = append(out, a)
	}
	return out
}

// redactURL hides path and query of a web-app URL for logging; Apps Script
// deployment ids act as credentials.
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "alerts://...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
