package push

import (
	"context"
	"errors"
	"strings"

	appLog "weddingapp/internal/log"
	"weddingapp/internal/metrics"
	"weddingapp/internal/model"
)

// Failure reasons reported by the permission flow.
const (
	ReasonUnsupported   = "unsupported"
	ReasonNotConfigured = "not_configured"
	ReasonDenied        = "denied"
	ReasonNoToken       = "no_token"
	ReasonError         = "error"
)

// Notification permission states, as the browser names them.
const (
	PermissionGranted = "granted"
	PermissionDenied  = "denied"
	PermissionDefault = "default"
)

// WorkerScript is the path of the messaging service worker.
const WorkerScript = "/firebase-messaging-sw.js"

// Platform is the client runtime the flow drives: permission prompt,
// service worker and the push token itself.
type Platform interface {
	Supported() bool
	Permission() string
	RequestPermission(ctx context.Context) (string, error)
	RegisterWorker(ctx context.Context, scriptURL string) error
	WaitReady(ctx context.Context) error
	Token(ctx context.Context, vapidKey string) (string, error)
	UserAgent() string
}

// TokenStore persists push tokens. Save does not deduplicate.
type TokenStore interface {
	Save(ctx context.Context, t model.Token) error
	List(ctx context.Context) ([]model.Token, error)
}

// PermissionResult is the outcome of RequestPermission. Reason is set only
// when Success is false.
type PermissionResult struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Err     error  `json:"-"`
}

// Flow obtains a push token from a Platform and registers it.
type Flow struct {
	platform Platform
	vapidKey string
	tokens   TokenStore
}

func NewFlow(p Platform, vapidKey string, tokens TokenStore) *Flow {
	return &Flow{platform: p, vapidKey: strings.TrimSpace(vapidKey), tokens: tokens}
}

// RequestPermission prompts for notification permission, obtains a token
// and stores it. It never returns an error: every failure maps to a
// reason.
func (f *Flow) RequestPermission(ctx context.Context) PermissionResult {
	res := f.requestPermission(ctx)
	label := "registered"
	if !res.Success {
		label = res.Reason
	}
	metrics.PushRegistrations.WithLabelValues(label).Inc()
	if res.Err != nil {
		appLog.Error("push permission flow failed", res.Err, "reason", res.Reason)
	}
	return res
}

func (f *Flow) requestPermission(ctx context.Context) PermissionResult {
	if f.platform == nil || !f.platform.Supported() {
		return PermissionResult{Reason: ReasonUnsupported}
	}
	if f.vapidKey == "" || f.tokens == nil {
		return PermissionResult{Reason: ReasonNotConfigured}
	}

	perm, err := f.platform.RequestPermission(ctx)
	if err != nil {
		return PermissionResult{Reason: ReasonError, Err: err}
	}
	if perm != PermissionGranted {
		return PermissionResult{Reason: ReasonDenied}
	}

	token, err := f.token(ctx)
	if err != nil {
		return PermissionResult{Reason: ReasonError, Err: err}
	}
	if token == "" {
		return PermissionResult{Reason: ReasonNoToken}
	}

	if err := f.tokens.Save(ctx, model.Token{Token: token, UserAgent: f.platform.UserAgent()}); err != nil {
		return PermissionResult{Reason: ReasonError, Err: err}
	}
	appLog.Info("push token registered", "token", shortToken(token))
	return PermissionResult{Success: true, Token: token}
}

// CurrentToken returns the token without prompting. It reports false
// unless permission was already granted and a token could be obtained.
func (f *Flow) CurrentToken(ctx context.Context) (string, bool) {
	if f.platform == nil || !f.platform.Supported() || f.vapidKey == "" {
		return "", false
	}
	if f.platform.Permission() != PermissionGranted {
		return "", false
	}
	token, err := f.token(ctx)
	if err != nil {
		appLog.Debug("push current token unavailable", "err", err)
		return "", false
	}
	return token, token != ""
}

func (f *Flow) token(ctx context.Context) (string, error) {
	if err := f.platform.RegisterWorker(ctx, WorkerScript); err != nil {
		return "", err
	}
	if err := f.platform.WaitReady(ctx); err != nil {
		return "", err
	}
	token, err := f.platform.Token(ctx, f.vapidKey)
	return strings.TrimSpace(token), err
}

func shortToken(t string) string {
	if len(t) <= 12 {
		return t
	}
	return t[:12] + "..."
}

// errWorkerNotReady is returned by ReportedPlatform when the client did
// not get its service worker active.
var errWorkerNotReady = errors.New("push: service worker not ready")

// Report is what the browser tells the server about its push state after
// it ran the prompt and the service worker registration itself.
type Report struct {
	Supported   bool   `json:"supported"`
	Permission  string `json:"permission"`
	WorkerReady bool   `json:"worker_ready"`
	Token       string `json:"token"`
	UserAgent   string `json:"user_agent"`
}

// ReportedPlatform replays a client Report as a Platform.
type ReportedPlatform struct {
	report Report
}

func NewReportedPlatform(r Report) *ReportedPlatform {
	if r.Permission == "" {
		r.Permission = PermissionDefault
	}
	return &ReportedPlatform{report: r}
}

func (p *ReportedPlatform) Supported() bool    { return p.report.Supported }
func (p *ReportedPlatform) Permission() string { return p.report.Permission }
func (p *ReportedPlatform) UserAgent() string  { return p.report.UserAgent }

func (p *ReportedPlatform) RequestPermission(context.Context) (string, error) {
	return p.report.Permission, nil
}

func (p *ReportedPlatform) RegisterWorker(context.Context, string) error { return nil }

func (p *ReportedPlatform) WaitReady(context.Context) error {
	if !p.report.WorkerReady {
		return errWorkerNotReady
	}
	return nil
}

func (p *ReportedPlatform) Token(context.Context, string) (string, error) {
	return p.report.Token, nil
}
