package push

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weddingapp/internal/model"
)

type memTokens struct {
	mu      sync.Mutex
	saved   []model.Token
	saveErr error
	listErr error
}

func (m *memTokens) Save(_ context.Context, t model.Token) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, t)
	return nil
}

func (m *memTokens) List(context.Context) ([]model.Token, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Token(nil), m.saved...), nil
}

type stubPlatform struct {
	supported  bool
	permission string
	promptTo   string
	promptErr  error
	workerErr  error
	token      string
	tokenErr   error

	prompted bool
	script   string
	vapid    string
}

func (p *stubPlatform) Supported() bool    { return p.supported }
func (p *stubPlatform) Permission() string { return p.permission }
func (p *stubPlatform) UserAgent() string  { return "TestAgent/1.0" }

func (p *stubPlatform) RequestPermission(context.Context) (string, error) {
	p.prompted = true
	return p.promptTo, p.promptErr
}

func (p *stubPlatform) RegisterWorker(_ context.Context, script string) error {
	p.script = script
	return p.workerErr
}

func (p *stubPlatform) WaitReady(context.Context) error { return nil }

func (p *stubPlatform) Token(_ context.Context, vapid string) (string, error) {
	p.vapid = vapid
	return p.token, p.tokenErr
}

func TestRequestPermission_Granted(t *testing.T) {
	p := &stubPlatform{supported: true, promptTo: PermissionGranted, token: "tok-123"}
	store := &memTokens{}

	res := NewFlow(p, "vapid-key", store).RequestPermission(context.Background())

	assert.Equal(t, PermissionResult{Success: true, Token: "tok-123"}, res)
	assert.Equal(t, WorkerScript, p.script)
	assert.Equal(t, "vapid-key", p.vapid)
	require.Len(t, store.saved, 1)
	assert.Equal(t, model.Token{Token: "tok-123", UserAgent: "TestAgent/1.0"}, store.saved[0])
}

func TestRequestPermission_Reasons(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name     string
		platform *stubPlatform
		vapid    string
		store    *memTokens
		want     string
		prompted bool
	}{
		{"unsupported", &stubPlatform{}, "k", &memTokens{}, ReasonUnsupported, false},
		{"no vapid key", &stubPlatform{supported: true}, " ", &memTokens{}, ReasonNotConfigured, false},
		{"no token store", &stubPlatform{supported: true}, "k", nil, ReasonNotConfigured, false},
		{"denied", &stubPlatform{supported: true, promptTo: PermissionDenied}, "k", &memTokens{}, ReasonDenied, true},
		{"dismissed", &stubPlatform{supported: true, promptTo: PermissionDefault}, "k", &memTokens{}, ReasonDenied, true},
		{"prompt error", &stubPlatform{supported: true, promptErr: boom}, "k", &memTokens{}, ReasonError, true},
		{"worker error", &stubPlatform{supported: true, promptTo: PermissionGranted, workerErr: boom}, "k", &memTokens{}, ReasonError, true},
		{"token error", &stubPlatform{supported: true, promptTo: PermissionGranted, tokenErr: boom}, "k", &memTokens{}, ReasonError, true},
		{"empty token", &stubPlatform{supported: true, promptTo: PermissionGranted}, "k", &memTokens{}, ReasonNoToken, true},
		{"save error", &stubPlatform{supported: true, promptTo: PermissionGranted, token: "t"}, "k", &memTokens{saveErr: boom}, ReasonError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var store TokenStore
			if tt.store != nil {
				store = tt.store
			}
			res := NewFlow(tt.platform, tt.vapid, store).RequestPermission(context.Background())
			assert.False(t, res.Success)
			assert.Empty(t, res.Token)
			assert.Equal(t, tt.want, res.Reason)
			assert.Equal(t, tt.prompted, tt.platform.prompted)
		})
	}
}

func TestCurrentToken(t *testing.T) {
	granted := &stubPlatform{supported: true, permission: PermissionGranted, token: "tok"}
	token, ok := NewFlow(granted, "k", nil).CurrentToken(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "tok", token)
	assert.False(t, granted.prompted)

	notYet := &stubPlatform{supported: true, permission: PermissionDefault, token: "tok"}
	_, ok = NewFlow(notYet, "k", nil).CurrentToken(context.Background())
	assert.False(t, ok)
	assert.False(t, notYet.prompted)

	failing := &stubPlatform{supported: true, permission: PermissionGranted, tokenErr: errors.New("x")}
	_, ok = NewFlow(failing, "k", nil).CurrentToken(context.Background())
	assert.False(t, ok)
}

func TestReportedPlatform(t *testing.T) {
	store := &memTokens{}
	rep := Report{Supported: true, Permission: PermissionGranted, WorkerReady: true, Token: "abc", UserAgent: "Phone"}

	res := NewFlow(NewReportedPlatform(rep), "k", store).RequestPermission(context.Background())
	require.True(t, res.Success)
	assert.Equal(t, "Phone", store.saved[0].UserAgent)

	rep.WorkerReady = false
	res = NewFlow(NewReportedPlatform(rep), "k", store).RequestPermission(context.Background())
	assert.Equal(t, ReasonError, res.Reason)

	res = NewFlow(NewReportedPlatform(Report{Supported: true}), "k", store).RequestPermission(context.Background())
	assert.Equal(t, ReasonDenied, res.Reason)
}

type recordingSender struct {
	mu      sync.Mutex
	batches [][]string
	failOn  int // 1-based batch number that errors, 0 = never
}

func (s *recordingSender) Send(_ context.Context, tokens []string, _ Message) (SendReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]string(nil), tokens...))
	if s.failOn == len(s.batches) {
		return SendReport{}, errors.New("fcm unavailable")
	}
	rep := SendReport{}
	for _, tok := range tokens {
		if tok == "stale" {
			rep.Failed++
			rep.Invalid = append(rep.Invalid, tok)
			continue
		}
		rep.Sent++
	}
	return rep, nil
}

func TestBroadcast_DedupesAndBatches(t *testing.T) {
	store := &memTokens{}
	for i := 0; i < 1200; i++ {
		store.saved = append(store.saved, model.Token{Token: fmt.Sprintf("tok-%d", i%1100)})
	}
	store.saved = append(store.saved, model.Token{Token: ""}, model.Token{Token: "stale"})
	sender := &recordingSender{}

	sum, err := NewBroadcaster(store, sender).Broadcast(context.Background(), "custom", Message{Title: "Hello"})
	require.NoError(t, err)

	assert.Equal(t, Summary{Tokens: 1101, Sent: 1100, Failed: 1, Invalid: 1}, sum)
	require.Len(t, sender.batches, 3)
	assert.Len(t, sender.batches[0], MaxBatch)
	assert.Len(t, sender.batches[1], MaxBatch)
	assert.Len(t, sender.batches[2], 101)
	assert.Equal(t, "tok-0", sender.batches[0][0])
}

func TestBroadcast_FailedBatchContinues(t *testing.T) {
	store := &memTokens{}
	for i := 0; i < 600; i++ {
		store.saved = append(store.saved, model.Token{Token: fmt.Sprintf("t%d", i)})
	}
	sender := &recordingSender{failOn: 1}

	sum, err := NewBroadcaster(store, sender).Broadcast(context.Background(), "alert", Message{Title: "Hi"})
	assert.Error(t, err)
	assert.Equal(t, 500, sum.Failed)
	assert.Equal(t, 100, sum.Sent)
}

func TestBroadcast_NotConfigured(t *testing.T) {
	_, err := NewBroadcaster(nil, nil).Broadcast(context.Background(), "custom", Message{Title: "x"})
	assert.ErrorIs(t, err, ErrNoSender)

	_, err = NewBroadcaster(&memTokens{}, &recordingSender{}).Broadcast(context.Background(), "custom", Message{})
	assert.Error(t, err)

	_, err = NewBroadcaster(&memTokens{listErr: errors.New("down")}, &recordingSender{}).
		Broadcast(context.Background(), "custom", Message{Title: "x"})
	assert.Error(t, err)
}

func plannerFixture(t *testing.T) (*ReminderPlanner, *time.Location) {
	t.Helper()
	ist := time.FixedZone("IST", 19800)
	p, err := NewReminderPlanner(PlannerOptions{
		Events: []Event{
			{ID: "welcome", Title: "Welcome Lunch", Start: time.Date(2026, 12, 19, 12, 0, 0, 0, ist), Location: "Samaja Hall"},
			{ID: "muhurtham", Title: "Muhurtham", Start: time.Date(2026, 12, 20, 10, 0, 0, 0, ist)},
		},
		Lead:             30 * time.Minute,
		RSVPRule:         "FREQ=WEEKLY;BYDAY=MO;BYHOUR=10;BYMINUTE=0;BYSECOND=0",
		RSVPStart:        time.Date(2026, 10, 1, 0, 0, 0, 0, ist),
		RSVPDeadline:     time.Date(2026, 11, 15, 23, 59, 59, 0, ist),
		RSVPDeadlineText: "November 15, 2026",
	})
	require.NoError(t, err)
	return p, ist
}

func TestReminderPlanner_EventLead(t *testing.T) {
	p, ist := plannerFixture(t)

	due := p.Due(time.Date(2026, 12, 19, 11, 0, 0, 0, ist), time.Date(2026, 12, 19, 11, 30, 0, 0, ist))
	require.Len(t, due, 1)
	assert.Equal(t, "event:welcome", due[0].Key)
	assert.Equal(t, "Welcome Lunch", due[0].Message.Title)
	assert.Equal(t, "Starts in 30 minutes at Samaja Hall.", due[0].Message.Body)

	// The lower bound is exclusive.
	assert.Empty(t, p.Due(time.Date(2026, 12, 19, 11, 30, 0, 0, ist), time.Date(2026, 12, 19, 11, 45, 0, 0, ist)))
}

func TestReminderPlanner_RSVPRuleStopsAtDeadline(t *testing.T) {
	p, ist := plannerFixture(t)

	due := p.Due(time.Date(2026, 11, 1, 0, 0, 0, 0, ist), time.Date(2026, 12, 1, 0, 0, 0, 0, ist))
	require.Len(t, due, 2)
	assert.Equal(t, time.Date(2026, 11, 2, 10, 0, 0, 0, ist).Unix(), due[0].At.Unix())
	assert.Equal(t, time.Date(2026, 11, 9, 10, 0, 0, 0, ist).Unix(), due[1].At.Unix())
	assert.Equal(t, "Please confirm your attendance by November 15, 2026.", due[1].Message.Body)
	assert.NotEqual(t, due[0].Key, due[1].Key)
}

func TestReminderPlanner_RSVPRuleIgnoresStartMinutes(t *testing.T) {
	ist := time.FixedZone("IST", 19800)
	p, err := NewReminderPlanner(PlannerOptions{
		RSVPRule:     "FREQ=WEEKLY;BYDAY=MO;BYHOUR=10",
		RSVPStart:    time.Date(2026, 10, 1, 14, 37, 12, 0, ist),
		RSVPDeadline: time.Date(2026, 11, 15, 23, 59, 59, 0, ist),
	})
	require.NoError(t, err)

	due := p.Due(time.Date(2026, 11, 1, 0, 0, 0, 0, ist), time.Date(2026, 11, 3, 0, 0, 0, 0, ist))
	require.Len(t, due, 1)
	assert.Equal(t, time.Date(2026, 11, 2, 10, 0, 0, 0, ist).Unix(), due[0].At.Unix())
}

func TestReminderPlanner_BadRule(t *testing.T) {
	_, err := NewReminderPlanner(PlannerOptions{RSVPRule: "FREQ=SOMETIMES"})
	assert.Error(t, err)
}

func TestReminderJob_SendsEachReminderOnce(t *testing.T) {
	p, ist := plannerFixture(t)
	store := &memTokens{saved: []model.Token{{Token: "a"}}}
	sender := &recordingSender{}
	job := NewReminderJob(p, NewBroadcaster(store, sender), time.Date(2026, 12, 19, 11, 0, 0, 0, ist))

	first := job.Run(context.Background(), time.Date(2026, 12, 19, 11, 35, 0, 0, ist))
	second := job.Run(context.Background(), time.Date(2026, 12, 19, 11, 40, 0, 0, ist))

	assert.Len(t, first, 1)
	assert.Empty(t, second)
	assert.Len(t, sender.batches, 1)
}

func TestAnnounceAlerts(t *testing.T) {
	store := &memTokens{saved: []model.Token{{Token: "a"}, {Token: "b"}}}
	sender := &recordingSender{}
	b := NewBroadcaster(store, sender)

	n := b.AnnounceAlerts(context.Background(), []model.Alert{
		{ID: "venue-change", Title: "Venue update", Urgent: true},
		{ID: "no-title", Urgent: true},
	})
	assert.Equal(t, 2, n)
	assert.Len(t, sender.batches, 2)

	msg := AlertMessage(model.Alert{ID: "x", Title: "T", Body: "B"})
	assert.Equal(t, "alert", msg.Data["type"])
	assert.Equal(t, "x", msg.Data["alert"])

	assert.Zero(t, NewBroadcaster(nil, nil).AnnounceAlerts(context.Background(), []model.Alert{{ID: "x"}}))
}
