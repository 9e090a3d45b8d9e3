package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"missedcall_backend/platform/logger"

	"github.com/google/uuid"
)

type alertConfigStub struct {
	disabled   bool
	severities []string
	cooldown   time.Duration
}

func (s alertConfigStub) GetAlertsDisabled() bool         { return s.disabled }
func (s alertConfigStub) GetAlertSeverities() []string    { return s.severities }
func (s alertConfigStub) GetAlertCooldown() time.Duration { return s.cooldown }
func (s alertConfigStub) GetOperatorPhone() string        { return "" }
func (s alertConfigStub) GetAlertFromNumber() string      { return "" }
func (s alertConfigStub) GetOperatorEmail() string        { return "" }
func (s alertConfigStub) GetSMTPHost() string             { return "" }
func (s alertConfigStub) GetSMTPPort() int                { return 0 }
func (s alertConfigStub) GetSMTPUsername() string         { return "" }
func (s alertConfigStub) GetSMTPPassword() string         { return "" }
func (s alertConfigStub) GetEmailFromAddress() string     { return "" }
func (s alertConfigStub) IsAlertSMSEnabled() bool         { return false }
func (s alertConfigStub) IsAlertEmailEnabled() bool       { return false }

type fakeAlertLog struct {
	latest    *LogEntry
	latestErr error
	inserted  []LogEntry
}

func (f *fakeAlertLog) Insert(ctx context.Context, entry LogEntry) (uuid.UUID, error) {
	f.inserted = append(f.inserted, entry)
	return uuid.New(), nil
}

func (f *fakeAlertLog) GetLatestByKey(ctx context.Context, key string) (LogEntry, error) {
	if f.latestErr != nil {
		return LogEntry{}, f.latestErr
	}
	if f.latest == nil {
		return LogEntry{}, ErrNotFound
	}
	return *f.latest, nil
}

type recordingChannel struct {
	delivered []Payload
	err       error
}

func (c *recordingChannel) Name() string { return "recording" }

func (c *recordingChannel) Deliver(ctx context.Context, p Payload) error {
	if c.err != nil {
		return c.err
	}
	c.delivered = append(c.delivered, p)
	return nil
}

func newDispatcher(cfg alertConfigStub, repo *fakeAlertLog, ch *recordingChannel) *Dispatcher {
	if cfg.severities == nil {
		cfg.severities = []string{SeverityHigh, SeverityMedium}
	}
	return NewDispatcher(cfg, repo, []Channel{ch}, logger.New("development"))
}

func highPayload() Payload {
	return Payload{
		Type:       TypeStuckClient,
		Severity:   SeverityHigh,
		ResourceID: "client-1",
		Title:      "t",
		Message:    "m",
	}
}

func TestDispatcherDeliversFirstOccurrence(t *testing.T) {
	repo := &fakeAlertLog{}
	ch := &recordingChannel{}
	d := newDispatcher(alertConfigStub{}, repo, ch)

	res := d.SendCriticalAlert(context.Background(), highPayload())

	if !res.Success || res.Suppressed {
		t.Fatalf("first occurrence must deliver, got %+v", res)
	}
	if len(ch.delivered) != 1 {
		t.Fatalf("channel deliveries = %d, want 1", len(ch.delivered))
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("log inserts = %d, want 1", len(repo.inserted))
	}
	if repo.inserted[0].AlertKey != "stuck_client:client-1" {
		t.Fatalf("dedup key = %q", repo.inserted[0].AlertKey)
	}
}

func TestDispatcherKillSwitch(t *testing.T) {
	repo := &fakeAlertLog{}
	ch := &recordingChannel{}
	d := newDispatcher(alertConfigStub{disabled: true}, repo, ch)

	res := d.SendCriticalAlert(context.Background(), highPayload())

	if !res.Suppressed || len(ch.delivered) != 0 || len(repo.inserted) != 0 {
		t.Fatalf("kill switch must suppress everything, got %+v", res)
	}
}

func TestDispatcherSeverityAllowList(t *testing.T) {
	repo := &fakeAlertLog{}
	ch := &recordingChannel{}
	d := newDispatcher(alertConfigStub{severities: []string{SeverityHigh}}, repo, ch)

	p := highPayload()
	p.Severity = SeverityMedium

	if res := d.SendCriticalAlert(context.Background(), p); !res.Suppressed {
		t.Fatalf("off-list severity must suppress, got %+v", res)
	}
	if len(ch.delivered) != 0 {
		t.Fatal("off-list severity must not deliver")
	}
}

func TestDispatcherSuppressesWhileUnacknowledged(t *testing.T) {
	repo := &fakeAlertLog{latest: &LogEntry{DeliveredAt: time.Now().Add(-48 * time.Hour)}}
	ch := &recordingChannel{}
	d := newDispatcher(alertConfigStub{}, repo, ch)

	res := d.SendCriticalAlert(context.Background(), highPayload())

	if !res.Suppressed || len(ch.delivered) != 0 {
		t.Fatalf("unacked prior alert must suppress regardless of age, got %+v", res)
	}
}

func TestDispatcherCooldownAfterAcknowledgment(t *testing.T) {
	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	recent := base.Add(-1 * time.Hour)
	repo := &fakeAlertLog{latest: &LogEntry{DeliveredAt: base.Add(-2 * time.Hour), AcknowledgedAt: &recent}}
	ch := &recordingChannel{}
	d := newDispatcher(alertConfigStub{cooldown: 24 * time.Hour}, repo, ch)
	d.now = func() time.Time { return base }

	if res := d.SendCriticalAlert(context.Background(), highPayload()); !res.Suppressed {
		t.Fatalf("ack within cooldown must suppress, got %+v", res)
	}

	old := base.Add(-25 * time.Hour)
	repo.latest.AcknowledgedAt = &old
	if res := d.SendCriticalAlert(context.Background(), highPayload()); !res.Success {
		t.Fatalf("ack beyond cooldown must deliver again, got %+v", res)
	}
}

func TestDispatcherDeliversWhenLookupFails(t *testing.T) {
	repo := &fakeAlertLog{latestErr: errors.New("db down")}
	ch := &recordingChannel{}
	d := newDispatcher(alertConfigStub{}, repo, ch)

	if res := d.SendCriticalAlert(context.Background(), highPayload()); !res.Success {
		t.Fatalf("a broken dedupe lookup must not block delivery, got %+v", res)
	}
}

func TestDispatcherSwallowsChannelFailure(t *testing.T) {
	repo := &fakeAlertLog{}
	ch := &recordingChannel{err: errors.New("smtp refused")}
	d := newDispatcher(alertConfigStub{}, repo, ch)

	res := d.SendCriticalAlert(context.Background(), highPayload())

	if res.Success {
		t.Fatal("all channels failing must report no success")
	}
	if len(repo.inserted) != 1 {
		t.Fatal("the log entry is still written when delivery fails")
	}
}

func TestPayloadKey(t *testing.T) {
	p := Payload{Type: TypePoolExhausted}
	if p.Key() != TypePoolExhausted {
		t.Fatalf("system-wide key = %q", p.Key())
	}
	p.ResourceID = "abc"
	if p.Key() != TypePoolExhausted+":abc" {
		t.Fatalf("resource key = %q", p.Key())
	}
}
