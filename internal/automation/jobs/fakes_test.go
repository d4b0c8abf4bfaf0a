package jobs

import (
	"context"
	"sync"
	"time"

	"clinic_automation/internal/automation"
	"clinic_automation/internal/automation/dispatch"

	"github.com/google/uuid"
)

var testNow = time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

type fakeGate struct {
	enabled bool
	err     error
	calls   int
	keys    []string
}

func (g *fakeGate) IsAutomationEnabled(_ context.Context, _ *uuid.UUID, key string) (bool, error) {
	g.calls++
	g.keys = append(g.keys, key)
	return g.enabled, g.err
}

type fakeNotifier struct {
	mu      sync.Mutex
	intents []dispatch.Intent
	// deliver decides the outcome per intent; nil means every send succeeds.
	deliver func(dispatch.Intent) bool
	staff   map[dispatch.Role][]dispatch.Recipient
}

func (n *fakeNotifier) Send(_ context.Context, intent dispatch.Intent) dispatch.Result {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.intents = append(n.intents, intent)
	ok := n.deliver == nil || n.deliver(intent)
	return dispatch.Result{Channels: []dispatch.ChannelResult{{Channel: dispatch.ChannelEmail, RecipientID: intent.Recipient.ID, Sent: ok}}}
}

func (n *fakeNotifier) Recipients(_ context.Context, _ *uuid.UUID, roles ...dispatch.Role) ([]dispatch.Recipient, error) {
	var out []dispatch.Recipient
	for _, r := range roles {
		out = append(out, n.staff[r]...)
	}
	return out, nil
}

func (n *fakeNotifier) sent() []dispatch.Intent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]dispatch.Intent(nil), n.intents...)
}

func testDeps(n *fakeNotifier) Deps {
	return Deps{
		Settings: &fakeGate{enabled: true},
		Notifier: n,
		Clock:    automation.FixedClock{T: testNow},
		Location: time.UTC,
	}
}

func daysAgo(n int) time.Time {
	return testNow.AddDate(0, 0, -n)
}

func dateIn(n int) time.Time {
	d := testNow.AddDate(0, 0, n)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

func outcomeFor(res automation.JobRunResult, id uuid.UUID) automation.EntityOutcome {
	for _, o := range res.Outcomes {
		if o.EntityID == id.String() {
			return o
		}
	}
	return automation.EntityOutcome{}
}
