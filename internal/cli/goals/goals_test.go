package goals

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/julianstephens/daystreak/internal/cli"
	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/goalstore"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/notifier"
	"github.com/julianstephens/daystreak/internal/storage"
	"github.com/julianstephens/daystreak/internal/storage/memory"
)

type recordingDeliverer struct {
	titles []string
	err    error
}

func (d *recordingDeliverer) Deliver(title, _ string) error {
	d.titles = append(d.titles, title)
	return d.err
}

type testEnv struct {
	ctx       *cli.Context
	out       *bytes.Buffer
	provider  *memory.Store
	deliverer *recordingDeliverer
	clock     *clockwork.FakeClock
}

func setupTestContext(t *testing.T) *testEnv {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 20, 18, 0, 0, 0, time.Local))
	provider := memory.NewStore(nil)
	out := &bytes.Buffer{}
	deliverer := &recordingDeliverer{}
	return &testEnv{
		ctx: &cli.Context{
			Base:     context.Background(),
			Store:    provider,
			Goals:    goalstore.New(provider, clock),
			Clock:    clock,
			Notifier: deliverer,
			Messages: notifier.NewMessages(rand.New(rand.NewPCG(7, 7))),
			Out:      out,
		},
		out:       out,
		provider:  provider,
		deliverer: deliverer,
		clock:     clock,
	}
}

func TestCreateCmd(t *testing.T) {
	tests := []struct {
		name      string
		cmd       CreateCmd
		wantError bool
		wantStart string
	}{
		{"defaults to today", CreateCmd{Name: "Read", Days: 30}, false, "2024-05-20"},
		{"explicit start", CreateCmd{Name: "Read", Days: 30, Start: "2024-05-01"}, false, "2024-05-01"},
		{"blank name", CreateCmd{Name: "   ", Days: 30}, true, ""},
		{"zero days", CreateCmd{Name: "Read", Days: 0}, true, ""},
		{"negative days", CreateCmd{Name: "Read", Days: -3}, true, ""},
		{"bad start", CreateCmd{Name: "Read", Days: 3, Start: "May 1"}, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestContext(t)

			err := tt.cmd.Run(env.ctx)
			if (err != nil) != tt.wantError {
				t.Fatalf("CreateCmd.Run() error = %v, wantError %v", err, tt.wantError)
			}

			goal, getErr := env.ctx.Goals.Get(context.Background())
			if getErr != nil {
				t.Fatalf("Get() error = %v", getErr)
			}
			if tt.wantError {
				if goal != nil {
					t.Errorf("invalid goal was saved: %+v", goal)
				}
				return
			}
			if goal == nil || goal.StartDate != tt.wantStart || goal.DaysCompleted() != 0 {
				t.Errorf("saved goal = %+v, want start %s and no marks", goal, tt.wantStart)
			}
		})
	}
}

func TestCreateCmdRefusesToReplace(t *testing.T) {
	env := setupTestContext(t)

	if err := (&CreateCmd{Name: "Read", Days: 30}).Run(env.ctx); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if err := (&CreateCmd{Name: "Run", Days: 10}).Run(env.ctx); err == nil {
		t.Fatal("second create without --force should fail")
	}
	if err := (&CreateCmd{Name: "Run", Days: 10, Force: true}).Run(env.ctx); err != nil {
		t.Fatalf("create with --force failed: %v", err)
	}

	name, _, _ := env.ctx.Goals.GoalName(context.Background())
	if name != "Run" {
		t.Errorf("goal name = %q, want Run", name)
	}
}

func TestMarkCmd(t *testing.T) {
	env := setupTestContext(t)
	if err := (&CreateCmd{Name: "Read", Days: 30}).Run(env.ctx); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	env.out.Reset()

	if err := (&MarkCmd{}).Run(env.ctx); err != nil {
		t.Fatalf("MarkCmd.Run() error = %v", err)
	}
	if !strings.Contains(env.out.String(), "1/30 days (3%)") {
		t.Errorf("output = %q, want progress line", env.out.String())
	}
	if len(env.deliverer.titles) != 1 || !strings.Contains(env.deliverer.titles[0], "Read") {
		t.Errorf("praise notifications = %v, want one naming the goal", env.deliverer.titles)
	}

	// Second mark on the same day: no write, no praise.
	writes := env.provider.Writes()
	env.out.Reset()
	if err := (&MarkCmd{}).Run(env.ctx); err != nil {
		t.Fatalf("second MarkCmd.Run() error = %v", err)
	}
	if !strings.Contains(env.out.String(), "already marked") {
		t.Errorf("output = %q, want already marked", env.out.String())
	}
	if env.provider.Writes() != writes {
		t.Error("second mark should not write")
	}
	if len(env.deliverer.titles) != 1 {
		t.Errorf("praise sent %d times, want 1", len(env.deliverer.titles))
	}
}

// midnightProvider moves the clock past midnight while an update commits.
type midnightProvider struct {
	*memory.Store
	clock *clockwork.FakeClock
}

func (p *midnightProvider) Update(ctx context.Context, fn storage.Transform) error {
	err := p.Store.Update(ctx, fn)
	p.clock.Advance(time.Second)
	return err
}

func TestMarkCmdReportsTheDateItMarked(t *testing.T) {
	env := setupTestContext(t)
	if err := (&CreateCmd{Name: "Read", Days: 30}).Run(env.ctx); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	env.clock.Set(time.Date(2024, 5, 20, 23, 59, 59, 500_000_000, time.Local))
	env.ctx.Goals = goalstore.New(&midnightProvider{Store: env.provider, clock: env.clock}, env.clock)
	env.out.Reset()

	if err := (&MarkCmd{}).Run(env.ctx); err != nil {
		t.Fatalf("MarkCmd.Run() error = %v", err)
	}
	if !strings.Contains(env.out.String(), "Marked 2024-05-20") {
		t.Errorf("output = %q, want the date that was marked", env.out.String())
	}
	prefs, _ := env.provider.ReadAll(context.Background())
	if prefs[constants.KeyMarkedDates] != "2024-05-20" {
		t.Errorf("marked_dates = %q, want 2024-05-20", prefs[constants.KeyMarkedDates])
	}
}

func TestMarkCmdDeliveryFailureIsNotFatal(t *testing.T) {
	env := setupTestContext(t)
	env.deliverer.err = errors.New("tray not running")
	if err := (&CreateCmd{Name: "Read", Days: 30}).Run(env.ctx); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := (&MarkCmd{}).Run(env.ctx); err != nil {
		t.Errorf("MarkCmd.Run() error = %v, delivery failures should only be logged", err)
	}
}

func TestMarkCmdWithoutGoal(t *testing.T) {
	env := setupTestContext(t)

	if err := (&MarkCmd{}).Run(env.ctx); !errors.Is(err, ErrNoGoal) {
		t.Errorf("MarkCmd.Run() error = %v, want ErrNoGoal", err)
	}
}

func TestStatusCmd(t *testing.T) {
	env := setupTestContext(t)

	if err := (&StatusCmd{}).Run(env.ctx); err != nil {
		t.Fatalf("StatusCmd.Run() error = %v", err)
	}
	if !strings.Contains(env.out.String(), "No active goal") {
		t.Errorf("output = %q", env.out.String())
	}

	if err := (&CreateCmd{Name: "Read", Days: 30}).Run(env.ctx); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	env.out.Reset()
	if err := (&StatusCmd{}).Run(env.ctx); err != nil {
		t.Fatalf("StatusCmd.Run() error = %v", err)
	}
	for _, want := range []string{"Goal:      Read", "0/30 days (0%)", "not marked yet"} {
		if !strings.Contains(env.out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, env.out.String())
		}
	}
}

func TestStatusCmdFollow(t *testing.T) {
	env := setupTestContext(t)
	ctx, cancel := context.WithCancel(context.Background())
	env.ctx.Base = ctx

	// The command writes from its own goroutine; hand it a private buffer.
	out := &syncBuffer{}
	env.ctx.Out = out

	done := make(chan error, 1)
	go func() { done <- (&StatusCmd{Follow: true}).Run(env.ctx) }()

	waitFor(t, func() bool { return strings.Contains(out.String(), "No active goal") })

	goal := models.NewGoal("Read", 30, "2024-05-01")
	if err := env.ctx.Goals.Save(context.Background(), goal); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	waitFor(t, func() bool { return strings.Contains(out.String(), "Goal:      Read") })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("follow returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("follow did not stop after cancel")
	}
}

func TestDeleteCmd(t *testing.T) {
	env := setupTestContext(t)

	if err := (&DeleteCmd{}).Run(env.ctx); err != nil {
		t.Fatalf("DeleteCmd.Run() without goal error = %v", err)
	}
	if !strings.Contains(env.out.String(), "No goal") {
		t.Errorf("output = %q", env.out.String())
	}

	if err := (&CreateCmd{Name: "Read", Days: 30}).Run(env.ctx); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := (&DeleteCmd{}).Run(env.ctx); err != nil {
		t.Fatalf("DeleteCmd.Run() error = %v", err)
	}
	goal, err := env.ctx.Goals.Get(context.Background())
	if err != nil || goal != nil {
		t.Errorf("after delete Get() = %+v, %v; want nil, nil", goal, err)
	}
}

func TestFormatStatusOverTarget(t *testing.T) {
	goal := models.Goal{
		Name:        "Read",
		TotalDays:   2,
		StartDate:   "2024-05-01",
		MarkedDates: models.NewDateSet("2024-05-01", "2024-05-02", "2024-05-03"),
	}
	got := formatStatus(&goal, "2024-05-03")
	for _, want := range []string{"3/2 days (150%)", "Remaining: 0 days", "Today:     marked"} {
		if !strings.Contains(got, want) {
			t.Errorf("formatStatus() missing %q:\n%s", want, got)
		}
	}
}
