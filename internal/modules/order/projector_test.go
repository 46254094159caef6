// README: Projection tests (pure view assembly, grouping, watch loop).
package order

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"angierens/internal/bus"
	"angierens/internal/types"
)

func sampleComposite() Composite {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	rider := types.ID("r1")
	return Composite{
		Order: Order{
			ID:              "o1",
			OrderNo:         42,
			CustomerID:      "c1",
			CustomerName:    "Maria",
			Status:          StatusCooking,
			StatusVersion:   3,
			Fulfillment:     FulfillmentDelivery,
			TotalPrice:      decimal.NewFromFloat(1460.50),
			CreatedAt:       now,
			StatusUpdatedAt: now.Add(20 * time.Minute),
		},
		Items: []Item{
			{ID: "i1", OrderID: "o1", Name: "Big Bilao", Quantity: 2, UnitPrice: decimal.NewFromInt(600), Subtotal: decimal.NewFromInt(1200), Completed: true, AddOns: []AddOn{
				{ID: "a1", ItemID: "i1", Name: "Puto", Quantity: 3, Subtotal: decimal.NewFromInt(60)},
			}},
			{ID: "i2", OrderID: "o1", Name: "Sapin-Sapin", Quantity: 1, UnitPrice: decimal.NewFromFloat(150.50), Subtotal: decimal.NewFromFloat(150.50)},
		},
		Payment: &Payment{
			OrderID:    "o1",
			Method:     MethodGCashHalf,
			AmountPaid: decimal.NewFromFloat(730.25),
			Paid:       true,
		},
		Delivery: &Delivery{
			OrderID:     "o1",
			Fee:         decimal.NewFromInt(50),
			Address:     "123 Main St",
			Destination: types.Point{Lat: 14.76, Lng: 120.98},
			RiderID:     &rider,
			Status:      "Pending",
		},
	}
}

func TestBuildViewIdempotent(t *testing.T) {
	c := sampleComposite()
	a := BuildView(c)
	b := BuildView(c)

	// Compare over JSON so decimal internals do not trip DeepEqual.
	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	if string(aj) != string(bj) {
		t.Fatalf("BuildView not idempotent:\n%s\n%s", aj, bj)
	}
}

func TestBuildViewTotals(t *testing.T) {
	v := BuildView(sampleComposite())

	if !v.Subtotal.Equal(decimal.NewFromFloat(1410.50)) {
		t.Fatalf("subtotal = %s, want 1410.50", v.Subtotal)
	}
	if !v.DeliveryFee.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("delivery fee = %s, want 50", v.DeliveryFee)
	}
	if v.Payment == nil {
		t.Fatal("expected payment view")
	}
	// 730.25 / 1460.50 rounds to 50 percent.
	if v.Payment.PercentPaid != 50 {
		t.Fatalf("percent paid = %d, want 50", v.Payment.PercentPaid)
	}
	if v.Payment.Display != "Online - GCash" {
		t.Fatalf("display = %q", v.Payment.Display)
	}
}

func TestBuildViewCashHasNoPercent(t *testing.T) {
	c := sampleComposite()
	c.Payment.Method = MethodCash
	v := BuildView(c)
	if v.Payment.PercentPaid != 0 {
		t.Fatalf("cash percent paid = %d, want 0", v.Payment.PercentPaid)
	}
	if v.Payment.Display != string(MethodCash) {
		t.Fatalf("display = %q", v.Payment.Display)
	}
}

func TestBuildViewProgress(t *testing.T) {
	cases := []struct {
		status Status
		done   []string
	}{
		{StatusPending, []string{"placed", "payment"}},
		{StatusQueueing, []string{"placed", "payment", "queueing"}},
		{StatusCooking, []string{"placed", "payment", "queueing", "preparing"}},
		{StatusReady, []string{"placed", "payment", "queueing", "preparing", "ready"}},
		{StatusCompleted, []string{"placed", "payment", "queueing", "preparing", "ready", "completed"}},
		// side branches freeze the tracker where the order left the path
		{StatusRefunding, []string{"placed", "payment", "queueing"}},
		{StatusCancelled, []string{"placed", "payment"}},
	}
	for _, tc := range cases {
		c := sampleComposite()
		c.Order.Status = tc.status
		v := BuildView(c)
		var done []string
		for _, step := range v.Progress {
			if step.Completed {
				done = append(done, step.Key)
			}
		}
		if !reflect.DeepEqual(done, tc.done) {
			t.Errorf("%s: completed steps %v, want %v", tc.status, done, tc.done)
		}
	}
}

func TestGroupOf(t *testing.T) {
	cases := map[Status]Group{
		StatusPending:    GroupNew,
		StatusQueueing:   GroupInProcess,
		StatusPreparing:  GroupInProcess,
		StatusCooking:    GroupInProcess,
		StatusReady:      GroupInProcess,
		StatusOnDelivery: GroupInProcess,
		StatusClaimOrder: GroupInProcess,
		StatusRefunding:  GroupInProcess,
		StatusRefund:     GroupInProcess,
		StatusCancelled:  GroupInProcess,
		StatusCompleted:  GroupCompleted,
	}
	for status, want := range cases {
		if got := GroupOf(status); got != want {
			t.Errorf("GroupOf(%s) = %s, want %s", status, got, want)
		}
	}
}

// TestWatchStaleMarker exercises the refresh guard directly: the watch loop
// discards events stamped before the last applied commit marker.
func TestWatchStaleMarker(t *testing.T) {
	var lastAt time.Time
	apply := func(at time.Time) bool {
		if at.Before(lastAt) {
			return false
		}
		lastAt = at
		return true
	}

	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	if !apply(t0) {
		t.Fatal("first event should apply")
	}
	if !apply(t0.Add(time.Second)) {
		t.Fatal("newer event should apply")
	}
	if apply(t0) {
		t.Fatal("stale event should be discarded")
	}
	if !apply(t0.Add(time.Second)) {
		t.Fatal("duplicate of latest should re-apply (at-least-once)")
	}
}

func TestMemoryBusRoundTrip(t *testing.T) {
	b := bus.NewMemoryBus()
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, TableOrders, "o1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	wide, err := b.Subscribe(ctx, TableOrders, "")
	if err != nil {
		t.Fatalf("subscribe wide: %v", err)
	}
	defer wide.Close()

	at := time.Now()
	if err := b.Publish(ctx, bus.Event{Op: bus.OpUpdate, Table: TableOrders, Key: "o1", At: at}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := b.Publish(ctx, bus.Event{Op: bus.OpUpdate, Table: TableOrders, Key: "o2", At: at}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case e := <-sub.Events():
		if e.Key != "o1" {
			t.Fatalf("keyed sub got %s", e.Key)
		}
	case <-time.After(time.Second):
		t.Fatal("keyed sub: no event")
	}
	select {
	case e := <-sub.Events():
		t.Fatalf("keyed sub got extra event for %s", e.Key)
	default:
	}

	for _, want := range []string{"o1", "o2"} {
		select {
		case e := <-wide.Events():
			if e.Key != want {
				t.Fatalf("wide sub got %s, want %s", e.Key, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("wide sub: missing event %s", want)
		}
	}
}
