// README: Router tests: role gates, validation rejects, notification surface.
package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"angierens/internal/modules/notify"
	"angierens/internal/modules/order"
	"angierens/internal/modules/refund"
	"angierens/internal/modules/rider"
)

func newTestRouter() http.Handler {
	gin.SetMode(gin.TestMode)
	return NewRouter(ServerDeps{
		Orders:    order.NewService(nil, nil),
		Projector: order.NewProjector(nil, nil),
		Refunds:   refund.NewService(nil, nil),
		Riders:    rider.NewService(nil, nil),
		Tracker:   nil,
		Notify:    notify.NewCenter(10),
	})
}

func do(t *testing.T, router http.Handler, method, path, role, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set("X-Actor-Role", role)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := do(t, newTestRouter(), http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health = %d", w.Code)
	}
}

func TestUnknownActorRoleRejected(t *testing.T) {
	w := do(t, newTestRouter(), http.MethodGet, "/health", "chef", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown role = %d, want 400", w.Code)
	}
}

func TestStaffRoutesClosedToCustomers(t *testing.T) {
	router := newTestRouter()
	cases := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/board/kitchen"},
		{http.MethodGet, "/api/board/dashboard"},
		{http.MethodGet, "/api/refunds"},
		{http.MethodPost, "/api/orders/o1/refund/resolve"},
		{http.MethodPost, "/api/orders/o1/items/i1/completion"},
		{http.MethodPut, "/api/riders/r1/location"},
		{http.MethodGet, "/api/riders/nearby"},
	}
	for _, tc := range cases {
		// No header defaults to customer.
		if w := do(t, router, tc.method, tc.path, "", "{}"); w.Code != http.StatusForbidden {
			t.Errorf("%s %s as customer = %d, want 403", tc.method, tc.path, w.Code)
		}
	}
}

func TestRiderCannotResolveRefunds(t *testing.T) {
	w := do(t, newTestRouter(), http.MethodPost, "/api/orders/o1/refund/resolve", "rider", `{"approve":true}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("rider resolving refund = %d, want 403", w.Code)
	}
}

func TestCreateOrderRejectsBadJSON(t *testing.T) {
	w := do(t, newTestRouter(), http.MethodPost, "/api/orders", "", "{not json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad json = %d, want 400", w.Code)
	}
}

func TestCreateOrderRejectsEmptyCommand(t *testing.T) {
	w := do(t, newTestRouter(), http.MethodPost, "/api/orders", "", "{}")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty command = %d, want 400", w.Code)
	}
}

func TestTransitionRequiresTarget(t *testing.T) {
	w := do(t, newTestRouter(), http.MethodPost, "/api/orders/o1/transition", "admin", "{}")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing target = %d, want 400", w.Code)
	}
}

func TestTransitionRejectsRefundStatuses(t *testing.T) {
	// Refund states carry refund rows with them; the raw transition endpoint
	// must not offer a way in.
	router := newTestRouter()
	for _, to := range []string{"Refunding", "Refund", "Rejected"} {
		body := `{"to":"` + to + `"}`
		if w := do(t, router, http.MethodPost, "/api/orders/o1/transition", "admin", body); w.Code != http.StatusBadRequest {
			t.Errorf("transition to %s = %d, want 400", to, w.Code)
		}
	}
}

func TestRefundRequestValidation(t *testing.T) {
	body := `{"customer_id":"c1","reason":"cold food","destination":"0917","confirm_destination":"0918"}`
	w := do(t, newTestRouter(), http.MethodPost, "/api/orders/o1/refund", "", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("mismatched confirmation = %d, want 400", w.Code)
	}
}

func TestNearbyRidersValidation(t *testing.T) {
	router := newTestRouter()
	if w := do(t, router, http.MethodGet, "/api/riders/nearby?lat=abc&lng=1", "admin", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad lat = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/api/riders/nearby?lat=1&lng=1&radius_km=-2", "admin", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad radius = %d, want 400", w.Code)
	}
}

func TestRiderLocationValidation(t *testing.T) {
	// Zero coordinates are rejected before any storage access.
	w := do(t, newTestRouter(), http.MethodPut, "/api/riders/r1/location", "rider", `{"lat":0,"lng":0}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("zero position = %d, want 400", w.Code)
	}
}

func TestNotificationSurface(t *testing.T) {
	gin.SetMode(gin.TestMode)
	center := notify.NewCenter(10)
	center.Push("c1", "Your order is ready", "")
	router := NewRouter(ServerDeps{
		Orders:    order.NewService(nil, nil),
		Projector: order.NewProjector(nil, nil),
		Refunds:   refund.NewService(nil, nil),
		Riders:    rider.NewService(nil, nil),
		Notify:    center,
	})

	w := do(t, router, http.MethodGet, "/api/notifications/c1", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"unread":1`) {
		t.Fatalf("expected one unread, got %s", w.Body.String())
	}

	if w := do(t, router, http.MethodPost, "/api/notifications/c1/read", "", ""); w.Code != http.StatusOK {
		t.Fatalf("mark read = %d", w.Code)
	}
	w = do(t, router, http.MethodGet, "/api/notifications/c1", "", "")
	if !strings.Contains(w.Body.String(), `"unread":0`) {
		t.Fatalf("expected zero unread, got %s", w.Body.String())
	}
}
