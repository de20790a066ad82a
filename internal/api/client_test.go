package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kubecloud/console-agent/internal/model"
)

type fakeTokens struct {
	mu       sync.Mutex
	token    string
	next     string
	refreshN int
	fail     bool
}

func (f *fakeTokens) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeTokens) Refresh(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshN++
	if f.fail {
		return "", ErrSessionExpired
	}
	f.token = f.next
	return f.next, nil
}

func (f *fakeTokens) refreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshN
}

type fakeReporter struct {
	mu       sync.Mutex
	loadings []string
	removed  []string
	success  []string
	errs     []string
}

func (r *fakeReporter) Loading(msg string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadings = append(r.loadings, msg)
	return "toast-1"
}

func (r *fakeReporter) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, id)
}

func (r *fakeReporter) Success(msg string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.success = append(r.success, msg)
	return "toast-s"
}

func (r *fakeReporter) Error(msg string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, msg)
	return "toast-e"
}

func TestGetWorkflowStatus(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/workflow/wf-42" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/v1/workflow/wf-42")
		}
		gotAuth.Store(r.Header.Get("Authorization"))
		w.Write([]byte(`{"data":"running"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, StaticToken("tok-abc"))

	status, err := c.GetWorkflowStatus(context.Background(), "wf-42")
	if err != nil {
		t.Fatalf("GetWorkflowStatus failed: %v", err)
	}
	if status != model.WorkflowRunning {
		t.Errorf("status = %q, want %q", status, model.WorkflowRunning)
	}
	if auth := gotAuth.Load(); auth != "Bearer tok-abc" {
		t.Errorf("Authorization = %q, want %q", auth, "Bearer tok-abc")
	}
}

func TestRefreshOnUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"data":{"balance_usd":12.5,"debt_usd":0}}`))
	}))
	defer srv.Close()

	tokens := &fakeTokens{token: "stale", next: "fresh"}
	c := NewClient(srv.URL, tokens)

	bal, err := c.GetBalance(context.Background())
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if bal.BalanceUSD != 12.5 {
		t.Errorf("BalanceUSD = %v, want 12.5", bal.BalanceUSD)
	}
	if n := tokens.refreshes(); n != 1 {
		t.Errorf("refresh count = %d, want 1", n)
	}
}

func TestSessionExpiredWhenRefreshFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	tokens := &fakeTokens{token: "stale", fail: true}
	c := NewClient(srv.URL, tokens)

	_, err := c.GetUser(context.Background())
	if !errors.Is(err, ErrSessionExpired) {
		t.Errorf("err = %v, want ErrSessionExpired", err)
	}
}

func TestSessionExpiredWhenFreshTokenRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := &fakeTokens{token: "stale", next: "still-bad"}
	c := NewClient(srv.URL, tokens)

	_, err := c.GetUser(context.Background())
	if !errors.Is(err, ErrSessionExpired) {
		t.Errorf("err = %v, want ErrSessionExpired", err)
	}
	if n := tokens.refreshes(); n != 1 {
		t.Errorf("refresh count = %d, want 1", n)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, StaticToken("tok"), WithRetries(3, time.Millisecond))

	if _, err := c.GetClusters(context.Background()); err != nil {
		t.Fatalf("GetClusters failed: %v", err)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("server calls = %d, want 3", n)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, StaticToken("tok"), WithRetries(3, time.Millisecond))

	_, err := c.GetWorkflowStatus(context.Background(), "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("err = %v, want 404 APIError", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server calls = %d, want 1", n)
	}
}

func TestLoadingShownForSlowRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte(`{"data":{"task_id":"wf-1"}}`))
	}))
	defer srv.Close()

	reporter := &fakeReporter{}
	c := NewClient(srv.URL, StaticToken("tok"),
		WithReporter(reporter),
		WithLoadingDelay(10*time.Millisecond),
	)

	opts := &RequestOptions{
		LoadingMessage: "Reserving node...",
		SuccessMessage: "Node reserved",
	}
	taskID, err := c.ReserveNode(context.Background(), 7, opts)
	if err != nil {
		t.Fatalf("ReserveNode failed: %v", err)
	}
	if taskID != "wf-1" {
		t.Errorf("taskID = %q, want %q", taskID, "wf-1")
	}

	reporter.mu.Lock()
	defer reporter.mu.Unlock()
	if len(reporter.loadings) != 1 {
		t.Fatalf("loading count = %d, want 1", len(reporter.loadings))
	}
	if len(reporter.removed) != 1 {
		t.Errorf("remove count = %d, want 1", len(reporter.removed))
	}
	if len(reporter.success) != 1 || reporter.success[0] != "Node reserved" {
		t.Errorf("success = %v, want [Node reserved]", reporter.success)
	}
}

// slowReporter stalls inside Loading, so the show can still be in flight
// when the request finishes.
type slowReporter struct {
	fakeReporter
	delay time.Duration
}

func (r *slowReporter) Loading(msg string) string {
	time.Sleep(r.delay)
	return r.fakeReporter.Loading(msg)
}

func (r *fakeReporter) counts() (loadings, removed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.loadings), len(r.removed)
}

func TestLoadingRemovedWhenShowRacesCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
		w.Write([]byte(`{"data":{"task_id":"wf-3"}}`))
	}))
	defer srv.Close()

	reporter := &slowReporter{delay: 100 * time.Millisecond}
	c := NewClient(srv.URL, StaticToken("tok"),
		WithReporter(reporter),
		WithLoadingDelay(10*time.Millisecond),
	)

	opts := &RequestOptions{LoadingMessage: "Reserving node..."}
	if _, err := c.ReserveNode(context.Background(), 7, opts); err != nil {
		t.Fatalf("ReserveNode failed: %v", err)
	}

	// The request finished while Loading was still running; the toast must
	// still be cleaned up once the show lands.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if loadings, removed := reporter.counts(); loadings == 1 && removed == 1 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	loadings, removed := reporter.counts()
	t.Fatalf("loadings = %d, removed = %d, want 1 and 1 (loading toast leaked)", loadings, removed)
}

func TestLoadingSkippedForFastRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"task_id":"wf-2"}}`))
	}))
	defer srv.Close()

	reporter := &fakeReporter{}
	c := NewClient(srv.URL, StaticToken("tok"),
		WithReporter(reporter),
		WithLoadingDelay(200*time.Millisecond),
	)

	opts := &RequestOptions{LoadingMessage: "Redeeming voucher..."}
	if _, err := c.RedeemVoucher(context.Background(), "WELCOME", opts); err != nil {
		t.Fatalf("RedeemVoucher failed: %v", err)
	}

	// Give a stray timer a moment to misfire before checking.
	time.Sleep(20 * time.Millisecond)

	reporter.mu.Lock()
	defer reporter.mu.Unlock()
	if len(reporter.loadings) != 0 {
		t.Errorf("loading count = %d, want 0", len(reporter.loadings))
	}
}

func TestErrorMessageReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	reporter := &fakeReporter{}
	c := NewClient(srv.URL, StaticToken("tok"), WithReporter(reporter))

	opts := &RequestOptions{ErrorMessage: "Failed to charge balance"}
	if _, err := c.ChargeBalance(context.Background(), 10, opts); err == nil {
		t.Fatal("ChargeBalance = nil error, want failure")
	}

	reporter.mu.Lock()
	defer reporter.mu.Unlock()
	if len(reporter.errs) != 1 || reporter.errs[0] != "Failed to charge balance" {
		t.Errorf("errors = %v, want [Failed to charge balance]", reporter.errs)
	}
}

func TestListNotifications(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/notifications" {
			t.Errorf("path = %q, want /v1/notifications", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "25" {
			t.Errorf("limit = %q, want 25", got)
		}
		w.Write([]byte(`{"data":{"notifications":[
			{"id":"n1","type":"billing","severity":"success","status":"unread"},
			{"id":"n2","type":"node","severity":"info","status":"read"}
		],"limit":25,"offset":0,"count":2}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, StaticToken("tok"))

	page, err := c.ListNotifications(context.Background(), 25, 0)
	if err != nil {
		t.Fatalf("ListNotifications failed: %v", err)
	}
	if page.Count != 2 {
		t.Errorf("Count = %d, want 2", page.Count)
	}
	if len(page.Notifications) != 2 {
		t.Fatalf("len(Notifications) = %d, want 2", len(page.Notifications))
	}
	if page.Notifications[0].Kind != model.KindBilling {
		t.Errorf("Kind = %q, want %q", page.Notifications[0].Kind, model.KindBilling)
	}
	if page.Notifications[1].Status != model.StatusRead {
		t.Errorf("Status = %q, want %q", page.Notifications[1].Status, model.StatusRead)
	}
}
