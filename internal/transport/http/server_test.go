package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"betpool-service/internal/app"
	"betpool-service/internal/domain"
	"betpool-service/internal/infra/memory"
)

// newTestServer wires the memory store through the full service stack and
// seeds a two-user bet so rescore and rebuild have something to chew on.
func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	store.AddBet(domain.Bet{ID: 1, SeasonID: 7, LeagueID: 3})
	store.AddQuestion(domain.Question{ID: 10, BetID: 1, GroupCode: "g10", Points: 10, Lineup: 1, Type: domain.ResultList}, true)
	store.AddSolution(domain.Solution{QuestionID: 10, ListItemID: 100})
	store.AddAnswer(domain.Answer{UserID: 1, QuestionID: 10, ListItemID: 100, Posted: true})
	store.AddAnswer(domain.Answer{UserID: 2, QuestionID: 10, ListItemID: 999, Posted: true})

	lookup := memory.NewStaticLookup(map[domain.LookupKind]map[int64]domain.LookupRecord{
		domain.LookupUser: {1: {ID: 1, Name: "alice"}, 2: {ID: 2, Name: "bob"}},
	})

	log := zap.NewNop()
	locks := app.NewBetLocker()
	scoring := app.NewScoringService(store, store, locks, log)
	tally := app.NewTallyService(store, store, store, locks, log)
	standings := app.NewStandingsService(store, lookup, log)

	srv := httptest.NewServer(NewServer(log, scoring, tally, standings, NewFeed()).Router())
	t.Cleanup(srv.Close)
	return srv, store
}

func postStatus(t *testing.T, url string) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestRescoreRebuildStandingsFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	if code := postStatus(t, srv.URL+"/bets/1/rescore"); code != http.StatusOK {
		t.Fatalf("rescore status = %d", code)
	}

	resp, err := http.Post(srv.URL+"/bets/1/rebuild", "application/json", nil)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	defer resp.Body.Close()
	var notice RebuildNotice
	if err := json.NewDecoder(resp.Body).Decode(&notice); err != nil {
		t.Fatalf("decode rebuild response: %v", err)
	}
	if notice.BetID != 1 || notice.Sequence != 1 || notice.Count != 2 {
		t.Fatalf("rebuild notice = %+v", notice)
	}

	list, err := http.Get(srv.URL + "/standings?season=7&league=3&enrich=user")
	if err != nil {
		t.Fatalf("list standings: %v", err)
	}
	defer list.Body.Close()
	if ct := list.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	var views []standingView
	if err := json.NewDecoder(list.Body).Decode(&views); err != nil {
		t.Fatalf("decode standings: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("got %d standings, want 2", len(views))
	}
	if views[0].UserID != 1 || views[0].Seed != 1 || views[0].Score != 10 {
		t.Fatalf("leader = %+v", views[0])
	}
	if views[0].User == nil || views[0].User.Name != "alice" {
		t.Fatalf("leader enrichment = %+v", views[0].User)
	}
	if views[1].UserID != 2 || views[1].Seed != 2 || views[1].Score != 0 {
		t.Fatalf("runner-up = %+v", views[1])
	}
}

func TestStandingsQueryValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	cases := []struct {
		path string
		code int
	}{
		{"/standings", http.StatusBadRequest},
		{"/standings?season=7", http.StatusBadRequest},
		{"/standings?season=7&league=3&sequence=abc", http.StatusBadRequest},
		{"/standings?season=7&league=3&sequence=42", http.StatusNotFound},
		{"/standings/progression?season=7&league=3", http.StatusBadRequest},
	}
	for _, c := range cases {
		resp, err := http.Get(srv.URL + c.path)
		if err != nil {
			t.Fatalf("GET %s: %v", c.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != c.code {
			t.Errorf("GET %s = %d, want %d", c.path, resp.StatusCode, c.code)
		}
	}
}

func TestBetActionRouting(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/bets/1/rescore")
	if err != nil {
		t.Fatalf("GET rescore: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET rescore status = %d", resp.StatusCode)
	}

	if code := postStatus(t, srv.URL+"/bets/abc/rescore"); code != http.StatusBadRequest {
		t.Fatalf("bad bet id status = %d", code)
	}
	if code := postStatus(t, srv.URL+"/bets/1/promote"); code != http.StatusNotFound {
		t.Fatalf("unknown action status = %d", code)
	}
	if code := postStatus(t, srv.URL+"/bets/1"); code != http.StatusBadRequest {
		t.Fatalf("missing action status = %d", code)
	}
}

func TestProgressionEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	if code := postStatus(t, srv.URL+"/bets/1/rescore"); code != http.StatusOK {
		t.Fatalf("rescore status = %d", code)
	}
	if code := postStatus(t, srv.URL+"/bets/1/rebuild"); code != http.StatusOK {
		t.Fatalf("rebuild status = %d", code)
	}

	resp, err := http.Get(srv.URL + "/standings/progression?season=7&league=3&user=1")
	if err != nil {
		t.Fatalf("progression: %v", err)
	}
	defer resp.Body.Close()
	var views []standingView
	if err := json.NewDecoder(resp.Body).Decode(&views); err != nil {
		t.Fatalf("decode progression: %v", err)
	}
	if len(views) != 1 || views[0].UserID != 1 || views[0].BetID != 1 {
		t.Fatalf("progression = %+v", views)
	}
}

func TestTrendEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	postStatus(t, srv.URL+"/bets/1/rescore")
	postStatus(t, srv.URL+"/bets/1/rebuild")

	resp, err := http.Get(srv.URL + "/standings/trend?season=7&league=3")
	if err != nil {
		t.Fatalf("trend: %v", err)
	}
	defer resp.Body.Close()
	var points []app.TrendPoint
	if err := json.NewDecoder(resp.Body).Decode(&points); err != nil {
		t.Fatalf("decode trend: %v", err)
	}
	if len(points) != 1 || points[0].BetID != 1 || points[0].Users != 2 || points[0].TopScore != 10 {
		t.Fatalf("trend = %+v", points)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}

func TestWebsocketReceivesRebuildNotice(t *testing.T) {
	srv, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	defer conn.Close()

	// The subscription registers just after the upgrade response; give the
	// handler a moment before publishing.
	time.Sleep(50 * time.Millisecond)

	postStatus(t, srv.URL+"/bets/1/rescore")
	if code := postStatus(t, srv.URL+"/bets/1/rebuild"); code != http.StatusOK {
		t.Fatalf("rebuild status = %d", code)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg outboundMessage[RebuildNotice]
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read ws message: %v", err)
	}
	if msg.Type != "rebuilt" || msg.Payload.BetID != 1 || msg.Payload.Sequence != 1 {
		t.Fatalf("ws message = %+v", msg)
	}
}
