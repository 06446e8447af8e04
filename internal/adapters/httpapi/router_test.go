package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/digital-stage/client-go/internal/adapters/webaudio"
	"github.com/digital-stage/client-go/internal/config"
	"github.com/digital-stage/client-go/internal/domain"
	"github.com/digital-stage/client-go/internal/store"
)

type staticState struct{ s store.State }

func (f staticState) State() store.State { return f.s }

type staticMixer struct{ snap webaudio.MixerSnapshot }

func (f staticMixer) Snapshot() webaudio.MixerSnapshot { return f.snap }

func testState() store.State {
	s := store.NewState()
	s = store.Reduce(s, store.Event{
		Type:    store.EventStageAdded,
		Payload: json.RawMessage(`{"_id":"stage-1","name":"Main"}`),
	})
	return s
}

func TestHealthz(t *testing.T) {
	cfg := &config.Config{Mode: "release"}
	r := SetupRouter(cfg, staticState{testState()}, staticMixer{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("GET /healthz = %d, want 200", w.Code)
	}
}

func TestStateEndpoint(t *testing.T) {
	cfg := &config.Config{Mode: "release"}
	r := SetupRouter(cfg, staticState{testState()}, staticMixer{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/state", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/state = %d, want 200", w.Code)
	}
	var view struct {
		Stages map[domain.ID]domain.Stage `json:"stages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode state view: %v", err)
	}
	if view.Stages["stage-1"].Name != "Main" {
		t.Fatalf("stages = %+v, want stage-1 named Main", view.Stages)
	}
}

func TestMixerEndpoint(t *testing.T) {
	cfg := &config.Config{Mode: "release"}
	snap := webaudio.MixerSnapshot{
		Nodes: []webaudio.NodeSnapshot{{ID: 1, Kind: "gain", Gain: 0.5}},
	}
	r := SetupRouter(cfg, staticState{testState()}, staticMixer{snap})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/mixer", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/mixer = %d, want 200", w.Code)
	}
	var got webaudio.MixerSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode mixer snapshot: %v", err)
	}
	if len(got.Nodes) != 1 || got.Nodes[0].Gain != 0.5 {
		t.Fatalf("mixer snapshot = %+v", got)
	}
}
