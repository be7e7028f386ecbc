package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeInputFile stages a fake audio file and returns its file:// URL,
// the form locally staged uploads arrive in.
func writeInputFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.wav")
	if err := os.WriteFile(path, []byte("RIFF fake audio payload"), 0o644); err != nil {
		t.Fatalf("failed to write input file: %v", err)
	}
	return "file://" + path
}

func startJob(t *testing.T, ta *testApp, body string) string {
	t.Helper()
	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/enhance/start", body)
	if err != nil {
		t.Fatalf("start request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)

	result := parseJSON(t, resp)
	if result["status"] != "queued" {
		t.Errorf("expected status 'queued', got %v", result["status"])
	}
	jobID, _ := result["jobId"].(string)
	if jobID == "" {
		t.Fatal("expected non-empty jobId")
	}
	return jobID
}

func parseJSONList(t *testing.T, resp *http.Response) []map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result []map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON array: %v\nbody: %s", err, body)
	}
	return result
}

func TestEnhanceStart_NoToken(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/enhance/start",
		`{"inputFileUrl":"https://example.com/a.wav","enhancementType":"mix"}`, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestEnhanceStart_ValidationErrors(t *testing.T) {
	ta := setupApp(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing input url", `{"enhancementType":"mix"}`},
		{"bad enhancement type", `{"inputFileUrl":"https://example.com/a.wav","enhancementType":"remaster"}`},
		{"speed out of range", `{"inputFileUrl":"https://example.com/a.wav","enhancementType":"mix","speedMultiplier":3.0}`},
		{"pitch out of range", `{"inputFileUrl":"https://example.com/a.wav","enhancementType":"mix","pitchSemitones":7}`},
		{"bad focus", `{"inputFileUrl":"https://example.com/a.wav","enhancementType":"mix","focus":"warmth"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/enhance/start", tc.body)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			assertStatus(t, resp, http.StatusBadRequest)

			body := parseJSON(t, resp)
			errObj, ok := body["error"].(map[string]interface{})
			if !ok {
				t.Fatalf("expected error object, got %v", body)
			}
			if errObj["code"] != "VALIDATION_ERROR" {
				t.Errorf("expected VALIDATION_ERROR, got %v", errObj["code"])
			}
		})
	}
}

func TestEnhance_MasterPipeline(t *testing.T) {
	ta := setupApp(t)
	inputURL := writeInputFile(t)

	jobID := startJob(t, ta, fmt.Sprintf(
		`{"inputFileUrl":%q,"enhancementType":"master","masterProfile":"apple_music"}`, inputURL))

	status := waitForTerminal(t, ta.app, jobID)
	if status["status"] != "done" {
		t.Fatalf("expected done, got %v (error: %v)", status["status"], status["error"])
	}
	if status["progress"] != float64(100) {
		t.Errorf("expected progress 100, got %v", status["progress"])
	}
	if status["analysis"] == nil {
		t.Error("expected analysis on completed job")
	}

	plan, ok := status["renderPlan"].(map[string]interface{})
	if !ok {
		t.Fatal("expected renderPlan on completed job")
	}
	actions, _ := plan["actions"].(map[string]interface{})
	if actions["mode"] != "master" || actions["masterProfile"] != "apple_music" {
		t.Errorf("unexpected plan actions: %v", actions)
	}

	ops, _ := plan["ops"].([]interface{})
	var loudnessSpec string
	for _, raw := range ops {
		op, _ := raw.(map[string]interface{})
		if op["stage"] == "loudness" {
			loudnessSpec, _ = op["spec"].(string)
		}
	}
	if loudnessSpec != "loudnorm=I=-16.0:TP=-1.0:LRA=11.0" {
		t.Errorf("loudness op spec = %q", loudnessSpec)
	}

	fileURL, _ := status["enhancedFileUrl"].(string)
	if fileURL != "/api/enhance/output/"+jobID {
		t.Errorf("enhancedFileUrl = %q", fileURL)
	}
	if status["outputSeconds"] == nil {
		t.Error("expected outputSeconds on completed job")
	}

	// Download the artifact
	resp, err := doAuthRequest(t, ta.app, http.MethodGet, fileURL, "")
	if err != nil {
		t.Fatalf("output request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	if body := readBody(t, resp); !strings.Contains(body, "RIFF") {
		t.Errorf("output artifact does not contain the rendered audio: %q", body)
	}

	// Completion is recorded as a classification event
	resp, err = doAuthRequest(t, ta.app, http.MethodGet, "/api/events/recent", "")
	if err != nil {
		t.Fatalf("events request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	evs := parseJSONList(t, resp)
	if len(evs) == 0 {
		t.Fatal("expected at least one event")
	}
	ev := evs[0]
	if ev["type"] != "render_completed" || ev["jobId"] != jobID {
		t.Errorf("unexpected newest event: %v", ev)
	}
	if ev["analysis"] == nil || ev["renderPlan"] == nil {
		t.Error("completed event should carry analysis and renderPlan")
	}
}

func TestEnhance_SpeedAndPitchPlan(t *testing.T) {
	ta := setupApp(t)
	inputURL := writeInputFile(t)

	jobID := startJob(t, ta, fmt.Sprintf(
		`{"inputFileUrl":%q,"enhancementType":"mix","speedMultiplier":1.5,"pitchSemitones":2,"focus":"punch"}`, inputURL))

	status := waitForTerminal(t, ta.app, jobID)
	if status["status"] != "done" {
		t.Fatalf("expected done, got %v (error: %v)", status["status"], status["error"])
	}

	plan, _ := status["renderPlan"].(map[string]interface{})
	ops, _ := plan["ops"].([]interface{})
	var specs []string
	for _, raw := range ops {
		op, _ := raw.(map[string]interface{})
		spec, _ := op["spec"].(string)
		specs = append(specs, spec)
	}
	joined := strings.Join(specs, ",")
	if !strings.Contains(joined, "atempo=1.5000") {
		t.Errorf("plan missing speed op: %v", specs)
	}
	if !strings.Contains(joined, "asetrate=") {
		t.Errorf("plan missing pitch op: %v", specs)
	}
	// mix jobs never get a loudness stage op
	if strings.Contains(joined, "loudnorm") {
		t.Errorf("mix plan contains a loudness op: %v", specs)
	}
}

func TestEnhance_FetchFailure(t *testing.T) {
	ta := setupApp(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	jobID := startJob(t, ta, fmt.Sprintf(
		`{"inputFileUrl":%q,"enhancementType":"mix"}`, srv.URL+"/a.wav"))

	status := waitForTerminal(t, ta.app, jobID)
	if status["status"] != "failed" {
		t.Fatalf("expected failed, got %v", status["status"])
	}
	if status["error"] == nil {
		t.Error("expected error message on failed job")
	}

	// The output endpoint reports the failure, not a 404
	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/enhance/output/"+jobID, "")
	if err != nil {
		t.Fatalf("output request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusConflict)
	body := parseJSON(t, resp)
	if errObj, _ := body["error"].(map[string]interface{}); errObj["code"] != "JOB_FAILED" {
		t.Errorf("expected JOB_FAILED, got %v", body)
	}

	// The failure event shows how far the job got: not past fetch
	resp, err = doAuthRequest(t, ta.app, http.MethodGet, "/api/events/recent", "")
	if err != nil {
		t.Fatalf("events request failed: %v", err)
	}
	evs := parseJSONList(t, resp)
	if len(evs) == 0 {
		t.Fatal("expected a failure event")
	}
	ev := evs[0]
	if ev["type"] != "render_failed" || ev["jobId"] != jobID {
		t.Errorf("unexpected newest event: %v", ev)
	}
	if ev["analysis"] != nil || ev["renderPlan"] != nil {
		t.Errorf("pre-analysis failure should carry null analysis and renderPlan: %v", ev)
	}
	if ev["request"] == nil {
		t.Error("failure event should carry the request")
	}
}

func TestEnhanceStatus_UnknownJob(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/enhance/status/no-such-job", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)

	resp, err = doAuthRequest(t, ta.app, http.MethodGet, "/api/enhance/output/no-such-job", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
}

func TestEnhanceFeedback(t *testing.T) {
	ta := setupApp(t)
	inputURL := writeInputFile(t)

	jobID := startJob(t, ta, fmt.Sprintf(
		`{"inputFileUrl":%q,"enhancementType":"mix"}`, inputURL))
	waitForTerminal(t, ta.app, jobID)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/enhance/feedback/"+jobID,
		`{"rating":"not_satisfied","reason":"too_quiet","notes":"chorus got buried"}`)
	if err != nil {
		t.Fatalf("feedback request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	if body := parseJSON(t, resp); body["status"] != "recorded" {
		t.Errorf("expected status 'recorded', got %v", body)
	}

	resp, err = doAuthRequest(t, ta.app, http.MethodGet, "/api/events/recent?limit=1", "")
	if err != nil {
		t.Fatalf("events request failed: %v", err)
	}
	evs := parseJSONList(t, resp)
	if len(evs) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(evs))
	}
	ev := evs[0]
	if ev["type"] != "feedback" || ev["jobId"] != jobID {
		t.Errorf("unexpected newest event: %v", ev)
	}
	fb, _ := ev["feedback"].(map[string]interface{})
	if fb["rating"] != "not_satisfied" || fb["reason"] != "too_quiet" {
		t.Errorf("feedback payload = %v", fb)
	}
	if ev["request"] == nil {
		t.Error("feedback on a known job should carry the job's request")
	}
}

func TestEnhanceFeedback_UnknownJobStillRecorded(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/enhance/feedback/ghost-job",
		`{"rating":"satisfied"}`)
	if err != nil {
		t.Fatalf("feedback request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	resp, err = doAuthRequest(t, ta.app, http.MethodGet, "/api/events/recent?limit=1", "")
	if err != nil {
		t.Fatalf("events request failed: %v", err)
	}
	evs := parseJSONList(t, resp)
	if len(evs) != 1 || evs[0]["type"] != "feedback" {
		t.Fatalf("expected a feedback event, got %v", evs)
	}
	if evs[0]["request"] != nil {
		t.Error("feedback on an unknown job should carry no request context")
	}
}

func TestEnhanceFeedback_InvalidRating(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/enhance/feedback/some-job",
		`{"rating":"meh"}`)
	if err != nil {
		t.Fatalf("feedback request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}
