package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/tonelift/api/internal/auth"
	"github.com/tonelift/api/internal/client"
	"github.com/tonelift/api/internal/engine"
	"github.com/tonelift/api/internal/events"
	"github.com/tonelift/api/internal/handler"
	"github.com/tonelift/api/internal/middleware"
	"github.com/tonelift/api/internal/service"
	"github.com/tonelift/api/internal/store"
	"github.com/tonelift/api/internal/websocket"
	"github.com/tonelift/api/internal/worker"
)

const testJWTSecret = "test-secret-for-e2e"

// testApp holds the components a test needs to reach behind the HTTP
// surface.
type testApp struct {
	app    *fiber.App
	store  *store.MemoryStore
	logger *events.Logger
}

// setupApp builds a Fiber app wired like main.go but fully in-process:
// memory job store, inline dispatch, stub engine, no object storage.
// No external service needs to be running.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	validate := validator.New()

	hub := websocket.NewHub()
	go hub.Run()

	jobStore := store.NewMemoryStore()
	eventLogger := events.NewLogger(100, nil)

	dspEngine := engine.NewStubEngine()
	fetcher := client.NewFetcher(5)

	scratchDir := t.TempDir()
	outputDir := t.TempDir()
	enhanceWorker := worker.NewEnhanceWorker(
		jobStore, dspEngine, fetcher, nil, eventLogger, hub,
		scratchDir, outputDir,
	)
	dispatcher := service.NewInlineDispatcher(enhanceWorker)

	enhanceService := service.NewEnhanceService(jobStore, dispatcher, eventLogger)
	uploadService := service.NewUploadService(nil, t.TempDir())

	enhanceHandler := handler.NewEnhanceHandler(enhanceService, validate)
	uploadHandler := handler.NewUploadHandler(uploadService, validate)
	eventsHandler := handler.NewEventsHandler(eventLogger)

	// Auth handler (for /auth/verify) — legacy HMAC only
	authHandler := handler.NewAuthHandler(nil, testJWTSecret)
	authMiddleware := middleware.NewLegacyAuthMiddleware(testJWTSecret)

	// Rate limiter against an unreachable Redis: failed counters let
	// every request through
	rateLimiter := middleware.NewRateLimiter(redis.NewClient(&redis.Options{
		Addr:        "localhost:1",
		DialTimeout: 50 * time.Millisecond,
	}))

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024,
	})

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": time.Now().Unix()})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"engine":  false,
				"redis":   false,
				"storage": false,
				"events":  false,
				"auth":    true,
			},
		})
	})
	app.Get("/auth/verify", authHandler.Verify)

	api := app.Group("/api", authMiddleware.Authenticate())

	// Very high limits so tests are never throttled
	enhance := api.Group("/enhance")
	enhance.Post("/start", rateLimiter.EnhanceLimit(10000), enhanceHandler.Start)
	enhance.Get("/status/:jobId", enhanceHandler.Status)
	enhance.Get("/output/:jobId", enhanceHandler.Output)
	enhance.Post("/feedback/:jobId", rateLimiter.FeedbackLimit(10000), enhanceHandler.Feedback)

	api.Get("/events/recent", eventsHandler.Recent)

	upload := api.Group("/upload", rateLimiter.UploadLimit(10000))
	upload.Post("/track", uploadHandler.Track)
	upload.Delete("/track/:trackId", uploadHandler.DeleteTrack)

	return &testApp{app: app, store: jobStore, logger: eventLogger}
}

// generateToken creates a legacy HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	claims := auth.LegacyClaims{
		UserID: "test-user-123",
		Email:  "test@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "tonelift-api",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// waitForTerminal polls the status endpoint until the job reaches a
// terminal state or the deadline passes. Inline dispatch runs on a
// goroutine, so completion is asynchronous even in tests.
func waitForTerminal(t *testing.T, app *fiber.App, jobID string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := doAuthRequest(t, app, http.MethodGet, "/api/enhance/status/"+jobID, "")
		if err != nil {
			t.Fatalf("status request failed: %v", err)
		}
		body := parseJSON(t, resp)
		if s, _ := body["status"].(string); s == "done" || s == "failed" {
			return body
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state in time", jobID)
	return nil
}
