//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/taskhive/apiserver/config"
	"github.com/taskhive/apiserver/internal/server"
	"github.com/taskhive/apiserver/types"
)

const (
	serverPort = 18080
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestTaskLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	email := fmt.Sprintf("user_%d@example.com", time.Now().UnixNano())

	token, err := registerUser(t, baseURL, email, "testpass123!")
	if err != nil {
		t.Fatalf("register user: %v", err)
	}

	project, err := createProject(t, baseURL, token, "E2E Project")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if project.ID == 0 {
		t.Fatalf("expected project ID to be set")
	}

	task, err := createTask(t, baseURL, token, map[string]any{
		"title":      "e2e task",
		"priority":   2,
		"project_id": project.ID,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Status != types.TaskStatusPending {
		t.Fatalf("unexpected initial status: %q", task.Status)
	}

	patched, err := patchTask(t, baseURL, token, task.ID, map[string]any{"completed": true})
	if err != nil {
		t.Fatalf("patch task: %v", err)
	}
	if !patched.Completed || patched.CompletedAt == nil {
		t.Fatalf("expected completed task with completed_at, got %+v", patched)
	}
	if patched.Status != types.TaskStatusCompleted {
		t.Fatalf("unexpected status after completion: %q", patched.Status)
	}

	if err := deleteTask(t, baseURL, token, task.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}

	if err := expectTaskStatus(t, baseURL, token, task.ID, http.StatusNotFound); err != nil {
		t.Fatalf("expected deleted task to be missing: %v", err)
	}
}

func TestOwnershipIsEnforced(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	suffix := time.Now().UnixNano()

	ownerToken, err := registerUser(t, baseURL, fmt.Sprintf("owner_%d@example.com", suffix), "testpass123!")
	if err != nil {
		t.Fatalf("register owner: %v", err)
	}
	otherToken, err := registerUser(t, baseURL, fmt.Sprintf("other_%d@example.com", suffix), "testpass123!")
	if err != nil {
		t.Fatalf("register other: %v", err)
	}

	task, err := createTask(t, baseURL, ownerToken, map[string]any{"title": "private"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := expectTaskStatus(t, baseURL, otherToken, task.ID, http.StatusForbidden); err != nil {
		t.Fatalf("expected foreign read to be refused: %v", err)
	}
	if err := expectTaskStatus(t, baseURL, ownerToken, task.ID, http.StatusOK); err != nil {
		t.Fatalf("expected owner read to succeed: %v", err)
	}
}

// envelope matches the uniform response wrapper.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Success bool            `json:"success"`
}

type authResponse struct {
	Token string `json:"token"`
}

func registerUser(t *testing.T, baseURL, email, password string) (string, error) {
	t.Helper()

	payload := map[string]string{
		"name":     "E2E User",
		"email":    email,
		"password": password,
	}

	var env envelope
	if err := doJSON(http.MethodPost, baseURL+"/api/auth/register", "", payload, http.StatusCreated, &env); err != nil {
		return "", err
	}

	var parsed authResponse
	if err := json.Unmarshal(env.Data, &parsed); err != nil {
		return "", err
	}
	if parsed.Token == "" {
		return "", fmt.Errorf("missing token in register response")
	}
	return parsed.Token, nil
}

func createProject(t *testing.T, baseURL, token, name string) (types.Project, error) {
	t.Helper()

	var env envelope
	err := doJSON(http.MethodPost, baseURL+"/api/projects/", token, map[string]string{"name": name}, http.StatusCreated, &env)
	if err != nil {
		return types.Project{}, err
	}

	var project types.Project
	if err := json.Unmarshal(env.Data, &project); err != nil {
		return types.Project{}, err
	}
	return project, nil
}

func createTask(t *testing.T, baseURL, token string, payload map[string]any) (types.Task, error) {
	t.Helper()

	var env envelope
	if err := doJSON(http.MethodPost, baseURL+"/api/tasks/", token, payload, http.StatusCreated, &env); err != nil {
		return types.Task{}, err
	}

	var task types.Task
	if err := json.Unmarshal(env.Data, &task); err != nil {
		return types.Task{}, err
	}
	return task, nil
}

func patchTask(t *testing.T, baseURL, token string, id int, payload map[string]any) (types.Task, error) {
	t.Helper()

	var env envelope
	url := fmt.Sprintf("%s/api/tasks/%d", baseURL, id)
	if err := doJSON(http.MethodPatch, url, token, payload, http.StatusOK, &env); err != nil {
		return types.Task{}, err
	}

	var task types.Task
	if err := json.Unmarshal(env.Data, &task); err != nil {
		return types.Task{}, err
	}
	return task, nil
}

func deleteTask(t *testing.T, baseURL, token string, id int) error {
	t.Helper()
	url := fmt.Sprintf("%s/api/tasks/%d", baseURL, id)
	return doJSON(http.MethodDelete, url, token, nil, http.StatusOK, nil)
}

func expectTaskStatus(t *testing.T, baseURL, token string, id int, want int) error {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/api/tasks/%d", baseURL, id), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("expected %d, got %d: %s", want, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func doJSON(method, url, token string, payload any, wantStatus int, out *envelope) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != wantStatus {
		return fmt.Errorf("%s %s status %d: %s", method, url, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	db, err := sql.Open("postgres", buildPostgresURL(cfg))
	if err != nil {
		return err
	}
	defer db.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	migrationsPath := filepath.Join(root, "internal", "db", "migrations")
	migrationsURL := "file://" + migrationsPath

	migrator, err := migrate.New(migrationsURL, buildPostgresURL(cfg))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func buildPostgresURL(cfg config.Config) string {
	sslmode := "disable"
	if cfg.Database.UseSSL {
		sslmode = "require"
	}
	host := fmt.Sprintf("%s:%d", cfg.Database.Host, cfg.Database.Port)
	return fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		host,
		cfg.Database.DBName,
		sslmode,
	)
}

func startServer() (*server.Server, error) {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "taskhive")
	_ = os.Setenv("DB_PASSWORD", "password")
	_ = os.Setenv("DB_NAME", "taskhive_db")
	_ = os.Setenv("DB_USE_SSL", "false")
	// Attachments and reminders stay disabled; the compose file only
	// brings up postgres.
	_ = os.Setenv("STORAGE_BACKEND", "")
	_ = os.Setenv("MQ_BACKEND", "")

	cfg := config.LoadConfig()
	srv, err := server.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
