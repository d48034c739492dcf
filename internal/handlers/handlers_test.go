package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/taskhive/apiserver/internal/auth"
	"github.com/taskhive/apiserver/internal/handlers"
	"github.com/taskhive/apiserver/internal/services"
	"github.com/taskhive/apiserver/internal/store"
	"github.com/taskhive/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

var testSecret = []byte("handler-test-secret")

// fakeUserRepo is an in-memory services.UserRepository.
type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: map[int]types.User{}}
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrDuplicateEmail
		}
	}
	user.ID = r.nextID
	r.nextID++
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user
	return user, nil
}

// fakeTaskRepo is an in-memory services.TaskRepository.
type fakeTaskRepo struct {
	mu     sync.Mutex
	nextID int
	tasks  map[int]types.Task
	emails map[int]string
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{nextID: 1, tasks: map[int]types.Task{}, emails: map[int]string{}}
}

func (r *fakeTaskRepo) ListByUser(_ context.Context, userID int, filter types.TaskFilter) ([]types.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Task
	for _, task := range r.tasks {
		if task.UserID != userID {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.Priority != 0 && task.Priority != filter.Priority {
			continue
		}
		if filter.ProjectID != 0 && (task.ProjectID == nil || *task.ProjectID != filter.ProjectID) {
			continue
		}
		if filter.DueAfter != nil && (task.DueDate == nil || task.DueDate.Before(*filter.DueAfter)) {
			continue
		}
		if filter.DueBefore != nil && (task.DueDate == nil || !task.DueDate.Before(*filter.DueBefore)) {
			continue
		}
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTaskRepo) ListByProject(_ context.Context, projectID int) ([]types.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Task
	for _, task := range r.tasks {
		if task.ProjectID != nil && *task.ProjectID == projectID {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTaskRepo) Get(_ context.Context, id int) (types.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return types.Task{}, store.ErrNotFound
	}
	return task, nil
}

func (r *fakeTaskRepo) Create(_ context.Context, task types.Task) (types.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task.ID = r.nextID
	r.nextID++
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	r.tasks[task.ID] = task
	return task, nil
}

func (r *fakeTaskRepo) Update(_ context.Context, task types.Task) (types.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[task.ID]; !ok {
		return types.Task{}, store.ErrNotFound
	}
	task.UpdatedAt = time.Now()
	r.tasks[task.ID] = task
	return task, nil
}

func (r *fakeTaskRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}

func (r *fakeTaskRepo) StatsByUser(_ context.Context, userID int, now time.Time) (types.TaskStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stats types.TaskStats
	weekAhead := now.Add(7 * 24 * time.Hour)
	for _, task := range r.tasks {
		if task.UserID != userID {
			continue
		}
		stats.Total++
		switch task.Status {
		case types.TaskStatusCompleted:
			stats.Completed++
		case types.TaskStatusPending:
			stats.Pending++
		case types.TaskStatusInProgress:
			stats.InProgress++
		}
		if !task.Completed && task.DueDate != nil {
			if task.DueDate.Before(now) {
				stats.Overdue++
			} else if task.DueDate.Before(weekAhead) {
				stats.DueSoon++
			}
		}
	}
	return stats, nil
}

func (r *fakeTaskRepo) ListDueBetween(_ context.Context, from, to time.Time) ([]types.TaskReminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.TaskReminder
	for _, task := range r.tasks {
		if task.Completed || task.DueDate == nil {
			continue
		}
		if task.DueDate.Before(from) || !task.DueDate.Before(to) {
			continue
		}
		out = append(out, types.TaskReminder{
			TaskID:  task.ID,
			Title:   task.Title,
			DueDate: *task.DueDate,
			UserID:  task.UserID,
			Email:   r.emails[task.UserID],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out, nil
}

// fakeProjectRepo is an in-memory services.ProjectRepository.
type fakeProjectRepo struct {
	mu       sync.Mutex
	nextID   int
	projects map[int]types.Project
}

func newFakeProjectRepo() *fakeProjectRepo {
	return &fakeProjectRepo{nextID: 1, projects: map[int]types.Project{}}
}

func (r *fakeProjectRepo) ListByUser(_ context.Context, userID int) ([]types.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Project
	for _, project := range r.projects {
		if project.UserID == userID {
			out = append(out, project)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeProjectRepo) Get(_ context.Context, id int) (types.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	project, ok := r.projects[id]
	if !ok {
		return types.Project{}, store.ErrNotFound
	}
	return project, nil
}

func (r *fakeProjectRepo) Create(_ context.Context, project types.Project) (types.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	project.ID = r.nextID
	r.nextID++
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now
	r.projects[project.ID] = project
	return project, nil
}

func (r *fakeProjectRepo) Update(_ context.Context, project types.Project) (types.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[project.ID]; !ok {
		return types.Project{}, store.ErrNotFound
	}
	project.UpdatedAt = time.Now()
	r.projects[project.ID] = project
	return project, nil
}

func (r *fakeProjectRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.projects, id)
	return nil
}

// testEnv wires the full router over in-memory repositories.
type testEnv struct {
	router   *chi.Mux
	users    *fakeUserRepo
	tasks    *fakeTaskRepo
	projects *fakeProjectRepo
	issuer   *auth.Issuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := newFakeUserRepo()
	tasks := newFakeTaskRepo()
	projects := newFakeProjectRepo()

	userService := services.NewUserService(users)
	taskService := services.NewTaskService(tasks, projects)
	projectService := services.NewProjectService(projects, tasks)

	issuer := auth.NewIssuer(testSecret, auth.DefaultTokenTTL)
	verifier := auth.NewVerifier(testSecret)
	gate := handlers.NewGatekeeper(verifier, "/login")

	router := chi.NewRouter()
	router.Route("/api/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, issuer, gate, false)
	})
	router.Route("/api/tasks", func(r chi.Router) {
		handlers.TaskRouter(r, taskService, nil, gate)
	})
	router.Route("/api/projects", func(r chi.Router) {
		handlers.ProjectRouter(r, projectService, gate)
	})
	router.Route("/api/stats", func(r chi.Router) {
		handlers.StatsRouter(r, taskService, gate)
	})

	return &testEnv{
		router:   router,
		users:    users,
		tasks:    tasks,
		projects: projects,
		issuer:   issuer,
	}
}

// seedUser inserts a user directly and returns it with a valid token.
func (e *testEnv) seedUser(t *testing.T, name, email, password string) (types.User, string) {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user, err := e.users.Create(context.Background(), types.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hashed),
	})
	require.NoError(t, err)
	e.tasks.emails[user.ID] = email

	token, err := e.issuer.Issue(user.ID)
	require.NoError(t, err)
	return user, token
}

// seedTask inserts a pending task for userID, optionally mutated first.
func (e *testEnv) seedTask(t *testing.T, userID int, title string, mutate func(*types.Task)) types.Task {
	t.Helper()

	task := types.Task{
		Title:    title,
		Status:   types.TaskStatusPending,
		Priority: 1,
		UserID:   userID,
	}
	if mutate != nil {
		mutate(&task)
	}

	created, err := e.tasks.Create(context.Background(), task)
	require.NoError(t, err)
	return created
}

// seedProject inserts a project for userID.
func (e *testEnv) seedProject(t *testing.T, userID int, name string) types.Project {
	t.Helper()

	created, err := e.projects.Create(context.Background(), types.Project{
		Name:   name,
		UserID: userID,
	})
	require.NoError(t, err)
	return created
}

func itoa(id int) string {
	return strconv.Itoa(id)
}

// envelope mirrors both response shapes for assertions.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Success bool            `json:"success"`
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	e.router.ServeHTTP(recorder, req)

	var env envelope
	if recorder.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &env),
			"body: %s", recorder.Body.String())
	}
	return recorder, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var value T
	require.NoError(t, json.Unmarshal(env.Data, &value))
	return value
}

func tokenCookie(recorder *httptest.ResponseRecorder) *http.Cookie {
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == auth.CookieName {
			return cookie
		}
	}
	return nil
}
