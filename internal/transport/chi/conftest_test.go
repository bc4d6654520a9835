package chi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/circulab/pubrag/internal/domain"
	"github.com/circulab/pubrag/internal/tasks"
	healthuc "github.com/circulab/pubrag/internal/usecase/health"
	raguc "github.com/circulab/pubrag/internal/usecase/rag"
)

type mockRag struct {
	queryFn          func(ctx context.Context, text string, limit int) (raguc.QueryOutput, error)
	indexFromFileFn  func(ctx context.Context, path string) (int, error)
	indexFromAPIFn   func(ctx context.Context, limit int) (int, error)
	getDocumentFn    func(ctx context.Context, id string) (*domain.QueryResult, error)
	deleteDocumentFn func(ctx context.Context, id string) bool
	resetFn          func(ctx context.Context) bool
}

func (m *mockRag) Query(ctx context.Context, text string, limit int) (raguc.QueryOutput, error) {
	return m.queryFn(ctx, text, limit)
}

func (m *mockRag) IndexFromFile(ctx context.Context, path string) (int, error) {
	return m.indexFromFileFn(ctx, path)
}

func (m *mockRag) IndexFromAPI(ctx context.Context, limit int) (int, error) {
	return m.indexFromAPIFn(ctx, limit)
}

func (m *mockRag) GetDocument(ctx context.Context, id string) (*domain.QueryResult, error) {
	return m.getDocumentFn(ctx, id)
}

func (m *mockRag) DeleteDocument(ctx context.Context, id string) bool {
	return m.deleteDocumentFn(ctx, id)
}

func (m *mockRag) Reset(ctx context.Context) bool {
	return m.resetFn(ctx)
}

type mockHealth struct {
	checkFn func(ctx context.Context) healthuc.Report
}

func (m *mockHealth) Check(ctx context.Context) healthuc.Report {
	return m.checkFn(ctx)
}

type mockTasks struct {
	submitFn func(ctx context.Context, name string, fn tasks.Fn) tasks.Task
	getFn    func(id string) (tasks.Task, bool)
	listFn   func() []tasks.Task
}

func (m *mockTasks) Submit(ctx context.Context, name string, fn tasks.Fn) tasks.Task {
	return m.submitFn(ctx, name, fn)
}

func (m *mockTasks) Get(id string) (tasks.Task, bool) {
	return m.getFn(id)
}

func (m *mockTasks) List() []tasks.Task {
	if m.listFn != nil {
		return m.listFn()
	}
	return nil
}

// newTestHandler wires a Server with mocks onto a bare chi router.
func newTestHandler(rag *mockRag, health *mockHealth, tm *mockTasks) http.Handler {
	if health == nil {
		health = &mockHealth{checkFn: func(context.Context) healthuc.Report {
			return healthuc.Report{Status: healthuc.Healthy}
		}}
	}
	if tm == nil {
		tm = &mockTasks{}
	}

	srv := NewServer(rag, health, tm, context.Background(), zap.NewNop())
	r := chi.NewRouter()
	srv.Routes(r)
	return r
}
