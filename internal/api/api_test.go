package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"astba/training-app/internal/config"
	"astba/training-app/internal/domain"
	"astba/training-app/internal/llm"
	"astba/training-app/internal/logger"
	"astba/training-app/internal/plan"
	"astba/training-app/internal/repository/memory"
	"astba/training-app/internal/service"
	"astba/training-app/internal/storage"
)

const testSecret = "test-secret"

type failingGateway struct{ err error }

func (g failingGateway) RequestPlanJSON(context.Context, llm.Request) (string, error) {
	return "", g.err
}

type testServer struct {
	router *gin.Engine
	store  *memory.Store
	audit  service.AuditService
}

func newTestServer(t *testing.T, gateway llm.Gateway) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()
	store := memory.NewStore()
	prompts, err := plan.LoadPrompts()
	require.NoError(t, err)

	audit := service.NewAuditService(store.AuditLogs(), log)
	structure := service.NewStructureService(store.Trainings(), store.Levels(), store.Sessions(), store.Attendance())
	trainings := service.NewTrainingService(store.Trainings(), store.Levels(), store.Sessions(), structure, audit, store.TxManager())
	aiPlans := service.NewAIPlanService(service.AIPlanServiceDeps{
		Trainings: store.Trainings(),
		Levels:    store.Levels(),
		Sessions:  store.Sessions(),
		Tx:        store.TxManager(),
		Structure: structure,
		Audit:     audit,
		Gateway:   gateway,
		Limiter:   service.NewRateLimiter(5, time.Minute),
		Schema:    plan.MustLoadSchema(),
		Prompts:   prompts,
		Storage:   storage.NewMemoryStorage(),
		Logger:    log,
	})

	router := gin.New()
	router.Use(RequestIDMiddleware())
	SetupRoutes(router, testSecret, log, trainings, aiPlans, audit)
	return &testServer{router: router, store: store, audit: audit}
}

func stubGateway() llm.Gateway {
	return llm.NewClient(config.LLMConfig{StubEnabled: true}, logger.NewNop())
}

func token(t *testing.T, uid string, role domain.Role) string {
	t.Helper()
	claims := jwtClaims{
		UserID: uid,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createTraining(t *testing.T, bearer string, mode domain.CreationMode) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/trainings", bearer, gin.H{"name": "Web bootcamp", "creationMode": mode})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var training domain.Training
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &training))
	return training.ID.Hex()
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	code, _ := body["code"].(string)
	return code
}

func TestPing(t *testing.T) {
	s := newTestServer(t, stubGateway())
	rec := s.do(t, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, stubGateway())
	rec := s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth(t *testing.T) {
	s := newTestServer(t, stubGateway())

	rec := s.do(t, http.MethodPost, "/api/v1/trainings", "", gin.H{"name": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, codeUnauthorized, errorCode(t, rec))

	rec = s.do(t, http.MethodPost, "/api/v1/trainings", "garbage", gin.H{"name": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/trainings", token(t, "u1", domain.RoleInstructor), gin.H{"name": "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, codeForbidden, errorCode(t, rec))
}

func TestGeneratePlan_StubMode(t *testing.T) {
	s := newTestServer(t, stubGateway())
	bearer := token(t, "coord-1", domain.RoleCoordinator)
	id := s.createTraining(t, bearer, domain.CreationModeAuto)

	rec := s.do(t, http.MethodPost, "/api/v1/trainings/"+id+"/ai-plan", bearer, gin.H{
		"promptText": "web development bootcamp",
		"language":   "en",
		"constraints": gin.H{
			"defaultDurationMin": 90,
			"preferredDays":      []string{"MON", "WED"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp GeneratePlanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, service.OutcomeSuccess, resp.Outcome)
	require.NotNil(t, resp.Plan)
	assert.Len(t, resp.Plan.Levels, 4)
	assert.Equal(t, 24, resp.Plan.SessionCount())
	assert.Equal(t, 90, resp.Plan.Levels[0].Sessions[0].DurationMin)
}

func TestGeneratePlan_ErrorMapping(t *testing.T) {
	s := newTestServer(t, stubGateway())
	bearer := token(t, "coord-1", domain.RoleCoordinator)
	auto := s.createTraining(t, bearer, domain.CreationModeAuto)
	manual := s.createTraining(t, bearer, domain.CreationModeManual)

	tests := []struct {
		name   string
		path   string
		body   gin.H
		status int
		code   string
	}{
		{"blank prompt", "/api/v1/trainings/" + auto + "/ai-plan", gin.H{"promptText": " "}, http.StatusBadRequest, codePromptRequired},
		{"bad language", "/api/v1/trainings/" + auto + "/ai-plan", gin.H{"promptText": "web", "language": "xx"}, http.StatusBadRequest, codeLanguageInvalid},
		{"uppercase language", "/api/v1/trainings/" + auto + "/ai-plan", gin.H{"promptText": "web", "language": "EN"}, http.StatusBadRequest, codeLanguageInvalid},
		{"missing language", "/api/v1/trainings/" + auto + "/ai-plan", gin.H{"promptText": "web"}, http.StatusBadRequest, codeLanguageInvalid},
		{"manual training", "/api/v1/trainings/" + manual + "/ai-plan", gin.H{"promptText": "web"}, http.StatusConflict, codeCreationModeManual},
		{"unknown training", "/api/v1/trainings/65f000000000000000000000/ai-plan", gin.H{"promptText": "web"}, http.StatusNotFound, codeTrainingNotFound},
		{"malformed id", "/api/v1/trainings/nope/ai-plan", gin.H{"promptText": "web"}, http.StatusBadRequest, codeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, tt.path, bearer, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestGeneratePlan_RateLimitedPerUser(t *testing.T) {
	s := newTestServer(t, stubGateway())
	bearer := token(t, "coord-1", domain.RoleCoordinator)
	id := s.createTraining(t, bearer, domain.CreationModeAuto)
	path := "/api/v1/trainings/" + id + "/ai-plan"

	for i := 0; i < 5; i++ {
		rec := s.do(t, http.MethodPost, path, bearer, gin.H{"promptText": "web", "language": "en"})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := s.do(t, http.MethodPost, path, bearer, gin.H{"promptText": "web", "language": "en"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, codeRateLimit, errorCode(t, rec))

	rec = s.do(t, http.MethodPost, path, token(t, "admin-1", domain.RoleAdmin), gin.H{"promptText": "web", "language": "en"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGeneratePlan_GatewayFailures(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{llm.ErrTimeout, http.StatusGatewayTimeout, codeTimeout},
		{llm.ErrProviderError, http.StatusBadGateway, codeProviderError},
		{llm.ErrProviderNotConfigured, http.StatusBadRequest, codeProviderNotConfigured},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			s := newTestServer(t, failingGateway{err: tt.err})
			bearer := token(t, "coord-1", domain.RoleCoordinator)
			id := s.createTraining(t, bearer, domain.CreationModeAuto)

			rec := s.do(t, http.MethodPost, "/api/v1/trainings/"+id+"/ai-plan", bearer, gin.H{"promptText": "web", "language": "en"})
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestApplyPlan(t *testing.T) {
	s := newTestServer(t, stubGateway())
	bearer := token(t, "coord-1", domain.RoleCoordinator)
	id := s.createTraining(t, bearer, domain.CreationModeAuto)

	doc := plan.BuildStub(plan.LanguageEN, "web development bootcamp", nil)
	doc.Training.Title = "Full-stack Web"
	rec := s.do(t, http.MethodPost, "/api/v1/trainings/"+id+"/apply-ai-plan", bearer, gin.H{"approvedPlan": doc})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var detail service.TrainingDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "Full-stack Web", detail.Training.Name)
	assert.Len(t, detail.Levels, 4)
	assert.Len(t, detail.Sessions, 24)

	rec = s.do(t, http.MethodGet, "/api/v1/trainings/"+id+"/ai-plan/snapshot", bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var snap SnapshotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Contains(t, snap.URL, "plans/"+id+"/")

	rec = s.do(t, http.MethodGet, "/api/v1/trainings/"+id, token(t, "inst-1", domain.RoleInstructor), nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestApplyPlan_InvalidPlan(t *testing.T) {
	s := newTestServer(t, stubGateway())
	bearer := token(t, "coord-1", domain.RoleCoordinator)
	id := s.createTraining(t, bearer, domain.CreationModeAuto)
	path := "/api/v1/trainings/" + id + "/apply-ai-plan"

	rec := s.do(t, http.MethodPost, path, bearer, gin.H{"approvedPlan": gin.H{"version": "v1"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, codePlanInvalid, errorCode(t, rec))
	var body struct {
		Violations []string `json:"violations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Violations)

	rec = s.do(t, http.MethodPost, path, bearer, gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, codePlanInvalid, errorCode(t, rec))
}

func TestApplyPlan_StructureLocked(t *testing.T) {
	s := newTestServer(t, stubGateway())
	bearer := token(t, "coord-1", domain.RoleCoordinator)
	id := s.createTraining(t, bearer, domain.CreationModeAuto)

	training := s.trainingByHex(t, id)
	_, err := s.store.Attendance().Create(context.Background(), &domain.Attendance{TrainingID: training.ID, Present: true})
	require.NoError(t, err)

	doc := plan.BuildStub(plan.LanguageFR, "cloud", nil)
	rec := s.do(t, http.MethodPost, "/api/v1/trainings/"+id+"/apply-ai-plan", bearer, gin.H{"approvedPlan": doc})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, codeStructureLocked, errorCode(t, rec))
}

func TestSnapshot_Unavailable(t *testing.T) {
	s := newTestServer(t, stubGateway())
	bearer := token(t, "coord-1", domain.RoleCoordinator)
	id := s.createTraining(t, bearer, domain.CreationModeAuto)

	rec := s.do(t, http.MethodGet, "/api/v1/trainings/"+id+"/ai-plan/snapshot", bearer, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, codeSnapshotUnavailable, errorCode(t, rec))
}

func TestGenerateStructureAndAuditLogs(t *testing.T) {
	s := newTestServer(t, stubGateway())
	admin := token(t, "admin-1", domain.RoleAdmin)
	id := s.createTraining(t, admin, domain.CreationModeAuto)

	rec := s.do(t, http.MethodPost, "/api/v1/trainings/"+id+"/structure", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	s.audit.Flush()
	rec = s.do(t, http.MethodGet, "/api/v1/trainings/"+id+"/audit-logs", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []domain.AuditLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, domain.AuditStructureGenerated, entries[0].Action)
	assert.Equal(t, "admin-1", entries[0].Actor)

	rec = s.do(t, http.MethodGet, "/api/v1/trainings/"+id+"/audit-logs", token(t, "c", domain.RoleCoordinator), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/trainings/"+id+"/audit-logs?limit=-1", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func (s *testServer) trainingByHex(t *testing.T, hex string) *domain.Training {
	t.Helper()
	rec := s.do(t, http.MethodGet, "/api/v1/trainings/"+hex, token(t, "admin-1", domain.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail service.TrainingDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	return detail.Training
}
