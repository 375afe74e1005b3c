package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/okarlsson/waitgate/internal/auth"
	"github.com/okarlsson/waitgate/internal/database/testutil"
	"github.com/okarlsson/waitgate/internal/middleware"
	"github.com/okarlsson/waitgate/internal/models"
	"github.com/okarlsson/waitgate/internal/ratelimit"
	"github.com/okarlsson/waitgate/internal/waitlist"
	"github.com/okarlsson/waitgate/pkg/crypto"
)

type handlerEnv struct {
	db     *gorm.DB
	router *gin.Engine
	jwt    *iauth.JWTService
}

// newHandlerEnv wires a test database and an engine with the auth middleware
// mounted the way the production router does.
func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "handler-test-secret", Issuer: "waitgate"})
	require.NoError(t, err)

	return &handlerEnv{db: db, router: gin.New(), jwt: jwt}
}

func (e *handlerEnv) newAdmission(t *testing.T, opts ...ratelimit.Option) *waitlist.Admission {
	t.Helper()

	ledger, err := waitlist.NewLedger(e.db)
	require.NoError(t, err)
	calc, err := waitlist.NewCalculator(e.db)
	require.NoError(t, err)
	limiter, err := ratelimit.NewLimiter(ratelimit.NewDatabaseWindowStore(e.db), opts...)
	require.NoError(t, err)
	admission, err := waitlist.NewAdmission(e.db, ledger, calc, limiter)
	require.NoError(t, err)
	return admission
}

func (e *handlerEnv) authGroup() *gin.RouterGroup {
	group := e.router.Group("/api")
	group.Use(middleware.Auth(e.jwt))
	return group
}

func (e *handlerEnv) seedUser(t *testing.T) (*models.User, string) {
	t.Helper()

	user := models.User{Email: uuid.NewString() + "@example.com"}
	require.NoError(t, e.db.Create(&user).Error)

	token, err := e.jwt.GenerateToken(user.ID, user.Email)
	require.NoError(t, err)
	return &user, token
}

func (e *handlerEnv) seedProject(t *testing.T, userID string, mutate ...func(*models.Project)) *models.Project {
	t.Helper()

	key, err := crypto.GenerateAPIKey()
	require.NoError(t, err)

	project := models.Project{
		UserID:       userID,
		Name:         "Launch",
		Slug:         "launch-" + uuid.NewString()[:8],
		APIKey:       key,
		Mode:         models.ModeFIFO,
		ShowPosition: true,
	}
	for _, m := range mutate {
		m(&project)
	}

	showPosition := project.ShowPosition
	require.NoError(t, e.db.Create(&project).Error)
	if !showPosition {
		require.NoError(t, e.db.Model(&project).UpdateColumn("show_position", false).Error)
		project.ShowPosition = false
	}
	return &project
}

func (e *handlerEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Success, "body: %s", w.Body.String())

	var data T
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	return data
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var envelope struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.False(t, envelope.Success, "body: %s", w.Body.String())
	return envelope.Error.Code
}
