package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixmarket/fixmarket/internal/config"
	"github.com/fixmarket/fixmarket/internal/logging"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Port:        "8080",
		Env:         "development",
		LogLevel:    "error",
		LogFormat:   "text",
		AdminSecret: "test-admin-secret",
	}

	srv, err := New(cfg, WithLogger(logging.New("error", "text")))
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// register creates an account and returns its API key.
func register(t *testing.T, srv *Server, accountID string) string {
	t.Helper()
	w := doJSON(t, srv, "POST", "/v1/accounts", map[string]string{"accountId": accountID}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	key, ok := body["apiKey"].(string)
	require.True(t, ok, "response should contain apiKey")
	return key
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, "GET", "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])

	w = doJSON(t, srv, "GET", "/health/live", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Not ready until Run() marks it
	w = doJSON(t, srv, "GET", "/health/ready", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestInfoAndCategories(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, "GET", "/api", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "FixMarket", decode(t, w)["name"])

	w = doJSON(t, srv, "GET", "/v1/categories", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Greater(t, body["count"].(float64), float64(0))
}

func TestCreateOrderRequiresAuth(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, "POST", "/v1/orders", map[string]string{
		"customerId": "acct_customer1",
		"categoryId": "plumbing",
		"title":      "Fix leaking sink",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOrderLifecycleThroughAPI(t *testing.T) {
	srv := newTestServer(t)

	customerKey := register(t, srv, "acct_customer1")
	providerKey := register(t, srv, "acct_provider1")

	// Customer posts an order
	w := doJSON(t, srv, "POST", "/v1/orders", map[string]string{
		"customerId": "acct_customer1",
		"categoryId": "plumbing",
		"title":      "Fix leaking sink",
		"city":       "Springfield",
		"budget":     "120.00",
	}, map[string]string{"Authorization": "Bearer " + customerKey})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode(t, w)["order"].(map[string]interface{})
	orderID := order["id"].(string)
	assert.Equal(t, "pending", order["status"])

	// Provider bids
	w = doJSON(t, srv, "POST", "/v1/orders/"+orderID+"/bids", map[string]string{
		"providerId": "acct_provider1",
		"amount":     "95.00",
	}, map[string]string{"Authorization": "Bearer " + providerKey})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	bid := decode(t, w)["bid"].(map[string]interface{})
	bidID := bid["id"].(string)

	// Customer accepts the bid
	w = doJSON(t, srv, "POST", "/v1/orders/"+orderID+"/accept", map[string]string{
		"customerId": "acct_customer1",
		"bidId":      bidID,
	}, map[string]string{"Authorization": "Bearer " + customerKey})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	order = decode(t, w)["order"].(map[string]interface{})
	assert.Equal(t, "accepted", order["status"])
	assert.Equal(t, "acct_provider1", order["assignedProviderId"])

	// Anyone can read the order
	w = doJSON(t, srv, "GET", "/v1/orders/"+orderID, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookManagementRequiresOwnership(t *testing.T) {
	srv := newTestServer(t)

	ownKey := register(t, srv, "acct_owner")
	otherKey := register(t, srv, "acct_other")

	// IP literal avoids DNS resolution in the SSRF check
	sub := map[string]interface{}{
		"url":    "https://93.184.216.34/hook",
		"events": []string{"order.created"},
	}

	// Other account cannot manage someone else's webhooks
	w := doJSON(t, srv, "POST", "/v1/accounts/acct_owner/webhooks", sub,
		map[string]string{"Authorization": "Bearer " + otherKey})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Owner can
	w = doJSON(t, srv, "POST", "/v1/accounts/acct_owner/webhooks", sub,
		map[string]string{"Authorization": "Bearer " + ownKey})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestAdminRoutesRequireSecret(t *testing.T) {
	srv := newTestServer(t)

	// No secret header
	w := doJSON(t, srv, "POST", "/v1/admin/providers/acct_p1/block",
		map[string]string{"reason": "fraud"}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Wrong secret
	w = doJSON(t, srv, "POST", "/v1/admin/providers/acct_p1/block",
		map[string]string{"reason": "fraud"},
		map[string]string{"X-Admin-Secret": "wrong"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Correct secret
	w = doJSON(t, srv, "POST", "/v1/admin/providers/acct_p1/block",
		map[string]string{"reason": "fraud"},
		map[string]string{"X-Admin-Secret": "test-admin-secret"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestInvalidAccountParamRejected(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, "GET", "/v1/providers/bad%20id/reputation", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_account_id", decode(t, w)["error"])
}

func TestRealtimeStats(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, "GET", "/v1/realtime/stats", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(0), body["connectedClients"])
}
