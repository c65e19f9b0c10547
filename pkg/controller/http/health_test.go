package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	controller "github.com/camaraproject/release-bot/pkg/controller/http"
	"github.com/camaraproject/release-bot/pkg/domain/model"
	"github.com/camaraproject/release-bot/pkg/domain/types"
	"github.com/m-mizutani/gt"
)

func TestHealthEndpoint(t *testing.T) {
	ctx := context.Background()
	server, err := controller.NewServer(ctx, &recordingUseCase{})
	gt.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.Handler.ServeHTTP(w, req)

	gt.Value(t, w.Code).Equal(http.StatusOK)

	var status model.HealthStatus
	gt.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	gt.Value(t, status.Status).Equal("healthy")
	gt.Value(t, status.Service).Equal(types.AppName)
}
