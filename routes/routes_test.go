package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"nasdaq_screener/controllers"
	"nasdaq_screener/services/cache"
	"nasdaq_screener/services/marketdata"
	"nasdaq_screener/services/movingaverage"
	"nasdaq_screener/testutil"
)

func newRouter(t *testing.T, origins []string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)

	db := testutil.NewDB(t)
	store := cache.NewMemoryStore()
	builder := movingaverage.NewBuilder(marketdata.NewRepository(db), movingaverage.DefaultOptions(), log)
	etl := controllers.NewETLController(context.Background(), builder, log)
	t.Cleanup(etl.Wait)

	router := gin.New()
	router.Use(CORS(origins))
	SetupRoutes(router, Controllers{
		Screener: controllers.NewScreenerController(db, store, 0, log),
		Cache:    controllers.NewCacheController(store, log),
		ETL:      etl,
	})
	return router
}

func TestRoutesRegistered(t *testing.T) {
	router := newRouter(t, []string{"*"})

	want := map[string]bool{
		"GET /api/screener/golden-cross":      false,
		"GET /api/screener/turned-profitable": false,
		"GET /api/screener/rule-of-40":        false,
		"POST /api/cache/revalidate":          false,
		"POST /api/etl/daily-ma":              false,
	}
	for _, r := range router.Routes() {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for route, found := range want {
		if !found {
			t.Errorf("route %s not registered", route)
		}
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		origin  string
		want    string
	}{
		{"wildcard", []string{"*"}, "https://example.com", "*"},
		{"listed origin", []string{"https://app.example.com"}, "https://app.example.com", "https://app.example.com"},
		{"unlisted origin", []string{"https://app.example.com"}, "https://evil.example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(t, tt.origins)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/screener/golden-cross", nil)
			req.Header.Set("Origin", tt.origin)
			router.ServeHTTP(w, req)

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.want)
			}
		})
	}
}
