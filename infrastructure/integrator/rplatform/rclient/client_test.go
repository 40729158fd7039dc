package rclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	rdomain "github.com/vfg2006/adstats-sync/infrastructure/integrator/rplatform/domain"
	"github.com/vfg2006/adstats-sync/internal/config"
	"github.com/vfg2006/adstats-sync/internal/domain"
	"github.com/vfg2006/adstats-sync/internal/metrics"
)

func newTestClient(url string) *RClient {
	return &RClient{
		cfg: config.RPlatform{
			URL:         url,
			Timezone:    "UTC+8",
			Currency:    "TWD",
			MaxSpanDays: 7,
		},
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
		metrics:    metrics.NewNop(),
	}
}

func date(s string) time.Time {
	t, _ := time.Parse(time.DateOnly, s)
	return t
}

func TestRClient_GetReport(t *testing.T) {
	var query map[string][]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Write([]byte(`{
			"status": {"code": 0, "message": "ok"},
			"data": {"data": [
				{"day": "2024-01-01", "user_id": 9573, "payment_revenue": "12.5", "impression": 100, "click": "3", "behavior1": 2}
			]}
		}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	items, err := client.GetReport(context.Background(), config.RCredential{UserID: "7161", Token: "tok"}, []string{"9573"}, date("2024-01-01"), date("2024-01-01"))
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "9573", items[0].UserID.String())
	assert.Equal(t, "12.5", items[0].PaymentRevenue.String())
	assert.Equal(t, int64(100), items[0].Impression.Int64())
	assert.Equal(t, int64(3), items[0].Click.Int64())
	assert.Equal(t, int64(2), items[0].Behavior1.Int64())

	assert.Equal(t, []string{"2024-01-01"}, query["start_date"])
	assert.Equal(t, []string{"UTC+8"}, query["timezone"])
	assert.Equal(t, []string{"TWD"}, query["currency"])
	assert.Equal(t, []string{"day", "user_id"}, query["dimensions[]"])
	assert.Equal(t, []string{"7161"}, query["x-userid"])
	assert.Equal(t, []string{"tok"}, query["x-authorization"])
	assert.Equal(t, []string{"9573"}, query["user_id[]"])
}

func TestRClient_GetReport_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		checkFn func(t *testing.T, err error)
	}{
		{
			name:   "Código de status diferente de zero",
			status: http.StatusOK,
			body:   `{"status": {"code": 1003, "message": "quota"}}`,
			checkFn: func(t *testing.T, err error) {
				var apiErr *rdomain.APIError
				require.True(t, errors.As(err, &apiErr))
				assert.Equal(t, int64(1003), apiErr.Code)
				assert.Contains(t, err.Error(), "limite diário")
			},
		},
		{
			name:   "Falha da plataforma é transitória",
			status: http.StatusOK,
			body:   `{"status": {"code": "1000", "message": "fail"}}`,
			checkFn: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, domain.ErrTransientNetwork))
			},
		},
		{
			name:   "Erro 5xx é transitório",
			status: http.StatusBadGateway,
			body:   `bad gateway`,
			checkFn: func(t *testing.T, err error) {
				assert.True(t, domain.IsRetryable(err))
			},
		},
		{
			name:   "Credencial recusada",
			status: http.StatusUnauthorized,
			body:   ``,
			checkFn: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, domain.ErrAuth))
			},
		},
		{
			name:   "JSON inválido",
			status: http.StatusOK,
			body:   `{"status":`,
			checkFn: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, domain.ErrDataShape))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).GetReport(context.Background(), config.RCredential{UserID: "1", Token: "t"}, []string{"a"}, date("2024-01-01"), date("2024-01-02"))
			require.Error(t, err)
			tt.checkFn(t, err)
		})
	}
}

func TestRClient_GetReport_SpanTooLarge(t *testing.T) {
	client := newTestClient("http://127.0.0.1:0")
	_, err := client.GetReport(context.Background(), config.RCredential{}, []string{"a"}, date("2024-01-01"), date("2024-01-08"))
	assert.True(t, errors.Is(err, domain.ErrSpanTooLarge))
}
