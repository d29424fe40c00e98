package redemption

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"studentslife/pkg/middleware"

	"github.com/gin-gonic/gin"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func newTestRouter(f *fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(middleware.Identity(), middleware.Error())
	RegisterRoutes(r, NewHandler(f.svc, f.cfg))
	return r
}

func doJSON(r *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandlerRedeemOutcomes(t *testing.T) {
	f := newFixture(t, nil)
	ev := f.seedEvent(t, "partner-1", fixedNow.Add(24*time.Hour))
	f.seedCode(t, "ABCD12345678", ev.ID, "client-1")
	r := newTestRouter(f)
	partner := map[string]string{middleware.HeaderPartnerID: "partner-1"}

	w := doJSON(r, http.MethodPost, "/v1/partners/partner-1/redemptions", gin.H{"code": "abcd12345678"}, partner)
	require.Equal(t, http.StatusOK, w.Code)

	var ok RedeemResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ok))
	require.Equal(t, KindSuccess, ok.Kind)
	require.Equal(t, "Student Coffee Week", ok.EventTitle)
	require.NotNil(t, ok.DiscountPercentage)
	require.Equal(t, int32(20), *ok.DiscountPercentage)

	w = doJSON(r, http.MethodPost, "/v1/partners/partner-1/redemptions", gin.H{"code": "ABCD12345678"}, partner)
	require.Equal(t, http.StatusOK, w.Code)

	var again RedeemResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &again))
	require.Equal(t, KindAlreadyUsed, again.Kind)
	require.NotNil(t, again.UsedAt)
	require.Equal(t, KindAlreadyUsed.Message(), again.Message)
}

func TestHandlerRedeemRequiresOwningPartner(t *testing.T) {
	f := newFixture(t, nil)
	ev := f.seedEvent(t, "partner-1", fixedNow.Add(24*time.Hour))
	rc := f.seedCode(t, "ANON12345678", ev.ID, "client-1")
	r := newTestRouter(f)
	path := "/v1/partners/partner-1/redemptions"
	body := gin.H{"code": "ANON12345678"}

	w := doJSON(r, http.MethodPost, path, body, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodPost, path, body, map[string]string{middleware.HeaderClientID: "client-1"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodPost, path, body, map[string]string{middleware.HeaderPartnerID: "partner-2"})
	require.Equal(t, http.StatusForbidden, w.Code)

	require.False(t, f.reload(t, rc.ID).IsUsed)
}

func TestHandlerScanRequiresPartner(t *testing.T) {
	f := newFixture(t, nil)
	ev := f.seedEvent(t, "partner-1", fixedNow.Add(24*time.Hour))
	f.seedCode(t, "SCAN12345678", ev.ID, "client-1")
	r := newTestRouter(f)

	w := doJSON(r, http.MethodPost, "/v1/redemptions/scan", gin.H{"code": "SCAN12345678"}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodPost, "/v1/redemptions/scan", gin.H{"code": "SCAN12345678"},
		map[string]string{middleware.HeaderPartnerID: "partner-2"})
	require.Equal(t, http.StatusOK, w.Code)

	var res RedeemResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Equal(t, KindCodeNotOwned, res.Kind)
}

func TestHandlerRedeemCountsByChannel(t *testing.T) {
	f := newFixture(t, nil)
	ev := f.seedEvent(t, "partner-1", fixedNow.Add(24*time.Hour))
	f.seedCode(t, "CHAN12345678", ev.ID, "client-1")
	r := newTestRouter(f)

	scanned := redeemOutcomes.WithLabelValues(string(KindSuccess), middleware.ChannelScanner)
	before := promtestutil.ToFloat64(scanned)

	w := doJSON(r, http.MethodPost, "/v1/redemptions/scan", gin.H{"code": "CHAN12345678"}, map[string]string{
		middleware.HeaderPartnerID: "partner-1",
		middleware.HeaderAPIKey:    "scanner_front_desk",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, before+1, promtestutil.ToFloat64(scanned))
}

func TestHandlerIssueAndGetCode(t *testing.T) {
	f := newFixture(t, nil)
	ev := f.seedEvent(t, "partner-1", fixedNow.Add(24*time.Hour))
	r := newTestRouter(f)

	w := doJSON(r, http.MethodPost, "/v1/codes", gin.H{"event_id": ev.ID}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	client := map[string]string{middleware.HeaderClientID: "client-1"}
	w = doJSON(r, http.MethodPost, "/v1/codes", gin.H{"event_id": ev.ID}, client)
	require.Equal(t, http.StatusCreated, w.Code)

	var issued RedemptionCode
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issued))
	require.Equal(t, "client-1", issued.ClientID)

	w = doJSON(r, http.MethodGet, "/v1/codes/"+issued.Code, nil, client)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/v1/codes/"+issued.Code, nil, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodGet, "/v1/codes/"+issued.Code, nil, map[string]string{middleware.HeaderPartnerID: "partner-1"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodGet, "/v1/codes/"+issued.Code, nil, map[string]string{middleware.HeaderClientID: "client-2"})
	require.Equal(t, http.StatusNotFound, w.Code)
}
