package wecom

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaphLorr/vacation-dashboard-gemini/internal/ratelimit"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(srv.URL, "corp", "secret", srv.Client(), zerolog.Nop())
	return c, srv
}

func TestClient_TokenCachedUntilNearExpiry(t *testing.T) {
	calls := 0
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok", ExpiresIn: 7200})
	})

	tok1, err := c.token(context.Background())
	require.NoError(t, err)
	tok2, err := c.token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tok1, tok2)
	assert.Equal(t, 1, calls, "second call must hit the cache")
}

func TestClient_TokenRefreshesNearExpiry(t *testing.T) {
	calls := 0
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok", ExpiresIn: 7200})
	})
	fixed := time.Now()
	c.now = func() time.Time { return fixed }

	_, err := c.token(context.Background())
	require.NoError(t, err)

	c.now = func() time.Time { return fixed.Add(7200*time.Second - 4*time.Minute) }
	_, err = c.token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "within skew of expiry must refresh")
}

func TestClient_ListApprovalsPaginates(t *testing.T) {
	page := 0
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/cgi-bin/gettoken":
			_ = json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok", ExpiresIn: 7200})
		case r.URL.Path == "/cgi-bin/oa/getapprovalinfo":
			page++
			if page == 1 {
				_ = json.NewEncoder(w).Encode(listApprovalResponse{SpNoList: []string{"1", "2"}, HasMore: 1, NextCursor: "c1"})
			} else {
				_ = json.NewEncoder(w).Encode(listApprovalResponse{SpNoList: []string{"3"}, HasMore: 0})
			}
		}
	})

	spNos, err := c.listApprovals(context.Background(), 0, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, spNos)
	assert.Equal(t, 2, page)
}

func TestClient_UserLookupCachesNegativeResult(t *testing.T) {
	calls := 0
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cgi-bin/gettoken":
			_ = json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok", ExpiresIn: 7200})
		case "/cgi-bin/user/get":
			calls++
			_ = json.NewEncoder(w).Encode(userResponse{ErrCode: 60111, ErrMsg: "not found"})
		}
	})

	name1 := c.UserName(context.Background(), "ghost")
	name2 := c.UserName(context.Background(), "ghost")
	assert.Equal(t, unknownName, name1)
	assert.Equal(t, unknownName, name2)
	assert.Equal(t, 1, calls, "second lookup must hit the negative cache")
}

func TestClient_InvalidateNameCachesKeepsPositiveEntries(t *testing.T) {
	calls := 0
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cgi-bin/gettoken":
			_ = json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok", ExpiresIn: 7200})
		case "/cgi-bin/user/get":
			calls++
			_ = json.NewEncoder(w).Encode(userResponse{Name: "Alice"})
		}
	})

	assert.Equal(t, "Alice", c.UserName(context.Background(), "u1"))
	c.InvalidateNameCaches()
	assert.Equal(t, "Alice", c.UserName(context.Background(), "u1"))
	assert.Equal(t, 1, calls, "a previously-resolved positive entry must survive invalidation")
}

func TestClient_InvalidateNameCachesDropsNegativeEntries(t *testing.T) {
	calls := 0
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cgi-bin/gettoken":
			_ = json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok", ExpiresIn: 7200})
		case "/cgi-bin/user/get":
			calls++
			_ = json.NewEncoder(w).Encode(userResponse{ErrCode: 60111, ErrMsg: "not found"})
		}
	})

	assert.Equal(t, unknownName, c.UserName(context.Background(), "ghost"))
	c.InvalidateNameCaches()
	assert.Equal(t, unknownName, c.UserName(context.Background(), "ghost"))
	assert.Equal(t, 2, calls, "a negative entry must be refetched after invalidation")
}

func TestClient_ApiErrorMapsRateLimitCode(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cgi-bin/gettoken":
			_ = json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok", ExpiresIn: 7200})
		case "/cgi-bin/oa/getapprovaldetail":
			_ = json.NewEncoder(w).Encode(approvalDetailResponse{ErrCode: 45009, ErrMsg: "freq limit"})
		}
	})

	_, err := c.approvalDetail(context.Background(), "sp1")
	require.Error(t, err)
}

func TestClient_RateLimiterThrottlesOutboundCalls(t *testing.T) {
	var calls int
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok", ExpiresIn: 7200})
	})
	c.limiter = ratelimit.New(map[time.Duration]int{time.Minute: 1})

	_, err := c.token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	c.cachedToken = ""
	_, err = c.token(ctx)
	require.Error(t, err, "second call exceeds the single-per-minute budget and must wait until ctx cancellation")
	assert.Equal(t, 1, calls, "throttled call must never reach upstream")
}
