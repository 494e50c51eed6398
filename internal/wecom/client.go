// Package wecom is the upstream enterprise-approval platform client (spec
// §4.2): token caching, paginated approval listing, detail fetch, and
// cached user/department name resolution, plus the two batch-fetch modes
// the poller and status checker drive it with.
package wecom

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/RaphLorr/vacation-dashboard-gemini/internal/domain"
	"github.com/RaphLorr/vacation-dashboard-gemini/internal/ratelimit"
)

// defaultRates caps outbound calls to the upstream platform independent of
// the per-item 45009 backoff: 10/second and 1000/day, a conservative
// sliding window chosen to stay well clear of the platform's own
// documented per-corp ceilings.
func defaultRates() map[time.Duration]int {
	return map[time.Duration]int{
		time.Second:    10,
		24 * time.Hour: 1000,
	}
}

// limiterPollInterval is how often a throttled call re-checks the limiter.
const limiterPollInterval = 50 * time.Millisecond

// tokenRefreshSkew is how much lead time before expiry a cached token is
// proactively refreshed (spec §4.2: "refreshed once fewer than five
// minutes remain").
const tokenRefreshSkew = 5 * time.Minute

// listPageSize and listPagePause implement spec §4.2's pagination contract
// for listApprovals: 100 records per page, 200ms between pages.
const (
	listPageSize  = 100
	listPagePause = 200 * time.Millisecond
)

// Client talks to the upstream platform over plain HTTP/JSON. It owns its
// own token cache and user/department caches; callers never see a raw
// access token.
type Client struct {
	httpClient *http.Client
	baseURL    string
	corpID     string
	secret     string
	log        zerolog.Logger
	now        func() time.Time

	tokenMu     sync.Mutex
	cachedToken string
	tokenExpiry time.Time

	userMu    sync.Mutex
	userCache map[string]UserInfo

	deptMu    sync.Mutex
	deptCache map[string]string // deptID -> name; "" is a negative-cache hit

	limiter *ratelimit.Limiter
}

// New constructs a Client. baseURL has no trailing slash assumption; it is
// joined with "/cgi-bin/..." style paths via a plain string concat, matching
// the platform's flat endpoint layout.
func New(baseURL, corpID, secret string, httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		corpID:     corpID,
		secret:     secret,
		log:        log,
		now:        time.Now,
		userCache:  make(map[string]UserInfo),
		deptCache:  make(map[string]string),
		limiter:    ratelimit.New(defaultRates()),
	}
}

// InvalidateNameCaches drops only the negative entries in the user and
// department caches (spec §4.2: "process-lifetime caches (no TTL)";
// SPEC_FULL.md's department-cache-invalidation-hook supplement: "we do NOT
// add a TTL ... the cache is cleared of negative entries at the start of
// each tick's lookups"). A successfully-resolved name is never forgotten;
// only a prior miss (a userid/deptID that didn't resolve last time) is
// retried, since that's the only case where a stale cache entry can hide a
// since-created account or department.
func (c *Client) InvalidateNameCaches() {
	c.userMu.Lock()
	for userid, info := range c.userCache {
		if info.Name == "" {
			delete(c.userCache, userid)
		}
	}
	c.userMu.Unlock()

	c.deptMu.Lock()
	for deptID, name := range c.deptCache {
		if name == "" {
			delete(c.deptCache, deptID)
		}
	}
	c.deptMu.Unlock()
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.cachedToken != "" && c.now().Add(tokenRefreshSkew).Before(c.tokenExpiry) {
		return c.cachedToken, nil
	}

	q := url.Values{}
	q.Set("corpid", c.corpID)
	q.Set("corpsecret", c.secret)

	var resp tokenResponse
	if err := c.get(ctx, "/cgi-bin/gettoken", q, &resp); err != nil {
		return "", err
	}
	if resp.ErrCode != 0 {
		return "", domain.NewAuthError(nil, "gettoken failed: errcode=%d errmsg=%s", resp.ErrCode, resp.ErrMsg)
	}

	c.cachedToken = resp.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	return c.cachedToken, nil
}

// listApprovals returns every sp_no whose apply_time falls in
// [startUnix, endUnix], paginating 100-at-a-time with a 200ms pause between
// pages. Callers are responsible for keeping the window at or under 31 days
// (spec §4.2); this method does not itself enforce or split it.
func (c *Client) listApprovals(ctx context.Context, startUnix, endUnix int64) ([]string, error) {
	var all []string
	cursor := ""
	for {
		tok, err := c.token(ctx)
		if err != nil {
			return nil, err
		}
		body := map[string]any{
			"starttime": startUnix,
			"endtime":   endUnix,
			"cursor":    cursor,
			"size":      listPageSize,
		}
		var resp listApprovalResponse
		if err := c.post(ctx, "/cgi-bin/oa/getapprovalinfo", tok, body, &resp); err != nil {
			return nil, err
		}
		if resp.ErrCode != 0 {
			return nil, c.apiError("getapprovalinfo", resp.ErrCode, resp.ErrMsg)
		}
		all = append(all, resp.SpNoList...)
		if resp.HasMore == 0 || resp.NextCursor == "" {
			break
		}
		cursor = resp.NextCursor

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(listPagePause):
		}
	}
	return all, nil
}

// approvalDetail fetches the full detail object for a single approval
// number.
func (c *Client) approvalDetail(ctx context.Context, spNo string) (*ApprovalInfo, error) {
	tok, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	body := map[string]any{"sp_no": spNo}
	var resp approvalDetailResponse
	if err := c.post(ctx, "/cgi-bin/oa/getapprovaldetail", tok, body, &resp); err != nil {
		return nil, err
	}
	if resp.ErrCode != 0 {
		return nil, c.apiError("getapprovaldetail", resp.ErrCode, resp.ErrMsg)
	}
	return &resp.Info, nil
}

// UserName resolves a userid to a display name, caching both hits and
// misses (misses as "" so repeat lookups of a deleted account don't re-hit
// upstream every tick) and falling back to unknownName on any failure.
func (c *Client) UserName(ctx context.Context, userid string) string {
	info, err := c.User(ctx, userid)
	if err != nil || info.Name == "" {
		return unknownName
	}
	return info.Name
}

// User resolves full cached user info.
func (c *Client) User(ctx context.Context, userid string) (UserInfo, error) {
	c.userMu.Lock()
	if cached, ok := c.userCache[userid]; ok {
		c.userMu.Unlock()
		return cached, nil
	}
	c.userMu.Unlock()

	tok, err := c.token(ctx)
	if err != nil {
		return UserInfo{}, err
	}
	q := url.Values{}
	q.Set("userid", userid)
	var resp userResponse
	if err := c.get(ctx, "/cgi-bin/user/get", q, &resp, withToken(tok)); err != nil {
		return UserInfo{}, err
	}

	info := UserInfo{}
	if resp.ErrCode == 0 {
		info = UserInfo{Name: resp.Name, DepartmentIDs: resp.Dept, MainDeptID: resp.MainDept}
	} else {
		c.log.Warn().Int("errcode", resp.ErrCode).Str("userid", userid).Msg("user lookup failed, caching negative result")
	}

	c.userMu.Lock()
	c.userCache[userid] = info
	c.userMu.Unlock()
	return info, nil
}

// DepartmentName resolves a department id to its display name, with the
// same negative-caching behavior as UserName.
func (c *Client) DepartmentName(ctx context.Context, deptID string) string {
	c.deptMu.Lock()
	if cached, ok := c.deptCache[deptID]; ok {
		c.deptMu.Unlock()
		if cached == "" {
			return unknownName
		}
		return cached
	}
	c.deptMu.Unlock()

	tok, err := c.token(ctx)
	if err != nil {
		return unknownName
	}
	q := url.Values{}
	q.Set("id", deptID)
	var resp departmentResponse
	name := ""
	if err := c.get(ctx, "/cgi-bin/department/get", q, &resp, withToken(tok)); err == nil && resp.ErrCode == 0 {
		name = resp.Name
	} else {
		c.log.Warn().Str("department_id", deptID).Msg("department lookup failed, caching negative result")
	}

	c.deptMu.Lock()
	c.deptCache[deptID] = name
	c.deptMu.Unlock()

	if name == "" {
		return unknownName
	}
	return name
}

func (c *Client) apiError(op string, code int, msg string) error {
	if code == rateLimitErrCode {
		return domain.NewRateLimitError(nil, "%s: upstream rate limit (45009)", op)
	}
	return domain.NewAPIError(nil, "%s failed: errcode=%d errmsg=%s", op, code, msg)
}

type getOpt func(*http.Request)

func withToken(tok string) getOpt {
	return func(r *http.Request) {
		q := r.URL.Query()
		q.Set("access_token", tok)
		r.URL.RawQuery = q.Encode()
	}
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any, opts ...getOpt) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.NewAPIError(err, "build request")
	}
	for _, opt := range opts {
		opt(req)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path, token string, body map[string]any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return domain.NewTransformError(err, "encode request body")
	}
	u := c.baseURL + path + "?access_token=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(buf))
	if err != nil {
		return domain.NewAPIError(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// waitForLimiter blocks the caller (bounded by req's context) until the
// limiter admits the call. Allow itself never blocks, so the wait loop lives
// here rather than inside ratelimit.Limiter.
func (c *Client) waitForLimiter(req *http.Request) error {
	for !c.limiter.Allow() {
		select {
		case <-req.Context().Done():
			return domain.NewAPIError(req.Context().Err(), "rate limit wait cancelled")
		case <-time.After(limiterPollInterval):
		}
	}
	return nil
}

func (c *Client) do(req *http.Request, out any) error {
	if err := c.waitForLimiter(req); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewAPIError(err, "upstream request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewAPIError(err, "read upstream response")
	}
	if resp.StatusCode >= 500 {
		return domain.NewAPIError(nil, "upstream returned status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return domain.NewTransformError(err, "decode upstream response")
	}
	return nil
}
