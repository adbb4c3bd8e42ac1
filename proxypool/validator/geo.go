package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"liuproxy_checker/internal/shared/logger"
)

const (
	geoFields = "status,message,country,city,isp"

	notAvailable  = "N/A"
	lookupFailed  = "lookup_failed"
	lookupErrored = "error"
)

// GeoInfo 是出口 IP 的地理位置信息。任何字段都可能是降级值。
type GeoInfo struct {
	Country string
	City    string
	ISP     string
}

// GeoResolver resolves an egress IP. It never fails: errors are folded into
// the returned fields.
type GeoResolver interface {
	Resolve(ctx context.Context, ip string) GeoInfo
}

// geoAPIResponse defines the structure for the ip-api.com JSON response.
type geoAPIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Country string `json:"country"`
	City    string `json:"city"`
	ISP     string `json:"isp"`
}

// GeoClient queries an ip-api.com compatible endpoint directly (never through
// the proxy under test).
type GeoClient struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

var _ GeoResolver = (*GeoClient)(nil)

// NewGeoClient creates a client for baseURL, e.g. "http://ip-api.com/json".
func NewGeoClient(baseURL string, timeout time.Duration) *GeoClient {
	return &GeoClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Resolve queries the geo service for ip.
func (g *GeoClient) Resolve(ctx context.Context, ip string) GeoInfo {
	l := logger.WithComponent("ProxyPool/Geo")

	info, err := g.lookup(ctx, ip)
	if err != nil {
		l.Warn().Err(err).Str("ip", ip).Msg("Geo API request failed.")
		return GeoInfo{Country: lookupErrored, City: err.Error(), ISP: notAvailable}
	}
	return info
}

func (g *GeoClient) lookup(ctx context.Context, ip string) (GeoInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	apiURL := fmt.Sprintf("%s/%s?fields=%s", g.baseURL, url.PathEscape(ip), geoFields)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return GeoInfo{}, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return GeoInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return GeoInfo{}, fmt.Errorf("geo service returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var apiResp geoAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return GeoInfo{}, fmt.Errorf("failed to decode geo response: %w", err)
	}

	if apiResp.Status != "success" {
		l := logger.WithComponent("ProxyPool/Geo")
		l.Debug().Str("ip", ip).Str("status", apiResp.Status).Msg("Geo API returned non-success status.")
		return GeoInfo{Country: lookupFailed, City: orNA(apiResp.Message), ISP: notAvailable}, nil
	}

	return GeoInfo{
		Country: orNA(apiResp.Country),
		City:    orNA(apiResp.City),
		ISP:     orNA(apiResp.ISP),
	}, nil
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}
