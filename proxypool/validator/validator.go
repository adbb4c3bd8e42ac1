package validator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"liuproxy_checker/internal/shared/logger"
	"liuproxy_checker/proxypool/model"
)

const (
	defaultEchoURL = "http://httpbin.org/ip"
	maxEchoBody    = 64 << 10
	maxDetailBytes = 256
)

// echoResponse is the httpbin.org/ip body: {"origin": "1.2.3.4, 5.6.7.8"}.
type echoResponse struct {
	Origin string `json:"origin"`
}

// Validator 对单个代理执行连通性测试，成功后再查询出口 IP 的地理信息。
type Validator struct {
	echoURL    string
	timeout    time.Duration
	geo        GeoResolver
	transports TransportFactory
}

// Option configures a Validator.
type Option func(*Validator)

// WithTransportFactory replaces the per-call transport builder.
func WithTransportFactory(f TransportFactory) Option {
	return func(v *Validator) {
		v.transports = f
	}
}

// WithEchoURL sets the "what is my IP" endpoint.
func WithEchoURL(u string) Option {
	return func(v *Validator) {
		if u != "" {
			v.echoURL = u
		}
	}
}

func NewValidator(timeout time.Duration, geo GeoResolver, opts ...Option) *Validator {
	v := &Validator{
		echoURL:    defaultEchoURL,
		timeout:    timeout,
		geo:        geo,
		transports: ProxyTransports{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Test validates one proxy. It always returns a terminal result; every
// transport, protocol and parse error is folded into it.
func (v *Validator) Test(ctx context.Context, d model.ProxyDescriptor) model.ValidationResult {
	l := logger.WithComponent("ProxyPool/Validator")

	result := model.ValidationResult{
		ProxyID:      d.ID,
		Connectivity: model.ConnectivityFailure,
		Latency:      model.NotRun(),
	}

	egressIP, latency, err := v.checkEcho(ctx, d)
	if err != nil {
		result.ErrorKind, result.Latency = classify(err)
		result.ErrorMessage = err.Error()
		result.CheckedAt = time.Now()
		l.Debug().Str("proxy_id", d.ID).Str("proxy", d.URL()).Str("error_kind", string(result.ErrorKind)).Err(err).Msg("Proxy check failed.")
		return result
	}

	result.Connectivity = model.ConnectivitySuccess
	result.Latency = model.Measured(latency)
	result.EgressIP = egressIP

	if v.geo != nil {
		// 地理信息查询失败不会影响连通性结果。
		geo := v.geo.Resolve(ctx, egressIP)
		result.Country, result.City, result.ISP = geo.Country, geo.City, geo.ISP
	}
	result.CheckedAt = time.Now()

	l.Debug().
		Str("proxy_id", d.ID).
		Str("proxy", d.URL()).
		Str("egress_ip", egressIP).
		Str("latency_ms", result.Latency.String()).
		Msg("Proxy check passed.")
	return result
}

// protocolError marks a response that arrived but was unusable.
type protocolError struct {
	msg string
}

func (e *protocolError) Error() string { return e.msg }

// checkEcho issues one GET to the echo service through the proxy.
func (v *Validator) checkEcho(ctx context.Context, d model.ProxyDescriptor) (string, time.Duration, error) {
	rt, err := v.transports.NewTransport(d, v.timeout)
	if err != nil {
		return "", 0, err
	}
	if closer, ok := rt.(interface{ CloseIdleConnections() }); ok {
		defer closer.CloseIdleConnections()
	}

	client := &http.Client{
		Transport: rt,
		Timeout:   v.timeout,
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.echoURL, nil)
	if err != nil {
		return "", 0, err
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEchoBody))
	if err != nil {
		return "", 0, err
	}
	elapsed := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		return "", 0, &protocolError{msg: fmt.Sprintf("echo service returned %s: %s", resp.Status, detail(body))}
	}

	var echo echoResponse
	if err := json.Unmarshal(body, &echo); err != nil {
		return "", 0, &protocolError{msg: fmt.Sprintf("malformed echo response: %v", err)}
	}
	egressIP := strings.TrimSpace(strings.Split(echo.Origin, ",")[0])
	if egressIP == "" {
		return "", 0, &protocolError{msg: "malformed echo response: missing origin"}
	}

	return egressIP, elapsed, nil
}

// classify maps an error to its kind and the matching latency state.
func classify(err error) (model.ErrorKind, model.Latency) {
	var pe *protocolError
	if errors.As(err, &pe) {
		return model.ErrorProtocol, model.NotRun()
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return model.ErrorTimeout, model.TimedOut()
	}
	return model.ErrorConnection, model.NotRun()
}

func detail(body []byte) string {
	s := strings.TrimSpace(string(body))
	if s == "" {
		return "empty body"
	}
	if len(s) > maxDetailBytes {
		s = s[:maxDetailBytes] + "..."
	}
	return s
}
