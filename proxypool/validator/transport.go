package validator

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
	"h12.io/socks"

	"liuproxy_checker/proxypool/model"
)

// TransportFactory builds the RoundTripper used to test one proxy.
// Every call must return a fresh value; nothing may be shared between tests.
type TransportFactory interface {
	NewTransport(d model.ProxyDescriptor, timeout time.Duration) (http.RoundTripper, error)
}

// TransportFactoryFunc adapts a function to TransportFactory.
type TransportFactoryFunc func(d model.ProxyDescriptor, timeout time.Duration) (http.RoundTripper, error)

func (f TransportFactoryFunc) NewTransport(d model.ProxyDescriptor, timeout time.Duration) (http.RoundTripper, error) {
	return f(d, timeout)
}

// ProxyTransports 是默认的 TransportFactory：每次调用都为该代理单独构造一个
// http.Transport，不修改任何进程级别的默认配置。
type ProxyTransports struct{}

var _ TransportFactory = ProxyTransports{}

func (ProxyTransports) NewTransport(d model.ProxyDescriptor, timeout time.Duration) (http.RoundTripper, error) {
	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: true},
		TLSHandshakeTimeout:   timeout / 2,
		ExpectContinueTimeout: 1 * time.Second,
		DisableKeepAlives:     true,
	}

	switch d.Kind {
	case model.KindHTTP, model.KindHTTPS:
		proxyURL, err := url.Parse(d.URL())
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url %q: %w", d.URL(), err)
		}
		// 与 requests 的 proxies 字典一致，http 和 https 两个槽位分别登记。
		slots := map[string]*url.URL{
			"http":  proxyURL,
			"https": proxyURL,
		}
		transport.Proxy = func(req *http.Request) (*url.URL, error) {
			return slots[req.URL.Scheme], nil
		}

	case model.KindSOCKS5:
		d5, err := proxy.SOCKS5("tcp", d.Address(), nil, dialer)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		cd, ok := d5.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("SOCKS5 dialer does not support contexts")
		}
		transport.DialContext = cd.DialContext

	case model.KindSOCKS4:
		// The handshake timeout is only a backstop; the request context governs.
		dial := socks.Dial(fmt.Sprintf("socks4://%s?timeout=%s", d.Address(), 2*timeout))
		transport.DialContext = withContext(dial)

	default:
		return nil, fmt.Errorf("unsupported proxy kind %q", d.Kind)
	}

	return transport, nil
}

// withContext makes a context-less dial function honor ctx cancellation.
func withContext(dial func(network, addr string) (net.Conn, error)) func(ctx context.Context, network, addr string) (net.Conn, error) {
	type dialResult struct {
		conn net.Conn
		err  error
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		ch := make(chan dialResult, 1)
		go func() {
			conn, err := dial(network, addr)
			ch <- dialResult{conn, err}
		}()

		select {
		case r := <-ch:
			return r.conn, r.err
		case <-ctx.Done():
			go func() {
				if r := <-ch; r.conn != nil {
					r.conn.Close()
				}
			}()
			return nil, ctx.Err()
		}
	}
}
