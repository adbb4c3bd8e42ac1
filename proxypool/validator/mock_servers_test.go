package validator

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"liuproxy_checker/proxypool/model"
)

// testEchoURL is never dialed: every mock proxy answers the request itself.
const testEchoURL = "http://192.0.2.1/ip"

func descriptorFor(t *testing.T, addr string, kind model.ProtocolKind) model.ProxyDescriptor {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("bad listener address %q: %v", addr, err)
	}
	port, _ := strconv.Atoi(portStr)
	return model.ProxyDescriptor{ID: kind.Scheme() + "-" + portStr, Host: host, Port: port, Kind: kind}
}

// startHTTPProxy starts a forward proxy that answers every request with origin.
func startHTTPProxy(t *testing.T, origin string) (model.ProxyDescriptor, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"origin": origin})
	}))
	t.Cleanup(srv.Close)
	return descriptorFor(t, srv.Listener.Addr().String(), model.KindHTTP), &hits
}

// startStatusProxy answers every proxied request with the given status and body.
func startStatusProxy(t *testing.T, status int, body string) model.ProxyDescriptor {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return descriptorFor(t, srv.Listener.Addr().String(), model.KindHTTP)
}

// startSilentServer accepts connections and never answers.
func startSilentServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	t.Cleanup(func() {
		close(done)
		ln.Close()
	})
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				<-done
				c.Close()
			}()
		}
	}()
	return ln.Addr().String()
}

// closedAddr returns an address nothing listens on.
func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

// startSOCKSProxy starts a SOCKS4 or SOCKS5 server that, after the handshake,
// answers the tunneled HTTP request itself with origin. A client speaking the
// wrong SOCKS version is dropped.
func startSOCKSProxy(t *testing.T, version byte, origin string) (model.ProxyDescriptor, *atomic.Int64) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	var served atomic.Int64
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go serveSOCKS(c, version, origin, &served)
		}
	}()

	kind := model.KindSOCKS5
	if version == 4 {
		kind = model.KindSOCKS4
	}
	return descriptorFor(t, ln.Addr().String(), kind), &served
}

func serveSOCKS(c net.Conn, version byte, origin string, served *atomic.Int64) {
	defer c.Close()
	c.SetDeadline(time.Now().Add(5 * time.Second))
	br := bufio.NewReader(c)

	var err error
	if version == 4 {
		err = socks4Accept(br, c)
	} else {
		err = socks5Accept(br, c)
	}
	if err != nil {
		return
	}

	req, err := http.ReadRequest(br)
	if err != nil {
		return
	}
	io.Copy(io.Discard, req.Body)
	served.Add(1)

	body := fmt.Sprintf(`{"origin": "%s"}`, origin)
	fmt.Fprintf(c, "HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s", len(body), body)
}

func socks4Accept(br *bufio.Reader, c net.Conn) error {
	header := make([]byte, 8)
	if _, err := io.ReadFull(br, header); err != nil {
		return err
	}
	if header[0] != 4 || header[1] != 1 {
		return fmt.Errorf("not a SOCKS4 CONNECT: % x", header[:2])
	}
	if _, err := br.ReadBytes(0); err != nil { // user id
		return err
	}
	ip := header[4:8]
	if ip[0] == 0 && ip[1] == 0 && ip[2] == 0 && ip[3] != 0 { // SOCKS4a domain
		if _, err := br.ReadBytes(0); err != nil {
			return err
		}
	}
	_, err := c.Write([]byte{0x00, 0x5a, 0, 0, 0, 0, 0, 0})
	return err
}

func socks5Accept(br *bufio.Reader, c net.Conn) error {
	greeting := make([]byte, 2)
	if _, err := io.ReadFull(br, greeting); err != nil {
		return err
	}
	if greeting[0] != 5 {
		return fmt.Errorf("not SOCKS5: %d", greeting[0])
	}
	if _, err := io.CopyN(io.Discard, br, int64(greeting[1])); err != nil {
		return err
	}
	if _, err := c.Write([]byte{0x05, 0x00}); err != nil {
		return err
	}

	req := make([]byte, 4)
	if _, err := io.ReadFull(br, req); err != nil {
		return err
	}
	if req[1] != 1 {
		return fmt.Errorf("unsupported command %d", req[1])
	}
	var addrLen int
	switch req[3] {
	case 0x01:
		addrLen = 4
	case 0x04:
		addrLen = 16
	case 0x03:
		n, err := br.ReadByte()
		if err != nil {
			return err
		}
		addrLen = int(n)
	default:
		return fmt.Errorf("unsupported address type %d", req[3])
	}
	rest := make([]byte, addrLen+2)
	if _, err := io.ReadFull(br, rest); err != nil {
		return err
	}

	_, err := c.Write([]byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
	return err
}

// geoReply is what the mock geo service returns for one IP.
type geoReply struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`
	ISP     string `json:"isp,omitempty"`
}

// startGeoServer serves ip-api.com style lookups from replies keyed by IP.
func startGeoServer(t *testing.T, replies map[string]geoReply) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("fields") != geoFields {
			http.Error(w, "bad fields", http.StatusBadRequest)
			return
		}
		ip := r.URL.Path[len("/json/"):]
		reply, ok := replies[ip]
		if !ok {
			reply = geoReply{Status: "fail", Message: "invalid query"}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}
