package telemetry

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"telenode/errcode"
	"telenode/services/hal/halsim"
	"telenode/types"
)

func TestBuildRequestWireFormat(t *testing.T) {
	buf := make([]byte, 0, 256)
	got, err := BuildRequest(buf, "192.168.1.10", "/data", types.Reading{Humidity: 60, Temperature: 25})
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	want := "POST /data HTTP/1.0\r\n" +
		"Host: 192.168.1.10\r\n" +
		"Content-Type: application/json\r\n" +
		"Content-Length: 24\r\n" +
		"\r\n" +
		`{"temp":25.0,"hum":60.0}`
	if string(got) != want {
		t.Fatalf("request mismatch\n got: %q\nwant: %q", got, want)
	}
	if &got[:1][0] != &buf[:1][0] {
		t.Fatal("request not written into the supplied buffer")
	}
}

func TestBodyFormats(t *testing.T) {
	cases := []struct {
		in   types.Reading
		want string
	}{
		{types.Reading{Humidity: 0, Temperature: 0}, `{"temp":0.0,"hum":0.0}`},
		{types.Reading{Humidity: 45, Temperature: -25}, `{"temp":-25.0,"hum":45.0}`},
		{types.Placeholder, `{"temp":-128.0,"hum":255.0}`},
	}
	for _, c := range cases {
		if got := Body(c.in); got != c.want {
			t.Errorf("Body(%+v) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestBuildRequestOverflow(t *testing.T) {
	buf := make([]byte, 0, 32)
	out, err := BuildRequest(buf, "10.0.0.1", "/data", types.Reading{Humidity: 50, Temperature: 20})
	if errcode.Of(err) != errcode.BufferOverflow {
		t.Fatalf("want buffer_overflow, got %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("partial request written: %q", out)
	}
}

func TestBuildRequestExactFit(t *testing.T) {
	r := types.Reading{Humidity: 50, Temperature: 20}
	full, err := BuildRequest(make([]byte, 0, 512), "h", "/", r)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := BuildRequest(make([]byte, 0, len(full)), "h", "/", r); err != nil {
		t.Fatalf("exact-capacity buffer rejected: %v", err)
	}
	if _, err := BuildRequest(make([]byte, 0, len(full)-1), "h", "/", r); errcode.Of(err) != errcode.BufferOverflow {
		t.Fatalf("one byte short: want overflow, got %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	good := map[string]int{
		"HTTP/1.0 200 OK":        200,
		"HTTP/1.1 404 Not Found": 404,
		"HTTP/1.1 500 ":          500,
	}
	for line, want := range good {
		got, err := ParseStatus([]byte(line))
		if err != nil || got != want {
			t.Errorf("ParseStatus(%q) = %d, %v", line, got, err)
		}
	}
	for _, line := range []string{"", "HTTP/1.1", "HTTP/2 200 OK", "HTTP/1.1 2x0 OK", "SSH-2.0-OpenSSH", "HTTP/1.x 200 OK", "HTTP/1.9 200 OK"} {
		if _, err := ParseStatus([]byte(line)); errcode.Of(err) != errcode.BadStatus {
			t.Errorf("ParseStatus(%q): want bad_status, got %v", line, err)
		}
	}
}

func endpointOf(t *testing.T, addr string) netip.AddrPort {
	t.Helper()
	ap, err := netip.ParseAddrPort(addr)
	if err != nil {
		t.Fatal(err)
	}
	return ap
}

func TestSendPostsReading(t *testing.T) {
	type seen struct {
		method, path, ctype, body string
	}
	got := make(chan seen, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got <- seen{r.Method, r.URL.Path, r.Header.Get("Content-Type"), string(b)}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"status":"success"}`)
	}))
	defer srv.Close()

	c := New(&halsim.Net{}, Config{Endpoint: endpointOf(t, srv.Listener.Addr().String())})
	resp, err := c.Send(context.Background(), types.Reading{Humidity: 60, Temperature: 25})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.Status != 200 {
		t.Fatalf("status = %d", resp.Status)
	}
	select {
	case s := <-got:
		if s.method != http.MethodPost || s.path != "/data" || s.ctype != "application/json" {
			t.Fatalf("unexpected request: %+v", s)
		}
		if s.body != `{"temp":25.0,"hum":60.0}` {
			t.Fatalf("body = %s", s.body)
		}
	case <-time.After(time.Second):
		t.Fatal("server saw no request")
	}
}

func TestSendReportsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(&halsim.Net{}, Config{Endpoint: endpointOf(t, srv.Listener.Addr().String())})
	resp, err := c.Send(context.Background(), types.Reading{Humidity: 1, Temperature: 2})
	if errcode.Of(err) != errcode.BadStatus {
		t.Fatalf("want bad_status, got %v", err)
	}
	if resp.Status != 500 {
		t.Fatalf("status = %d", resp.Status)
	}
}

func TestSendTimesOutOnSilentPeer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			defer c.Close()
			io.Copy(io.Discard, c)
		}
	}()

	c := New(&halsim.Net{}, Config{
		Endpoint:  endpointOf(t, ln.Addr().String()),
		IOTimeout: 30 * time.Millisecond,
	})
	start := time.Now()
	_, err = c.Send(context.Background(), types.Reading{})
	if errcode.Of(err) != errcode.Timeout {
		t.Fatalf("want timeout, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("send not bounded by IOTimeout")
	}
}

func TestSendConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	c := New(&halsim.Net{}, Config{Endpoint: endpointOf(t, addr), ConnectTimeout: 200 * time.Millisecond})
	_, err = c.Send(context.Background(), types.Reading{})
	if code := errcode.Of(err); code != errcode.ConnectFailed && code != errcode.Timeout {
		t.Fatalf("want connect_failed or timeout, got %v", err)
	}
}

func TestSendWithoutEndpoint(t *testing.T) {
	c := New(&halsim.Net{}, Config{})
	_, err := c.Send(context.Background(), types.Reading{})
	if !errors.Is(err, errcode.InvalidParams) {
		t.Fatalf("want invalid_params, got %v", err)
	}
	if !strings.Contains(err.Error(), "no endpoint") {
		t.Fatalf("err = %v", err)
	}
}
