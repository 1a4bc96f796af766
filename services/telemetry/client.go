// Package telemetry sends a reading to the collector as a single HTTP/1.0
// POST over a raw byte stream. Every step is time bounded and every failure
// is returned to the caller.
package telemetry

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"time"

	"telenode/errcode"
	"telenode/services/hal"
	"telenode/types"
)

type Config struct {
	Endpoint netip.AddrPort
	// Host header value. Defaults to the endpoint address.
	Host string
	// Path defaults to "/data".
	Path string
	// ConnectTimeout bounds the dial. Default 10 s.
	ConnectTimeout time.Duration
	// IOTimeout bounds the write and the response read. Default 5 s.
	IOTimeout time.Duration
	// BufferSize is the fixed request buffer capacity. Default 512.
	BufferSize int
	// MaxResponse caps how much of the response is read. Default 512.
	MaxResponse int
	Logger      *slog.Logger
}

// Response is what was learned from the collector's reply.
type Response struct {
	Status int
	Bytes  int
}

type Client struct {
	net hal.NetStack
	cfg Config
	buf []byte
	log *slog.Logger
}

func New(ns hal.NetStack, cfg Config) *Client {
	if cfg.Host == "" {
		cfg.Host = cfg.Endpoint.Addr().String()
	}
	if cfg.Path == "" {
		cfg.Path = "/data"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.IOTimeout <= 0 {
		cfg.IOTimeout = 5 * time.Second
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 512
	}
	if cfg.MaxResponse <= 0 {
		cfg.MaxResponse = 512
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		net: ns,
		cfg: cfg,
		buf: make([]byte, 0, cfg.BufferSize),
		log: cfg.Logger.With("svc", "telemetry"),
	}
}

// Send posts r and returns the parsed reply. Non-2xx replies are reported as
// BadStatus alongside the response.
func (c *Client) Send(ctx context.Context, r types.Reading) (Response, error) {
	const op = "telemetry.send"
	var resp Response

	if !c.cfg.Endpoint.IsValid() {
		return resp, &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "no endpoint"}
	}
	req, err := BuildRequest(c.buf, c.cfg.Host, c.cfg.Path, r)
	if err != nil {
		return resp, err
	}

	dctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	conn, err := c.net.Dial(dctx, c.cfg.Endpoint)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return resp, errcode.Wrap(errcode.Timeout, op, err)
		}
		return resp, errcode.Wrap(errcode.ConnectFailed, op, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.cfg.IOTimeout)); err != nil {
		return resp, errcode.Wrap(errcode.Error, op, err)
	}
	c.log.Debug("telemetry: sending", "endpoint", c.cfg.Endpoint.String(), "bytes", len(req))
	if _, err := conn.Write(req); err != nil {
		return resp, wrapIO(op, err)
	}

	reply := make([]byte, c.cfg.MaxResponse)
	n, err := readUntilStatus(conn, reply)
	resp.Bytes = n
	if err != nil && n == 0 {
		return resp, wrapIO(op, err)
	}
	line := reply[:n]
	if i := bytes.Index(line, []byte("\r\n")); i >= 0 {
		line = line[:i]
	}
	resp.Status, err = ParseStatus(line)
	if err != nil {
		return resp, err
	}
	c.log.Info("telemetry: sent", "status", resp.Status, "temp", r.Temperature, "hum", r.Humidity)
	if resp.Status < 200 || resp.Status > 299 {
		return resp, &errcode.E{C: errcode.BadStatus, Op: op, Msg: string(line)}
	}
	return resp, nil
}

// readUntilStatus fills buf until it holds a full status line, the peer
// closes, or buf is full.
func readUntilStatus(r io.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if bytes.Contains(buf[:n], []byte("\r\n")) {
			return n, nil
		}
		if err != nil {
			if err == io.EOF {
				return n, nil
			}
			return n, err
		}
	}
	return n, nil
}

func wrapIO(op string, err error) error {
	type timeout interface{ Timeout() bool }
	var te timeout
	if errors.As(err, &te) && te.Timeout() {
		return errcode.Wrap(errcode.Timeout, op, err)
	}
	return errcode.Wrap(errcode.Error, op, err)
}
