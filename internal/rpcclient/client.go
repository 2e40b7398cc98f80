// Package rpcclient implements the RPC collaborator interface spec.md
// §6 assumes: a JSON-RPC transport against an EVM-compatible testnet
// endpoint, materialized per spec.md §3's Client entity (one wallet
// paired with zero-or-one proxy, wrapping an HTTP transport). Grounded
// on the teacher's client/bridge_client.go call-shape (CallContext with
// a method name and positional params) but built directly on
// valyala/fasthttp instead of the teacher's rpc.Client, since the
// teacher's underlying transport package was not itself part of the
// retrieved example.
package rpcclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/net/proxy"

	"github.com/kardelitaitu/testnet-spammer/internal/errclass"
	"github.com/kardelitaitu/testnet-spammer/internal/xlog"
)

var logger = xlog.NewModuleLogger(xlog.ModuleRPC)

// Client is the full RPC collaborator surface used by tasks and the
// nonce coordinator (spec.md §6 / §4.2's ChainClient slice).
type Client interface {
	GetTransactionCount(ctx context.Context, address string) (uint64, error)
	SendRawTransaction(ctx context.Context, signedTxHex string) (string, error)
	EstimateGas(ctx context.Context, callMsg map[string]interface{}) (uint64, error)
	GasPrice(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (uint64, error)
	Close()
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// HTTPClient is the default Client implementation: one fasthttp.Client
// per materialized Client entity (spec.md §3's "exactly one Client per
// wallet index" invariant is enforced by the caller, internal/walletpool,
// not by this type itself).
type HTTPClient struct {
	url    string
	hc     *fasthttp.Client
	gasCache *gasCache
	nextID int
}

// Option configures an HTTPClient at construction.
type Option func(*HTTPClient)

// WithSOCKS5Proxy routes all requests through a SOCKS5 proxy, per
// spec.md §3's proxy endpoint entity. A nil auth means no credentials.
func WithSOCKS5Proxy(addr string, auth *proxy.Auth) Option {
	return func(c *HTTPClient) {
		dialer, err := proxy.SOCKS5("tcp", addr, auth, proxy.Direct)
		if err != nil {
			logger.Errorw("socks5 dialer construction failed, falling back to direct", "proxy", addr, "err", err)
			return
		}
		c.hc.Dial = func(address string) (net.Conn, error) {
			return dialer.Dial("tcp", address)
		}
	}
}

// WithTimeout overrides the per-request timeout (fasthttp.Client has no
// default deadline otherwise).
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.hc.ReadTimeout = d; c.hc.WriteTimeout = d }
}

// NewHTTPClient dials url lazily (fasthttp connects on first request).
func NewHTTPClient(url string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		url: url,
		hc: &fasthttp.Client{
			MaxConnsPerHost: 8,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
		},
		gasCache: newGasCache(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	c.nextID++
	reqBody, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: c.nextID, Method: method, Params: params})
	if err != nil {
		return nil, errclass.Wrap(errclass.Configuration, err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(reqBody)

	deadline, hasDeadline := ctx.Deadline()
	var doErr error
	if hasDeadline {
		doErr = c.hc.DoDeadline(req, resp, deadline)
	} else {
		doErr = c.hc.Do(req, resp)
	}
	if doErr != nil {
		return nil, errclass.Wrap(errclass.TransientTransport, doErr)
	}

	var rr rpcResponse
	if err := json.Unmarshal(resp.Body(), &rr); err != nil {
		return nil, errclass.Wrap(errclass.TransientTransport, fmt.Errorf("malformed rpc response: %w", err))
	}
	if rr.Error != nil {
		return nil, errclass.ClassifyRPCError(rr.Error.Code, rr.Error.Message)
	}
	return rr.Result, nil
}

// GetTransactionCount implements nonce.ChainClient and Client.
func (c *HTTPClient) GetTransactionCount(ctx context.Context, address string) (uint64, error) {
	raw, err := c.call(ctx, "eth_getTransactionCount", address, "pending")
	if err != nil {
		return 0, err
	}
	return decodeQuantity(raw)
}

// SendRawTransaction broadcasts a signed, hex-encoded transaction and
// returns its hash.
func (c *HTTPClient) SendRawTransaction(ctx context.Context, signedTxHex string) (string, error) {
	raw, err := c.call(ctx, "eth_sendRawTransaction", signedTxHex)
	if err != nil {
		return "", err
	}
	var hash string
	if err := json.Unmarshal(raw, &hash); err != nil {
		return "", errclass.Wrap(errclass.TransientTransport, err)
	}
	return hash, nil
}

// EstimateGas estimates gas for callMsg, consulting the gas cache first
// to spare the RPC endpoint from redundant estimate calls for
// structurally identical calls. A cached estimate is reused until the
// cache evicts it for space; it does not expire after a fixed time.
func (c *HTTPClient) EstimateGas(ctx context.Context, callMsg map[string]interface{}) (uint64, error) {
	key := gasCacheKey(callMsg)
	if v, ok := c.gasCache.get(key); ok {
		return v, nil
	}
	raw, err := c.call(ctx, "eth_estimateGas", callMsg)
	if err != nil {
		return 0, err
	}
	gas, err := decodeQuantity(raw)
	if err != nil {
		return 0, err
	}
	c.gasCache.set(key, gas)
	return gas, nil
}

// GasPrice returns the network's suggested gas price.
func (c *HTTPClient) GasPrice(ctx context.Context) (uint64, error) {
	raw, err := c.call(ctx, "eth_gasPrice")
	if err != nil {
		return 0, err
	}
	return decodeQuantity(raw)
}

// ChainID returns the connected chain's id, used to validate config
// against the endpoint it names (spec.md §6's chain_id field).
func (c *HTTPClient) ChainID(ctx context.Context) (uint64, error) {
	raw, err := c.call(ctx, "eth_chainId")
	if err != nil {
		return 0, err
	}
	return decodeQuantity(raw)
}

// Close releases the underlying fasthttp connection pool.
func (c *HTTPClient) Close() {
	c.hc.CloseIdleConnections()
}

func decodeQuantity(raw json.RawMessage) (uint64, error) {
	var hexStr string
	if err := json.Unmarshal(raw, &hexStr); err != nil {
		return 0, errclass.Wrap(errclass.TransientTransport, err)
	}
	var v uint64
	if _, err := fmt.Sscanf(hexStr, "0x%x", &v); err != nil {
		return 0, errclass.Wrap(errclass.TransientTransport, fmt.Errorf("malformed quantity %q: %w", hexStr, err))
	}
	return v, nil
}
