package soroban

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/pkg/errors"
	"github.com/stellar/go-stellar-sdk/keypair"

	"reserveSync/internal/model"
)

const eventTypeContract = "contract"

// ClientConfig holds connection settings for a Soroban RPC endpoint.
type ClientConfig struct {
	RPCURL            string
	NetworkPassphrase string
	AdminSecret       string
	HTTPTimeout       time.Duration
}

// Client wraps a JSON-RPC connection to a Soroban RPC node.
type Client struct {
	rpc        *jrpc2.Client
	passphrase string
	source     string
}

// NewClient creates a client. The admin secret is parsed up front and its account
// is used as the source of simulated read-only invocations.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.RPCURL) == "" {
		return nil, errors.New("rpc url is required")
	}
	if cfg.NetworkPassphrase == "" {
		return nil, errors.New("network passphrase is required")
	}
	kp, err := keypair.ParseFull(cfg.AdminSecret)
	if err != nil {
		return nil, errors.Wrap(err, "parse admin secret")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ch := jhttp.NewChannel(cfg.RPCURL, &jhttp.ChannelOptions{
		Client: &http.Client{Timeout: timeout},
	})

	return &Client{
		rpc:        jrpc2.NewClient(ch, nil),
		passphrase: cfg.NetworkPassphrase,
		source:     kp.Address(),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpc != nil {
		_ = c.rpc.Close()
	}
}

// SourceAccount returns the account used for simulations.
func (c *Client) SourceAccount() string {
	return c.source
}

// NetworkInfo describes the network an RPC node is connected to.
type NetworkInfo struct {
	Passphrase      string `json:"passphrase"`
	ProtocolVersion int    `json:"protocolVersion"`
	FriendbotURL    string `json:"friendbotUrl,omitempty"`
}

// Network returns the node's network information.
func (c *Client) Network(ctx context.Context) (NetworkInfo, error) {
	var info NetworkInfo
	if err := c.rpc.CallResult(ctx, "getNetwork", nil, &info); err != nil {
		return NetworkInfo{}, errors.Wrap(err, "getNetwork")
	}
	return info, nil
}

// CheckNetwork verifies the node serves the configured network.
func (c *Client) CheckNetwork(ctx context.Context) error {
	info, err := c.Network(ctx)
	if err != nil {
		return err
	}
	if info.Passphrase != c.passphrase {
		return errors.Errorf("network mismatch: expected %q, got %q", c.passphrase, info.Passphrase)
	}
	return nil
}

type latestLedgerResponse struct {
	ID              string `json:"id"`
	ProtocolVersion int    `json:"protocolVersion"`
	Sequence        uint32 `json:"sequence"`
}

// LatestLedger returns the sequence of the latest ledger known to the node.
func (c *Client) LatestLedger(ctx context.Context) (uint32, error) {
	var resp latestLedgerResponse
	if err := c.rpc.CallResult(ctx, "getLatestLedger", nil, &resp); err != nil {
		return 0, errors.Wrap(err, "getLatestLedger")
	}
	return resp.Sequence, nil
}

// EventQuery selects contract events. When Cursor is set StartLedger is ignored.
type EventQuery struct {
	StartLedger uint32
	ContractIDs []string
	Cursor      string
	Limit       uint
}

// EventPage is one page of getEvents results.
type EventPage struct {
	Events       []model.ContractEvent
	LatestLedger uint32
	Cursor       string
}

type eventFilter struct {
	Type        string   `json:"type"`
	ContractIDs []string `json:"contractIds"`
}

type pagination struct {
	Cursor string `json:"cursor,omitempty"`
	Limit  uint   `json:"limit,omitempty"`
}

type getEventsRequest struct {
	StartLedger uint32        `json:"startLedger,omitempty"`
	Filters     []eventFilter `json:"filters"`
	Pagination  *pagination   `json:"pagination,omitempty"`
}

type getEventsResponse struct {
	Events       []model.ContractEvent `json:"events"`
	LatestLedger uint32                `json:"latestLedger"`
	Cursor       string                `json:"cursor"`
}

// GetEvents fetches one page of contract events emitted by the given contracts.
func (c *Client) GetEvents(ctx context.Context, query EventQuery) (EventPage, error) {
	if len(query.ContractIDs) == 0 {
		return EventPage{}, errors.New("at least one contract id is required")
	}

	req := getEventsRequest{
		Filters: []eventFilter{{Type: eventTypeContract, ContractIDs: query.ContractIDs}},
	}
	if query.Cursor != "" || query.Limit > 0 {
		req.Pagination = &pagination{Cursor: query.Cursor, Limit: query.Limit}
	}
	if query.Cursor == "" {
		if query.StartLedger == 0 {
			return EventPage{}, errors.New("start ledger is required without a cursor")
		}
		req.StartLedger = query.StartLedger
	}

	var resp getEventsResponse
	if err := c.rpc.CallResult(ctx, "getEvents", req, &resp); err != nil {
		return EventPage{}, errors.Wrapf(err, "getEvents from %d", query.StartLedger)
	}

	cursor := resp.Cursor
	if cursor == "" && len(resp.Events) > 0 {
		cursor = resp.Events[len(resp.Events)-1].ID
	}
	return EventPage{Events: resp.Events, LatestLedger: resp.LatestLedger, Cursor: cursor}, nil
}
