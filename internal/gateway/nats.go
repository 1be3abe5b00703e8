package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/order-reconciler/internal/models"
	"github.com/akylbek/payment-system/order-reconciler/internal/telemetry"
)

// envelope is the reply format of the transport sidecar: the gateway's HTTP
// status and raw body.
type envelope struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

type fetchRequest struct {
	MerchantReference string `json:"merchant_reference"`
}

// NATSClient implements Client and SnapshotFetcher through request/reply on
// <prefix>.orders.get and <prefix>.commands.<kind>.
type NATSClient struct {
	nc      *nats.Conn
	prefix  string
	timeout time.Duration
}

func NewNATSClient(nc *nats.Conn, prefix string, timeout time.Duration) *NATSClient {
	return &NATSClient{nc: nc, prefix: prefix, timeout: timeout}
}

func (c *NATSClient) Send(ctx context.Context, cmd Command) (*RawResponse, error) {
	payload, err := json.Marshal(cmd.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", cmd.Kind, err)
	}

	env, err := c.request(ctx, c.prefix+".commands."+string(cmd.Kind), payload)
	if err != nil {
		return nil, err
	}
	return decodeCommandReply(env)
}

func (c *NATSClient) FetchOrder(ctx context.Context, merchantReference string) (*models.OrderSnapshot, error) {
	payload, _ := json.Marshal(fetchRequest{MerchantReference: merchantReference})

	env, err := c.request(ctx, c.prefix+".orders.get", payload)
	if err != nil {
		return nil, err
	}
	return decodeSnapshotReply(env)
}

func (c *NATSClient) request(ctx context.Context, subject string, payload []byte) (envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg, err := c.nc.RequestWithContext(ctx, subject, payload)
	if err != nil {
		telemetry.LoggerFrom(ctx).Warn("Gateway request failed",
			zap.String("subject", subject),
			zap.Error(err),
		)
		return envelope{}, fmt.Errorf("gateway request %s: %w", subject, err)
	}

	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		return envelope{}, fmt.Errorf("decode gateway reply: %w", err)
	}
	return env, nil
}

func decodeCommandReply(env envelope) (*RawResponse, error) {
	if env.Status < 200 || env.Status > 299 {
		return nil, ParseError(env.Status, env.Body)
	}
	return &RawResponse{Status: env.Status, Body: env.Body}, nil
}

func decodeSnapshotReply(env envelope) (*models.OrderSnapshot, error) {
	if env.Status == 404 {
		gwErr := ParseError(env.Status, env.Body)
		gwErr.Kind = KindOrderNotFound
		return nil, gwErr
	}
	if env.Status < 200 || env.Status > 299 {
		return nil, ParseError(env.Status, env.Body)
	}

	var snapshot models.OrderSnapshot
	if err := json.Unmarshal(env.Body, &snapshot); err != nil {
		return nil, fmt.Errorf("decode order snapshot: %w", err)
	}
	return &snapshot, nil
}
