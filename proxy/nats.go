package proxy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the NATS subject the proxy answers on.
const DefaultSubject = "switchyard.proxy.execute"

// DefaultQueue is the queue group of proxy responders.
const DefaultQueue = "switchyard-proxy"

// NATSClient is an Executor using NATS request/reply with MessagePack bodies.
//
// Access control is left to the NATS server's own authorization.
type NATSClient struct {
	nc      *nats.Conn
	subject string
	timeout time.Duration
}

// NATSClientOption configures a NATSClient.
type NATSClientOption func(*NATSClient)

// WithSubject sets the request subject.
func WithSubject(subject string) NATSClientOption {
	return func(c *NATSClient) {
		c.subject = subject
	}
}

// WithRequestTimeout bounds requests whose context has no deadline.
func WithRequestTimeout(d time.Duration) NATSClientOption {
	return func(c *NATSClient) {
		c.timeout = d
	}
}

// NewNATSClient creates an Executor sending requests over nc.
func NewNATSClient(nc *nats.Conn, opts ...NATSClientOption) *NATSClient {
	c := &NATSClient{
		nc:      nc,
		subject: DefaultSubject,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Compile-time assertion that NATSClient implements Executor.
var _ Executor = (*NATSClient)(nil)

// Execute sends req and waits for the reply.
func (c *NATSClient) Execute(ctx context.Context, req Request) (*Response, error) {
	data, err := encodeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("switchyard: encode proxy request: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	msg, err := c.nc.RequestWithContext(ctx, c.subject, data)
	if err != nil {
		return nil, fmt.Errorf("switchyard: proxy request: %w", err)
	}

	resp, err := decodeMsgpResponse(msg.Data)
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &RemoteError{Message: resp.Error}
	}

	return resp, nil
}

// ServeNATS answers proxy requests arriving on subject.
//
// Multiple servers may share queue to balance requests.
//
// Parameters:
//   - nc: NATS connection
//   - subject: Request subject, DefaultSubject if empty
//   - queue: Queue group, DefaultQueue if empty
//
// Returns:
//   - *nats.Subscription: The subscription; unsubscribe to stop serving
//   - error: Subscription error
func (s *Server) ServeNATS(nc *nats.Conn, subject, queue string) (*nats.Subscription, error) {
	if nc == nil {
		return nil, errors.New("switchyard: nil NATS connection")
	}
	if subject == "" {
		subject = DefaultSubject
	}
	if queue == "" {
		queue = DefaultQueue
	}

	return nc.QueueSubscribe(subject, queue, func(m *nats.Msg) {
		var resp *Response
		req, err := decodeRequest(m.Data)
		if err != nil {
			resp = &Response{Error: err.Error()}
		} else {
			resp = s.handle(context.Background(), req)
		}

		out, err := encodeResponse(resp)
		if err != nil {
			s.logger.Error("proxy response encode failed", "error", err)
			out, _ = encodeResponse(&Response{RequestID: resp.RequestID, Error: err.Error()})
		}
		if err := m.Respond(out); err != nil {
			s.logger.Warn("proxy reply failed", "error", err)
		}
	})
}
