package connectivity

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/groundwatch/internal/common"
	"github.com/dmitrijs2005/groundwatch/internal/netx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// Prober checks whether the server is reachable. A nil error means online.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProbeFunc adapts a function to Prober.
type ProbeFunc func(ctx context.Context) error

func (f ProbeFunc) Probe(ctx context.Context) error { return f(ctx) }

// HTTPProber sends HEAD to a health URL. Any response below 500 counts as
// reachable: the server answered, even if it rejected the request.
type HTTPProber struct {
	url    string
	client *http.Client
}

func NewHTTPProber(baseURL, healthPath string, client *http.Client) (*HTTPProber, error) {
	u, err := netx.ResolveURL(baseURL, healthPath)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProber{url: u, client: client}, nil
}

func (p *HTTPProber) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s", common.ErrUnavailable, resp.Status)
	}
	return nil
}

// GRPCHealthProber asks a grpc.health.v1 endpoint for the serving status.
type GRPCHealthProber struct {
	conn    *grpc.ClientConn
	client  healthpb.HealthClient
	service string
}

func NewGRPCHealthProber(addr, service string) (*GRPCHealthProber, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return &GRPCHealthProber{conn: conn, client: healthpb.NewHealthClient(conn), service: service}, nil
}

func (p *GRPCHealthProber) Probe(ctx context.Context) error {
	resp, err := p.client.Check(ctx, &healthpb.HealthCheckRequest{Service: p.service})
	if err != nil {
		return mapError(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: health status %s", common.ErrUnavailable, resp.GetStatus())
	}
	return nil
}

func (p *GRPCHealthProber) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

func mapError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.NotFound:
		return fmt.Errorf("%w: %s", common.ErrUnavailable, st.Message())
	}
	return err
}
