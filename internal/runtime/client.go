// Package runtime adapts the moby container-runtime client into the narrow
// ContainerRuntime capability the agent's update engine and volume
// snapshotter need. Connection setup (unix socket, optional TCP+mTLS) is
// carried over from the container-runtime wrapper this project started
// from; the container/image/volume operations are reshaped around the
// update state machine instead of a dashboard's list/inspect views.
package runtime

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/moby/moby/client"
)

// Client wraps the moby API client with the timeouts and transport setup
// hoister needs when talking to a local or remote daemon.
type Client struct {
	api *client.Client
}

// TLSConfig holds paths to certificates for connecting to a remote,
// mTLS-protected runtime socket.
type TLSConfig struct {
	CACert     string
	ClientCert string
	ClientKey  string
}

func (t *TLSConfig) loadTLS() (*tls.Config, error) {
	caCert, err := os.ReadFile(t.CACert)
	if err != nil {
		return nil, fmt.Errorf("read CA cert %s: %w", t.CACert, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("parse CA cert %s", t.CACert)
	}
	cert, err := tls.LoadX509KeyPair(t.ClientCert, t.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load client cert/key: %w", err)
	}
	return &tls.Config{
		RootCAs:      pool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// NewClient connects to a runtime endpoint. endpoint may be a unix socket
// path, or a tcp://host:port / tcps://host:port URL for a remote daemon.
func NewClient(endpoint string, tlsCfg *TLSConfig) (*Client, error) {
	var opts []client.Opt

	switch {
	case strings.HasPrefix(endpoint, "tcp://"), strings.HasPrefix(endpoint, "tcps://"):
		opts = append(opts, client.WithHost(endpoint))
		if tlsCfg != nil && tlsCfg.CACert != "" && tlsCfg.ClientCert != "" && tlsCfg.ClientKey != "" {
			tlsConfig, err := tlsCfg.loadTLS()
			if err != nil {
				return nil, fmt.Errorf("configure runtime TLS: %w", err)
			}
			if u, parseErr := url.Parse(endpoint); parseErr == nil {
				tlsConfig.ServerName = u.Hostname()
			}
			opts = append(opts, client.WithHTTPClient(&http.Client{
				Transport: &http.Transport{
					TLSClientConfig:       tlsConfig,
					IdleConnTimeout:       90 * time.Second,
					TLSHandshakeTimeout:   10 * time.Second,
					ResponseHeaderTimeout: 30 * time.Second,
				},
			}))
		}
	default:
		opts = append(opts,
			client.WithHost("unix://"+endpoint),
			client.WithHTTPClient(&http.Client{
				Transport: &http.Transport{
					DialContext: func(_ context.Context, _, _ string) (net.Conn, error) {
						return net.DialTimeout("unix", endpoint, 30*time.Second)
					},
				},
			}),
		)
	}

	api, err := client.New(opts...)
	if err != nil {
		return nil, err
	}
	return &Client{api: api}, nil
}

// Ping checks the runtime socket is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.Ping(ctx, client.PingOptions{})
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.api.Close()
}
