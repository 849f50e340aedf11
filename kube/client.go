package kube

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/super-flat/nodewatcher/logging"
	"github.com/super-flat/nodewatcher/membership"
)

const defaultFetchTimeout = 30 * time.Second

// Config describes how to reach the API server
type Config struct {
	// Hostname is host[:port]; an explicit https:// prefix is accepted
	Hostname     string
	Credentials  Credentials
	CAFile       string
	Insecure     bool
	FetchTimeout time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTransportWrapper wraps the authenticated transport, typically with
// instrumentation
func WithTransportWrapper(wrap func(http.RoundTripper) http.RoundTripper) Option {
	return func(c *Client) {
		c.wrapTransport = wrap
	}
}

// Client lists and watches cluster nodes
type Client struct {
	k8sClient     kubernetes.Interface
	fetchTimeout  time.Duration
	logger        logging.Logger
	wrapTransport func(http.RoundTripper) http.RoundTripper
}

// NewClient builds a Client on top of a client-go clientset
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Hostname == "" {
		return nil, errors.New("missing hostname")
	}
	c := &Client{
		fetchTimeout: cfg.FetchTimeout,
		logger:       logging.DefaultLogger,
	}
	if c.fetchTimeout <= 0 {
		c.fetchTimeout = defaultFetchTimeout
	}
	for _, opt := range opts {
		opt(c)
	}

	restCfg := &rest.Config{
		Host: baseURL(cfg.Hostname),
		TLSClientConfig: rest.TLSClientConfig{
			CAFile:   cfg.CAFile,
			Insecure: cfg.Insecure,
		},
	}
	cfg.Credentials.apply(restCfg)
	if c.wrapTransport != nil {
		restCfg.WrapTransport = c.wrapTransport
	}

	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build the k8s client")
	}
	c.k8sClient = clientset
	return c, nil
}

// FetchSnapshot lists every node along with the list's resource version
func (c *Client) FetchSnapshot(ctx context.Context) (membership.Membership, membership.ResumeToken, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	c.logger.Info("requesting node list")
	list, err := c.k8sClient.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, "", classify("fetch snapshot", kindSnapshot, err)
	}
	return SnapshotFrom(list)
}

// OpenStream starts watching node changes that happened after token. The
// stream stays open until the server ends it or it is closed.
func (c *Client) OpenStream(ctx context.Context, token membership.ResumeToken) (membership.Stream, error) {
	c.logger.Infof("watching node changes from version %s", token)
	watcher, err := c.k8sClient.CoreV1().Nodes().Watch(ctx, metav1.ListOptions{
		ResourceVersion: string(token),
	})
	if err != nil {
		return nil, classify("open stream", kindEvent, err)
	}
	return newWatchStream(watcher), nil
}

// classify maps a client-go failure onto ConnectivityError, for transport
// failures and error statuses, or DecodeError for an undecodable body
func classify(op string, kind string, err error) error {
	var status apierrors.APIStatus
	if errors.As(err, &status) {
		return &ConnectivityError{Op: op, StatusCode: int(status.Status().Code), Err: err}
	}
	var (
		urlErr *url.Error
		netErr net.Error
	)
	if errors.As(err, &urlErr) || errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &ConnectivityError{Op: op, Err: err}
	}
	return &DecodeError{Kind: kind, Err: err}
}

func baseURL(hostname string) string {
	hostname = strings.TrimSuffix(hostname, "/")
	if strings.HasPrefix(hostname, "https://") || strings.HasPrefix(hostname, "http://") {
		return hostname
	}
	return "https://" + hostname
}
