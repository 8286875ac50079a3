// Package enroll exchanges an organization token and host identifier for
// the osquery enrollment secret.
package enroll

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hyprwatch/shadow/internal/logging"
)

const (
	// EnrollPath is the shadow enrollment endpoint on the server.
	EnrollPath = "/api/shadow/enroll"

	// DefaultTimeout bounds one enrollment request.
	DefaultTimeout = 60 * time.Second

	maxBodyBytes = 1 << 20
)

var (
	ErrEnrollment = errors.New("enrollment failed")
	ErrInvalidCA  = errors.New("invalid CA certificate")
)

// EnrollmentError is returned for a non-2xx enrollment response. Body is
// the server's response, truncated to 1 MiB.
type EnrollmentError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *EnrollmentError) Error() string {
	return fmt.Sprintf("enrollment failed (%s): %s", e.Status, e.Body)
}

func (e *EnrollmentError) Is(target error) bool { return target == ErrEnrollment }

// Options configures a Client.
type Options struct {
	// Server is the bare host[:port] of the shadow server.
	Server string
	// CACertPath adds a PEM CA to the system roots.
	CACertPath string
	// HTTPClient replaces the default client; CACertPath is then ignored.
	HTTPClient *http.Client
	Logger     logrus.FieldLogger
	// BaseURL overrides "https://<Server>".
	BaseURL string
}

// Client performs enrollment requests.
type Client struct {
	endpoint string
	http     *http.Client
	logger   logrus.FieldLogger
}

type enrollRequest struct {
	HostID   string `json:"host_id"`
	OrgToken string `json:"org_token"`
}

type enrollResponse struct {
	EnrollSecret string `json:"enroll_secret"`
}

// NewClient builds a client for opts.Server.
func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		if opts.Server == "" {
			return nil, fmt.Errorf("server is required")
		}
		base = "https://" + opts.Server
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		var err error
		httpClient, err = newHTTPClient(opts.CACertPath)
		if err != nil {
			return nil, err
		}
	}

	return &Client{
		endpoint: base + EnrollPath,
		http:     httpClient,
		logger:   logging.OrDiscard(opts.Logger),
	}, nil
}

// Endpoint returns the enrollment URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Enroll posts the host identity and returns the enrollment secret.
func (c *Client) Enroll(ctx context.Context, hostID, orgToken string) (string, error) {
	data, err := json.Marshal(enrollRequest{HostID: hostID, OrgToken: orgToken})
	if err != nil {
		return "", fmt.Errorf("marshal enrollment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.WithFields(logrus.Fields{"url": c.endpoint, "host_id": hostID}).Debug("enrolling")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("connect to server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read enrollment response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &EnrollmentError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	var parsed enrollResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: parse enrollment response: %w", ErrEnrollment, err)
	}
	if parsed.EnrollSecret == "" {
		return "", fmt.Errorf("%w: response has no enroll_secret", ErrEnrollment)
	}

	c.logger.Debug("enrollment succeeded")
	return parsed.EnrollSecret, nil
}

func newHTTPClient(caCertPath string) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if caCertPath != "" {
		pool, err := LoadCAPool(caCertPath)
		if err != nil {
			return nil, err
		}
		transport.TLSClientConfig = &tls.Config{
			RootCAs:    pool,
			MinVersion: tls.VersionTLS12,
		}
	}

	return &http.Client{Timeout: DefaultTimeout, Transport: transport}, nil
}

// LoadCAPool returns the system roots plus every certificate in the PEM
// file at path. The file must hold at least one valid CERTIFICATE block.
func LoadCAPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}

	certs, err := parseCertificates(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidCA, path, err)
	}

	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	for _, cert := range certs {
		pool.AddCert(cert)
	}
	return pool, nil
}

func parseCertificates(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, errors.New("no CERTIFICATE block found")
	}
	return certs, nil
}
