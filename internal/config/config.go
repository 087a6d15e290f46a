// Package config resolves the exporter settings from the environment.
package config

import (
	"crypto/tls"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/client-go/rest"

	"github.com/mehdiazizian/osmetrics-exporter/internal/metrics"
	transporthttp "github.com/mehdiazizian/osmetrics-exporter/internal/transport/http"
)

// Environment variables read by Load.
const (
	EnvOSAPI              = "OS_API"
	EnvOSMetricAPI        = "OS_METRIC_API"
	EnvAccessToken        = "OS_ACCESS_TOKEN"
	EnvAccessTokenFile    = "OS_ACCESS_TOKEN_FILE"
	EnvCAFile             = "OS_CA_FILE"
	EnvCertPath           = "OS_CERT_PATH"
	EnvInsecure           = "OS_INSECURE_SKIP_TLS_VERIFY"
	EnvConcurrency        = "OS_CONCURRENCY"
	EnvMaxInflightFetches = "OS_MAX_INFLIGHT_FETCHES"
	EnvRequestTimeout     = "OS_REQUEST_TIMEOUT"

	EnvServiceHost = "KUBERNETES_SERVICE_HOST"
	EnvServicePort = "KUBERNETES_SERVICE_PORT"
)

// ServiceAccountCAFile is the in-cluster trust bundle used with the
// KUBERNETES_SERVICE_HOST fallback. Tests override it.
var ServiceAccountCAFile = "/var/run/secrets/kubernetes.io/serviceaccount/ca.crt"

// Error reports a missing or invalid setting.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func errorf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// Settings is the resolved exporter configuration.
type Settings struct {
	OSAPI       string
	OSMetricAPI string
	AccessToken string

	CAFile   string
	CertFile string
	KeyFile  string
	Insecure bool

	Concurrency        int
	MaxInflightFetches int
	RequestTimeout     time.Duration
}

// Load resolves settings from lookup, usually os.Getenv.
func Load(lookup func(string) string, logger logr.Logger) (*Settings, error) {
	s := &Settings{
		Concurrency:    metrics.DefaultConcurrency,
		RequestTimeout: transporthttp.DefaultTimeout,
	}

	s.OSAPI = lookup(EnvOSAPI)
	if s.OSAPI == "" {
		host := lookup(EnvServiceHost)
		if host == "" {
			return nil, errorf("please set the %s env variable", EnvOSAPI)
		}
		logger.Info("Using KUBERNETES_SERVICE_HOST as a fallback since OS_API variable is not set")

		s.OSAPI = "https://" + host
		if port := lookup(EnvServicePort); port != "" && port != "443" {
			s.OSAPI += ":" + port
		}
		if _, err := os.Stat(ServiceAccountCAFile); err == nil {
			s.CAFile = ServiceAccountCAFile
		}
	}

	s.OSMetricAPI = lookup(EnvOSMetricAPI)
	if s.OSMetricAPI == "" {
		return nil, errorf("please set the %s env variable", EnvOSMetricAPI)
	}

	if path := lookup(EnvAccessTokenFile); path != "" {
		token, err := os.ReadFile(path)
		if err != nil {
			return nil, errorf("failed to read %s %s: %v", EnvAccessTokenFile, path, err)
		}
		s.AccessToken = strings.TrimSpace(string(token))
	} else {
		s.AccessToken = lookup(EnvAccessToken)
	}
	if s.AccessToken == "" {
		return nil, errorf("please set the %s or %s env variable", EnvAccessToken, EnvAccessTokenFile)
	}

	if caFile := lookup(EnvCAFile); caFile != "" {
		s.CAFile = caFile
	}
	if certPath := lookup(EnvCertPath); certPath != "" {
		s.CertFile = filepath.Join(certPath, "tls.crt")
		s.KeyFile = filepath.Join(certPath, "tls.key")
	}

	var errs []error
	if v := lookup(EnvInsecure); v != "" {
		insecure, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, errorf("%s must be a boolean, got %q", EnvInsecure, v))
		}
		s.Insecure = insecure
	}
	if v := lookup(EnvConcurrency); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, errorf("%s must be an integer, got %q", EnvConcurrency, v))
		}
		s.Concurrency = n
	}
	if v := lookup(EnvMaxInflightFetches); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, errorf("%s must be an integer, got %q", EnvMaxInflightFetches, v))
		}
		s.MaxInflightFetches = n
	}
	if v := lookup(EnvRequestTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, errorf("%s must be a duration, got %q", EnvRequestTimeout, v))
		}
		s.RequestTimeout = d
	}
	if err := utilerrors.NewAggregate(errs); err != nil {
		return nil, err
	}

	return s, nil
}

// Validate checks values that flags may have overridden after Load.
func (s *Settings) Validate() error {
	var errs []error

	if s.Concurrency < 1 {
		errs = append(errs, errorf("concurrency must be at least 1, got %d", s.Concurrency))
	}
	if s.RequestTimeout <= 0 {
		errs = append(errs, errorf("request timeout must be positive, got %s", s.RequestTimeout))
	}
	if (s.CertFile == "") != (s.KeyFile == "") {
		errs = append(errs, errorf("client certificate and key must be set together"))
	}
	for _, file := range []string{s.CAFile, s.CertFile, s.KeyFile} {
		if file == "" {
			continue
		}
		if _, err := os.Stat(file); err != nil {
			errs = append(errs, errorf("cannot read %s: %v", file, err))
		}
	}

	return utilerrors.NewAggregate(errs)
}

// tlsClientConfig drops the CA bundle when verification is disabled;
// client-go rejects the combination.
func (s *Settings) tlsClientConfig() rest.TLSClientConfig {
	cfg := rest.TLSClientConfig{
		Insecure: s.Insecure,
		CertFile: s.CertFile,
		KeyFile:  s.KeyFile,
	}
	if !s.Insecure {
		cfg.CAFile = s.CAFile
	}
	return cfg
}

// RESTConfig returns the cluster API connection shared by the manager and
// the pod listing client.
func (s *Settings) RESTConfig() *rest.Config {
	return &rest.Config{
		Host:            s.OSAPI,
		BearerToken:     s.AccessToken,
		TLSClientConfig: s.tlsClientConfig(),
		Timeout:         s.RequestTimeout,
	}
}

// TLSConfig builds the client TLS configuration shared by both upstream
// clients. It returns nil when the system defaults apply.
func (s *Settings) TLSConfig() (*tls.Config, error) {
	tlsConfig, err := rest.TLSConfigFor(&rest.Config{TLSClientConfig: s.tlsClientConfig()})
	if err != nil {
		return nil, fmt.Errorf("failed to build TLS config: %w", err)
	}
	return tlsConfig, nil
}
