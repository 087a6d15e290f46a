package http

import (
	"context"
	"fmt"
	"net/http"

	corev1 "k8s.io/api/core/v1"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mehdiazizian/osmetrics-exporter/internal/instrumentation"
	"github.com/mehdiazizian/osmetrics-exporter/internal/transport"
	"github.com/mehdiazizian/osmetrics-exporter/internal/transport/dto"
)

// ClusterClient lists pods through the cluster API.
type ClusterClient struct {
	restClient rest.Interface
}

// NewClusterClient creates a client over an existing core/v1 REST client.
func NewClusterClient(restClient rest.Interface) *ClusterClient {
	return &ClusterClient{restClient: restClient}
}

// NewClusterClientForConfig builds a core/v1 REST client from cfg. Requests
// are neither throttled nor retried, and responses are read as JSON.
func NewClusterClientForConfig(cfg *rest.Config) (*ClusterClient, error) {
	config := rest.CopyConfig(cfg)
	config.GroupVersion = &corev1.SchemeGroupVersion
	config.APIPath = "/api"
	config.NegotiatedSerializer = clientgoscheme.Codecs.WithoutConversion()
	config.ContentType = "application/json"
	config.AcceptContentTypes = "application/json"
	config.QPS = -1
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.UserAgent == "" {
		config.UserAgent = rest.DefaultKubernetesUserAgent()
	}

	restClient, err := rest.RESTClientFor(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create cluster API client: %w", err)
	}
	return NewClusterClient(restClient), nil
}

// ListPods returns every pod of the namespace in the order the API lists them.
func (c *ClusterClient) ListPods(ctx context.Context, namespace string) ([]dto.Pod, error) {
	logger := log.FromContext(ctx).WithName("cluster-client")

	req := c.restClient.Get().
		AbsPath("/api/v1/namespaces", namespace, "pods").
		MaxRetries(0)
	// client-go adds its own timeout parameter; errors name the bare endpoint
	endpointURL := req.URL()
	endpointURL.RawQuery = ""
	endpoint := endpointURL.String()

	var statusCode int
	result := req.Do(ctx).StatusCode(&statusCode)
	body, err := result.Raw()

	// No status means the request never got an answer
	if statusCode == 0 {
		instrumentation.UpstreamRequests.WithLabelValues(instrumentation.APICluster, instrumentation.OutcomeError).Inc()
		return nil, fmt.Errorf("request to %s failed: %w", endpoint, err)
	}

	// 204 carries no body, which is never a valid pod list
	if statusCode < 200 || statusCode > 299 || statusCode == http.StatusNoContent {
		instrumentation.UpstreamRequests.WithLabelValues(instrumentation.APICluster, instrumentation.OutcomeError).Inc()
		return nil, &transport.UpstreamProtocolError{StatusCode: statusCode, URL: endpoint}
	}

	list, err := parsePodList(endpoint, statusCode, body)
	if err != nil {
		instrumentation.UpstreamRequests.WithLabelValues(instrumentation.APICluster, instrumentation.OutcomeError).Inc()
		return nil, err
	}

	instrumentation.UpstreamRequests.WithLabelValues(instrumentation.APICluster, instrumentation.OutcomeSuccess).Inc()
	logger.V(1).Info("Listed pods", "namespace", namespace, "count", len(list.Items))

	return list.Items, nil
}

// Name identifies the cluster API in readiness output
func (c *ClusterClient) Name() string {
	return "cluster-api"
}

// Ping checks that the cluster API answers its version endpoint
func (c *ClusterClient) Ping(ctx context.Context) error {
	if err := c.restClient.Get().AbsPath("/version").MaxRetries(0).Do(ctx).Error(); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}
