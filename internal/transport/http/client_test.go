package http_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/rest"

	"github.com/mehdiazizian/osmetrics-exporter/internal/instrumentation"
	"github.com/mehdiazizian/osmetrics-exporter/internal/transport"
	transporthttp "github.com/mehdiazizian/osmetrics-exporter/internal/transport/http"
)

func TestTransportHTTP(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Transport HTTP Suite")
}

const podListBody = `{
  "kind": "PodList",
  "apiVersion": "v1",
  "metadata": {},
  "items": [
    {
      "metadata": {"name": "web-1", "namespace": "shop", "uid": "uid-1"},
      "spec": {"containers": [
        {"name": "app", "resources": {"limits": {"cpu": "500m", "memory": "1Gi"}, "requests": {"cpu": 0.25}}},
        {"name": "sidecar", "resources": {}}
      ]},
      "status": {"phase": "Running"}
    },
    {
      "metadata": {"name": "job-1", "namespace": "shop", "uid": "uid-2"},
      "spec": {"containers": [{"name": "task"}]},
      "status": {"phase": "Succeeded"}
    }
  ]
}`

var _ = Describe("ClusterClient", func() {
	var (
		ctx      context.Context
		server   *httptest.Server
		handler  http.HandlerFunc
		client   *transporthttp.ClusterClient
		lastPath string
		lastAuth string
	)

	BeforeEach(func() {
		ctx = context.Background()
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, podListBody)
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lastPath = r.URL.Path
			lastAuth = r.Header.Get("Authorization")
			handler(w, r)
		}))
		var err error
		client, err = transporthttp.NewClusterClientForConfig(&rest.Config{Host: server.URL, BearerToken: "secret"})
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	Context("ListPods", func() {
		It("should return every pod of the namespace verbatim", func() {
			before := testutil.ToFloat64(instrumentation.UpstreamRequests.WithLabelValues(
				instrumentation.APICluster, instrumentation.OutcomeSuccess))

			pods, err := client.ListPods(ctx, "shop")

			Expect(err).ToNot(HaveOccurred())
			Expect(lastPath).To(Equal("/api/v1/namespaces/shop/pods"))
			Expect(lastAuth).To(Equal("Bearer secret"))
			Expect(pods).To(HaveLen(2))
			Expect(pods[0].Name).To(Equal("web-1"))
			Expect(string(pods[0].UID)).To(Equal("uid-1"))
			Expect(pods[0].Spec.Containers).To(HaveLen(2))
			Expect(pods[1].Status.Phase).To(Equal(corev1.PodSucceeded))

			limit, ok := pods[0].Spec.Containers[0].Resources.Limits.Get("cpu")
			Expect(ok).To(BeTrue())
			Expect(limit.String()).To(Equal("500m"))
			request, ok := pods[0].Spec.Containers[0].Resources.Requests.Get("cpu")
			Expect(ok).To(BeTrue())
			Expect(request.IsNumber()).To(BeTrue())

			Expect(testutil.ToFloat64(instrumentation.UpstreamRequests.WithLabelValues(
				instrumentation.APICluster, instrumentation.OutcomeSuccess))).To(Equal(before + 1))
		})

		It("should not retry a failed listing", func() {
			calls := 0
			handler = func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusServiceUnavailable)
			}

			_, err := client.ListPods(ctx, "shop")

			var protocolErr *transport.UpstreamProtocolError
			Expect(errors.As(err, &protocolErr)).To(BeTrue())
			Expect(calls).To(Equal(1))
		})

		It("should name the endpoint once when the cluster API is unreachable", func() {
			server.Close()

			_, err := client.ListPods(ctx, "shop")

			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(HavePrefix("request to " + server.URL + "/api/v1/namespaces/shop/pods failed"))
			Expect(err.Error()).ToNot(ContainSubstring("failed to list pods"))
		})

		It("should fail naming the actual kind", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"kind": "Status", "items": []}`)
			}

			_, err := client.ListPods(ctx, "shop")

			var protocolErr *transport.UpstreamProtocolError
			Expect(errors.As(err, &protocolErr)).To(BeTrue())
			Expect(protocolErr.Kind).To(Equal("Status"))
			Expect(err.Error()).To(ContainSubstring(`"Status"`))
		})

		It("should fail when the discriminator is missing", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"items": []}`)
			}

			_, err := client.ListPods(ctx, "shop")

			var protocolErr *transport.UpstreamProtocolError
			Expect(errors.As(err, &protocolErr)).To(BeTrue())
			Expect(protocolErr.Kind).To(BeEmpty())
		})

		DescribeTable("should reject bodies that are not objects",
			func(body, shape string) {
				handler = func(w http.ResponseWriter, r *http.Request) {
					fmt.Fprint(w, body)
				}

				_, err := client.ListPods(ctx, "shop")

				var protocolErr *transport.UpstreamProtocolError
				Expect(errors.As(err, &protocolErr)).To(BeTrue())
				Expect(protocolErr.Shape).To(Equal(shape))
				Expect(err.Error()).To(ContainSubstring("expected cluster API to return an object but got " + shape))
			},
			Entry("array", `[]`, "an array"),
			Entry("null", `null`, "null"),
			Entry("string", `"PodList"`, "a string"),
			Entry("number", `42`, "a number"),
		)

		DescribeTable("should fail naming status and URL",
			func(status int) {
				handler = func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(status)
				}

				_, err := client.ListPods(ctx, "shop")

				var protocolErr *transport.UpstreamProtocolError
				Expect(errors.As(err, &protocolErr)).To(BeTrue())
				Expect(protocolErr.StatusCode).To(Equal(status))
				Expect(err.Error()).To(ContainSubstring(fmt.Sprintf("status code %d", status)))
				Expect(err.Error()).To(ContainSubstring(server.URL + "/api/v1/namespaces/shop/pods"))
			},
			Entry("no content", http.StatusNoContent),
			Entry("unauthorized", http.StatusUnauthorized),
			Entry("forbidden", http.StatusForbidden),
			Entry("internal error", http.StatusInternalServerError),
		)

		It("should report a body that is not JSON as malformed", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "<html>gateway</html>")
			}

			_, err := client.ListPods(ctx, "shop")

			var malformed *transport.MalformedPayloadError
			Expect(errors.As(err, &malformed)).To(BeTrue())
			Expect(malformed.Body).To(Equal("<html>gateway</html>"))
		})
	})
})

var _ = Describe("GaugeClient", func() {
	var (
		ctx        context.Context
		server     *httptest.Server
		handler    http.HandlerFunc
		client     *transporthttp.GaugeClient
		lastPath   string
		lastQuery  string
		lastTenant string
		lastAccept string
	)

	BeforeEach(func() {
		ctx = context.Background()
		handler = func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `[{"timestamp": 1500000000000, "value": 12.5}]`)
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lastPath = r.URL.EscapedPath()
			lastQuery = r.URL.RawQuery
			lastTenant = r.Header.Get(transporthttp.TenantHeader)
			lastAccept = r.Header.Get("Accept")
			handler(w, r)
		}))
		client = transporthttp.NewGaugeClient(server.URL, "secret", server.Client())
	})

	AfterEach(func() {
		server.Close()
	})

	Context("FetchLatestSample", func() {
		It("should return the first data point", func() {
			sample, err := client.FetchLatestSample(ctx, "app/uid-1/cpu/usage_rate", "shop")

			Expect(err).ToNot(HaveOccurred())
			Expect(sample).ToNot(BeNil())
			Expect(sample.Value).To(Equal(12.5))
			Expect(sample.TimestampMillis).To(Equal(int64(1500000000000)))
			Expect(lastPath).To(Equal("/metrics/gauges/app%2Fuid-1%2Fcpu%2Fusage_rate/raw"))
			Expect(lastQuery).To(Equal("limit=1"))
			Expect(lastTenant).To(Equal("shop"))
			Expect(lastAccept).To(Equal("application/json"))
		})

		It("should resolve 204 to no sample", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			}

			sample, err := client.FetchLatestSample(ctx, "app/uid-1/memory/usage", "shop")

			Expect(err).ToNot(HaveOccurred())
			Expect(sample).To(BeNil())
		})

		It("should resolve an empty listing to no sample", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `[]`)
			}

			sample, err := client.FetchLatestSample(ctx, "app/uid-1/memory/usage", "shop")

			Expect(err).ToNot(HaveOccurred())
			Expect(sample).To(BeNil())
		})

		It("should resolve a null body to no sample", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `null`)
			}

			sample, err := client.FetchLatestSample(ctx, "app/uid-1/memory/usage", "shop")

			Expect(err).ToNot(HaveOccurred())
			Expect(sample).To(BeNil())
		})

		It("should fail on a status outside 2xx", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			}

			_, err := client.FetchLatestSample(ctx, "app/uid-1/memory/usage", "shop")

			var statusErr *transport.UpstreamStatusError
			Expect(errors.As(err, &statusErr)).To(BeTrue())
			Expect(statusErr.StatusCode).To(Equal(http.StatusBadGateway))
			Expect(statusErr.URL).To(HavePrefix(server.URL + "/metrics/gauges/"))
		})

		It("should attach the raw body to a parse failure", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "not json")
			}

			_, err := client.FetchLatestSample(ctx, "app/uid-1/memory/usage", "shop")

			var malformed *transport.MalformedPayloadError
			Expect(errors.As(err, &malformed)).To(BeTrue())
			Expect(malformed.Body).To(Equal("not json"))
			Expect(errors.Unwrap(malformed)).To(HaveOccurred())
		})
	})
})

type fakePinger struct {
	name string
	err  error
}

func (f *fakePinger) Name() string                 { return f.name }
func (f *fakePinger) Ping(_ context.Context) error { return f.err }

var _ = Describe("UpstreamProber", func() {
	It("should not be ready before the first probe", func() {
		prober := transporthttp.NewUpstreamProber(time.Minute, &fakePinger{name: "cluster-api"})

		Expect(prober.Check(nil)).To(MatchError(ContainSubstring("not probed")))
	})

	It("should report the failing upstream after probing", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		healthy := &fakePinger{name: "cluster-api"}
		failing := &fakePinger{name: "metrics-api", err: errors.New("connection refused")}
		prober := transporthttp.NewUpstreamProber(time.Hour, healthy, failing)

		done := make(chan error, 1)
		go func() { done <- prober.Start(ctx) }()

		Eventually(func() error { return prober.Check(nil) }).
			Should(MatchError(ContainSubstring("metrics-api: connection refused")))

		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})

	It("should be ready when every upstream answers", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		prober := transporthttp.NewUpstreamProber(time.Hour,
			&fakePinger{name: "cluster-api"}, &fakePinger{name: "metrics-api"})
		go func() { _ = prober.Start(ctx) }()

		Eventually(func() error { return prober.Check(nil) }).Should(Succeed())
	})

	It("should ping the real endpoints", func() {
		var paths []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			paths = append(paths, r.URL.Path)
		}))
		defer server.Close()

		cluster, err := transporthttp.NewClusterClientForConfig(&rest.Config{Host: server.URL, BearerToken: "t"})
		Expect(err).ToNot(HaveOccurred())
		gauges := transporthttp.NewGaugeClient(server.URL, "t", server.Client())

		Expect(cluster.Ping(context.Background())).To(Succeed())
		Expect(gauges.Ping(context.Background())).To(Succeed())
		Expect(paths).To(Equal([]string{"/version", "/metrics/status"}))
	})
})
