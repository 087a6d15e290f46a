package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mehdiazizian/osmetrics-exporter/internal/instrumentation"
	"github.com/mehdiazizian/osmetrics-exporter/internal/quantity"
	"github.com/mehdiazizian/osmetrics-exporter/internal/transport"
	"github.com/mehdiazizian/osmetrics-exporter/internal/transport/dto"
)

// DefaultConcurrency is the worker pool size used when Concurrency is unset.
const DefaultConcurrency = 10

// Collector gathers per-container usage metrics for a set of namespaces.
type Collector struct {
	Pods    transport.PodLister
	Samples transport.SampleFetcher

	// Concurrency is the number of pods processed in parallel
	Concurrency int

	// MaxInflightFetches caps outbound sample fetches across the whole
	// collection. Zero means twice Concurrency, a negative value disables
	// the cap.
	MaxInflightFetches int
}

// Collect lists the pods of every namespace and returns their usage
// metrics. The first failure aborts the whole collection.
func (c *Collector) Collect(ctx context.Context, namespaces []string) ([]Metric, error) {
	start := time.Now()

	result, err := c.collect(ctx, namespaces)
	if err != nil {
		instrumentation.CollectionDuration.WithLabelValues(instrumentation.OutcomeError).Observe(time.Since(start).Seconds())
		return nil, err
	}

	instrumentation.CollectionDuration.WithLabelValues(instrumentation.OutcomeSuccess).Observe(time.Since(start).Seconds())
	return result, nil
}

func (c *Collector) collect(ctx context.Context, namespaces []string) ([]Metric, error) {
	logger := log.FromContext(ctx).WithName("collector")

	pods, err := c.listPods(ctx, namespaces)
	if err != nil {
		return nil, err
	}

	active := dto.ActivePods(pods)
	logger.V(1).Info("Collecting pod metrics",
		"pods", len(active),
		"terminal", len(pods)-len(active))

	workers := c.concurrency()
	if workers > len(active) {
		workers = len(active)
	}

	queue := make(chan int, len(active))
	for i := range active {
		queue <- i
	}
	close(queue)

	fetches := c.fetchLimiter()

	var (
		mu     sync.Mutex
		result []Metric
	)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := range queue {
				if err := gctx.Err(); err != nil {
					return err
				}

				podMetrics, err := c.collectPod(gctx, &active[i], fetches)
				if err != nil {
					return err
				}

				mu.Lock()
				result = append(result, podMetrics...)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	instrumentation.CollectedPods.Set(float64(len(active)))
	return result, nil
}

// listPods queries every namespace in parallel and concatenates the
// listings in namespace order.
func (c *Collector) listPods(ctx context.Context, namespaces []string) ([]dto.Pod, error) {
	listings := make([][]dto.Pod, len(namespaces))

	g, gctx := errgroup.WithContext(ctx)
	for i, namespace := range namespaces {
		i, namespace := i, namespace
		g.Go(func() error {
			pods, err := c.Pods.ListPods(gctx, namespace)
			if err != nil {
				return fmt.Errorf("failed to list pods in namespace %s: %w", namespace, err)
			}
			listings[i] = pods
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var pods []dto.Pod
	for _, listing := range listings {
		pods = append(pods, listing...)
	}
	return pods, nil
}

// collectPod fetches every (resource, container) sample of the pod
// concurrently and builds the pod's metrics, CPU first, each resource in
// container order.
func (c *Collector) collectPod(ctx context.Context, pod *dto.Pod, fetches *semaphore.Weighted) ([]Metric, error) {
	containers := pod.Spec.Containers
	samples := make([][]*dto.MetricSample, len(resourceKinds))

	g, gctx := errgroup.WithContext(ctx)
	for k, kind := range resourceKinds {
		k, kind := k, kind
		samples[k] = make([]*dto.MetricSample, len(containers))
		for i := range containers {
			i := i
			container := &containers[i]
			g.Go(func() error {
				sample, err := c.fetch(gctx, fetches, GaugeID(container.Name, string(pod.UID), kind.resource), pod.Namespace)
				if err != nil {
					return fmt.Errorf("failed to fetch %s usage for container %s of pod %s/%s: %w",
						kind.resource, container.Name, pod.Namespace, pod.Name, err)
				}
				samples[k][i] = sample
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Metric
	for k, kind := range resourceKinds {
		for i := range containers {
			built, err := buildMetrics(ctx, pod, &containers[i], kind, samples[k][i])
			if err != nil {
				return nil, err
			}
			out = append(out, built...)
		}
	}
	return out, nil
}

func (c *Collector) fetch(ctx context.Context, fetches *semaphore.Weighted, gaugeID, tenant string) (*dto.MetricSample, error) {
	if fetches != nil {
		if err := fetches.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer fetches.Release(1)
	}
	return c.Samples.FetchLatestSample(ctx, gaugeID, tenant)
}

// buildMetrics turns one sample into the usage metric plus the limits and
// requests ratios that are declared.
func buildMetrics(ctx context.Context, pod *dto.Pod, container *dto.Container, kind resourceKind, sample *dto.MetricSample) ([]Metric, error) {
	logger := log.FromContext(ctx).WithName("collector")

	if sample == nil {
		logger.Info("No recent sample",
			"warning", true,
			"resource", kind.resource,
			"pod", pod.Name,
			"container", container.Name,
			"namespace", pod.Namespace)
		return nil, nil
	}

	labels := Labels{
		{Name: "pod", Value: pod.Name},
		{Name: "container", Value: container.Name},
		{Name: "namespace", Value: pod.Namespace},
	}
	timestamp := Timestamp(sample.TimestampMillis)

	out := []Metric{{
		Name:      kind.usageName,
		Value:     sample.Value,
		Timestamp: timestamp,
		Type:      TypeGauge,
		Help:      kind.usageHelp,
		Labels:    labels,
	}}

	ratios := []struct {
		spec     string
		name     string
		declared func() (quantity.Quantity, bool)
	}{
		{SpecLimits, kind.limitsName, func() (quantity.Quantity, bool) { return container.DeclaredLimit(kind.resource) }},
		{SpecRequests, kind.requestsName, func() (quantity.Quantity, bool) { return container.DeclaredRequest(kind.resource) }},
	}

	for _, ratio := range ratios {
		declared, ok := ratio.declared()
		if !ok {
			continue
		}

		rate, err := ComputeRate(sample.Value, declared, kind.resource)
		if err != nil {
			return nil, fmt.Errorf("failed to compute %s %s rate for container %s of pod %s/%s: %w",
				kind.resource, ratio.spec, container.Name, pod.Namespace, pod.Name, err)
		}

		if rate.OverLimit {
			instrumentation.OverLimit.WithLabelValues(string(kind.resource), ratio.spec).Inc()
			logger.Info("Usage exceeds declared "+ratio.spec,
				"warning", true,
				"resource", kind.resource,
				"ratio", rate.Value,
				"declared", declared.String(),
				"pod", pod.Name,
				"container", container.Name,
				"namespace", pod.Namespace)
		}

		out = append(out, Metric{
			Name:      ratio.name,
			Value:     rate.Value,
			Timestamp: timestamp,
			Type:      TypeGauge,
			Help:      kind.rateHelp,
			Labels:    labels,
		})
	}

	return out, nil
}

func (c *Collector) concurrency() int {
	if c.Concurrency > 0 {
		return c.Concurrency
	}
	return DefaultConcurrency
}

// fetchLimiter returns the request-scoped fetch semaphore, or nil when
// fetches are unbounded.
func (c *Collector) fetchLimiter() *semaphore.Weighted {
	switch {
	case c.MaxInflightFetches < 0:
		return nil
	case c.MaxInflightFetches == 0:
		return semaphore.NewWeighted(int64(2 * c.concurrency()))
	default:
		return semaphore.NewWeighted(int64(c.MaxInflightFetches))
	}
}
