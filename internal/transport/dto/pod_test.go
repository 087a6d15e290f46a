package dto_test

import (
	"encoding/json"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	corev1 "k8s.io/api/core/v1"

	"github.com/mehdiazizian/osmetrics-exporter/internal/quantity"
	"github.com/mehdiazizian/osmetrics-exporter/internal/transport/dto"
)

func TestDTO(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "DTO Suite")
}

var _ = Describe("Container resources", func() {
	decode := func(raw string) dto.Container {
		var c dto.Container
		Expect(json.Unmarshal([]byte(raw), &c)).To(Succeed())
		return c
	}

	It("should expose declared limits and requests", func() {
		c := decode(`{"name": "app", "resources": {"limits": {"cpu": "1", "memory": 1048576}, "requests": {"memory": "64Mi"}}}`)

		cpu, ok := c.DeclaredLimit(quantity.CPU)
		Expect(ok).To(BeTrue())
		Expect(cpu.String()).To(Equal("1"))

		memory, ok := c.DeclaredLimit(quantity.Memory)
		Expect(ok).To(BeTrue())
		Expect(memory.IsNumber()).To(BeTrue())

		_, ok = c.DeclaredRequest(quantity.CPU)
		Expect(ok).To(BeFalse())
	})

	DescribeTable("should treat empty values as not declared",
		func(raw string) {
			c := decode(raw)
			_, ok := c.DeclaredLimit(quantity.CPU)
			Expect(ok).To(BeFalse())
		},
		Entry("no resources", `{"name": "app"}`),
		Entry("no limits block", `{"name": "app", "resources": {}}`),
		Entry("null entry", `{"name": "app", "resources": {"limits": {"cpu": null}}}`),
		Entry("empty string", `{"name": "app", "resources": {"limits": {"cpu": ""}}}`),
		Entry("zero number", `{"name": "app", "resources": {"limits": {"cpu": 0}}}`),
	)
})

var _ = Describe("ActivePods", func() {
	It("should drop terminal pods and keep order", func() {
		pods := []dto.Pod{
			{Status: dto.PodStatus{Phase: corev1.PodRunning}},
			{Status: dto.PodStatus{Phase: corev1.PodSucceeded}},
			{Status: dto.PodStatus{Phase: "Evicted"}},
			{Status: dto.PodStatus{Phase: corev1.PodFailed}},
			{Status: dto.PodStatus{Phase: corev1.PodPending}},
		}
		pods[0].Name, pods[2].Name, pods[4].Name = "a", "b", "c"

		active := dto.ActivePods(pods)

		Expect(active).To(HaveLen(3))
		Expect([]string{active[0].Name, active[1].Name, active[2].Name}).To(Equal([]string{"a", "b", "c"}))
	})
})

var _ = Describe("ToMetricSample", func() {
	It("should take the first point", func() {
		sample := dto.ToMetricSample([]dto.GaugeDataPoint{{Timestamp: 2, Value: 3.5}, {Timestamp: 1, Value: 1}})

		Expect(sample).To(Equal(&dto.MetricSample{Value: 3.5, TimestampMillis: 2}))
	})

	It("should return nil for an empty listing", func() {
		Expect(dto.ToMetricSample(nil)).To(BeNil())
	})
})
