package dto

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/mehdiazizian/osmetrics-exporter/internal/quantity"
)

// KindPodList is the discriminator the cluster API sets on pod listings.
const KindPodList = "PodList"

// PodList is the envelope returned by GET /api/v1/namespaces/{ns}/pods.
// Only the fields the exporter reads are modelled.
type PodList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`

	Items []Pod `json:"items"`
}

// Pod is a single workload pod as listed by the cluster API.
type Pod struct {
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   PodSpec   `json:"spec"`
	Status PodStatus `json:"status"`
}

// PodSpec carries the ordered container list of a pod.
type PodSpec struct {
	Containers []Container `json:"containers"`
}

// PodStatus carries the lifecycle phase. Phases outside the well-known
// set are kept as opaque strings.
type PodStatus struct {
	Phase corev1.PodPhase `json:"phase,omitempty"`
}

// Container is one container of a pod with its declared resources.
type Container struct {
	Name      string               `json:"name"`
	Resources ResourceRequirements `json:"resources,omitempty"`
}

// ResourceRequirements holds the optional limits and requests blocks.
type ResourceRequirements struct {
	Limits   *ResourceList `json:"limits,omitempty"`
	Requests *ResourceList `json:"requests,omitempty"`
}

// ResourceList holds the cpu and memory entries of a limits or requests
// block. Other resource names are ignored.
type ResourceList struct {
	CPU    *quantity.Quantity `json:"cpu,omitempty"`
	Memory *quantity.Quantity `json:"memory,omitempty"`
}

// Get returns the declared quantity for a resource. A missing block, a
// missing entry, an empty string or a zero number all count as not
// declared.
func (r *ResourceList) Get(resource quantity.Resource) (quantity.Quantity, bool) {
	if r == nil {
		return quantity.Quantity{}, false
	}

	var q *quantity.Quantity
	switch resource {
	case quantity.CPU:
		q = r.CPU
	case quantity.Memory:
		q = r.Memory
	}

	if q == nil || q.IsZero() {
		return quantity.Quantity{}, false
	}
	return *q, true
}

// IsTerminal reports whether the pod has finished running. Terminal pods
// have no live usage and are skipped by collection.
func (p *Pod) IsTerminal() bool {
	return p.Status.Phase == corev1.PodSucceeded || p.Status.Phase == corev1.PodFailed
}
