package labels

import "strconv"

// Tag keys written on instances and volumes.
const (
	// KeyLogicalID carries the caller's logical instance ID.
	KeyLogicalID = "DIRECTOR_ID"

	// KeyInstanceName carries the decorated instance name.
	KeyInstanceName = "INSTANCE_NAME"

	// KeyVolumeNumber carries the number of volumes per instance.
	KeyVolumeNumber = "VOLUME_NUMBER"

	// KeyVolumeSize carries the per-volume size in GB.
	KeyVolumeSize = "VOLUME_SIZE"

	// KeyManagedBy identifies the management system
	KeyManagedBy = "managed-by"
)

// ManagedByFleetalloc is the KeyManagedBy value for resources created here.
const ManagedByFleetalloc = "fleetalloc"

// LabelBuilder provides a fluent interface for building resource tags.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a builder with the logical instance ID pre-set.
func NewLabelBuilder(logicalID string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyLogicalID: logicalID,
			KeyManagedBy: ManagedByFleetalloc,
		},
	}
}

// WithInstanceName adds the decorated instance name.
func (lb *LabelBuilder) WithInstanceName(name string) *LabelBuilder {
	lb.labels[KeyInstanceName] = name
	return lb
}

// WithVolumes records the volume count and size hints.
func (lb *LabelBuilder) WithVolumes(count, sizeGB int) *LabelBuilder {
	lb.labels[KeyVolumeNumber] = strconv.Itoa(count)
	lb.labels[KeyVolumeSize] = strconv.Itoa(sizeGB)
	return lb
}

// Merge adds all labels from the provided map.
// The logical ID and managed-by keys cannot be overridden.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	for k, v := range extra {
		if k == KeyLogicalID || k == KeyManagedBy {
			continue
		}
		lb.labels[k] = v
	}
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	result := make(map[string]string, len(lb.labels))
	for k, v := range lb.labels {
		result[k] = v
	}
	return result
}

// LogicalID returns the logical instance ID carried by tags.
func LogicalID(tags map[string]string) (string, bool) {
	id, ok := tags[KeyLogicalID]
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// SelectorForManaged returns a label selector matching every resource that carries
// a logical ID.
func SelectorForManaged() string {
	return KeyLogicalID
}
