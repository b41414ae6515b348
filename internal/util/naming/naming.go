package naming

import "fmt"

func Instance(prefix, logicalID string) string {
	return fmt.Sprintf("%s-%s", prefix, logicalID)
}

func Volume(instanceName string, index int) string {
	return fmt.Sprintf("%s-vol-%d", instanceName, index)
}

