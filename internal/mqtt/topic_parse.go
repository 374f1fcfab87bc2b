package mqtt

import (
	"fmt"
	"strings"
)

// expected: {prefix}/sensor/{nodeId}/{kind}
func ParseSensorTopic(topic, prefix string) (nodeID, kind string, err error) {
	parts := strings.Split(topic, "/")
	prefixParts := strings.Split(prefix, "/")
	if len(parts) != len(prefixParts)+3 {
		return "", "", fmt.Errorf("invalid topic: %s", topic)
	}
	for i, p := range prefixParts {
		if parts[i] != p {
			return "", "", fmt.Errorf("topic prefix mismatch: %s", topic)
		}
	}
	if parts[len(prefixParts)] != "sensor" {
		return "", "", fmt.Errorf("invalid topic pattern: %s", topic)
	}
	nodeID = parts[len(prefixParts)+1]
	kind = parts[len(prefixParts)+2]
	if nodeID == "" || kind == "" {
		return "", "", fmt.Errorf("invalid topic: %s", topic)
	}
	return nodeID, kind, nil
}
