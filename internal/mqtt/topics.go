package mqtt

import "fmt"

func TopicSensorField(prefix, field string) string {
	return fmt.Sprintf("%s/sensor/+/%s", prefix, field)
}

func TopicSensorOnline(prefix string) string {
	return fmt.Sprintf("%s/sensor/+/online", prefix)
}

func TopicSensorHeartbeat(prefix string) string {
	return fmt.Sprintf("%s/sensor/+/heartbeat", prefix)
}

func TopicDecision(prefix string) string {
	return fmt.Sprintf("%s/agent/decision", prefix)
}

func TopicStatus(prefix string) string {
	return fmt.Sprintf("%s/agent/status", prefix)
}

func TopicSay(prefix string) string {
	return fmt.Sprintf("%s/agent/say", prefix)
}
