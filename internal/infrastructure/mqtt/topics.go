package mqtt

// TopicPrefix is the root of every bridge topic.
const TopicPrefix = "sws"

// Topics builds the MQTT topics of one site.
// Every topic lives under sws/{site}/, so several bridges can share a broker.
//
//	topics := mqtt.Topics{Site: "observatory"}
//	topics.AxisPosition("axis1")
//	// Returns: "sws/observatory/axis/axis1/position"
type Topics struct {
	Site string
}

func (t Topics) base() string {
	return TopicPrefix + "/" + t.Site
}

// AxisPosition returns the retained position topic for an axis.
func (t Topics) AxisPosition(axis string) string {
	return t.base() + "/axis/" + axis + "/position"
}

// RelayStats returns the topic carrying periodic relay counters.
func (t Topics) RelayStats() string {
	return t.base() + "/system/relay"
}

// SystemStatus returns the bridge online/offline status topic (LWT).
func (t Topics) SystemStatus() string {
	return t.base() + "/system/status"
}

// Command returns the topic on which controller commands are accepted.
func (t Topics) Command() string {
	return t.base() + "/command"
}

// Response returns the topic on which command responses are published.
func (t Topics) Response() string {
	return t.base() + "/response"
}
