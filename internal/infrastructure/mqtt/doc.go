// Package mqtt provides MQTT client connectivity for the bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// MQTT is an optional side channel. The bridge publishes retained axis
// positions and its online status, and can accept controller commands on a
// command topic, answering on a response topic:
//
//	sws/{site}/axis/{axis}/position   retained axis position (JSON)
//	sws/{site}/system/status          online/offline (LWT)
//	sws/{site}/system/relay           relay counters (JSON)
//	sws/{site}/command                inbound controller command
//	sws/{site}/response               controller response
//
// # Security Considerations
//
//   - Commands received on the command topic reach the mount controller;
//     enable the command topic only on a broker with ACLs
//   - TLS is available through cfg.Broker.TLS
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Site.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Publish(client.Topics().AxisPosition("axis1"), payload, 1, true)
package mqtt
