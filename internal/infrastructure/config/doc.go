// Package config loads the bridge configuration.
//
// Load reads a YAML file over Default, applies SWS_* environment overrides
// and validates the result. Sections map one to one onto the bridge's parts:
//
//	site        observatory ID, used in MQTT topics
//	controller  link URL (serial://, tcp://, sim://), timeout, buffer size
//	scheduler   tick and latency budget
//	relay       catalog record limit
//	axes        encoder pins and poll intervals
//	telemetry   publish interval
//	api         HTTP listener, CORS, UI directory
//	websocket   console keepalive and frame limit
//	mqtt        broker, credentials, command topic
//	influxdb    URL, org, bucket, batching
//	logging     level, format, output, rotation
//
// Secrets (SWS_MQTT_PASSWORD, SWS_INFLUXDB_TOKEN) belong in the environment
// rather than in the file.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
package config
