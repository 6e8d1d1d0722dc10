// Package websocket provides Display, the terminal routine of a video
// pipeline. Display records the exit of every message, reports its latency
// and pushes it to websocket viewers connected to its endpoint.
//
// Each websocket text frame carries one message in the JSON envelope produced
// by message.Message.Encode:
//
//	conn, _, err := websocket.DefaultDialer.Dial("ws://host:8090/video", nil)
//	_, data, err := conn.ReadMessage()
//	msg, err := message.NewGenerator().Decode(data)
package websocket
