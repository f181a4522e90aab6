package enums

import "strings"

type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeLocation MessageType = "location"
	MessageTypeSystem   MessageType = "system"
)

// ParseMessageType defaults an empty value to text.
func ParseMessageType(raw string) (MessageType, bool) {
	value := MessageType(strings.ToLower(strings.TrimSpace(raw)))
	switch value {
	case "":
		return MessageTypeText, true
	case MessageTypeText, MessageTypeImage, MessageTypeLocation, MessageTypeSystem:
		return value, true
	default:
		return "", false
	}
}
