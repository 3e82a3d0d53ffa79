package kafka

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/flowengine/pkg/events"
)

func executionKey(_ string, msg *message.Message) (string, error) {
	return msg.Metadata.Get(events.EventMetadataKey), nil
}
