package realtime

import (
	"errors"

	v1 "talkwire/shared/contracts/realtime/v1"
)

// Watch subscribes to topic and forwards only frames that decode into a valid
// E with a recognised action. Malformed frames are logged and dropped; frames
// with an unknown action are ignored. Neither affects other subscriptions.
func Watch[E interface{ Validate() error }](m *Manager, topic string, handle func(E)) error {
	if handle == nil {
		return ErrNilHandler
	}
	kind := v1.KindOf(topic)

	return m.Subscribe(topic, func(body []byte) {
		ev, err := v1.Decode[E](body)
		switch {
		case err == nil:
			m.metrics.frame(kind, outcomeDelivered)
			handle(ev)
		case errors.Is(err, v1.ErrUnknownAction):
			m.metrics.frame(kind, outcomeIgnored)
			m.log.Debug("realtime.frame.ignored", "topic", topic, "err", err)
		default:
			m.metrics.frame(kind, outcomeMalformed)
			m.log.Warn("realtime.frame.malformed", "topic", topic, "bytes", len(body), "err", err)
		}
	})
}
