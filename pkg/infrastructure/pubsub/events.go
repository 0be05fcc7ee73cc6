package pubsub

import (
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// NewCloudEvent builds a v1.0 event with a JSON payload. subject is the
// metrics date (YYYY-MM-DD) the event describes.
func NewCloudEvent(source, eventType, subject string, data interface{}) (cloudevents.Event, error) {
	e := cloudevents.NewEvent(cloudevents.VersionV1)
	e.SetID(uuid.NewString())
	e.SetTime(time.Now().UTC())
	e.SetType(eventType)
	e.SetSource(source)
	if subject != "" {
		e.SetSubject(subject)
	}

	if err := e.SetData(cloudevents.ApplicationJSON, data); err != nil {
		return e, err
	}
	return e, nil
}
