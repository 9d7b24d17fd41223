package socmonitor

import "github.com/golang/glog"

const (
	LogType = iota
	ErrorType
	EmailType
	StateType
)

// Event carries one observable occurrence through the monitor: an operator
// log line, a per-rig error, an email notification, or a cycle snapshot for
// the MQTT publisher.
type Event struct {
	Type int
	Addr string

	Subject string
	Message string
	Error   error
	State   *CycleState
}

func NewLogEvent(addr, message string) Event {
	return Event{Addr: addr, Type: LogType, Message: message}
}

func NewEmailEvent(addr, subject, message string) Event {
	return Event{Addr: addr, Type: EmailType, Subject: subject, Message: message}
}

func NewErrorEvent(addr string, err error) Event {
	return Event{Addr: addr, Type: ErrorType, Error: err}
}

func NewStateEvent(state *CycleState) Event {
	return Event{Type: StateType, State: state}
}

type EventService struct {
	E            chan Event
	EmailService EmailService
	Publisher    Publisher

	stop chan bool
}

func NewEventService() *EventService {
	return &EventService{
		E:    make(chan Event, 100),
		stop: make(chan bool, 1),
	}
}

// Start consumes events until Stop is called. Run it on its own goroutine.
func (es *EventService) Start() {
	for {
		select {
		case event := <-es.E:
			es.handle(event)
		case <-es.stop:
			glog.Infof("Event Service stopped")
			return
		}
	}
}

func (es *EventService) handle(event Event) {
	switch event.Type {
	case LogType:
		glog.Infof("[%s]: %s", event.Addr, event.Message)
	case ErrorType:
		glog.Infof("[%s] Error: %s", event.Addr, event.Error)
	case EmailType:
		if es.EmailService == nil {
			glog.V(1).Infof("email service not initialized, no email sent")
			return
		}
		if err := es.EmailService.SendEmail(event.Subject, event.Message); err != nil {
			glog.Infof("unable to send email: %s", err)
		} else {
			glog.Infof("[%s]: successfully sent email", event.Addr)
		}
	case StateType:
		if es.Publisher == nil {
			return
		}
		if err := es.Publisher.Publish(*event.State); err != nil {
			glog.Infof("unable to publish cycle state: %s", err)
		}
	default:
		glog.Infof("[%s]: unknown event received %+v", event.Addr, event)
	}
}

func (es *EventService) Stop() {
	es.stop <- true
}
