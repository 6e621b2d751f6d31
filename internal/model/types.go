package model

type EventName string

const (
	EventRegisterPrinter     EventName = "register_printer"
	EventRegistrationSuccess EventName = "registration_success"
	EventRegistrationFailed  EventName = "registration_failed"
	EventRegistrationError   EventName = "registration_error"
	EventUnregister          EventName = "unregister"
	EventPing                EventName = "ping"
	EventPong                EventName = "pong"
	EventPrintJob            EventName = "print_job"
	EventHealthCheck         EventName = "health_check"
	EventHealthResponse      EventName = "health_response"
	EventPrinterCommand      EventName = "printer_command"
	EventCommandResult       EventName = "command_result"

	printResultPrefix = "print_result_"
)

// PrintResultEvent is the per-job result event name the server subscribes to.
func PrintResultEvent(jobID string) EventName {
	return EventName(printResultPrefix + jobID)
}

// ConnState is the Connection Supervisor state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateRegistering
	StateActive
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateRegistering:
		return "REGISTERING"
	case StateActive:
		return "ACTIVE"
	default:
		return "UNKNOWN"
	}
}

// JobState tracks a job through the dispatch pipeline.
type JobState string

const (
	JobReceived          JobState = "RECEIVED"
	JobTemplateResolved  JobState = "TEMPLATE_RESOLVED"
	JobRendered          JobState = "RENDERED"
	JobDeviceDelivered   JobState = "DEVICE_DELIVERED"
	JobDocumentDelivered JobState = "DOCUMENT_DELIVERED"
	JobReported          JobState = "REPORTED"
	JobRejected          JobState = "REJECTED"
)

// Channel identifies a delivery leg.
type Channel string

const (
	ChannelDevice   Channel = "device"
	ChannelDocument Channel = "document"
)

// ErrorKind is the failure classification carried in a DeliveryOutcome.
type ErrorKind string

const (
	ErrorKindNone                   ErrorKind = ""
	ErrorKindUnknownTemplate        ErrorKind = "UnknownTemplate"
	ErrorKindMissingField           ErrorKind = "MissingField"
	ErrorKindNotFound               ErrorKind = "NotFound"
	ErrorKindPermissionDenied       ErrorKind = "PermissionDenied"
	ErrorKindLink                   ErrorKind = "LinkError"
	ErrorKindHandleInvalid          ErrorKind = "HandleInvalid"
	ErrorKindMechanismFailed        ErrorKind = "MechanismFailed"
	ErrorKindAllMechanismsExhausted ErrorKind = "AllMechanismsExhausted"
)
