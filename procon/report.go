package procon

import "sync"

// InputReport is a report sent to the host on the interrupt channel.
type InputReport []byte

var (
	reportPool = sync.Pool{
		New: func() any {
			report := InputReport(make([]byte, ReportSize))
			return &report
		},
	}
	emptyInputReport = [ReportSize]byte{InputPrefix}
)

// AllocReport returns a zeroed report with the prefix byte set.
func AllocReport() *InputReport {
	report := reportPool.Get().(*InputReport)
	copy((*report)[:], emptyInputReport[:])
	return report
}

// FreeReport returns a report obtained from AllocReport to the pool.
func FreeReport(report *InputReport) {
	if report == nil || cap(*report) != ReportSize {
		return
	}
	*report = (*report)[:ReportSize]
	reportPool.Put(report)
}

// ID returns the report identifier.
func (r InputReport) ID() byte { return r[offID] }

// Timer returns the report timer byte.
func (r InputReport) Timer() byte { return r[offTimer] }

// Buttons returns the three button bytes.
func (r InputReport) Buttons() [3]byte {
	return [3]byte(r[offButtons : offButtons+3])
}

// LeftStick returns the packed left stick field.
func (r InputReport) LeftStick() [3]byte {
	return [3]byte(r[offLeftStick : offLeftStick+3])
}

// RightStick returns the packed right stick field.
func (r InputReport) RightStick() [3]byte {
	return [3]byte(r[offRightStick : offRightStick+3])
}

// Ack returns the acknowledgement byte of a subcommand reply.
func (r InputReport) Ack() byte { return r[offAck] }

// ReplyTo returns the subcommand a reply answers.
func (r InputReport) ReplyTo() byte { return r[offReplyID] }

// ReplyData returns the subcommand reply payload.
func (r InputReport) ReplyData() []byte { return r[offReplyData:] }
