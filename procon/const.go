package procon

// Report identifiers.
const (
	// InputPrefix precedes every report sent to the host on the interrupt channel.
	InputPrefix = 0xA1
	// OutputPrefix precedes every report received from the host.
	OutputPrefix = 0xA2

	ReportStandard      = 0x30
	ReportSubcommand    = 0x21
	OutputRumbleCommand = 0x01
	OutputRumbleOnly    = 0x10
)

// ReportSize is the length of standard and subcommand reply reports.
const ReportSize = 50

// HeaderSize is the number of leading bytes that change on every report
// (prefix, report id, timer) regardless of input.
const HeaderSize = 3

// Byte offsets inside an input report.
const (
	offID         = 1
	offTimer      = 2
	offConnInfo   = 3
	offButtons    = 4
	offLeftStick  = 7
	offRightStick = 10
	offVibrator   = 13
	offIMU        = 14
	offAck        = 14
	offReplyID    = 15
	offReplyData  = 16
)

// connInfo reports a full battery and the Pro Controller connection type.
const connInfo = 0x90

const vibratorNeutral = 0x80

// Button bits of the right-hand byte.
const (
	ButtonY   = 0x01
	ButtonX   = 0x02
	ButtonB   = 0x04
	ButtonA   = 0x08
	ButtonRSR = 0x10
	ButtonRSL = 0x20
	ButtonR   = 0x40
	ButtonZR  = 0x80
)

// Button bits of the shared byte.
const (
	ButtonMinus   = 0x01
	ButtonPlus    = 0x02
	ButtonRStick  = 0x04
	ButtonLStick  = 0x08
	ButtonHome    = 0x10
	ButtonCapture = 0x20
)

// Button bits of the left-hand byte.
const (
	ButtonDown  = 0x01
	ButtonUp    = 0x02
	ButtonRight = 0x04
	ButtonLeft  = 0x08
	ButtonLSR   = 0x10
	ButtonLSL   = 0x20
	ButtonL     = 0x40
	ButtonZL    = 0x80
)

// Subcommand identifiers sent by the host inside rumble+subcommand reports.
const (
	SubcmdDeviceInfo      = 0x02
	SubcmdSetInputMode    = 0x03
	SubcmdTriggerElapsed  = 0x04
	SubcmdShipmentState   = 0x08
	SubcmdSPIRead         = 0x10
	SubcmdMCUConfig       = 0x21
	SubcmdMCUState        = 0x22
	SubcmdPlayerLights    = 0x30
	SubcmdHomeLight       = 0x38
	SubcmdIMUEnable       = 0x40
	SubcmdVibrationEnable = 0x48
)

// InputMode is the report format requested by the host.
type InputMode byte

const (
	InputStandard  InputMode = 0x30
	InputNFCIR     InputMode = 0x31
	InputSimpleHID InputMode = 0x3F
)

// Firmware reported in device info replies.
const (
	firmwareMajor  = 0x03
	firmwareMinor  = 0x8B
	controllerType = 0x03
)
