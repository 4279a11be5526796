package procon

import "strings"

// buttonBit locates a named button in the three button bytes.
type buttonBit struct {
	index int
	mask  byte
}

var buttonTable = map[string]buttonBit{
	"Y":       {0, ButtonY},
	"X":       {0, ButtonX},
	"B":       {0, ButtonB},
	"A":       {0, ButtonA},
	"JCR_SR":  {0, ButtonRSR},
	"JCR_SL":  {0, ButtonRSL},
	"R":       {0, ButtonR},
	"ZR":      {0, ButtonZR},
	"MINUS":   {1, ButtonMinus},
	"PLUS":    {1, ButtonPlus},
	"R_STICK": {1, ButtonRStick},
	"L_STICK": {1, ButtonLStick},
	"HOME":    {1, ButtonHome},
	"CAPTURE": {1, ButtonCapture},
	"DOWN":    {2, ButtonDown},
	"UP":      {2, ButtonUp},
	"RIGHT":   {2, ButtonRight},
	"LEFT":    {2, ButtonLeft},
	"JCL_SR":  {2, ButtonLSR},
	"JCL_SL":  {2, ButtonLSL},
	"L":       {2, ButtonL},
	"ZL":      {2, ButtonZL},
}

// ButtonNames lists every button name accepted by PackButtons in report bit order.
var ButtonNames = []string{
	"Y", "X", "B", "A", "JCR_SR", "JCR_SL", "R", "ZR",
	"MINUS", "PLUS", "R_STICK", "L_STICK", "HOME", "CAPTURE",
	"DOWN", "UP", "RIGHT", "LEFT", "JCL_SR", "JCL_SL", "L", "ZL",
}

// PackButtons converts button names into the three report button bytes.
// Names are case-insensitive. Unknown names are returned separately.
func PackButtons(names []string) (out [3]byte, unknown []string) {
	for _, n := range names {
		b, ok := buttonTable[strings.ToUpper(strings.TrimSpace(n))]
		if !ok {
			unknown = append(unknown, n)
			continue
		}
		out[b.index] |= b.mask
	}
	return out, unknown
}

// UnpackButtons returns the names of the buttons set in b, in report bit order.
func UnpackButtons(b [3]byte) []string {
	var names []string
	for _, n := range ButtonNames {
		bit := buttonTable[n]
		if b[bit.index]&bit.mask != 0 {
			names = append(names, n)
		}
	}
	return names
}
