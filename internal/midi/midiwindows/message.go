package midiwindows

// shortMessage trims a packed WinMM short message to the length its
// status byte implies.
func shortMessage(status, data1, data2 byte) []byte {
	switch {
	case status >= 0xF8, status == 0xF6:
		return []byte{status}
	case status == 0xF1, status == 0xF3:
		return []byte{status, data1}
	case status >= 0xF0:
		return []byte{status, data1, data2}
	}
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		return []byte{status, data1}
	default:
		return []byte{status, data1, data2}
	}
}
