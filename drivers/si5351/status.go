package si5351

// Status is the live device status (register 0).
type Status struct {
	SysInit bool // calibration in progress
	LOLB    bool // PLLB loss of lock
	LOLA    bool // PLLA loss of lock
	LOS     bool // CLKIN loss of signal
	RevID   uint8
}

// IntStatus holds the sticky copies latched in register 1.
type IntStatus struct {
	SysInit bool
	LOLB    bool
	LOLA    bool
	LOS     bool
}

func decodeStatus(b byte) Status {
	return Status{
		SysInit: b&statusSysInit != 0,
		LOLB:    b&statusLOLB != 0,
		LOLA:    b&statusLOLA != 0,
		LOS:     b&statusLOS != 0,
		RevID:   b & statusRevID,
	}
}

func decodeIntStatus(b byte) IntStatus {
	return IntStatus{
		SysInit: b&statusSysInit != 0,
		LOLB:    b&statusLOLB != 0,
		LOLA:    b&statusLOLA != 0,
		LOS:     b&statusLOS != 0,
	}
}

// Locked reports whether both PLLs hold lock and the device is out of
// calibration.
func (s Status) Locked() bool { return !s.SysInit && !s.LOLA && !s.LOLB }

// UpdateStatus reads registers 0 and 1.
func (d *Device) UpdateStatus() (Status, IntStatus, error) {
	st, err := d.readReg(regDeviceStatus)
	if err != nil {
		return Status{}, IntStatus{}, err
	}
	ist, err := d.readReg(regInterruptStatus)
	if err != nil {
		return Status{}, IntStatus{}, err
	}
	return decodeStatus(st), decodeIntStatus(ist), nil
}
