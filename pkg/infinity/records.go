package infinity

// System is one HVAC system's live readings: outdoor temperature, operating
// mode, and the present zones in the order the thermostat reports them.
// Values are a point-in-time snapshot; nothing is cached across fetches.
type System struct {
	Serial      string
	OutdoorTemp float64
	Mode        string
	Zones       []Zone
}

// Zone is one zone's combined configuration and live state.
type Zone struct {
	ID           string
	Name         string
	Temp         float64
	Humidity     float64
	Activity     string
	HeatSetpoint float64
	CoolSetpoint float64
	Fan          string
	Status       string
	Hold         bool
	HoldUntil    string
}

// ZoneProfile is the static configuration of a zone slot. Multi-zone
// systems report more slots than are physically installed; Present marks
// the ones that exist.
type ZoneProfile struct {
	ID      string
	Name    string
	Present bool
}

// SetpointRequest describes a setpoint/hold change for one zone. Nil
// setpoints are left untouched. An empty HoldUntil holds indefinitely;
// otherwise it is a local HH:MM time.
type SetpointRequest struct {
	Heat      *float64
	Cool      *float64
	HoldUntil string
}

func (r SetpointRequest) validate() error {
	if r.Heat == nil && r.Cool == nil {
		return ErrNoSetpoint
	}
	if r.HoldUntil != "" && !validHoldUntil(r.HoldUntil) {
		return ErrInvalidHoldUntil
	}
	return nil
}

func validHoldUntil(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	hh := int(s[0]-'0')*10 + int(s[1]-'0')
	mm := int(s[3]-'0')*10 + int(s[4]-'0')
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return hh < 24 && mm < 60
}

// ValidMode reports whether mode is one the portal accepts for writes.
func ValidMode(mode string) bool {
	switch mode {
	case "off", "heat", "cool", "auto", "fanonly":
		return true
	}
	return false
}

// normalizeMode folds the thermostat's equipment-specific mode names into
// the user-facing set.
func normalizeMode(raw string) string {
	switch raw {
	case "gasheat", "electric", "hpheat":
		return "heat"
	case "dehumidify":
		return "cool"
	}
	return raw
}
