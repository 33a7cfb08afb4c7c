package model

// StatusCode is the flight status reported by oracles and recorded on a Flight.
type StatusCode uint8

const (
	StatusUnknown       StatusCode = 0
	StatusOnTime        StatusCode = 10
	StatusLateAirline   StatusCode = 20 // Only this code triggers passenger credit
	StatusLateWeather   StatusCode = 30
	StatusLateTechnical StatusCode = 40
	StatusLateOther     StatusCode = 50
)

var statusNames = map[StatusCode]string{
	StatusUnknown:       "UNKNOWN",
	StatusOnTime:        "ON_TIME",
	StatusLateAirline:   "LATE_AIRLINE",
	StatusLateWeather:   "LATE_WEATHER",
	StatusLateTechnical: "LATE_TECHNICAL",
	StatusLateOther:     "LATE_OTHER",
}

// IsValid reports whether s is one of the codes an oracle may report.
// StatusUnknown is a default, not a reportable outcome.
func (s StatusCode) IsValid() bool {
	_, ok := statusNames[s]
	return ok && s != StatusUnknown
}

func (s StatusCode) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "INVALID"
}

// ReportableStatuses lists the codes accepted from oracles in ascending order.
func ReportableStatuses() []StatusCode {
	return []StatusCode{StatusOnTime, StatusLateAirline, StatusLateWeather, StatusLateTechnical, StatusLateOther}
}
