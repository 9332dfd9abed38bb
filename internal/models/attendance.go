package models

type ActionKind string

const (
	CheckIn  ActionKind = "checkin"
	CheckOut ActionKind = "checkout"
)

// WireType is the attendanceType value the remote action endpoint expects.
func (k ActionKind) WireType() string {
	if k == CheckOut {
		return "签退"
	}
	return "签到"
}

func (k ActionKind) Label() string {
	if k == CheckOut {
		return "check-out"
	}
	return "check-in"
}

func (k ActionKind) Valid() bool {
	return k == CheckIn || k == CheckOut
}

// AttendanceRecord is one day of history. Empty SignIn/SignOut means the
// event is missing for that day.
type AttendanceRecord struct {
	Date    string
	SignIn  string
	SignOut string
}

type ActionResult struct {
	Kind    ActionKind
	Success bool
	Message string
	Site    Site
	Point   Point
}
