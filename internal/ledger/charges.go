package ledger

import (
	"sort"
	"strings"
	"time"
)

// NeverBilled is the start-index sentinel for a service that contributes no
// charge this session. Any value above 11 works; 999 matches the persisted
// convention.
const NeverBilled = 999

// Adjustment reasons written by the administrative assignment actions. The
// substring scan over free-text reasons survives only for history persisted
// before enrollments carried an explicit start date.
var serviceAssignReasons = map[ServiceType]string{
	ServiceHostel:    "Hostel Assigned",
	ServiceTransport: "Transport Assigned",
}

// StartIndex determines the academic-month index from which a service's
// monthly charge applies. The charge covers every month at or after the
// returned index.
//
// Resolution order: inactive enrollments are never billed; an explicit start
// date on the enrollment wins; otherwise the earliest adjustment-log entry
// whose reason mentions the service's assignment keyword; otherwise the
// admission date when the student joined mid-session; otherwise the session
// start.
func StartIndex(enr ServiceEnrollment, logs []AdjustmentLog, admissionDate, sessionStart time.Time) int {
	if !enr.Active {
		return NeverBilled
	}
	if enr.StartDate != nil {
		// The start date may fall outside the session being computed: a
		// service carried over from an earlier session bills from April, one
		// starting in a later session does not bill here at all.
		switch {
		case enr.StartDate.Before(sessionStart):
			return 0
		case !enr.StartDate.Before(sessionStart.AddDate(1, 0, 0)):
			return NeverBilled
		default:
			return AcademicIndex(*enr.StartDate)
		}
	}

	keyword := serviceAssignReasons[enr.Type]
	if keyword != "" {
		ordered := make([]AdjustmentLog, len(logs))
		copy(ordered, logs)
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Date.Before(ordered[j].Date)
		})
		for _, entry := range ordered {
			if strings.Contains(entry.Reason, keyword) {
				return AcademicIndex(entry.Date)
			}
		}
	}

	if admissionDate.After(sessionStart) {
		return AcademicIndex(admissionDate)
	}
	return 0
}
