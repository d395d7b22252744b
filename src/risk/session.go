package risk

import (
	"time"
)

// ----- session labels -----

type Session string

const (
	SessionClosed     Session = "closed"
	SessionPreMarket  Session = "pre_market"
	SessionRegular    Session = "regular"
	SessionAfterHours Session = "after_hours"

	DaysPerWeek          = 7
	OffsetDaysObserved   = 1
	NewYearDay           = 1
	ThirdMondayOffset    = 2
	FourthThursdayOffset = 3
)

// minutes after midnight, New York time
const (
	preMarketOpen  = 4 * 60
	regularOpen    = 9*60 + 30
	regularClose   = 16 * 60
	afterHoursEnds = 20 * 60
)

// DetectSession labels now with the US equity session it falls in.
func DetectSession(now time.Time) Session {
	et := getEasternTime(now)

	if et.Weekday() == time.Saturday || et.Weekday() == time.Sunday || isHoliday(et) {
		return SessionClosed
	}

	m := et.Hour()*60 + et.Minute()
	switch {
	case m >= preMarketOpen && m < regularOpen:
		return SessionPreMarket
	case m >= regularOpen && m < regularClose:
		return SessionRegular
	case m >= regularClose && m < afterHoursEnds:
		return SessionAfterHours
	default:
		return SessionClosed
	}
}

func IsRegularSession(now time.Time) bool {
	return DetectSession(now) == SessionRegular
}

func getEasternTime(t time.Time) time.Time {
	nyLocation, err := time.LoadLocation("America/New_York")
	if err != nil {
		return t.UTC()
	}
	return t.In(nyLocation)
}

func isHoliday(t time.Time) bool {
	year := t.Year()

	newYearsDay := observed(time.Date(year, time.January, NewYearDay, 0, 0, 0, 0, time.UTC))

	// Martin Luther King Jr. Day and Presidents' Day
	mlkDay := calculateSpecificMonday(year, time.January, ThirdMondayOffset)
	presidentsDay := calculateSpecificMonday(year, time.February, ThirdMondayOffset)

	goodFriday := easterSunday(year).AddDate(0, 0, -2)

	memorialDay := time.Date(year, time.May, 31, 0, 0, 0, 0, time.UTC)
	for memorialDay.Weekday() != time.Monday {
		memorialDay = memorialDay.AddDate(0, 0, -1)
	}

	juneteenth := observed(time.Date(year, time.June, 19, 0, 0, 0, 0, time.UTC))
	independenceDay := observed(time.Date(year, time.July, 4, 0, 0, 0, 0, time.UTC))
	laborDay := calculateSpecificMonday(year, time.September, 0)
	thanksgivingDay := calculateSpecificThursday(year, time.November, FourthThursdayOffset)
	christmasDay := observed(time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC))

	holidays := []time.Time{
		newYearsDay,
		mlkDay,
		presidentsDay,
		goodFriday,
		memorialDay,
		juneteenth,
		independenceDay,
		laborDay,
		thanksgivingDay,
		christmasDay,
	}
	return isDateAmong(t, holidays)
}

// observed moves a Sunday holiday to Monday and a Saturday holiday to Friday.
func observed(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Sunday:
		return d.AddDate(0, 0, OffsetDaysObserved)
	case time.Saturday:
		return d.AddDate(0, 0, -OffsetDaysObserved)
	default:
		return d
	}
}

// calculateSpecificMonday calculates the specific Monday of a month (like the third Monday).
func calculateSpecificMonday(year int, month time.Month, mondayOffset int) time.Time {
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := int(time.Monday-firstOfMonth.Weekday()+DaysPerWeek) % DaysPerWeek
	return firstOfMonth.AddDate(0, 0, offset+mondayOffset*DaysPerWeek)
}

// calculateSpecificThursday calculates the specific Thursday of a month (like the fourth Thursday).
func calculateSpecificThursday(year int, month time.Month, thursdayOffset int) time.Time {
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := int(time.Thursday-firstOfMonth.Weekday()+DaysPerWeek) % DaysPerWeek
	return firstOfMonth.AddDate(0, 0, offset+thursdayOffset*DaysPerWeek)
}

// easterSunday uses the anonymous Gregorian algorithm.
func easterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// isDateAmong checks if the given date matches any date in the list.
func isDateAmong(t time.Time, dates []time.Time) bool {
	for _, d := range dates {
		if t.Format("2006-01-02") == d.Format("2006-01-02") {
			return true
		}
	}
	return false
}
