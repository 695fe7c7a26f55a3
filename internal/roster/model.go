package roster

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Student is one enrolled child. The field shapes mirror the historical
// roster data: class times and locations exist both as a single value and as
// a per-weekday map, and IsActive is a tri-state where nil means active.
type Student struct {
	ID           string `json:"id"`
	ShortID      string `json:"shortId,omitempty"`
	NotionPageID string `json:"notionPageId,omitempty"`
	Name         string `json:"name"`

	ClassDays  []string          `json:"classDays,omitempty"`
	ClassTime  string            `json:"classTime,omitempty"`
	ClassTimes map[string]string `json:"classTimes,omitempty"`

	ArrivalTime   string `json:"arrivalTime,omitempty"`
	DepartureTime string `json:"departureTime,omitempty"`

	ArrivalLocation    string            `json:"arrivalLocation,omitempty"`
	DepartureLocation  string            `json:"departureLocation,omitempty"`
	ArrivalLocations   map[string]string `json:"arrivalLocations,omitempty"`
	DepartureLocations map[string]string `json:"departureLocations,omitempty"`

	MotherPhone  string `json:"motherPhone,omitempty"`
	FatherPhone  string `json:"fatherPhone,omitempty"`
	StudentPhone string `json:"studentPhone,omitempty"`
	OtherPhone   string `json:"otherPhone,omitempty"`

	IsActive        *bool `json:"isActive,omitempty"`
	ArrivalStatus   bool  `json:"arrivalStatus"`
	DepartureStatus bool  `json:"departureStatus"`

	RegistrationDate string    `json:"registrationDate,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Active reports whether the student is enrolled. Only an explicit false
// withdraws; a missing flag counts as active.
func (s Student) Active() bool {
	return s.IsActive == nil || *s.IsActive
}

// StudentPatch is a partial update; nil fields are left untouched.
type StudentPatch struct {
	Name               *string            `json:"name"`
	ShortID            *string            `json:"shortId"`
	NotionPageID       *string            `json:"notionPageId"`
	ClassDays          *[]string          `json:"classDays"`
	ClassTime          *string            `json:"classTime"`
	ClassTimes         *map[string]string `json:"classTimes"`
	ArrivalTime        *string            `json:"arrivalTime"`
	DepartureTime      *string            `json:"departureTime"`
	ArrivalLocation    *string            `json:"arrivalLocation"`
	DepartureLocation  *string            `json:"departureLocation"`
	ArrivalLocations   *map[string]string `json:"arrivalLocations"`
	DepartureLocations *map[string]string `json:"departureLocations"`
	MotherPhone        *string            `json:"motherPhone"`
	FatherPhone        *string            `json:"fatherPhone"`
	StudentPhone       *string            `json:"studentPhone"`
	OtherPhone         *string            `json:"otherPhone"`
	IsActive           *bool              `json:"isActive"`
	RegistrationDate   *string            `json:"registrationDate"`
}

// StatusKind selects which completion flag a toggle targets.
type StatusKind string

const (
	KindArrival   StatusKind = "arrival"
	KindDeparture StatusKind = "departure"
)

// ParseStatusKind validates a toggle kind from a request.
func ParseStatusKind(s string) (StatusKind, bool) {
	switch StatusKind(s) {
	case KindArrival, KindDeparture:
		return StatusKind(s), true
	}
	return "", false
}

// ClassSlot describes one class-time slot and its pickup points.
type ClassSlot struct {
	StartTime string         `json:"startTime"`
	EndTime   string         `json:"endTime"`
	Locations map[int]string `json:"locations"`
}

// weekdayLabels maps time.Weekday to the Korean single-character labels used
// throughout the roster data (일=Sunday .. 토=Saturday).
var weekdayLabels = [7]string{"일", "월", "화", "수", "목", "금", "토"}

// WeekdayLabel returns the roster label for t's weekday.
func WeekdayLabel(t time.Time) string {
	return weekdayLabels[int(t.Weekday())]
}

// classTimeCorrections fixes a known upstream data-entry inconsistency where
// some records carry the class end-of-entry time instead of the slot label.
var classTimeCorrections = map[string]string{
	"16:40": "16:30",
	"17:40": "17:30",
	"18:40": "18:30",
}

// NormalizeClassTime maps known mistyped class times onto their canonical
// slot label and leaves everything else alone. Idempotent.
func NormalizeClassTime(t string) string {
	if fixed, ok := classTimeCorrections[t]; ok {
		return fixed
	}
	return t
}

// Normalize canonicalizes the redundant class-time representations in place.
func (s *Student) Normalize() {
	s.ClassTime = NormalizeClassTime(s.ClassTime)
	for day, t := range s.ClassTimes {
		s.ClassTimes[day] = NormalizeClassTime(t)
	}
}

// noVehicle holds location values meaning no pickup vehicle is used.
var noVehicle = map[string]bool{
	"도보":   true,
	"자차":   true,
	"없음":   true,
	"해당없음": true,
	"-":    true,
}

// NoVehicle reports whether a location value means the student is not riding.
func NoVehicle(location string) bool {
	return noVehicle[strings.TrimSpace(location)]
}

// VisibleOn reports whether the student belongs in the view for the given
// weekday and class-time filter. Empty classDays means every day; an empty
// or "all" classTime filter matches every slot.
func (s Student) VisibleOn(weekday, classTime string) bool {
	if !s.Active() {
		return false
	}
	if len(s.ClassDays) > 0 && weekday != "" {
		found := false
		for _, d := range s.ClassDays {
			if d == weekday {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if classTime == "" || classTime == "all" {
		return true
	}
	if s.ClassTime == classTime {
		return true
	}
	for _, t := range s.ClassTimes {
		if t == classTime {
			return true
		}
	}
	return false
}

// Filter narrows a roster listing.
type Filter struct {
	Weekday         string
	ClassTime       string
	IncludeInactive bool
}

// Apply returns the students visible under the filter. The result is always
// a subset of the input; the input is not modified.
func (f Filter) Apply(all []Student) []Student {
	out := make([]Student, 0, len(all))
	for _, s := range all {
		if f.IncludeInactive {
			if !s.Active() {
				out = append(out, s)
			}
			continue
		}
		if s.VisibleOn(f.Weekday, f.ClassTime) {
			out = append(out, s)
		}
	}
	return out
}

// noTimeMinutes ranks missing or malformed arrival times after every real one.
const noTimeMinutes = 9999

var timeOfDay = regexp.MustCompile(`^([0-9]{1,2}):([0-9]{2})$`)

// arrivalMinutes converts an "H:MM"/"HH:MM" string to minutes since midnight.
func arrivalMinutes(t string) int {
	m := timeOfDay.FindStringSubmatch(strings.TrimSpace(t))
	if m == nil {
		return noTimeMinutes
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	return h*60 + min
}

// SortByArrival orders students by arrival time ascending, students without
// a parseable time last, ties broken by Korean-collation name order.
func SortByArrival(students []Student) {
	c := collate.New(language.Korean)
	sort.SliceStable(students, func(i, j int) bool {
		a, b := arrivalMinutes(students[i].ArrivalTime), arrivalMinutes(students[j].ArrivalTime)
		if a != b {
			return a < b
		}
		return c.CompareString(students[i].Name, students[j].Name) < 0
	})
}

// DefaultClassSlots seeds the class-info map used before any admin edits.
func DefaultClassSlots() map[string]ClassSlot {
	return map[string]ClassSlot{
		"15:30": {StartTime: "15:30", EndTime: "16:20", Locations: map[int]string{1: "정문", 2: "후문", 3: "상가 앞"}},
		"16:30": {StartTime: "16:30", EndTime: "17:20", Locations: map[int]string{1: "정문", 2: "후문", 3: "상가 앞"}},
		"17:30": {StartTime: "17:30", EndTime: "18:20", Locations: map[int]string{1: "정문", 2: "후문", 3: "상가 앞"}},
		"18:30": {StartTime: "18:30", EndTime: "19:20", Locations: map[int]string{1: "정문", 2: "후문"}},
	}
}

// SampleStudents is the placeholder roster served when the store is down so
// screens stay populated.
func SampleStudents() []Student {
	now := time.Now().UTC()
	return []Student{
		{
			ID: "sample-1", ShortID: "1", Name: "김민준",
			ClassDays: []string{"월", "수"}, ClassTime: "15:00",
			ArrivalTime: "14:40", ArrivalLocation: "정문", DepartureLocation: "정문",
			MotherPhone: "010-0000-0001", CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "sample-2", ShortID: "2", Name: "이서연",
			ClassDays: []string{"화", "목"}, ClassTime: "16:30",
			ArrivalTime: "16:10", ArrivalLocation: "후문", DepartureLocation: "도보",
			MotherPhone: "010-0000-0002", CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "sample-3", ShortID: "3", Name: "박지호",
			ClassTime:   "17:30",
			ArrivalTime: "17:10", ArrivalLocation: "상가 앞", DepartureLocation: "자차",
			FatherPhone: "010-0000-0003", CreatedAt: now, UpdatedAt: now,
		},
	}
}
