package cdda

import "strconv"

// Status is the raw code a read-correction layer reports through a Callback.
// The numbering follows the cdparanoia callback contract.
type Status int

const (
	StatusRead         Status = 0
	StatusVerify       Status = 1
	StatusFixupEdge    Status = 2
	StatusFixupAtom    Status = 3
	StatusScratch      Status = 4
	StatusRepair       Status = 5
	StatusSkip         Status = 6
	StatusDrift        Status = 7
	StatusBackoff      Status = 8
	StatusOverlap      Status = 9
	StatusFixupDropped Status = 10
	StatusFixupDuped   Status = 11
	StatusReadErr      Status = 12
	// StatusCacheErr and StatusWrote are libcdio extensions. They carry no
	// audit value and are left unclassified.
	StatusCacheErr Status = 13
	StatusWrote    Status = 14
)

var statusNames = map[Status]string{
	StatusRead:         "read",
	StatusVerify:       "verify",
	StatusFixupEdge:    "fixup_edge",
	StatusFixupAtom:    "fixup_atom",
	StatusScratch:      "scratch",
	StatusRepair:       "repair",
	StatusSkip:         "skip",
	StatusDrift:        "drift",
	StatusBackoff:      "backoff",
	StatusOverlap:      "overlap",
	StatusFixupDropped: "fixup_dropped",
	StatusFixupDuped:   "fixup_duped",
	StatusReadErr:      "read_error",
	StatusCacheErr:     "cache_error",
	StatusWrote:        "wrote",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "status(" + strconv.Itoa(int(s)) + ")"
}
